package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/transconnect-go/internal/domain/auth"
	"github.com/transconnect-go/pkg/config"
)

var (
	ErrEmptySecret   = errors.New("jwt secret must not be empty")
	ErrInvalidToken  = errors.New("invalid token")
	ErrInvalidClaims = errors.New("invalid token claims")
)

// Manager signs and verifies credentials with a process-wide HMAC secret.
// It is immutable after construction and safe for concurrent use.
type Manager struct {
	secret []byte
	issuer string
	expiry time.Duration
	now    func() time.Time
}

type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	Role     string `json:"role"`
	UserID   uint   `json:"userId,omitempty"`
}

func NewManager(cfg config.AuthConfig) (*Manager, error) {
	if cfg.SecretKey == "" {
		return nil, ErrEmptySecret
	}
	return &Manager{
		secret: []byte(cfg.SecretKey),
		issuer: cfg.Issuer,
		expiry: time.Duration(cfg.ExpiryHours) * time.Hour,
		now:    time.Now,
	}, nil
}

// Sign issues a credential for the principal. A principal without a role is
// issued as USER.
func (m *Manager) Sign(p auth.Principal) (string, error) {
	role := p.Role
	if role == "" {
		role = auth.RoleUser
	}
	if !role.Valid() {
		return "", fmt.Errorf("sign token: unknown role %q", role)
	}

	now := m.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   m.issuer,
			Subject:  p.Username,
			IssuedAt: jwt.NewNumericDate(now),
			ID:       uuid.New().String(),
		},
		Username: p.Username,
		Role:     string(role),
		UserID:   p.UserID,
	}
	if m.expiry > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(m.expiry))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verify checks the signature and claims of a credential and returns the
// principal it carries. Unknown roles are rejected.
func (m *Manager) Verify(tokenString string) (*auth.Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Username == "" {
		return nil, fmt.Errorf("%w: missing username", ErrInvalidClaims)
	}
	role, err := auth.ParseRole(claims.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidClaims, err)
	}

	p := &auth.Principal{
		Username: claims.Username,
		Role:     role,
		UserID:   claims.UserID,
	}
	if claims.IssuedAt != nil {
		p.IssuedAt = claims.IssuedAt.Time
	}
	return p, nil
}

package service

import (
	"context"
	"fmt"

	"github.com/transconnect-go/internal/domain/auth"
	"github.com/transconnect-go/internal/domain/user"
	"github.com/transconnect-go/pkg/apperr"
	"github.com/transconnect-go/pkg/database"
	"github.com/transconnect-go/pkg/events"
	"github.com/transconnect-go/pkg/logger"
	"github.com/transconnect-go/pkg/middleware/requestid"
)

const invalidCredentials = "Invalid username/password"

type AuthRepository interface {
	Create(ctx context.Context, u *user.User) error
	GetByUsername(ctx context.Context, username string) (*user.User, error)
}

type TokenSigner interface {
	Sign(p auth.Principal) (string, error)
}

type TokenRequest struct {
	Username string `json:"username" validate:"required,min=3"`
	Password string `json:"password" validate:"required,min=6"`
}

type RegisterRequest struct {
	Username string  `json:"username" validate:"required,min=3"`
	Password string  `json:"password" validate:"required,min=6"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Pronouns *string `json:"pronouns"`
}

type AuthService struct {
	repository AuthRepository
	signer     TokenSigner
	eventBus   events.Bus
	bcryptCost int
	logger     logger.Logger
}

func NewAuthService(repo AuthRepository, signer TokenSigner, eventBus events.Bus, bcryptCost int, logger logger.Logger) *AuthService {
	return &AuthService{
		repository: repo,
		signer:     signer,
		eventBus:   eventBus,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// Token exchanges a username and password for a credential. Unknown users
// and wrong passwords are indistinguishable to the caller.
func (s *AuthService) Token(ctx context.Context, req TokenRequest) (string, error) {
	u, err := s.repository.GetByUsername(ctx, req.Username)
	if err != nil {
		if database.IsNotFound(err) {
			return "", apperr.Unauthorized(invalidCredentials)
		}
		return "", apperr.Internal(err)
	}

	if !u.CheckPassword(req.Password) {
		s.logger.Debug("Password mismatch", "username", req.Username)
		return "", apperr.Unauthorized(invalidCredentials)
	}

	return s.sign(u)
}

// Register creates a USER account and logs it in.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (string, error) {
	newUser, err := user.NewUser(req.Username, req.Password, req.Email, req.Pronouns, auth.RoleUser, s.bcryptCost)
	if err != nil {
		return "", apperr.Internal(fmt.Errorf("failed to hash password: %w", err))
	}

	if err := s.repository.Create(ctx, newUser); err != nil {
		if database.IsDuplicate(err) {
			return "", apperr.BadRequest("Username or email already in use")
		}
		return "", apperr.Internal(err)
	}

	event := events.NewEventBuilder(events.UserRegistered).
		WithAggregate("user", newUser.ID).
		WithActor(newUser.Username).
		WithPayload("username", newUser.Username).
		WithPayload("role", newUser.Role.String()).
		WithRequestID(requestid.FromContext(ctx)).
		Build()
	if err := s.eventBus.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish user registered event", "error", err)
	}

	s.logger.Info("User registered", "username", newUser.Username)
	return s.sign(newUser)
}

func (s *AuthService) sign(u *user.User) (string, error) {
	token, err := s.signer.Sign(u.Principal())
	if err != nil {
		return "", apperr.Internal(fmt.Errorf("failed to sign token: %w", err))
	}
	return token, nil
}

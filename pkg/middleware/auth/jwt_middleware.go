package auth

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/transconnect-go/internal/domain/auth"
)

const principalKey = "principal"

// Verifier checks a raw credential and returns the principal it carries.
type Verifier interface {
	Verify(token string) (*auth.Principal, error)
}

// Resolver turns an Authorization header into an optional principal.
type Resolver struct {
	verifier Verifier
}

func NewResolver(verifier Verifier) *Resolver {
	return &Resolver{verifier: verifier}
}

// Resolve never fails. A missing header or any credential that does not
// verify yields nil, leaving the request anonymous.
func (r *Resolver) Resolve(header string) *auth.Principal {
	token := strings.TrimSpace(header)
	if len(token) >= len("bearer ") && strings.EqualFold(token[:len("bearer ")], "bearer ") {
		token = strings.TrimSpace(token[len("bearer "):])
	}
	if token == "" {
		return nil
	}

	principal, err := r.verifier.Verify(token)
	if err != nil {
		return nil
	}
	return principal
}

// Authenticate stores the resolved principal, possibly nil, on the request.
// It never aborts; gates decide whether a principal is required.
func (r *Resolver) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if principal := r.Resolve(c.GetHeader("Authorization")); principal != nil {
			c.Set(principalKey, principal)
		}
		c.Next()
	}
}

// PrincipalFrom returns the request's principal or nil when anonymous.
func PrincipalFrom(c *gin.Context) *auth.Principal {
	value, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	principal, _ := value.(*auth.Principal)
	return principal
}

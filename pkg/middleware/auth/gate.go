package auth

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/transconnect-go/internal/domain/auth"
	"github.com/transconnect-go/pkg/apperr"
	"github.com/transconnect-go/pkg/metrics"
	"github.com/transconnect-go/pkg/response"
	"github.com/transconnect-go/pkg/validation"
)

// Policy decides whether a principal may proceed. A nil error allows the
// request; a denial is an Unauthorized *apperr.Error. Policies are pure.
type Policy func(p *auth.Principal, actx auth.Context) error

func deny() error {
	return apperr.Unauthorized("")
}

func RequireLoggedIn(p *auth.Principal, _ auth.Context) error {
	if p == nil {
		return deny()
	}
	return nil
}

func RequireAdmin(p *auth.Principal, _ auth.Context) error {
	if !p.IsAdmin() {
		return deny()
	}
	return nil
}

// RequireSelfOrAdmin matches both the username and the stable user id.
func RequireSelfOrAdmin(p *auth.Principal, actx auth.Context) error {
	if p == nil {
		return deny()
	}
	if p.IsAdmin() {
		return nil
	}
	if actx.ParamUsername == "" || p.Username != actx.ParamUsername {
		return deny()
	}
	if p.UserID == 0 || p.UserID != actx.TargetUserID {
		return deny()
	}
	return nil
}

// RequireSelfByNameOrAdmin accepts a username match from either the route
// or the body.
func RequireSelfByNameOrAdmin(p *auth.Principal, actx auth.Context) error {
	if p == nil {
		return deny()
	}
	if p.IsAdmin() {
		return nil
	}
	if actx.ParamUsername != "" && p.Username == actx.ParamUsername {
		return nil
	}
	if actx.BodyUsername != "" && p.Username == actx.BodyUsername {
		return nil
	}
	return deny()
}

// ContextFunc gathers the identity evidence a route can supply.
type ContextFunc func(c *gin.Context) (auth.Context, error)

// Gate adapts a policy to gin. Evidence is only gathered when the principal
// alone does not settle the outcome.
func Gate(name string, policy Policy, evidence ContextFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := PrincipalFrom(c)

		var actx auth.Context
		if principal != nil && !principal.IsAdmin() && evidence != nil {
			var err error
			actx, err = evidence(c)
			if err != nil {
				response.Fail(c, err)
				return
			}
		}

		err := policy(principal, actx)
		metrics.RecordAuthzDecision(name, err == nil)
		if err != nil {
			response.Fail(c, err)
			return
		}
		c.Next()
	}
}

func LoggedIn() gin.HandlerFunc {
	return Gate("logged_in", RequireLoggedIn, nil)
}

func Admin() gin.HandlerFunc {
	return Gate("admin", RequireAdmin, nil)
}

func SelfByNameOrAdmin(evidence ContextFunc) gin.HandlerFunc {
	return Gate("self_by_name_or_admin", RequireSelfByNameOrAdmin, evidence)
}

func SelfOrAdmin(evidence ContextFunc) gin.HandlerFunc {
	return Gate("self_or_admin", RequireSelfOrAdmin, evidence)
}

// FromParam takes the target username from a route parameter.
func FromParam(name string) ContextFunc {
	return func(c *gin.Context) (auth.Context, error) {
		return auth.Context{ParamUsername: c.Param(name)}, nil
	}
}

// Owner identifies the user a stored record belongs to. A zero Owner means
// the record has none.
type Owner struct {
	UserID   uint
	Username string
}

// OwnerLoader looks up the owner of the record with the given id.
type OwnerLoader func(ctx context.Context, id uint) (Owner, error)

// FromOwner uses the stored owner of the record named by idParam as the
// target. Identity claims in the request body are not trusted here.
func FromOwner(idParam, invalidMessage string, load OwnerLoader) ContextFunc {
	return func(c *gin.Context) (auth.Context, error) {
		id, err := validation.PathID(c, idParam, invalidMessage)
		if err != nil {
			return auth.Context{}, err
		}
		owner, err := load(c.Request.Context(), id)
		if err != nil {
			return auth.Context{}, err
		}
		return auth.Context{ParamUsername: owner.Username, TargetUserID: owner.UserID}, nil
	}
}

// FromParamAndOwner pairs the username named in the route with the stored
// owner id of the record named by idParam.
func FromParamAndOwner(usernameParam, idParam, invalidMessage string, load OwnerLoader) ContextFunc {
	owned := FromOwner(idParam, invalidMessage, load)
	return func(c *gin.Context) (auth.Context, error) {
		actx, err := owned(c)
		if err != nil {
			return auth.Context{}, err
		}
		actx.ParamUsername = c.Param(usernameParam)
		return actx, nil
	}
}

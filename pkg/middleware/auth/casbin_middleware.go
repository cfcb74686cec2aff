package auth

import (
	"github.com/gin-gonic/gin"
	"github.com/transconnect-go/pkg/apperr"
	"github.com/transconnect-go/pkg/metrics"
	"github.com/transconnect-go/pkg/response"
)

// RequireCapability checks a role capability after a gate has admitted the
// principal. Missing capabilities are Forbidden, not Unauthorized.
func RequireCapability(checker PermissionChecker, object, action string) gin.HandlerFunc {
	name := "capability:" + object + ":" + action
	return func(c *gin.Context) {
		principal := PrincipalFrom(c)
		if principal == nil {
			metrics.RecordAuthzDecision(name, false)
			response.Fail(c, deny())
			return
		}

		allowed, err := checker.Can(principal.Role.String(), object, action)
		if err != nil {
			response.Fail(c, apperr.Internal(err))
			return
		}
		metrics.RecordAuthzDecision(name, allowed)
		if !allowed {
			response.Fail(c, apperr.Forbidden(""))
			return
		}
		c.Next()
	}
}

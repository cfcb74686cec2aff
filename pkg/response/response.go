// Package response is the single place where handler outcomes become wire
// format. Success bodies are {<key>: value}; failures are
// {"error": {"message": ..., "status": ...}}.
package response

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/transconnect-go/pkg/apperr"
	"github.com/transconnect-go/pkg/logger"
	"github.com/transconnect-go/pkg/middleware/requestid"
)

// ErrorDetail is the body of a failure envelope. Message is a string, or
// the list of violations for a BadRequest.
type ErrorDetail struct {
	Message interface{} `json:"message"`
	Status  int         `json:"status"`
}

type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// FromError maps any error to a status and envelope. Errors that are not
// *apperr.Error are Internal and their detail is withheld.
func FromError(err error) (int, ErrorBody) {
	appErr := apperr.From(err)
	if appErr == nil {
		appErr = apperr.Internal(nil)
	}

	status := appErr.Status()
	var message interface{} = appErr.Message
	switch {
	case appErr.Kind == apperr.KindInternal:
		message = apperr.KindInternal.String()
	case appErr.Kind == apperr.KindBadRequest && len(appErr.Violations) > 0:
		message = appErr.Violations
	}

	return status, ErrorBody{Error: ErrorDetail{Message: message, Status: status}}
}

func OK(c *gin.Context, key string, value interface{}) {
	c.JSON(http.StatusOK, gin.H{key: value})
}

func Created(c *gin.Context, key string, value interface{}) {
	c.JSON(http.StatusCreated, gin.H{key: value})
}

// Fail records err for ErrorHandler and stops the handler chain.
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ErrorHandler renders the last recorded error once the chain has run.
// Internal faults are logged with their cause unless quiet is set.
func ErrorHandler(log logger.Logger, quiet bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		if apperr.KindOf(err) == apperr.KindInternal && !quiet {
			log.Error("Request failed",
				"error", err,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"request_id", requestid.FromContext(c.Request.Context()),
			)
		}

		if c.Writer.Written() {
			return
		}
		status, body := FromError(err)
		c.JSON(status, body)
	}
}

// Recovery turns a panic into an Internal envelope.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		Fail(c, apperr.Internal(panicError{value: recovered}))
	})
}

// NotFoundHandler answers unknown routes.
func NotFoundHandler(c *gin.Context) {
	Fail(c, apperr.NotFound(""))
}

type panicError struct {
	value interface{}
}

func (p panicError) Error() string {
	return fmt.Sprintf("panic: %v", p.value)
}

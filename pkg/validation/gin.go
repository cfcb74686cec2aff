package validation

import (
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/transconnect-go/pkg/apperr"
)

// BodyBytes returns the raw request body. A copy cached by an earlier
// ShouldBindBodyWith call is reused, otherwise the body is read and cached.
func BodyBytes(c *gin.Context) ([]byte, error) {
	if cached, ok := c.Get(gin.BodyBytesKey); ok {
		if body, ok := cached.([]byte); ok {
			return body, nil
		}
	}
	if c.Request.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, err
	}
	c.Set(gin.BodyBytesKey, body)
	return body, nil
}

// BindJSON binds the request body into dst and reports violations as a
// BadRequest error.
func BindJSON(c *gin.Context, dst interface{}) error {
	body, err := BodyBytes(c)
	if err != nil {
		return apperr.BadRequest("Request body could not be read")
	}
	if violations := Bind(body, dst); len(violations) > 0 {
		return apperr.BadRequest(violations...)
	}
	return nil
}

// BindQuery binds query parameters into dst using `form` tags. Query structs
// keep string fields so that format checks happen here, not in the binder.
func BindQuery(c *gin.Context, dst interface{}) error {
	if err := c.ShouldBindQuery(dst); err != nil {
		return apperr.BadRequest(err.Error())
	}
	if violations := Validate(dst); len(violations) > 0 {
		return apperr.BadRequest(violations...)
	}
	return nil
}

// PathID parses a positive numeric route parameter. invalidMessage is the
// BadRequest message when it is not one.
func PathID(c *gin.Context, name, invalidMessage string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.BadRequest(invalidMessage)
	}
	return uint(id), nil
}

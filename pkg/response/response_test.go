package response

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/transconnect-go/pkg/apperr"
	"github.com/transconnect-go/pkg/logger"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message interface{}
	}{
		{"Unauthorized", apperr.Unauthorized(""), http.StatusUnauthorized, "Unauthorized"},
		{"Forbidden", apperr.Forbidden("Role changes require the assign_role capability"), http.StatusForbidden, "Role changes require the assign_role capability"},
		{"NotFound", apperr.NotFound("Post not found"), http.StatusNotFound, "Post not found"},
		{"BadRequestViolations", apperr.BadRequest("a", "b"), http.StatusBadRequest, []string{"a", "b"}},
		{"InternalHidesCause", apperr.Internal(errors.New("pq: connection refused")), http.StatusInternalServerError, "Internal Server Error"},
		{"PlainError", errors.New("boom"), http.StatusInternalServerError, "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := FromError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.status, body.Error.Status)
			assert.Equal(t, tt.message, body.Error.Message)
		})
	}
}

func newRouter(log logger.Logger, quiet bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ErrorHandler(log, quiet), Recovery())
	router.NoRoute(NotFoundHandler)
	return router
}

func serve(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestErrorHandlerRendersEnvelope(t *testing.T) {
	router := newRouter(logger.NewNop(), true)
	router.POST("/comments", func(c *gin.Context) {
		Fail(c, apperr.BadRequest("Comment cannot be empty"))
	})
	router.GET("/ok", func(c *gin.Context) { OK(c, "posts", []string{}) })
	router.POST("/new", func(c *gin.Context) { Created(c, "post", gin.H{"id": 1}) })

	w := serve(router, http.MethodPost, "/comments")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":{"message":["Comment cannot be empty"],"status":400}}`, w.Body.String())

	w = serve(router, http.MethodGet, "/ok")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"posts":[]}`, w.Body.String())

	w = serve(router, http.MethodPost, "/new")
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"post":{"id":1}}`, w.Body.String())
}

func TestNotFoundRoute(t *testing.T) {
	router := newRouter(logger.NewNop(), true)

	w := serve(router, http.MethodGet, "/nowhere")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":{"message":"Not Found","status":404}}`, w.Body.String())
}

func TestRecoveryAndLogging(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	router := newRouter(logger.NewWithCore(core), false)
	router.GET("/panic", func(c *gin.Context) { panic("kaboom") })

	w := serve(router, http.MethodGet, "/panic")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":{"message":"Internal Server Error","status":500}}`, w.Body.String())

	entries := logs.FilterMessage("Request failed").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap()["error"], "kaboom")
}

func TestQuietModeSkipsLogging(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	router := newRouter(logger.NewWithCore(core), true)
	router.GET("/fail", func(c *gin.Context) { Fail(c, errors.New("db down")) })

	w := serve(router, http.MethodGet, "/fail")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Zero(t, logs.Len())
}

func TestClientErrorsAreNotLogged(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	router := newRouter(logger.NewWithCore(core), false)
	router.GET("/missing", func(c *gin.Context) { Fail(c, apperr.NotFound("User not found")) })

	w := serve(router, http.MethodGet, "/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":{"message":"User not found","status":404}}`, w.Body.String())
	assert.Zero(t, logs.Len())
}

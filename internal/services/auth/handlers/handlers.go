package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/transconnect-go/internal/services/auth/service"
	"github.com/transconnect-go/pkg/response"
	"github.com/transconnect-go/pkg/validation"
)

type AuthHandlers struct {
	service *service.AuthService
}

func NewAuthHandlers(service *service.AuthService) *AuthHandlers {
	return &AuthHandlers{service: service}
}

// Token handles POST /auth/token
func (h *AuthHandlers) Token(c *gin.Context) {
	var req service.TokenRequest
	if err := validation.BindJSON(c, &req); err != nil {
		response.Fail(c, err)
		return
	}

	token, err := h.service.Token(c.Request.Context(), req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, "token", token)
}

// Register handles POST /auth/register
func (h *AuthHandlers) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := validation.BindJSON(c, &req); err != nil {
		response.Fail(c, err)
		return
	}

	token, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Created(c, "token", token)
}

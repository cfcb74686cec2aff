package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/transconnect-go/internal/services/user/service"
	authmw "github.com/transconnect-go/pkg/middleware/auth"
	"github.com/transconnect-go/pkg/response"
	"github.com/transconnect-go/pkg/validation"
)

type UserHandlers struct {
	service *service.UserService
}

func NewUserHandlers(service *service.UserService) *UserHandlers {
	return &UserHandlers{service: service}
}

// CreateUser handles POST /users
func (h *UserHandlers) CreateUser(c *gin.Context) {
	var req service.CreateUserRequest
	if err := validation.BindJSON(c, &req); err != nil {
		response.Fail(c, err)
		return
	}

	u, token, err := h.service.CreateUser(c.Request.Context(), authmw.PrincipalFrom(c), req)
	if err != nil {
		response.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": u.Profile(), "token": token})
}

// ListUsers handles GET /users
func (h *UserHandlers) ListUsers(c *gin.Context) {
	users, err := h.service.ListUsers(c.Request.Context())
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, "users", users)
}

// GetUser handles GET /users/:username
func (h *UserHandlers) GetUser(c *gin.Context) {
	profile, err := h.service.GetUser(c.Request.Context(), c.Param("username"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, "user", profile)
}

// UpdateUser handles PATCH /users/:username
func (h *UserHandlers) UpdateUser(c *gin.Context) {
	var req service.UpdateUserRequest
	if err := validation.BindJSON(c, &req); err != nil {
		response.Fail(c, err)
		return
	}

	profile, err := h.service.UpdateUser(c.Request.Context(), authmw.PrincipalFrom(c), c.Param("username"), req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, "user", profile)
}

// DeleteUser handles DELETE /users/:username
func (h *UserHandlers) DeleteUser(c *gin.Context) {
	username := c.Param("username")
	if err := h.service.DeleteUser(c.Request.Context(), authmw.PrincipalFrom(c), username); err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, "deleted", username)
}

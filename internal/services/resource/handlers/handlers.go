package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/transconnect-go/internal/services/resource/service"
	authmw "github.com/transconnect-go/pkg/middleware/auth"
	"github.com/transconnect-go/pkg/response"
	"github.com/transconnect-go/pkg/validation"
)

const invalidResourceID = "Invalid resource ID."

type ResourceHandlers struct {
	service *service.ResourceService
}

func NewResourceHandlers(service *service.ResourceService) *ResourceHandlers {
	return &ResourceHandlers{service: service}
}

// ListResources handles GET /resources
func (h *ResourceHandlers) ListResources(c *gin.Context) {
	resources, err := h.service.ListResources(c.Request.Context(), c.Query("searchTerm"), c.Query("type"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, "resources", resources)
}

// ListTypes handles GET /resources/types
func (h *ResourceHandlers) ListTypes(c *gin.Context) {
	types, err := h.service.ListTypes(c.Request.Context())
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, "types", types)
}

// CreateType handles POST /resources/types
func (h *ResourceHandlers) CreateType(c *gin.Context) {
	var req service.TypeRequest
	if err := validation.BindJSON(c, &req); err != nil {
		response.Fail(c, err)
		return
	}

	t, err := h.service.CreateType(c.Request.Context(), req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Created(c, "type", t)
}

// GetResource handles GET /resources/:resource_id
func (h *ResourceHandlers) GetResource(c *gin.Context) {
	id, err := validation.PathID(c, "resource_id", invalidResourceID)
	if err != nil {
		response.Fail(c, err)
		return
	}

	res, err := h.service.GetResource(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, "resource", res)
}

// SubmitResource handles POST /resources. Anonymous submissions are allowed.
func (h *ResourceHandlers) SubmitResource(c *gin.Context) {
	var req service.ResourceRequest
	if err := validation.BindJSON(c, &req); err != nil {
		response.Fail(c, err)
		return
	}

	res, err := h.service.SubmitResource(c.Request.Context(), authmw.PrincipalFrom(c), req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Created(c, "resource", res)
}

// UpdateResource handles PATCH /resources/:resource_id
func (h *ResourceHandlers) UpdateResource(c *gin.Context) {
	id, err := validation.PathID(c, "resource_id", invalidResourceID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	var req service.UpdateResourceRequest
	if err := validation.BindJSON(c, &req); err != nil {
		response.Fail(c, err)
		return
	}

	res, err := h.service.UpdateResource(c.Request.Context(), authmw.PrincipalFrom(c), id, req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, "resource", res)
}

// DeleteResource handles DELETE /resources/:resource_id
func (h *ResourceHandlers) DeleteResource(c *gin.Context) {
	id, err := validation.PathID(c, "resource_id", invalidResourceID)
	if err != nil {
		response.Fail(c, err)
		return
	}

	if err := h.service.DeleteResource(c.Request.Context(), id); err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, "deleted", c.Param("resource_id"))
}

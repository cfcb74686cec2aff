package service

import (
	"context"
	"errors"
	"strings"

	"github.com/transconnect-go/internal/domain/auth"
	"github.com/transconnect-go/internal/domain/resource"
	"github.com/transconnect-go/internal/services/auth/rbac"
	"github.com/transconnect-go/internal/services/resource/repository"
	"github.com/transconnect-go/pkg/apperr"
	"github.com/transconnect-go/pkg/database"
	"github.com/transconnect-go/pkg/events"
	"github.com/transconnect-go/pkg/logger"
	"github.com/transconnect-go/pkg/middleware/requestid"
)

const (
	msgResourceNotFound = "Resource not found"
	msgTypesRequired    = "At least one resource type is required"
)

type ResourceRepository interface {
	List(ctx context.Context, filter repository.Filter) ([]resource.Resource, error)
	GetByID(ctx context.Context, id uint) (*resource.Resource, error)
	Create(ctx context.Context, res *resource.Resource, typeNames []string) error
	Update(ctx context.Context, res *resource.Resource, typeNames []string) error
	Delete(ctx context.Context, id uint) error
	ListTypes(ctx context.Context) ([]resource.Type, error)
	CreateType(ctx context.Context, t *resource.Type) error
}

type PermissionChecker interface {
	Can(role, object, action string) (bool, error)
}

type ResourceRequest struct {
	Name        string   `json:"name" validate:"required" msg:"Resource name cannot be empty"`
	Description string   `json:"description"`
	URL         string   `json:"url" validate:"omitempty,url"`
	Types       []string `json:"types" validate:"min=1,dive,required" msg:"At least one resource type is required"`
	Approved    bool     `json:"approved"`
}

// UpdateResourceRequest changes only the fields that are present. A present
// types list replaces the resource's types.
type UpdateResourceRequest struct {
	Name        *string  `json:"name" validate:"omitempty,min=1" msg:"Resource name cannot be empty"`
	Description *string  `json:"description"`
	URL         *string  `json:"url" validate:"omitempty,url"`
	Types       []string `json:"types" validate:"omitempty,dive,required" msg:"At least one resource type is required"`
	Approved    *bool    `json:"approved"`
}

type TypeRequest struct {
	Name string `json:"name" validate:"required" msg:"Type name cannot be empty"`
}

type ResourceService struct {
	repo     ResourceRepository
	checker  PermissionChecker
	eventBus events.Bus
	logger   logger.Logger
}

func NewResourceService(repo ResourceRepository, checker PermissionChecker, eventBus events.Bus, logger logger.Logger) *ResourceService {
	return &ResourceService{
		repo:     repo,
		checker:  checker,
		eventBus: eventBus,
		logger:   logger,
	}
}

func (s *ResourceService) ListResources(ctx context.Context, searchTerm, typeName string) ([]resource.Resource, error) {
	resources, err := s.repo.List(ctx, repository.Filter{
		SearchTerm: strings.TrimSpace(searchTerm),
		Type:       typeName,
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return resources, nil
}

func (s *ResourceService) GetResource(ctx context.Context, id uint) (*resource.Resource, error) {
	res, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, apperr.NotFound(msgResourceNotFound)
		}
		return nil, apperr.Internal(err)
	}
	return res, nil
}

// SubmitResource records a community submission. Submissions start
// unapproved; approving one up front needs the approve capability.
func (s *ResourceService) SubmitResource(ctx context.Context, submitter *auth.Principal, req ResourceRequest) (*resource.Resource, error) {
	if req.Approved {
		if err := s.requireApprove(submitter); err != nil {
			return nil, err
		}
	}

	res := &resource.Resource{
		Name:        req.Name,
		Description: req.Description,
		URL:         req.URL,
		Approved:    req.Approved,
	}
	if submitter != nil && submitter.UserID != 0 {
		id := submitter.UserID
		res.UserID = &id
	}

	if err := s.repo.Create(ctx, res, req.Types); err != nil {
		return nil, typeError(err)
	}

	builder := events.NewEventBuilder(events.ResourceSubmitted).
		WithAggregate("resource", res.ID).
		WithPayload("name", res.Name).
		WithPayload("approved", res.Approved).
		WithRequestID(requestid.FromContext(ctx))
	if submitter != nil {
		builder.WithActor(submitter.Username)
	}
	if err := s.eventBus.Publish(ctx, builder.Build()); err != nil {
		s.logger.Error("Failed to publish resource submitted event", "error", err)
	}

	return s.GetResource(ctx, res.ID)
}

func (s *ResourceService) UpdateResource(ctx context.Context, actor *auth.Principal, id uint, req UpdateResourceRequest) (*resource.Resource, error) {
	if req.Types != nil && len(req.Types) == 0 {
		return nil, apperr.BadRequest(msgTypesRequired)
	}

	res, err := s.GetResource(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Approved != nil && *req.Approved != res.Approved {
		if err := s.requireApprove(actor); err != nil {
			return nil, err
		}
		res.Approved = *req.Approved
	}
	if req.Name != nil {
		res.Name = *req.Name
	}
	if req.Description != nil {
		res.Description = *req.Description
	}
	if req.URL != nil {
		res.URL = *req.URL
	}

	if err := s.repo.Update(ctx, res, req.Types); err != nil {
		return nil, typeError(err)
	}
	s.logger.Info("Resource updated", "id", id, "approved", res.Approved)
	return s.GetResource(ctx, id)
}

func (s *ResourceService) DeleteResource(ctx context.Context, id uint) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if database.IsNotFound(err) {
			return apperr.NotFound(msgResourceNotFound)
		}
		return apperr.Internal(err)
	}
	return nil
}

func (s *ResourceService) ListTypes(ctx context.Context) ([]resource.Type, error) {
	types, err := s.repo.ListTypes(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return types, nil
}

func (s *ResourceService) CreateType(ctx context.Context, req TypeRequest) (*resource.Type, error) {
	t := &resource.Type{Name: strings.TrimSpace(req.Name)}
	if t.Name == "" {
		return nil, apperr.BadRequest("Type name cannot be empty")
	}
	if err := s.repo.CreateType(ctx, t); err != nil {
		if database.IsDuplicate(err) {
			return nil, apperr.BadRequest("Type already exists")
		}
		return nil, apperr.Internal(err)
	}
	return t, nil
}

func (s *ResourceService) requireApprove(actor *auth.Principal) error {
	if actor == nil {
		return apperr.Unauthorized("")
	}
	allowed, err := s.checker.Can(actor.Role.String(), rbac.ObjectResources, rbac.ActionApprove)
	if err != nil {
		return apperr.Internal(err)
	}
	if !allowed {
		return apperr.Forbidden("Approving resources requires the approve capability")
	}
	return nil
}

func typeError(err error) error {
	var unknown *repository.UnknownTypeError
	if errors.As(err, &unknown) {
		return apperr.BadRequest("Unknown resource type: " + unknown.Name)
	}
	return apperr.Internal(err)
}

package service

import (
	"context"
	"fmt"

	"github.com/transconnect-go/internal/domain/auth"
	"github.com/transconnect-go/internal/domain/user"
	"github.com/transconnect-go/internal/services/auth/rbac"
	"github.com/transconnect-go/pkg/apperr"
	"github.com/transconnect-go/pkg/database"
	"github.com/transconnect-go/pkg/events"
	"github.com/transconnect-go/pkg/logger"
	"github.com/transconnect-go/pkg/middleware/requestid"
)

type UserRepository interface {
	Create(ctx context.Context, u *user.User) error
	GetByUsername(ctx context.Context, username string) (*user.User, error)
	List(ctx context.Context) ([]*user.User, error)
	Update(ctx context.Context, u *user.User) error
	Delete(ctx context.Context, username string) error
}

type TokenSigner interface {
	Sign(p auth.Principal) (string, error)
}

type PermissionChecker interface {
	Can(role, object, action string) (bool, error)
}

type CreateUserRequest struct {
	Username string  `json:"username" validate:"required,min=3"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Password string  `json:"password" validate:"required,min=6"`
	Pronouns *string `json:"pronouns"`
	Role     string  `json:"role" validate:"oneof=USER ADMIN" default:"USER"`
}

// UpdateUserRequest changes only the fields that are present.
type UpdateUserRequest struct {
	Email    *string `json:"email" validate:"omitempty,email"`
	Password *string `json:"password" validate:"omitempty,min=6"`
	Pronouns *string `json:"pronouns"`
	Bio      *string `json:"bio" validate:"omitempty,max=500"`
	Role     *string `json:"role" validate:"omitempty,oneof=USER ADMIN"`
}

type UserService struct {
	repo       UserRepository
	signer     TokenSigner
	checker    PermissionChecker
	eventBus   events.Bus
	bcryptCost int
	logger     logger.Logger
}

func NewUserService(
	repo UserRepository,
	signer TokenSigner,
	checker PermissionChecker,
	eventBus events.Bus,
	bcryptCost int,
	logger logger.Logger,
) *UserService {
	return &UserService{
		repo:       repo,
		signer:     signer,
		checker:    checker,
		eventBus:   eventBus,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// CreateUser adds a user with any role and returns a credential for it.
// Granting a role other than USER needs the assign_role capability.
func (s *UserService) CreateUser(ctx context.Context, actor *auth.Principal, req CreateUserRequest) (*user.User, string, error) {
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		return nil, "", apperr.BadRequest("role must be one of: USER ADMIN")
	}
	if role != auth.RoleUser {
		if err := s.requireCapability(actor, rbac.ObjectUsers, rbac.ActionAssignRole, "Role changes require the assign_role capability"); err != nil {
			return nil, "", err
		}
	}

	newUser, err := user.NewUser(req.Username, req.Password, req.Email, req.Pronouns, role, s.bcryptCost)
	if err != nil {
		return nil, "", apperr.Internal(fmt.Errorf("failed to hash password: %w", err))
	}
	if err := s.repo.Create(ctx, newUser); err != nil {
		if database.IsDuplicate(err) {
			return nil, "", apperr.BadRequest("Username or email already in use")
		}
		return nil, "", apperr.Internal(err)
	}

	token, err := s.signer.Sign(newUser.Principal())
	if err != nil {
		return nil, "", apperr.Internal(fmt.Errorf("failed to sign token: %w", err))
	}

	s.publish(ctx, events.NewEventBuilder(events.UserRegistered).
		WithAggregate("user", newUser.ID).
		WithActor(actorName(actor)).
		WithPayload("username", newUser.Username).
		WithPayload("role", newUser.Role.String()).
		WithRequestID(requestid.FromContext(ctx)).
		Build())

	return newUser, token, nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]user.Profile, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	profiles := make([]user.Profile, len(users))
	for i, u := range users {
		profiles[i] = u.Profile()
	}
	return profiles, nil
}

func (s *UserService) GetUser(ctx context.Context, username string) (user.Profile, error) {
	u, err := s.find(ctx, username)
	if err != nil {
		return user.Profile{}, err
	}
	return u.Profile(), nil
}

// UpdateUser applies a partial update. A new password is hashed before it
// is stored.
func (s *UserService) UpdateUser(ctx context.Context, actor *auth.Principal, username string, req UpdateUserRequest) (user.Profile, error) {
	u, err := s.find(ctx, username)
	if err != nil {
		return user.Profile{}, err
	}

	if req.Role != nil {
		role, err := auth.ParseRole(*req.Role)
		if err != nil {
			return user.Profile{}, apperr.BadRequest("role must be one of: USER ADMIN")
		}
		if role != u.Role {
			if err := s.requireCapability(actor, rbac.ObjectUsers, rbac.ActionAssignRole, "Role changes require the assign_role capability"); err != nil {
				return user.Profile{}, err
			}
			u.Role = role
		}
	}
	if req.Email != nil {
		u.Email = req.Email
	}
	if req.Pronouns != nil {
		u.Pronouns = req.Pronouns
	}
	if req.Bio != nil {
		u.Bio = req.Bio
	}
	if req.Password != nil {
		if err := u.SetPassword(*req.Password, s.bcryptCost); err != nil {
			return user.Profile{}, apperr.Internal(fmt.Errorf("failed to hash password: %w", err))
		}
	}

	if err := s.repo.Update(ctx, u); err != nil {
		if database.IsDuplicate(err) {
			return user.Profile{}, apperr.BadRequest("Username or email already in use")
		}
		return user.Profile{}, apperr.Internal(err)
	}

	s.logger.Info("User updated", "username", u.Username, "actor", actorName(actor))
	return u.Profile(), nil
}

func (s *UserService) DeleteUser(ctx context.Context, actor *auth.Principal, username string) error {
	u, err := s.find(ctx, username)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, username); err != nil {
		if database.IsNotFound(err) {
			return apperr.NotFound("User not found")
		}
		return apperr.Internal(err)
	}

	s.publish(ctx, events.NewEventBuilder(events.UserDeleted).
		WithAggregate("user", u.ID).
		WithActor(actorName(actor)).
		WithPayload("username", username).
		WithRequestID(requestid.FromContext(ctx)).
		Build())
	return nil
}

func (s *UserService) find(ctx context.Context, username string) (*user.User, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, apperr.Internal(err)
	}
	return u, nil
}

func (s *UserService) requireCapability(actor *auth.Principal, object, action, message string) error {
	if actor == nil {
		return apperr.Unauthorized("")
	}
	allowed, err := s.checker.Can(actor.Role.String(), object, action)
	if err != nil {
		return apperr.Internal(err)
	}
	if !allowed {
		return apperr.Forbidden(message)
	}
	return nil
}

func (s *UserService) publish(ctx context.Context, event events.Event) {
	if err := s.eventBus.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish event", "error", err, "type", event.Type)
	}
}

func actorName(p *auth.Principal) string {
	if p == nil {
		return ""
	}
	return p.Username
}

package repository

import (
	"context"
	"fmt"

	"github.com/transconnect-go/internal/domain/user"
	"github.com/transconnect-go/pkg/database"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user. A taken username or email surfaces as
// gorm.ErrDuplicatedKey.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		return fmt.Errorf("create user %s: %w", u.Username, err)
	}
	return nil
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	var u user.User
	err := r.db.WithContext(ctx).
		Where("username = ?", username).
		First(&u).Error
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", username, err)
	}
	return &u, nil
}

// List returns every user ordered by username.
func (r *UserRepository) List(ctx context.Context) ([]*user.User, error) {
	var users []*user.User
	if err := r.db.WithContext(ctx).Order("username ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Update saves every column of an existing user.
func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	if err := r.db.WithContext(ctx).Save(u).Error; err != nil {
		return fmt.Errorf("update user %s: %w", u.Username, err)
	}
	return nil
}

// Delete removes a user by username. Posts and resources keep existing
// without an author; comments by the user lose their author.
func (r *UserRepository) Delete(ctx context.Context, username string) error {
	result := r.db.WithContext(ctx).
		Where("username = ?", username).
		Delete(&user.User{})
	if result.Error != nil {
		return fmt.Errorf("delete user %s: %w", username, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("delete user %s: %w", username, gorm.ErrRecordNotFound)
	}
	return nil
}

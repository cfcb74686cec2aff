package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/transconnect-go/internal/domain/resource"
	"github.com/transconnect-go/pkg/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrUnknownType matches every UnknownTypeError.
var ErrUnknownType = errors.New("unknown resource type")

// UnknownTypeError names a type that a resource refers to but that does
// not exist.
type UnknownTypeError struct {
	Name string
}

func (e *UnknownTypeError) Error() string {
	return ErrUnknownType.Error() + ": " + e.Name
}

func (e *UnknownTypeError) Is(target error) bool {
	return target == ErrUnknownType
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type ResourceRepository struct {
	db *database.DB
}

func NewResourceRepository(db *database.DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

// Filter narrows a resource listing. Empty fields match everything.
type Filter struct {
	SearchTerm string
	Type       string
}

// List returns resources ordered by name. SearchTerm matches a substring of
// the name regardless of case.
func (r *ResourceRepository) List(ctx context.Context, filter Filter) ([]resource.Resource, error) {
	query := r.db.WithContext(ctx).Preload("Types", func(db *gorm.DB) *gorm.DB {
		return db.Order("types.name ASC")
	})
	if filter.SearchTerm != "" {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(filter.SearchTerm)) + "%"
		query = query.Where(`LOWER(resources.name) LIKE ? ESCAPE '\'`, pattern)
	}
	if filter.Type != "" {
		query = query.Where("resources.id IN (?)", r.db.WithContext(ctx).
			Table("resource_types").
			Select("resource_types.resource_id").
			Joins("JOIN types ON types.id = resource_types.type_id").
			Where("types.name = ?", filter.Type))
	}

	var resources []resource.Resource
	if err := query.Order("resources.name ASC, resources.id ASC").Find(&resources).Error; err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	return resources, nil
}

func (r *ResourceRepository) GetByID(ctx context.Context, id uint) (*resource.Resource, error) {
	var res resource.Resource
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("Types", func(db *gorm.DB) *gorm.DB { return db.Order("types.name ASC") }).
		First(&res, id).Error
	if err != nil {
		return nil, fmt.Errorf("get resource %d: %w", id, err)
	}
	return &res, nil
}

// Create stores a resource filed under the named types, which must exist.
func (r *ResourceRepository) Create(ctx context.Context, res *resource.Resource, typeNames []string) error {
	return r.db.Transaction(ctx, func(tx *gorm.DB) error {
		types, err := findTypes(tx, typeNames)
		if err != nil {
			return err
		}
		res.Types = types
		if err := tx.Omit("User").Create(res).Error; err != nil {
			return fmt.Errorf("create resource: %w", err)
		}
		return nil
	})
}

// Update saves the resource's own columns and, when typeNames is non-nil,
// replaces its types.
func (r *ResourceRepository) Update(ctx context.Context, res *resource.Resource, typeNames []string) error {
	return r.db.Transaction(ctx, func(tx *gorm.DB) error {
		err := tx.Model(res).Updates(map[string]interface{}{
			"name":        res.Name,
			"description": res.Description,
			"url":         res.URL,
			"approved":    res.Approved,
		}).Error
		if err != nil {
			return fmt.Errorf("update resource %d: %w", res.ID, err)
		}
		if typeNames == nil {
			return nil
		}

		types, err := findTypes(tx, typeNames)
		if err != nil {
			return err
		}
		if err := tx.Model(res).Association("Types").Replace(types); err != nil {
			return fmt.Errorf("replace types of resource %d: %w", res.ID, err)
		}
		res.Types = types
		return nil
	})
}

func (r *ResourceRepository) Delete(ctx context.Context, id uint) error {
	return r.db.Transaction(ctx, func(tx *gorm.DB) error {
		result := tx.Select(clause.Associations).Delete(&resource.Resource{ID: id})
		if result.Error != nil {
			return fmt.Errorf("delete resource %d: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("delete resource %d: %w", id, gorm.ErrRecordNotFound)
		}
		return nil
	})
}

// ListTypes returns every type with the resources filed under it.
func (r *ResourceRepository) ListTypes(ctx context.Context) ([]resource.Type, error) {
	var types []resource.Type
	if err := r.db.WithContext(ctx).Preload("Resources").Order("name ASC").Find(&types).Error; err != nil {
		return nil, fmt.Errorf("list types: %w", err)
	}
	return types, nil
}

func (r *ResourceRepository) CreateType(ctx context.Context, t *resource.Type) error {
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("create type %s: %w", t.Name, err)
	}
	return nil
}

func findTypes(tx *gorm.DB, names []string) ([]resource.Type, error) {
	unique := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if !seen[name] {
			seen[name] = true
			unique = append(unique, name)
		}
	}
	if len(unique) == 0 {
		return []resource.Type{}, nil
	}

	var types []resource.Type
	if err := tx.Where("name IN ?", unique).Order("name ASC").Find(&types).Error; err != nil {
		return nil, fmt.Errorf("find types: %w", err)
	}
	if len(types) == len(unique) {
		return types, nil
	}

	found := make(map[string]bool, len(types))
	for _, t := range types {
		found[t.Name] = true
	}
	for _, name := range unique {
		if !found[name] {
			return nil, &UnknownTypeError{Name: name}
		}
	}
	return types, nil
}

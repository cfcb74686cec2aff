package repository

import (
	"context"
	"fmt"

	"github.com/transconnect-go/internal/domain/post"
	"github.com/transconnect-go/pkg/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostRepository struct {
	db *database.DB
}

func NewPostRepository(db *database.DB) *PostRepository {
	return &PostRepository{db: db}
}

func withDetails(db *gorm.DB) *gorm.DB {
	return db.Preload("User").Preload("Tags", func(db *gorm.DB) *gorm.DB {
		return db.Order("tags.name ASC")
	})
}

// Create stores a post and attaches its tags, creating tags that do not
// exist yet.
func (r *PostRepository) Create(ctx context.Context, p *post.Post, tagNames []string) error {
	return r.db.Transaction(ctx, func(tx *gorm.DB) error {
		tags, err := ensureTags(tx, tagNames)
		if err != nil {
			return err
		}
		p.Tags = tags
		if err := tx.Omit("User").Create(p).Error; err != nil {
			return fmt.Errorf("create post: %w", err)
		}
		return nil
	})
}

func ensureTags(tx *gorm.DB, names []string) ([]post.Tag, error) {
	tags := make([]post.Tag, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		// concurrent writers may insert the same name; the unique index decides
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).Create(&post.Tag{Name: name}).Error; err != nil {
			return nil, fmt.Errorf("ensure tag %s: %w", name, err)
		}
		var tag post.Tag
		if err := tx.Where("name = ?", name).First(&tag).Error; err != nil {
			return nil, fmt.Errorf("load tag %s: %w", name, err)
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// List returns posts newest first, optionally only those carrying tag.
func (r *PostRepository) List(ctx context.Context, tag string) ([]post.Post, error) {
	query := withDetails(r.db.WithContext(ctx)).Preload("Comments")
	if tag != "" {
		query = query.Where("posts.id IN (?)", r.db.WithContext(ctx).
			Table("post_tags").
			Select("post_tags.post_id").
			Joins("JOIN tags ON tags.id = post_tags.tag_id").
			Where("tags.name = ?", tag))
	}

	var posts []post.Post
	if err := query.Order("posts.created_at DESC, posts.id DESC").Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

// ListByUsername returns the posts written by username, newest first.
func (r *PostRepository) ListByUsername(ctx context.Context, username string) ([]post.Post, error) {
	var posts []post.Post
	err := withDetails(r.db.WithContext(ctx)).
		Joins("JOIN users ON users.id = posts.user_id").
		Where("users.username = ?", username).
		Order("posts.created_at DESC, posts.id DESC").
		Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("list posts of %s: %w", username, err)
	}
	return posts, nil
}

func (r *PostRepository) GetByID(ctx context.Context, id uint) (*post.Post, error) {
	var p post.Post
	if err := withDetails(r.db.WithContext(ctx)).First(&p, id).Error; err != nil {
		return nil, fmt.Errorf("get post %d: %w", id, err)
	}
	return &p, nil
}

// Update saves the post's own columns. When tagNames is non-nil the post's
// tags are replaced by exactly those names.
func (r *PostRepository) Update(ctx context.Context, p *post.Post, tagNames []string) error {
	return r.db.Transaction(ctx, func(tx *gorm.DB) error {
		err := tx.Model(p).
			Select("title", "content").
			Updates(map[string]interface{}{"title": p.Title, "content": p.Content}).Error
		if err != nil {
			return fmt.Errorf("update post %d: %w", p.ID, err)
		}
		if tagNames == nil {
			return nil
		}

		tags, err := ensureTags(tx, tagNames)
		if err != nil {
			return err
		}
		if err := tx.Model(p).Association("Tags").Replace(tags); err != nil {
			return fmt.Errorf("replace tags of post %d: %w", p.ID, err)
		}
		p.Tags = tags
		return nil
	})
}

// Delete removes a post together with its comments and tag links.
func (r *PostRepository) Delete(ctx context.Context, id uint) error {
	return r.db.Transaction(ctx, func(tx *gorm.DB) error {
		p := post.Post{ID: id}
		result := tx.Select(clause.Associations).Delete(&p)
		if result.Error != nil {
			return fmt.Errorf("delete post %d: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("delete post %d: %w", id, gorm.ErrRecordNotFound)
		}
		return nil
	})
}

// ListTags returns every tag with the posts filed under it.
func (r *PostRepository) ListTags(ctx context.Context) ([]post.Tag, error) {
	var tags []post.Tag
	if err := r.db.WithContext(ctx).Preload("Posts").Order("name ASC").Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return tags, nil
}

func (r *PostRepository) CreateComment(ctx context.Context, c *post.Comment) error {
	if err := r.db.WithContext(ctx).Omit("Author").Create(c).Error; err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

// ListComments returns a post's comments oldest first with their authors.
func (r *PostRepository) ListComments(ctx context.Context, postID uint) ([]post.Comment, error) {
	var comments []post.Comment
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("post_id = ?", postID).
		Order("created_at ASC, id ASC").
		Find(&comments).Error
	if err != nil {
		return nil, fmt.Errorf("list comments of post %d: %w", postID, err)
	}
	return comments, nil
}

func (r *PostRepository) GetComment(ctx context.Context, id uint) (*post.Comment, error) {
	var c post.Comment
	if err := r.db.WithContext(ctx).Preload("Author").First(&c, id).Error; err != nil {
		return nil, fmt.Errorf("get comment %d: %w", id, err)
	}
	return &c, nil
}

func (r *PostRepository) UpdateComment(ctx context.Context, c *post.Comment) error {
	if err := r.db.WithContext(ctx).Model(c).Update("content", c.Content).Error; err != nil {
		return fmt.Errorf("update comment %d: %w", c.ID, err)
	}
	return nil
}

func (r *PostRepository) DeleteComment(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&post.Comment{}, id)
	if result.Error != nil {
		return fmt.Errorf("delete comment %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("delete comment %d: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

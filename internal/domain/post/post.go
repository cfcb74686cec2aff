package post

import (
	"time"

	"github.com/transconnect-go/internal/domain/user"
)

type Post struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	Title     string     `json:"title" gorm:"not null"`
	Content   string     `json:"content" gorm:"type:text;not null"`
	UserID    *uint      `json:"userId" gorm:"index"`
	User      *user.User `json:"user,omitempty" gorm:"constraint:OnDelete:SET NULL"`
	Tags      []Tag      `json:"tags" gorm:"many2many:post_tags"`
	Comments  []Comment  `json:"comments,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

type Tag struct {
	ID    uint   `json:"id" gorm:"primaryKey"`
	Name  string `json:"name" gorm:"uniqueIndex;not null"`
	Posts []Post `json:"posts,omitempty" gorm:"many2many:post_tags"`
}

type Comment struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	Content   string     `json:"content" gorm:"type:text;not null"`
	PostID    uint       `json:"postId" gorm:"not null;index"`
	AuthorID  *uint      `json:"authorId" gorm:"index"`
	Author    *user.User `json:"author,omitempty" gorm:"constraint:OnDelete:SET NULL"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// OwnerID returns the author's id, or zero when the post has no author.
func (p *Post) OwnerID() uint {
	if p.UserID == nil {
		return 0
	}
	return *p.UserID
}

// OwnerUsername returns the author's username when the author is loaded.
func (p *Post) OwnerUsername() string {
	if p.User == nil {
		return ""
	}
	return p.User.Username
}

// TagNames returns the names of the post's tags in order.
func (p *Post) TagNames() []string {
	names := make([]string, len(p.Tags))
	for i, t := range p.Tags {
		names[i] = t.Name
	}
	return names
}

package resource

import (
	"time"

	"github.com/transconnect-go/internal/domain/user"
)

// Resource is a community-submitted link that admins approve before it is
// featured.
type Resource struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	Name        string     `json:"name" gorm:"not null;index"`
	Description string     `json:"description" gorm:"type:text"`
	URL         string     `json:"url"`
	Approved    bool       `json:"approved" gorm:"not null;default:false"`
	UserID      *uint      `json:"userId" gorm:"index"`
	User        *user.User `json:"user,omitempty" gorm:"constraint:OnDelete:SET NULL"`
	Types       []Type     `json:"types" gorm:"many2many:resource_types"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Type is a category a resource can be filed under.
type Type struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	Name      string     `json:"name" gorm:"uniqueIndex;not null"`
	Resources []Resource `json:"resources,omitempty" gorm:"many2many:resource_types"`
}

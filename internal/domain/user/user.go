package user

import (
	"time"

	"github.com/transconnect-go/internal/domain/auth"
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the work factor used when hashing passwords.
const DefaultBcryptCost = 12

type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Username  string    `json:"username" gorm:"uniqueIndex;not null"`
	Email     *string   `json:"email" gorm:"uniqueIndex"`
	Password  string    `json:"-" gorm:"not null"`
	Pronouns  *string   `json:"pronouns"`
	Bio       *string   `json:"bio"`
	Role      auth.Role `json:"role" gorm:"not null;default:'USER'"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewUser creates a user with a hashed password. An empty role defaults to USER.
func NewUser(username, password string, email, pronouns *string, role auth.Role, cost int) (*User, error) {
	if role == "" {
		role = auth.RoleUser
	}
	u := &User{
		Username: username,
		Email:    email,
		Pronouns: pronouns,
		Role:     role,
	}
	if err := u.SetPassword(password, cost); err != nil {
		return nil, err
	}
	return u, nil
}

// CheckPassword verifies the password
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
	return err == nil
}

// SetPassword hashes and stores a new password.
func (u *User) SetPassword(password string, cost int) error {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

// Principal returns the identity a credential issued for u carries.
func (u *User) Principal() auth.Principal {
	return auth.Principal{
		Username: u.Username,
		Role:     u.Role,
		UserID:   u.ID,
	}
}

// Profile is the public view of a user.
type Profile struct {
	Username string    `json:"username"`
	Email    *string   `json:"email"`
	Pronouns *string   `json:"pronouns"`
	Bio      *string   `json:"bio,omitempty"`
	Role     auth.Role `json:"role"`
}

func (u *User) Profile() Profile {
	return Profile{
		Username: u.Username,
		Email:    u.Email,
		Pronouns: u.Pronouns,
		Bio:      u.Bio,
		Role:     u.Role,
	}
}

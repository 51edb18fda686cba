package user

import "github.com/crjyouth/libris/internal/database"

// User represents a registered library member.
type User struct {
	database.BaseModel
	UserID       int    `gorm:"uniqueIndex;not null" json:"user_id"`
	FirstName    string `gorm:"size:30;not null" json:"first_name"`
	LastName     string `gorm:"size:30;not null" json:"last_name"`
	Email        string `gorm:"size:120;uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`
	IsActive     bool   `gorm:"default:true" json:"is_active"`
	IsAdmin      bool   `gorm:"default:false" json:"is_admin"`
}

// TableName overrides the table name
func (User) TableName() string {
	return "users"
}

// FullName returns the display name.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// Role returns the role label used in access tokens.
func (u *User) Role() string {
	if u.IsAdmin {
		return "admin"
	}
	return "member"
}

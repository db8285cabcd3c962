package users

import (
	"strings"
)

// RoleUser is the default, ownership-scoped role.
const RoleUser = "user"

// User is the owner side of every primary record.
type User struct {
	ID               string `gorm:"column:id;primaryKey;size:190;not null" json:"_id"`
	FirstName        string `gorm:"column:first_name;size:190;not null;default:''" json:"firstName"`
	LastName         string `gorm:"column:last_name;size:190;not null;default:''" json:"lastName"`
	Email            string `gorm:"column:email;size:320;not null;default:'';index" json:"email"`
	Role             string `gorm:"column:role;size:32;not null;default:'user'" json:"role"`
	Deleted          bool   `gorm:"column:deleted;not null;default:false" json:"deleted"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null" json:"createdAt"`
}

// TableName exposes the table backing users.
func (User) TableName() string {
	return "users"
}

// normalize value helper used across service implementation.
func normalize(value string) string {
	return strings.TrimSpace(value)
}

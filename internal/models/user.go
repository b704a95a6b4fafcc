// Package models contains the persisted domain types and the shared error type.
package models

import "time"

// UserStatus is the lifecycle state of an account.
type UserStatus string

const (
	UserActive      UserStatus = "active"
	UserDeactivated UserStatus = "deactivated"
)

// User represents an account. Users are never hard-deleted; staff deactivate them.
type User struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Username   string     `gorm:"uniqueIndex;size:150;not null" json:"username"`
	Email      string     `gorm:"uniqueIndex;size:254;not null" json:"email"`
	Password   string     `gorm:"not null" json:"-"`
	FirstName  string     `gorm:"size:150" json:"first_name"`
	LastName   string     `gorm:"size:150" json:"last_name"`
	Bio        string     `gorm:"type:text" json:"bio"`
	Image      string     `json:"image"`
	IsStaff    bool       `gorm:"not null;default:false" json:"is_staff"`
	Status     UserStatus `gorm:"size:16;not null;default:active;index" json:"-"`
	DateJoined time.Time  `gorm:"autoCreateTime" json:"date_joined"`
	UpdatedAt  time.Time  `json:"updated_at"`

	Posts []Post `gorm:"foreignKey:AuthorID" json:"-"`
}

// IsActive reports whether the account may be listed, retrieved and used.
func (u *User) IsActive() bool {
	return u.Status == "" || u.Status == UserActive
}

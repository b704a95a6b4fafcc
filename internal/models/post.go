package models

import "time"

// Post is a piece of content authored by a user. Deleting a post removes its
// comments and every reaction on the post or those comments.
type Post struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Description string    `gorm:"type:text;not null" json:"description"`
	Image       string    `json:"image"`
	AuthorID    uint      `gorm:"not null;index" json:"author_id"`
	Author      User      `gorm:"foreignKey:AuthorID" json:"-"`
	Comments    []Comment `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

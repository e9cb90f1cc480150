// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Post is a short emoji-only message authored by a user of the identity directory.
// Posts are never updated after creation.
type Post struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	AuthorID  string    `gorm:"not null;index:idx_posts_author_created,priority:1" json:"author_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"not null;index;index:idx_posts_author_created,priority:2" json:"created_at"`
}

// BeforeCreate assigns a random id when the caller did not provide one.
func (p *Post) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// LikedPost records that a user liked a post.
// The combination of PostID and UserID is unique.
type LikedPost struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	PostID    string    `gorm:"not null;size:1000;uniqueIndex:idx_liked_post_user" json:"post_id"`
	UserID    string    `gorm:"not null;uniqueIndex:idx_liked_post_user;index" json:"user_id"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

// PostWithLikes is a post plus its like count at query time.
type PostWithLikes struct {
	Post
	LikeCount int `json:"like_count"`
}

// EnrichedPost is the read model returned by every feed query. It is never persisted.
type EnrichedPost struct {
	Post          PostWithLikes `json:"post"`
	Author        AuthorProfile `json:"author"`
	IsLikedByUser bool          `json:"is_liked_by_user"`
}

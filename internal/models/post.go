package models

import (
	"time"

	"gorm.io/gorm"
)

// PostKind distinguishes plain text posts from image posts
type PostKind string

const (
	PostKindText  PostKind = "text"
	PostKindImage PostKind = "image"
)

// MaxPostContentLength bounds the text body of a post
const MaxPostContentLength = 2000

// Post represents a feed entry owned by a user. Like membership lives in
// post_likes; LikeCount and CommentCount are denormalized and updated in
// the same transaction as the row they mirror.
type Post struct {
	ID     string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID string `gorm:"not null;index:idx_posts_user_created,priority:1" json:"user_id"`
	User   User   `gorm:"foreignKey:UserID" json:"user,omitempty"`

	Kind     PostKind `gorm:"type:varchar(10);not null;default:text" json:"kind"`
	Content  string   `gorm:"type:varchar(2000)" json:"content"`
	ImageURL string   `json:"image_url,omitempty"`

	// Denormalized engagement counters
	LikeCount    int `gorm:"default:0" json:"like_count"`
	CommentCount int `gorm:"default:0" json:"comment_count"`
	ShareCount   int `gorm:"default:0" json:"share_count"`

	// GORM fields
	CreatedAt time.Time      `gorm:"index:idx_posts_user_created,priority:2,sort:desc" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// PostLike is one user's like on one post. The composite unique index is
// what makes the like toggle idempotent under retries.
type PostLike struct {
	ID     string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	PostID string `gorm:"not null;uniqueIndex:idx_post_like_pair,priority:1" json:"post_id"`
	Post   Post   `gorm:"foreignKey:PostID" json:"-"`
	UserID string `gorm:"not null;uniqueIndex:idx_post_like_pair,priority:2;index" json:"user_id"`
	User   User   `gorm:"foreignKey:UserID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

func (PostLike) TableName() string {
	return "post_likes"
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = generateUUID()
	}
	if p.Kind == "" {
		p.Kind = PostKindText
	}
	return nil
}

func (l *PostLike) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = generateUUID()
	}
	return nil
}

package models

import (
	"time"

	"gorm.io/gorm"
)

// MaxCommentContentLength bounds the text body of a comment
const MaxCommentContentLength = 500

// Comment represents a comment on a Post. Nesting is capped at one level:
// ParentID is nil for top-level comments and always points at a top-level
// comment for replies (a reply to a reply is reparented on create).
type Comment struct {
	ID     string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	PostID string `gorm:"not null;index" json:"post_id"`
	Post   Post   `gorm:"foreignKey:PostID" json:"-"`
	UserID string `gorm:"not null;index" json:"user_id"`
	User   User   `gorm:"foreignKey:UserID" json:"user,omitempty"`

	Content string `gorm:"type:varchar(500);not null" json:"content"`

	ParentID *string    `gorm:"type:uuid;index" json:"parent_id,omitempty"`
	Parent   *Comment   `gorm:"foreignKey:ParentID" json:"-"`
	Replies  []*Comment `gorm:"foreignKey:ParentID" json:"replies,omitempty"`

	// Denormalized engagement counters
	LikeCount  int `gorm:"default:0" json:"like_count"`
	ReplyCount int `gorm:"default:0" json:"reply_count"`

	// Edit tracking
	IsEdited bool       `gorm:"default:false" json:"is_edited"`
	EditedAt *time.Time `json:"edited_at,omitempty"`

	// GORM fields
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// CommentLike is one user's like on one comment
type CommentLike struct {
	ID        string  `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	CommentID string  `gorm:"not null;uniqueIndex:idx_comment_like_pair,priority:1" json:"comment_id"`
	Comment   Comment `gorm:"foreignKey:CommentID" json:"-"`
	UserID    string  `gorm:"not null;uniqueIndex:idx_comment_like_pair,priority:2;index" json:"user_id"`
	User      User    `gorm:"foreignKey:UserID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

func (CommentLike) TableName() string {
	return "comment_likes"
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = generateUUID()
	}
	return nil
}

func (l *CommentLike) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = generateUUID()
	}
	return nil
}

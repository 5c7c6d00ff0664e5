package models

import (
	"time"

	"gorm.io/gorm"
)

// NotificationType identifies what the actor did
type NotificationType string

const (
	NotificationLike        NotificationType = "like"
	NotificationLikeComment NotificationType = "like_comment"
	NotificationComment     NotificationType = "comment"
	NotificationReply       NotificationType = "reply"
	NotificationFollow      NotificationType = "follow"
)

// Notification is the durable record of an interaction aimed at UserID.
// Created as a side effect of like/comment/reply/follow, never for
// self-actions. Only the Read flag is ever updated; rows are never deleted
// in normal flow.
type Notification struct {
	ID      string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID  string `gorm:"not null;index:idx_notifications_user_created,priority:1" json:"user_id"`
	User    User   `gorm:"foreignKey:UserID" json:"-"`
	ActorID string `gorm:"not null;index" json:"actor_id"`
	Actor   User   `gorm:"foreignKey:ActorID" json:"actor,omitempty"`

	Type NotificationType `gorm:"type:varchar(20);not null" json:"type"`

	// Optional targets, depending on Type
	PostID    *string `gorm:"type:uuid;index" json:"post_id,omitempty"`
	CommentID *string `gorm:"type:uuid;index" json:"comment_id,omitempty"`

	Read bool `gorm:"default:false" json:"read"`

	CreatedAt time.Time      `gorm:"index:idx_notifications_user_created,priority:2,sort:desc" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = generateUUID()
	}
	return nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultAvatarURL is used until the user uploads their own avatar.
const DefaultAvatarURL = "https://ui-avatars.com/api/?background=random"

// User represents an account. Follower/following membership lives in the
// follows table; the counts here are denormalized and kept in sync inside
// the same transaction as the follow row (see handlers.ToggleFollow).
type User struct {
	ID       string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Username string `gorm:"uniqueIndex;not null" json:"username"`
	Name     string `gorm:"not null" json:"name"`
	Bio      string `gorm:"type:varchar(200)" json:"bio"`

	// Native auth fields
	PasswordHash *string `gorm:"type:text" json:"-"`

	// OAuth provider ID (nullable - users can have native accounts)
	GoogleID *string `gorm:"uniqueIndex" json:"-"`

	// Two-factor authentication
	TwoFactorEnabled bool    `gorm:"default:false" json:"two_factor_enabled"`
	TOTPSecret       *string `gorm:"type:text" json:"-"`

	// Profile data
	AvatarURL string `json:"avatar_url"`

	// Denormalized social stats
	FollowerCount  int `gorm:"default:0" json:"follower_count"`
	FollowingCount int `gorm:"default:0" json:"following_count"`
	PostCount      int `gorm:"default:0" json:"post_count"`

	// Activity tracking
	LastActiveAt *time.Time `json:"last_active_at"`
	IsOnline     bool       `gorm:"default:false" json:"is_online"`

	// GORM fields
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// PublicProfile is the user shape embedded in posts, comments, search
// results and notifications. Never carries credentials.
type PublicProfile struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	Name           string `json:"name"`
	AvatarURL      string `json:"avatar_url"`
	Bio            string `json:"bio,omitempty"`
	FollowerCount  int    `json:"follower_count"`
	FollowingCount int    `json:"following_count"`
	PostCount      int    `json:"post_count"`
	IsOnline       bool   `json:"is_online"`
}

// PublicProfile returns the externally visible view of the user
func (u *User) PublicProfile() PublicProfile {
	return PublicProfile{
		ID:             u.ID,
		Username:       u.Username,
		Name:           u.Name,
		AvatarURL:      u.AvatarURL,
		Bio:            u.Bio,
		FollowerCount:  u.FollowerCount,
		FollowingCount: u.FollowingCount,
		PostCount:      u.PostCount,
		IsOnline:       u.IsOnline,
	}
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = generateUUID()
	}
	if u.AvatarURL == "" {
		u.AvatarURL = DefaultAvatarURL
	}
	return nil
}

// Helper function for UUID generation
func generateUUID() string {
	return uuid.New().String()
}

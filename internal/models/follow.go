package models

import (
	"time"

	"gorm.io/gorm"
)

// Follow is a directed edge in the social graph: FollowerID follows
// FollowingID. The composite unique index prevents duplicate edges; the
// self-edge is rejected at the handler level. The edge row and both users'
// denormalized counters are written in one transaction.
type Follow struct {
	ID          string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	FollowerID  string `gorm:"not null;uniqueIndex:idx_follower_following,priority:1;index" json:"follower_id"`
	Follower    User   `gorm:"foreignKey:FollowerID" json:"-"`
	FollowingID string `gorm:"not null;uniqueIndex:idx_follower_following,priority:2;index" json:"following_id"`
	Following   User   `gorm:"foreignKey:FollowingID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

func (f *Follow) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = generateUUID()
	}
	return nil
}

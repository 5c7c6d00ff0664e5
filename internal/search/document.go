package search

import (
	"github.com/socialfeed/backend/internal/models"
)

// UserSearchDoc represents a user document for Elasticsearch indexing
type UserSearchDoc struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Name          string `json:"name"`
	Bio           string `json:"bio"`
	FollowerCount int    `json:"follower_count"`
	CreatedAt     string `json:"created_at"`
}

// UserToSearchDoc converts a User model to a search document
func UserToSearchDoc(user models.User) map[string]interface{} {
	return map[string]interface{}{
		"id":             user.ID,
		"username":       user.Username,
		"name":           user.Name,
		"bio":            user.Bio,
		"follower_count": user.FollowerCount,
		"created_at":     user.CreatedAt,
	}
}

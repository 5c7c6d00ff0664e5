package util

import (
	"github.com/gin-gonic/gin"
	"github.com/socialfeed/backend/internal/models"
)

// OptionalIdentity is the viewer identity on endpoints that work with or
// without authentication (profile view, user search, single post). Present
// is false for anonymous requests; handlers branch on it explicitly instead
// of swallowing token errors.
type OptionalIdentity struct {
	UserID  string
	Present bool
}

// GetUserFromContext extracts the authenticated user from the Gin context.
// Responds 401 and returns false if the request is not authenticated.
func GetUserFromContext(c *gin.Context) (*models.User, bool) {
	user, exists := c.Get("user")
	if !exists {
		RespondUnauthorized(c)
		return nil, false
	}
	userPtr, ok := user.(*models.User)
	if !ok {
		RespondInternalError(c, "invalid user data in context")
		return nil, false
	}
	return userPtr, true
}

// GetUserIDFromContext extracts the user ID from the Gin context.
// Responds 401 and returns false if the request is not authenticated.
func GetUserIDFromContext(c *gin.Context) (string, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		RespondUnauthorized(c)
		return "", false
	}
	userIDStr, ok := userID.(string)
	if !ok {
		RespondInternalError(c, "invalid user ID in context")
		return "", false
	}
	return userIDStr, true
}

// GetOptionalIdentity reads the viewer identity set by the optional auth
// middleware. Never writes a response.
func GetOptionalIdentity(c *gin.Context) OptionalIdentity {
	userID, exists := c.Get("user_id")
	if !exists {
		return OptionalIdentity{}
	}
	userIDStr, ok := userID.(string)
	if !ok || userIDStr == "" {
		return OptionalIdentity{}
	}
	return OptionalIdentity{UserID: userIDStr, Present: true}
}

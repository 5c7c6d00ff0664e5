package auth

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/socialfeed/backend/internal/util"
)

// Middleware validates the bearer token and loads the user into the
// request context. Aborts with 401 when the token is missing or invalid.
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			util.RespondUnauthorized(c, "no token provided")
			c.Abort()
			return
		}

		user, err := s.ValidateToken(tokenString)
		if err != nil {
			util.RespondUnauthorized(c, "invalid token")
			c.Abort()
			return
		}

		c.Set("user_id", user.ID)
		c.Set("user", user)
		c.Next()
	}
}

// OptionalMiddleware loads the viewer identity when a valid token is
// present and continues anonymously otherwise. Endpoints behind it read
// the result through util.GetOptionalIdentity, so the anonymous path is a
// visible branch rather than a swallowed error.
func (s *Service) OptionalMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString != "" {
			if user, err := s.ValidateToken(tokenString); err == nil {
				c.Set("user_id", user.ID)
				c.Set("user", user)
			}
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

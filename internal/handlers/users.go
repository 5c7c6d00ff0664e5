package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/socialfeed/backend/internal/database"
	"github.com/socialfeed/backend/internal/logger"
	"github.com/socialfeed/backend/internal/models"
	"github.com/socialfeed/backend/internal/notify"
	"github.com/socialfeed/backend/internal/search"
	"github.com/socialfeed/backend/internal/storage"
	"github.com/socialfeed/backend/internal/telemetry"
	"github.com/socialfeed/backend/internal/util"
	"github.com/socialfeed/backend/internal/websocket"
	"gorm.io/gorm"
)

// SearchUsers finds users by username, name or bio. Elasticsearch serves
// the query when available; otherwise a database ILIKE scan fills in.
// GET /api/v1/users/search?q=...
func (h *Handlers) SearchUsers(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		util.RespondValidationError(c, "q", "Search query is required")
		return
	}

	page, limit, offset := util.ParsePage(c.Query("page"), c.Query("limit"), 20, 100)

	fallbackUsed := false
	var hits []search.UserSearchHit
	var total int

	if h.search != nil {
		result, err := h.search.SearchUsers(c.Request.Context(), query, limit, offset)
		if err == nil {
			hits = result.Users
			total = result.Total
		} else {
			logger.WarnWithFields("Elasticsearch user search failed, falling back to database", err)
			fallbackUsed = true
		}
	} else {
		fallbackUsed = true
	}

	if fallbackUsed {
		pattern := "%" + query + "%"

		var count int64
		if err := database.DB.Model(&models.User{}).
			Where("username ILIKE ? OR name ILIKE ? OR bio ILIKE ?", pattern, pattern, pattern).
			Count(&count).Error; err != nil {
			util.RespondInternalError(c, "Search failed")
			return
		}
		total = int(count)

		var users []models.User
		if err := database.DB.
			Where("username ILIKE ? OR name ILIKE ? OR bio ILIKE ?", pattern, pattern, pattern).
			Order("follower_count DESC").
			Limit(limit).
			Offset(offset).
			Find(&users).Error; err != nil {
			util.RespondInternalError(c, "Search failed")
			return
		}

		hits = make([]search.UserSearchHit, 0, len(users))
		for _, user := range users {
			hits = append(hits, search.UserSearchHit{
				ID:            user.ID,
				Username:      user.Username,
				Name:          user.Name,
				Bio:           user.Bio,
				FollowerCount: user.FollowerCount,
			})
		}
	}

	_, span := telemetry.GetBusinessEvents().TraceSearch(c.Request.Context(), telemetry.SearchEventAttrs{
		Query:        query,
		Index:        search.IndexUsers,
		ResultCount:  int64(len(hits)),
		FallbackUsed: fallbackUsed,
	})
	span.End()

	c.JSON(http.StatusOK, gin.H{
		"users": hits,
		"meta": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// GetUserProfile returns a user's public profile with viewer follow state
// GET /api/v1/users/:id
func (h *Handlers) GetUserProfile(c *gin.Context) {
	targetID := c.Param("id")
	identity := util.GetOptionalIdentity(c)

	var user models.User
	if err := database.DB.First(&user, "id = ?", targetID).Error; err != nil {
		util.RespondNotFound(c, "user")
		return
	}

	isFollowing := false
	if identity.Present && identity.UserID != targetID {
		var count int64
		database.DB.Model(&models.Follow{}).
			Where("follower_id = ? AND following_id = ?", identity.UserID, targetID).
			Count(&count)
		isFollowing = count > 0
	}

	c.JSON(http.StatusOK, gin.H{
		"user":         user.PublicProfile(),
		"is_following": isFollowing,
	})
}

// UpdateProfile updates the viewer's name, bio and avatar
// PUT /api/v1/users/me
func (h *Handlers) UpdateProfile(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	updates := map[string]interface{}{}

	contentType := c.GetHeader("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if name := c.PostForm("name"); name != "" {
			updates["name"] = name
		}
		if bio, present := c.GetPostForm("bio"); present {
			updates["bio"] = bio
		}

		fileHeader, err := c.FormFile("avatar")
		if err == nil {
			if h.uploader == nil {
				util.RespondInternalError(c, "Image uploads are not configured")
				return
			}
			if fileHeader.Size > storage.MaxImageSize {
				util.RespondValidationError(c, "avatar", "Avatar must be 5MB or smaller")
				return
			}

			file, err := fileHeader.Open()
			if err != nil {
				util.RespondBadRequest(c, "Failed to read avatar")
				return
			}
			defer file.Close()

			data, err := io.ReadAll(file)
			if err != nil {
				util.RespondBadRequest(c, "Failed to read avatar")
				return
			}

			result, err := h.uploader.UploadImage(c.Request.Context(), data, user.ID, fileHeader.Filename, "avatars")
			if err != nil {
				util.RespondValidationError(c, "avatar", err.Error())
				return
			}
			updates["avatar_url"] = result.URL
		}
	} else {
		var req struct {
			Name *string `json:"name,omitempty"`
			Bio  *string `json:"bio,omitempty"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			util.RespondBadRequest(c, err.Error())
			return
		}
		if req.Name != nil {
			updates["name"] = *req.Name
		}
		if req.Bio != nil {
			updates["bio"] = *req.Bio
		}
	}

	if bio, ok := updates["bio"].(string); ok && len(bio) > 200 {
		util.RespondValidationError(c, "bio", "Bio must be 200 characters or fewer")
		return
	}
	if len(updates) == 0 {
		util.RespondBadRequest(c, "No fields to update")
		return
	}

	if err := database.DB.Model(user).Updates(updates).Error; err != nil {
		util.RespondInternalError(c, "Failed to update profile")
		return
	}

	h.indexUserAsync(user.ID)

	var updated models.User
	if err := database.DB.First(&updated, "id = ?", user.ID).Error; err != nil {
		util.RespondInternalError(c, "Failed to load profile")
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": updated})
}

// FollowUser toggles the viewer's follow edge to another user. The edge
// row and both follower counters move in one transaction.
// POST /api/v1/users/:id/follow
func (h *Handlers) FollowUser(c *gin.Context) {
	targetID := c.Param("id")
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	if targetID == userID {
		util.RespondValidationError(c, "id", "You cannot follow yourself")
		return
	}

	var target models.User
	if err := database.DB.First(&target, "id = ?", targetID).Error; err != nil {
		util.RespondNotFound(c, "user")
		return
	}

	ctx, span := telemetry.GetBusinessEvents().TraceFollowUser(c.Request.Context(), userID, targetID)
	defer span.End()
	_ = ctx

	var existing models.Follow
	err := database.DB.Where("follower_id = ? AND following_id = ?", userID, targetID).First(&existing).Error

	following := false
	newFollowerCount := target.FollowerCount

	if err == nil {
		// Already following: unfollow
		txErr := database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Delete(&existing).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.User{}).Where("id = ?", targetID).
				UpdateColumn("follower_count", gorm.Expr("GREATEST(follower_count - 1, 0)")).Error; err != nil {
				return err
			}
			return tx.Model(&models.User{}).Where("id = ?", userID).
				UpdateColumn("following_count", gorm.Expr("GREATEST(following_count - 1, 0)")).Error
		})
		if txErr != nil {
			util.RespondInternalError(c, "Failed to unfollow user")
			return
		}
		newFollowerCount--
		if newFollowerCount < 0 {
			newFollowerCount = 0
		}
	} else {
		follow := models.Follow{FollowerID: userID, FollowingID: targetID}
		txErr := database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&follow).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.User{}).Where("id = ?", targetID).
				UpdateColumn("follower_count", gorm.Expr("follower_count + 1")).Error; err != nil {
				return err
			}
			return tx.Model(&models.User{}).Where("id = ?", userID).
				UpdateColumn("following_count", gorm.Expr("following_count + 1")).Error
		})
		if txErr != nil {
			util.RespondInternalError(c, "Failed to follow user")
			return
		}
		following = true
		newFollowerCount++

		if err := h.notifier.Notify(notify.Event{
			RecipientID: targetID,
			ActorID:     userID,
			Type:        models.NotificationFollow,
		}); err != nil {
			logger.WarnWithFields("Failed to create follow notification", err)
		}

		if h.wsHandler != nil {
			go func() {
				var follower models.User
				if err := database.DB.First(&follower, "id = ?", userID).Error; err == nil {
					h.wsHandler.NotifyFollow(targetID, &websocket.FollowPayload{
						FollowerID:     userID,
						FollowerName:   follower.Username,
						FollowerAvatar: follower.AvatarURL,
						FolloweeID:     targetID,
						FollowerCount:  newFollowerCount,
					})
				}
			}()
		}
	}

	h.indexUserAsync(targetID)

	c.JSON(http.StatusOK, gin.H{
		"following":      following,
		"follower_count": newFollowerCount,
	})
}

// GetFollowers lists users following the given user
// GET /api/v1/users/:id/followers
func (h *Handlers) GetFollowers(c *gin.Context) {
	targetID := c.Param("id")
	page, limit, offset := util.ParsePage(c.Query("page"), c.Query("limit"), 20, 100)

	var user models.User
	if err := database.DB.First(&user, "id = ?", targetID).Error; err != nil {
		util.RespondNotFound(c, "user")
		return
	}

	var followers []models.User
	if err := database.DB.
		Joins("JOIN follows ON follows.follower_id = users.id").
		Where("follows.following_id = ?", targetID).
		Order("follows.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&followers).Error; err != nil {
		util.RespondInternalError(c, "Failed to load followers")
		return
	}

	profiles := make([]models.PublicProfile, 0, len(followers))
	for _, follower := range followers {
		profiles = append(profiles, follower.PublicProfile())
	}

	c.JSON(http.StatusOK, gin.H{
		"followers": profiles,
		"meta": gin.H{
			"page":  page,
			"limit": limit,
			"total": user.FollowerCount,
		},
	})
}

// GetFollowing lists users the given user follows
// GET /api/v1/users/:id/following
func (h *Handlers) GetFollowing(c *gin.Context) {
	targetID := c.Param("id")
	page, limit, offset := util.ParsePage(c.Query("page"), c.Query("limit"), 20, 100)

	var user models.User
	if err := database.DB.First(&user, "id = ?", targetID).Error; err != nil {
		util.RespondNotFound(c, "user")
		return
	}

	var following []models.User
	if err := database.DB.
		Joins("JOIN follows ON follows.following_id = users.id").
		Where("follows.follower_id = ?", targetID).
		Order("follows.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&following).Error; err != nil {
		util.RespondInternalError(c, "Failed to load following")
		return
	}

	profiles := make([]models.PublicProfile, 0, len(following))
	for _, followed := range following {
		profiles = append(profiles, followed.PublicProfile())
	}

	c.JSON(http.StatusOK, gin.H{
		"following": profiles,
		"meta": gin.H{
			"page":  page,
			"limit": limit,
			"total": user.FollowingCount,
		},
	})
}

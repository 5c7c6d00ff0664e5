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
	"github.com/socialfeed/backend/internal/storage"
	"github.com/socialfeed/backend/internal/telemetry"
	"github.com/socialfeed/backend/internal/util"
	"github.com/socialfeed/backend/internal/websocket"
	"gorm.io/gorm"
)

// CreatePost creates a text post, or an image post when multipart form
// data carries an "image" file.
// POST /api/v1/posts
func (h *Handlers) CreatePost(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var content string
	var imageURL string
	kind := models.PostKindText

	contentType := c.GetHeader("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		content = c.PostForm("content")

		fileHeader, err := c.FormFile("image")
		if err == nil {
			if h.uploader == nil {
				util.RespondInternalError(c, "Image uploads are not configured")
				return
			}
			if fileHeader.Size > storage.MaxImageSize {
				util.RespondValidationError(c, "image", "Image must be 5MB or smaller")
				return
			}

			file, err := fileHeader.Open()
			if err != nil {
				util.RespondBadRequest(c, "Failed to read image")
				return
			}
			defer file.Close()

			data, err := io.ReadAll(file)
			if err != nil {
				util.RespondBadRequest(c, "Failed to read image")
				return
			}

			result, err := h.uploader.UploadImage(c.Request.Context(), data, userID, fileHeader.Filename, "posts")
			if err != nil {
				logger.WarnWithFields("Image upload failed", err)
				util.RespondValidationError(c, "image", err.Error())
				return
			}
			imageURL = result.URL
			kind = models.PostKindImage
		}
	} else {
		var req struct {
			Content string `json:"content"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			util.RespondBadRequest(c, err.Error())
			return
		}
		content = req.Content
	}

	content = strings.TrimSpace(content)
	if content == "" && imageURL == "" {
		util.RespondValidationError(c, "content", "Post must have text or an image")
		return
	}
	if len(content) > models.MaxPostContentLength {
		util.RespondValidationError(c, "content", "Post content is too long")
		return
	}

	post := models.Post{
		UserID:   userID,
		Kind:     kind,
		Content:  content,
		ImageURL: imageURL,
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&post).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", userID).
			UpdateColumn("post_count", gorm.Expr("post_count + 1")).Error
	})
	if err != nil {
		logger.WarnWithFields("Failed to create post", err)
		util.RespondInternalError(c, "Failed to create post")
		return
	}

	_, span := telemetry.GetBusinessEvents().TraceCreatePost(c.Request.Context(), post.ID, string(post.Kind))
	span.End()

	// Load author for the response
	if err := database.DB.Preload("User").First(&post, "id = ?", post.ID).Error; err != nil {
		logger.WarnWithFields("Failed to reload post with author", err)
	}

	// Announce to online followers
	if h.wsHandler != nil {
		go h.announceNewPost(post)
	}

	c.JSON(http.StatusCreated, gin.H{"post": post})
}

// announceNewPost pushes a new_post event to each online follower
func (h *Handlers) announceNewPost(post models.Post) {
	var followerIDs []string
	if err := database.DB.Model(&models.Follow{}).
		Where("following_id = ?", post.UserID).
		Pluck("follower_id", &followerIDs).Error; err != nil {
		logger.WarnWithFields("Failed to load followers for post announcement", err)
		return
	}
	if len(followerIDs) == 0 {
		return
	}

	h.wsHandler.NotifyNewPost(followerIDs, &websocket.NewPostPayload{
		PostID:    post.ID,
		UserID:    post.UserID,
		Username:  post.User.Username,
		Name:      post.User.Name,
		AvatarURL: post.User.AvatarURL,
		Kind:      string(post.Kind),
		Content:   post.Content,
		ImageURL:  post.ImageURL,
		CreatedAt: post.CreatedAt.UnixMilli(),
	})
}

// GetPost returns a single post with author and viewer like state
// GET /api/v1/posts/:id
func (h *Handlers) GetPost(c *gin.Context) {
	postID := c.Param("id")
	identity := util.GetOptionalIdentity(c)

	var post models.Post
	if err := database.DB.Preload("User").First(&post, "id = ?", postID).Error; err != nil {
		util.RespondNotFound(c, "post")
		return
	}

	isLiked := false
	if identity.Present {
		var count int64
		database.DB.Model(&models.PostLike{}).
			Where("post_id = ? AND user_id = ?", postID, identity.UserID).
			Count(&count)
		isLiked = count > 0
	}

	c.JSON(http.StatusOK, gin.H{
		"post": PostResponse{
			Post:    post,
			Author:  post.User.PublicProfile(),
			IsLiked: isLiked,
		},
	})
}

// GetUserPosts returns a user's posts, newest first
// GET /api/v1/users/:id/posts
func (h *Handlers) GetUserPosts(c *gin.Context) {
	targetID := c.Param("id")
	identity := util.GetOptionalIdentity(c)

	page, limit, offset := util.ParsePage(c.Query("page"), c.Query("limit"), 20, 100)

	var user models.User
	if err := database.DB.First(&user, "id = ?", targetID).Error; err != nil {
		util.RespondNotFound(c, "user")
		return
	}

	var total int64
	if err := database.DB.Model(&models.Post{}).
		Where("user_id = ?", targetID).
		Count(&total).Error; err != nil {
		util.RespondInternalError(c, "Failed to load posts")
		return
	}

	var posts []models.Post
	if err := database.DB.
		Preload("User").
		Where("user_id = ?", targetID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error; err != nil {
		util.RespondInternalError(c, "Failed to load posts")
		return
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))

	c.JSON(http.StatusOK, gin.H{
		"posts": h.decoratePosts(posts, identity.UserID),
		"meta": gin.H{
			"page":        page,
			"limit":       limit,
			"total":       total,
			"total_pages": totalPages,
		},
	})
}

// DeletePost soft-deletes a post the viewer owns
// DELETE /api/v1/posts/:id
func (h *Handlers) DeletePost(c *gin.Context) {
	postID := c.Param("id")
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var post models.Post
	if err := database.DB.First(&post, "id = ?", postID).Error; err != nil {
		util.RespondNotFound(c, "post")
		return
	}

	if post.UserID != userID {
		util.RespondForbidden(c, "You do not own this post")
		return
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&post).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", userID).
			UpdateColumn("post_count", gorm.Expr("GREATEST(post_count - 1, 0)")).Error
	})
	if err != nil {
		util.RespondInternalError(c, "Failed to delete post")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "post_deleted"})
}

// LikePost toggles the viewer's like on a post. Returns the new state so
// clients don't need to track it.
// POST /api/v1/posts/:id/like
func (h *Handlers) LikePost(c *gin.Context) {
	postID := c.Param("id")
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var post models.Post
	if err := database.DB.First(&post, "id = ?", postID).Error; err != nil {
		util.RespondNotFound(c, "post")
		return
	}

	var existing models.PostLike
	err := database.DB.Where("post_id = ? AND user_id = ?", postID, userID).First(&existing).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		util.RespondInternalError(c, "Failed to like post")
		return
	}

	liked := false
	var newCount int

	if err == nil {
		// Already liked: remove
		txErr := database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Delete(&existing).Error; err != nil {
				return err
			}
			return tx.Model(&post).
				UpdateColumn("like_count", gorm.Expr("GREATEST(like_count - 1, 0)")).Error
		})
		if txErr != nil {
			util.RespondInternalError(c, "Failed to unlike post")
			return
		}
		newCount = post.LikeCount - 1
		if newCount < 0 {
			newCount = 0
		}
	} else {
		like := models.PostLike{PostID: postID, UserID: userID}
		txErr := database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&like).Error; err != nil {
				return err
			}
			return tx.Model(&post).
				UpdateColumn("like_count", gorm.Expr("like_count + 1")).Error
		})
		if txErr != nil {
			util.RespondInternalError(c, "Failed to like post")
			return
		}
		liked = true
		newCount = post.LikeCount + 1

		// Notify the post owner (persisted, deduplicated, then pushed)
		if err := h.notifier.Notify(notify.Event{
			RecipientID: post.UserID,
			ActorID:     userID,
			Type:        models.NotificationLike,
			PostID:      &post.ID,
		}); err != nil {
			logger.WarnWithFields("Failed to create like notification", err)
		}

		if h.wsHandler != nil && post.UserID != userID {
			go func() {
				var liker models.User
				if err := database.DB.First(&liker, "id = ?", userID).Error; err == nil {
					h.wsHandler.NotifyLike(post.UserID, &websocket.LikePayload{
						PostID:    postID,
						UserID:    userID,
						Username:  liker.Username,
						LikeCount: newCount,
					})
				}
			}()
		}
	}

	if h.wsHandler != nil {
		h.wsHandler.BroadcastLikeCountUpdate(postID, newCount)
	}

	c.JSON(http.StatusOK, gin.H{
		"liked":      liked,
		"like_count": newCount,
	})
}

// SharePost increments a post's share counter
// POST /api/v1/posts/:id/share
func (h *Handlers) SharePost(c *gin.Context) {
	postID := c.Param("id")
	_, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var post models.Post
	if err := database.DB.First(&post, "id = ?", postID).Error; err != nil {
		util.RespondNotFound(c, "post")
		return
	}

	if err := database.DB.Model(&post).
		UpdateColumn("share_count", gorm.Expr("share_count + 1")).Error; err != nil {
		util.RespondInternalError(c, "Failed to share post")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "post_shared",
		"share_count": post.ShareCount + 1,
	})
}

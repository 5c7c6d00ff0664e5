package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/socialfeed/backend/internal/database"
	"github.com/socialfeed/backend/internal/logger"
	"github.com/socialfeed/backend/internal/models"
	"github.com/socialfeed/backend/internal/notify"
	"github.com/socialfeed/backend/internal/telemetry"
	"github.com/socialfeed/backend/internal/util"
	"github.com/socialfeed/backend/internal/websocket"
	"gorm.io/gorm"
)

// CreateComment creates a comment on a post, optionally as a reply
// POST /api/v1/posts/:id/comments
func (h *Handlers) CreateComment(c *gin.Context) {
	postID := c.Param("id")
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req struct {
		Content  string  `json:"content" binding:"required,min=1,max=500"`
		ParentID *string `json:"parent_id,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	// Verify the post exists
	var post models.Post
	if err := database.DB.First(&post, "id = ?", postID).Error; err != nil {
		util.RespondNotFound(c, "post")
		return
	}

	// If replying, verify the parent exists and belongs to the same post
	var parentComment *models.Comment
	if req.ParentID != nil && *req.ParentID != "" {
		var parent models.Comment
		if err := database.DB.First(&parent, "id = ? AND post_id = ?", *req.ParentID, postID).Error; err != nil {
			util.RespondValidationError(c, "parent_id", "Parent comment not found")
			return
		}
		// Only allow 1 level of nesting - replying to a reply attaches to
		// the reply's parent instead
		if parent.ParentID != nil {
			req.ParentID = parent.ParentID
			if err := database.DB.First(&parent, "id = ?", *req.ParentID).Error; err != nil {
				util.RespondValidationError(c, "parent_id", "Parent comment not found")
				return
			}
		}
		parentComment = &parent
	}

	comment := models.Comment{
		PostID:   postID,
		UserID:   userID,
		Content:  req.Content,
		ParentID: req.ParentID,
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&comment).Error; err != nil {
			return err
		}
		if err := tx.Model(&post).
			UpdateColumn("comment_count", gorm.Expr("comment_count + 1")).Error; err != nil {
			return err
		}
		if parentComment != nil {
			return tx.Model(parentComment).
				UpdateColumn("reply_count", gorm.Expr("reply_count + 1")).Error
		}
		return nil
	})
	if err != nil {
		util.RespondInternalError(c, "Failed to create comment")
		return
	}

	_, span := telemetry.GetBusinessEvents().TraceCreateComment(
		c.Request.Context(), postID, comment.ID, parentComment != nil)
	span.End()

	// Load the user for response
	if err := database.DB.Preload("User").First(&comment, "id = ?", comment.ID).Error; err != nil {
		logger.WarnWithFields("Failed to load comment with user for post "+postID, err)
	}

	// Fan out: the post owner hears about every comment, and a reply also
	// notifies the parent comment's owner
	if err := h.notifier.Notify(notify.Event{
		RecipientID: post.UserID,
		ActorID:     userID,
		Type:        models.NotificationComment,
		PostID:      &post.ID,
		CommentID:   &comment.ID,
	}); err != nil {
		logger.WarnWithFields("Failed to create comment notification", err)
	}
	if parentComment != nil && parentComment.UserID != post.UserID {
		if err := h.notifier.Notify(notify.Event{
			RecipientID: parentComment.UserID,
			ActorID:     userID,
			Type:        models.NotificationReply,
			PostID:      &post.ID,
			CommentID:   &comment.ID,
		}); err != nil {
			logger.WarnWithFields("Failed to create reply notification", err)
		}
	}

	// Live push to the post owner plus a comment count broadcast
	if h.wsHandler != nil {
		go func() {
			payload := &websocket.CommentPayload{
				CommentID: comment.ID,
				PostID:    postID,
				UserID:    userID,
				Username:  comment.User.Username,
				Name:      comment.User.Name,
				AvatarURL: comment.User.AvatarURL,
				Content:   comment.Content,
				CreatedAt: comment.CreatedAt.UnixMilli(),
			}
			if comment.ParentID != nil {
				payload.ParentID = *comment.ParentID
			}
			if post.UserID != userID {
				h.wsHandler.NotifyComment(post.UserID, payload)
			}
			if parentComment != nil && parentComment.UserID != post.UserID && parentComment.UserID != userID {
				h.wsHandler.NotifyComment(parentComment.UserID, payload)
			}
			h.wsHandler.BroadcastCommentCountUpdate(postID, post.CommentCount+1)
		}()
	}

	c.JSON(http.StatusCreated, gin.H{"comment": comment})
}

// GetComments retrieves top-level comments for a post with pagination
// GET /api/v1/posts/:id/comments
func (h *Handlers) GetComments(c *gin.Context) {
	postID := c.Param("id")
	page, limit, offset := util.ParsePage(c.Query("page"), c.Query("limit"), 20, 100)

	// Verify the post exists
	var post models.Post
	if err := database.DB.First(&post, "id = ?", postID).Error; err != nil {
		util.RespondNotFound(c, "post")
		return
	}

	var comments []models.Comment
	if err := database.DB.
		Preload("User").
		Preload("Replies", func(db *gorm.DB) *gorm.DB {
			return db.Preload("User").Order("created_at ASC")
		}).
		Where("post_id = ? AND parent_id IS NULL", postID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&comments).Error; err != nil {
		util.RespondInternalError(c, "Failed to get comments")
		return
	}

	var total int64
	if err := database.DB.Model(&models.Comment{}).
		Where("post_id = ? AND parent_id IS NULL", postID).
		Count(&total).Error; err != nil {
		logger.WarnWithFields("Failed to count comments for post "+postID, err)
	}

	c.JSON(http.StatusOK, gin.H{
		"comments": comments,
		"meta": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// GetCommentReplies retrieves replies to a specific comment
// GET /api/v1/comments/:id/replies
func (h *Handlers) GetCommentReplies(c *gin.Context) {
	commentID := c.Param("id")
	page, limit, offset := util.ParsePage(c.Query("page"), c.Query("limit"), 20, 100)

	// Verify the comment exists
	var comment models.Comment
	if err := database.DB.First(&comment, "id = ?", commentID).Error; err != nil {
		util.RespondNotFound(c, "comment")
		return
	}

	var replies []models.Comment
	if err := database.DB.
		Preload("User").
		Where("parent_id = ?", commentID).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&replies).Error; err != nil {
		util.RespondInternalError(c, "Failed to get replies")
		return
	}

	var total int64
	if err := database.DB.Model(&models.Comment{}).
		Where("parent_id = ?", commentID).
		Count(&total).Error; err != nil {
		logger.WarnWithFields("Failed to count replies for comment "+commentID, err)
	}

	c.JSON(http.StatusOK, gin.H{
		"replies": replies,
		"meta": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// UpdateComment updates a comment's content, owner only
// PUT /api/v1/comments/:id
func (h *Handlers) UpdateComment(c *gin.Context) {
	commentID := c.Param("id")
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content" binding:"required,min=1,max=500"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	var comment models.Comment
	if err := database.DB.First(&comment, "id = ?", commentID).Error; err != nil {
		util.RespondNotFound(c, "comment")
		return
	}

	if comment.UserID != userID {
		util.RespondForbidden(c, "You do not own this comment")
		return
	}

	now := time.Now()
	comment.Content = req.Content
	comment.IsEdited = true
	comment.EditedAt = &now

	if err := database.DB.Save(&comment).Error; err != nil {
		util.RespondInternalError(c, "Failed to update comment")
		return
	}

	if err := database.DB.Preload("User").First(&comment, "id = ?", comment.ID).Error; err != nil {
		logger.WarnWithFields("Failed to reload comment with user for ID "+comment.ID, err)
	}

	c.JSON(http.StatusOK, gin.H{"comment": comment})
}

// DeleteComment deletes a comment along with its direct replies. The
// post's comment count drops by the comment plus every removed reply.
// DELETE /api/v1/comments/:id
func (h *Handlers) DeleteComment(c *gin.Context) {
	commentID := c.Param("id")
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var comment models.Comment
	if err := database.DB.First(&comment, "id = ?", commentID).Error; err != nil {
		util.RespondNotFound(c, "comment")
		return
	}

	if comment.UserID != userID {
		util.RespondForbidden(c, "You do not own this comment")
		return
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var replyCount int64
		if err := tx.Model(&models.Comment{}).
			Where("parent_id = ?", commentID).
			Count(&replyCount).Error; err != nil {
			return err
		}

		if err := tx.Where("parent_id = ?", commentID).
			Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&comment).Error; err != nil {
			return err
		}

		removed := int(replyCount) + 1
		if err := tx.Model(&models.Post{}).Where("id = ?", comment.PostID).
			UpdateColumn("comment_count", gorm.Expr("GREATEST(comment_count - ?, 0)", removed)).Error; err != nil {
			return err
		}

		if comment.ParentID != nil {
			return tx.Model(&models.Comment{}).Where("id = ?", *comment.ParentID).
				UpdateColumn("reply_count", gorm.Expr("GREATEST(reply_count - 1, 0)")).Error
		}
		return nil
	})
	if err != nil {
		util.RespondInternalError(c, "Failed to delete comment")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "comment_deleted"})
}

// LikeComment toggles the viewer's like on a comment
// POST /api/v1/comments/:id/like
func (h *Handlers) LikeComment(c *gin.Context) {
	commentID := c.Param("id")
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var comment models.Comment
	if err := database.DB.First(&comment, "id = ?", commentID).Error; err != nil {
		util.RespondNotFound(c, "comment")
		return
	}

	var existing models.CommentLike
	err := database.DB.Where("comment_id = ? AND user_id = ?", commentID, userID).First(&existing).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		util.RespondInternalError(c, "Failed to like comment")
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
			return tx.Model(&comment).
				UpdateColumn("like_count", gorm.Expr("GREATEST(like_count - 1, 0)")).Error
		})
		if txErr != nil {
			util.RespondInternalError(c, "Failed to unlike comment")
			return
		}
		newCount = comment.LikeCount - 1
		if newCount < 0 {
			newCount = 0
		}
	} else {
		like := models.CommentLike{CommentID: commentID, UserID: userID}
		txErr := database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&like).Error; err != nil {
				return err
			}
			return tx.Model(&comment).
				UpdateColumn("like_count", gorm.Expr("like_count + 1")).Error
		})
		if txErr != nil {
			util.RespondInternalError(c, "Failed to like comment")
			return
		}
		liked = true
		newCount = comment.LikeCount + 1

		if err := h.notifier.Notify(notify.Event{
			RecipientID: comment.UserID,
			ActorID:     userID,
			Type:        models.NotificationLikeComment,
			PostID:      &comment.PostID,
			CommentID:   &comment.ID,
		}); err != nil {
			logger.WarnWithFields("Failed to create comment like notification", err)
		}

		if h.wsHandler != nil && comment.UserID != userID {
			go func() {
				var liker models.User
				if err := database.DB.First(&liker, "id = ?", userID).Error; err == nil {
					h.wsHandler.NotifyCommentLike(comment.UserID, &websocket.CommentLikePayload{
						CommentID: commentID,
						PostID:    comment.PostID,
						UserID:    userID,
						Username:  liker.Username,
						LikeCount: newCount,
					})
				}
			}()
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"liked":      liked,
		"like_count": newCount,
	})
}

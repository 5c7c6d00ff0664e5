package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/socialfeed/backend/internal/database"
	"github.com/socialfeed/backend/internal/logger"
	"github.com/socialfeed/backend/internal/metrics"
	"github.com/socialfeed/backend/internal/models"
	"github.com/socialfeed/backend/internal/telemetry"
	"github.com/socialfeed/backend/internal/util"
)

// PostResponse is a post decorated with viewer-specific state
type PostResponse struct {
	models.Post
	Author  models.PublicProfile `json:"author"`
	IsLiked bool                 `json:"is_liked"`
}

// GetFeed returns the viewer's home timeline: posts from followed users
// plus their own, newest first.
// GET /api/v1/feed?page=1&limit=20
func (h *Handlers) GetFeed(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	page, limit, offset := util.ParsePage(c.Query("page"), c.Query("limit"), 20, 100)

	ctx, span := telemetry.GetBusinessEvents().TraceGetFeed(c.Request.Context(), telemetry.FeedEventAttrs{
		Page:  int64(page),
		Limit: int64(limit),
	})
	defer span.End()
	_ = ctx

	start := time.Now()

	// Author set: everyone the viewer follows, plus the viewer
	authorSubquery := database.DB.Model(&models.Follow{}).
		Select("following_id").
		Where("follower_id = ?", userID)

	var total int64
	if err := database.DB.Model(&models.Post{}).
		Where("user_id IN (?) OR user_id = ?", authorSubquery, userID).
		Count(&total).Error; err != nil {
		util.RespondInternalError(c, "Failed to load feed")
		return
	}

	var posts []models.Post
	if err := database.DB.
		Preload("User").
		Where("user_id IN (?) OR user_id = ?", authorSubquery, userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error; err != nil {
		util.RespondInternalError(c, "Failed to load feed")
		return
	}

	responses := h.decoratePosts(posts, userID)

	metrics.Get().FeedGenerationTime.WithLabelValues("home").Observe(time.Since(start).Seconds())

	totalPages := int((total + int64(limit) - 1) / int64(limit))

	c.JSON(http.StatusOK, gin.H{
		"posts": responses,
		"meta": gin.H{
			"page":        page,
			"limit":       limit,
			"total":       total,
			"total_pages": totalPages,
		},
	})
}

// decoratePosts attaches author profiles and the viewer's like state.
// Likes are fetched in one query to avoid a per-post round trip.
func (h *Handlers) decoratePosts(posts []models.Post, viewerID string) []PostResponse {
	responses := make([]PostResponse, 0, len(posts))
	if len(posts) == 0 {
		return responses
	}

	likedSet := make(map[string]struct{})
	if viewerID != "" {
		postIDs := make([]string, 0, len(posts))
		for _, post := range posts {
			postIDs = append(postIDs, post.ID)
		}

		var likedIDs []string
		if err := database.DB.Model(&models.PostLike{}).
			Where("user_id = ? AND post_id IN ?", viewerID, postIDs).
			Pluck("post_id", &likedIDs).Error; err != nil {
			logger.WarnWithFields("Failed to load viewer likes", err)
		}
		for _, id := range likedIDs {
			likedSet[id] = struct{}{}
		}
	}

	for _, post := range posts {
		_, liked := likedSet[post.ID]
		responses = append(responses, PostResponse{
			Post:    post,
			Author:  post.User.PublicProfile(),
			IsLiked: liked,
		})
	}
	return responses
}

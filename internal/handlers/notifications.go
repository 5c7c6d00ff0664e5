package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/socialfeed/backend/internal/database"
	"github.com/socialfeed/backend/internal/logger"
	"github.com/socialfeed/backend/internal/models"
	"github.com/socialfeed/backend/internal/util"
)

// GetNotifications lists the viewer's notifications, newest first
// GET /api/v1/notifications
func (h *Handlers) GetNotifications(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	page, limit, offset := util.ParsePage(c.Query("page"), c.Query("limit"), 20, 100)

	var notifications []models.Notification
	if err := database.DB.
		Preload("Actor").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&notifications).Error; err != nil {
		util.RespondInternalError(c, "Failed to load notifications")
		return
	}

	var total, unread int64
	if err := database.DB.Model(&models.Notification{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		logger.WarnWithFields("Failed to count notifications", err)
	}
	if err := database.DB.Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&unread).Error; err != nil {
		logger.WarnWithFields("Failed to count unread notifications", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
		"meta": gin.H{
			"page":   page,
			"limit":  limit,
			"total":  total,
			"unread": unread,
		},
	})
}

// MarkNotificationRead marks a single notification as read
// PUT /api/v1/notifications/:id/read
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	notificationID := c.Param("id")
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var notification models.Notification
	if err := database.DB.First(&notification, "id = ?", notificationID).Error; err != nil {
		util.RespondNotFound(c, "notification")
		return
	}

	if notification.UserID != userID {
		util.RespondForbidden(c, "This notification belongs to another user")
		return
	}

	if !notification.Read {
		if err := database.DB.Model(&notification).Update("read", true).Error; err != nil {
			util.RespondInternalError(c, "Failed to mark notification read")
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "notification_read"})
}

// MarkAllNotificationsRead marks every unread notification as read
// PUT /api/v1/notifications/read-all
func (h *Handlers) MarkAllNotificationsRead(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	result := database.DB.Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Update("read", true)
	if result.Error != nil {
		util.RespondInternalError(c, "Failed to mark notifications read")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "all_notifications_read",
		"updated": result.RowsAffected,
	})
}

// Package notify persists notifications and pushes them to connected
// clients. Persistence always happens first: the WebSocket push is
// best-effort and a user who was offline sees the notification on their
// next fetch.
package notify

import (
	"errors"
	"fmt"

	"github.com/socialfeed/backend/internal/database"
	"github.com/socialfeed/backend/internal/logger"
	"github.com/socialfeed/backend/internal/metrics"
	"github.com/socialfeed/backend/internal/models"
	"github.com/socialfeed/backend/internal/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Notifier creates notifications and delivers them live when possible
type Notifier struct {
	wsHandler *websocket.Handler
}

// NewNotifier creates a notifier. wsHandler may be nil in tests, in which
// case notifications are persisted but never pushed.
func NewNotifier(wsHandler *websocket.Handler) *Notifier {
	return &Notifier{wsHandler: wsHandler}
}

// Event describes a notification to record
type Event struct {
	RecipientID string
	ActorID     string
	Type        models.NotificationType
	PostID      *string
	CommentID   *string
}

// Notify records the event and pushes it to the recipient if they are
// connected. Self-actions and duplicates (same recipient, type, actor and
// target) are silently skipped.
func (n *Notifier) Notify(event Event) error {
	if event.RecipientID == event.ActorID {
		return nil
	}

	exists, err := n.alreadyNotified(event)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	notification := models.Notification{
		UserID:    event.RecipientID,
		ActorID:   event.ActorID,
		Type:      event.Type,
		PostID:    event.PostID,
		CommentID: event.CommentID,
	}

	if err := database.DB.Create(&notification).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	metrics.Get().NotificationsCreatedTotal.WithLabelValues(string(event.Type)).Inc()

	n.push(&notification)
	return nil
}

// alreadyNotified checks for an existing notification with the same
// recipient, type, actor and target. Keeps like/unlike toggle loops from
// producing duplicate rows for either posts or comments.
func (n *Notifier) alreadyNotified(event Event) (bool, error) {
	query := database.DB.Where(
		"user_id = ? AND actor_id = ? AND type = ?",
		event.RecipientID, event.ActorID, event.Type,
	)
	if event.PostID != nil {
		query = query.Where("post_id = ?", *event.PostID)
	}
	if event.CommentID != nil {
		query = query.Where("comment_id = ?", *event.CommentID)
	}

	var existing models.Notification
	err := query.First(&existing).Error
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("database error: %w", err)
}

// push delivers the notification over WebSocket if the recipient is online
func (n *Notifier) push(notification *models.Notification) {
	if n.wsHandler == nil {
		return
	}

	delivered := "false"
	if n.wsHandler.GetHub().IsUserOnline(notification.UserID) {
		var actor models.User
		actorName := ""
		if err := database.DB.Select("username").First(&actor, "id = ?", notification.ActorID).Error; err == nil {
			actorName = actor.Username
		}

		payload := &websocket.NotificationPayload{
			ID:        notification.ID,
			Type:      string(notification.Type),
			ActorID:   notification.ActorID,
			ActorName: actorName,
			IsRead:    notification.Read,
			CreatedAt: notification.CreatedAt.UnixMilli(),
		}
		if notification.PostID != nil {
			payload.PostID = *notification.PostID
		}
		if notification.CommentID != nil {
			payload.CommentID = *notification.CommentID
		}

		n.wsHandler.NotifyNotification(notification.UserID, payload)
		n.pushUnreadCount(notification.UserID)
		delivered = "true"
	} else {
		logger.Log.Debug("Recipient offline, notification persisted only",
			zap.String("user_id", notification.UserID),
			zap.String("type", string(notification.Type)))
	}

	metrics.Get().NotificationsPushedTotal.WithLabelValues(string(notification.Type), delivered).Inc()
}

// pushUnreadCount sends the recipient their fresh unread total
func (n *Notifier) pushUnreadCount(userID string) {
	var unread int64
	if err := database.DB.Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&unread).Error; err != nil {
		return
	}
	n.wsHandler.UpdateNotificationCount(userID, int(unread))
}

// Package websocket provides presence tracking for real-time user status.
package websocket

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/socialfeed/backend/internal/cache"
	"github.com/socialfeed/backend/internal/database"
	"github.com/socialfeed/backend/internal/models"
)

// PresenceStatus represents the current status of a user
type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusOffline PresenceStatus = "offline"
)

// UserPresence tracks a single user's presence state
type UserPresence struct {
	UserID       string         `json:"user_id"`
	Username     string         `json:"username"`
	Status       PresenceStatus `json:"status"`
	LastActivity time.Time      `json:"last_activity"`
	ConnectedAt  time.Time      `json:"connected_at"`
}

// PresenceManager tracks user presence and broadcasts updates to followers.
// State lives in memory for this process and is mirrored into Redis with a
// TTL so other processes can answer "is this user online" cheaply.
type PresenceManager struct {
	hub   *Hub
	redis *cache.RedisClient

	// In-memory presence storage
	presence map[string]*UserPresence
	mu       sync.RWMutex

	// Configuration
	timeoutDuration time.Duration // How long before a user is considered offline

	// Shutdown handling
	ctx    context.Context
	cancel context.CancelFunc
}

// PresenceConfig holds configuration for the presence manager
type PresenceConfig struct {
	TimeoutDuration time.Duration // Default: 5 minutes
}

// DefaultPresenceConfig returns sensible defaults
func DefaultPresenceConfig() PresenceConfig {
	return PresenceConfig{
		TimeoutDuration: 5 * time.Minute,
	}
}

// NewPresenceManager creates a new presence manager
func NewPresenceManager(hub *Hub, redis *cache.RedisClient, config PresenceConfig) *PresenceManager {
	ctx, cancel := context.WithCancel(context.Background())

	if config.TimeoutDuration == 0 {
		config.TimeoutDuration = 5 * time.Minute
	}

	return &PresenceManager{
		hub:             hub,
		redis:           redis,
		presence:        make(map[string]*UserPresence),
		timeoutDuration: config.TimeoutDuration,
		ctx:             ctx,
		cancel:          cancel,
	}
}

// Start begins the presence manager's background tasks
func (pm *PresenceManager) Start() {
	log.Println("👤 Presence manager starting...")

	// Start timeout checker
	go pm.runTimeoutChecker()

	// Register message handlers with the hub
	pm.registerHandlers()

	log.Println("👤 Presence manager started")
}

// Stop gracefully shuts down the presence manager
func (pm *PresenceManager) Stop() {
	log.Println("👤 Presence manager stopping...")
	pm.cancel()

	// Mark all users as offline
	pm.mu.Lock()
	for userID := range pm.presence {
		pm.setOfflineInternal(userID)
	}
	pm.mu.Unlock()

	log.Println("👤 Presence manager stopped")
}

// registerHandlers sets up message handlers for presence-related messages
func (pm *PresenceManager) registerHandlers() {
	// Heartbeat-style presence updates from clients
	pm.hub.RegisterHandler(MessageTypePresence, func(client *Client, msg *Message) error {
		var payload PresencePayload
		if err := msg.ParsePayload(&payload); err != nil {
			return err
		}

		pm.UpdatePresence(client.UserID, client.Username, StatusOnline)
		return nil
	})
}

// OnClientConnect is called when a client connects
func (pm *PresenceManager) OnClientConnect(client *Client) {
	pm.UpdatePresence(client.UserID, client.Username, StatusOnline)
}

// OnClientDisconnect is called when a client disconnects
func (pm *PresenceManager) OnClientDisconnect(client *Client) {
	// Check if the user has other active connections
	if pm.hub.GetUserConnectionCount(client.UserID) <= 1 {
		// This was their last connection, mark as offline
		pm.SetOffline(client.UserID)
	}
}

// UpdatePresence updates a user's presence and notifies followers
func (pm *PresenceManager) UpdatePresence(userID, username string, status PresenceStatus) {
	pm.mu.Lock()

	existing := pm.presence[userID]
	isNewOnline := existing == nil || existing.Status == StatusOffline

	now := time.Now()

	if existing == nil {
		pm.presence[userID] = &UserPresence{
			UserID:       userID,
			Username:     username,
			Status:       status,
			LastActivity: now,
			ConnectedAt:  now,
		}
	} else {
		existing.Status = status
		existing.LastActivity = now
		if existing.Username == "" {
			existing.Username = username
		}
	}

	presence := pm.presence[userID]
	pm.mu.Unlock()

	// Mirror to Redis and database (non-blocking)
	go pm.mirrorPresence(userID, status == StatusOnline)

	// Broadcast to followers if this is a status change
	if isNewOnline {
		go pm.broadcastToFollowers(userID, MessageTypeUserOnline, PresencePayload{
			UserID:    userID,
			Status:    string(presence.Status),
			Timestamp: now.UnixMilli(),
		})
	}
}

// SetOffline marks a user as offline
func (pm *PresenceManager) SetOffline(userID string) {
	pm.mu.Lock()
	pm.setOfflineInternal(userID)
	pm.mu.Unlock()
}

// setOfflineInternal marks a user as offline (must hold lock)
func (pm *PresenceManager) setOfflineInternal(userID string) {
	if presence, ok := pm.presence[userID]; ok {
		wasOnline := presence.Status != StatusOffline
		presence.Status = StatusOffline
		presence.LastActivity = time.Now()

		if wasOnline {
			// Mirror to Redis and database (non-blocking)
			go pm.mirrorPresence(userID, false)

			// Broadcast to followers
			go pm.broadcastToFollowers(userID, MessageTypeUserOffline, PresencePayload{
				UserID:    userID,
				Status:    string(StatusOffline),
				Timestamp: time.Now().UnixMilli(),
			})
		}
	}
}

// GetPresence returns a user's current presence
func (pm *PresenceManager) GetPresence(userID string) *UserPresence {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	if presence, ok := pm.presence[userID]; ok {
		// Return a copy
		p := *presence
		return &p
	}
	return nil
}

// GetOnlinePresence returns presence for multiple users (only online ones)
func (pm *PresenceManager) GetOnlinePresence(userIDs []string) map[string]*UserPresence {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	result := make(map[string]*UserPresence)
	for _, userID := range userIDs {
		if presence, ok := pm.presence[userID]; ok && presence.Status != StatusOffline {
			p := *presence
			result[userID] = &p
		}
	}
	return result
}

// GetOnlineCount returns the count of online users from a list
func (pm *PresenceManager) GetOnlineCount(userIDs []string) int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	count := 0
	for _, userID := range userIDs {
		if presence, ok := pm.presence[userID]; ok && presence.Status != StatusOffline {
			count++
		}
	}
	return count
}

// GetAllOnline returns all currently online users
func (pm *PresenceManager) GetAllOnline() []*UserPresence {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	result := make([]*UserPresence, 0)
	for _, presence := range pm.presence {
		if presence.Status != StatusOffline {
			p := *presence
			result = append(result, &p)
		}
	}
	return result
}

// Heartbeat updates the last activity time for a user
func (pm *PresenceManager) Heartbeat(userID string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if presence, ok := pm.presence[userID]; ok {
		presence.LastActivity = time.Now()
	}

	// Keep the Redis key alive too
	if pm.redis != nil {
		go pm.redis.SetUserOnline(context.Background(), userID)
	}
}

// runTimeoutChecker periodically checks for timed-out users
func (pm *PresenceManager) runTimeoutChecker() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-pm.ctx.Done():
			return
		case <-ticker.C:
			pm.checkTimeouts()
		}
	}
}

// checkTimeouts marks users as offline if they haven't sent a heartbeat
func (pm *PresenceManager) checkTimeouts() {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	cutoff := time.Now().Add(-pm.timeoutDuration)

	for userID, presence := range pm.presence {
		if presence.Status != StatusOffline && presence.LastActivity.Before(cutoff) {
			// Also check if they have active WebSocket connections
			if !pm.hub.IsUserOnline(userID) {
				log.Printf("👤 Presence timeout for user %s (last activity: %v)", userID, presence.LastActivity)
				pm.setOfflineInternal(userID)
			} else {
				// They have connections but no heartbeat, update activity
				presence.LastActivity = time.Now()
			}
		}
	}
}

// broadcastToFollowers sends a presence update to each online follower
func (pm *PresenceManager) broadcastToFollowers(userID string, msgType string, payload PresencePayload) {
	if database.DB == nil {
		return
	}

	var followerIDs []string
	if err := database.DB.Model(&models.Follow{}).
		Where("following_id = ?", userID).
		Pluck("follower_id", &followerIDs).Error; err != nil {
		log.Printf("Error getting followers for presence broadcast: %v", err)
		return
	}

	if len(followerIDs) == 0 {
		return
	}

	msg := NewMessage(msgType, payload)
	sent := 0
	for _, followerID := range followerIDs {
		if pm.hub.IsUserOnline(followerID) {
			pm.hub.SendToUser(followerID, msg)
			sent++
		}
	}

	if sent > 0 {
		log.Printf("👤 Broadcasted %s to %d followers of user %s", msgType, sent, userID)
	}
}

// mirrorPresence writes the user's online status to Redis and the database
func (pm *PresenceManager) mirrorPresence(userID string, isOnline bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if pm.redis != nil {
		var err error
		if isOnline {
			err = pm.redis.SetUserOnline(ctx, userID)
		} else {
			err = pm.redis.SetUserOffline(ctx, userID)
		}
		if err != nil {
			log.Printf("Error mirroring presence to Redis: %v", err)
		}
	}

	if database.DB == nil {
		return
	}

	now := time.Now()
	updates := map[string]interface{}{
		"is_online":      isOnline,
		"last_active_at": now,
	}

	if err := database.DB.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
		log.Printf("Error updating user presence in database: %v", err)
	}
}

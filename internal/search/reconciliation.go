package search

import (
	"context"
	"sync"
	"time"

	"github.com/socialfeed/backend/internal/database"
	"github.com/socialfeed/backend/internal/logger"
	"github.com/socialfeed/backend/internal/models"
	"go.uber.org/zap"
)

// ReconciliationService periodically resynchronizes user documents between
// PostgreSQL and Elasticsearch to catch any missed index writes
type ReconciliationService struct {
	client    *Client
	interval  time.Duration
	stopChan  chan struct{}
	wg        sync.WaitGroup
	isRunning bool
	mu        sync.Mutex
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(client *Client, interval time.Duration) *ReconciliationService {
	return &ReconciliationService{
		client:   client,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the periodic reconciliation loop
func (rs *ReconciliationService) Start() {
	rs.mu.Lock()
	if rs.isRunning {
		rs.mu.Unlock()
		return
	}
	rs.isRunning = true
	rs.mu.Unlock()

	logger.Log.Info("Starting Elasticsearch reconciliation service",
		zap.Duration("interval", rs.interval),
	)

	rs.wg.Add(1)
	go rs.reconciliationLoop()
}

// Stop gracefully stops the reconciliation service
func (rs *ReconciliationService) Stop() {
	rs.mu.Lock()
	if !rs.isRunning {
		rs.mu.Unlock()
		return
	}
	rs.isRunning = false
	rs.mu.Unlock()

	close(rs.stopChan)
	rs.wg.Wait()
	logger.Log.Info("Elasticsearch reconciliation service stopped")
}

// reconciliationLoop runs the periodic reconciliation checks
func (rs *ReconciliationService) reconciliationLoop() {
	defer rs.wg.Done()

	// Run once immediately on startup
	rs.performReconciliation()

	ticker := time.NewTicker(rs.interval)
	defer ticker.Stop()

	for {
		select {
		case <-rs.stopChan:
			return
		case <-ticker.C:
			rs.performReconciliation()
		}
	}
}

// performReconciliation checks for data drift and resynchronizes
func (rs *ReconciliationService) performReconciliation() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	startTime := time.Now()
	logger.Log.Info("Starting Elasticsearch reconciliation check")

	usersDrifted := rs.reconcileUsers(ctx)

	duration := time.Since(startTime)
	logger.Log.Info("Elasticsearch reconciliation completed",
		zap.Int("users_resync", usersDrifted),
		zap.Duration("duration", duration),
	)
}

// reconcileUsers reindexes a sample of users so profile edits and follower
// counts that missed the inline index write eventually converge
func (rs *ReconciliationService) reconcileUsers(ctx context.Context) int {
	if rs.client == nil {
		return 0
	}

	var users []models.User
	// Random sample to ensure even coverage over time, capped to avoid overload
	if err := database.DB.
		Where("deleted_at IS NULL").
		Order("RANDOM()").
		Limit(50).
		Find(&users).Error; err != nil {
		logger.Log.Warn("Failed to query users for reconciliation",
			zap.Error(err),
		)
		return 0
	}

	if len(users) == 0 {
		return 0
	}

	logger.Log.Debug("Reconciling search documents for users",
		zap.Int("sample_size", len(users)),
	)

	resyncedCount := 0
	for _, user := range users {
		if err := rs.client.IndexUser(ctx, user.ID, UserToSearchDoc(user)); err != nil {
			logger.Log.Warn("Failed to reconcile user",
				zap.String("user_id", user.ID),
				zap.Error(err),
			)
		} else {
			resyncedCount++
		}
	}

	logger.Log.Debug("User reconciliation complete",
		zap.Int("resynced", resyncedCount),
	)

	return resyncedCount
}

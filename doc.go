// Package backend provides the social feed API server.

// This package contains the main application entry point. The actual API
// documentation is organized into subpackages:

// - internal/handlers: HTTP request handlers for all API endpoints
// - internal/models: Data models and database schemas
// - internal/auth: Authentication and authorization services
// - internal/websocket: WebSocket server for real-time updates
// - internal/notify: Notification persistence and live delivery
// - internal/storage: File storage (S3) operations
// - internal/database: Database connection and migrations
// - internal/email: Email service integration
// - internal/middleware: HTTP middleware (rate limiting, etc.)
// - internal/search: User search (Elasticsearch with database fallback)
// - internal/cache: Redis client and caching helpers
// - internal/seed: Development and test data generation

package backend

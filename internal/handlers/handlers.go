package handlers

import (
	"github.com/socialfeed/backend/internal/auth"
	"github.com/socialfeed/backend/internal/email"
	"github.com/socialfeed/backend/internal/notify"
	"github.com/socialfeed/backend/internal/search"
	"github.com/socialfeed/backend/internal/storage"
	"github.com/socialfeed/backend/internal/websocket"
)

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	auth      *auth.Service
	wsHandler *websocket.Handler
	notifier  *notify.Notifier
	search    *search.CachedClient
	uploader  *storage.S3Uploader
	email     *email.EmailService
}

// NewHandlers creates a new handlers instance
func NewHandlers(authService *auth.Service) *Handlers {
	return &Handlers{
		auth:     authService,
		notifier: notify.NewNotifier(nil),
	}
}

// SetWebSocketHandler sets the WebSocket handler for real-time notifications
func (h *Handlers) SetWebSocketHandler(ws *websocket.Handler) {
	h.wsHandler = ws
	h.notifier = notify.NewNotifier(ws)
}

// SetSearchClient sets the Elasticsearch search client
func (h *Handlers) SetSearchClient(searchClient *search.CachedClient) {
	h.search = searchClient
}

// SetUploader sets the S3 uploader for image posts and avatars
func (h *Handlers) SetUploader(uploader *storage.S3Uploader) {
	h.uploader = uploader
}

// SetEmailService sets the email service for account emails
func (h *Handlers) SetEmailService(emailService *email.EmailService) {
	h.email = emailService
}

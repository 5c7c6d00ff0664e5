package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/socialfeed/backend/internal/auth"
	"github.com/socialfeed/backend/internal/logger"
	"github.com/socialfeed/backend/internal/search"
	"github.com/socialfeed/backend/internal/util"
	"go.uber.org/zap"
)

// Register creates a new account with email/password
// POST /api/v1/auth/register
func (h *Handlers) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	resp, err := h.auth.Register(req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserExists):
			util.RespondConflict(c, "An account with this email already exists")
		case errors.Is(err, auth.ErrUsernameExists):
			util.RespondConflict(c, "This username is already taken")
		default:
			logger.Log.Error("Registration failed", zap.Error(err))
			util.RespondInternalError(c, "Failed to create account")
		}
		return
	}

	// Welcome email and search indexing are best-effort
	if h.email != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := h.email.SendWelcomeEmail(ctx, resp.User.Email, resp.User.Username); err != nil {
				logger.WarnWithFields("Failed to send welcome email", err)
			}
		}()
	}
	h.indexUserAsync(resp.User.ID)

	c.JSON(http.StatusCreated, resp)
}

// Login authenticates with email/password, enforcing TOTP when enabled
// POST /api/v1/auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	resp, err := h.auth.Login(req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserNotFound), errors.Is(err, auth.ErrInvalidCredentials):
			util.RespondUnauthorized(c, "Invalid email or password")
		case errors.Is(err, auth.ErrTwoFactorRequired):
			// Distinct code so clients can prompt for the TOTP code
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":               "two_factor_required",
				"message":             "Two-factor code required",
				"two_factor_required": true,
			})
		case errors.Is(err, auth.ErrInvalidTwoFactor):
			util.RespondUnauthorized(c, "Invalid two-factor code")
		default:
			logger.Log.Error("Login failed", zap.Error(err))
			util.RespondInternalError(c, "Login failed")
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetCurrentUser returns the authenticated user's account
// GET /api/v1/auth/me
func (h *Handlers) GetCurrentUser(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// GoogleOAuthURL returns the Google authorization URL
// GET /api/v1/auth/google
func (h *Handlers) GoogleOAuthURL(c *gin.Context) {
	state := uuid.New().String()
	c.JSON(http.StatusOK, gin.H{
		"url":   h.auth.GetGoogleOAuthURL(state),
		"state": state,
	})
}

// GoogleOAuthCallback exchanges the authorization code for a session
// GET /api/v1/auth/google/callback
func (h *Handlers) GoogleOAuthCallback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		util.RespondBadRequest(c, "missing authorization code")
		return
	}

	resp, err := h.auth.HandleGoogleCallback(code)
	if err != nil {
		logger.Log.Error("Google OAuth callback failed", zap.Error(err))
		util.RespondUnauthorized(c, "Google sign-in failed")
		return
	}

	h.indexUserAsync(resp.User.ID)

	c.JSON(http.StatusOK, resp)
}

// Setup2FA generates a TOTP secret for the authenticated user
// POST /api/v1/auth/2fa/setup
func (h *Handlers) Setup2FA(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	if user.TwoFactorEnabled {
		util.RespondConflict(c, "Two-factor authentication is already enabled")
		return
	}

	secret, otpauthURL, err := h.auth.Setup2FA(user)
	if err != nil {
		logger.Log.Error("2FA setup failed", zap.Error(err))
		util.RespondInternalError(c, "Failed to set up two-factor authentication")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"secret":      secret,
		"otpauth_url": otpauthURL,
	})
}

// Verify2FA confirms the first TOTP code and enables enforcement
// POST /api/v1/auth/2fa/verify
func (h *Handlers) Verify2FA(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.auth.Enable2FA(user, req.Code); err != nil {
		if errors.Is(err, auth.ErrInvalidTwoFactor) {
			util.RespondValidationError(c, "code", "Invalid two-factor code")
			return
		}
		util.RespondBadRequest(c, err.Error())
		return
	}

	if h.email != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := h.email.SendTwoFactorEnabledEmail(ctx, user.Email); err != nil {
				logger.WarnWithFields("Failed to send 2FA enabled email", err)
			}
		}()
	}

	c.JSON(http.StatusOK, gin.H{"message": "two_factor_enabled"})
}

// Disable2FA turns off two-factor enforcement after verifying a code
// POST /api/v1/auth/2fa/disable
func (h *Handlers) Disable2FA(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.auth.Disable2FA(user, req.Code); err != nil {
		if errors.Is(err, auth.ErrInvalidTwoFactor) {
			util.RespondValidationError(c, "code", "Invalid two-factor code")
			return
		}
		util.RespondBadRequest(c, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "two_factor_disabled"})
}

// indexUserAsync pushes the user document into Elasticsearch in the
// background. Index failures never affect the request.
func (h *Handlers) indexUserAsync(userID string) {
	if h.search == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		user, err := h.auth.FindUserByID(userID)
		if err != nil {
			return
		}
		if err := h.search.IndexUser(ctx, user.ID, search.UserToSearchDoc(*user)); err != nil {
			logger.WarnWithFields("Failed to index user in search", err)
		}
	}()
}

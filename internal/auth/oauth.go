package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/socialfeed/backend/internal/database"
	"github.com/socialfeed/backend/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"
)

type googleOAuthConfig struct {
	*oauth2.Config
}

func newGoogleOAuthConfig(clientID, clientSecret string) *googleOAuthConfig {
	redirectURL := "http://localhost:8080/api/v1/auth/google/callback"
	if apiBaseURL := os.Getenv("API_BASE_URL"); apiBaseURL != "" {
		redirectURL = apiBaseURL + "/api/v1/auth/google/callback"
	}

	return &googleOAuthConfig{
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     google.Endpoint,
		},
	}
}

// GoogleUserInfo represents Google OAuth user response
type GoogleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// GetGoogleOAuthURL returns Google OAuth authorization URL
func (s *Service) GetGoogleOAuthURL(state string) string {
	return s.googleConfig.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// HandleGoogleCallback exchanges the authorization code, fetches the Google
// profile and finds or creates the matching local account.
func (s *Service) HandleGoogleCallback(code string) (*AuthResponse, error) {
	info, err := s.getGoogleUserInfo(code)
	if err != nil {
		return nil, fmt.Errorf("google userinfo: %w", err)
	}
	if info.Email == "" {
		return nil, errors.New("google account has no email")
	}

	var user models.User
	err = database.DB.Where("google_id = ?", info.Sub).First(&user).Error
	if err == nil {
		return s.generateAuthResponse(&user)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}

	// Link to an existing account with the same email, or create a new one
	err = database.DB.Where("LOWER(email) = LOWER(?)", info.Email).First(&user).Error
	if err == nil {
		if linkErr := database.DB.Model(&user).Update("google_id", info.Sub).Error; linkErr != nil {
			return nil, fmt.Errorf("failed to link google account: %w", linkErr)
		}
		return s.generateAuthResponse(&user)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}

	user = models.User{
		Email:     info.Email,
		Username:  usernameFromEmail(info.Email),
		Name:      info.Name,
		GoogleID:  &info.Sub,
		AvatarURL: info.Picture,
	}
	if err := database.DB.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return s.generateAuthResponse(&user)
}

// getGoogleUserInfo exchanges the code and fetches the userinfo endpoint
func (s *Service) getGoogleUserInfo(code string) (*GoogleUserInfo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	token, err := s.googleConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}

	client := s.googleConfig.Client(ctx, token)
	resp, err := client.Get("https://www.googleapis.com/oauth2/v3/userinfo")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("userinfo returned %d: %s", resp.StatusCode, string(body))
	}

	var info GoogleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, err
	}
	return &info, nil
}

// usernameFromEmail derives a unique username for OAuth signups. The email
// local part is tried first; collisions get a numeric suffix.
func usernameFromEmail(email string) string {
	base := strings.ToLower(strings.Split(email, "@")[0])
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '_'
	}, base)
	if len(base) < 3 {
		base = base + "_user"
	}

	candidate := base
	for i := 1; ; i++ {
		var count int64
		database.DB.Model(&models.User{}).Where("LOWER(username) = ?", candidate).Count(&count)
		if count == 0 {
			return candidate
		}
		candidate = fmt.Sprintf("%s%d", base, i)
	}
}

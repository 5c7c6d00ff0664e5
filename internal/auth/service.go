package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp/totp"
	"github.com/socialfeed/backend/internal/database"
	"github.com/socialfeed/backend/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrUsernameExists     = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTwoFactorRequired  = errors.New("two-factor code required")
	ErrInvalidTwoFactor   = errors.New("invalid two-factor code")
)

// TokenLifetime is how long issued JWTs stay valid
const TokenLifetime = 7 * 24 * time.Hour

// Service handles all authentication operations
type Service struct {
	jwtSecret    []byte
	googleConfig *googleOAuthConfig
}

// NewService creates a new authentication service
func NewService(jwtSecret []byte, googleClientID, googleClientSecret string) *Service {
	return &Service{
		jwtSecret:    jwtSecret,
		googleConfig: newGoogleOAuthConfig(googleClientID, googleClientSecret),
	}
}

// AuthResponse represents authentication response
type AuthResponse struct {
	Token     string      `json:"token"`
	User      models.User `json:"user"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// RegisterRequest represents native registration request
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Username string `json:"username" binding:"required,min=3,max=30"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required,min=1,max=50"`
}

// LoginRequest represents native login request
type LoginRequest struct {
	Email         string `json:"email" binding:"required,email"`
	Password      string `json:"password" binding:"required"`
	TwoFactorCode string `json:"two_factor_code"`
}

// Register creates a new user with email/password
func (s *Service) Register(req RegisterRequest) (*AuthResponse, error) {
	// Case-insensitive uniqueness checks
	var existingUser models.User
	err := database.DB.Where("LOWER(email) = LOWER(?)", req.Email).First(&existingUser).Error
	if err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}

	var usernameCheck models.User
	err = database.DB.Where("LOWER(username) = LOWER(?)", req.Username).First(&usernameCheck).Error
	if err == nil {
		return nil, ErrUsernameExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	hashedPasswordStr := string(hashedPassword)
	user := models.User{
		Email:        req.Email,
		Username:     req.Username,
		Name:         req.Name,
		PasswordHash: &hashedPasswordStr,
	}

	if err := database.DB.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return s.generateAuthResponse(&user)
}

// Login authenticates with email/password, enforcing TOTP when enabled
func (s *Service) Login(req LoginRequest) (*AuthResponse, error) {
	var user models.User
	err := database.DB.Where("LOWER(email) = LOWER(?)", req.Email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	// OAuth-only accounts have no password
	if user.PasswordHash == nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if user.TwoFactorEnabled {
		if req.TwoFactorCode == "" {
			return nil, ErrTwoFactorRequired
		}
		if user.TOTPSecret == nil || !totp.Validate(req.TwoFactorCode, *user.TOTPSecret) {
			return nil, ErrInvalidTwoFactor
		}
	}

	now := time.Now()
	user.LastActiveAt = &now
	database.DB.Save(&user)

	return s.generateAuthResponse(&user)
}

// FindUserByEmail finds user by email (case-insensitive)
func (s *Service) FindUserByEmail(email string) (*models.User, error) {
	var user models.User
	err := database.DB.Where("LOWER(email) = LOWER(?)", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &user, nil
}

// FindUserByID finds a user by primary key
func (s *Service) FindUserByID(id string) (*models.User, error) {
	var user models.User
	err := database.DB.First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &user, nil
}

// GenerateTokenForUser creates JWT token and auth response for a user
func (s *Service) GenerateTokenForUser(user *models.User) (*AuthResponse, error) {
	return s.generateAuthResponse(user)
}

// generateAuthResponse creates JWT token and auth response
func (s *Service) generateAuthResponse(user *models.User) (*AuthResponse, error) {
	expiresAt := time.Now().Add(TokenLifetime)

	claims := jwt.MapClaims{
		"user_id":  user.ID,
		"email":    user.Email,
		"username": user.Username,
		"exp":      expiresAt.Unix(),
		"iat":      time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &AuthResponse{
		Token:     tokenString,
		User:      *user,
		ExpiresAt: expiresAt,
	}, nil
}

// ValidateToken validates a JWT token and returns the user it names
func (s *Service) ValidateToken(tokenString string) (*models.User, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		return nil, errors.New("invalid user_id in token")
	}

	// Fetch fresh user data
	var user models.User
	if err := database.DB.Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	return &user, nil
}

// Setup2FA generates a TOTP secret for the user and stores it unverified.
// The secret only becomes active after Enable2FA confirms a valid code.
func (s *Service) Setup2FA(user *models.User) (secret, otpauthURL string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "socialfeed",
		AccountName: user.Email,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	secretStr := key.Secret()
	user.TOTPSecret = &secretStr
	if err := database.DB.Model(user).Update("totp_secret", secretStr).Error; err != nil {
		return "", "", fmt.Errorf("failed to store TOTP secret: %w", err)
	}

	return secretStr, key.URL(), nil
}

// Enable2FA verifies the first code against the pending secret and turns
// two-factor enforcement on.
func (s *Service) Enable2FA(user *models.User, code string) error {
	if user.TOTPSecret == nil {
		return errors.New("2FA setup not started")
	}
	if !totp.Validate(code, *user.TOTPSecret) {
		return ErrInvalidTwoFactor
	}
	return database.DB.Model(user).Update("two_factor_enabled", true).Error
}

// Disable2FA verifies a current code and removes the TOTP secret
func (s *Service) Disable2FA(user *models.User, code string) error {
	if !user.TwoFactorEnabled || user.TOTPSecret == nil {
		return errors.New("2FA is not enabled")
	}
	if !totp.Validate(code, *user.TOTPSecret) {
		return ErrInvalidTwoFactor
	}
	return database.DB.Model(user).Updates(map[string]interface{}{
		"two_factor_enabled": false,
		"totp_secret":        nil,
	}).Error
}

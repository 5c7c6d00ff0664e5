package auth

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/socialfeed/backend/internal/database"
	"github.com/socialfeed/backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// AuthServiceTestSuite contains auth service tests
type AuthServiceTestSuite struct {
	suite.Suite
	db          *gorm.DB
	authService *Service
}

// SetupSuite initializes test database and auth service
func (suite *AuthServiceTestSuite) SetupSuite() {
	host := getEnvOrDefault("POSTGRES_HOST", "localhost")
	port := getEnvOrDefault("POSTGRES_PORT", "5432")
	user := getEnvOrDefault("POSTGRES_USER", "postgres")
	password := getEnvOrDefault("POSTGRES_PASSWORD", "")
	dbname := getEnvOrDefault("POSTGRES_DB", "socialfeed_test")

	testDSN := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable", host, port, user, dbname)
	if password != "" {
		testDSN = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", host, port, user, password, dbname)
	}

	db, err := gorm.Open(postgres.Open(testDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		suite.T().Skipf("Skipping auth tests: database not available (%v)", err)
		return
	}

	database.DB = db

	err = db.AutoMigrate(&models.User{})
	require.NoError(suite.T(), err)

	suite.db = db

	suite.authService = NewService(
		[]byte("test_jwt_secret_key"),
		"test_google_client_id",
		"test_google_client_secret",
	)
}

// TearDownSuite cleans up after tests
func (suite *AuthServiceTestSuite) TearDownSuite() {
	if suite.db == nil {
		return
	}
	sqlDB, _ := suite.db.DB()
	sqlDB.Close()
}

// SetupTest cleans database before each test
func (suite *AuthServiceTestSuite) SetupTest() {
	suite.db.Exec("DELETE FROM users")
}

func (suite *AuthServiceTestSuite) TestRegister() {
	t := suite.T()

	req := RegisterRequest{
		Email:    "test@example.com",
		Username: "testuser",
		Password: "password123",
		Name:     "Test User",
	}

	authResp, err := suite.authService.Register(req)
	require.NoError(t, err)
	require.NotNil(t, authResp)

	assert.NotEmpty(t, authResp.Token)
	assert.Equal(t, req.Email, authResp.User.Email)
	assert.Equal(t, req.Username, authResp.User.Username)
	assert.Equal(t, req.Name, authResp.User.Name)
	assert.NotNil(t, authResp.User.PasswordHash)
	assert.WithinDuration(t, time.Now().Add(TokenLifetime), authResp.ExpiresAt, time.Minute)

	// Duplicate email
	_, err = suite.authService.Register(req)
	assert.Equal(t, ErrUserExists, err)

	// Duplicate username with different email
	req2 := RegisterRequest{
		Email:    "different@example.com",
		Username: "testuser",
		Password: "password123",
		Name:     "Other User",
	}
	_, err = suite.authService.Register(req2)
	assert.Equal(t, ErrUsernameExists, err)
}

func (suite *AuthServiceTestSuite) TestRegisterCaseInsensitiveEmail() {
	t := suite.T()

	req := RegisterRequest{
		Email:    "Case@Example.com",
		Username: "caseuser",
		Password: "password123",
		Name:     "Case User",
	}
	_, err := suite.authService.Register(req)
	require.NoError(t, err)

	req.Email = "case@example.com"
	req.Username = "caseuser2"
	_, err = suite.authService.Register(req)
	assert.Equal(t, ErrUserExists, err)
}

func (suite *AuthServiceTestSuite) TestLogin() {
	t := suite.T()

	req := RegisterRequest{
		Email:    "login@example.com",
		Username: "loginuser",
		Password: "password123",
		Name:     "Login User",
	}
	_, err := suite.authService.Register(req)
	require.NoError(t, err)

	authResp, err := suite.authService.Login(LoginRequest{
		Email:    "login@example.com",
		Password: "password123",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, authResp.Token)
	assert.NotNil(t, authResp.User.LastActiveAt)
}

func (suite *AuthServiceTestSuite) TestLoginWrongPassword() {
	t := suite.T()

	req := RegisterRequest{
		Email:    "login@example.com",
		Username: "loginuser",
		Password: "password123",
		Name:     "Login User",
	}
	_, err := suite.authService.Register(req)
	require.NoError(t, err)

	_, err = suite.authService.Login(LoginRequest{
		Email:    "login@example.com",
		Password: "wrongpassword",
	})
	assert.Equal(t, ErrInvalidCredentials, err)
}

func (suite *AuthServiceTestSuite) TestLoginUnknownEmail() {
	t := suite.T()

	_, err := suite.authService.Login(LoginRequest{
		Email:    "nobody@example.com",
		Password: "password123",
	})
	assert.Equal(t, ErrUserNotFound, err)
}

func (suite *AuthServiceTestSuite) TestLoginOAuthOnlyAccount() {
	t := suite.T()

	googleID := "google-12345"
	user := models.User{
		Email:    "oauth@example.com",
		Username: "oauthuser",
		Name:     "OAuth User",
		GoogleID: &googleID,
	}
	require.NoError(t, suite.db.Create(&user).Error)

	_, err := suite.authService.Login(LoginRequest{
		Email:    "oauth@example.com",
		Password: "anything",
	})
	assert.Equal(t, ErrInvalidCredentials, err)
}

func (suite *AuthServiceTestSuite) TestValidateToken() {
	t := suite.T()

	authResp, err := suite.authService.Register(RegisterRequest{
		Email:    "token@example.com",
		Username: "tokenuser",
		Password: "password123",
		Name:     "Token User",
	})
	require.NoError(t, err)

	user, err := suite.authService.ValidateToken(authResp.Token)
	require.NoError(t, err)
	assert.Equal(t, authResp.User.ID, user.ID)

	_, err = suite.authService.ValidateToken("not.a.token")
	assert.Error(t, err)
}

func (suite *AuthServiceTestSuite) TestTwoFactorFlow() {
	t := suite.T()

	authResp, err := suite.authService.Register(RegisterRequest{
		Email:    "2fa@example.com",
		Username: "twofactoruser",
		Password: "password123",
		Name:     "2FA User",
	})
	require.NoError(t, err)
	user := &authResp.User

	secret, otpauthURL, err := suite.authService.Setup2FA(user)
	require.NoError(t, err)
	assert.NotEmpty(t, secret)
	assert.Contains(t, otpauthURL, "otpauth://")

	// Setup alone does not enforce 2FA
	_, err = suite.authService.Login(LoginRequest{
		Email:    "2fa@example.com",
		Password: "password123",
	})
	require.NoError(t, err)

	// Enable with a valid code
	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, suite.authService.Enable2FA(user, code))

	// Login now requires a code
	_, err = suite.authService.Login(LoginRequest{
		Email:    "2fa@example.com",
		Password: "password123",
	})
	assert.Equal(t, ErrTwoFactorRequired, err)

	_, err = suite.authService.Login(LoginRequest{
		Email:         "2fa@example.com",
		Password:      "password123",
		TwoFactorCode: "000000",
	})
	assert.Equal(t, ErrInvalidTwoFactor, err)

	code, err = totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	_, err = suite.authService.Login(LoginRequest{
		Email:         "2fa@example.com",
		Password:      "password123",
		TwoFactorCode: code,
	})
	require.NoError(t, err)

	// Disable and verify enforcement is gone
	var fresh models.User
	require.NoError(t, suite.db.First(&fresh, "id = ?", user.ID).Error)
	code, err = totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, suite.authService.Disable2FA(&fresh, code))

	_, err = suite.authService.Login(LoginRequest{
		Email:    "2fa@example.com",
		Password: "password123",
	})
	require.NoError(t, err)
}

func (suite *AuthServiceTestSuite) TestEnable2FAInvalidCode() {
	t := suite.T()

	authResp, err := suite.authService.Register(RegisterRequest{
		Email:    "badcode@example.com",
		Username: "badcodeuser",
		Password: "password123",
		Name:     "Bad Code User",
	})
	require.NoError(t, err)
	user := &authResp.User

	_, _, err = suite.authService.Setup2FA(user)
	require.NoError(t, err)

	err = suite.authService.Enable2FA(user, "000000")
	assert.Equal(t, ErrInvalidTwoFactor, err)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func TestAuthServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceTestSuite))
}

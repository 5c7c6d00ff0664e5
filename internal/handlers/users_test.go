package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/socialfeed/backend/internal/models"
)

func (suite *HandlersTestSuite) TestGetUserProfile() {
	t := suite.T()

	req, _ := http.NewRequest("GET", "/api/v1/users/"+suite.testUser.ID, nil)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code, "Response body: %s", w.Body.String())

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)

	user := response["user"].(map[string]interface{})
	assert.Equal(t, suite.testUser.ID, user["id"])
	assert.Equal(t, suite.testUser.Username, user["username"])
	assert.Equal(t, suite.testUser.Bio, user["bio"])

	// Credentials never leak through the public shape
	_, hasEmail := user["email"]
	assert.False(t, hasEmail)

	assert.Equal(t, false, response["is_following"])
}

func (suite *HandlersTestSuite) TestGetUserProfileNotFound() {
	t := suite.T()

	req, _ := http.NewRequest("GET", "/api/v1/users/00000000-0000-0000-0000-000000000000", nil)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func (suite *HandlersTestSuite) TestGetUserProfileFollowState() {
	t := suite.T()

	suite.follow(suite.testUser, suite.otherUser)

	req, _ := http.NewRequest("GET", "/api/v1/users/"+suite.otherUser.ID, nil)
	req.Header.Set("X-User-ID", suite.testUser.ID)

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, true, response["is_following"])
}

func (suite *HandlersTestSuite) TestUpdateProfile() {
	t := suite.T()

	body := map[string]interface{}{
		"name": "Updated Name",
		"bio":  "Updated bio",
	}
	jsonBody, _ := json.Marshal(body)

	req, _ := http.NewRequest("PUT", "/api/v1/users/me", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", suite.testUser.ID)

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code, "Response body: %s", w.Body.String())

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)

	user := response["user"].(map[string]interface{})
	assert.Equal(t, "Updated Name", user["name"])
	assert.Equal(t, "Updated bio", user["bio"])

	var dbUser models.User
	suite.db.First(&dbUser, "id = ?", suite.testUser.ID)
	assert.Equal(t, "Updated Name", dbUser.Name)
}

func (suite *HandlersTestSuite) TestUpdateProfileBioTooLong() {
	t := suite.T()

	body := map[string]interface{}{
		"bio": strings.Repeat("a", 201),
	}
	jsonBody, _ := json.Marshal(body)

	req, _ := http.NewRequest("PUT", "/api/v1/users/me", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", suite.testUser.ID)

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func (suite *HandlersTestSuite) TestUpdateProfileNoFields() {
	t := suite.T()

	body := map[string]interface{}{}
	jsonBody, _ := json.Marshal(body)

	req, _ := http.NewRequest("PUT", "/api/v1/users/me", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", suite.testUser.ID)

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// =============================================================================
// USER SEARCH TESTS (database fallback; Elasticsearch is nil in this suite)
// =============================================================================

func (suite *HandlersTestSuite) TestSearchUsers() {
	t := suite.T()

	for i := 0; i < 5; i++ {
		user := &models.User{
			Email:    fmt.Sprintf("searchuser%d_%d@test.com", i, time.Now().UnixNano()),
			Username: fmt.Sprintf("photowalker%d", i),
			Name:     fmt.Sprintf("Photo Walker %d", i),
		}
		require.NoError(t, suite.db.Create(user).Error)
	}

	req, _ := http.NewRequest("GET", "/api/v1/users/search?q=photowalker", nil)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code, "Response body: %s", w.Body.String())

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)

	users := response["users"].([]interface{})
	assert.Len(t, users, 5)

	meta := response["meta"].(map[string]interface{})
	assert.Equal(t, float64(5), meta["total"])
}

func (suite *HandlersTestSuite) TestSearchUsersMatchesBio() {
	t := suite.T()

	user := &models.User{
		Email:    fmt.Sprintf("biouser_%d@test.com", time.Now().UnixNano()),
		Username: fmt.Sprintf("biouser_%d", time.Now().UnixNano()),
		Name:     "Bio User",
		Bio:      "Amateur astrophotographer",
	}
	require.NoError(t, suite.db.Create(user).Error)

	req, _ := http.NewRequest("GET", "/api/v1/users/search?q=astrophoto", nil)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)

	users := response["users"].([]interface{})
	require.Len(t, users, 1)
	assert.Equal(t, user.Username, users[0].(map[string]interface{})["username"])
}

func (suite *HandlersTestSuite) TestSearchUsersMissingQuery() {
	t := suite.T()

	req, _ := http.NewRequest("GET", "/api/v1/users/search", nil)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func (suite *HandlersTestSuite) TestSearchUsersOrderedByFollowers() {
	t := suite.T()

	for i := 0; i < 3; i++ {
		user := &models.User{
			Email:         fmt.Sprintf("ranked%d_%d@test.com", i, time.Now().UnixNano()),
			Username:      fmt.Sprintf("rankeduser%d", i),
			Name:          fmt.Sprintf("Ranked User %d", i),
			FollowerCount: i * 100,
		}
		require.NoError(t, suite.db.Create(user).Error)
	}

	req, _ := http.NewRequest("GET", "/api/v1/users/search?q=rankeduser", nil)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)

	users := response["users"].([]interface{})
	require.Len(t, users, 3)
	assert.Equal(t, "rankeduser2", users[0].(map[string]interface{})["username"])
	assert.Equal(t, "rankeduser0", users[2].(map[string]interface{})["username"])
}

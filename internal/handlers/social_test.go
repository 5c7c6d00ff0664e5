package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/socialfeed/backend/internal/models"
)

// =============================================================================
// LIKE TOGGLE TESTS
// =============================================================================

func (suite *HandlersTestSuite) TestLikePostToggleOn() {
	t := suite.T()

	post := suite.createPost(suite.otherUser, "likeable")

	req, _ := http.NewRequest("POST", "/api/v1/posts/"+post.ID+"/like", nil)
	req.Header.Set("X-User-ID", suite.testUser.ID)

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code, "Response body: %s", w.Body.String())

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, true, response["liked"])
	assert.Equal(t, float64(1), response["like_count"])

	var dbPost models.Post
	suite.db.First(&dbPost, "id = ?", post.ID)
	assert.Equal(t, 1, dbPost.LikeCount)
}

func (suite *HandlersTestSuite) TestLikePostToggleOff() {
	t := suite.T()

	post := suite.createPost(suite.otherUser, "likeable")

	req, _ := http.NewRequest("POST", "/api/v1/posts/"+post.ID+"/like", nil)
	req.Header.Set("X-User-ID", suite.testUser.ID)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	// Second call removes the like
	req, _ = http.NewRequest("POST", "/api/v1/posts/"+post.ID+"/like", nil)
	req.Header.Set("X-User-ID", suite.testUser.ID)
	w = httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, false, response["liked"])
	assert.Equal(t, float64(0), response["like_count"])

	var count int64
	suite.db.Model(&models.PostLike{}).Where("post_id = ?", post.ID).Count(&count)
	assert.Equal(t, int64(0), count)
}

func (suite *HandlersTestSuite) TestLikePostCreatesNotification() {
	t := suite.T()

	post := suite.createPost(suite.otherUser, "likeable")

	req, _ := http.NewRequest("POST", "/api/v1/posts/"+post.ID+"/like", nil)
	req.Header.Set("X-User-ID", suite.testUser.ID)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var notification models.Notification
	err := suite.db.Where("user_id = ?", suite.otherUser.ID).First(&notification).Error
	require.NoError(t, err)
	assert.Equal(t, models.NotificationLike, notification.Type)
	assert.Equal(t, suite.testUser.ID, notification.ActorID)
	require.NotNil(t, notification.PostID)
	assert.Equal(t, post.ID, *notification.PostID)
}

func (suite *HandlersTestSuite) TestLikeOwnPostNoNotification() {
	t := suite.T()

	post := suite.createPost(suite.testUser, "my post")

	req, _ := http.NewRequest("POST", "/api/v1/posts/"+post.ID+"/like", nil)
	req.Header.Set("X-User-ID", suite.testUser.ID)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var count int64
	suite.db.Model(&models.Notification{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func (suite *HandlersTestSuite) TestRelikeDoesNotDuplicateNotification() {
	t := suite.T()

	post := suite.createPost(suite.otherUser, "likeable")

	// Like, unlike, like again
	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest("POST", "/api/v1/posts/"+post.ID+"/like", nil)
		req.Header.Set("X-User-ID", suite.testUser.ID)
		w := httptest.NewRecorder()
		suite.router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
	}

	var count int64
	suite.db.Model(&models.Notification{}).
		Where("user_id = ? AND type = ?", suite.otherUser.ID, models.NotificationLike).
		Count(&count)
	assert.Equal(t, int64(1), count)
}

func (suite *HandlersTestSuite) TestLikePostNotFound() {
	t := suite.T()

	req, _ := http.NewRequest("POST", "/api/v1/posts/00000000-0000-0000-0000-000000000000/like", nil)
	req.Header.Set("X-User-ID", suite.testUser.ID)

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func (suite *HandlersTestSuite) TestSharePost() {
	t := suite.T()

	post := suite.createPost(suite.otherUser, "shareable")

	req, _ := http.NewRequest("POST", "/api/v1/posts/"+post.ID+"/share", nil)
	req.Header.Set("X-User-ID", suite.testUser.ID)

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, float64(1), response["share_count"])
}

// =============================================================================
// FOLLOW TOGGLE TESTS
// =============================================================================

func (suite *HandlersTestSuite) TestFollowUserToggleOn() {
	t := suite.T()

	req, _ := http.NewRequest("POST", "/api/v1/users/"+suite.otherUser.ID+"/follow", nil)
	req.Header.Set("X-User-ID", suite.testUser.ID)

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code, "Response body: %s", w.Body.String())

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, true, response["following"])
	assert.Equal(t, float64(1), response["follower_count"])

	// Edge row and both counters move together
	var count int64
	suite.db.Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ?", suite.testUser.ID, suite.otherUser.ID).
		Count(&count)
	assert.Equal(t, int64(1), count)

	var follower, followed models.User
	suite.db.First(&follower, "id = ?", suite.testUser.ID)
	suite.db.First(&followed, "id = ?", suite.otherUser.ID)
	assert.Equal(t, 1, follower.FollowingCount)
	assert.Equal(t, 1, followed.FollowerCount)
}

func (suite *HandlersTestSuite) TestFollowUserToggleOff() {
	t := suite.T()

	for i := 0; i < 2; i++ {
		req, _ := http.NewRequest("POST", "/api/v1/users/"+suite.otherUser.ID+"/follow", nil)
		req.Header.Set("X-User-ID", suite.testUser.ID)
		w := httptest.NewRecorder()
		suite.router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		if i == 1 {
			var response map[string]interface{}
			json.Unmarshal(w.Body.Bytes(), &response)
			assert.Equal(t, false, response["following"])
			assert.Equal(t, float64(0), response["follower_count"])
		}
	}

	var count int64
	suite.db.Model(&models.Follow{}).Count(&count)
	assert.Equal(t, int64(0), count)

	var follower, followed models.User
	suite.db.First(&follower, "id = ?", suite.testUser.ID)
	suite.db.First(&followed, "id = ?", suite.otherUser.ID)
	assert.Equal(t, 0, follower.FollowingCount)
	assert.Equal(t, 0, followed.FollowerCount)
}

func (suite *HandlersTestSuite) TestFollowSelfRejected() {
	t := suite.T()

	req, _ := http.NewRequest("POST", "/api/v1/users/"+suite.testUser.ID+"/follow", nil)
	req.Header.Set("X-User-ID", suite.testUser.ID)

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func (suite *HandlersTestSuite) TestFollowUserNotFound() {
	t := suite.T()

	req, _ := http.NewRequest("POST", "/api/v1/users/00000000-0000-0000-0000-000000000000/follow", nil)
	req.Header.Set("X-User-ID", suite.testUser.ID)

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func (suite *HandlersTestSuite) TestFollowCreatesNotification() {
	t := suite.T()

	req, _ := http.NewRequest("POST", "/api/v1/users/"+suite.otherUser.ID+"/follow", nil)
	req.Header.Set("X-User-ID", suite.testUser.ID)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var notification models.Notification
	err := suite.db.Where("user_id = ?", suite.otherUser.ID).First(&notification).Error
	require.NoError(t, err)
	assert.Equal(t, models.NotificationFollow, notification.Type)
	assert.Equal(t, suite.testUser.ID, notification.ActorID)
}

func (suite *HandlersTestSuite) TestGetFollowers() {
	t := suite.T()

	suite.follow(suite.testUser, suite.otherUser)

	req, _ := http.NewRequest("GET", "/api/v1/users/"+suite.otherUser.ID+"/followers", nil)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)

	followers := response["followers"].([]interface{})
	require.Len(t, followers, 1)
	assert.Equal(t, suite.testUser.Username, followers[0].(map[string]interface{})["username"])
}

func (suite *HandlersTestSuite) TestGetFollowing() {
	t := suite.T()

	suite.follow(suite.testUser, suite.otherUser)

	req, _ := http.NewRequest("GET", "/api/v1/users/"+suite.testUser.ID+"/following", nil)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)

	following := response["following"].([]interface{})
	require.Len(t, following, 1)
	assert.Equal(t, suite.otherUser.Username, following[0].(map[string]interface{})["username"])
}

// =============================================================================
// NOTIFICATION ENDPOINT TESTS
// =============================================================================

func (suite *HandlersTestSuite) TestGetNotifications() {
	t := suite.T()

	post := suite.createPost(suite.testUser, "noticed")
	require.NoError(t, suite.db.Create(&models.Notification{
		UserID:  suite.testUser.ID,
		ActorID: suite.otherUser.ID,
		Type:    models.NotificationLike,
		PostID:  &post.ID,
	}).Error)

	req, _ := http.NewRequest("GET", "/api/v1/notifications", nil)
	req.Header.Set("X-User-ID", suite.testUser.ID)

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)

	notifications := response["notifications"].([]interface{})
	require.Len(t, notifications, 1)

	entry := notifications[0].(map[string]interface{})
	assert.Equal(t, "like", entry["type"])
	assert.Equal(t, false, entry["read"])

	actor := entry["actor"].(map[string]interface{})
	assert.Equal(t, suite.otherUser.Username, actor["username"])

	meta := response["meta"].(map[string]interface{})
	assert.Equal(t, float64(1), meta["unread"])
}

func (suite *HandlersTestSuite) TestMarkNotificationRead() {
	t := suite.T()

	notification := &models.Notification{
		UserID:  suite.testUser.ID,
		ActorID: suite.otherUser.ID,
		Type:    models.NotificationFollow,
	}
	require.NoError(t, suite.db.Create(notification).Error)

	req, _ := http.NewRequest("PUT", "/api/v1/notifications/"+notification.ID+"/read", nil)
	req.Header.Set("X-User-ID", suite.testUser.ID)

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var dbNotification models.Notification
	suite.db.First(&dbNotification, "id = ?", notification.ID)
	assert.True(t, dbNotification.Read)
}

func (suite *HandlersTestSuite) TestMarkNotificationReadWrongUser() {
	t := suite.T()

	notification := &models.Notification{
		UserID:  suite.otherUser.ID,
		ActorID: suite.testUser.ID,
		Type:    models.NotificationFollow,
	}
	require.NoError(t, suite.db.Create(notification).Error)

	req, _ := http.NewRequest("PUT", "/api/v1/notifications/"+notification.ID+"/read", nil)
	req.Header.Set("X-User-ID", suite.testUser.ID)

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func (suite *HandlersTestSuite) TestMarkAllNotificationsRead() {
	t := suite.T()

	for i := 0; i < 3; i++ {
		require.NoError(t, suite.db.Create(&models.Notification{
			UserID:  suite.testUser.ID,
			ActorID: suite.otherUser.ID,
			Type:    models.NotificationFollow,
		}).Error)
	}

	req, _ := http.NewRequest("PUT", "/api/v1/notifications/read-all", nil)
	req.Header.Set("X-User-ID", suite.testUser.ID)

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, float64(3), response["updated"])

	var unread int64
	suite.db.Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", suite.testUser.ID, false).
		Count(&unread)
	assert.Equal(t, int64(0), unread)
}

package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/socialfeed/backend/internal/models"
)

func (suite *HandlersTestSuite) TestGetFeedUnauthorized() {
	t := suite.T()

	req, _ := http.NewRequest("GET", "/api/v1/feed", nil)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func (suite *HandlersTestSuite) TestGetFeedContainsFollowedAndOwnPosts() {
	t := suite.T()

	third := suite.createUser("third")

	suite.follow(suite.testUser, suite.otherUser)
	suite.createPost(suite.testUser, "my own post")
	suite.createPost(suite.otherUser, "followed post")
	suite.createPost(third, "stranger post")

	req, _ := http.NewRequest("GET", "/api/v1/feed", nil)
	req.Header.Set("X-User-ID", suite.testUser.ID)

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code, "Response body: %s", w.Body.String())

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)

	posts := response["posts"].([]interface{})
	assert.Len(t, posts, 2)

	contents := make([]string, 0, len(posts))
	for _, p := range posts {
		contents = append(contents, p.(map[string]interface{})["content"].(string))
	}
	assert.Contains(t, contents, "my own post")
	assert.Contains(t, contents, "followed post")
	assert.NotContains(t, contents, "stranger post")

	meta := response["meta"].(map[string]interface{})
	assert.Equal(t, float64(1), meta["page"])
	assert.Equal(t, float64(2), meta["total"])
}

func (suite *HandlersTestSuite) TestGetFeedNewestFirst() {
	t := suite.T()

	suite.createPost(suite.testUser, "first")
	suite.createPost(suite.testUser, "second")

	req, _ := http.NewRequest("GET", "/api/v1/feed", nil)
	req.Header.Set("X-User-ID", suite.testUser.ID)

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)

	posts := response["posts"].([]interface{})
	require.Len(t, posts, 2)
	assert.Equal(t, "second", posts[0].(map[string]interface{})["content"])
	assert.Equal(t, "first", posts[1].(map[string]interface{})["content"])
}

func (suite *HandlersTestSuite) TestGetFeedPagination() {
	t := suite.T()

	for i := 0; i < 25; i++ {
		suite.createPost(suite.testUser, "post")
	}

	req, _ := http.NewRequest("GET", "/api/v1/feed?page=2&limit=10", nil)
	req.Header.Set("X-User-ID", suite.testUser.ID)

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)

	posts := response["posts"].([]interface{})
	assert.Len(t, posts, 10)

	meta := response["meta"].(map[string]interface{})
	assert.Equal(t, float64(2), meta["page"])
	assert.Equal(t, float64(25), meta["total"])
	assert.Equal(t, float64(3), meta["total_pages"])
}

func (suite *HandlersTestSuite) TestGetFeedMarksLikedPosts() {
	t := suite.T()

	post := suite.createPost(suite.testUser, "liked post")
	require.NoError(t, suite.db.Create(&models.PostLike{
		PostID: post.ID,
		UserID: suite.testUser.ID,
	}).Error)
	suite.createPost(suite.testUser, "unliked post")

	req, _ := http.NewRequest("GET", "/api/v1/feed", nil)
	req.Header.Set("X-User-ID", suite.testUser.ID)

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)

	for _, p := range response["posts"].([]interface{}) {
		entry := p.(map[string]interface{})
		if entry["content"] == "liked post" {
			assert.Equal(t, true, entry["is_liked"])
		} else {
			assert.Equal(t, false, entry["is_liked"])
		}
	}
}

func (suite *HandlersTestSuite) TestCreatePostText() {
	t := suite.T()

	body := map[string]interface{}{"content": "hello world"}
	jsonBody, _ := json.Marshal(body)

	req, _ := http.NewRequest("POST", "/api/v1/posts", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", suite.testUser.ID)

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code, "Response body: %s", w.Body.String())

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)

	post := response["post"].(map[string]interface{})
	assert.Equal(t, "hello world", post["content"])
	assert.Equal(t, "text", post["kind"])
	assert.Equal(t, suite.testUser.ID, post["user_id"])

	// Author post counter moves with the insert
	var dbUser models.User
	suite.db.First(&dbUser, "id = ?", suite.testUser.ID)
	assert.Equal(t, 1, dbUser.PostCount)
}

func (suite *HandlersTestSuite) TestCreatePostEmptyContent() {
	t := suite.T()

	body := map[string]interface{}{"content": "   "}
	jsonBody, _ := json.Marshal(body)

	req, _ := http.NewRequest("POST", "/api/v1/posts", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", suite.testUser.ID)

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func (suite *HandlersTestSuite) TestCreatePostTooLong() {
	t := suite.T()

	long := make([]byte, models.MaxPostContentLength+1)
	for i := range long {
		long[i] = 'a'
	}
	body := map[string]interface{}{"content": string(long)}
	jsonBody, _ := json.Marshal(body)

	req, _ := http.NewRequest("POST", "/api/v1/posts", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", suite.testUser.ID)

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func (suite *HandlersTestSuite) TestGetPost() {
	t := suite.T()

	post := suite.createPost(suite.otherUser, "a post")

	req, _ := http.NewRequest("GET", "/api/v1/posts/"+post.ID, nil)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)

	entry := response["post"].(map[string]interface{})
	assert.Equal(t, "a post", entry["content"])
	assert.Equal(t, false, entry["is_liked"])

	author := entry["author"].(map[string]interface{})
	assert.Equal(t, suite.otherUser.Username, author["username"])
}

func (suite *HandlersTestSuite) TestGetPostNotFound() {
	t := suite.T()

	req, _ := http.NewRequest("GET", "/api/v1/posts/00000000-0000-0000-0000-000000000000", nil)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func (suite *HandlersTestSuite) TestDeletePost() {
	t := suite.T()

	post := suite.createPost(suite.testUser, "to be deleted")

	req, _ := http.NewRequest("DELETE", "/api/v1/posts/"+post.ID, nil)
	req.Header.Set("X-User-ID", suite.testUser.ID)

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	// Soft deleted: invisible through the default scope
	var count int64
	suite.db.Model(&models.Post{}).Where("id = ?", post.ID).Count(&count)
	assert.Equal(t, int64(0), count)

	var dbUser models.User
	suite.db.First(&dbUser, "id = ?", suite.testUser.ID)
	assert.Equal(t, 0, dbUser.PostCount)
}

func (suite *HandlersTestSuite) TestDeletePostNotOwner() {
	t := suite.T()

	post := suite.createPost(suite.otherUser, "not yours")

	req, _ := http.NewRequest("DELETE", "/api/v1/posts/"+post.ID, nil)
	req.Header.Set("X-User-ID", suite.testUser.ID)

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func (suite *HandlersTestSuite) TestGetUserPosts() {
	t := suite.T()

	suite.createPost(suite.otherUser, "post one")
	suite.createPost(suite.otherUser, "post two")
	suite.createPost(suite.testUser, "someone else")

	req, _ := http.NewRequest("GET", "/api/v1/users/"+suite.otherUser.ID+"/posts", nil)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)

	posts := response["posts"].([]interface{})
	assert.Len(t, posts, 2)

	meta := response["meta"].(map[string]interface{})
	assert.Equal(t, float64(2), meta["total"])
}

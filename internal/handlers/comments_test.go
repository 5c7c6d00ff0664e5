package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/socialfeed/backend/internal/models"
)

func (suite *HandlersTestSuite) postComment(userID, postID string, body map[string]interface{}) *httptest.ResponseRecorder {
	jsonBody, _ := json.Marshal(body)
	req, _ := http.NewRequest("POST", "/api/v1/posts/"+postID+"/comments", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", userID)

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *HandlersTestSuite) TestCreateComment() {
	t := suite.T()

	post := suite.createPost(suite.otherUser, "commentable")

	w := suite.postComment(suite.testUser.ID, post.ID, map[string]interface{}{
		"content": "nice post",
	})

	assert.Equal(t, http.StatusCreated, w.Code, "Response body: %s", w.Body.String())

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)

	comment := response["comment"].(map[string]interface{})
	assert.Equal(t, "nice post", comment["content"])
	assert.Nil(t, comment["parent_id"])

	var dbPost models.Post
	suite.db.First(&dbPost, "id = ?", post.ID)
	assert.Equal(t, 1, dbPost.CommentCount)

	// Post owner gets a comment notification
	var notification models.Notification
	require.NoError(t, suite.db.Where("user_id = ?", suite.otherUser.ID).First(&notification).Error)
	assert.Equal(t, models.NotificationComment, notification.Type)
}

func (suite *HandlersTestSuite) TestCreateCommentEmptyContent() {
	t := suite.T()

	post := suite.createPost(suite.otherUser, "commentable")

	w := suite.postComment(suite.testUser.ID, post.ID, map[string]interface{}{
		"content": "",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func (suite *HandlersTestSuite) TestCreateCommentPostNotFound() {
	t := suite.T()

	w := suite.postComment(suite.testUser.ID, "00000000-0000-0000-0000-000000000000", map[string]interface{}{
		"content": "orphan",
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func (suite *HandlersTestSuite) TestCreateReply() {
	t := suite.T()

	post := suite.createPost(suite.otherUser, "commentable")
	parent := suite.createComment(suite.otherUser, post, "top level", nil)

	w := suite.postComment(suite.testUser.ID, post.ID, map[string]interface{}{
		"content":   "a reply",
		"parent_id": parent.ID,
	})

	assert.Equal(t, http.StatusCreated, w.Code, "Response body: %s", w.Body.String())

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)

	comment := response["comment"].(map[string]interface{})
	assert.Equal(t, parent.ID, comment["parent_id"])

	var dbParent models.Comment
	suite.db.First(&dbParent, "id = ?", parent.ID)
	assert.Equal(t, 1, dbParent.ReplyCount)
}

func (suite *HandlersTestSuite) TestReplyToReplyAttachesToTopLevel() {
	t := suite.T()

	post := suite.createPost(suite.otherUser, "commentable")
	top := suite.createComment(suite.otherUser, post, "top level", nil)
	reply := suite.createComment(suite.testUser, post, "first reply", &top.ID)

	// Replying to a reply reparents onto the top-level comment
	w := suite.postComment(suite.testUser.ID, post.ID, map[string]interface{}{
		"content":   "nested reply",
		"parent_id": reply.ID,
	})

	assert.Equal(t, http.StatusCreated, w.Code)

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)

	comment := response["comment"].(map[string]interface{})
	assert.Equal(t, top.ID, comment["parent_id"])
}

func (suite *HandlersTestSuite) TestReplyParentFromDifferentPost() {
	t := suite.T()

	post := suite.createPost(suite.otherUser, "post a")
	otherPost := suite.createPost(suite.otherUser, "post b")
	foreignParent := suite.createComment(suite.otherUser, otherPost, "elsewhere", nil)

	w := suite.postComment(suite.testUser.ID, post.ID, map[string]interface{}{
		"content":   "cross-post reply",
		"parent_id": foreignParent.ID,
	})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func (suite *HandlersTestSuite) TestReplyNotifiesParentAuthor() {
	t := suite.T()

	third := suite.createUser("third")
	post := suite.createPost(suite.otherUser, "commentable")
	parent := suite.createComment(third, post, "top level", nil)

	w := suite.postComment(suite.testUser.ID, post.ID, map[string]interface{}{
		"content":   "a reply",
		"parent_id": parent.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	// Post owner hears about the comment, parent author about the reply
	var ownerNotification models.Notification
	require.NoError(t, suite.db.Where("user_id = ?", suite.otherUser.ID).First(&ownerNotification).Error)
	assert.Equal(t, models.NotificationComment, ownerNotification.Type)

	var replyNotification models.Notification
	require.NoError(t, suite.db.Where("user_id = ?", third.ID).First(&replyNotification).Error)
	assert.Equal(t, models.NotificationReply, replyNotification.Type)
}

func (suite *HandlersTestSuite) TestGetComments() {
	t := suite.T()

	post := suite.createPost(suite.otherUser, "commentable")
	top := suite.createComment(suite.testUser, post, "top level", nil)
	suite.createComment(suite.otherUser, post, "a reply", &top.ID)

	req, _ := http.NewRequest("GET", "/api/v1/posts/"+post.ID+"/comments", nil)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)

	// Only top-level comments at the root, replies nested underneath
	comments := response["comments"].([]interface{})
	require.Len(t, comments, 1)

	entry := comments[0].(map[string]interface{})
	assert.Equal(t, "top level", entry["content"])

	replies := entry["replies"].([]interface{})
	require.Len(t, replies, 1)
	assert.Equal(t, "a reply", replies[0].(map[string]interface{})["content"])
}

func (suite *HandlersTestSuite) TestGetCommentReplies() {
	t := suite.T()

	post := suite.createPost(suite.otherUser, "commentable")
	top := suite.createComment(suite.testUser, post, "top level", nil)
	suite.createComment(suite.otherUser, post, "reply one", &top.ID)
	suite.createComment(suite.otherUser, post, "reply two", &top.ID)

	req, _ := http.NewRequest("GET", "/api/v1/comments/"+top.ID+"/replies", nil)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)

	replies := response["replies"].([]interface{})
	require.Len(t, replies, 2)
	// Oldest first
	assert.Equal(t, "reply one", replies[0].(map[string]interface{})["content"])
}

func (suite *HandlersTestSuite) TestUpdateComment() {
	t := suite.T()

	post := suite.createPost(suite.otherUser, "commentable")
	comment := suite.createComment(suite.testUser, post, "original", nil)

	body := map[string]interface{}{"content": "edited"}
	jsonBody, _ := json.Marshal(body)

	req, _ := http.NewRequest("PUT", "/api/v1/comments/"+comment.ID, bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", suite.testUser.ID)

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code, "Response body: %s", w.Body.String())

	var dbComment models.Comment
	suite.db.First(&dbComment, "id = ?", comment.ID)
	assert.Equal(t, "edited", dbComment.Content)
	assert.True(t, dbComment.IsEdited)
	assert.NotNil(t, dbComment.EditedAt)
}

func (suite *HandlersTestSuite) TestUpdateCommentOldComment() {
	t := suite.T()

	post := suite.createPost(suite.otherUser, "commentable")
	comment := suite.createComment(suite.testUser, post, "original", nil)

	// Owners can edit regardless of how old the comment is
	suite.db.Model(&models.Comment{}).Where("id = ?", comment.ID).
		UpdateColumn("created_at", time.Now().Add(-48*time.Hour))

	body := map[string]interface{}{"content": "still editable"}
	jsonBody, _ := json.Marshal(body)

	req, _ := http.NewRequest("PUT", "/api/v1/comments/"+comment.ID, bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", suite.testUser.ID)

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code, "Response body: %s", w.Body.String())

	var dbComment models.Comment
	suite.db.First(&dbComment, "id = ?", comment.ID)
	assert.Equal(t, "still editable", dbComment.Content)
	assert.True(t, dbComment.IsEdited)
}

func (suite *HandlersTestSuite) TestUpdateCommentNotOwner() {
	t := suite.T()

	post := suite.createPost(suite.otherUser, "commentable")
	comment := suite.createComment(suite.otherUser, post, "not yours", nil)

	body := map[string]interface{}{"content": "hijacked"}
	jsonBody, _ := json.Marshal(body)

	req, _ := http.NewRequest("PUT", "/api/v1/comments/"+comment.ID, bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", suite.testUser.ID)

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func (suite *HandlersTestSuite) TestDeleteCommentCascadesToReplies() {
	t := suite.T()

	post := suite.createPost(suite.otherUser, "commentable")
	top := suite.createComment(suite.testUser, post, "top level", nil)
	suite.createComment(suite.otherUser, post, "reply one", &top.ID)
	suite.createComment(suite.otherUser, post, "reply two", &top.ID)

	req, _ := http.NewRequest("DELETE", "/api/v1/comments/"+top.ID, nil)
	req.Header.Set("X-User-ID", suite.testUser.ID)

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code, "Response body: %s", w.Body.String())

	// Comment and both replies are gone, counter drops by three
	var count int64
	suite.db.Model(&models.Comment{}).Where("post_id = ?", post.ID).Count(&count)
	assert.Equal(t, int64(0), count)

	var dbPost models.Post
	suite.db.First(&dbPost, "id = ?", post.ID)
	assert.Equal(t, 0, dbPost.CommentCount)
}

func (suite *HandlersTestSuite) TestDeleteCommentNotOwner() {
	t := suite.T()

	post := suite.createPost(suite.otherUser, "commentable")
	comment := suite.createComment(suite.otherUser, post, "not yours", nil)

	req, _ := http.NewRequest("DELETE", "/api/v1/comments/"+comment.ID, nil)
	req.Header.Set("X-User-ID", suite.testUser.ID)

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func (suite *HandlersTestSuite) TestLikeCommentToggle() {
	t := suite.T()

	post := suite.createPost(suite.otherUser, "commentable")
	comment := suite.createComment(suite.otherUser, post, "likeable", nil)

	req, _ := http.NewRequest("POST", "/api/v1/comments/"+comment.ID+"/like", nil)
	req.Header.Set("X-User-ID", suite.testUser.ID)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code, "Response body: %s", w.Body.String())

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, true, response["liked"])
	assert.Equal(t, float64(1), response["like_count"])

	// Owner gets a comment-like notification
	var notification models.Notification
	require.NoError(t, suite.db.Where("user_id = ?", suite.otherUser.ID).First(&notification).Error)
	assert.Equal(t, models.NotificationLikeComment, notification.Type)

	// Toggle off
	req, _ = http.NewRequest("POST", "/api/v1/comments/"+comment.ID+"/like", nil)
	req.Header.Set("X-User-ID", suite.testUser.ID)
	w = httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, false, response["liked"])
	assert.Equal(t, float64(0), response["like_count"])
}

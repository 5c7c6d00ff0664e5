package seed

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/socialfeed/backend/internal/logger"
	"github.com/socialfeed/backend/internal/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Seeder handles database seeding operations
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	_ = gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{db: db}
}

// SeedDev seeds the development database with realistic data
func (s *Seeder) SeedDev() error {
	log := func(msg string) {
		logger.Log.Info(msg)
	}

	log("Creating users...")
	users, err := s.seedUsers(100)
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}

	log("Creating follow graph...")
	if err := s.seedFollows(users, 500); err != nil {
		return fmt.Errorf("failed to seed follows: %w", err)
	}

	log("Creating posts...")
	posts, err := s.seedPosts(users, 400)
	if err != nil {
		return fmt.Errorf("failed to seed posts: %w", err)
	}

	log("Creating comments...")
	comments, err := s.seedComments(users, posts, 800)
	if err != nil {
		return fmt.Errorf("failed to seed comments: %w", err)
	}

	log("Creating post likes...")
	if err := s.seedPostLikes(users, posts, 1500); err != nil {
		return fmt.Errorf("failed to seed post likes: %w", err)
	}

	log("Creating comment likes...")
	if err := s.seedCommentLikes(users, comments, 600); err != nil {
		return fmt.Errorf("failed to seed comment likes: %w", err)
	}

	return nil
}

// SeedTest seeds the test database with a small fixed user set
func (s *Seeder) SeedTest() error {
	logger.Log.Info("Creating test users...")

	testUserSpecs := []struct {
		username string
		email    string
		name     string
	}{
		{"alice", "alice@example.com", "Alice Smith"},
		{"bob", "bob@example.com", "Bob Johnson"},
		{"charlie", "charlie@example.com", "Charlie Brown"},
		{"diana", "diana@example.com", "Diana Prince"},
		{"eve", "eve@example.com", "Eve Wilson"},
	}

	var users []models.User
	for _, spec := range testUserSpecs {
		var user models.User
		err := s.db.Where("username = ? OR email = ?", spec.username, spec.email).First(&user).Error
		if err == nil {
			users = append(users, user)
			continue
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		hashedPasswordStr := string(hashedPassword)

		user = models.User{
			Email:        spec.email,
			Username:     spec.username,
			Name:         spec.name,
			PasswordHash: &hashedPasswordStr,
			AvatarURL:    fmt.Sprintf("https://api.dicebear.com/7.x/avataaars/png?seed=%s", spec.username),
		}

		if err := s.db.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to create test user %s: %w", spec.username, err)
		}
		users = append(users, user)
	}

	logger.Log.Info("Creating test posts...")
	posts, err := s.seedPosts(users, 10)
	if err != nil {
		return fmt.Errorf("failed to seed posts: %w", err)
	}

	logger.Log.Info("Creating test comments...")
	if _, err := s.seedComments(users, posts, 20); err != nil {
		return fmt.Errorf("failed to seed comments: %w", err)
	}

	return nil
}

// Clean removes all seed data (use with caution!)
func (s *Seeder) Clean() error {
	// Delete in reverse order of dependencies
	tables := []string{
		"notifications",
		"comment_likes",
		"post_likes",
		"comments",
		"posts",
		"follows",
		"users",
	}
	for _, table := range tables {
		if err := s.db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clean %s: %w", table, err)
		}
	}
	return nil
}

// seedUsers creates users with realistic profile data
func (s *Seeder) seedUsers(count int) ([]models.User, error) {
	var users []models.User

	// Include any existing users so follows and likes can target them too
	if err := s.db.Find(&users).Error; err != nil {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	hashedPasswordStr := string(hashedPassword)

	for i := 0; i < count; i++ {
		username := fmt.Sprintf("%s%d", gofakeit.Username(), gofakeit.Number(1, 9999))

		user := models.User{
			Email:        gofakeit.Email(),
			Username:     username,
			Name:         gofakeit.Name(),
			Bio:          truncate(gofakeit.Sentence(10), 200),
			PasswordHash: &hashedPasswordStr,
			AvatarURL:    fmt.Sprintf("https://api.dicebear.com/7.x/avataaars/png?seed=%s", username),
		}

		if err := s.db.Create(&user).Error; err != nil {
			// Username or email collision, skip this one
			logger.Log.Warn("Skipping user", zap.String("username", username), zap.Error(err))
			continue
		}
		users = append(users, user)
	}

	return users, nil
}

// seedFollows builds a random follow graph and syncs the denormalized
// counters afterwards in bulk
func (s *Seeder) seedFollows(users []models.User, count int) error {
	if len(users) < 2 {
		return nil
	}

	created := 0
	for i := 0; i < count*2 && created < count; i++ {
		follower := users[rand.Intn(len(users))]
		following := users[rand.Intn(len(users))]
		if follower.ID == following.ID {
			continue
		}

		follow := models.Follow{FollowerID: follower.ID, FollowingID: following.ID}
		if err := s.db.Create(&follow).Error; err != nil {
			// Duplicate edge, unique index rejected it
			continue
		}
		created++
	}

	if err := s.db.Exec(`UPDATE users SET follower_count =
		(SELECT COUNT(*) FROM follows WHERE follows.following_id = users.id)`).Error; err != nil {
		return err
	}
	return s.db.Exec(`UPDATE users SET following_count =
		(SELECT COUNT(*) FROM follows WHERE follows.follower_id = users.id)`).Error
}

// seedPosts creates text and image posts spread over the past month
func (s *Seeder) seedPosts(users []models.User, count int) ([]models.Post, error) {
	if len(users) == 0 {
		return nil, nil
	}

	var posts []models.Post
	for i := 0; i < count; i++ {
		author := users[rand.Intn(len(users))]

		post := models.Post{
			UserID:    author.ID,
			Kind:      models.PostKindText,
			Content:   truncate(gofakeit.Paragraph(1, 3, 12, " "), models.MaxPostContentLength),
			CreatedAt: gofakeit.DateRange(time.Now().AddDate(0, -1, 0), time.Now()),
		}

		// Roughly a quarter of posts carry an image
		if rand.Intn(4) == 0 {
			post.Kind = models.PostKindImage
			post.ImageURL = fmt.Sprintf("https://picsum.photos/seed/%d/800/600", gofakeit.Number(1, 100000))
		}

		if err := s.db.Create(&post).Error; err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}

	return posts, s.db.Exec(`UPDATE users SET post_count =
		(SELECT COUNT(*) FROM posts WHERE posts.user_id = users.id AND posts.deleted_at IS NULL)`).Error
}

// seedComments creates top-level comments and some replies
func (s *Seeder) seedComments(users []models.User, posts []models.Post, count int) ([]models.Comment, error) {
	if len(users) == 0 || len(posts) == 0 {
		return nil, nil
	}

	var comments []models.Comment
	var topLevel []models.Comment

	for i := 0; i < count; i++ {
		author := users[rand.Intn(len(users))]
		post := posts[rand.Intn(len(posts))]

		comment := models.Comment{
			PostID:  post.ID,
			UserID:  author.ID,
			Content: truncate(gofakeit.Sentence(8), models.MaxCommentContentLength),
		}

		// Roughly a third of comments are replies to an earlier comment
		// on the same post
		if len(topLevel) > 0 && rand.Intn(3) == 0 {
			parent := topLevel[rand.Intn(len(topLevel))]
			comment.PostID = parent.PostID
			comment.ParentID = &parent.ID
		}

		if err := s.db.Create(&comment).Error; err != nil {
			return nil, err
		}
		if comment.ParentID == nil {
			topLevel = append(topLevel, comment)
		}
		comments = append(comments, comment)
	}

	if err := s.db.Exec(`UPDATE posts SET comment_count =
		(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id AND comments.deleted_at IS NULL)`).Error; err != nil {
		return nil, err
	}
	return comments, s.db.Exec(`UPDATE comments SET reply_count =
		(SELECT COUNT(*) FROM comments AS replies WHERE replies.parent_id = comments.id AND replies.deleted_at IS NULL)`).Error
}

// seedPostLikes creates random post likes and syncs like counters
func (s *Seeder) seedPostLikes(users []models.User, posts []models.Post, count int) error {
	if len(users) == 0 || len(posts) == 0 {
		return nil
	}

	created := 0
	for i := 0; i < count*2 && created < count; i++ {
		like := models.PostLike{
			PostID: posts[rand.Intn(len(posts))].ID,
			UserID: users[rand.Intn(len(users))].ID,
		}
		if err := s.db.Create(&like).Error; err != nil {
			// Duplicate pair, unique index rejected it
			continue
		}
		created++
	}

	return s.db.Exec(`UPDATE posts SET like_count =
		(SELECT COUNT(*) FROM post_likes WHERE post_likes.post_id = posts.id)`).Error
}

// seedCommentLikes creates random comment likes and syncs like counters
func (s *Seeder) seedCommentLikes(users []models.User, comments []models.Comment, count int) error {
	if len(users) == 0 || len(comments) == 0 {
		return nil
	}

	created := 0
	for i := 0; i < count*2 && created < count; i++ {
		like := models.CommentLike{
			CommentID: comments[rand.Intn(len(comments))].ID,
			UserID:    users[rand.Intn(len(users))].ID,
		}
		if err := s.db.Create(&like).Error; err != nil {
			continue
		}
		created++
	}

	return s.db.Exec(`UPDATE comments SET like_count =
		(SELECT COUNT(*) FROM comment_likes WHERE comment_likes.comment_id = comments.id)`).Error
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/socialfeed/backend/internal/auth"
	"github.com/socialfeed/backend/internal/cache"
	"github.com/socialfeed/backend/internal/database"
	"github.com/socialfeed/backend/internal/email"
	"github.com/socialfeed/backend/internal/handlers"
	"github.com/socialfeed/backend/internal/logger"
	"github.com/socialfeed/backend/internal/metrics"
	"github.com/socialfeed/backend/internal/middleware"
	"github.com/socialfeed/backend/internal/search"
	"github.com/socialfeed/backend/internal/storage"
	"github.com/socialfeed/backend/internal/telemetry"
	"github.com/socialfeed/backend/internal/websocket"
	"go.uber.org/zap"
)

const serviceName = "socialfeed-backend"

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	// Structured logging
	if err := logger.Initialize(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FILE")); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	logger.Log.Info("=== SocialFeed server starting ===")

	// Initialize database
	if err := database.Initialize(); err != nil {
		logger.FatalWithFields("Failed to initialize database", err)
	}

	// Run migrations
	if err := database.Migrate(); err != nil {
		logger.FatalWithFields("Failed to run migrations", err)
	}

	// Prometheus metrics
	metrics.Initialize()

	// Distributed tracing (off unless OTEL_ENABLED=true)
	samplingRate := 1.0
	if rate, err := strconv.ParseFloat(os.Getenv("OTEL_SAMPLING_RATE"), 64); err == nil && rate > 0 {
		samplingRate = rate
	}
	tracerProvider, err := telemetry.InitTracer(telemetry.Config{
		ServiceName:  serviceName,
		Environment:  envOrDefault("ENVIRONMENT", "development"),
		OTLPEndpoint: envOrDefault("OTLP_ENDPOINT", "localhost:4318"),
		Enabled:      os.Getenv("OTEL_ENABLED") == "true",
		SamplingRate: samplingRate,
	})
	if err != nil {
		logger.WarnWithFields("Failed to initialize tracing, continuing without it", err)
	}

	// Redis backs presence mirroring and rate limiting
	redisClient, err := cache.NewRedisClient(
		envOrDefault("REDIS_HOST", "localhost"),
		envOrDefault("REDIS_PORT", "6379"),
		os.Getenv("REDIS_PASSWORD"),
	)
	if err != nil {
		logger.WarnWithFields("Redis unavailable, presence mirroring and rate limiting degraded", err)
	}

	// Auth service
	jwtSecret := []byte(os.Getenv("JWT_SECRET"))
	if len(jwtSecret) == 0 {
		logger.Log.Fatal("JWT_SECRET environment variable is required")
	}

	authService := auth.NewService(
		jwtSecret,
		os.Getenv("GOOGLE_CLIENT_ID"),
		os.Getenv("GOOGLE_CLIENT_SECRET"),
	)

	// S3 uploader for post images and avatars
	var uploader *storage.S3Uploader
	if bucket := os.Getenv("AWS_BUCKET"); bucket != "" {
		uploader, err = storage.NewS3Uploader(
			os.Getenv("AWS_REGION"),
			bucket,
			os.Getenv("CDN_BASE_URL"),
		)
		if err != nil {
			logger.FatalWithFields("Failed to initialize S3 uploader", err)
		}
		if err := uploader.CheckBucketAccess(context.Background()); err != nil {
			logger.WarnWithFields("S3 bucket access failed, image uploads will fail", err)
		}
	} else {
		logger.Log.Warn("AWS_BUCKET not set, image uploads disabled")
	}

	// SES transactional email
	var emailService *email.EmailService
	if fromEmail := os.Getenv("SES_FROM_EMAIL"); fromEmail != "" {
		emailService, err = email.NewEmailService(
			os.Getenv("AWS_REGION"),
			fromEmail,
			envOrDefault("SES_FROM_NAME", "SocialFeed"),
		)
		if err != nil {
			logger.WarnWithFields("SES unavailable, transactional email disabled", err)
			emailService = nil
		}
	}

	// Elasticsearch user search with Redis result caching, plus a
	// background reconciler that re-syncs drifted documents
	var searchClient *search.CachedClient
	var reconciler *search.ReconciliationService
	if esClient, err := search.NewClient(); err != nil {
		logger.WarnWithFields("Elasticsearch unavailable, user search falls back to database", err)
	} else {
		if err := esClient.InitializeIndices(context.Background()); err != nil {
			logger.WarnWithFields("Failed to initialize search indices", err)
		}
		searchClient, err = search.NewCachedClient(esClient)
		if err != nil {
			logger.WarnWithFields("Failed to set up search caching", err)
		}
		reconciler = search.NewReconciliationService(esClient, 10*time.Minute)
		reconciler.Start()
		defer reconciler.Stop()
	}

	// WebSocket hub, handler and presence tracking
	wsHub := websocket.NewHub()
	wsHandler := websocket.NewHandler(wsHub, jwtSecret)
	wsHandler.RegisterDefaultHandlers()

	presenceManager := websocket.NewPresenceManager(wsHub, redisClient, websocket.DefaultPresenceConfig())
	wsHandler.SetPresenceManager(presenceManager)
	presenceManager.Start()
	defer presenceManager.Stop()

	go wsHub.Run()

	// HTTP handlers
	h := handlers.NewHandlers(authService)
	h.SetWebSocketHandler(wsHandler)
	if searchClient != nil {
		h.SetSearchClient(searchClient)
	}
	if uploader != nil {
		h.SetUploader(uploader)
	}
	if emailService != nil {
		h.SetEmailService(emailService)
	}

	// Gin router
	if envOrDefault("ENVIRONMENT", "development") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.GinLoggerMiddleware())
	r.Use(middleware.TracingMiddleware(serviceName))
	r.Use(middleware.MetricsMiddleware())
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{envOrDefault("CORS_ORIGIN", "*")}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(corsConfig))

	// Health and metrics endpoints
	r.GET("/health", func(c *gin.Context) {
		status := "ok"
		code := http.StatusOK
		if err := database.Health(); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": time.Now().UTC(),
			"service":   serviceName,
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	api := r.Group("/api/v1")
	{
		// Authentication routes
		authGroup := api.Group("/auth")
		{
			// Brute-force protection on credential endpoints
			authGroup.Use(middleware.RedisRateLimitMiddleware(20, time.Minute))

			authGroup.POST("/register", h.Register)
			authGroup.POST("/login", h.Login)

			authGroup.GET("/google", h.GoogleOAuthURL)
			authGroup.GET("/google/callback", h.GoogleOAuthCallback)

			authGroup.GET("/me", authService.Middleware(), h.GetCurrentUser)

			authGroup.POST("/2fa/setup", authService.Middleware(), h.Setup2FA)
			authGroup.POST("/2fa/verify", authService.Middleware(), h.Verify2FA)
			authGroup.POST("/2fa/disable", authService.Middleware(), h.Disable2FA)
		}

		// Feed routes
		feed := api.Group("/feed")
		{
			feed.Use(authService.Middleware())
			feed.GET("", h.GetFeed)
		}

		// Post routes
		posts := api.Group("/posts")
		{
			posts.GET("/:id", authService.OptionalMiddleware(), h.GetPost)
			posts.GET("/:id/comments", h.GetComments)

			posts.POST("", authService.Middleware(), h.CreatePost)
			posts.DELETE("/:id", authService.Middleware(), h.DeletePost)
			posts.POST("/:id/like", authService.Middleware(), h.LikePost)
			posts.POST("/:id/share", authService.Middleware(), h.SharePost)
			posts.POST("/:id/comments", authService.Middleware(), h.CreateComment)
		}

		// Comment routes
		comments := api.Group("/comments")
		{
			comments.GET("/:id/replies", h.GetCommentReplies)

			comments.PUT("/:id", authService.Middleware(), h.UpdateComment)
			comments.DELETE("/:id", authService.Middleware(), h.DeleteComment)
			comments.POST("/:id/like", authService.Middleware(), h.LikeComment)
		}

		// User routes
		users := api.Group("/users")
		{
			users.GET("/search", h.SearchUsers)
			users.GET("/:id", authService.OptionalMiddleware(), h.GetUserProfile)
			users.GET("/:id/posts", authService.OptionalMiddleware(), h.GetUserPosts)
			users.GET("/:id/followers", h.GetFollowers)
			users.GET("/:id/following", h.GetFollowing)

			users.PUT("/me", authService.Middleware(), h.UpdateProfile)
			users.POST("/:id/follow", authService.Middleware(), h.FollowUser)
		}

		// Notification routes
		notifications := api.Group("/notifications")
		{
			notifications.Use(authService.Middleware())
			notifications.GET("", h.GetNotifications)
			notifications.PUT("/read-all", h.MarkAllNotificationsRead)
			notifications.PUT("/:id/read", h.MarkNotificationRead)
		}

		// WebSocket routes
		ws := api.Group("/ws")
		{
			// Connection endpoint - auth via query param ?token=... or Authorization header
			ws.GET("", wsHandler.HandleWebSocket)
			ws.GET("/connect", wsHandler.HandleWebSocket)

			ws.GET("/metrics", authService.Middleware(), wsHandler.HandleMetrics)
			ws.POST("/online", authService.Middleware(), wsHandler.HandleOnlineStatus)
			ws.POST("/presence", authService.Middleware(), wsHandler.HandlePresenceStatus)
		}
	}

	// Server configuration
	port := envOrDefault("PORT", "8787")

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info("SocialFeed backend listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.FatalWithFields("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	// Give outstanding requests 30 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown WebSocket connections gracefully
	if err := wsHandler.Shutdown(ctx); err != nil {
		logger.WarnWithFields("WebSocket shutdown warning", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.FatalWithFields("Server forced to shutdown", err)
	}

	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(ctx); err != nil {
			logger.WarnWithFields("Tracer shutdown warning", err)
		}
	}

	logger.Log.Info("Server exited")
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

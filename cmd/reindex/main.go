package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/socialfeed/backend/internal/database"
	"github.com/socialfeed/backend/internal/models"
	"github.com/socialfeed/backend/internal/search"
)

// Rebuilds the Elasticsearch users index from the database. Safe to run
// while the server is up; documents are upserted in place.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	if err := database.Initialize(); err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer database.Close()

	client, err := search.NewClient()
	if err != nil {
		log.Fatalf("❌ Failed to connect to Elasticsearch: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := client.InitializeIndices(ctx); err != nil {
		log.Fatalf("❌ Failed to initialize indices: %v", err)
	}

	indexed := 0
	failed := 0
	batchSize := 500

	for offset := 0; ; offset += batchSize {
		var users []models.User
		if err := database.DB.
			Order("created_at ASC").
			Limit(batchSize).
			Offset(offset).
			Find(&users).Error; err != nil {
			log.Fatalf("❌ Failed to load users: %v", err)
		}
		if len(users) == 0 {
			break
		}

		for _, user := range users {
			if err := client.IndexUser(ctx, user.ID, search.UserToSearchDoc(user)); err != nil {
				log.Printf("⚠️  Failed to index user %s: %v", user.Username, err)
				failed++
				continue
			}
			indexed++
		}

		log.Printf("Indexed %d users...", indexed)
	}

	log.Printf("✅ Reindex complete: %d indexed, %d failed", indexed, failed)
}

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/socialfeed/backend/internal/database"
	"github.com/socialfeed/backend/internal/logger"
	"github.com/socialfeed/backend/internal/seed"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	if err := logger.Initialize(os.Getenv("LOG_LEVEL"), "seed.log"); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	// Parse command
	command := "dev"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "dev":
		seedDev()
	case "test":
		seedTest()
	case "clean":
		cleanSeed()
	default:
		fmt.Println("Usage: seed [dev|test|clean]")
		fmt.Println("  dev   - Seed development database with realistic data")
		fmt.Println("  test  - Seed test database with minimal data")
		fmt.Println("  clean - Remove all seed data (use with caution)")
		os.Exit(1)
	}
}

func seedDev() {
	log.Println("🌱 Seeding development database...")

	if err := database.Initialize(); err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer database.Close()

	log.Println("✅ Database connected")

	seeder := seed.NewSeeder(database.DB)
	if err := seeder.SeedDev(); err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Println("✅ Development database seeded successfully!")
}

func seedTest() {
	log.Println("🧪 Seeding test database...")

	if err := database.Initialize(); err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer database.Close()

	log.Println("✅ Database connected")

	seeder := seed.NewSeeder(database.DB)
	if err := seeder.SeedTest(); err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Println("✅ Test database seeded successfully!")
}

func cleanSeed() {
	log.Println("🧹 Cleaning seed data...")

	if err := database.Initialize(); err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer database.Close()

	log.Println("✅ Database connected")

	seeder := seed.NewSeeder(database.DB)
	if err := seeder.Clean(); err != nil {
		log.Fatalf("❌ Clean failed: %v", err)
	}

	log.Println("✅ Seed data cleaned successfully!")
}

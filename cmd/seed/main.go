package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/xuebang/xuebang-api/database"
)

// Seeds the membership tier catalog. Safe to run repeatedly: existing
// tiers are never overwritten.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	store, err := database.StartGORM()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	if err := store.Init(); err != nil {
		log.Fatalf("Failed to migrate and seed: %v", err)
	}

	log.Println("Seed completed.")
}

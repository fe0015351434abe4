package database

import (
	"log"

	"studio/config"
	"studio/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// DbInstance struct holds the database connection instance
type DbInstance struct {
	Db *gorm.DB
}

// Database is the global database instance
var Database DbInstance

// ConnectDb opens the local journal database. The journal is a small sqlite
// file next to the studio process; it only records cleanup obligations, all
// course data lives on the remote backend.
func ConnectDb() {
	db, err := gorm.Open(sqlite.Open(config.AppConfig.JournalDBName), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to open journal database: %v", err)
	}

	runMigrations(db)

	// Save database instance globally
	Database = DbInstance{Db: db}
}

// runMigrations performs database migrations
func runMigrations(db *gorm.DB) {
	log.Println("Running Migrations...")

	err := db.AutoMigrate(
		&models.OrphanMedia{},
	)
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("Migrations completed successfully.")
}

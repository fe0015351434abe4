package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port          string
	JournalDBName string

	BackendApiURL string // Marketplace backend base URL

	UploadChunkSize  int    // Default chunk size in bytes for resumable uploads
	UploadTusVersion string // Resumable protocol version sent on negotiation

	AutoSaveSpec string // Cron spec for the periodic auto-save scheduler
}

// AppConfig is a global variable to access configuration
var AppConfig *Config

// LoadConfig initializes configuration from environment variables or defaults
func LoadConfig() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found. Using system environment variables.")
	}

	// Initialize AppConfig with values from environment variables
	AppConfig = &Config{
		Port:          getEnv("PORT", "3000"),
		JournalDBName: getEnv("JOURNAL_DB_NAME", "studioJournal.db"),

		BackendApiURL: getEnv("BACKEND_API_URL", "https://api.cs24.dev/v1"),

		UploadChunkSize:  getEnvInt("UPLOAD_CHUNK_SIZE", 5242880), // 5 MB
		UploadTusVersion: getEnv("UPLOAD_TUS_VERSION", "1.0.0"),

		AutoSaveSpec: getEnv("AUTO_SAVE_SPEC", "@every 2m"),
	}

	// Validate critical configuration
	if AppConfig.BackendApiURL == "https://api.cs24.dev/v1" {
		log.Println("Warning: Using default BACKEND_API_URL. Update it in your environment.")
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt retrieves an environment variable as an integer or returns the default integer value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Error converting environment variable %s to int: %v", key, err)
		return defaultValue
	}
	return intValue
}

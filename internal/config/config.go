package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	AppEnv    string
	Port      string
	JWTSecret string
	Database  DatabaseConfig
	Remote    RemoteConfig
	Gemini    GeminiConfig
}

// DatabaseConfig holds local database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// RemoteConfig holds hosted backend configuration
type RemoteConfig struct {
	URL      string
	Database string
	Username string
	APIKey   string
}

// GeminiConfig holds AI drafting configuration
type GeminiConfig struct {
	APIKey string
	Model  string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return &Config{
		AppEnv:    getEnv("APP_ENV", "development"),
		Port:      getEnv("PORT", "3400"),
		JWTSecret: jwtSecret,
		Database: DatabaseConfig{
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Username: getEnv("PG_USERNAME", "postgres"),
			Password: os.Getenv("PG_PASSWORD"),
			Database: getEnv("PG_DATABASE", "fieldfolio"),
		},
		Remote: RemoteConfig{
			URL:      os.Getenv("REMOTE_URL"),
			Database: getEnv("REMOTE_DATABASE", "fieldfolio"),
			Username: os.Getenv("REMOTE_USERNAME"),
			APIKey:   os.Getenv("REMOTE_API_KEY"),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
			Model:  getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		},
	}, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

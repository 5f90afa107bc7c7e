// config/load.go
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Load reads configuration from the environment. A .env file, when
// present, is merged in first but never overrides real env vars.
func Load() (App, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return App{}, fmt.Errorf("config: DATABASE_URL is required")
	}

	return App{
		Port:        getenv("PORT", "8080"),
		Env:         getenv("APP_ENV", "development"),
		DatabaseURL: dbURL,
		MongoURL:    getenv("MONGO_URL", "mongodb://localhost:27017"),
		MongoDBName: getenv("MONGO_DB", "lendworks"),
		JWTSecret:   getenv("JWT_SECRET", "change-me"),
		BotToken:    os.Getenv("TELEGRAM_BOT_TOKEN"),
	}, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerAddress   string
	Environment     string
	JWTSecret       string
	JWTExpiration   time.Duration
	MongoURI        string
	MongoDB         string
	DataDir         string
	UploadDir       string
	MaxUploadSizeMB int64

	// Firebase identity provider (optional; the local provider is used when unset).
	FirebaseProjectID   string
	FirebaseCredentials string
	FirebaseAPIKey      string

	// Bounded wait for the remote sign-out during logout.
	SignOutTimeout time.Duration
	// Timeout for the backend reachability probe.
	ProbeTimeout time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		ServerAddress:   getEnv("SERVER_ADDRESS", ":8080"),
		Environment:     getEnv("GO_ENV", "development"),
		JWTSecret:       getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		JWTExpiration:   24 * time.Hour,
		MongoURI:        getEnv("MONGO_URI", ""),
		MongoDB:         getEnv("MONGO_DB", "almahub"),
		DataDir:         getEnv("DATA_DIR", "./data"),
		UploadDir:       getEnv("UPLOAD_DIR", "./uploads"),
		MaxUploadSizeMB: 10,

		FirebaseProjectID:   getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS_JSON", ""),
		FirebaseAPIKey:      getEnv("FIREBASE_API_KEY", ""),

		SignOutTimeout: getEnvAsDuration("SIGNOUT_TIMEOUT_MS", 10000),
		ProbeTimeout:   getEnvAsDuration("PROBE_TIMEOUT_MS", 5000),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultMillis int) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if ms, err := strconv.Atoi(value); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return time.Duration(defaultMillis) * time.Millisecond
}

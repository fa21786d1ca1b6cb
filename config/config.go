package config

import (
	"log"
	"os"
	"strconv"
)

type Config struct {
	// Database
	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string

	// Server
	Port string
	Host string

	// Auth Service
	AuthServiceURL string

	// Sensitive-field encryption (64 hex chars, AES-256 key)
	EncryptionKey string

	// Neighborhood geodata feed
	NeighborhoodsURL  string
	NeighborhoodsFile string

	// Geocoding
	GeocodeURL       string
	GeocodeUserAgent string

	// Attachment storage
	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageBucket    string
	StorageUseSSL    bool

	// Signed URL cache (optional; empty disables caching)
	RedisAddr string

	// Default signed URL lifetime in seconds
	SignedURLTTL int
}

func Load() *Config {
	cfg := &Config{
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: getEnv("DB_PASSWORD", "password"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBName:     getEnv("DB_NAME", "copa"),
		Port:       getEnv("PORT", "8080"),
		Host:       getEnv("HOST", "0.0.0.0"),

		AuthServiceURL: getEnv("AUTH_SERVICE_URL", "http://auth-service:8080"),

		EncryptionKey: getRequiredEnv("ENCRYPTION_KEY"),

		NeighborhoodsURL:  getEnv("NEIGHBORHOODS_URL", "https://data.sfgov.org/resource/gfpk-269f.geojson?$limit=2000"),
		NeighborhoodsFile: getEnv("NEIGHBORHOODS_FILE", ""),

		GeocodeURL:       getEnv("GEOCODE_URL", "https://nominatim.openstreetmap.org/search"),
		GeocodeUserAgent: getEnv("GEOCODE_USER_AGENT", "SF-COPA-Dashboard/1.0"),

		StorageEndpoint:  getEnv("STORAGE_ENDPOINT", "localhost:9000"),
		StorageAccessKey: getEnv("STORAGE_ACCESS_KEY", ""),
		StorageSecretKey: getEnv("STORAGE_SECRET_KEY", ""),
		StorageBucket:    getEnv("STORAGE_BUCKET", "email-attachments"),
		StorageUseSSL:    getEnvAsBool("STORAGE_USE_SSL", false),

		RedisAddr: getEnv("REDIS_ADDR", ""),

		SignedURLTTL: getEnvAsInt("SIGNED_URL_TTL", 3600),
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getRequiredEnv(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	log.Fatalf("The %s value is required", key)
	return ""
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		intValue, err := strconv.Atoi(value)
		if err == nil {
			return intValue
		}
		log.Fatalf("Cannot parse %s as int", key)
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		boolValue, err := strconv.ParseBool(value)
		if err == nil {
			return boolValue
		}
		log.Fatalf("Cannot parse %s as bool", key)
	}
	return defaultValue
}

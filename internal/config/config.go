package config

import (
	"os"
	"strconv"
)

type Config struct {
	Database DatabaseConfig
	Storage  StorageConfig
	FaceAPI  FaceAPIConfig
	Auth     AuthConfig
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type StorageConfig struct {
	Bucket          string
	Endpoint        string // S3-compatible endpoint (R2, MinIO, AWS)
	Region          string // defaults to "auto" for R2-style endpoints
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string // public base for photo download URLs (e.g. https://media.example.com)
}

type FaceAPIConfig struct {
	URL            string  // base URL of the face detection service
	Dim            int     // descriptor dimensionality, fixed by the external model (default 128)
	MatchThreshold float64 // maximum descriptor distance accepted as an identity match
}

type AuthConfig struct {
	PasswordSHA256 string // hex SHA-256 of the shared gate password
	Password       string // plaintext fallback, used only when no hash is set
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envOr reads an environment variable, returning the default when unset.
func envOr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func Load() *Config {
	return &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Storage: StorageConfig{
			Bucket:          os.Getenv("STORAGE_BUCKET"),
			Endpoint:        os.Getenv("STORAGE_ENDPOINT"),
			Region:          envOr("STORAGE_REGION", "auto"),
			AccessKeyID:     os.Getenv("STORAGE_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("STORAGE_SECRET_ACCESS_KEY"),
			PublicBaseURL:   os.Getenv("STORAGE_PUBLIC_BASE_URL"),
		},
		FaceAPI: FaceAPIConfig{
			URL:            os.Getenv("FACEAPI_URL"),
			Dim:            envInt("FACEAPI_DIM", 128),
			MatchThreshold: envFloat("FACEAPI_MATCH_THRESHOLD", 0.55),
		},
		Auth: AuthConfig{
			PasswordSHA256: os.Getenv("AUTH_PASSWORD_SHA256"),
			Password:       os.Getenv("AUTH_PASSWORD"),
		},
	}
}

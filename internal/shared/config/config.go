package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	KurrentDB KurrentDBConfig
	Auth      AuthConfig
	Storage   StorageConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

// IsProduction reports whether the server runs with production settings
func (s ServerConfig) IsProduction() bool {
	return s.Env == "production"
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// RedisConfig holds the server-side session store settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Enabled falls back to the in-memory session store when false
	Enabled bool
}

// KurrentDBConfig holds configuration for KurrentDB (EventStoreDB).
type KurrentDBConfig struct {
	// Enabled controls whether complaint events are published
	Enabled  bool
	Host     string
	Port     int
	Insecure bool
	Username string
	Password string
}

type AuthConfig struct {
	JWTSecret    string
	Issuer       string
	CookieName   string
	CookieDomain string
	// SecureCookie sets the Secure flag; disable only for plain-HTTP development
	SecureCookie bool
	SessionTTL   time.Duration
	BcryptCost   int
}

// StorageConfig holds the S3 bucket used for complaint attachments.
type StorageConfig struct {
	Enabled         bool
	Region          string
	Bucket          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PresignTTL      time.Duration
	MaxUploadBytes  int64
}

type CORSConfig struct {
	AllowedOrigins []string
}

type RateLimitConfig struct {
	AuthRequestsPerSecond int
	AuthBurst             int
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvInt("SERVER_PORT", 8080),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "complaints"),
			Password: getEnv("DB_PASSWORD", "complaints"),
			Database: getEnv("DB_NAME", "complaints"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Enabled:  getEnvBool("REDIS_ENABLED", true),
		},
		KurrentDB: KurrentDBConfig{
			Enabled:  getEnvBool("KURRENTDB_ENABLED", false),
			Host:     getEnv("KURRENTDB_HOST", "localhost"),
			Port:     getEnvInt("KURRENTDB_PORT", 2113),
			Insecure: getEnvBool("KURRENTDB_INSECURE", true),
			Username: getEnv("KURRENTDB_USERNAME", ""),
			Password: getEnv("KURRENTDB_PASSWORD", ""),
		},
		Auth: AuthConfig{
			JWTSecret:    getEnv("JWT_SECRET", "dev-secret-change-in-prod"),
			Issuer:       getEnv("JWT_ISSUER", "citizenvoice"),
			CookieName:   getEnv("SESSION_COOKIE_NAME", "session"),
			CookieDomain: getEnv("SESSION_COOKIE_DOMAIN", ""),
			SecureCookie: getEnvBool("SESSION_COOKIE_SECURE", false),
			SessionTTL:   getEnvDuration("SESSION_TTL", 12*time.Hour),
			BcryptCost:   getEnvInt("BCRYPT_COST", 12),
		},
		Storage: StorageConfig{
			Enabled:         getEnvBool("S3_ENABLED", false),
			Region:          getEnv("S3_REGION", "eu-west-1"),
			Bucket:          getEnv("S3_BUCKET", "complaint-attachments"),
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			PresignTTL:      getEnvDuration("S3_PRESIGN_TTL", 15*time.Minute),
			MaxUploadBytes:  int64(getEnvInt("S3_MAX_UPLOAD_BYTES", 5<<20)),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		},
		RateLimit: RateLimitConfig{
			AuthRequestsPerSecond: getEnvInt("AUTH_RATE_LIMIT_RPS", 5),
			AuthBurst:             getEnvInt("AUTH_RATE_LIMIT_BURST", 10),
		},
	}

	if cfg.Server.IsProduction() && cfg.Auth.JWTSecret == "dev-secret-change-in-prod" {
		return nil, fmt.Errorf("JWT_SECRET must be set in production")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, v := range strings.Split(value, ",") {
			if v = strings.TrimSpace(v); v != "" {
				result = append(result, v)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

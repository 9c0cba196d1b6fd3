package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Providers ProviderConfig
	Storage   StorageConfig
	RateLimit RateLimitConfig
}

// ProviderConfig carries platform-shared credentials for capability providers.
// Accounts with their own keys bypass these (bring-your-own-key).
type ProviderConfig struct {
	OpenAIBaseURL    string
	OpenAIAPIKey     string
	ReplicateBaseURL string
	ReplicateAPIKey  string
	UseMock          bool
}

// StorageConfig configures the durable-storage integration.
type StorageConfig struct {
	DriveBaseURL       string
	DriveUploadBaseURL string
	DriveTokenURL      string
	DriveClientID      string
	DriveClientSecret  string
	RootFolderName     string
}

// RateLimitConfig configures the optional per-account generation limiter.
type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "studio"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "studio"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 600),

		Providers: ProviderConfig{
			OpenAIBaseURL:    getenv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			OpenAIAPIKey:     strings.TrimSpace(getenv("OPENAI_API_KEY", "")),
			ReplicateBaseURL: getenv("REPLICATE_BASE_URL", "https://api.replicate.com/v1"),
			ReplicateAPIKey:  strings.TrimSpace(getenv("REPLICATE_API_KEY", "")),
			UseMock:          getenvBool("PROVIDERS_USE_MOCK", false),
		},
		Storage: StorageConfig{
			DriveBaseURL:       getenv("DRIVE_BASE_URL", "https://www.googleapis.com/drive/v3"),
			DriveUploadBaseURL: getenv("DRIVE_UPLOAD_BASE_URL", "https://www.googleapis.com/upload/drive/v3"),
			DriveTokenURL:      getenv("DRIVE_TOKEN_URL", "https://oauth2.googleapis.com/token"),
			DriveClientID:      strings.TrimSpace(getenv("DRIVE_CLIENT_ID", "")),
			DriveClientSecret:  strings.TrimSpace(getenv("DRIVE_CLIENT_SECRET", "")),
			RootFolderName:     getenv("DRIVE_ROOT_FOLDER", "Studio Generations"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:     strings.TrimSpace(getenv("RATE_LIMIT_REDIS_ADDR", "")),
			RedisPassword: strings.TrimSpace(getenv("RATE_LIMIT_REDIS_PASSWORD", "")),
			RedisDB:       getenvInt("RATE_LIMIT_REDIS_DB", 0),
		},
	}

	return cfg
}

// Module wires application configuration.
var Module = fx.Module("config",
	fx.Provide(
		Load,
		NewPolicyHolder,
	),
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port    string
		Env     string
		Timeout time.Duration
		BaseURL string
	}

	// Database configuration
	Database struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		MaxConns int
		Timeout  time.Duration
	}

	// Message pipeline configuration
	Pipeline struct {
		QueueSize        int
		MaxRetries       int
		MaxContentLength int
		ContextWindow    int
		WorkerInterval   time.Duration
		SweepInterval    time.Duration
		AssistantUserID  string
	}

	// Per-user fixed-window admission control (see internal/ratelimit)
	RateLimit struct {
		Window time.Duration
		Max    int
	}

	// Session configuration. The in-memory tracker and the durable
	// conversation record run on independent timeouts (300s vs 24h) —
	// inherited behavior, flagged to product rather than unified here.
	Session struct {
		Timeout         time.Duration
		ConversationTTL time.Duration
	}

	// Completion service configuration
	Completion struct {
		Model     string
		MaxTokens int
		Timeout   time.Duration
	}

	// JWT configuration
	JWT struct {
		Secret string
		Expiry time.Duration
	}

	// Failure notification webhook
	Notify struct {
		WebhookURL string
		Timeout    time.Duration
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// Cache settings for the conversation read side
	Cache struct {
		TTL         time.Duration
		MaxSize     int
		PurgeWindow time.Duration
		RedisURL    string
	}

	// Security configuration for the HTTP layer
	Security struct {
		RateLimit      float64
		RateLimitBurst int
		TrustedProxies []string
		OpenAPISchema  string
	}
}

var (
	instance *Config
	once     sync.Once
)

// New creates a new Config instance with values from environment variables.
// Uses singleton pattern to ensure only one instance exists.
func New() *Config {
	once.Do(func() {
		// Load .env file if exists
		godotenv.Load()

		instance = &Config{}

		// Server config
		instance.Server.Port = getEnvString("PORT", "3030")
		instance.Server.Env = getEnvString("APP_ENV", "development")
		instance.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)
		instance.Server.BaseURL = getEnvString("BASE_URL", "http://localhost:"+instance.Server.Port)

		// Database config
		instance.Database.Host = getEnvString("DB_HOST", "localhost")
		instance.Database.Port = getEnvString("DB_PORT", "5432")
		instance.Database.User = getEnvString("DB_USER", "postgres")
		instance.Database.Password = getEnvString("DB_PASSWORD", "postgres")
		instance.Database.Name = getEnvString("DB_NAME", "chat-brain")
		instance.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
		instance.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
		instance.Database.Timeout = getEnvDuration("DB_TIMEOUT", 5*time.Second)

		// Pipeline config
		instance.Pipeline.QueueSize = getEnvInt("QUEUE_SIZE", 10000)
		instance.Pipeline.MaxRetries = getEnvInt("MAX_RETRIES", 3)
		instance.Pipeline.MaxContentLength = getEnvInt("MAX_CONTENT_LENGTH", 4000)
		instance.Pipeline.ContextWindow = getEnvInt("CONTEXT_WINDOW", 5)
		instance.Pipeline.WorkerInterval = getEnvDuration("WORKER_INTERVAL", 100*time.Millisecond)
		instance.Pipeline.SweepInterval = getEnvDuration("SWEEP_INTERVAL", 300*time.Second)
		instance.Pipeline.AssistantUserID = getEnvString("ASSISTANT_USER_ID", "assistant")

		// Rate limit config
		instance.RateLimit.Window = getEnvDuration("RATE_LIMIT_WINDOW", 60*time.Second)
		instance.RateLimit.Max = getEnvInt("RATE_LIMIT_MAX", 100)

		// Session config
		instance.Session.Timeout = getEnvDuration("SESSION_TIMEOUT", 300*time.Second)
		instance.Session.ConversationTTL = getEnvDuration("CONVERSATION_TTL", 24*time.Hour)

		// Completion config
		instance.Completion.Model = getEnvString("COMPLETION_MODEL", "claude-3-sonnet-20240229")
		instance.Completion.MaxTokens = getEnvInt("COMPLETION_MAX_TOKENS", 1024)
		instance.Completion.Timeout = getEnvDuration("COMPLETION_TIMEOUT", 30*time.Second)

		// JWT config
		instance.JWT.Secret = getEnvString("JWT_SECRET", "default-jwt-secret-do-not-use-in-production")
		instance.JWT.Expiry = getEnvDuration("JWT_EXPIRY", 24*time.Hour)

		// Notification config
		instance.Notify.WebhookURL = getEnvString("ERROR_WEBHOOK_URL", "")
		instance.Notify.Timeout = getEnvDuration("ERROR_WEBHOOK_TIMEOUT", 10*time.Second)

		// Logging config
		instance.Logging.Level = getEnvString("LOG_LEVEL", "info")
		instance.Logging.Format = getEnvString("LOG_FORMAT", "json")

		// Cache settings
		instance.Cache.TTL = getEnvDuration("CACHE_TTL", 5*time.Minute)
		instance.Cache.MaxSize = getEnvInt("CACHE_MAX_SIZE", 1000)
		instance.Cache.PurgeWindow = getEnvDuration("CACHE_PURGE_WINDOW", 10*time.Minute)
		instance.Cache.RedisURL = getEnvString("REDIS_URL", "")

		// Security config
		instance.Security.RateLimit = float64(getEnvInt("HTTP_RATE_LIMIT", 5))
		instance.Security.RateLimitBurst = getEnvInt("HTTP_RATE_LIMIT_BURST", 10)
		instance.Security.TrustedProxies = getEnvStringSlice("TRUSTED_PROXIES", []string{"127.0.0.1"})
		instance.Security.OpenAPISchema = getEnvString("OPENAPI_SCHEMA", "")
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

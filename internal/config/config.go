package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	RateLimit  RateLimitConfig
	WebSocket  WebSocketConfig
	Logging    LoggingConfig
	App        AppConfig
	Tickets    TicketsConfig
	SLA        SLAConfig
	Assignment AssignmentConfig
	Slack      SlackConfig
	IMAP       IMAPConfig
	SMTP       SMTPConfig
	Redis      RedisConfig
	Storage    StorageConfig
	Bootstrap  BootstrapConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret         string
	AccessTokenTTL time.Duration
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	BurstSize         int
	AuthRPS           float64 // Stricter limit for auth endpoints
	AuthBurst         int
}

// WebSocketConfig holds WebSocket configuration
type WebSocketConfig struct {
	AllowedOrigins  []string
	ReadBufferSize  int
	WriteBufferSize int
	PingInterval    time.Duration
	PongWait        time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string
	Version     string
	Environment string
}

// TicketsConfig controls the ticket write path.
type TicketsConfig struct {
	OptimisticLocking bool
	UpdateRetries     int
	ArchiveAfter      time.Duration
	ArchiveInterval   time.Duration
}

// SLAConfig holds the scan cadence of the SLA engine.
type SLAConfig struct {
	BreachInterval     time.Duration
	EscalationInterval time.Duration
}

// AssignmentConfig controls the assignment balancer.
type AssignmentConfig struct {
	AutoAssignEnabled  bool
	AutoAssignInterval time.Duration
	AutoAssignBatch    int
	Policy             string // least-busy, round-robin
	RebalanceSlack     int
}

// SlackConfig holds the chat channel credentials.
type SlackConfig struct {
	Enabled     bool
	BotToken    string
	AppToken    string
	ChannelID   string
	MaxFileSize int64
}

// IMAPConfig holds the inbound mailbox settings.
type IMAPConfig struct {
	Enabled      bool
	Host         string
	Port         int
	User         string
	Password     string
	TLS          bool
	Mailbox      string
	PollInterval time.Duration
	Timeout      time.Duration
}

// SMTPConfig holds the outbound mail settings. An empty Host disables sending.
type SMTPConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	From              string
	ConfirmationDelay time.Duration
}

// RedisConfig holds the dedupe store settings. An empty Addr selects Postgres.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	DedupeTTL time.Duration
}

// StorageConfig selects the attachment store. With no MinIO endpoint files go
// to UploadDir on local disk.
type StorageConfig struct {
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	UploadDir      string
}

// BootstrapConfig seeds the first administrator on an empty database
type BootstrapConfig struct {
	AdminEmail    string
	AdminPassword string
	AdminName     string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", ":8080"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getDurationOrDefault("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getIntOrDefault("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntOrDefault("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDurationOrDefault("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getDurationOrDefault("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		JWT: JWTConfig{
			Secret:         os.Getenv("JWT_SECRET"),
			AccessTokenTTL: getDurationOrDefault("JWT_ACCESS_TOKEN_TTL", 1*time.Hour),
		},
		RateLimit: RateLimitConfig{
			Enabled:           getBoolOrDefault("RATE_LIMIT_ENABLED", true),
			RequestsPerSecond: getFloatOrDefault("RATE_LIMIT_RPS", 10),
			BurstSize:         getIntOrDefault("RATE_LIMIT_BURST", 20),
			AuthRPS:           getFloatOrDefault("RATE_LIMIT_AUTH_RPS", 1),
			AuthBurst:         getIntOrDefault("RATE_LIMIT_AUTH_BURST", 5),
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins:  getStringSliceOrDefault("WS_ALLOWED_ORIGINS", []string{}),
			ReadBufferSize:  getIntOrDefault("WS_READ_BUFFER_SIZE", 1024),
			WriteBufferSize: getIntOrDefault("WS_WRITE_BUFFER_SIZE", 1024),
			PingInterval:    getDurationOrDefault("WS_PING_INTERVAL", 54*time.Second),
			PongWait:        getDurationOrDefault("WS_PONG_WAIT", 60*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
		App: AppConfig{
			Name:        getEnvOrDefault("APP_NAME", "service-desk-engine"),
			Version:     getEnvOrDefault("APP_VERSION", "dev"),
			Environment: getEnvOrDefault("APP_ENV", "development"),
		},
		Tickets: TicketsConfig{
			OptimisticLocking: getBoolOrDefault("TICKET_OPTIMISTIC_LOCKING", false),
			UpdateRetries:     getIntOrDefault("TICKET_UPDATE_RETRIES", 3),
			ArchiveAfter:      getDurationOrDefault("TICKET_ARCHIVE_AFTER", 10*time.Hour),
			ArchiveInterval:   getDurationOrDefault("TICKET_ARCHIVE_INTERVAL", time.Hour),
		},
		SLA: SLAConfig{
			BreachInterval:     getDurationOrDefault("SLA_BREACH_INTERVAL", 5*time.Minute),
			EscalationInterval: getDurationOrDefault("SLA_ESCALATION_INTERVAL", 10*time.Minute),
		},
		Assignment: AssignmentConfig{
			AutoAssignEnabled:  getBoolOrDefault("AUTO_ASSIGN_ENABLED", false),
			AutoAssignInterval: getDurationOrDefault("AUTO_ASSIGN_INTERVAL", time.Minute),
			AutoAssignBatch:    getIntOrDefault("AUTO_ASSIGN_BATCH", 10),
			Policy:             getEnvOrDefault("ASSIGN_POLICY", "least-busy"),
			RebalanceSlack:     getIntOrDefault("REBALANCE_SLACK", 2),
		},
		Slack: SlackConfig{
			Enabled:     getBoolOrDefault("SLACK_ENABLED", false),
			BotToken:    os.Getenv("SLACK_BOT_TOKEN"),
			AppToken:    os.Getenv("SLACK_APP_TOKEN"),
			ChannelID:   os.Getenv("SLACK_CHANNEL_ID"),
			MaxFileSize: int64(getIntOrDefault("SLACK_MAX_FILE_SIZE", 10*1024*1024)),
		},
		IMAP: IMAPConfig{
			Enabled:      getBoolOrDefault("IMAP_ENABLED", false),
			Host:         os.Getenv("IMAP_HOST"),
			Port:         getIntOrDefault("IMAP_PORT", 993),
			User:         os.Getenv("IMAP_USER"),
			Password:     os.Getenv("IMAP_PASSWORD"),
			TLS:          getBoolOrDefault("IMAP_TLS", true),
			Mailbox:      getEnvOrDefault("IMAP_MAILBOX", "INBOX"),
			PollInterval: getDurationOrDefault("IMAP_POLL_INTERVAL", time.Minute),
			Timeout:      getDurationOrDefault("IMAP_TIMEOUT", 10*time.Second),
		},
		SMTP: SMTPConfig{
			Host:              os.Getenv("SMTP_HOST"),
			Port:              getIntOrDefault("SMTP_PORT", 587),
			User:              os.Getenv("SMTP_USER"),
			Password:          os.Getenv("SMTP_PASSWORD"),
			From:              os.Getenv("SMTP_FROM"),
			ConfirmationDelay: getDurationOrDefault("EMAIL_CONFIRMATION_DELAY", 30*time.Second),
		},
		Redis: RedisConfig{
			Addr:      os.Getenv("REDIS_ADDR"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        getIntOrDefault("REDIS_DB", 0),
			DedupeTTL: getDurationOrDefault("DEDUPE_TTL", 7*24*time.Hour),
		},
		Storage: StorageConfig{
			MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
			MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
			MinioBucket:    getEnvOrDefault("MINIO_BUCKET", "attachments"),
			MinioUseSSL:    getBoolOrDefault("MINIO_USE_SSL", false),
			UploadDir:      getEnvOrDefault("UPLOAD_DIR", "./uploads"),
		},
		Bootstrap: BootstrapConfig{
			AdminEmail:    os.Getenv("ADMIN_EMAIL"),
			AdminPassword: os.Getenv("ADMIN_PASSWORD"),
			AdminName:     getEnvOrDefault("ADMIN_NAME", "Administrator"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []string

	// Required fields
	if c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}

	if c.JWT.Secret == "" {
		errs = append(errs, "JWT_SECRET is required")
	}

	// Security validations
	if c.App.Environment == "production" {
		if len(c.JWT.Secret) < 32 {
			errs = append(errs, "JWT_SECRET must be at least 32 characters in production")
		}

		if len(c.WebSocket.AllowedOrigins) == 0 {
			errs = append(errs, "WS_ALLOWED_ORIGINS must be set in production")
		}
	}

	// Logical validations
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		errs = append(errs, "DB_MAX_IDLE_CONNS cannot be greater than DB_MAX_OPEN_CONNS")
	}

	if c.Slack.Enabled {
		if c.Slack.BotToken == "" || c.Slack.AppToken == "" {
			errs = append(errs, "SLACK_BOT_TOKEN and SLACK_APP_TOKEN are required when SLACK_ENABLED is set")
		}
		if c.Slack.ChannelID == "" {
			errs = append(errs, "SLACK_CHANNEL_ID is required when SLACK_ENABLED is set")
		}
	}

	if c.IMAP.Enabled {
		if c.IMAP.Host == "" {
			errs = append(errs, "IMAP_HOST is required when IMAP_ENABLED is set")
		}
		if c.IMAP.User == "" || c.IMAP.Password == "" {
			errs = append(errs, "IMAP_USER and IMAP_PASSWORD are required when IMAP_ENABLED is set")
		}
	}

	if c.SMTP.Host != "" && c.SMTP.From == "" {
		errs = append(errs, "SMTP_FROM is required when SMTP_HOST is set")
	}

	intervals := map[string]time.Duration{
		"SLA_BREACH_INTERVAL":     c.SLA.BreachInterval,
		"SLA_ESCALATION_INTERVAL": c.SLA.EscalationInterval,
		"AUTO_ASSIGN_INTERVAL":    c.Assignment.AutoAssignInterval,
		"IMAP_POLL_INTERVAL":      c.IMAP.PollInterval,
		"IMAP_TIMEOUT":            c.IMAP.Timeout,
		"TICKET_ARCHIVE_AFTER":    c.Tickets.ArchiveAfter,
		"TICKET_ARCHIVE_INTERVAL": c.Tickets.ArchiveInterval,
	}
	for _, key := range sortedKeys(intervals) {
		if intervals[key] <= 0 {
			errs = append(errs, key+" must be positive")
		}
	}

	switch c.Assignment.Policy {
	case "least-busy", "round-robin":
	default:
		errs = append(errs, fmt.Sprintf("ASSIGN_POLICY %q is not one of least-busy, round-robin", c.Assignment.Policy))
	}

	if (c.Bootstrap.AdminEmail == "") != (c.Bootstrap.AdminPassword == "") {
		errs = append(errs, "ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}

	if c.Tickets.UpdateRetries < 1 {
		errs = append(errs, "TICKET_UPDATE_RETRIES must be at least 1")
	}

	if len(errs) > 0 {
		return errors.New("configuration errors:\n  - " + strings.Join(errs, "\n  - "))
	}

	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// Helper functions

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

func sortedKeys(m map[string]time.Duration) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String returns a redacted string representation of the config (safe for logging)
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Server: %s, DB: %s, JWT: [REDACTED], RateLimit: %v, Slack: %v, IMAP: %v, Redis: %v, MinIO: %v, Environment: %s}",
		c.Server.Port,
		redactURL(c.Database.URL),
		c.RateLimit.Enabled,
		c.Slack.Enabled,
		c.IMAP.Enabled,
		c.Redis.Addr != "",
		c.Storage.MinioEndpoint != "",
		c.App.Environment,
	)
}

// redactURL redacts sensitive parts of a database URL
func redactURL(url string) string {
	if url == "" {
		return ""
	}
	if idx := strings.Index(url, "@"); idx > 0 {
		return "[REDACTED]" + url[idx:]
	}
	return "[REDACTED]"
}

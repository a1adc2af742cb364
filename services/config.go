package services

import (
	"log/slog"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Environment string
	Log         LogConfig
	Server      ServerConfig
	App         AppConfig
	Database    DatabaseConfig
	AI          AIConfig
	JWT         JWTConfig
	WebSocket   WebSocketConfig
	SMTP        SMTPConfig
	Redis       RedisConfig
	Cache       CacheConfig
	Interview   InterviewConfig
	RateLimit   RateLimitConfig
}

type LogConfig struct {
	Level string
}

type ServerConfig struct {
	Port string
	// TrustProxyHeaders takes the client address from X-Real-IP/X-Forwarded-For.
	// Only enable it behind a proxy that overwrites those headers.
	TrustProxyHeaders bool
}

type AppConfig struct {
	BaseURL string // used in e-mailed links
}

type DatabaseConfig struct {
	URL          string
	Seed         bool
	LogLevel     string
	MaxIdleConns int
	MaxOpenConns int
}

type AIConfig struct {
	GeminiAPIKey string
	GeminiModel  string
}

type JWTConfig struct {
	Secret string
}

type WebSocketConfig struct {
	AllowedOrigins string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type RedisConfig struct {
	URL string
}

type CacheConfig struct {
	TTL time.Duration
}

type InterviewConfig struct {
	QuestionCount int
	IdleTimeout   time.Duration
	SweepInterval time.Duration
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// IsProduction reports whether cookies must be marked Secure
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// LoadConfig loads configuration from environment variables and config files
func LoadConfig() *Config {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	// Set defaults
	v.SetDefault("environment", "development")
	v.SetDefault("log.level", "info")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.trust_proxy_headers", "false")
	v.SetDefault("app.base_url", "http://localhost:3000")
	v.SetDefault("websocket.allowed_origins", "")
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("database.url", "")
	v.SetDefault("database.seed", "true")
	v.SetDefault("database.log_level", "silent")
	v.SetDefault("database.max_idle_conns", "10")
	v.SetDefault("database.max_open_conns", "100")
	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", "587")
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "no-reply@interviewcoach.local")
	v.SetDefault("redis.url", "")
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("interview.question_count", "5")
	v.SetDefault("interview.idle_timeout", "30m")
	v.SetDefault("interview.sweep_interval", "1m")
	v.SetDefault("ratelimit.rps", "5")
	v.SetDefault("ratelimit.burst", "10")

	// Map environment variables to config keys
	v.BindEnv("environment", "ENVIRONMENT")
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.trust_proxy_headers", "SERVER_TRUST_PROXY_HEADERS")
	v.BindEnv("app.base_url", "APP_BASE_URL")
	v.BindEnv("websocket.allowed_origins", "WEBSOCKET_ALLOWED_ORIGINS")
	v.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	v.BindEnv("gemini.model", "GEMINI_MODEL")
	v.BindEnv("jwt.secret", "JWT_SECRET")
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("database.seed", "DATABASE_SEED")
	v.BindEnv("database.log_level", "DATABASE_LOG_LEVEL")
	v.BindEnv("database.max_idle_conns", "DATABASE_MAX_IDLE_CONNS")
	v.BindEnv("database.max_open_conns", "DATABASE_MAX_OPEN_CONNS")
	v.BindEnv("smtp.host", "SMTP_HOST")
	v.BindEnv("smtp.port", "SMTP_PORT")
	v.BindEnv("smtp.username", "SMTP_USERNAME")
	v.BindEnv("smtp.password", "SMTP_PASSWORD")
	v.BindEnv("smtp.from", "SMTP_FROM")
	v.BindEnv("redis.url", "REDIS_URL")
	v.BindEnv("cache.ttl", "CACHE_TTL")
	v.BindEnv("interview.question_count", "INTERVIEW_QUESTION_COUNT")
	v.BindEnv("interview.idle_timeout", "INTERVIEW_IDLE_TIMEOUT")
	v.BindEnv("interview.sweep_interval", "INTERVIEW_SWEEP_INTERVAL")
	v.BindEnv("ratelimit.rps", "RATELIMIT_RPS")
	v.BindEnv("ratelimit.burst", "RATELIMIT_BURST")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("Config file not found, using defaults and environment variables")
		} else {
			slog.Error("Error reading config file", "error", err)
		}
	}

	return &Config{
		Environment: v.GetString("environment"),
		Log: LogConfig{
			Level: v.GetString("log.level"),
		},
		Server: ServerConfig{
			Port:              v.GetString("server.port"),
			TrustProxyHeaders: v.GetBool("server.trust_proxy_headers"),
		},
		App: AppConfig{
			BaseURL: v.GetString("app.base_url"),
		},
		Database: DatabaseConfig{
			URL:          v.GetString("database.url"),
			Seed:         v.GetBool("database.seed"),
			LogLevel:     v.GetString("database.log_level"),
			MaxIdleConns: v.GetInt("database.max_idle_conns"),
			MaxOpenConns: v.GetInt("database.max_open_conns"),
		},
		AI: AIConfig{
			GeminiAPIKey: v.GetString("gemini.api_key"),
			GeminiModel:  v.GetString("gemini.model"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins: v.GetString("websocket.allowed_origins"),
		},
		SMTP: SMTPConfig{
			Host:     v.GetString("smtp.host"),
			Port:     v.GetInt("smtp.port"),
			Username: v.GetString("smtp.username"),
			Password: v.GetString("smtp.password"),
			From:     v.GetString("smtp.from"),
		},
		Redis: RedisConfig{
			URL: v.GetString("redis.url"),
		},
		Cache: CacheConfig{
			TTL: v.GetDuration("cache.ttl"),
		},
		Interview: InterviewConfig{
			QuestionCount: v.GetInt("interview.question_count"),
			IdleTimeout:   v.GetDuration("interview.idle_timeout"),
			SweepInterval: v.GetDuration("interview.sweep_interval"),
		},
		RateLimit: RateLimitConfig{
			RPS:   v.GetFloat64("ratelimit.rps"),
			Burst: v.GetInt("ratelimit.burst"),
		},
	}
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Log          LogConfig          `mapstructure:"log"`
	Monitoring   MonitoringConfig   `mapstructure:"monitoring"`
	GitHub       GitHubConfig       `mapstructure:"github"`
	LinkedIn     LinkedInConfig     `mapstructure:"linkedin"`
	OpenAI       OpenAIConfig       `mapstructure:"openai"`
	Summary      SummaryConfig      `mapstructure:"summary"`
	Notification NotificationConfig `mapstructure:"notification"`
	Gmail        GmailConfig        `mapstructure:"gmail"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// AllowedOrigins feeds the CORS middleware. "*" allows any origin.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// MonitoringConfig holds the polling cadence. IntervalMinutes doubles as the
// staleness threshold for scheduled passes.
type MonitoringConfig struct {
	IntervalMinutes int `mapstructure:"interval_minutes"`
	Concurrency     int `mapstructure:"concurrency"`
}

// StaleAfter returns the staleness window derived from the polling interval.
func (m MonitoringConfig) StaleAfter() time.Duration {
	return time.Duration(m.IntervalMinutes) * time.Minute
}

type GitHubConfig struct {
	Token      string        `mapstructure:"token"`
	APIBaseURL string        `mapstructure:"api_base_url"`
	MaxEvents  int           `mapstructure:"max_events"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type LinkedInConfig struct {
	UserAgent string        `mapstructure:"user_agent"`
	MaxPosts  int           `mapstructure:"max_posts"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// OpenAIConfig configures the chat-completion endpoint. BaseURL also selects
// the wire protocol, see llm.NewProvider.
type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float32       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type SummaryConfig struct {
	Time          string `mapstructure:"time"`
	Timezone      string `mapstructure:"timezone"`
	DailyEnabled  bool   `mapstructure:"daily_enabled"`
	WeeklyEnabled bool   `mapstructure:"weekly_enabled"`
}

// Location loads Timezone. Summary windows and cron times are read in it.
func (s SummaryConfig) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid summary timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

// Clock parses Time ("HH:MM") into hour and minute.
func (s SummaryConfig) Clock() (int, int, error) {
	t, err := time.Parse("15:04", s.Time)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid summary time %q: %w", s.Time, err)
	}
	return t.Hour(), t.Minute(), nil
}

type NotificationConfig struct {
	RingSize int         `mapstructure:"ring_size"`
	Redis    RedisConfig `mapstructure:"redis"`
	Slack    SlackConfig `mapstructure:"slack"`
	Email    EmailConfig `mapstructure:"email"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

type SlackConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
}

type EmailConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	Recipients []string `mapstructure:"recipients"`
}

// GmailConfig holds Gmail API credentials used to mail summaries
type GmailConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RefreshToken string `mapstructure:"refresh_token"`
	UserEmail    string `mapstructure:"user_email"`
}

// LoadConfig loads configuration from .env, config file and environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debugf("No .env file loaded: %v", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.AutomaticEnv()
	bindEnvVars(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// EMAIL_RECIPIENTS arrives as a comma separated string.
	config.Notification.Email.Recipients = splitList(strings.Join(config.Notification.Email.Recipients, ","))
	config.Server.AllowedOrigins = splitList(strings.Join(config.Server.AllowedOrigins, ","))

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "inspector.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)

	v.SetDefault("monitoring.interval_minutes", 60)
	v.SetDefault("monitoring.concurrency", 4)

	v.SetDefault("github.api_base_url", "https://api.github.com/")
	v.SetDefault("github.max_events", 20)
	v.SetDefault("github.timeout", "30s")

	v.SetDefault("linkedin.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	v.SetDefault("linkedin.max_posts", 10)
	v.SetDefault("linkedin.timeout", "30s")

	v.SetDefault("openai.model", "gpt-3.5-turbo")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.max_tokens", 2000)
	v.SetDefault("openai.temperature", 0.7)
	v.SetDefault("openai.timeout", "120s")

	v.SetDefault("summary.time", "09:00")
	v.SetDefault("summary.timezone", "UTC")
	v.SetDefault("summary.daily_enabled", true)
	v.SetDefault("summary.weekly_enabled", true)

	v.SetDefault("notification.ring_size", 100)
	v.SetDefault("notification.redis.channel", "inspector:notifications")
	v.SetDefault("notification.email.enabled", false)
}

func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	v.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")
	v.BindEnv("server.allowed_origins", "CORS_ALLOWED_ORIGINS")

	// Database
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.path", "DB_PATH")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")
	v.BindEnv("database.sslmode", "DB_SSLMODE")

	// Logging
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.format", "LOG_FORMAT")
	v.BindEnv("log.file", "LOG_FILE")

	// Monitoring
	v.BindEnv("monitoring.interval_minutes", "MONITORING_INTERVAL_MINUTES")
	v.BindEnv("monitoring.concurrency", "MONITORING_CONCURRENCY")
	v.BindEnv("github.token", "GITHUB_TOKEN")
	v.BindEnv("github.api_base_url", "GITHUB_API_BASE_URL")
	v.BindEnv("github.max_events", "GITHUB_MAX_EVENTS")
	v.BindEnv("linkedin.user_agent", "LINKEDIN_USER_AGENT")
	v.BindEnv("linkedin.max_posts", "LINKEDIN_MAX_POSTS")
	v.BindEnv("linkedin.timeout", "LINKEDIN_TIMEOUT")

	// LLM
	v.BindEnv("openai.api_key", "OPENAI_API_KEY")
	v.BindEnv("openai.model", "OPENAI_MODEL")
	v.BindEnv("openai.base_url", "OPENAI_BASE_URL")
	v.BindEnv("openai.max_tokens", "OPENAI_MAX_TOKENS")
	v.BindEnv("openai.temperature", "OPENAI_TEMPERATURE")
	v.BindEnv("openai.timeout", "OPENAI_TIMEOUT")

	// Summary
	v.BindEnv("summary.time", "SUMMARY_TIME")
	v.BindEnv("summary.timezone", "SUMMARY_TIMEZONE")
	v.BindEnv("summary.daily_enabled", "SUMMARY_DAILY_ENABLED")
	v.BindEnv("summary.weekly_enabled", "SUMMARY_WEEKLY_ENABLED")

	// Notifications
	v.BindEnv("notification.ring_size", "NOTIFICATION_RING_SIZE")
	v.BindEnv("notification.redis.addr", "REDIS_ADDR")
	v.BindEnv("notification.redis.password", "REDIS_PASSWORD")
	v.BindEnv("notification.redis.db", "REDIS_DB")
	v.BindEnv("notification.redis.channel", "REDIS_CHANNEL")
	v.BindEnv("notification.slack.webhook_url", "SLACK_WEBHOOK_URL")
	v.BindEnv("notification.email.enabled", "EMAIL_ENABLED")
	v.BindEnv("notification.email.recipients", "EMAIL_RECIPIENTS")

	// Gmail
	v.BindEnv("gmail.client_id", "GMAIL_CLIENT_ID")
	v.BindEnv("gmail.client_secret", "GMAIL_CLIENT_SECRET")
	v.BindEnv("gmail.refresh_token", "GMAIL_REFRESH_TOKEN")
	v.BindEnv("gmail.user_email", "GMAIL_USER_EMAIL")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// GetDSN returns the database connection string for the configured driver
func (c *DatabaseConfig) GetDSN() string {
	switch c.Driver {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			c.User, c.Password, c.Host, c.Port, c.DBName)
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
	default:
		return c.Path
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required for sqlite")
		}
	case "mysql", "postgres":
		if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
			return fmt.Errorf("database host, user, and dbname are required")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Monitoring.IntervalMinutes <= 0 {
		return fmt.Errorf("monitoring interval must be greater than 0")
	}
	if c.Monitoring.Concurrency < 1 {
		return fmt.Errorf("monitoring concurrency must be at least 1")
	}

	if _, _, err := c.Summary.Clock(); err != nil {
		return err
	}
	if _, err := c.Summary.Location(); err != nil {
		return err
	}

	if c.Notification.Email.Enabled {
		if c.Gmail.ClientID == "" || c.Gmail.ClientSecret == "" || c.Gmail.RefreshToken == "" {
			return fmt.Errorf("Gmail OAuth2 credentials are required when email notifications are enabled")
		}
		if len(c.Notification.Email.Recipients) == 0 {
			return fmt.Errorf("at least one email recipient is required")
		}
	}

	return nil
}

package internal

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security"`
	Google        GoogleConfig        `mapstructure:"google"`
	Notification  NotificationConfig  `mapstructure:"notification"`
	Sessions      SessionsConfig      `mapstructure:"sessions"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port" env:"HTTP_PORT" envDefault:"8080"`
	BaseURL           string        `mapstructure:"base_url" env:"HTTP_BASE_URL"`
	AllowedOrigins    string        `mapstructure:"allowed_origins" env:"HTTP_ALLOWED_ORIGINS" envDefault:"*"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout" env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout" env:"HTTP_WRITE_TIMEOUT" envDefault:"15s"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" env:"DATABASE_CONN_MAX_LIFETIME" envDefault:"30m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" env:"DATABASE_CONN_MAX_IDLE_TIME" envDefault:"5m"`
	Source          string        `mapstructure:"source" env:"DATABASE_URL"`
}

type SecurityConfig struct {
	AccessTokenSecret    string        `mapstructure:"access_token_secret" env:"JWT_ACCESS_SECRET"`
	RefreshTokenSecret   string        `mapstructure:"refresh_token_secret" env:"JWT_REFRESH_SECRET"`
	Issuer               string        `mapstructure:"issuer" env:"JWT_ISSUER" envDefault:"identity-service"`
	AccessTokenDuration  time.Duration `mapstructure:"access_token_duration" env:"JWT_ACCESS_EXPIRES_IN" envDefault:"15m"`
	RefreshTokenDuration time.Duration `mapstructure:"refresh_token_duration" env:"JWT_REFRESH_EXPIRES_IN" envDefault:"7d"`
	BCryptCost           int           `mapstructure:"bcrypt_cost" env:"BCRYPT_COST" envDefault:"10"`
	APIKeySecret         string        `mapstructure:"api_key_secret" env:"API_KEY_SECRET"`
}

type GoogleConfig struct {
	ClientID string   `mapstructure:"client_id" env:"GOOGLE_CLIENT_ID"`
	JWKSURL  string   `mapstructure:"jwks_url" env:"GOOGLE_JWKS_URL" envDefault:"https://www.googleapis.com/oauth2/v3/certs"`
	Issuers  []string `mapstructure:"issuers" env:"GOOGLE_ISSUERS" envDefault:"accounts.google.com,https://accounts.google.com"`
}

type NotificationConfig struct {
	FrontendURL    string        `mapstructure:"frontend_url" env:"FRONTEND_URL"`
	RedisURL       string        `mapstructure:"redis_url" env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	QueueName      string        `mapstructure:"queue_name" env:"NOTIFICATION_QUEUE" envDefault:"notifications:email"`
	MaxWorkers     int           `mapstructure:"max_workers" env:"NOTIFICATION_MAX_WORKERS" envDefault:"10"`
	JobQueueSize   int           `mapstructure:"job_queue_size" env:"NOTIFICATION_JOB_QUEUE_SIZE" envDefault:"100"`
	MaxAttempts    int           `mapstructure:"max_attempts" env:"NOTIFICATION_MAX_ATTEMPTS" envDefault:"3"`
	Backoff        time.Duration `mapstructure:"backoff" env:"NOTIFICATION_BACKOFF" envDefault:"5s"`
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl" env:"NOTIFICATION_IDEMPOTENCY_TTL" envDefault:"1h"`
	Sender         string        `mapstructure:"sender" env:"NOTIFICATION_SENDER" envDefault:"log"`
	ProviderURL    string        `mapstructure:"provider_url" env:"EMAIL_PROVIDER_URL"`
	ProviderAPIKey string        `mapstructure:"provider_api_key" env:"EMAIL_PROVIDER_API_KEY"`
	FromAddress    string        `mapstructure:"from_address" env:"EMAIL_FROM" envDefault:"no-reply@localhost"`
	SendTimeout    time.Duration `mapstructure:"send_timeout" env:"EMAIL_SEND_TIMEOUT" envDefault:"10s"`
}

type SessionsConfig struct {
	SweepInterval time.Duration `mapstructure:"sweep_interval" env:"SESSION_SWEEP_INTERVAL" envDefault:"15m"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" env:"LOG_LEVEL" envDefault:"info"`
	Format string `mapstructure:"format" env:"LOG_FORMAT" envDefault:"json"`
}

// LoadConfigFromEnv builds the configuration from environment variables only.
// Durations accept Go syntax as well as a day suffix, e.g. "7d".
func LoadConfigFromEnv() (*Config, error) {
	var cfg Config
	opts := env.Options{
		FuncMap: map[reflect.Type]env.ParserFunc{
			reflect.TypeOf(time.Duration(0)): func(v string) (interface{}, error) {
				return ParseDuration(v)
			},
		},
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return &cfg, nil
}

var durationPattern = regexp.MustCompile(`^(\d+)([smhd])$`)

// ParseDuration parses "30s", "15m", "1h" or "7d". Anything else falls back to
// time.ParseDuration.
func ParseDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	match := durationPattern.FindStringSubmatch(value)
	if match == nil {
		return time.ParseDuration(value)
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", value, err)
	}
	units := map[string]time.Duration{
		"s": time.Second,
		"m": time.Minute,
		"h": time.Hour,
		"d": 24 * time.Hour,
	}
	return time.Duration(n) * units[match[2]], nil
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Notification.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("notification config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.Source == "" {
		return errors.New("source is required")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if len(c.AccessTokenSecret) < 32 {
		return errors.New("access_token_secret must be at least 32 characters")
	}
	if len(c.RefreshTokenSecret) < 32 {
		return errors.New("refresh_token_secret must be at least 32 characters")
	}
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return errors.New("access and refresh token secrets must differ")
	}
	if c.AccessTokenDuration <= 0 || c.AccessTokenDuration > time.Hour {
		return errors.New("access_token_duration must be positive and at most 1h")
	}
	if c.RefreshTokenDuration <= c.AccessTokenDuration {
		return errors.New("refresh_token_duration must exceed access_token_duration")
	}
	if c.BCryptCost < 4 || c.BCryptCost > 31 {
		return errors.New("bcrypt_cost must be between 4 and 31")
	}
	return nil
}

func (c *NotificationConfig) Validate() error {
	if c.FrontendURL == "" {
		return errors.New("frontend_url is required")
	}
	if _, err := url.ParseRequestURI(c.FrontendURL); err != nil {
		return fmt.Errorf("invalid frontend_url: %w", err)
	}
	switch c.Sender {
	case "log":
	case "http":
		if c.ProviderURL == "" {
			return errors.New("provider_url is required for the http sender")
		}
	default:
		return fmt.Errorf("unknown sender %q", c.Sender)
	}
	if c.MaxAttempts < 1 {
		return errors.New("max_attempts must be at least 1")
	}
	return nil
}

package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Indexer       IndexerConfig       `mapstructure:"indexer"`
	Webhook       WebhookConfig       `mapstructure:"webhook"`
	Poller        PollerConfig        `mapstructure:"poller"`
	Reconcile     ReconcileConfig     `mapstructure:"reconcile"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Events        EventsConfig        `mapstructure:"events"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	OpenAPIPath       string        `mapstructure:"openapi_path"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" validate:"required,min=1m"`
	Source          string        `mapstructure:"source" validate:"required"`
}

// IndexerConfig points at TonAPI. StreamingURL serves webhook management.
type IndexerConfig struct {
	BaseURL        string        `mapstructure:"base_url" validate:"required,url"`
	StreamingURL   string        `mapstructure:"streaming_url" validate:"omitempty,url"`
	APIKey         string        `mapstructure:"api_key" validate:"required"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"required,min=100ms,max=1m"`
	RetryCount     int           `mapstructure:"retry_count" validate:"min=0,max=5"`
	RetryWait      time.Duration `mapstructure:"retry_wait"`
	RateLimit      float64       `mapstructure:"rate_limit" validate:"min=0"`
	RateBurst      int           `mapstructure:"rate_burst" validate:"min=0"`
}

type WebhookConfig struct {
	AuthToken      string `mapstructure:"auth_token" validate:"required,min=16"`
	BusinessWallet string `mapstructure:"business_wallet"`
}

type PollerConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts" validate:"required,min=1"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	Interval     time.Duration `mapstructure:"interval" validate:"required,min=100ms"`
	MaxInterval  time.Duration `mapstructure:"max_interval"`
	Exponential  bool          `mapstructure:"exponential"`
	Endpoint     string        `mapstructure:"endpoint" validate:"omitempty,url"`
}

type ReconcileConfig struct {
	Interval     time.Duration `mapstructure:"interval" validate:"required,min=1s"`
	MinAge       time.Duration `mapstructure:"min_age"`
	BatchSize    int           `mapstructure:"batch_size" validate:"required,min=1"`
	MaxWorkers   int           `mapstructure:"max_workers" validate:"min=0"`
	JobQueueSize int           `mapstructure:"job_queue_size" validate:"min=0"`
}

type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr" validate:"required_if=Enabled true"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db" validate:"min=0"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type EventsConfig struct {
	NATSURL string `mapstructure:"nats_url"`
	Subject string `mapstructure:"subject"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=json text"`
}

// ----------------- DEFAULTS -----------------

// ApplyDefaults fills zero values. Poller defaults follow the purchase UI:
// 20 checks, 5s apart, first check after 5s.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.OpenAPIPath == "" {
		c.Server.OpenAPIPath = "./api/openapi.yml"
	}
	if c.Indexer.BaseURL == "" {
		c.Indexer.BaseURL = "https://tonapi.io"
	}
	if c.Indexer.StreamingURL == "" {
		c.Indexer.StreamingURL = "https://rt.tonapi.io"
	}
	if c.Indexer.RequestTimeout == 0 {
		c.Indexer.RequestTimeout = 10 * time.Second
	}
	if c.Indexer.RetryWait == 0 {
		c.Indexer.RetryWait = 500 * time.Millisecond
	}
	if c.Poller.MaxAttempts == 0 {
		c.Poller.MaxAttempts = 20
	}
	if c.Poller.InitialDelay == 0 {
		c.Poller.InitialDelay = 5 * time.Second
	}
	if c.Poller.Interval == 0 {
		c.Poller.Interval = 5 * time.Second
	}
	if c.Reconcile.Interval == 0 {
		c.Reconcile.Interval = time.Minute
	}
	if c.Reconcile.MinAge == 0 {
		c.Reconcile.MinAge = 2 * time.Minute
	}
	if c.Reconcile.BatchSize == 0 {
		c.Reconcile.BatchSize = 50
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 24 * time.Hour
	}
	if c.Events.Subject == "" {
		c.Events.Subject = "tonpay.payments"
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = "text"
	}
}

// LoadConfigFromEnv builds the configuration for container deployments.
func LoadConfigFromEnv() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("HTTP_PORT", 8080),
			BaseURL:           getEnv("HTTP_BASE_URL", ""),
			AllowedOrigins:    getEnv("HTTP_ALLOWED_ORIGINS", "*"),
			OpenAPIPath:       getEnv("HTTP_OPENAPI_PATH", "./api/openapi.yml"),
			ReadHeaderTimeout: getEnvAsDuration("HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			Source:          getEnv("DATABASE_URL", ""),
		},
		Indexer: IndexerConfig{
			BaseURL:        getEnv("TONAPI_URL", "https://tonapi.io"),
			StreamingURL:   getEnv("TONAPI_STREAMING_URL", "https://rt.tonapi.io"),
			APIKey:         getEnv("TONAPI_KEY", ""),
			RequestTimeout: getEnvAsDuration("TONAPI_REQUEST_TIMEOUT", 10*time.Second),
			RetryCount:     getEnvAsInt("TONAPI_RETRY_COUNT", 2),
			RetryWait:      getEnvAsDuration("TONAPI_RETRY_WAIT", 500*time.Millisecond),
			RateLimit:      getEnvAsFloat("TONAPI_RATE_LIMIT", 1),
			RateBurst:      getEnvAsInt("TONAPI_RATE_BURST", 1),
		},
		Webhook: WebhookConfig{
			AuthToken:      getEnv("WEBHOOK_AUTH_TOKEN", ""),
			BusinessWallet: getEnv("BUSINESS_WALLET", ""),
		},
		Poller: PollerConfig{
			MaxAttempts:  getEnvAsInt("POLLER_MAX_ATTEMPTS", 20),
			InitialDelay: getEnvAsDuration("POLLER_INITIAL_DELAY", 5*time.Second),
			Interval:     getEnvAsDuration("POLLER_INTERVAL", 5*time.Second),
			MaxInterval:  getEnvAsDuration("POLLER_MAX_INTERVAL", 0),
			Exponential:  getEnv("POLLER_EXPONENTIAL", "false") == "true",
			Endpoint:     getEnv("POLLER_ENDPOINT", ""),
		},
		Reconcile: ReconcileConfig{
			Interval:     getEnvAsDuration("RECONCILE_INTERVAL", time.Minute),
			MinAge:       getEnvAsDuration("RECONCILE_MIN_AGE", 2*time.Minute),
			BatchSize:    getEnvAsInt("RECONCILE_BATCH_SIZE", 50),
			MaxWorkers:   getEnvAsInt("RECONCILE_MAX_WORKERS", 4),
			JobQueueSize: getEnvAsInt("RECONCILE_JOB_QUEUE_SIZE", 100),
		},
		Cache: CacheConfig{
			Enabled:  getEnv("REDIS_ADDR", "") != "",
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			TTL:      getEnvAsDuration("REDIS_TTL", 24*time.Hour),
		},
		Events: EventsConfig{
			NATSURL: getEnv("NATS_URL", ""),
			Subject: getEnv("NATS_SUBJECT", "tonpay.payments"),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// ----------------- VALIDATION -----------------

var configValidator = validator.New()

func (c *Config) Validate() error {
	var errs []string

	if err := configValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Poller.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("poller config: %v", err))
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
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *PollerConfig) Validate() error {
	if c.MaxInterval != 0 && c.MaxInterval < c.Interval {
		return errors.New("max_interval must be >= interval")
	}
	return nil
}

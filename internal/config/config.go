package config

import (
	"errors"
	"fmt"
	"fraud_monitor/internal/domain"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var ErrInvalidConfig = errors.New("invalid configuration")

const (
	DriverMemory   = "memory"
	DriverJSON     = "json"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Auth     AuthConfig     `mapstructure:"auth"`
	AI       AIConfig       `mapstructure:"ai"`
	Alerts   AlertsConfig   `mapstructure:"alerts"`
	Events   EventsConfig   `mapstructure:"events"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
}

type HTTPConfig struct {
	Addr           string        `mapstructure:"addr"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type LoggingConfig struct {
	Format string `mapstructure:"format"`
	Level  string `mapstructure:"level"`
}

type StorageConfig struct {
	Driver      string `mapstructure:"driver"`
	DataDir     string `mapstructure:"data_dir"`
	DatabaseURL string `mapstructure:"database_url"`
	SQLitePath  string `mapstructure:"sqlite_path"`
}

type AuthConfig struct {
	JWTSecret    string        `mapstructure:"jwt_secret"`
	SessionTTL   time.Duration `mapstructure:"session_ttl"`
	RedisURL     string        `mapstructure:"redis_url"`
	CookieSecure bool          `mapstructure:"cookie_secure"`
}

type AIConfig struct {
	OpenAIAPIKey   string        `mapstructure:"openai_api_key"`
	OpenAIBaseURL  string        `mapstructure:"openai_base_url"`
	OpenAIModel    string        `mapstructure:"openai_model"`
	GeminiAPIKey   string        `mapstructure:"gemini_api_key"`
	GeminiModel    string        `mapstructure:"gemini_model"`
	EmbeddingModel string        `mapstructure:"embedding_model"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
}

type AlertsConfig struct {
	SlackWebhookURL  string        `mapstructure:"slack_webhook_url"`
	EmailAPIKey      string        `mapstructure:"email_api_key"`
	EmailAPIURL      string        `mapstructure:"email_api_url"`
	EmailFrom        string        `mapstructure:"email_from"`
	EmailTo          string        `mapstructure:"email_to"`
	SMTPHost         string        `mapstructure:"smtp_host"`
	SMTPPort         int           `mapstructure:"smtp_port"`
	SMTPUsername     string        `mapstructure:"smtp_username"`
	SMTPPassword     string        `mapstructure:"smtp_password"`
	NotionAPIKey     string        `mapstructure:"notion_api_key"`
	NotionDatabaseID string        `mapstructure:"notion_database_id"`
	NotionBaseURL    string        `mapstructure:"notion_base_url"`
	Workers          int           `mapstructure:"workers"`
	QueueSize        int           `mapstructure:"queue_size"`
	TestDelay        time.Duration `mapstructure:"test_delay"`
	TestSuccessRate  float64       `mapstructure:"test_success_rate"`
	SendTimeout      time.Duration `mapstructure:"send_timeout"`
}

type EventsConfig struct {
	KafkaBrokers     []string `mapstructure:"kafka_brokers"`
	KafkaTopic       string   `mapstructure:"kafka_topic"`
	RabbitMQURL      string   `mapstructure:"rabbitmq_url"`
	RabbitMQExchange string   `mapstructure:"rabbitmq_exchange"`
	SigningKey       string   `mapstructure:"signing_key"`
}

type PipelineConfig struct {
	ReportThreshold string `mapstructure:"report_threshold"`
	RulesFile       string `mapstructure:"rules_file"`
	Timezone        string `mapstructure:"timezone"`
}

type binding struct {
	key string
	env string
	def interface{}
}

var bindings = []binding{
	{"http.addr", "HTTP_ADDR", ":8080"},
	{"http.read_timeout", "HTTP_READ_TIMEOUT", 30 * time.Second},
	{"http.write_timeout", "HTTP_WRITE_TIMEOUT", 60 * time.Second},
	{"http.request_timeout", "HTTP_REQUEST_TIMEOUT", 45 * time.Second},
	{"http.allowed_origins", "CORS_ALLOWED_ORIGINS", []string{"*"}},

	{"metrics.enabled", "METRICS_ENABLED", true},
	{"metrics.addr", "METRICS_ADDR", ":9090"},

	{"logging.format", "LOG_FORMAT", "json"},
	{"logging.level", "LOG_LEVEL", "info"},

	{"storage.driver", "STORAGE_DRIVER", ""},
	{"storage.data_dir", "DATA_DIR", "./data"},
	{"storage.database_url", "DATABASE_URL", ""},
	{"storage.sqlite_path", "SQLITE_PATH", "fraudmon.db"},

	{"auth.jwt_secret", "JWT_SECRET", ""},
	{"auth.session_ttl", "SESSION_TTL", 24 * time.Hour},
	{"auth.redis_url", "REDIS_URL", ""},
	{"auth.cookie_secure", "COOKIE_SECURE", false},

	{"ai.openai_api_key", "OPENAI_API_KEY", ""},
	{"ai.openai_base_url", "OPENAI_BASE_URL", ""},
	{"ai.openai_model", "OPENAI_MODEL", ""},
	{"ai.gemini_api_key", "GEMINI_API_KEY", ""},
	{"ai.gemini_model", "GEMINI_MODEL", ""},
	{"ai.embedding_model", "OPENAI_EMBEDDING_MODEL", ""},
	{"ai.timeout", "AI_TIMEOUT", 20 * time.Second},
	{"ai.max_attempts", "AI_MAX_ATTEMPTS", 1},

	{"alerts.slack_webhook_url", "SLACK_WEBHOOK_URL", ""},
	{"alerts.email_api_key", "EMAIL_SERVICE_API_KEY", ""},
	{"alerts.email_api_url", "EMAIL_SERVICE_URL", ""},
	{"alerts.email_from", "ALERT_EMAIL_FROM", "alerts@agentledger.com"},
	{"alerts.email_to", "ALERT_EMAIL_TO", "compliance@agentledger.com"},
	{"alerts.smtp_host", "SMTP_HOST", ""},
	{"alerts.smtp_port", "SMTP_PORT", 587},
	{"alerts.smtp_username", "SMTP_USERNAME", ""},
	{"alerts.smtp_password", "SMTP_PASSWORD", ""},
	{"alerts.notion_api_key", "NOTION_API_KEY", ""},
	{"alerts.notion_database_id", "NOTION_DATABASE_ID", ""},
	{"alerts.notion_base_url", "NOTION_BASE_URL", ""},
	{"alerts.workers", "ALERT_WORKERS", 2},
	{"alerts.queue_size", "ALERT_QUEUE_SIZE", 100},
	{"alerts.test_delay", "ALERT_TEST_DELAY", time.Second},
	{"alerts.test_success_rate", "ALERT_TEST_SUCCESS_RATE", 0.9},
	{"alerts.send_timeout", "ALERT_SEND_TIMEOUT", 30 * time.Second},

	{"events.kafka_brokers", "KAFKA_BROKERS", []string{}},
	{"events.kafka_topic", "KAFKA_TOPIC", "fraudmon.events"},
	{"events.rabbitmq_url", "RABBITMQ_URL", ""},
	{"events.rabbitmq_exchange", "RABBITMQ_EXCHANGE", "fraudmon.events"},
	{"events.signing_key", "EVENT_SIGNING_KEY", ""},

	{"pipeline.report_threshold", "REPORT_THRESHOLD", "HIGH"},
	{"pipeline.rules_file", "ALERT_RULES_FILE", ""},
	{"pipeline.timezone", "SCORER_TIMEZONE", ""},
}

// Load reads .env (if present), then the optional YAML file at path, then the
// environment. Later sources win.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	v := viper.New()
	for _, b := range bindings {
		v.SetDefault(b.key, b.def)
		if err := v.BindEnv(b.key, b.env); err != nil {
			return nil, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Events.KafkaBrokers = splitList(cfg.Events.KafkaBrokers)
	cfg.HTTP.AllowedOrigins = splitList(cfg.HTTP.AllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage.ResolvedDriver() {
	case DriverMemory, DriverJSON, DriverSQLite:
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("%w: postgres storage requires DATABASE_URL", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage driver %q", ErrInvalidConfig, c.Storage.Driver)
	}

	if _, err := domain.ParseRiskLevel(c.Pipeline.ReportThreshold); err != nil {
		return fmt.Errorf("%w: REPORT_THRESHOLD: %v", ErrInvalidConfig, err)
	}
	if c.Alerts.TestSuccessRate < 0 || c.Alerts.TestSuccessRate > 1 {
		return fmt.Errorf("%w: ALERT_TEST_SUCCESS_RATE must be within [0,1]", ErrInvalidConfig)
	}
	if c.Pipeline.Timezone != "" {
		if _, err := time.LoadLocation(c.Pipeline.Timezone); err != nil {
			return fmt.Errorf("%w: SCORER_TIMEZONE: %v", ErrInvalidConfig, err)
		}
	}
	return nil
}

// ResolvedDriver picks postgres when only DATABASE_URL is set, memory otherwise.
func (s StorageConfig) ResolvedDriver() string {
	if s.Driver != "" {
		return strings.ToLower(s.Driver)
	}
	if s.DatabaseURL != "" {
		return DriverPostgres
	}
	return DriverMemory
}

func (p PipelineConfig) Threshold() domain.RiskLevel {
	level, err := domain.ParseRiskLevel(p.ReportThreshold)
	if err != nil {
		return domain.RiskHigh
	}
	return level
}

func (p PipelineConfig) Location() *time.Location {
	if p.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// splitList flattens comma separated entries and drops blanks.
func splitList(items []string) []string {
	var out []string
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"TrendWatch/pkg/logger"
)

type Config struct {
	Environment string        `yaml:"environment" validate:"required"`
	Logger      logger.Config `yaml:"logger"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"2m"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`

	// Universe lists the symbols evaluated each cycle, in order. When empty the
	// sorted keys of the symbols file are used.
	Universe    []string `yaml:"universe"`
	SymbolsFile string   `yaml:"symbols_file" default:"config/technical_indicators.json" validate:"required"`

	Cycle struct {
		Interval          time.Duration `yaml:"interval" default:"1h"`
		MinSymbolDuration time.Duration `yaml:"min_symbol_duration" default:"15s"`
		RetryAttempts     int           `yaml:"retry_attempts" default:"3" validate:"gte=1"`
		RetryBackoff      time.Duration `yaml:"retry_backoff" default:"10s"`
		LockTTL           time.Duration `yaml:"lock_ttl" default:"15m"`
	} `yaml:"cycle"`

	Provider struct {
		Type              string        `yaml:"type" default:"alphavantage" validate:"oneof=alphavantage yahoo"`
		APIKey            string        `yaml:"api_key"`
		BaseURL           string        `yaml:"base_url" default:"https://www.alphavantage.co/query"`
		Interval          string        `yaml:"interval" default:"60min"`
		OutputSize        string        `yaml:"output_size" default:"full"`
		Timeout           time.Duration `yaml:"timeout" default:"30s"`
		RequestsPerMinute float64       `yaml:"requests_per_minute" default:"5"`
		LookbackDays      int           `yaml:"lookback_days" default:"60"`
	} `yaml:"provider"`

	Store struct {
		Type          string        `yaml:"type" default:"redis" validate:"oneof=redis sqlite postgres memory"`
		Prefix        string        `yaml:"prefix" default:"trendwatch"`
		DSN           string        `yaml:"dsn"`
		SweepInterval time.Duration `yaml:"sweep_interval" default:"1m"`
	} `yaml:"store"`

	Redis struct {
		Host         string        `yaml:"host" default:"localhost"`
		Port         int           `yaml:"port" default:"6379"`
		Password     string        `yaml:"password"`
		DB           int           `yaml:"db"`
		PoolSize     int           `yaml:"pool_size" default:"10"`
		MinIdleConns int           `yaml:"min_idle_conns" default:"2"`
		PoolTimeout  time.Duration `yaml:"pool_timeout" default:"30s"`
	} `yaml:"redis"`

	Kafka struct {
		Enabled        bool          `yaml:"enabled"`
		Brokers        []string      `yaml:"brokers"`
		DecisionsTopic string        `yaml:"decisions_topic" default:"trendwatch.decisions"`
		ReportsTopic   string        `yaml:"reports_topic" default:"trendwatch.reports"`
		LogsTopic      string        `yaml:"logs_topic"`
		RequiredAcks   int           `yaml:"required_acks" default:"-1"`
		Compression    string        `yaml:"compression" default:"gzip"`
		MaxAttempts    int           `yaml:"max_attempts" default:"3"`
		WriteTimeout   time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"kafka"`

	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"trendwatch"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`

	Notify struct {
		Channels    []string      `yaml:"channels" validate:"dive,oneof=log smtp webhook telegram kafka"`
		Subject     string        `yaml:"subject" default:"Trading Bot Notifications"`
		SendTimeout time.Duration `yaml:"send_timeout" default:"1m"`
		SMTP        struct {
			Host     string        `yaml:"host"`
			Port     int           `yaml:"port" default:"587"`
			Username string        `yaml:"username"`
			Password string        `yaml:"password"`
			From     string        `yaml:"from"`
			To       []string      `yaml:"to"`
			Timeout  time.Duration `yaml:"timeout" default:"30s"`
		} `yaml:"smtp"`
		Webhook struct {
			URL     string        `yaml:"url"`
			Timeout time.Duration `yaml:"timeout" default:"10s"`
		} `yaml:"webhook"`
		Telegram struct {
			BotToken string `yaml:"bot_token"`
			ChatID   string `yaml:"chat_id"`
		} `yaml:"telegram"`
	} `yaml:"notify"`
}

// EnvOverrides are read from the process environment (and an optional .env file).
type EnvOverrides struct {
	APIKey         string   `envconfig:"API_KEY"`
	Universe       []string `envconfig:"SYMBOLS"`
	StoreType      string   `envconfig:"STORE"`
	StoreDSN       string   `envconfig:"STORE_DSN"`
	RedisHost      string   `envconfig:"REDIS_HOST"`
	RedisPassword  string   `envconfig:"REDIS_PASSWORD"`
	KafkaBrokers   []string `envconfig:"KAFKA_BROKERS"`
	SMTPPassword   string   `envconfig:"SMTP_PASSWORD"`
	SenderEmail    string   `envconfig:"SENDER_EMAIL"`
	RecipientEmail []string `envconfig:"RECIPIENT_EMAIL"`
	TelegramToken  string   `envconfig:"TELEGRAM_BOT_TOKEN"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, applies defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables
// prefixed TRENDWATCH_ (a .env file in the working directory is honoured).
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	_ = godotenv.Load()

	var ov EnvOverrides
	if err := envconfig.Process("TRENDWATCH", &ov); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	c.apply(ov)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) apply(ov EnvOverrides) {
	if ov.APIKey != "" {
		c.Provider.APIKey = ov.APIKey
	}
	if len(ov.Universe) > 0 {
		c.Universe = trimAll(ov.Universe)
	}
	if ov.StoreType != "" {
		c.Store.Type = ov.StoreType
	}
	if ov.StoreDSN != "" {
		c.Store.DSN = ov.StoreDSN
	}
	if ov.RedisHost != "" {
		c.Redis.Host = ov.RedisHost
	}
	if ov.RedisPassword != "" {
		c.Redis.Password = ov.RedisPassword
	}
	if len(ov.KafkaBrokers) > 0 {
		c.Kafka.Brokers = trimAll(ov.KafkaBrokers)
	}
	if ov.SMTPPassword != "" {
		c.Notify.SMTP.Password = ov.SMTPPassword
	}
	if ov.SenderEmail != "" {
		c.Notify.SMTP.From = ov.SenderEmail
	}
	if len(ov.RecipientEmail) > 0 {
		c.Notify.SMTP.To = trimAll(ov.RecipientEmail)
	}
	if ov.TelegramToken != "" {
		c.Notify.Telegram.BotToken = ov.TelegramToken
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Provider.Type == "alphavantage" && c.Provider.APIKey == "" {
		return errors.New("provider.api_key is required for alphavantage")
	}
	if (c.Store.Type == "sqlite" || c.Store.Type == "postgres") && c.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required for store type %q", c.Store.Type)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return errors.New("clickhouse.host is required when clickhouse is enabled")
	}
	for _, ch := range c.Notify.Channels {
		switch ch {
		case "smtp":
			if c.Notify.SMTP.Host == "" || c.Notify.SMTP.From == "" || len(c.Notify.SMTP.To) == 0 {
				return errors.New("notify.smtp requires host, from and to")
			}
		case "webhook":
			if c.Notify.Webhook.URL == "" {
				return errors.New("notify.webhook.url is required")
			}
		case "telegram":
			if c.Notify.Telegram.BotToken == "" || c.Notify.Telegram.ChatID == "" {
				return errors.New("notify.telegram requires bot_token and chat_id")
			}
		case "kafka":
			if !c.Kafka.Enabled {
				return errors.New("notify channel kafka requires kafka.enabled")
			}
		}
	}
	return nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

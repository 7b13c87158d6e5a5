package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sink, watermark and secret backend names.
const (
	SinkFirehose   = "firehose"
	SinkJetStream  = "jetstream"
	SinkOpenSearch = "opensearch"

	WatermarkSSM      = "ssm"
	WatermarkRedis    = "redis"
	WatermarkPostgres = "postgres"
	WatermarkMemory   = "memory"

	SecretsManager = "secretsmanager"
	SecretsEnv     = "env"
)

// FirehoseMaxBatchSize is the per-call record limit of PutRecordBatch.
const FirehoseMaxBatchSize = 500

type Config struct {
	Meraki     MerakiConfig     `mapstructure:"meraki" yaml:"meraki"`
	Sink       SinkConfig       `mapstructure:"sink" yaml:"sink"`
	Watermark  WatermarkConfig  `mapstructure:"watermark" yaml:"watermark"`
	Secrets    SecretsConfig    `mapstructure:"secrets" yaml:"secrets"`
	AWS        AWSConfig        `mapstructure:"aws" yaml:"aws"`
	NATS       NATSConfig       `mapstructure:"nats" yaml:"nats"`
	OpenSearch OpenSearchConfig `mapstructure:"opensearch" yaml:"opensearch"`
	Schedule   ScheduleConfig   `mapstructure:"schedule" yaml:"schedule"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
}

type MerakiConfig struct {
	BaseURL        string        `mapstructure:"base_url" yaml:"base_url"`
	APIKeySecret   string        `mapstructure:"api_key_secret" yaml:"api_key_secret"`
	OrganizationID string        `mapstructure:"organization_id" yaml:"organization_id"`
	ProductTypes   []string      `mapstructure:"product_types" yaml:"product_types"`
	PerPage        int           `mapstructure:"per_page" yaml:"per_page"`
	MaxPages       int           `mapstructure:"max_pages" yaml:"max_pages"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type SinkConfig struct {
	Backend        string `mapstructure:"backend" yaml:"backend"`
	Stream         string `mapstructure:"stream" yaml:"stream"`
	BatchSize      int    `mapstructure:"batch_size" yaml:"batch_size"`
	Subject        string `mapstructure:"subject" yaml:"subject"`
	Index          string `mapstructure:"index" yaml:"index"`
	FailOnRejected bool   `mapstructure:"fail_on_rejected" yaml:"fail_on_rejected"`
}

type WatermarkConfig struct {
	Backend     string        `mapstructure:"backend" yaml:"backend"`
	Key         string        `mapstructure:"key" yaml:"key"`
	Lookback    time.Duration `mapstructure:"lookback" yaml:"lookback"`
	RedisURL    string        `mapstructure:"redis_url" yaml:"redis_url"`
	PostgresURL string        `mapstructure:"postgres_url" yaml:"postgres_url"`
}

type SecretsConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"`
}

type AWSConfig struct {
	Region          string `mapstructure:"region" yaml:"region"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`
	SessionToken    string `mapstructure:"session_token" yaml:"session_token"`
}

type NATSConfig struct {
	URL           string        `mapstructure:"url" yaml:"url"`
	StreamName    string        `mapstructure:"stream_name" yaml:"stream_name"`
	MaxReconnects int           `mapstructure:"max_reconnects" yaml:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait" yaml:"reconnect_wait"`
}

type OpenSearchConfig struct {
	URL           string `mapstructure:"url" yaml:"url"`
	Username      string `mapstructure:"username" yaml:"username"`
	Password      string `mapstructure:"password" yaml:"password"`
	TLSSkipVerify bool   `mapstructure:"tls_skip_verify" yaml:"tls_skip_verify"`
}

type ScheduleConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port" yaml:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// legacyEnv maps config keys to the environment variable names the
// Lambda deployment has always used.
var legacyEnv = map[string]string{
	"sink.stream":           "FIREHOSE_DELIVERY_STREAM",
	"sink.batch_size":       "FIREHOSE_BATCH_SIZE",
	"meraki.api_key_secret": "MERAKI_API_KEY",
	"meraki.product_types":  "MERAKI_PRODUCT_TYPES",
	"aws.region":            "AWS_REGION",
}

const envPrefix = "MERAKI_ACTIVITY"

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("meraki.base_url", "https://api.meraki.com/api/v0")
	v.SetDefault("meraki.api_key_secret", "unknown")
	v.SetDefault("meraki.organization_id", "")
	v.SetDefault("meraki.product_types", "wireless")
	v.SetDefault("meraki.per_page", 1000)
	v.SetDefault("meraki.max_pages", 0)
	v.SetDefault("meraki.timeout", "30s")
	v.SetDefault("sink.backend", SinkFirehose)
	v.SetDefault("sink.stream", "test")
	v.SetDefault("sink.batch_size", 100)
	v.SetDefault("sink.subject", "meraki.events")
	v.SetDefault("sink.index", "meraki-events")
	v.SetDefault("sink.fail_on_rejected", false)
	v.SetDefault("watermark.backend", WatermarkSSM)
	v.SetDefault("watermark.key", "/meraki-events/lastquerytime")
	v.SetDefault("watermark.lookback", "60m")
	v.SetDefault("watermark.redis_url", "redis://localhost:6379/0")
	v.SetDefault("watermark.postgres_url", "")
	v.SetDefault("secrets.backend", SecretsManager)
	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("aws.endpoint", "")
	v.SetDefault("aws.access_key_id", "")
	v.SetDefault("aws.secret_access_key", "")
	v.SetDefault("aws.session_token", "")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.stream_name", "MERAKI_EVENTS")
	v.SetDefault("nats.max_reconnects", -1)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("opensearch.url", "https://localhost:9200")
	v.SetDefault("opensearch.username", "admin")
	v.SetDefault("opensearch.password", "")
	v.SetDefault("opensearch.tls_skip_verify", false)
	v.SetDefault("schedule.interval", "5m")
	v.SetDefault("server.port", 9090)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/meraki-activity")
	}

	// Environment variables override
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", legacy, err)
		}
	}

	// Read config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Meraki.ProductTypes = SplitList(cfg.Meraki.ProductTypes)
	cfg.Meraki.BaseURL = strings.TrimRight(cfg.Meraki.BaseURL, "/")

	return &cfg, nil
}

// SplitList flattens comma-separated entries, trims whitespace and drops
// empties. Env vars arrive as one "a,b" element while YAML lists arrive split.
func SplitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate checks the settings a poll run cannot work without.
func (c *Config) Validate() error {
	var errs []error

	if c.Meraki.BaseURL == "" {
		errs = append(errs, errors.New("meraki.base_url is required"))
	}
	if c.Meraki.APIKeySecret == "" {
		errs = append(errs, errors.New("meraki.api_key_secret is required"))
	}
	if len(c.Meraki.ProductTypes) == 0 {
		errs = append(errs, errors.New("meraki.product_types must name at least one product type"))
	}
	if c.Meraki.PerPage < 3 || c.Meraki.PerPage > 1000 {
		errs = append(errs, fmt.Errorf("meraki.per_page must be between 3 and 1000, got %d", c.Meraki.PerPage))
	}
	if c.Meraki.MaxPages < 0 {
		errs = append(errs, fmt.Errorf("meraki.max_pages must not be negative, got %d", c.Meraki.MaxPages))
	}

	if c.Sink.Stream == "" {
		errs = append(errs, errors.New("sink.stream is required"))
	}
	if c.Sink.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("sink.batch_size must be positive, got %d", c.Sink.BatchSize))
	}
	switch c.Sink.Backend {
	case SinkFirehose:
		if c.Sink.BatchSize > FirehoseMaxBatchSize {
			errs = append(errs, fmt.Errorf("sink.batch_size %d exceeds the firehose limit of %d", c.Sink.BatchSize, FirehoseMaxBatchSize))
		}
	case SinkJetStream:
		if c.Sink.Subject == "" {
			errs = append(errs, errors.New("sink.subject is required for the jetstream sink"))
		}
	case SinkOpenSearch:
		if c.Sink.Index == "" {
			errs = append(errs, errors.New("sink.index is required for the opensearch sink"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown sink.backend %q (supported: firehose, jetstream, opensearch)", c.Sink.Backend))
	}

	if c.Watermark.Key == "" {
		errs = append(errs, errors.New("watermark.key is required"))
	}
	if c.Watermark.Lookback <= 0 {
		errs = append(errs, fmt.Errorf("watermark.lookback must be positive, got %s", c.Watermark.Lookback))
	}
	switch c.Watermark.Backend {
	case WatermarkSSM, WatermarkMemory:
	case WatermarkRedis:
		if c.Watermark.RedisURL == "" {
			errs = append(errs, errors.New("watermark.redis_url is required for the redis backend"))
		}
	case WatermarkPostgres:
		if c.Watermark.PostgresURL == "" {
			errs = append(errs, errors.New("watermark.postgres_url is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown watermark.backend %q (supported: ssm, redis, postgres, memory)", c.Watermark.Backend))
	}

	switch c.Secrets.Backend {
	case SecretsManager, SecretsEnv:
	default:
		errs = append(errs, fmt.Errorf("unknown secrets.backend %q (supported: secretsmanager, env)", c.Secrets.Backend))
	}

	return errors.Join(errs...)
}

// Redacted returns a copy with credentials blanked, for display.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	c.Meraki.ProductTypes = append([]string(nil), c.Meraki.ProductTypes...)
	c.AWS.SecretAccessKey = mask(c.AWS.SecretAccessKey)
	c.AWS.SessionToken = mask(c.AWS.SessionToken)
	c.OpenSearch.Password = mask(c.OpenSearch.Password)
	c.Watermark.RedisURL = maskURLPassword(c.Watermark.RedisURL)
	c.Watermark.PostgresURL = maskURLPassword(c.Watermark.PostgresURL)
	return c
}

func maskURLPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); !ok {
		return raw
	}
	u.User = url.UserPassword(u.User.Username(), "xxxxx")
	return u.String()
}

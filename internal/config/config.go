package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the campaign engine.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	SES      SESConfig      `yaml:"ses"`
	Audit    AuditConfig    `yaml:"audit"`
	Campaign CampaignConfig `yaml:"campaign"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds HTTP server configuration for the manual-trigger API.
type ServerConfig struct {
	Port         int    `yaml:"port"`
	Host         string `yaml:"host"`
	TriggerToken string `yaml:"trigger_token"`
}

// GetHost returns the server host, listening on all interfaces in containers.
func (c ServerConfig) GetHost() string {
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds the Postgres connection for the catalog/subscriber store.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds the region-cache Redis connection. Optional; the store
// falls back to Postgres when disabled or unreachable.
type RedisConfig struct {
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	TTLMinutes int    `yaml:"ttl_minutes"`
	Enabled    bool   `yaml:"enabled"`
}

// TTL returns the cache entry lifetime.
func (c RedisConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// SESConfig holds AWS SES v2 configuration for the delivery client.
type SESConfig struct {
	Region         string  `yaml:"region"`
	AccessKey      string  `yaml:"access_key"`
	SecretKey      string  `yaml:"secret_key"`
	FromName       string  `yaml:"from_name"`
	FromEmail      string  `yaml:"from_email"`
	ReplyTo        string  `yaml:"reply_to"`
	SendsPerSecond float64 `yaml:"sends_per_second"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// Timeout returns the per-send timeout as a duration.
func (c SESConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// AuditConfig holds the DynamoDB/S3 audit trail configuration.
type AuditConfig struct {
	DynamoDBTable string `yaml:"dynamodb_table"`
	S3Bucket      string `yaml:"s3_bucket"`
	AWSRegion     string `yaml:"aws_region"`
}

// CampaignConfig holds orchestrator tunables.
type CampaignConfig struct {
	Name              string `yaml:"name"`
	BatchSize         int    `yaml:"batch_size"`
	BatchPauseSeconds int    `yaml:"batch_pause_seconds"`
	RunBudgetMinutes  int    `yaml:"run_budget_minutes"`
	ScheduleWeekday   int    `yaml:"schedule_weekday"` // 0=Sunday ... 6=Saturday
	ScheduleHourUTC   int    `yaml:"schedule_hour_utc"`
	SiteBaseURL       string `yaml:"site_base_url"`
}

// BatchPause returns the inter-batch pacing interval.
func (c CampaignConfig) BatchPause() time.Duration {
	return time.Duration(c.BatchPauseSeconds) * time.Second
}

// RunBudget returns the wall-clock budget for one run; zero means unbounded.
func (c CampaignConfig) RunBudget() time.Duration {
	return time.Duration(c.RunBudgetMinutes) * time.Minute
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Load reads and parses the configuration file, applying defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Redis.TTLMinutes == 0 {
		cfg.Redis.TTLMinutes = 60
	}
	if cfg.SES.Region == "" {
		cfg.SES.Region = "eu-west-1"
	}
	if cfg.SES.TimeoutSeconds == 0 {
		cfg.SES.TimeoutSeconds = 30
	}
	if cfg.SES.SendsPerSecond == 0 {
		cfg.SES.SendsPerSecond = 1
	}
	if cfg.SES.FromName == "" {
		cfg.SES.FromName = "Colively"
	}
	if cfg.Campaign.Name == "" {
		cfg.Campaign.Name = "weekly_coliving"
	}
	if cfg.Campaign.BatchSize == 0 {
		cfg.Campaign.BatchSize = 25
	}
	if cfg.Campaign.BatchPauseSeconds == 0 {
		cfg.Campaign.BatchPauseSeconds = 3
	}
	if cfg.Campaign.ScheduleWeekday == 0 {
		cfg.Campaign.ScheduleWeekday = int(time.Monday)
	}
	if cfg.Campaign.ScheduleHourUTC == 0 {
		cfg.Campaign.ScheduleHourUTC = 10
	}
	if cfg.Campaign.SiteBaseURL == "" {
		cfg.Campaign.SiteBaseURL = "https://colively.com"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// A .env file (if present) is loaded first, so secrets can live in .env
// locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
		cfg.Redis.Enabled = true
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		cfg.Redis.Password = pw
	}
	if key := os.Getenv("AWS_SES_ACCESS_KEY"); key != "" {
		cfg.SES.AccessKey = key
	}
	if key := os.Getenv("AWS_SES_SECRET_KEY"); key != "" {
		cfg.SES.SecretKey = key
	}
	if region := os.Getenv("AWS_SES_REGION"); region != "" {
		cfg.SES.Region = region
	}
	if from := os.Getenv("CAMPAIGN_FROM_EMAIL"); from != "" {
		cfg.SES.FromEmail = from
	}
	if rate := os.Getenv("CAMPAIGN_SENDS_PER_SECOND"); rate != "" {
		if f, err := strconv.ParseFloat(rate, 64); err == nil && f > 0 {
			cfg.SES.SendsPerSecond = f
		}
	}
	if table := os.Getenv("AUDIT_DYNAMODB_TABLE"); table != "" {
		cfg.Audit.DynamoDBTable = table
	}
	if bucket := os.Getenv("AUDIT_S3_BUCKET"); bucket != "" {
		cfg.Audit.S3Bucket = bucket
	}
	if token := os.Getenv("TRIGGER_TOKEN"); token != "" {
		cfg.Server.TriggerToken = token
	}

	return cfg, nil
}

// Validate checks the contract-level requirements that must fail the whole
// process at initialization time, before any subscriber is touched.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	if c.SES.FromEmail == "" {
		return fmt.Errorf("ses.from_email is required")
	}
	if c.SES.AccessKey == "" || c.SES.SecretKey == "" {
		return fmt.Errorf("ses credentials are required")
	}
	if c.Audit.DynamoDBTable == "" {
		return fmt.Errorf("audit.dynamodb_table is required")
	}
	return nil
}

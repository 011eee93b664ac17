package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the discovery service
type Config struct {
	Server          ServerConfig          `yaml:"server"`
	Logging         LoggingConfig         `yaml:"logging"`
	YouTube         YouTubeConfig         `yaml:"youtube"`
	ChannelFeeds    ChannelFeedsConfig    `yaml:"channel_feeds"`
	AdsTransparency AdsTransparencyConfig `yaml:"ads_transparency"`
	Sources         SourcesConfig         `yaml:"sources"`
	Schedule        ScheduleConfig        `yaml:"schedule"`
	Storage         StorageConfig         `yaml:"storage"`
	Database        DatabaseConfig        `yaml:"database"`
	Redis           RedisConfig           `yaml:"redis"`
	Digest          DigestConfig          `yaml:"digest"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	// RunScheduler starts the cron scheduler inside the API process.
	RunScheduler bool `yaml:"run_scheduler"`
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Level         string `yaml:"level"`
	RedactSecrets bool   `yaml:"redact_secrets"`
}

// YouTubeConfig holds YouTube Data API configuration
type YouTubeConfig struct {
	Enabled      bool     `yaml:"enabled"`
	APIKey       string   `yaml:"api_key"`
	AccessToken  string   `yaml:"access_token"`
	Queries      []string `yaml:"queries"`
	MaxResults   int64    `yaml:"max_results"`
	LookbackDays int      `yaml:"lookback_days"`
	RegionCode   string   `yaml:"region_code"`
}

// Lookback returns the search window as a duration
func (c YouTubeConfig) Lookback() time.Duration {
	return time.Duration(c.LookbackDays) * 24 * time.Hour
}

// ChannelFeedsConfig holds the known-channel feed monitor configuration
type ChannelFeedsConfig struct {
	Enabled      bool            `yaml:"enabled"`
	FeedURL      string          `yaml:"feed_url"`
	LookbackDays int             `yaml:"lookback_days"`
	Channels     []ChannelConfig `yaml:"channels"`
}

// ChannelConfig is one monitored channel
type ChannelConfig struct {
	ID          string `yaml:"id"`
	Subscribers int64  `yaml:"subscribers"`
}

// Lookback returns the feed window as a duration
func (c ChannelFeedsConfig) Lookback() time.Duration {
	return time.Duration(c.LookbackDays) * 24 * time.Hour
}

// AdsTransparencyConfig holds ads transparency search configuration
type AdsTransparencyConfig struct {
	Enabled            bool     `yaml:"enabled"`
	APIKey             string   `yaml:"api_key"`
	BaseURL            string   `yaml:"base_url"`
	Engine             string   `yaml:"engine"`
	Region             string   `yaml:"region"`
	Queries            []string `yaml:"queries"`
	ActiveWindowDays   int      `yaml:"active_window_days"`
	CostPerCreativeDay float64  `yaml:"cost_per_creative_day"`
	MaxRetries         int      `yaml:"max_retries"`
}

// ActiveWindow returns the window in which a creative counts as active
func (c AdsTransparencyConfig) ActiveWindow() time.Duration {
	return time.Duration(c.ActiveWindowDays) * 24 * time.Hour
}

// SourcesConfig holds the collector fan-out settings
type SourcesConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
	MaxConcurrency int `yaml:"max_concurrency"`
}

// Timeout returns the per-adapter timeout as a duration
func (c SourcesConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ScheduleConfig holds the discovery run schedule
type ScheduleConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Cron           string `yaml:"cron"`
	Timezone       string `yaml:"timezone"`
	LockTTLSeconds int    `yaml:"lock_ttl_seconds"`
	// StaleAfterHours marks the last run stale in readiness checks; 0 disables.
	StaleAfterHours int `yaml:"stale_after_hours"`
}

// LockTTL returns the distributed run-lock TTL as a duration
func (c ScheduleConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// StaleAfter returns the readiness staleness threshold as a duration
func (c ScheduleConfig) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterHours) * time.Hour
}

// Location resolves the configured timezone, falling back to UTC.
func (c ScheduleConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// StorageConfig holds snapshot export and run history configuration
type StorageConfig struct {
	Type          string `yaml:"type"`
	LocalPath     string `yaml:"local_path"`
	S3Bucket      string `yaml:"s3_bucket"`
	S3Prefix      string `yaml:"s3_prefix"`
	DynamoDBTable string `yaml:"dynamodb_table"`
	AWSRegion     string `yaml:"aws_region"`
	AWSProfile    string `yaml:"aws_profile"` // Empty string uses default credential chain (IAM role on ECS)
	AccessKeyID   string `yaml:"access_key_id"`
	SecretKey     string `yaml:"secret_access_key"`
	// Endpoint overrides the AWS endpoint, e.g. for LocalStack.
	Endpoint string `yaml:"endpoint"`
}

// GetAWSProfile returns the AWS profile, with environment variable override
func (c StorageConfig) GetAWSProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return ""
		}
		return envProfile
	}
	// On ECS/Lambda, don't use a profile - use IAM role
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.AWSProfile
}

// DatabaseConfig holds PostgreSQL configuration. An empty URL keeps products in memory.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds Redis configuration for the seen registry and run lock
type RedisConfig struct {
	URL          string `yaml:"url"`
	SeenTTLHours int    `yaml:"seen_ttl_hours"`
	KeyPrefix    string `yaml:"key_prefix"`
}

// SeenTTL returns how long a seen channel or advertiser is remembered
func (c RedisConfig) SeenTTL() time.Duration {
	return time.Duration(c.SeenTTLHours) * time.Hour
}

// DigestConfig holds digest rendering configuration
type DigestConfig struct {
	TopN         int    `yaml:"top_n"`
	TemplatePath string `yaml:"template_path"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every default applied and no sources enabled.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"*"}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.YouTube.MaxResults == 0 {
		cfg.YouTube.MaxResults = 25
	}
	if cfg.YouTube.LookbackDays == 0 {
		cfg.YouTube.LookbackDays = 7
	}
	if cfg.YouTube.RegionCode == "" {
		cfg.YouTube.RegionCode = "US"
	}
	if cfg.ChannelFeeds.FeedURL == "" {
		cfg.ChannelFeeds.FeedURL = "https://www.youtube.com/feeds/videos.xml"
	}
	if cfg.ChannelFeeds.LookbackDays == 0 {
		cfg.ChannelFeeds.LookbackDays = 7
	}
	if cfg.AdsTransparency.BaseURL == "" {
		cfg.AdsTransparency.BaseURL = "https://serpapi.com/search.json"
	}
	if cfg.AdsTransparency.Engine == "" {
		cfg.AdsTransparency.Engine = "google_ads_transparency_center"
	}
	if cfg.AdsTransparency.Region == "" {
		cfg.AdsTransparency.Region = "2840"
	}
	if cfg.AdsTransparency.ActiveWindowDays == 0 {
		cfg.AdsTransparency.ActiveWindowDays = 30
	}
	if cfg.AdsTransparency.CostPerCreativeDay == 0 {
		cfg.AdsTransparency.CostPerCreativeDay = 25
	}
	if cfg.AdsTransparency.MaxRetries == 0 {
		cfg.AdsTransparency.MaxRetries = 3
	}
	if cfg.Sources.TimeoutSeconds == 0 {
		cfg.Sources.TimeoutSeconds = 60
	}
	if cfg.Sources.MaxConcurrency == 0 {
		cfg.Sources.MaxConcurrency = 4
	}
	if cfg.Schedule.Cron == "" {
		cfg.Schedule.Cron = "0 */6 * * *"
	}
	if cfg.Schedule.Timezone == "" {
		cfg.Schedule.Timezone = "UTC"
	}
	if cfg.Schedule.LockTTLSeconds == 0 {
		cfg.Schedule.LockTTLSeconds = 1800
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "local"
	}
	if cfg.Storage.LocalPath == "" {
		cfg.Storage.LocalPath = "./data"
	}
	if cfg.Storage.AWSRegion == "" {
		cfg.Storage.AWSRegion = "us-west-2"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Redis.SeenTTLHours == 0 {
		cfg.Redis.SeenTTLHours = 90 * 24
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "smart-affiliate:seen:"
	}
	if cfg.Digest.TopN == 0 {
		cfg.Digest.TopN = 10
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

func (cfg *Config) applyEnv() {
	if v := os.Getenv("YOUTUBE_API_KEY"); v != "" {
		cfg.YouTube.APIKey = v
		cfg.YouTube.Enabled = true
	}
	if v := os.Getenv("YOUTUBE_ACCESS_TOKEN"); v != "" {
		cfg.YouTube.AccessToken = v
		cfg.YouTube.Enabled = true
	}
	if v := os.Getenv("YOUTUBE_QUERIES"); v != "" {
		cfg.YouTube.Queries = splitList(v)
	}
	if v := os.Getenv("ADS_TRANSPARENCY_API_KEY"); v != "" {
		cfg.AdsTransparency.APIKey = v
		cfg.AdsTransparency.Enabled = true
	}
	if v := os.Getenv("ADS_TRANSPARENCY_QUERIES"); v != "" {
		cfg.AdsTransparency.Queries = splitList(v)
	}

	// Database override (critical for ECS deployment where config.yaml has local defaults)
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		cfg.Storage.S3Bucket = v
	}
	if v := os.Getenv("DYNAMODB_TABLE"); v != "" {
		cfg.Storage.DynamoDBTable = v
	}
	if v := os.Getenv("STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
		cfg.Storage.AccessKeyID = v
	}
	if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
		cfg.Storage.SecretKey = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
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

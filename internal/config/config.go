package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Sync     SyncConfig     `yaml:"sync"`
	Reports  ReportsConfig  `yaml:"reports"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port                int      `yaml:"port"`
	Host                string   `yaml:"host"`
	AllowedOrigins      []string `yaml:"allowed_origins"`
	MaxUploadMB         int      `yaml:"max_upload_mb"`
	ReadTimeoutSeconds  int      `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int      `yaml:"write_timeout_seconds"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// ReadTimeout returns the HTTP read timeout.
func (c ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

// WriteTimeout returns the HTTP write timeout. It must exceed the sync
// timeout so a 408 can still be written.
func (c ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

// DatabaseConfig selects and tunes the contact store.
type DatabaseConfig struct {
	Driver          string `yaml:"driver"` // postgres | memory
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_seconds"`
}

// ConnLifetime returns the pooled connection lifetime.
func (c DatabaseConfig) ConnLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetime) * time.Second
}

// RedisConfig holds the Redis connection used for job locks. An empty URL
// disables Redis.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// IngestConfig tunes batch imports.
type IngestConfig struct {
	DefaultPolicy string `yaml:"default_policy"`
	Workers       int    `yaml:"workers"`
	PreviewRows   int    `yaml:"preview_rows"`
}

// SyncConfig holds the Drupal source and sync job settings.
type SyncConfig struct {
	DrupalDSN      string `yaml:"drupal_dsn"`
	SiteURL        string `yaml:"site_url"`
	SiteName       string `yaml:"site_name"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	LockTTLSeconds int    `yaml:"lock_ttl_seconds"`
}

// Timeout returns the sync budget as a duration
func (c SyncConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LockTTL returns how long a sync lock survives a crashed holder.
func (c SyncConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// ReportsConfig selects where import and sync reports are archived.
type ReportsConfig struct {
	Type       string `yaml:"type"` // local | s3 | none
	LocalPath  string `yaml:"local_path"`
	S3Bucket   string `yaml:"s3_bucket"`
	S3Prefix   string `yaml:"s3_prefix"`
	AWSRegion  string `yaml:"aws_region"`
	AWSProfile string `yaml:"aws_profile"` // Empty string uses default credential chain (IAM role on ECS)
}

// GetAWSProfile returns the AWS profile, with environment variable override
func (c ReportsConfig) GetAWSProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return ""
		}
		return envProfile
	}
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.AWSProfile
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Redact reports whether emails are masked in logs. Defaults to true.
func (c LogConfig) Redact() bool {
	return c.RedactPII == nil || *c.RedactPII
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
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 32
	}
	if cfg.Server.ReadTimeoutSeconds == 0 {
		cfg.Server.ReadTimeoutSeconds = 30
	}
	if cfg.Server.WriteTimeoutSeconds == 0 {
		cfg.Server.WriteTimeoutSeconds = 120
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 10
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 300
	}
	if cfg.Ingest.DefaultPolicy == "" {
		cfg.Ingest.DefaultPolicy = "skip"
	}
	if cfg.Ingest.Workers == 0 {
		cfg.Ingest.Workers = 1
	}
	if cfg.Ingest.PreviewRows == 0 {
		cfg.Ingest.PreviewRows = 5
	}
	if cfg.Sync.SiteURL == "" {
		cfg.Sync.SiteURL = "http://localhost:8080"
	}
	if cfg.Sync.SiteName == "" {
		cfg.Sync.SiteName = "Drupal Site"
	}
	if cfg.Sync.TimeoutSeconds == 0 {
		cfg.Sync.TimeoutSeconds = 60
	}
	if cfg.Sync.LockTTLSeconds == 0 {
		cfg.Sync.LockTTLSeconds = 2 * cfg.Sync.TimeoutSeconds
	}
	if cfg.Reports.Type == "" {
		cfg.Reports.Type = "local"
	}
	if cfg.Reports.LocalPath == "" {
		cfg.Reports.LocalPath = "./data/reports"
	}
	if cfg.Reports.S3Prefix == "" {
		cfg.Reports.S3Prefix = "reports/"
	}
	if cfg.Reports.AWSRegion == "" {
		cfg.Reports.AWSRegion = "us-east-1"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// LoadFromEnv loads the config file, then applies .env and environment
// overrides.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("DRUPAL_DSN"); v != "" {
		cfg.Sync.DrupalDSN = v
	}
	if v := os.Getenv("SYNC_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Sync.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("REPORTS_S3_BUCKET"); v != "" {
		cfg.Reports.S3Bucket = v
		cfg.Reports.Type = "s3"
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	return cfg, nil
}

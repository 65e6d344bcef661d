// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Database      DatabaseConfig     `mapstructure:"database"`
	BlobStorage   BlobStorageConfig  `mapstructure:"blob_storage"`
	AWS           AWSConfig          `mapstructure:"aws"`
	Autosave      AutosaveConfig     `mapstructure:"autosave"`
	Documents     DocumentsConfig    `mapstructure:"documents"`
	Submission    SubmissionConfig   `mapstructure:"submission"`
	Identity      IdentityConfig     `mapstructure:"identity"`
	Logging       LoggingConfig      `mapstructure:"logging"`
	Metrics       MetricsConfig      `mapstructure:"metrics"`
	Notifications NotificationConfig `mapstructure:"notifications"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Address     string `mapstructure:"address"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	EventIndex string   `mapstructure:"event_index"`
}

// BlobStorageConfig points at the S3-compatible store holding document files.
type BlobStorageConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	PublicURL string `mapstructure:"public_url"`
}

type AWSConfig struct {
	Region      string `mapstructure:"region"`
	SenderEmail string `mapstructure:"sender_email"`
	SNSTopicARN string `mapstructure:"sns_topic_arn"`
}

// --- Orchestrator Config ---

type AutosaveConfig struct {
	QuietPeriod time.Duration `mapstructure:"quiet_period"`
	FallbackTTL time.Duration `mapstructure:"fallback_ttl"`
}

type DocumentsConfig struct {
	AcademicMaxCount int   `mapstructure:"academic_max_count"`
	MaxFileBytes     int64 `mapstructure:"max_file_bytes"`
}

type SubmissionConfig struct {
	ProgressTick     time.Duration `mapstructure:"progress_tick"`
	FinalizeDelay    time.Duration `mapstructure:"finalize_delay"`
	MinSavingsReport float64       `mapstructure:"min_savings_report"`
}

// IdentityConfig points at the Keycloak realm backing account profiles.
type IdentityConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	URL          string `mapstructure:"url"`
	Realm        string `mapstructure:"realm"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

type NotificationConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Package config defines the configuration structures for the BioDockViz
// service. No I/O or parsing logic lives here, only plain data types and
// validation.
package config

import (
	"fmt"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Environment     string        `mapstructure:"environment"` // "development" | "staging" | "production"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// IsProduction reports whether the server runs in production mode.
func (s ServerConfig) IsProduction() bool { return s.Environment == "production" }

// GRPCConfig holds gRPC server tunables.
type GRPCConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	Port             int    `mapstructure:"port"`
	EnableReflection bool   `mapstructure:"enable_reflection"`
	MaxRecvMsgSize   int    `mapstructure:"max_recv_msg_size"`
	MaxSendMsgSize   int    `mapstructure:"max_send_msg_size"`
	TLSCertFile      string `mapstructure:"tls_cert_file"`
	TLSKeyFile       string `mapstructure:"tls_key_file"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	User             string        `mapstructure:"user"`
	Password         string        `mapstructure:"password"`
	DBName           string        `mapstructure:"db_name"`
	SSLMode          string        `mapstructure:"ssl_mode"`
	MaxOpenConns     int           `mapstructure:"max_open_conns"`
	MaxIdleConns     int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime  time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime  time.Duration `mapstructure:"conn_max_idle_time"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
	LockTimeout      time.Duration `mapstructure:"lock_timeout"`
	MigrationPath    string        `mapstructure:"migration_path"`
	AutoMigrate      bool          `mapstructure:"auto_migrate"`
}

// DSN renders the connection string used by golang-migrate and the CLI.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Mode         string        `mapstructure:"mode"` // "standalone" | "sentinel" | "cluster"
	Addr         string        `mapstructure:"addr"`
	Addrs        []string      `mapstructure:"addrs"`
	MasterName   string        `mapstructure:"master_name"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds kafka-go producer and consumer parameters.
type KafkaConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Brokers          []string      `mapstructure:"brokers"`
	GroupID          string        `mapstructure:"group_id"`
	AutoOffsetReset  string        `mapstructure:"auto_offset_reset"` // "earliest" | "latest"
	BatchSize        int           `mapstructure:"batch_size"`
	BatchTimeout     time.Duration `mapstructure:"batch_timeout"`
	MaxRetries       int           `mapstructure:"max_retries"`
	RetryBackoff     time.Duration `mapstructure:"retry_backoff"`
	EnableDLQ        bool          `mapstructure:"enable_dlq"`
	AutoCreateTopics bool          `mapstructure:"auto_create_topics"`
	SASLMechanism    string        `mapstructure:"sasl_mechanism"` // "" | "PLAIN" | "SCRAM-SHA-256" | "SCRAM-SHA-512"
	SASLUsername     string        `mapstructure:"sasl_username"`
	SASLPassword     string        `mapstructure:"sasl_password"`
	TLSEnabled       bool          `mapstructure:"tls_enabled"`
	TLSCAFile        string        `mapstructure:"tls_ca_file"`
}

// MinIOConfig holds MinIO / S3-compatible object-storage parameters.
type MinIOConfig struct {
	Endpoint      string        `mapstructure:"endpoint"`
	AccessKey     string        `mapstructure:"access_key"`
	SecretKey     string        `mapstructure:"secret_key"`
	Bucket        string        `mapstructure:"bucket"`
	Region        string        `mapstructure:"region"`
	UseSSL        bool          `mapstructure:"use_ssl"`
	PresignExpiry time.Duration `mapstructure:"presign_expiry"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level        string   `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format       string   `mapstructure:"format"` // "json" | "console"
	OutputPaths  []string `mapstructure:"output_paths"`
	EnableCaller bool     `mapstructure:"enable_caller"`
}

// MetricsConfig holds Prometheus exposition parameters.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`
}

// WorkerConfig holds background analysis worker parameters.
type WorkerConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	HealthPort  int           `mapstructure:"health_port"`
	JobTimeout  time.Duration `mapstructure:"job_timeout"`
}

// AuthConfig holds API authentication parameters. When Enabled is false all
// requests are accepted.
type AuthConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	SecretKey string        `mapstructure:"secret_key"`
	Algorithm string        `mapstructure:"algorithm"`
	APIKeys   []string      `mapstructure:"api_keys"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// CORSConfig holds cross-origin parameters.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	MaxAge         int      `mapstructure:"max_age"`
}

// RateLimitConfig holds per-client-IP request limits.
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

// UploadConfig holds structure file upload limits.
type UploadConfig struct {
	MaxFileSize       int64    `mapstructure:"max_file_size"`
	InlineParseLimit  int64    `mapstructure:"inline_parse_limit"`
	AllowedExtensions []string `mapstructure:"allowed_extensions"`
}

// AnalysisConfig carries the tunables of the interaction engine. Zero values
// keep the engine defaults.
type AnalysisConfig struct {
	MaxAtoms         int           `mapstructure:"max_atoms"`
	MinCellSize      float64       `mapstructure:"min_cell_size"`
	BondTolerance    float64       `mapstructure:"bond_tolerance"`
	HBondMinDistance float64       `mapstructure:"hbond_min_distance"`
	HBondMaxDistance float64       `mapstructure:"hbond_max_distance"`
	SaltBridgeMax    float64       `mapstructure:"salt_bridge_max_distance"`
	VdWMinRatio      float64       `mapstructure:"vdw_min_ratio"`
	VdWMaxRatio      float64       `mapstructure:"vdw_max_ratio"`
	CacheTTL         time.Duration `mapstructure:"cache_ttl"`
	CacheEnabled     bool          `mapstructure:"cache_enabled"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure. Every infrastructure component
// and application service reads its settings from the relevant sub-struct.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	GRPC      GRPCConfig      `mapstructure:"grpc"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	MinIO     MinIOConfig     `mapstructure:"minio"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Auth      AuthConfig      `mapstructure:"auth"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of a fully-populated Config and
// returns the first error encountered. Callers treat any error as fatal.
func (c *Config) Validate() error {
	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Environment {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("config: server.environment %q is invalid; expected development|staging|production", c.Server.Environment)
	}

	// gRPC
	if c.GRPC.Enabled && (c.GRPC.Port < 1 || c.GRPC.Port > 65535) {
		return fmt.Errorf("config: grpc.port %d is out of range [1, 65535]", c.GRPC.Port)
	}
	if c.GRPC.Enabled && c.GRPC.Port == c.Server.Port {
		return fmt.Errorf("config: grpc.port %d collides with server.port", c.GRPC.Port)
	}

	// Database
	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
	}
	if c.Database.User == "" {
		return fmt.Errorf("config: database.user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("config: database.db_name is required")
	}
	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("config: database.max_open_conns must be >= 1, got %d", c.Database.MaxOpenConns)
	}

	// Redis
	switch c.Redis.Mode {
	case "standalone":
		if c.Redis.Addr == "" {
			return fmt.Errorf("config: redis.addr is required")
		}
	case "sentinel", "cluster":
		if len(c.Redis.Addrs) == 0 {
			return fmt.Errorf("config: redis.addrs is required in %s mode", c.Redis.Mode)
		}
	default:
		return fmt.Errorf("config: redis.mode %q is invalid; expected standalone|sentinel|cluster", c.Redis.Mode)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be >= 0, got %d", c.Redis.DB)
	}

	// Kafka
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
		}
		if c.Kafka.GroupID == "" {
			return fmt.Errorf("config: kafka.group_id is required")
		}
	}

	// MinIO
	if c.MinIO.Endpoint == "" {
		return fmt.Errorf("config: minio.endpoint is required")
	}
	if c.MinIO.Bucket == "" {
		return fmt.Errorf("config: minio.bucket is required")
	}

	// Worker
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("config: worker.concurrency must be >= 1, got %d", c.Worker.Concurrency)
	}

	// Auth
	if c.Auth.Enabled {
		if c.Auth.SecretKey == "" && len(c.Auth.APIKeys) == 0 {
			return fmt.Errorf("config: auth.secret_key or auth.api_keys is required when auth is enabled")
		}
		if c.Auth.Algorithm != "HS256" {
			return fmt.Errorf("config: auth.algorithm %q is unsupported; expected HS256", c.Auth.Algorithm)
		}
	}
	if c.Server.IsProduction() && !c.Auth.Enabled {
		return fmt.Errorf("config: auth.enabled must be true in production")
	}

	// Rate limit
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute < 1 {
		return fmt.Errorf("config: ratelimit.requests_per_minute must be >= 1, got %d", c.RateLimit.RequestsPerMinute)
	}

	// Upload
	if c.Upload.MaxFileSize < 1 {
		return fmt.Errorf("config: upload.max_file_size must be >= 1, got %d", c.Upload.MaxFileSize)
	}
	if c.Upload.InlineParseLimit > c.Upload.MaxFileSize {
		return fmt.Errorf("config: upload.inline_parse_limit %d exceeds upload.max_file_size %d",
			c.Upload.InlineParseLimit, c.Upload.MaxFileSize)
	}

	// Analysis
	if c.Analysis.MaxAtoms < 1 {
		return fmt.Errorf("config: analysis.max_atoms must be >= 1, got %d", c.Analysis.MaxAtoms)
	}
	if c.Analysis.MinCellSize <= 0 {
		return fmt.Errorf("config: analysis.min_cell_size must be > 0, got %g", c.Analysis.MinCellSize)
	}
	if c.Analysis.HBondMinDistance > c.Analysis.HBondMaxDistance {
		return fmt.Errorf("config: analysis.hbond_min_distance %g exceeds analysis.hbond_max_distance %g",
			c.Analysis.HBondMinDistance, c.Analysis.HBondMaxDistance)
	}
	if c.Analysis.VdWMinRatio > c.Analysis.VdWMaxRatio {
		return fmt.Errorf("config: analysis.vdw_min_ratio %g exceeds analysis.vdw_max_ratio %g",
			c.Analysis.VdWMinRatio, c.Analysis.VdWMaxRatio)
	}

	// Log
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}

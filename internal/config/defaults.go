package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerHost        = "0.0.0.0"
	DefaultServerPort        = 8000
	DefaultEnvironment       = "development"
	DefaultReadTimeout       = 30 * time.Second
	DefaultWriteTimeout      = 60 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
	DefaultShutdownTimeout   = 30 * time.Second
	DefaultGRPCPort          = 9090
	DefaultGRPCMaxMsgSize    = 16 << 20
	DefaultDBHost            = "localhost"
	DefaultDBPort            = 5432
	DefaultDBUser            = "biodockviz"
	DefaultDBName            = "biodockviz"
	DefaultDBMaxOpenConns    = 25
	DefaultDBMaxIdleConns    = 5
	DefaultDBConnMaxLifetime = 30 * time.Minute
	DefaultMigrationPath     = "internal/infrastructure/database/postgres/migrations"

	DefaultRedisMode      = "standalone"
	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisPoolSize  = 20
	DefaultRedisKeyPrefix = "biodockviz:"

	DefaultKafkaBroker     = "localhost:9092"
	DefaultKafkaGroupID    = "biodockviz-worker"
	DefaultKafkaMaxRetries = 3

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIOBucket   = "biodockviz-structures"
	DefaultPresignExpiry = 15 * time.Minute

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultMetricsNamespace = "biodockviz"
	DefaultMetricsPath      = "/metrics"

	DefaultWorkerConcurrency = 4
	DefaultWorkerHealthPort  = 8081
	DefaultWorkerJobTimeout  = 5 * time.Minute

	DefaultAuthAlgorithm = "HS256"
	DefaultTokenTTL      = 30 * time.Minute

	DefaultRateLimitPerMinute = 100

	DefaultMaxFileSize      = 100 * 1024 * 1024
	DefaultInlineParseLimit = 1024 * 1024

	DefaultMaxAtoms         = 100000
	DefaultMinCellSize      = 5.0
	DefaultBondTolerance    = 0.2
	DefaultHBondMinDistance = 1.5
	DefaultHBondMaxDistance = 2.5
	DefaultSaltBridgeMax    = 4.0
	DefaultVdWMinRatio      = 0.7
	DefaultVdWMaxRatio      = 1.1
	DefaultCacheTTL         = time.Hour
)

// DefaultAllowedExtensions lists the structure file extensions accepted on upload.
var DefaultAllowedExtensions = []string{"pdb", "pdbqt", "sdf", "sd", "mol", "mol2"}

// ApplyDefaults fills every zero-value field in cfg with the service default.
// Explicitly configured (non-zero) values are left unchanged. It runs after
// unmarshalling and before Validate.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultServerHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Environment == "" {
		cfg.Server.Environment = DefaultEnvironment
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// ── gRPC ──────────────────────────────────────────────────────────────────
	if cfg.GRPC.Port == 0 {
		cfg.GRPC.Port = DefaultGRPCPort
	}
	if cfg.GRPC.MaxRecvMsgSize == 0 {
		cfg.GRPC.MaxRecvMsgSize = DefaultGRPCMaxMsgSize
	}
	if cfg.GRPC.MaxSendMsgSize == 0 {
		cfg.GRPC.MaxSendMsgSize = DefaultGRPCMaxMsgSize
	}

	// ── Database ──────────────────────────────────────────────────────────────
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.User == "" {
		cfg.Database.User = DefaultDBUser
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = DefaultDBMaxOpenConns
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = DefaultDBMaxIdleConns
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = DefaultDBConnMaxLifetime
	}
	if cfg.Database.MigrationPath == "" {
		cfg.Database.MigrationPath = DefaultMigrationPath
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Mode == "" {
		cfg.Redis.Mode = DefaultRedisMode
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = DefaultRedisPoolSize
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	// DB 0 is both a valid explicit value and the default.

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.AutoOffsetReset == "" {
		cfg.Kafka.AutoOffsetReset = "earliest"
	}
	if cfg.Kafka.MaxRetries == 0 {
		cfg.Kafka.MaxRetries = DefaultKafkaMaxRetries
	}
	if cfg.Kafka.RetryBackoff == 0 {
		cfg.Kafka.RetryBackoff = time.Second
	}

	// ── MinIO ─────────────────────────────────────────────────────────────────
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}
	if cfg.MinIO.PresignExpiry == 0 {
		cfg.MinIO.PresignExpiry = DefaultPresignExpiry
	}

	// ── Log / metrics ─────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}

	// ── Worker ────────────────────────────────────────────────────────────────
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = DefaultWorkerConcurrency
	}
	if cfg.Worker.HealthPort == 0 {
		cfg.Worker.HealthPort = DefaultWorkerHealthPort
	}
	if cfg.Worker.JobTimeout == 0 {
		cfg.Worker.JobTimeout = DefaultWorkerJobTimeout
	}

	// ── Auth / CORS / rate limit ──────────────────────────────────────────────
	if cfg.Auth.Algorithm == "" {
		cfg.Auth.Algorithm = DefaultAuthAlgorithm
	}
	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = DefaultTokenTTL
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		cfg.CORS.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	if cfg.RateLimit.RequestsPerMinute == 0 {
		cfg.RateLimit.RequestsPerMinute = DefaultRateLimitPerMinute
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = cfg.RateLimit.RequestsPerMinute
	}

	// ── Upload ────────────────────────────────────────────────────────────────
	if cfg.Upload.MaxFileSize == 0 {
		cfg.Upload.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.Upload.InlineParseLimit == 0 {
		cfg.Upload.InlineParseLimit = DefaultInlineParseLimit
	}
	if len(cfg.Upload.AllowedExtensions) == 0 {
		cfg.Upload.AllowedExtensions = append([]string(nil), DefaultAllowedExtensions...)
	}

	// ── Analysis ──────────────────────────────────────────────────────────────
	if cfg.Analysis.MaxAtoms == 0 {
		cfg.Analysis.MaxAtoms = DefaultMaxAtoms
	}
	if cfg.Analysis.MinCellSize == 0 {
		cfg.Analysis.MinCellSize = DefaultMinCellSize
	}
	if cfg.Analysis.BondTolerance == 0 {
		cfg.Analysis.BondTolerance = DefaultBondTolerance
	}
	if cfg.Analysis.HBondMinDistance == 0 {
		cfg.Analysis.HBondMinDistance = DefaultHBondMinDistance
	}
	if cfg.Analysis.HBondMaxDistance == 0 {
		cfg.Analysis.HBondMaxDistance = DefaultHBondMaxDistance
	}
	if cfg.Analysis.SaltBridgeMax == 0 {
		cfg.Analysis.SaltBridgeMax = DefaultSaltBridgeMax
	}
	if cfg.Analysis.VdWMinRatio == 0 {
		cfg.Analysis.VdWMinRatio = DefaultVdWMinRatio
	}
	if cfg.Analysis.VdWMaxRatio == 0 {
		cfg.Analysis.VdWMaxRatio = DefaultVdWMaxRatio
	}
	if cfg.Analysis.CacheTTL == 0 {
		cfg.Analysis.CacheTTL = DefaultCacheTTL
	}
}

// NewDefaultConfig returns a Config with every default applied. Used by the
// CLI for offline commands and by tests.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

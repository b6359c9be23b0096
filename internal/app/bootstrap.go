// Package app wires configuration, observability and infrastructure clients
// into the services shared by the API server and the analysis worker.
package app

import (
	"context"
	"time"

	"github.com/turtacn/BioDockViz/internal/application/analysis"
	"github.com/turtacn/BioDockViz/internal/config"
	"github.com/turtacn/BioDockViz/internal/infrastructure/database/postgres"
	"github.com/turtacn/BioDockViz/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/BioDockViz/internal/infrastructure/database/redis"
	"github.com/turtacn/BioDockViz/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/BioDockViz/internal/infrastructure/monitoring/health"
	"github.com/turtacn/BioDockViz/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/BioDockViz/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/BioDockViz/internal/infrastructure/storage/minio"
	"github.com/turtacn/BioDockViz/pkg/errors"
)

const (
	cacheKeyPrefix = "biodockviz:"
	healthTimeout  = 5 * time.Second
	poolStatsEvery = 15 * time.Second
)

// Observability bundles the process logger and metrics.
type Observability struct {
	Logger    logging.Logger
	Collector prometheus.MetricsCollector
	Metrics   *prometheus.AppMetrics
}

// NewObservability builds the logger from cfg.Log and, when metrics are
// enabled, a dedicated Prometheus registry. Disabled metrics use no-op
// recorders and a nil Collector.
func NewObservability(cfg *config.Config) (*Observability, error) {
	logger, err := logging.NewLogger(logging.LogConfig{
		Level:        cfg.Log.Level,
		Format:       cfg.Log.Format,
		OutputPaths:  cfg.Log.OutputPaths,
		EnableCaller: cfg.Log.EnableCaller,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to build logger")
	}
	obs := &Observability{Logger: logger, Metrics: prometheus.NewNoopAppMetrics()}
	if !cfg.Metrics.Enabled {
		return obs, nil
	}
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            cfg.Metrics.Namespace,
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		return nil, err
	}
	obs.Collector = collector
	obs.Metrics = prometheus.NewAppMetrics(collector)
	return obs, nil
}

// Infrastructure holds the open clients. Producer is nil when Kafka is
// disabled.
type Infrastructure struct {
	Postgres *postgres.Connection
	Redis    *redis.Client
	MinIO    *minio.Client
	Producer *kafka.Producer

	cfg     *config.Config
	logger  logging.Logger
	metrics *prometheus.AppMetrics
}

// OpenInfrastructure connects to every backing service. Whatever was opened
// before a failure is closed again.
func OpenInfrastructure(ctx context.Context, cfg *config.Config, obs *Observability) (*Infrastructure, error) {
	infra := &Infrastructure{cfg: cfg, logger: obs.Logger, metrics: obs.Metrics}
	fail := func(err error) (*Infrastructure, error) {
		infra.Close()
		return nil, err
	}

	var err error
	if infra.Postgres, err = postgres.NewConnection(postgres.ConfigFromDatabase(cfg.Database), obs.Logger.Named("postgres")); err != nil {
		return fail(err)
	}
	if cfg.Database.AutoMigrate {
		if err := RunMigrations(cfg.Database, obs.Logger); err != nil {
			return fail(err)
		}
	}
	if infra.Redis, err = redis.NewClient(cfg.Redis, obs.Logger.Named("redis")); err != nil {
		return fail(err)
	}
	if infra.MinIO, err = minio.NewClient(cfg.MinIO, obs.Logger.Named("minio")); err != nil {
		return fail(err)
	}
	if cfg.Kafka.Enabled {
		if infra.Producer, err = kafka.NewProducer(kafka.ProducerConfigFrom(cfg.Kafka), obs.Logger.Named("kafka")); err != nil {
			return fail(err)
		}
		if cfg.Kafka.AutoCreateTopics {
			if err := EnsureTopics(ctx, cfg.Kafka, obs.Logger); err != nil {
				return fail(err)
			}
		}
	}
	obs.Logger.Info("Infrastructure initialized", logging.Bool("kafka", infra.Producer != nil))
	return infra, nil
}

// RunMigrations applies every pending schema migration.
func RunMigrations(db config.DatabaseConfig, logger logging.Logger) error {
	mg, err := postgres.NewMigrator(db.DSN(), db.MigrationPath, logger.Named("migrate"))
	if err != nil {
		return err
	}
	defer mg.Close()
	return mg.Up()
}

// EnsureTopics creates the event and job topics, with dead-letter twins
// when the DLQ is enabled.
func EnsureTopics(ctx context.Context, cfg config.KafkaConfig, logger logging.Logger) error {
	if len(cfg.Brokers) == 0 {
		return errors.New(errors.ErrCodeValidation, "kafka brokers required")
	}
	tm, err := kafka.NewTopicManager(cfg.Brokers, logger.Named("kafka"))
	if err != nil {
		return err
	}
	defer tm.Close()
	return tm.EnsureDefaultTopics(ctx, cfg.EnableDLQ)
}

// AnalysisService builds the structure service over the open clients.
func (i *Infrastructure) AnalysisService(source string) (analysis.Service, error) {
	deps := analysis.ServiceDeps{
		Repo:     repositories.NewPostgresStructureRepo(i.Postgres, i.logger.Named("repository")),
		Objects:  minio.NewRepository(i.MinIO, i.logger.Named("objects")),
		Metrics:  i.metrics,
		Logger:   i.logger,
		Upload:   i.cfg.Upload,
		Analysis: i.cfg.Analysis,
		Source:   source,
	}
	if i.Redis != nil {
		deps.Cache = redis.NewRedisCache(i.Redis, i.logger.Named("cache"),
			redis.WithPrefix(cacheKeyPrefix), redis.WithDefaultTTL(i.cfg.Analysis.CacheTTL))
		deps.Locks = redis.NewLockFactory(i.Redis, cacheKeyPrefix, i.logger.Named("lock"))
	}
	if i.Producer != nil {
		deps.Publisher = i.Producer
	}
	return analysis.NewService(deps)
}

// Prober checks every open client.
func (i *Infrastructure) Prober() *health.Prober {
	var checkers []health.Checker
	if i.Postgres != nil {
		checkers = append(checkers, health.NewChecker(i.Postgres.Name(), i.Postgres.HealthCheck))
	}
	if i.Redis != nil {
		checkers = append(checkers, health.NewChecker(i.Redis.Name(), i.Redis.HealthCheck))
	}
	if i.MinIO != nil {
		checkers = append(checkers, health.NewChecker(i.MinIO.Name(), i.MinIO.HealthCheck))
	}
	return health.NewProber(healthTimeout, i.metrics, i.logger, checkers...)
}

// ReportPoolStats publishes database pool gauges until ctx is done.
func (i *Infrastructure) ReportPoolStats(ctx context.Context) {
	if i.Postgres == nil {
		return
	}
	ticker := time.NewTicker(poolStatsEvery)
	defer ticker.Stop()
	for {
		st := i.Postgres.Stats()
		i.metrics.SetDBPool(i.Postgres.Name(), st.OpenConnections, st.InUse)
		if i.Redis != nil {
			if ps := i.Redis.PoolStats(); ps != nil {
				i.metrics.SetDBPool(i.Redis.Name(), int(ps.TotalConns), int(ps.TotalConns-ps.IdleConns))
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Close releases the clients in reverse order of opening.
func (i *Infrastructure) Close() {
	if i == nil {
		return
	}
	closeQuietly := func(name string, fn func() error) {
		if err := fn(); err != nil {
			i.logger.Warn("Failed to close client", logging.String("client", name), logging.Err(err))
		}
	}
	if i.Producer != nil {
		closeQuietly("kafka", i.Producer.Close)
	}
	if i.MinIO != nil {
		closeQuietly("minio", i.MinIO.Close)
	}
	if i.Redis != nil {
		closeQuietly("redis", i.Redis.Close)
	}
	if i.Postgres != nil {
		closeQuietly("postgres", i.Postgres.Close)
	}
}

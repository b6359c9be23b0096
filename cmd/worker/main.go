// Command worker consumes analysis jobs from Kafka and runs the parse and
// analysis pipeline for queued structures.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/BioDockViz/internal/app"
	"github.com/turtacn/BioDockViz/internal/application/analysis"
	"github.com/turtacn/BioDockViz/internal/config"
	"github.com/turtacn/BioDockViz/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/BioDockViz/internal/infrastructure/monitoring/health"
	"github.com/turtacn/BioDockViz/internal/infrastructure/monitoring/logging"
	httpserver "github.com/turtacn/BioDockViz/internal/interfaces/http"
	"github.com/turtacn/BioDockViz/internal/interfaces/http/handlers"
	"github.com/turtacn/BioDockViz/pkg/errors"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

const (
	serviceName        = "biodockviz-worker"
	defaultHealthPort  = 8081
	defaultJobTimeout  = 5 * time.Minute
	defaultStopTimeout = 30 * time.Second
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	concurrency := flag.Int("concurrency", 0, "number of concurrent jobs (overrides config)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s (commit %s, built %s)\n", serviceName, Version, GitCommit, BuildDate)
		return
	}

	if err := run(*configPath, *concurrency); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run(configPath string, concurrency int) error {
	var opts []config.Option
	if configPath != "" {
		opts = append(opts, config.WithConfigPath(configPath))
	}
	cfg, err := config.Load(append(opts, config.WithDotEnv(".env"))...)
	if err != nil {
		return err
	}
	if concurrency > 0 {
		cfg.Worker.Concurrency = concurrency
	}
	if !cfg.Kafka.Enabled {
		return errors.New(errors.ErrCodeValidation, "worker requires kafka.enabled")
	}

	obs, err := app.NewObservability(cfg)
	if err != nil {
		return err
	}
	logger := obs.Logger
	defer logger.Sync()

	logger.Info("Starting analysis worker",
		logging.String("version", Version),
		logging.Int("concurrency", cfg.Worker.Concurrency),
		logging.Strings("brokers", cfg.Kafka.Brokers),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	infra, err := app.OpenInfrastructure(ctx, cfg, obs)
	if err != nil {
		logger.Error("Failed to initialize infrastructure", logging.Err(err))
		return err
	}
	defer infra.Close()

	svc, err := infra.AnalysisService(serviceName)
	if err != nil {
		return err
	}

	consumer, err := kafka.NewConsumer(
		kafka.ConsumerConfigFrom(cfg.Kafka, []string{kafka.TopicAnalysisJobs}, cfg.Worker.Concurrency),
		infra.Producer,
		logger.Named("consumer"),
	)
	if err != nil {
		return err
	}
	consumer.Subscribe(kafka.TopicAnalysisJobs, jobHandler(svc, cfg.Worker.JobTimeout, logger))

	healthSrv := newHealthServer(cfg, obs, infra.Prober())

	g, gctx := errgroup.WithContext(ctx)
	if err := consumer.Start(gctx); err != nil {
		return err
	}
	g.Go(healthSrv.Start)
	g.Go(func() error {
		infra.ReportPoolStats(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down worker, draining in-flight jobs")
		if err := consumer.Close(); err != nil {
			logger.Error("Consumer close failed", logging.Err(err))
		}
		st := consumer.Stats()
		logger.Info("Consumer drained",
			logging.Int64("consumed", st.Consumed),
			logging.Int64("processed", st.Processed),
			logging.Int64("failed", st.Failed),
			logging.Int64("dead_lettered", st.DeadLettered),
		)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultStopTimeout)
		defer cancel()
		return healthSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", logging.Err(err))
		return err
	}
	logger.Info("Worker stopped")
	return nil
}

// jobHandler decodes analysis.requested events and runs them with a
// per-job deadline. A started job is bounded only by that deadline, not by
// shutdown. Undecodable messages are dropped rather than retried.
func jobHandler(svc analysis.Service, timeout time.Duration, logger logging.Logger) kafka.MessageHandler {
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	return func(ctx context.Context, msg *kafka.Message) error {
		job, err := analysis.JobFromMessage(msg)
		if err != nil {
			logger.Error("Dropping malformed job message",
				logging.String("topic", msg.Topic),
				logging.Int64("offset", msg.Offset),
				logging.Err(err),
			)
			return nil
		}
		jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		return svc.HandleJob(jobCtx, job)
	}
}

// newHealthServer exposes liveness, readiness and metrics on the worker
// health port.
func newHealthServer(cfg *config.Config, obs *app.Observability, prober *health.Prober) *httpserver.Server {
	hh := handlers.NewHealthHandler(Version, prober)
	r := chi.NewRouter()
	r.Get("/healthz", hh.Liveness)
	r.Get("/readyz", hh.Readiness)
	r.Get("/healthz/detail", hh.Detailed)
	if obs.Collector != nil {
		r.Handle(metricsPath(cfg.Metrics), obs.Collector.Handler())
	}

	port := cfg.Worker.HealthPort
	if port <= 0 {
		port = defaultHealthPort
	}
	srvCfg := cfg.Server
	srvCfg.Port = port
	srvCfg.ShutdownTimeout = defaultStopTimeout
	return httpserver.NewServer(srvCfg, r, obs.Logger.Named("health"))
}

func metricsPath(m config.MetricsConfig) string {
	if m.Path == "" {
		return "/metrics"
	}
	return m.Path
}

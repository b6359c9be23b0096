// Command apiserver serves the BioDockViz structure API over HTTP and the
// gRPC health service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/BioDockViz/internal/app"
	"github.com/turtacn/BioDockViz/internal/config"
	"github.com/turtacn/BioDockViz/internal/infrastructure/auth/token"
	"github.com/turtacn/BioDockViz/internal/infrastructure/monitoring/health"
	"github.com/turtacn/BioDockViz/internal/infrastructure/monitoring/logging"
	grpcserver "github.com/turtacn/BioDockViz/internal/interfaces/grpc"
	httpserver "github.com/turtacn/BioDockViz/internal/interfaces/http"
	"github.com/turtacn/BioDockViz/internal/interfaces/http/handlers"
	"github.com/turtacn/BioDockViz/internal/interfaces/http/middleware"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

const (
	serviceName           = "biodockviz-apiserver"
	rateLimitCleanup      = 5 * time.Minute
	defaultStopTimeout    = 30 * time.Second
	healthRefreshInterval = 15 * time.Second
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s (commit %s, built %s)\n", serviceName, Version, GitCommit, BuildDate)
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	var opts []config.Option
	if configPath != "" {
		opts = append(opts, config.WithConfigPath(configPath))
	}
	cfg, err := config.Load(append(opts, config.WithDotEnv(".env"))...)
	if err != nil {
		return err
	}

	obs, err := app.NewObservability(cfg)
	if err != nil {
		return err
	}
	logger := obs.Logger
	defer logger.Sync()

	logger.Info("Starting API server",
		logging.String("version", Version),
		logging.String("commit", GitCommit),
		logging.String("environment", cfg.Server.Environment),
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
	prober := infra.Prober()

	routerCfg, closeRouter, err := buildRouterConfig(cfg, obs, prober)
	if err != nil {
		return err
	}
	defer closeRouter()
	routerCfg.StructureHandler = handlers.NewStructureHandler(svc, logger, cfg.Upload.MaxFileSize)

	httpSrv := httpserver.NewServer(cfg.Server, httpserver.NewRouter(routerCfg), logger)

	var grpcSrv *grpcserver.Server
	if cfg.GRPC.Enabled {
		grpcSrv, err = grpcserver.NewServer(cfg.GRPC,
			grpcserver.WithHost(cfg.Server.Host),
			grpcserver.WithLogger(logger),
			grpcserver.WithMetrics(obs.Metrics),
			grpcserver.WithProber(prober),
		)
		if err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(httpSrv.Start)
	if grpcSrv != nil {
		g.Go(grpcSrv.Start)
		g.Go(func() error {
			grpcSrv.WatchHealth(gctx, healthRefreshInterval)
			return nil
		})
	}
	g.Go(func() error {
		infra.ReportPoolStats(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down API server")
		return shutdown(cfg, httpSrv, grpcSrv, logger)
	})

	if err := g.Wait(); err != nil {
		logger.Error("API server stopped with error", logging.Err(err))
		return err
	}
	logger.Info("API server stopped")
	return nil
}

// buildRouterConfig assembles the middleware stack from configuration. The
// returned func stops background limiter cleanup.
func buildRouterConfig(cfg *config.Config, obs *app.Observability, prober *health.Prober) (httpserver.RouterConfig, func(), error) {
	logger := obs.Logger
	rc := httpserver.RouterConfig{
		HealthHandler: handlers.NewHealthHandler(Version, prober),
		Logger:        logger,
		Metrics:       obs.Metrics,
	}
	closeFn := func() {}

	if obs.Collector != nil {
		rc.MetricsHandler = obs.Collector.Handler()
		rc.MetricsPath = cfg.Metrics.Path
	}

	if cfg.Auth.Enabled {
		var tokens middleware.TokenValidator
		if cfg.Auth.SecretKey != "" {
			v, err := token.NewHMACVerifier(cfg.Auth)
			if err != nil {
				return rc, closeFn, err
			}
			tokens = v
		}
		var keys middleware.APIKeyValidator
		if len(cfg.Auth.APIKeys) > 0 {
			keys = token.NewStaticAPIKeys(cfg.Auth.APIKeys)
		}
		rc.AuthMiddleware = middleware.NewAuthMiddleware(tokens, keys, middleware.AuthConfig{}, logger)
	}

	if len(cfg.CORS.AllowedOrigins) > 0 {
		cors := middleware.DefaultCORSConfig()
		cors.AllowedOrigins = cfg.CORS.AllowedOrigins
		cors.AllowWildcard = true
		if cfg.CORS.MaxAge > 0 {
			cors.MaxAge = cfg.CORS.MaxAge
		}
		rc.CORS = &cors
	}

	if cfg.RateLimit.Enabled {
		limiter := middleware.NewIPRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst, rateLimitCleanup)
		rc.RateLimiter = limiter
		closeFn = limiter.Stop
	}
	return rc, closeFn, nil
}

func shutdown(cfg *config.Config, httpSrv *httpserver.Server, grpcSrv *grpcserver.Server, logger logging.Logger) error {
	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultStopTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var firstErr error
	if grpcSrv != nil {
		if err := grpcSrv.Stop(ctx); err != nil {
			logger.Error("gRPC server shutdown failed", logging.Err(err))
			firstErr = err
		}
	}
	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown failed", logging.Err(err))
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

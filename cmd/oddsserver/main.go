// Package main provides the odds server binary, which serves the
// odds.v1.OddsService gRPC API and a Prometheus metrics endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/cory-johannsen/odds/internal/catalog"
	"github.com/cory-johannsen/odds/internal/config"
	"github.com/cory-johannsen/odds/internal/dice"
	"github.com/cory-johannsen/odds/internal/observability"
	"github.com/cory-johannsen/odds/internal/oddsserver"
	"github.com/cory-johannsen/odds/internal/server"
	"github.com/cory-johannsen/odds/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	healthInterval := flag.Duration("db-health", 30*time.Second, "database health check interval")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging, observability.WithFields(zap.String("component", "oddsserver")))
	if err != nil {
		log.Fatalf("creating logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting odds server",
		zap.String("grpc_addr", cfg.Server.Addr()),
		zap.Int("max_combinations", cfg.Engine.MaxCombinations),
	)

	metrics := observability.NewMetrics()
	eval := dice.NewLoggedEvaluator(dice.NewEvaluator(cfg.Engine.MaxCombinations), logger, metrics)
	svc := oddsserver.NewService(eval, dice.NewCryptoSource(), logger)

	if cfg.Catalog.Dir != "" {
		cat, err := catalog.LoadDirectory(cfg.Catalog.Dir)
		if err != nil {
			logger.Fatal("loading catalog", zap.String("dir", cfg.Catalog.Dir), zap.Error(err))
		}
		logger.Info("loaded catalog", zap.String("dir", cfg.Catalog.Dir), zap.Int("rolls", cat.Len()))
		svc.Catalog = cat
	}

	lifecycle := server.NewLifecycle(logger)

	if cfg.Database.Enabled {
		pool, err := postgres.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		svc.Store = pool.Distributions()
		svc.Rolls = pool.Rolls()

		stop := make(chan struct{})
		lifecycle.Add("postgres", &server.FuncService{
			StartFn: func() error {
				ticker := time.NewTicker(*healthInterval)
				defer ticker.Stop()
				for {
					select {
					case <-stop:
						return nil
					case <-ticker.C:
						if err := pool.Health(ctx, 5*time.Second); err != nil {
							logger.Warn("database health check failed", zap.Error(err))
						}
					}
				}
			},
			StopFn: func() {
				close(stop)
				pool.Close()
			},
		})
	}

	interceptors := oddsserver.NewInterceptors(logger, metrics)
	grpcServer := grpc.NewServer(interceptors.ServerOptions()...)
	oddsserver.RegisterOddsServiceServer(grpcServer, svc)

	lis, err := net.Listen("tcp", cfg.Server.Addr())
	if err != nil {
		logger.Fatal("listening", zap.Error(fmt.Errorf("listening on %s: %w", cfg.Server.Addr(), err)))
	}
	logger.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
	lifecycle.Add("grpc", &server.GRPCService{Server: grpcServer, Listener: lis})

	if cfg.Server.MetricsPort > 0 {
		lifecycle.Add("metrics", server.NewHTTPService(cfg.Server.MetricsAddr(), metrics.Handler()))
		logger.Info("metrics endpoint", zap.String("addr", cfg.Server.MetricsAddr()))
	}

	logger.Info("odds server initialized", zap.Duration("startup", time.Since(start)))

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

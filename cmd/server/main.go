package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	grpcadapter "github.com/simaogato/capitalflow-backend/internal/adapter/grpc"
	"github.com/simaogato/capitalflow-backend/internal/adapter/metrics"
	"github.com/simaogato/capitalflow-backend/internal/adapter/repository/memory"
	"github.com/simaogato/capitalflow-backend/internal/adapter/repository/postgres"
	"github.com/simaogato/capitalflow-backend/internal/adapter/repository/sqlite"
	"github.com/simaogato/capitalflow-backend/internal/config"
	"github.com/simaogato/capitalflow-backend/internal/domain"
	"github.com/simaogato/capitalflow-backend/internal/usecase/capital"
	"github.com/simaogato/capitalflow-backend/internal/usecase/seeder"
	"github.com/simaogato/capitalflow-backend/internal/usecase/wacc"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx := context.Background()

	// 2. Open the ledger store
	repo, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StorageDriver, err)
	}
	defer closeStore()

	// 3. Initialize Services (Use Cases)
	recorder := metrics.NewRecorder()
	historyService := capital.NewHistoryService(repo,
		capital.WithLogger(logger),
		capital.WithMetrics(recorder),
	)
	if err := historyService.Hydrate(ctx); err != nil {
		log.Fatalf("Failed to load capital history: %v", err)
	}
	waccService := wacc.NewWACCService(historyService)

	// Seed an empty ledger when a seed file is configured
	if cfg.SeedFile != "" {
		file, err := seeder.LoadSeedFile(cfg.SeedFile)
		if err != nil {
			log.Fatalf("Failed to load seed file: %v", err)
		}
		if _, err := seeder.NewCapitalSeeder(historyService, logger).Seed(ctx, file.Sources); err != nil {
			log.Fatalf("Failed to seed capital sources: %v", err)
		}
	}

	// 4. Start gRPC Server
	grpcServer := grpclib.NewServer(
		grpclib.ChainUnaryInterceptor(
			grpcadapter.LoggingInterceptor(logger),
			grpcadapter.AuthInterceptor(cfg.APIToken),
		),
	)
	grpcadapter.RegisterCapitalServiceServer(grpcServer, grpcadapter.NewServer(historyService, waccService))
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("Failed to listen on %s: %v", cfg.GRPCAddr, err)
	}

	go func() {
		logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatalf("Failed to serve gRPC server: %v", err)
		}
	}()

	// 5. Start metrics endpoint
	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", recorder.Handler())
		metricsServer = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", "addr", cfg.MetricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	// Graceful shutdown
	waitForShutdown(logger, grpcServer, metricsServer)
}

// openStore connects the configured ledger repository and returns a function that releases it
func openStore(ctx context.Context, cfg *config.Config) (domain.CapitalHistoryRepository, func(), error) {
	switch cfg.StorageDriver {
	case config.DriverSQLite:
		repo, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { _ = repo.Close() }, nil

	case config.DriverMemory:
		return memory.NewRepository(), func() {}, nil

	default:
		// Wait for Postgres to come up (simple retry)
		var (
			db  *postgres.DB
			err error
		)
		for attempt := 1; attempt <= 5; attempt++ {
			db, err = postgres.NewDB(ctx, cfg.DBConnStr)
			if err == nil {
				break
			}
			slog.Warn("database not ready", "attempt", attempt, "error", err)
			time.Sleep(2 * time.Second)
		}
		if err != nil {
			return nil, nil, err
		}
		repo, err := postgres.NewCapitalHistoryRepository(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return repo, func() { _ = db.Close() }, nil
	}
}

// waitForShutdown waits for SIGTERM or SIGINT and gracefully shuts down the servers
func waitForShutdown(logger *slog.Logger, grpcServer *grpclib.Server, metricsServer *http.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	logger.Info("shutting down gracefully", "signal", sig.String())

	if metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(ctx); err != nil {
			logger.Error("metrics server shutdown failed", "error", err)
		}
	}

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")
}

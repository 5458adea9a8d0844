package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/medorders/internal/app"
	"github.com/joseph-ayodele/medorders/internal/async"
	"github.com/joseph-ayodele/medorders/internal/common"
	"github.com/joseph-ayodele/medorders/internal/ingest"
	"github.com/joseph-ayodele/medorders/internal/server"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to load .env", "error", err)
	}
	cfg, err := common.LoadConfig()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(2)
	}
	inMemory := os.Getenv("MEDORDERS_INMEM") == "1"

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, app.Options{InMemory: inMemory}, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	queue := async.NewProcessorQueue(a.Pipeline, logger,
		async.WithWorkers(cfg.Ingest.Workers),
		async.WithQueueSize(512),
		async.WithProcessTimeout(3*time.Minute),
		async.WithMaxDocumentBytes(a.Pipeline.Config().MaxDocumentBytes),
	)

	if cfg.Ingest.InboxDir != "" {
		events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:       []string{cfg.Ingest.InboxDir},
			InitialScan: true,
			Debounce:    500 * time.Millisecond,
			SkipHidden:  true,
		}, logger)
		if err != nil {
			logger.Error("failed to watch inbox", "dir", cfg.Ingest.InboxDir, "error", err)
			os.Exit(1)
		}
		go feed(ctx, queue, events, errs, logger)
	}

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	svc := server.NewOrdersService(a.Pipeline, a.Orders, a.Export, queue, logger)
	grpcServer, hs := server.NewGRPCServer(svc, logger)

	logger.Info("medorders listening", "addr", cfg.Server.GRPCAddr, "inbox", cfg.Ingest.InboxDir)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	grpcServer.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	queue.Shutdown(shutdownCtx)
}

func feed(ctx context.Context, q async.Queue, events <-chan string, errs <-chan error, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case path, ok := <-events:
			if !ok {
				return
			}
			if err := q.Enqueue(ctx, async.Job{Path: path}); err != nil {
				logger.Warn("failed to queue inbox document", "path", path, "error", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("inbox watcher error", "error", err)
		}
	}
}

package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/iconverter/internal/api/handlers/item"
	"github.com/aliskhannn/iconverter/internal/api/router"
	"github.com/aliskhannn/iconverter/internal/api/server"
	"github.com/aliskhannn/iconverter/internal/config"
	"github.com/aliskhannn/iconverter/internal/infra/kafka/consumer"
	"github.com/aliskhannn/iconverter/internal/infra/kafka/producer"
	batchmsg "github.com/aliskhannn/iconverter/internal/kafka/handlers/batch"
	"github.com/aliskhannn/iconverter/internal/processor"
	"github.com/aliskhannn/iconverter/internal/queue/local"
	batchrepo "github.com/aliskhannn/iconverter/internal/repository/batch"
	itemrepo "github.com/aliskhannn/iconverter/internal/repository/item"
	itemsvc "github.com/aliskhannn/iconverter/internal/service/item"
	"github.com/aliskhannn/iconverter/internal/storage/file"
	"github.com/aliskhannn/iconverter/internal/storage/s3"
)

// blobStorage is satisfied by both preview storage drivers.
type blobStorage interface {
	Save(ctx context.Context, subdir, filename string, src io.Reader) (string, error)
	Load(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

func main() {
	defaultPath := os.Getenv("CONFIG_PATH")
	if defaultPath == "" {
		defaultPath = "./config/config.yml"
	}
	configPath := pflag.String("config", defaultPath, "path to the YAML configuration file")
	pflag.Parse()

	// Context & signals: used for graceful shutdown on system interrupts.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize logger and load application configuration.
	zlog.Init()
	cfg := config.MustLoad(*configPath)

	// Retry strategy for Kafka and MinIO calls.
	strategy := retry.Strategy{
		Attempts: cfg.Retry.Attempts,
		Delay:    cfg.Retry.Delay,
		Backoff:  cfg.Retry.Backoff,
	}

	// Initialize preview storage (local directory or MinIO).
	var storage blobStorage
	switch cfg.Storage.Driver {
	case "minio":
		s, err := s3.NewStorage(ctx, cfg.Storage.Endpoint, cfg.Storage.AccessKey, cfg.Storage.SecretKey, cfg.Storage.BucketName, cfg.Storage.UseSSL, strategy)
		if err != nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to connect to storage")
		}
		storage = s
	default:
		storage = file.NewStorage(cfg.Storage.BaseDir)
	}

	items := itemrepo.NewRepository()
	batches := batchrepo.NewRepository()
	proc := processor.New()
	limits := itemsvc.Limits{
		MaxFileSize: cfg.Limits.MaxFileSize,
		MaxPDFPages: cfg.Limits.MaxPDFPages,
	}

	// Wire the batch queue: the service produces, a single consumer runs.
	var (
		wg       sync.WaitGroup
		service  *itemsvc.Service
		shutdown func()
	)

	switch cfg.Queue.Driver {
	case "kafka":
		// Batches name in-memory items, so only this instance can run them.
		p := producer.New(&cfg.Kafka, strategy)
		service = itemsvc.NewService(items, batches, storage, proc, p, limits)

		c := consumer.New(&cfg.Kafka, strategy, batchmsg.NewHandler(service))
		wg.Add(1)
		go c.Consume(ctx, &wg)

		shutdown = func() {
			if err := p.Client.Close(); err != nil {
				zlog.Logger.Error().Err(err).Msg("failed to close kafka producer client")
			}
			if err := c.Client.Close(); err != nil {
				zlog.Logger.Error().Err(err).Msg("failed to close kafka consumer client")
			}
		}
	default:
		q := local.New(cfg.Queue.Buffer)
		service = itemsvc.NewService(items, batches, storage, proc, q, limits)

		wg.Add(1)
		go q.Consume(ctx, &wg, service)

		shutdown = q.Close
	}

	// Start HTTP server in a separate goroutine.
	h := item.NewHandler(service, cfg.Processing, cfg.Server.MaxUploadMemory)
	s := server.New(cfg.Server.HTTPPort, router.Setup(h))
	go func() {
		zlog.Logger.Info().Str("addr", cfg.Server.HTTPPort).Msg("starting server")
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Block until context is canceled (SIGINT/SIGTERM).
	<-ctx.Done()
	zlog.Logger.Info().Msg("context done")

	// Graceful shutdown with timeout for HTTP server.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	zlog.Logger.Info().Msg("shutting down server")
	if err := s.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
		zlog.Logger.Info().Msg("timeout exceeded, forcing shutdown")
	}

	// Wait for the consumer to finish the page it is on.
	wg.Wait()
	shutdown()
}

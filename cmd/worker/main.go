package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Milan232323/watermarking1/internal/api"
	"github.com/Milan232323/watermarking1/internal/domain/entity"
	"github.com/Milan232323/watermarking1/internal/infra/config"
	"github.com/Milan232323/watermarking1/internal/infra/email"
	"github.com/Milan232323/watermarking1/internal/infra/ffmpeg"
	"github.com/Milan232323/watermarking1/internal/infra/metrics"
	miniostorage "github.com/Milan232323/watermarking1/internal/infra/minio"
	"github.com/Milan232323/watermarking1/internal/infra/postgres"
	"github.com/Milan232323/watermarking1/internal/infra/rabbitmq"
	"github.com/Milan232323/watermarking1/internal/infra/tracing"
	"github.com/Milan232323/watermarking1/internal/usecase"
	"github.com/Milan232323/watermarking1/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting watermark-pipeline worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if the collector is unavailable)
	tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint)
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(ctx)
	}

	// Database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()

	err = postgres.RunMigrations(cfg.DatabaseURL, "migrations")
	if err != nil {
		log.Warn("migration warning", zap.Error(err))
	}

	// MinIO
	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:        cfg.MinIOEndpoint,
		AccessKey:       cfg.MinIOAccessKey,
		SecretKey:       cfg.MinIOSecretKey,
		UseSSL:          cfg.MinIOUseSSL,
		InternalBucket:  cfg.MinIOInternalBucket,
		DownloadsBucket: cfg.MinIODownloadsBucket,
		UploadsBucket:   cfg.MinIOUploadsBucket,
	})
	fatalOnErr(err, "create minio storage")
	fatalOnErr(storage.EnsureBuckets(ctx), "ensure minio buckets")

	// RabbitMQ publisher connection
	rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
	fatalOnErr(err, "connect to rabbitmq for publisher")
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, cfg.RabbitMQExchange)
	fatalOnErr(err, "create rabbitmq publisher")
	dlqPub := rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ)

	// Infra adapters
	store := postgres.NewJobStore(pool)
	transform := ffmpeg.NewTransform(log)
	notifier := email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log)

	// Use cases
	failures := usecase.NewFailureReporter(store, dlqPub, notifier, cfg.NotificationTo, log)
	relocate := usecase.NewRelocateWatermark(storage, log, cfg.TempDir)
	split := usecase.NewSplitVideo(store, storage, transform, pub, log, cfg.TempDir)
	runPipeline := usecase.NewRunPipeline(store, relocate, split, failures, log, cfg.ChunkSize)
	watermark := usecase.NewWatermarkChunk(store, storage, transform, pub, failures, log, cfg.TempDir, cfg.WatermarkAlpha)
	thumbnail := usecase.NewThumbnailChunk(store, storage, transform, pub, failures, log, cfg.TempDir, cfg.ThumbnailHeight)
	concatVideo := usecase.NewConcatVideo(store, storage, transform, failures, log, cfg.TempDir)
	concatThumbs := usecase.NewConcatThumbnails(store, storage, transform, failures, log, cfg.TempDir)
	progress := usecase.NewGetProgress(store)
	cleanup := usecase.NewCleanup(storage, log)

	// Metrics server
	metricsSrv := metrics.StartMetricsServer(ctx, cfg.MetricsPort, log)

	// One consumer per queue, each with its own worker pool
	consumers := startConsumers(ctx, cfg, log, failures, map[string]rabbitmq.MessageHandler{
		entity.QueueWatermarkChunk: watermark.Execute,
		entity.QueueThumbnailChunk: thumbnail.Execute,
		entity.QueueWatermarkDone:  concatVideo.Execute,
		entity.QueueThumbnailDone:  concatThumbs.Execute,
	})

	// HTTP API
	apiSrv := api.NewServer(
		runPipeline, split, relocate, progress, cleanup,
		storage, log,
		fmt.Sprintf("%d", cfg.APIPort),
		time.Duration(cfg.PresignExpiryMin)*time.Minute,
	)
	go func() {
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("api server error", zap.Error(err))
			cancel()
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info("watermark-pipeline started, consuming messages")
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	apiSrv.Shutdown(shutdownCtx)
	metricsSrv.Shutdown(shutdownCtx)

	for _, c := range consumers {
		c.Close()
	}
	log.Info("watermark-pipeline stopped")
}

func startConsumers(ctx context.Context, cfg *config.Config, log *zap.Logger, failures *usecase.FailureReporter, handlers map[string]rabbitmq.MessageHandler) []*rabbitmq.Consumer {
	consumers := make([]*rabbitmq.Consumer, 0, len(handlers))
	for queue, handler := range handlers {
		stage, _ := entity.StageForQueue(queue)
		consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
			URL:         cfg.RabbitMQURL,
			Queue:       queue,
			Exchange:    cfg.RabbitMQExchange,
			DLQ:         cfg.RabbitMQDLQ,
			Prefetch:    cfg.RabbitMQPrefetch,
			WorkerCount: cfg.WorkerCount,
			MaxRetries:  cfg.MaxRetries,
			BaseDelayMs: cfg.RetryBaseDelayMs,
			Exhausted: func(ctx context.Context, body []byte, cause error) {
				failures.RetriesExhausted(ctx, body, stage, cause)
			},
		}, handler, log)
		fatalOnErr(err, "create consumer for "+queue)

		go func(queue string, c *rabbitmq.Consumer) {
			if err := c.Start(ctx); err != nil {
				log.Error("consumer error", zap.String("queue", queue), zap.Error(err))
			}
		}(queue, consumer)
		consumers = append(consumers, consumer)
	}
	return consumers
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}

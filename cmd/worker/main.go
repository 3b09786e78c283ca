package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fiapx/fiapx-sampling-service/internal/domain/entity"
	"github.com/fiapx/fiapx-sampling-service/internal/infra/archive"
	"github.com/fiapx/fiapx-sampling-service/internal/infra/config"
	"github.com/fiapx/fiapx-sampling-service/internal/infra/email"
	"github.com/fiapx/fiapx-sampling-service/internal/infra/ffmpeg"
	"github.com/fiapx/fiapx-sampling-service/internal/infra/frames"
	"github.com/fiapx/fiapx-sampling-service/internal/infra/metrics"
	miniostorage "github.com/fiapx/fiapx-sampling-service/internal/infra/minio"
	"github.com/fiapx/fiapx-sampling-service/internal/infra/postgres"
	"github.com/fiapx/fiapx-sampling-service/internal/infra/rabbitmq"
	"github.com/fiapx/fiapx-sampling-service/internal/infra/tracing"
	"github.com/fiapx/fiapx-sampling-service/internal/usecase"
	"github.com/fiapx/fiapx-sampling-service/pkg/logger"
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

	log.Info("starting fiapx-sampling-service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing is optional
	tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint, cfg.TraceSampleRatio)
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(ctx)
	}

	defaultMode, err := entity.ParseSamplingMode(cfg.SamplingDefaultMode)
	fatalOnErr(err, "parse SAMPLING_DEFAULT_MODE")
	defaultSampling, err := entity.SamplingSpec{Rate: cfg.SamplingDefaultRate, Mode: defaultMode}.Normalize()
	fatalOnErr(err, "parse SAMPLING_DEFAULT_RATE")

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()

	fatalOnErr(postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath), "run migrations")

	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:     cfg.MinIOEndpoint,
		AccessKey:    cfg.MinIOAccessKey,
		SecretKey:    cfg.MinIOSecretKey,
		UseSSL:       cfg.MinIOUseSSL,
		UploadBucket: cfg.MinIOUploadBucket,
		ZipBucket:    cfg.MinIOZipBucket,
	})
	fatalOnErr(err, "create minio storage")
	fatalOnErr(storage.EnsureBuckets(ctx), "ensure minio buckets")

	rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
	fatalOnErr(err, "connect to rabbitmq for publisher")
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, cfg.RabbitMQExchange)
	fatalOnErr(err, "create rabbitmq publisher")
	defer pub.Close()

	statusPub := rabbitmq.NewStatusPublisher(pub)
	dlqPub := rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ)

	writer, err := frames.NewWriter(cfg.FrameFormat, cfg.FrameJPEGQuality)
	fatalOnErr(err, "create frame writer")

	repo := postgres.NewJobRepository(pool)
	opener := ffmpeg.NewDecoderOpener(cfg.FFprobePath, log)
	zipper := archive.NewZipCreator()
	notifier := email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log)

	uc := usecase.NewSampleVideoUseCase(
		repo, storage, opener, writer, zipper,
		statusPub, dlqPub, notifier,
		log,
		usecase.SampleVideoConfig{
			TempDir:         cfg.TempDir,
			MaxRetries:      cfg.MaxRetries,
			DefaultSampling: defaultSampling,
			BatchMemBytes:   cfg.BatchMemBytes(),
		},
	)

	metricsSrv := metrics.StartMetricsServer(ctx, cfg.MetricsPort, log)

	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         cfg.RabbitMQURL,
		Queue:       cfg.RabbitMQSamplingQueue,
		Exchange:    cfg.RabbitMQExchange,
		DLQ:         cfg.RabbitMQDLQ,
		StatusQueue: cfg.RabbitMQStatusQueue,
		Prefetch:    cfg.RabbitMQPrefetch,
		WorkerCount: cfg.WorkerCount,
		BaseDelayMs: cfg.RetryBaseDelayMs,
	}, uc.Execute, log)
	fatalOnErr(err, "create consumer")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info("fiapx-sampling-service started, consuming messages",
		zap.Int("default_rate", defaultSampling.Rate),
		zap.String("default_mode", string(defaultSampling.Mode)),
		zap.String("frame_format", cfg.FrameFormat),
	)

	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer error", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	consumer.Close()
	log.Info("fiapx-sampling-service stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}

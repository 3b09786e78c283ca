package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fiapx/fiapx-sampling-service/internal/domain/entity"
	"github.com/fiapx/fiapx-sampling-service/internal/domain/port"
	"github.com/fiapx/fiapx-sampling-service/internal/infra/metrics"
	"github.com/fiapx/fiapx-sampling-service/internal/predicate"
	"github.com/fiapx/fiapx-sampling-service/internal/sampling"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// permanentError marks failures that retrying cannot fix, such as a
// predicate that does not reduce to frame ranges.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error {
	return &permanentError{err: err}
}

func isPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

type SampleVideoUseCase struct {
	repo      port.JobRepository
	storage   port.VideoStorage
	opener    port.DecoderOpener
	writer    port.FrameWriter
	zipper    port.Zipper
	publisher port.StatusPublisher
	dlq       port.DLQPublisher
	notifier  port.FailureNotifier
	logger    *zap.Logger
	cfg       SampleVideoConfig
}

type SampleVideoConfig struct {
	TempDir         string
	MaxRetries      int
	DefaultSampling entity.SamplingSpec
	// BatchMemBytes bounds the decoded pixels held at once; 0 means unbounded.
	BatchMemBytes int
}

func NewSampleVideoUseCase(
	repo port.JobRepository,
	storage port.VideoStorage,
	opener port.DecoderOpener,
	writer port.FrameWriter,
	zipper port.Zipper,
	publisher port.StatusPublisher,
	dlq port.DLQPublisher,
	notifier port.FailureNotifier,
	logger *zap.Logger,
	cfg SampleVideoConfig,
) *SampleVideoUseCase {
	return &SampleVideoUseCase{
		repo:      repo,
		storage:   storage,
		opener:    opener,
		writer:    writer,
		zipper:    zipper,
		publisher: publisher,
		dlq:       dlq,
		notifier:  notifier,
		logger:    logger,
		cfg:       cfg,
	}
}

// request is a decoded and validated sampling message.
type request struct {
	msg       entity.SamplingRequestMessage
	predicate predicate.Expression
	spec      entity.SamplingSpec
}

// Execute handles one delivery. A nil return acks the message; an error asks
// the consumer to requeue it.
func (uc *SampleVideoUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	ctx, span := otel.Tracer("usecase").Start(ctx, "SampleVideoUseCase.Execute")
	defer span.End()

	totalTimer := time.Now()

	var msg entity.SamplingRequestMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		metrics.JobsProcessedTotal.WithLabelValues("dlq").Inc()
		return nil
	}

	span.SetAttributes(
		attribute.String("job.id", msg.JobID.String()),
		attribute.String("job.video_key", msg.VideoKey),
	)
	log := uc.logger.With(zap.String("job_id", msg.JobID.String()), zap.String("video_key", msg.VideoKey))

	job, err := uc.loadJob(ctx, msg)
	if err != nil {
		log.Error("failed to load job record", zap.Error(err))
		return err
	}
	if job.Status == entity.JobStatusCompleted {
		log.Info("job already completed, skipping redelivery")
		return nil
	}

	req, err := uc.parseRequest(msg)
	if err != nil {
		log.Warn("rejecting sampling request", zap.Error(err))
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, "invalid_request: "+err.Error(), log)
	}
	span.SetAttributes(
		attribute.Int("sampling.rate", req.spec.Rate),
		attribute.String("sampling.mode", string(req.spec.Mode)),
	)

	if !job.CanRetry() {
		log.Warn("job exhausted retries, sending to DLQ")
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, "max retries exceeded", log)
	}

	job.Sampling = req.spec
	job.MarkProcessing()
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to PROCESSING", zap.Error(err))
		return fmt.Errorf("update job: %w", err)
	}

	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	if err := uc.samplePipeline(ctx, job, req, log); err != nil {
		if ctx.Err() != nil {
			log.Warn("sampling interrupted", zap.Error(err))
			return err
		}
		if isPermanent(err) {
			log.Error("sampling failed permanently", zap.Error(err))
			return uc.handlePermanentFailure(ctx, job, msg, rawMsg, err.Error(), log)
		}
		log.Error("sampling failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, err.Error(), log)
	}

	metrics.JobsProcessedTotal.WithLabelValues("completed").Inc()
	metrics.JobProcessingDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())
	return nil
}

func (uc *SampleVideoUseCase) loadJob(ctx context.Context, msg entity.SamplingRequestMessage) (*entity.Job, error) {
	job, err := uc.repo.FindByID(ctx, msg.JobID)
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, port.ErrJobNotFound) {
		return nil, fmt.Errorf("find job: %w", err)
	}

	job = entity.NewJob(msg, uc.cfg.MaxRetries)
	if err := uc.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return job, nil
}

// parseRequest applies the configured defaults to the sampling spec and
// validates the predicate before anything is downloaded.
func (uc *SampleVideoUseCase) parseRequest(msg entity.SamplingRequestMessage) (*request, error) {
	spec := msg.Sampling
	if spec.Rate == 0 {
		spec.Rate = uc.cfg.DefaultSampling.Rate
	}
	if spec.Mode == "" {
		spec.Mode = uc.cfg.DefaultSampling.Mode
	}
	spec, err := spec.Normalize()
	if err != nil {
		return nil, err
	}

	expr, err := predicate.Parse(msg.Predicate)
	if err != nil {
		return nil, err
	}

	return &request{msg: msg, predicate: expr, spec: spec}, nil
}

func (uc *SampleVideoUseCase) samplePipeline(ctx context.Context, job *entity.Job, req *request, log *zap.Logger) error {
	workDir := filepath.Join(uc.cfg.TempDir, job.ID.String())
	framesDir := filepath.Join(workDir, "frames")
	if err := os.MkdirAll(framesDir, 0o755); err != nil {
		return fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	videoPath := filepath.Join(workDir, "input"+filepath.Ext(req.msg.VideoKey))
	err := uc.stage(ctx, "download", func(ctx context.Context) error {
		return uc.storage.DownloadVideo(ctx, req.msg.VideoKey, videoPath)
	})
	if err != nil {
		return fmt.Errorf("download_video: %w", err)
	}

	var source port.VideoSource
	err = uc.stage(ctx, "open_decoder", func(ctx context.Context) error {
		source, err = uc.opener.Open(ctx, videoPath)
		return err
	})
	if err != nil {
		return fmt.Errorf("open_decoder: %w", err)
	}
	defer source.Close()

	var frames []entity.SampledFrame
	err = uc.stage(ctx, "sample", func(ctx context.Context) error {
		frames, err = uc.sampleFrames(ctx, source, req, framesDir, log)
		return err
	})
	if err != nil {
		return fmt.Errorf("sample_frames: %w", err)
	}

	zipPath := filepath.Join(workDir, "frames.zip")
	err = uc.stage(ctx, "zip", func(ctx context.Context) error {
		return uc.zipper.CreateZip(ctx, frames, zipPath)
	})
	if err != nil {
		return fmt.Errorf("create_zip: %w", err)
	}

	zipKey := fmt.Sprintf("%s/frames_%s.zip", req.msg.UserID, job.ID.String())
	err = uc.stage(ctx, "upload", func(ctx context.Context) error {
		return uc.uploadZip(ctx, zipKey, zipPath, job, req.spec, len(frames))
	})
	if err != nil {
		return fmt.Errorf("upload_zip: %w", err)
	}

	job.MarkCompleted(zipKey, source.FrameCount(), len(frames), source.Duration())
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to COMPLETED", zap.Error(err))
		return fmt.Errorf("update job completed: %w", err)
	}

	uc.publishStatus(ctx, job, log)

	log.Info("job completed successfully",
		zap.Int("total_frames", source.FrameCount()),
		zap.Int("frame_count", len(frames)),
		zap.Int("sampling_rate", req.spec.Rate),
		zap.String("sampling_mode", string(req.spec.Mode)),
		zap.String("zip_key", zipKey),
	)
	return nil
}

// sampleFrames resolves the predicate against the decoder's frame domain and
// writes every sampled frame to dir, one batch at a time.
func (uc *SampleVideoUseCase) sampleFrames(
	ctx context.Context,
	source port.VideoSource,
	req *request,
	dir string,
	log *zap.Logger,
) ([]entity.SampledFrame, error) {
	ranges, err := predicate.Resolve(req.predicate, 0, source.FrameCount()-1)
	if err != nil {
		return nil, permanent(err)
	}

	it, err := sampling.Sample(source, ranges, req.spec, sampling.WithLogger(log))
	if err != nil {
		return nil, permanent(err)
	}

	log.Debug("sampling video",
		zap.Int("frames", source.FrameCount()),
		zap.Int("ranges", len(ranges)),
		zap.Int("rate", req.spec.Rate),
		zap.String("mode", string(req.spec.Mode)),
	)

	var out []entity.SampledFrame
	for batch := range sampling.Batches(it, uc.cfg.BatchMemBytes) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		metrics.FrameBatchBytes.Observe(float64(batch.Bytes))
		for _, frame := range batch.Frames {
			written, err := uc.writer.WriteFrame(dir, frame)
			if err != nil {
				return nil, fmt.Errorf("write frame: %w", err)
			}
			out = append(out, written)
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}

	stats := it.Stats()
	metrics.FramesSampledTotal.WithLabelValues(string(req.spec.Mode)).Add(float64(stats.Emitted))
	if stats.RangeStops > 0 {
		metrics.DecoderStopsTotal.WithLabelValues("range").Add(float64(stats.RangeStops))
	}
	if stats.PassStopped {
		metrics.DecoderStopsTotal.WithLabelValues("pass").Inc()
	}
	return out, nil
}

func (uc *SampleVideoUseCase) uploadZip(
	ctx context.Context,
	zipKey, zipPath string,
	job *entity.Job,
	spec entity.SamplingSpec,
	frameCount int,
) error {
	f, err := os.Open(zipPath)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat zip: %w", err)
	}

	return uc.storage.UploadZip(ctx, zipKey, f, info.Size(), map[string]string{
		"job-id":        job.ID.String(),
		"frame-count":   strconv.Itoa(frameCount),
		"sampling-rate": strconv.Itoa(spec.Rate),
		"sampling-mode": string(spec.Mode),
	})
}

// stage runs fn inside a span and records its duration under name.
func (uc *SampleVideoUseCase) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := otel.Tracer("usecase").Start(ctx, name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	metrics.JobProcessingDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (uc *SampleVideoUseCase) handleRetryableFailure(
	ctx context.Context,
	job *entity.Job,
	msg entity.SamplingRequestMessage,
	rawMsg []byte,
	errMsg string,
	log *zap.Logger,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	if !job.CanRetry() {
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, errMsg, log)
	}

	metrics.RetryTotal.WithLabelValues(strconv.Itoa(job.Attempt)).Inc()
	uc.publishStatus(ctx, job, log)

	return fmt.Errorf("retryable failure (attempt %d/%d): %s", job.Attempt, job.MaxAttempts, errMsg)
}

func (uc *SampleVideoUseCase) handlePermanentFailure(
	ctx context.Context,
	job *entity.Job,
	msg entity.SamplingRequestMessage,
	rawMsg []byte,
	errMsg string,
	log *zap.Logger,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	_ = uc.dlq.PublishToDLQ(ctx, rawMsg, errMsg)

	uc.publishStatus(ctx, job, log)

	metrics.JobsProcessedTotal.WithLabelValues("dlq").Inc()

	if msg.UserEmail != "" {
		_ = uc.notifier.NotifyFailure(ctx, msg.UserEmail, job.ID.String(), msg.VideoKey, errMsg)
	}

	return nil
}

func (uc *SampleVideoUseCase) publishStatus(ctx context.Context, job *entity.Job, log *zap.Logger) {
	statusMsg := entity.VideoStatusMessage{
		JobID:        job.ID,
		UserID:       job.UserID,
		Status:       job.Status,
		VideoKey:     job.VideoKey,
		ZipKey:       job.ZipKey,
		Sampling:     job.Sampling,
		TotalFrames:  job.TotalFrames,
		FrameCount:   job.FrameCount,
		Duration:     job.VideoDuration,
		ErrorMessage: job.ErrorMessage,
		Attempt:      job.Attempt,
		MaxAttempts:  job.MaxAttempts,
	}
	data, _ := json.Marshal(statusMsg)
	if err := uc.publisher.PublishStatus(ctx, data); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}

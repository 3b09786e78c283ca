package usecase

import (
	"context"
	"io"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/fiapx/fiapx-sampling-service/internal/domain/entity"
	"github.com/fiapx/fiapx-sampling-service/internal/infra/archive"
	"github.com/fiapx/fiapx-sampling-service/internal/infra/ffmpeg"
	"github.com/fiapx/fiapx-sampling-service/internal/infra/frames"
	miniostorage "github.com/fiapx/fiapx-sampling-service/internal/infra/minio"
	"github.com/fiapx/fiapx-sampling-service/internal/infra/postgres"
	"github.com/fiapx/fiapx-sampling-service/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func TestSampleVideoEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not found in PATH", bin)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// 20 frames at 10 fps
	videoPath := filepath.Join(t.TempDir(), "clip.mp4")
	out, err := exec.CommandContext(ctx, "ffmpeg", "-y", "-v", "error",
		"-f", "lavfi", "-i", "testsrc=duration=2:size=64x48:rate=10",
		"-c:v", "mpeg4", "-pix_fmt", "yuv420p", videoPath,
	).CombinedOutput()
	require.NoError(t, err, string(out))

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("jobs"),
		tcpostgres.WithUsername("job_user"),
		tcpostgres.WithPassword("job_pass"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	defer pgContainer.Terminate(ctx)

	pgConnStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, postgres.RunMigrations(pgConnStr, "../../migrations"))

	pool, err := pgxpool.New(ctx, pgConnStr)
	require.NoError(t, err)
	defer pool.Close()

	minioContainer, err := tcminio.Run(ctx,
		"minio/minio:latest",
		tcminio.WithUsername("minioadmin"),
		tcminio.WithPassword("minioadmin"),
	)
	require.NoError(t, err)
	defer minioContainer.Terminate(ctx)

	minioEndpoint, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err)

	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:     minioEndpoint,
		AccessKey:    "minioadmin",
		SecretKey:    "minioadmin",
		UploadBucket: "uploads",
		ZipBucket:    "zips",
	})
	require.NoError(t, err)
	require.NoError(t, storage.EnsureBuckets(ctx))

	client, err := miniogo.New(minioEndpoint, &miniogo.Options{
		Creds: credentials.NewStaticV4("minioadmin", "minioadmin", ""),
	})
	require.NoError(t, err)

	videoKey := "testuser/clip.mp4"
	_, err = client.FPutObject(ctx, "uploads", videoKey, videoPath, miniogo.PutObjectOptions{ContentType: "video/mp4"})
	require.NoError(t, err)

	log, err := logger.New("debug")
	require.NoError(t, err)

	writer, err := frames.NewWriter("jpg", 80)
	require.NoError(t, err)

	repo := postgres.NewJobRepository(pool)
	pub := &recordingPublisher{}
	uc := NewSampleVideoUseCase(
		repo, storage, ffmpeg.NewDecoderOpener("ffprobe", log), writer, archive.NewZipCreator(),
		pub, pub, &recordingNotifier{},
		log,
		SampleVideoConfig{
			TempDir:         t.TempDir(),
			MaxRetries:      3,
			DefaultSampling: entity.SamplingSpec{Rate: 1, Mode: entity.SamplingModePlain},
		},
	)

	// [4, 11] aligned to a stride of 3 keeps 6 and 9.
	jobID, body := newRequest(t,
		`{"op":"AND","left":{"op":">=","column":"id","value":4},"right":{"op":"<","column":"id","value":12}}`,
		entity.SamplingSpec{Rate: 3},
	)
	require.NoError(t, uc.Execute(ctx, body))

	job, err := repo.FindByID(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusCompleted, job.Status)
	assert.Equal(t, 20, job.TotalFrames)
	assert.Equal(t, 2, job.FrameCount)
	assert.InDelta(t, 2.0, job.VideoDuration, 0.2)

	obj, err := client.GetObject(ctx, "zips", job.ZipKey, miniogo.GetObjectOptions{})
	require.NoError(t, err)
	defer obj.Close()
	data, err := io.ReadAll(obj)
	require.NoError(t, err)

	names, manifest := zipEntries(t, data)
	assert.Equal(t, []string{"frame_000006.jpg", "frame_000009.jpg"}, names)
	require.Len(t, manifest.Frames, 2)
	assert.InDelta(t, 0.6, manifest.Frames[0].Timestamp, 0.011)
	assert.InDelta(t, 0.9, manifest.Frames[1].Timestamp, 0.011)

	assert.Equal(t, entity.JobStatusCompleted, pub.lastStatus(t).Status)
}

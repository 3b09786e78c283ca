package ffmpeg

import (
	"context"
	"fmt"
	"image"

	vidio "github.com/AlexEidt/Vidio"
	"github.com/fiapx/fiapx-sampling-service/internal/domain/port"
	"go.uber.org/zap"
)

// frameReader is the subset of *vidio.Video the decoder relies on.
type frameReader interface {
	Frames() int
	Duration() float64
	ReadFrames(n ...int) ([]*image.RGBA, error)
	Close()
}

// Decoder serves single frames by index. Frame count, key frames and
// timestamps come from ffprobe; pixels are decoded by Vidio.
type Decoder struct {
	video  frameReader
	probe  *ProbeResult
	keys   []int
	logger *zap.Logger
}

func newDecoder(video frameReader, probe *ProbeResult, logger *zap.Logger) *Decoder {
	return &Decoder{
		video:  video,
		probe:  probe,
		keys:   probe.KeyFrameIndices(),
		logger: logger,
	}
}

func (d *Decoder) FrameCount() int {
	return len(d.probe.Frames)
}

func (d *Decoder) KeyFrameIndices() []int {
	return d.keys
}

// Decode returns a freshly allocated RGBA image for index. Indices outside
// what both ffprobe and Vidio can see are reported as unavailable.
func (d *Decoder) Decode(index int) (image.Image, error) {
	if index < 0 || index >= d.FrameCount() {
		return nil, port.ErrDecodeUnavailable
	}
	if n := d.video.Frames(); n > 0 && index >= n {
		d.logger.Debug("frame beyond decoder length",
			zap.Int("index", index),
			zap.Int("decoder_frames", n),
		)
		return nil, port.ErrDecodeUnavailable
	}

	frames, err := d.video.ReadFrames(index)
	if err != nil {
		return nil, fmt.Errorf("read frame %d: %w", index, err)
	}
	if len(frames) == 0 || frames[0] == nil {
		return nil, port.ErrDecodeUnavailable
	}
	return frames[0], nil
}

func (d *Decoder) TimestampOf(index int) (float64, error) {
	if index < 0 || index >= d.FrameCount() {
		return 0, port.ErrDecodeUnavailable
	}
	return d.probe.Frames[index].Timestamp, nil
}

func (d *Decoder) Duration() float64 {
	return d.video.Duration()
}

func (d *Decoder) Close() error {
	d.video.Close()
	return nil
}

type DecoderOpener struct {
	prober *Prober
	logger *zap.Logger
}

func NewDecoderOpener(ffprobePath string, logger *zap.Logger) *DecoderOpener {
	return &DecoderOpener{prober: NewProber(ffprobePath), logger: logger}
}

func (o *DecoderOpener) Open(ctx context.Context, videoPath string) (port.VideoSource, error) {
	probe, err := o.prober.Probe(ctx, videoPath)
	if err != nil {
		return nil, fmt.Errorf("probe video: %w", err)
	}

	video, err := vidio.NewVideo(videoPath)
	if err != nil {
		return nil, fmt.Errorf("open video: %w", err)
	}

	dec := newDecoder(video, probe, o.logger)
	o.logger.Info("video opened",
		zap.Int("frames", dec.FrameCount()),
		zap.Int("key_frames", len(dec.keys)),
		zap.Float64("duration", video.Duration()),
	)
	return dec, nil
}

package port

import (
	"context"
	"errors"
	"image"
)

// ErrDecodeUnavailable is returned by Decode when the frame cannot be
// produced. Samplers treat it as an end-of-data signal, not a failure.
var ErrDecodeUnavailable = errors.New("frame unavailable")

type Decoder interface {
	FrameCount() int
	// KeyFrameIndices returns ascending, deduplicated indices in [0, FrameCount()-1].
	KeyFrameIndices() []int
	Decode(index int) (image.Image, error)
	TimestampOf(index int) (float64, error)
}

// VideoSource is an opened decoder that owns an external resource.
type VideoSource interface {
	Decoder
	Duration() float64
	Close() error
}

type DecoderOpener interface {
	Open(ctx context.Context, videoPath string) (VideoSource, error)
}

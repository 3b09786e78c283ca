package ffmpeg

import (
	"errors"
	"image"
	"strings"
	"testing"

	"github.com/fiapx/fiapx-sampling-service/internal/domain/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const probeJSON = `{
    "frames": [
        {"key_frame": 1, "pts_time": "0.000000", "best_effort_timestamp_time": "0.000000"},
        {"key_frame": 0, "pts_time": "0.040000", "best_effort_timestamp_time": "0.040000"},
        {"key_frame": 0, "pts_time": "N/A", "best_effort_timestamp_time": "0.080000"},
        {"key_frame": 0, "pts_time": "N/A", "best_effort_timestamp_time": "N/A"},
        {"key_frame": 1, "pts_time": "0.160000"}
    ]
}`

type fakeVideo struct {
	frames int
	reads  [][]int
	err    error
	closed bool
}

func (v *fakeVideo) Frames() int       { return v.frames }
func (v *fakeVideo) Duration() float64 { return float64(v.frames) / 25 }
func (v *fakeVideo) Close()            { v.closed = true }

func (v *fakeVideo) ReadFrames(n ...int) ([]*image.RGBA, error) {
	v.reads = append(v.reads, n)
	if v.err != nil {
		return nil, v.err
	}
	out := make([]*image.RGBA, 0, len(n))
	for range n {
		out = append(out, image.NewRGBA(image.Rect(0, 0, 4, 4)))
	}
	return out, nil
}

func TestParseProbe(t *testing.T) {
	result, err := parseProbe(strings.NewReader(probeJSON))
	require.NoError(t, err)
	require.Len(t, result.Frames, 5)

	assert.Equal(t, []int{0, 4}, result.KeyFrameIndices())
	assert.Equal(t, 0.04, result.Frames[1].Timestamp)
	assert.Equal(t, 0.08, result.Frames[2].Timestamp)
	assert.Equal(t, 0.08, result.Frames[3].Timestamp, "missing timestamp inherits previous")
	assert.Equal(t, 0.16, result.Frames[4].Timestamp, "falls back to pts_time")
}

func TestParseProbeInvalid(t *testing.T) {
	_, err := parseProbe(strings.NewReader(`{"frames": [`))
	assert.Error(t, err)

	result, err := parseProbe(strings.NewReader(`{}`))
	require.NoError(t, err)
	assert.Empty(t, result.Frames)
}

func newTestDecoder(t *testing.T, video *fakeVideo) *Decoder {
	t.Helper()
	probe, err := parseProbe(strings.NewReader(probeJSON))
	require.NoError(t, err)
	return newDecoder(video, probe, zap.NewNop())
}

func TestDecoderDecode(t *testing.T) {
	video := &fakeVideo{frames: 5}
	dec := newTestDecoder(t, video)

	assert.Equal(t, 5, dec.FrameCount())
	assert.Equal(t, []int{0, 4}, dec.KeyFrameIndices())

	img, err := dec.Decode(2)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 4), img.Bounds())
	assert.Equal(t, [][]int{{2}}, video.reads)

	ts, err := dec.TimestampOf(2)
	require.NoError(t, err)
	assert.Equal(t, 0.08, ts)

	require.NoError(t, dec.Close())
	assert.True(t, video.closed)
}

func TestDecoderOutOfRange(t *testing.T) {
	video := &fakeVideo{frames: 3}
	dec := newTestDecoder(t, video)

	for _, idx := range []int{-1, 3, 5} {
		_, err := dec.Decode(idx)
		assert.ErrorIs(t, err, port.ErrDecodeUnavailable, "index %d", idx)
	}
	_, err := dec.TimestampOf(9)
	assert.ErrorIs(t, err, port.ErrDecodeUnavailable)
	assert.Empty(t, video.reads)
}

func TestDecoderReadFailure(t *testing.T) {
	boom := errors.New("ffmpeg crashed")
	dec := newTestDecoder(t, &fakeVideo{frames: 5, err: boom})

	_, err := dec.Decode(1)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, port.ErrDecodeUnavailable)
}

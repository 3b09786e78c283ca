package entity

import (
	"errors"
	"fmt"
	"image"
	"strings"
)

var ErrInvalidSamplingSpec = errors.New("invalid sampling spec")

type SamplingMode string

const (
	SamplingModePlain    SamplingMode = "PLAIN"
	SamplingModeKeyFrame SamplingMode = "KEYFRAME"
)

// ParseSamplingMode accepts the mode names case-insensitively. An empty string
// means PLAIN and "IFRAMES" is accepted as an alias of KEYFRAME.
func ParseSamplingMode(s string) (SamplingMode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", string(SamplingModePlain):
		return SamplingModePlain, nil
	case string(SamplingModeKeyFrame), "IFRAMES":
		return SamplingModeKeyFrame, nil
	}
	return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidSamplingSpec, s)
}

// SamplingSpec selects the stride and the frame population of a pass.
type SamplingSpec struct {
	Rate int          `json:"rate"`
	Mode SamplingMode `json:"mode"`
}

// Normalize fills the defaults (rate 1, PLAIN) and rejects negative rates
// and unknown modes.
func (s SamplingSpec) Normalize() (SamplingSpec, error) {
	if s.Rate < 0 {
		return SamplingSpec{}, fmt.Errorf("%w: rate %d", ErrInvalidSamplingSpec, s.Rate)
	}
	if s.Rate == 0 {
		s.Rate = 1
	}
	mode, err := ParseSamplingMode(string(s.Mode))
	if err != nil {
		return SamplingSpec{}, err
	}
	s.Mode = mode
	return s, nil
}

// Range is an inclusive span of frame indices.
type Range struct {
	Begin int
	End   int
}

func (r Range) Len() int {
	if r.End < r.Begin {
		return 0
	}
	return r.End - r.Begin + 1
}

func (r Range) Contains(index int) bool {
	return index >= r.Begin && index <= r.End
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d]", r.Begin, r.End)
}

// FrameRecord is one sampled frame. Pixels is whatever the decoder produced
// for Index; Timestamp is in seconds rounded to two decimals.
type FrameRecord struct {
	Index     int
	Pixels    image.Image
	Timestamp float64
}

// SampledFrame is a frame that has been encoded to disk.
type SampledFrame struct {
	Index     int     `json:"index"`
	Timestamp float64 `json:"timestamp"`
	File      string  `json:"file"`
	Path      string  `json:"-"`
}

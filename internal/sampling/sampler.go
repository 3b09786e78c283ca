// Package sampling selects frames from a decoder according to a range list
// and a sampling spec, producing them lazily one decode at a time.
package sampling

import (
	"errors"
	"fmt"
	"iter"
	"math"

	"github.com/fiapx/fiapx-sampling-service/internal/domain/entity"
	"github.com/fiapx/fiapx-sampling-service/internal/domain/port"
	"go.uber.org/zap"
)

var ErrInvalidRanges = errors.New("invalid range list")

// Stats describes a pass so far.
type Stats struct {
	Emitted     int
	RangeStops  int
	PassStopped bool
}

type Option func(*Iterator)

func WithLogger(logger *zap.Logger) Option {
	return func(it *Iterator) {
		it.logger = logger
	}
}

// Iterator yields the frames of one sampling pass. It is driven entirely by
// Next: nothing is decoded ahead of demand and an exhausted Iterator stays
// exhausted. It must not be used from more than one goroutine.
type Iterator struct {
	dec       port.Decoder
	ranges    []entity.Range
	rate      int
	keyFrames []int
	keyFrame  bool

	rangeIdx int
	started  bool
	next     int
	kfIdx    int
	done     bool

	cur    entity.FrameRecord
	err    error
	stats  Stats
	logger *zap.Logger
}

// Sample validates ranges and prepares a pass over dec. Ranges are clipped to
// [0, dec.FrameCount()-1]; a decoder with no frames yields an empty pass.
func Sample(dec port.Decoder, ranges []entity.Range, spec entity.SamplingSpec, opts ...Option) (*Iterator, error) {
	spec, err := spec.Normalize()
	if err != nil {
		return nil, err
	}
	if err := ValidateRanges(ranges); err != nil {
		return nil, err
	}

	it := &Iterator{
		dec:      dec,
		ranges:   clipToDomain(ranges, dec.FrameCount()),
		rate:     spec.Rate,
		keyFrame: spec.Mode == entity.SamplingModeKeyFrame,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(it)
	}
	if it.keyFrame && len(it.ranges) > 0 {
		it.keyFrames = dec.KeyFrameIndices()
	}
	return it, nil
}

// ValidateRanges checks that every range is non-empty and non-negative and
// that the list is ascending without overlaps. Adjacent ranges are allowed.
func ValidateRanges(ranges []entity.Range) error {
	for i, r := range ranges {
		if r.Begin < 0 || r.End < r.Begin {
			return fmt.Errorf("%w: range %d is %s", ErrInvalidRanges, i, r)
		}
		if i > 0 && r.Begin <= ranges[i-1].End {
			return fmt.Errorf("%w: range %s overlaps or precedes %s", ErrInvalidRanges, r, ranges[i-1])
		}
	}
	return nil
}

func clipToDomain(ranges []entity.Range, numFrames int) []entity.Range {
	var out []entity.Range
	for _, r := range ranges {
		if r.Begin > numFrames-1 {
			break
		}
		r.End = min(r.End, numFrames-1)
		out = append(out, r)
	}
	return out
}

// Next advances to the next selected frame. It returns false when the pass
// is over, either because the ranges are exhausted or the decoder stopped.
func (it *Iterator) Next() bool {
	if it.done {
		return false
	}
	var ok bool
	if it.keyFrame {
		ok = it.nextKeyFrame()
	} else {
		ok = it.nextStride()
	}
	if !ok {
		it.done = true
		it.cur = entity.FrameRecord{}
	}
	return ok
}

// nextKeyFrame walks the key-frame list with a cursor shared by all ranges.
// Key frames below a range are skipped by whole strides, so a key frame at
// the start of a range can be stepped over. A miss ends the whole pass.
func (it *Iterator) nextKeyFrame() bool {
	for it.rangeIdx < len(it.ranges) {
		r := it.ranges[it.rangeIdx]
		if !it.started {
			for it.kfIdx < len(it.keyFrames) && it.keyFrames[it.kfIdx] < r.Begin {
				it.kfIdx += it.rate
			}
			it.started = true
		}

		if it.kfIdx < len(it.keyFrames) && it.keyFrames[it.kfIdx] <= r.End {
			index := it.keyFrames[it.kfIdx]
			it.kfIdx += it.rate
			if it.emit(index) {
				return true
			}
			it.stats.PassStopped = true
			it.logger.Debug("decoder stopped key frame pass", zap.Int("index", index))
			return false
		}

		it.rangeIdx++
		it.started = false
	}
	return false
}

// nextStride visits begin, begin+rate, ... within each range, where begin is
// rounded up to the next multiple of rate counted from frame 0. With rate 1
// this is every index. A miss ends only the current range.
func (it *Iterator) nextStride() bool {
	for it.rangeIdx < len(it.ranges) {
		r := it.ranges[it.rangeIdx]
		if !it.started {
			it.next = alignUp(r.Begin, it.rate)
			it.started = true
		}

		if it.next <= r.End {
			index := it.next
			it.next += it.rate
			if it.emit(index) {
				return true
			}
			if it.err != nil {
				return false
			}
			it.stats.RangeStops++
			it.logger.Debug("decoder stopped range",
				zap.Int("index", index),
				zap.Stringer("range", r),
			)
		}

		it.rangeIdx++
		it.started = false
	}
	return false
}

func alignUp(begin, rate int) int {
	if m := begin % rate; m != 0 {
		begin += rate - m
	}
	return begin
}

// emit decodes index into cur. It reports false on ErrDecodeUnavailable and
// on any other decoder failure, which is also kept for Err.
func (it *Iterator) emit(index int) bool {
	pixels, err := it.dec.Decode(index)
	if err == nil && pixels == nil {
		err = port.ErrDecodeUnavailable
	}
	if err != nil {
		it.fail(index, err)
		return false
	}

	ts, err := it.dec.TimestampOf(index)
	if err != nil {
		it.fail(index, err)
		return false
	}

	it.cur = entity.FrameRecord{
		Index:     index,
		Pixels:    pixels,
		Timestamp: RoundTimestamp(ts),
	}
	it.stats.Emitted++
	return true
}

func (it *Iterator) fail(index int, err error) {
	if errors.Is(err, port.ErrDecodeUnavailable) {
		return
	}
	it.err = fmt.Errorf("decode frame %d: %w", index, err)
}

// Frame returns the frame produced by the last successful Next.
func (it *Iterator) Frame() entity.FrameRecord {
	return it.cur
}

// Err returns the decoder failure that ended the pass, if any. Frames that
// are merely unavailable are not errors.
func (it *Iterator) Err() error {
	return it.err
}

func (it *Iterator) Stats() Stats {
	return it.stats
}

// All adapts the iterator to a range-over-func sequence. Breaking out of the
// loop leaves the iterator where it stopped.
func (it *Iterator) All() iter.Seq[entity.FrameRecord] {
	return func(yield func(entity.FrameRecord) bool) {
		for it.Next() {
			if !yield(it.Frame()) {
				return
			}
		}
	}
}

// RoundTimestamp rounds seconds to two decimals, half to even. Negative
// values, which some containers report for the first frames, become 0.
func RoundTimestamp(seconds float64) float64 {
	if seconds <= 0 || math.IsNaN(seconds) {
		return 0
	}
	return math.RoundToEven(seconds*100) / 100
}

package sampling

import (
	"image"
	"iter"

	"github.com/fiapx/fiapx-sampling-service/internal/domain/entity"
)

type Batch struct {
	Frames []entity.FrameRecord
	Bytes  int
}

// Batches groups the frames of a pass so that each batch's pixel payload stays
// within memSize bytes. A single frame larger than memSize forms its own
// batch. memSize <= 0 puts the whole pass in one batch.
func Batches(it *Iterator, memSize int) iter.Seq[Batch] {
	return func(yield func(Batch) bool) {
		var cur Batch
		for it.Next() {
			frame := it.Frame()
			size := PixelBytes(frame.Pixels)
			if memSize > 0 && len(cur.Frames) > 0 && cur.Bytes+size > memSize {
				if !yield(cur) {
					return
				}
				cur = Batch{}
			}
			cur.Frames = append(cur.Frames, frame)
			cur.Bytes += size
		}
		if len(cur.Frames) > 0 {
			yield(cur)
		}
	}
}

// PixelBytes estimates the in-memory size of a decoded frame.
func PixelBytes(img image.Image) int {
	switch p := img.(type) {
	case nil:
		return 0
	case *image.RGBA:
		return len(p.Pix)
	case *image.NRGBA:
		return len(p.Pix)
	case *image.Gray:
		return len(p.Pix)
	}
	b := img.Bounds()
	return b.Dx() * b.Dy() * 4
}

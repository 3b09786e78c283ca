package frames

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/fiapx/fiapx-sampling-service/internal/domain/entity"
)

// Writer encodes frames to files named frame_<index>.<format>.
type Writer struct {
	format  string
	quality int
}

func NewWriter(format string, jpegQuality int) (*Writer, error) {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	if format == "jpeg" {
		format = "jpg"
	}
	if _, err := imaging.FormatFromExtension(format); err != nil {
		return nil, fmt.Errorf("frame format %q: %w", format, err)
	}
	if jpegQuality <= 0 || jpegQuality > 100 {
		jpegQuality = 95
	}
	return &Writer{format: format, quality: jpegQuality}, nil
}

func (w *Writer) FileName(index int) string {
	return fmt.Sprintf("frame_%06d.%s", index, w.format)
}

func (w *Writer) WriteFrame(dir string, frame entity.FrameRecord) (entity.SampledFrame, error) {
	if frame.Pixels == nil {
		return entity.SampledFrame{}, fmt.Errorf("frame %d has no pixels", frame.Index)
	}
	name := w.FileName(frame.Index)
	path := filepath.Join(dir, name)
	if err := imaging.Save(frame.Pixels, path, imaging.JPEGQuality(w.quality)); err != nil {
		return entity.SampledFrame{}, fmt.Errorf("save frame %d: %w", frame.Index, err)
	}
	return entity.SampledFrame{
		Index:     frame.Index,
		Timestamp: frame.Timestamp,
		File:      name,
		Path:      path,
	}, nil
}

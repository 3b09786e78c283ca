package port

import "github.com/fiapx/fiapx-sampling-service/internal/domain/entity"

type FrameWriter interface {
	WriteFrame(dir string, frame entity.FrameRecord) (entity.SampledFrame, error)
}

package port

import (
	"context"

	"github.com/fiapx/fiapx-sampling-service/internal/domain/entity"
)

type Zipper interface {
	CreateZip(ctx context.Context, frames []entity.SampledFrame, outputPath string) error
}

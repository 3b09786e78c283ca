package port

import (
	"context"
	"io"
)

type VideoStorage interface {
	DownloadVideo(ctx context.Context, objectKey string, destPath string) error
	// UploadZip stores the frames archive; metadata is attached to the object.
	UploadZip(ctx context.Context, objectKey string, reader io.Reader, size int64, metadata map[string]string) error
}

package archive

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/fiapx/fiapx-sampling-service/internal/domain/entity"
)

const ManifestName = "manifest.json"

type Manifest struct {
	FrameCount int                   `json:"frame_count"`
	Frames     []entity.SampledFrame `json:"frames"`
}

type ZipCreator struct{}

func NewZipCreator() *ZipCreator {
	return &ZipCreator{}
}

// CreateZip stores the encoded frames in index order followed by a manifest
// mapping each file to its frame index and timestamp.
func (z *ZipCreator) CreateZip(ctx context.Context, frames []entity.SampledFrame, outputPath string) error {
	sorted := make([]entity.SampledFrame, len(frames))
	copy(sorted, frames)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Index < sorted[j].Index
	})

	zipFile, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create zip file: %w", err)
	}
	defer zipFile.Close()

	zw := zip.NewWriter(zipFile)
	for _, f := range sorted {
		if err := ctx.Err(); err != nil {
			zw.Close()
			return err
		}
		if err := addFile(zw, f); err != nil {
			zw.Close()
			return fmt.Errorf("add frame %d to zip: %w", f.Index, err)
		}
	}

	if err := addManifest(zw, sorted); err != nil {
		zw.Close()
		return fmt.Errorf("add manifest: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize zip: %w", err)
	}
	return nil
}

func addFile(zw *zip.Writer, frame entity.SampledFrame) error {
	file, err := os.Open(frame.Path)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = frame.File
	if header.Name == "" {
		header.Name = filepath.Base(frame.Path)
	}
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, file)
	return err
}

func addManifest(zw *zip.Writer, frames []entity.SampledFrame) error {
	w, err := zw.Create(ManifestName)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Manifest{FrameCount: len(frames), Frames: frames})
}

// Package export renders the included frames of a store into the output
// artifacts: a numbered image folder or a paginated PDF document.
package export

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"github.com/slidex/slidex-extraction-service/internal/domain/entity"
	"go.uber.org/zap"
)

// ImageExporter writes one PNG per included frame into a destination
// directory. Filenames carry a zero-padded ordinal in export order;
// pre-existing files of the same name are overwritten without prompt (the
// destination is always caller-chosen).
type ImageExporter struct {
	logger *zap.Logger
}

func NewImageExporter(logger *zap.Logger) *ImageExporter {
	return &ImageExporter{logger: logger}
}

// Export is not transactional: on failure, files already written stay in
// place and the returned ExportError reports how many.
func (e *ImageExporter) Export(ctx context.Context, store *entity.FrameStore, sel *entity.SelectionState, destDir string) (string, error) {
	indices := sel.IncludedIndices()
	if len(indices) == 0 {
		return "", entity.ErrNothingToExport
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", &entity.ExportError{Dest: destDir, Err: err}
	}

	e.logger.Info("exporting images",
		zap.Int("count", len(indices)),
		zap.String("dest", destDir),
	)

	for ordinal, idx := range indices {
		select {
		case <-ctx.Done():
			return "", &entity.ExportError{Dest: destDir, Written: ordinal, Err: ctx.Err()}
		default:
		}

		frame, err := store.Frame(idx)
		if err != nil {
			return "", &entity.ExportError{Dest: destDir, Written: ordinal, Err: err}
		}

		path := filepath.Join(destDir, fmt.Sprintf("slide_%04d.png", ordinal))
		if err := writePNG(path, frame); err != nil {
			return "", &entity.ExportError{Dest: destDir, Written: ordinal, Err: err}
		}
	}

	e.logger.Info("image export complete", zap.Int("files", len(indices)))
	return destDir, nil
}

func writePNG(path string, frame entity.Frame) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, frame.Image); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/slidex/slidex-extraction-service/internal/domain/entity"
	"go.uber.org/zap"
)

// PDFExporter renders one page per included frame, each page sized to the
// frame's pixel dimensions so the image fills it without distortion.
type PDFExporter struct {
	tempDir string
	logger  *zap.Logger
}

func NewPDFExporter(tempDir string, logger *zap.Logger) *PDFExporter {
	return &PDFExporter{tempDir: tempDir, logger: logger}
}

func (e *PDFExporter) Export(ctx context.Context, store *entity.FrameStore, sel *entity.SelectionState, outPath string) (string, error) {
	indices := sel.IncludedIndices()
	if len(indices) == 0 {
		return "", entity.ErrNothingToExport
	}

	workDir, err := os.MkdirTemp(e.tempDir, "slidex_pdf_")
	if err != nil {
		return "", &entity.ExportError{Dest: outPath, Err: err}
	}
	defer os.RemoveAll(workDir)

	e.logger.Info("building pdf",
		zap.Int("pages", len(indices)),
		zap.String("dest", outPath),
	)

	// pdfcpu appends pages when the output file already exists, so a
	// leftover from an earlier run must go first.
	if err := os.Remove(outPath); err != nil && !os.IsNotExist(err) {
		return "", &entity.ExportError{Dest: outPath, Err: err}
	}

	for pageNo, idx := range indices {
		select {
		case <-ctx.Done():
			return "", &entity.ExportError{Dest: outPath, Written: pageNo, Err: ctx.Err()}
		default:
		}

		frame, err := store.Frame(idx)
		if err != nil {
			return "", &entity.ExportError{Dest: outPath, Written: pageNo, Err: err}
		}

		imgPath := filepath.Join(workDir, fmt.Sprintf("page_%04d.png", pageNo))
		if err := writePNG(imgPath, frame); err != nil {
			return "", &entity.ExportError{Dest: outPath, Written: pageNo, Err: err}
		}

		if err := e.appendPage(imgPath, outPath, frame); err != nil {
			return "", &entity.ExportError{Dest: outPath, Written: pageNo, Err: err}
		}
	}

	e.logger.Info("pdf export complete", zap.Int("pages", len(indices)))
	return outPath, nil
}

// appendPage imports one image as a page whose media box matches the image
// dimensions (1px = 1pt), creating the document on the first call.
func (e *PDFExporter) appendPage(imgPath, outPath string, frame entity.Frame) error {
	b := frame.Image.Bounds()
	imp, err := pdfcpu.ParseImportDetails(
		fmt.Sprintf("dim:%d %d, pos:full", b.Dx(), b.Dy()),
		types.POINTS,
	)
	if err != nil {
		return fmt.Errorf("import details: %w", err)
	}
	if err := api.ImportImagesFile([]string{imgPath}, outPath, imp, nil); err != nil {
		return fmt.Errorf("import image: %w", err)
	}
	return nil
}

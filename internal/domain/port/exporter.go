package port

import (
	"context"

	"github.com/slidex/slidex-extraction-service/internal/domain/entity"
)

// ExportMode selects the output artifact kind.
type ExportMode string

const (
	ExportModeDocument    ExportMode = "document"
	ExportModeImageFolder ExportMode = "imageFolder"
)

// Exporter renders the included frames, in index order, into an artifact at
// dest (a file path for documents, a directory for image folders). It
// returns the artifact location.
type Exporter interface {
	Export(ctx context.Context, store *entity.FrameStore, sel *entity.SelectionState, dest string) (string, error)
}

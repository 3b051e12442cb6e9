package export

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/slidex/slidex-extraction-service/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// storeOf builds a store of solid-gray frames whose brightness encodes the
// original frame index, so exported files can be traced back.
func storeOf(t *testing.T, n int) *entity.FrameStore {
	t.Helper()
	frames := make([]entity.Frame, n)
	for i := range frames {
		img := image.NewGray(image.Rect(0, 0, 16, 9))
		for p := range img.Pix {
			img.Pix[p] = uint8(i * 10)
		}
		frames[i] = entity.Frame{Timestamp: float64(i), Image: img}
	}
	store, err := entity.NewFrameStore(frames)
	require.NoError(t, err)
	return store
}

func grayLevelOf(t *testing.T, path string) uint8 {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, _, err := image.Decode(f)
	require.NoError(t, err)
	r, _, _, _ := img.At(0, 0).RGBA()
	return uint8(r >> 8)
}

func TestImageExportSkipsExcludedFrames(t *testing.T) {
	store := storeOf(t, 4)
	sel := entity.NewSelectionState(4)
	require.NoError(t, sel.Toggle(2))

	dest := t.TempDir()
	exp := NewImageExporter(zap.NewNop())
	artifact, err := exp.Export(context.Background(), store, sel, dest)
	require.NoError(t, err)
	assert.Equal(t, dest, artifact)

	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Ordinals 0,1,2 map to original indices 0,1,3.
	assert.Equal(t, uint8(0), grayLevelOf(t, filepath.Join(dest, "slide_0000.png")))
	assert.Equal(t, uint8(10), grayLevelOf(t, filepath.Join(dest, "slide_0001.png")))
	assert.Equal(t, uint8(30), grayLevelOf(t, filepath.Join(dest, "slide_0002.png")))
}

func TestImageExportNothingSelected(t *testing.T) {
	store := storeOf(t, 3)
	sel := entity.NewSelectionState(3)
	sel.DeselectAll()

	dest := t.TempDir()
	exp := NewImageExporter(zap.NewNop())
	_, err := exp.Export(context.Background(), store, sel, dest)
	require.ErrorIs(t, err, entity.ErrNothingToExport)

	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	assert.Empty(t, entries, "no files are written on an empty selection")
}

func TestImageExportOverwritesExistingFiles(t *testing.T) {
	store := storeOf(t, 1)
	sel := entity.NewSelectionState(1)

	dest := t.TempDir()
	stale := filepath.Join(dest, "slide_0000.png")
	require.NoError(t, os.WriteFile(stale, []byte("stale"), 0644))

	exp := NewImageExporter(zap.NewNop())
	_, err := exp.Export(context.Background(), store, sel, dest)
	require.NoError(t, err)

	assert.Equal(t, uint8(0), grayLevelOf(t, stale), "stale file is replaced without prompt")
}

func TestImageExportCancelledBeforeFirstFile(t *testing.T) {
	store := storeOf(t, 2)
	sel := entity.NewSelectionState(2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dest := t.TempDir()
	exp := NewImageExporter(zap.NewNop())
	_, err := exp.Export(ctx, store, sel, dest)

	var expErr *entity.ExportError
	require.ErrorAs(t, err, &expErr)
	assert.Equal(t, 0, expErr.Written)
}

func TestImageExportCreatesDestination(t *testing.T) {
	store := storeOf(t, 1)
	sel := entity.NewSelectionState(1)

	dest := filepath.Join(t.TempDir(), "nested", "slides")
	exp := NewImageExporter(zap.NewNop())
	_, err := exp.Export(context.Background(), store, sel, dest)
	require.NoError(t, err)

	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

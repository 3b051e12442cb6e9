package dedup

import (
	"context"
	"image"
	"image/color"
	"io"
	"testing"

	"github.com/slidex/slidex-extraction-service/internal/domain/port"
	"github.com/slidex/slidex-extraction-service/internal/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sliceStream struct {
	cands []port.Candidate
	pos   int
}

func (s *sliceStream) Next(ctx context.Context) (port.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return port.Candidate{}, err
	}
	if s.pos >= len(s.cands) {
		return port.Candidate{}, io.EOF
	}
	c := s.cands[s.pos]
	s.pos++
	return c, nil
}

func (s *sliceStream) Close() error { return nil }

func candidates(timestamps ...float64) []port.Candidate {
	out := make([]port.Candidate, len(timestamps))
	for i, ts := range timestamps {
		out[i] = port.Candidate{
			Timestamp: ts,
			Image:     image.NewGray(image.Rect(0, 0, 4, 4)),
		}
	}
	return out
}

// pairSimilarity scores candidate pairs by timestamp; unknown pairs score 0.
func pairSimilarity(scores map[[2]float64]float64) SimilarityFunc {
	return func(a, b port.Candidate) float64 {
		return scores[[2]float64{a.Timestamp, b.Timestamp}]
	}
}

func TestCollapseAllMutualDuplicatesKeepsEarliest(t *testing.T) {
	sim := pairSimilarity(map[[2]float64]float64{
		{0, 1}: 0.99,
		{0, 2}: 0.99,
	})
	c, err := NewWithSimilarity(0.9, sim, zap.NewNop())
	require.NoError(t, err)

	frames, err := c.Collapse(context.Background(), &sliceStream{cands: candidates(0, 1, 2)})
	require.NoError(t, err)

	require.Len(t, frames, 1)
	assert.Equal(t, 0.0, frames[0].Timestamp, "representative is the earliest of the run")
}

func TestCollapseBreaksRunOnDissimilarFrame(t *testing.T) {
	// Run of two, a break, then a run of three: two frames survive.
	sim := pairSimilarity(map[[2]float64]float64{
		{0, 1}: 0.99,
		{0, 2}: 0.2,
		{2, 3}: 0.99,
		{2, 4}: 0.99,
	})
	c, err := NewWithSimilarity(0.9, sim, zap.NewNop())
	require.NoError(t, err)

	frames, err := c.Collapse(context.Background(), &sliceStream{cands: candidates(0, 1, 2, 3, 4)})
	require.NoError(t, err)

	require.Len(t, frames, 2)
	assert.Equal(t, 0.0, frames[0].Timestamp)
	assert.Equal(t, 2.0, frames[1].Timestamp)
}

func TestCollapseAdjacentSurvivorsBelowThreshold(t *testing.T) {
	// No pair scores at or above the threshold, so nothing collapses and
	// every adjacent survivor pair stays below it.
	sim := func(a, b port.Candidate) float64 { return 0.5 }
	c, err := NewWithSimilarity(0.9, sim, zap.NewNop())
	require.NoError(t, err)

	frames, err := c.Collapse(context.Background(), &sliceStream{cands: candidates(0, 1, 2, 3)})
	require.NoError(t, err)

	require.Len(t, frames, 4)
	for i := 1; i < len(frames); i++ {
		assert.Greater(t, frames[i].Timestamp, frames[i-1].Timestamp)
	}
}

func TestCollapseExactThresholdMerges(t *testing.T) {
	sim := pairSimilarity(map[[2]float64]float64{{0, 1}: 0.9})
	c, err := NewWithSimilarity(0.9, sim, zap.NewNop())
	require.NoError(t, err)

	frames, err := c.Collapse(context.Background(), &sliceStream{cands: candidates(0, 1)})
	require.NoError(t, err)
	assert.Len(t, frames, 1, "similarity >= strictness is a duplicate")
}

func TestCollapseEmptyStream(t *testing.T) {
	c, err := New(0.9, zap.NewNop())
	require.NoError(t, err)

	frames, err := c.Collapse(context.Background(), &sliceStream{})
	require.NoError(t, err)
	assert.Empty(t, frames)
}

func TestCollapseRejectsOutOfOrderInput(t *testing.T) {
	c, err := NewWithSimilarity(0.9, func(a, b port.Candidate) float64 { return 0 }, zap.NewNop())
	require.NoError(t, err)

	_, err = c.Collapse(context.Background(), &sliceStream{cands: candidates(0, 2, 1)})
	require.Error(t, err)
}

func TestCollapseStrictnessValidated(t *testing.T) {
	_, err := New(1.5, zap.NewNop())
	require.Error(t, err)
	_, err = New(-0.2, zap.NewNop())
	require.Error(t, err)
}

// pixelCounter counts At reads so tests can tell how many times an image
// was hashed.
type pixelCounter struct {
	image.Image
	reads int
}

func (p *pixelCounter) At(x, y int) color.Color {
	p.reads++
	return p.Image.At(x, y)
}

func TestCollapseHashesEachCandidateOnce(t *testing.T) {
	base := image.NewGray(image.Rect(0, 0, 64, 64))

	// How many reads a single signature computation costs on this image type.
	baseline := &pixelCounter{Image: base}
	imaging.Compute(baseline)
	require.Greater(t, baseline.reads, 0)

	counters := []*pixelCounter{
		{Image: base}, {Image: base}, {Image: base},
	}
	cands := make([]port.Candidate, len(counters))
	for i, pc := range counters {
		cands[i] = port.Candidate{Timestamp: float64(i), Image: pc}
	}

	c, err := New(0.9, zap.NewNop())
	require.NoError(t, err)

	frames, err := c.Collapse(context.Background(), &sliceStream{cands: cands})
	require.NoError(t, err)
	require.Len(t, frames, 1, "identical frames collapse to one")

	// The kept representative is compared against every later candidate;
	// its cached signature must be reused rather than recomputed.
	for i, pc := range counters {
		assert.Equal(t, baseline.reads, pc.reads, "candidate %d hashed more than once", i)
	}
}

func TestCollapseCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c, err := New(0.9, zap.NewNop())
	require.NoError(t, err)

	_, err = c.Collapse(ctx, &sliceStream{cands: candidates(0, 1)})
	require.ErrorIs(t, err, context.Canceled)
}

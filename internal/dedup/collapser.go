// Package dedup collapses runs of near-identical candidate frames into a
// single representative, the earliest frame of each run.
package dedup

import (
	"context"
	"fmt"
	"io"

	"github.com/slidex/slidex-extraction-service/internal/domain/entity"
	"github.com/slidex/slidex-extraction-service/internal/domain/port"
	"github.com/slidex/slidex-extraction-service/internal/imaging"
	"go.uber.org/zap"
)

// SimilarityFunc scores two candidates in [0,1]; 1 means identical.
type SimilarityFunc func(a, b port.Candidate) float64

// SignatureSimilarity is the default metric: normalized Hamming similarity
// of the candidates' perceptual signatures.
func SignatureSimilarity(a, b port.Candidate) float64 {
	return imaging.Similarity(imaging.Compute(a.Image), imaging.Compute(b.Image))
}

// Collapser reduces an ordered candidate sequence under a strictness
// threshold: a candidate scoring >= strictness against the last kept frame
// is a duplicate and is discarded.
type Collapser struct {
	strictness float64
	similarity SimilarityFunc
	logger     *zap.Logger

	// useSignatures enables the fast path: each candidate is hashed once
	// and the representative's cached signature is reused per comparison.
	useSignatures bool
}

func New(strictness float64, logger *zap.Logger) (*Collapser, error) {
	c, err := NewWithSimilarity(strictness, SignatureSimilarity, logger)
	if err != nil {
		return nil, err
	}
	c.useSignatures = true
	return c, nil
}

func NewWithSimilarity(strictness float64, similarity SimilarityFunc, logger *zap.Logger) (*Collapser, error) {
	if strictness < 0 || strictness > 1 {
		return nil, fmt.Errorf("duplicate strictness %.3f outside [0,1]", strictness)
	}
	return &Collapser{strictness: strictness, similarity: similarity, logger: logger}, nil
}

// Collapse drains the stream and returns the kept frames in timestamp
// order. Each candidate is compared only against the most recently kept
// frame, so the pass is O(N) in comparisons. Out-of-order input is
// rejected: the single-representative scan is only correct on a
// timestamp-ordered sequence.
func (c *Collapser) Collapse(ctx context.Context, stream port.CandidateStream) ([]entity.Frame, error) {
	var (
		kept    []entity.Frame
		rep     port.Candidate
		repSig  imaging.Signature
		haveRep bool
		prevTS  float64
		seen    int
	)

	for {
		cand, err := stream.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		seen++

		if haveRep && cand.Timestamp <= prevTS {
			return nil, fmt.Errorf("candidate stream out of order: %.3f after %.3f", cand.Timestamp, prevTS)
		}
		prevTS = cand.Timestamp

		var candSig imaging.Signature
		if c.useSignatures {
			candSig = imaging.Compute(cand.Image)
		}

		if haveRep {
			var sim float64
			if c.useSignatures {
				sim = imaging.Similarity(repSig, candSig)
			} else {
				sim = c.similarity(rep, cand)
			}
			if sim >= c.strictness {
				// Representative stays the first frame of the run.
				c.logger.Debug("duplicate collapsed",
					zap.Float64("timestamp", cand.Timestamp),
					zap.Float64("similarity", sim),
				)
				continue
			}
		}

		if !c.useSignatures {
			candSig = imaging.Compute(cand.Image)
		}
		kept = append(kept, entity.Frame{
			Timestamp: cand.Timestamp,
			Image:     cand.Image,
			Signature: candSig,
			Included:  true,
		})
		rep = cand
		repSig = candSig
		haveRep = true
	}

	c.logger.Info("deduplication finished",
		zap.Int("candidates_in", seen),
		zap.Int("frames_kept", len(kept)),
		zap.Float64("strictness", c.strictness),
	)
	return kept, nil
}

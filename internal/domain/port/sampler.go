package port

import (
	"context"
	"image"
)

// Candidate is one raw frame emitted by scene-change detection, before
// deduplication.
type Candidate struct {
	Timestamp float64
	Image     image.Image
}

// CandidateStream yields candidates in strictly non-decreasing timestamp
// order. Next returns io.EOF when the stream is exhausted; a stream is not
// restartable. Close releases decoder resources and is safe to call more
// than once.
type CandidateStream interface {
	Next(ctx context.Context) (Candidate, error)
	Close() error
}

// SceneSampler abstracts the external decode/scene-detection engine so it
// can be swapped or faked in tests without decoding real video.
//
// Sensitivity is in [0,1]: lower values emit more candidates. Open reports
// incremental decode progress (fraction of video duration processed)
// through onProgress, which may be nil.
type SceneSampler interface {
	Open(ctx context.Context, sourcePath string, sensitivity float64, onProgress func(float64)) (CandidateStream, error)
}

package entity

import (
	"fmt"
	"image"

	"github.com/slidex/slidex-extraction-service/internal/imaging"
)

// Frame is one collapsed slide candidate. Index is its dense position in
// the store, Timestamp the source-video offset in seconds.
type Frame struct {
	Index     int
	Timestamp float64
	Image     image.Image
	Signature imaging.Signature
	Included  bool
}

// FrameStore is the ordered, indexed collection of collapsed frames
// produced by one extraction run. It is immutable after construction;
// inclusion flags live in SelectionState, never here.
type FrameStore struct {
	frames []Frame
}

// NewFrameStore builds a store over frames already in timestamp order,
// relabeling Index densely as 0..N-1. It rejects out-of-order input since
// every downstream stage depends on strictly increasing timestamps.
func NewFrameStore(frames []Frame) (*FrameStore, error) {
	for i := range frames {
		if i > 0 && frames[i].Timestamp <= frames[i-1].Timestamp {
			return nil, fmt.Errorf("frame timestamps not strictly increasing at position %d (%.3f after %.3f)",
				i, frames[i].Timestamp, frames[i-1].Timestamp)
		}
		frames[i].Index = i
		frames[i].Included = true
	}
	return &FrameStore{frames: frames}, nil
}

func (s *FrameStore) Len() int {
	return len(s.frames)
}

func (s *FrameStore) Frame(index int) (Frame, error) {
	if index < 0 || index >= len(s.frames) {
		return Frame{}, fmt.Errorf("%w: %d of %d", ErrOutOfRange, index, len(s.frames))
	}
	return s.frames[index], nil
}

// Frames returns the frames in index order. The slice is a copy; the
// underlying images are shared.
func (s *FrameStore) Frames() []Frame {
	out := make([]Frame, len(s.frames))
	copy(out, s.frames)
	return out
}

// Thumbnail renders a review-sized preview of the frame at index, scaled to
// fit maxW x maxH with the aspect ratio preserved.
func (s *FrameStore) Thumbnail(index, maxW, maxH int) (image.Image, error) {
	f, err := s.Frame(index)
	if err != nil {
		return nil, err
	}
	return imaging.Thumbnail(f.Image, maxW, maxH), nil
}

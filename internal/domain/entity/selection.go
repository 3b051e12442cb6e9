package entity

import (
	"fmt"
	"sync"
)

// SelectionState tracks per-frame inclusion over a frame store. Exclusion
// is soft: it hides frames from export without removing them from the
// store. All frames start included.
//
// Toggles are atomic with respect to reads from other goroutines; the state
// is discarded when a new extraction starts.
type SelectionState struct {
	mu       sync.Mutex
	included []bool
}

func NewSelectionState(frameCount int) *SelectionState {
	included := make([]bool, frameCount)
	for i := range included {
		included[i] = true
	}
	return &SelectionState{included: included}
}

// Toggle flips the inclusion flag for the frame at index.
func (s *SelectionState) Toggle(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.included) {
		return fmt.Errorf("%w: %d of %d", ErrOutOfRange, index, len(s.included))
	}
	s.included[index] = !s.included[index]
	return nil
}

func (s *SelectionState) SelectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.included {
		s.included[i] = true
	}
}

func (s *SelectionState) DeselectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.included {
		s.included[i] = false
	}
}

func (s *SelectionState) Included(index int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.included) {
		return false, fmt.Errorf("%w: %d of %d", ErrOutOfRange, index, len(s.included))
	}
	return s.included[index], nil
}

func (s *SelectionState) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.included)
}

func (s *SelectionState) IncludedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, inc := range s.included {
		if inc {
			n++
		}
	}
	return n
}

// IncludedIndices returns the indices of all included frames in ascending
// order, which is also export order.
func (s *SelectionState) IncludedIndices() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, 0, len(s.included))
	for i, inc := range s.included {
		if inc {
			out = append(out, i)
		}
	}
	return out
}

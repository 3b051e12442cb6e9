package entity

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFrames(timestamps ...float64) []Frame {
	frames := make([]Frame, len(timestamps))
	for i, ts := range timestamps {
		frames[i] = Frame{
			Timestamp: ts,
			Image:     image.NewRGBA(image.Rect(0, 0, 8, 6)),
		}
	}
	return frames
}

func TestNewFrameStoreReindexesDensely(t *testing.T) {
	store, err := NewFrameStore(testFrames(0, 1.5, 7.25))
	require.NoError(t, err)

	require.Equal(t, 3, store.Len())
	prev := -1.0
	for i, f := range store.Frames() {
		assert.Equal(t, i, f.Index)
		assert.True(t, f.Included)
		assert.Greater(t, f.Timestamp, prev)
		prev = f.Timestamp
	}
}

func TestNewFrameStoreRejectsOutOfOrderTimestamps(t *testing.T) {
	_, err := NewFrameStore(testFrames(0, 3, 2))
	require.Error(t, err)

	_, err = NewFrameStore(testFrames(0, 1, 1))
	require.Error(t, err, "equal timestamps are not strictly increasing")
}

func TestFrameStoreEmptyIsValid(t *testing.T) {
	store, err := NewFrameStore(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, store.Len())
}

func TestFrameStoreFrameOutOfRange(t *testing.T) {
	store, err := NewFrameStore(testFrames(0, 1))
	require.NoError(t, err)

	_, err = store.Frame(2)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = store.Frame(-1)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestFrameStoreThumbnailPreservesAspect(t *testing.T) {
	frames := []Frame{{
		Timestamp: 0,
		Image:     image.NewRGBA(image.Rect(0, 0, 1920, 1080)),
	}}
	store, err := NewFrameStore(frames)
	require.NoError(t, err)

	thumb, err := store.Thumbnail(0, 220, 140)
	require.NoError(t, err)

	b := thumb.Bounds()
	assert.Equal(t, 220, b.Dx())
	assert.Equal(t, 123, b.Dy()) // 1080 * 220/1920, truncated
}

package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type JobState string

const (
	JobStateIdle        JobState = "IDLE"
	JobStateExtracting  JobState = "EXTRACTING"
	JobStateCollapsing  JobState = "COLLAPSING"
	JobStateReviewReady JobState = "REVIEW_READY"
	JobStateExporting   JobState = "EXPORTING"
	JobStateCompleted   JobState = "COMPLETED"
	JobStateFailed      JobState = "FAILED"
	JobStateCancelled   JobState = "CANCELLED"
)

// Terminal reports whether the state is one the job never leaves.
func (s JobState) Terminal() bool {
	switch s {
	case JobStateCompleted, JobStateFailed, JobStateCancelled:
		return true
	}
	return false
}

// Running reports whether the background worker is still busy on this state.
func (s JobState) Running() bool {
	switch s {
	case JobStateExtracting, JobStateCollapsing, JobStateExporting:
		return true
	}
	return false
}

// PipelineJob tracks one extraction run. Source path and thresholds are
// fixed for the lifetime of the job; progress never decreases.
type PipelineJob struct {
	ID               uuid.UUID
	SourcePath       string
	SceneSensitivity float64
	DupStrictness    float64
	State            JobState
	Progress         float64
	ErrorMessage     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CompletedAt      *time.Time
}

func NewPipelineJob(sourcePath string, sceneSensitivity, dupStrictness float64) (*PipelineJob, error) {
	if sceneSensitivity < 0 || sceneSensitivity > 1 {
		return nil, fmt.Errorf("scene sensitivity %.3f outside [0,1]", sceneSensitivity)
	}
	if dupStrictness < 0 || dupStrictness > 1 {
		return nil, fmt.Errorf("duplicate strictness %.3f outside [0,1]", dupStrictness)
	}
	now := time.Now().UTC()
	return &PipelineJob{
		ID:               uuid.New(),
		SourcePath:       sourcePath,
		SceneSensitivity: sceneSensitivity,
		DupStrictness:    dupStrictness,
		State:            JobStateIdle,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func (j *PipelineJob) MarkExtracting() {
	j.State = JobStateExtracting
	j.UpdatedAt = time.Now().UTC()
}

func (j *PipelineJob) MarkCollapsing() {
	j.State = JobStateCollapsing
	j.UpdatedAt = time.Now().UTC()
}

func (j *PipelineJob) MarkReviewReady() {
	j.State = JobStateReviewReady
	j.SetProgress(1)
	j.UpdatedAt = time.Now().UTC()
}

func (j *PipelineJob) MarkExporting() {
	j.State = JobStateExporting
	j.UpdatedAt = time.Now().UTC()
}

func (j *PipelineJob) MarkCompleted() {
	now := time.Now().UTC()
	j.State = JobStateCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
}

func (j *PipelineJob) MarkFailed(errMsg string) {
	j.State = JobStateFailed
	j.ErrorMessage = errMsg
	j.UpdatedAt = time.Now().UTC()
}

func (j *PipelineJob) MarkCancelled() {
	j.State = JobStateCancelled
	j.UpdatedAt = time.Now().UTC()
}

// SetProgress advances the progress fraction. Values below the current
// progress or outside [0,1] are clamped so the indicator stays monotone.
func (j *PipelineJob) SetProgress(p float64) {
	if p > 1 {
		p = 1
	}
	if p <= j.Progress {
		return
	}
	j.Progress = p
	j.UpdatedAt = time.Now().UTC()
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the queue-side state of a run job, distinct from the
// account lifecycle status which gates whether the run may proceed.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether the job has finished for good
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// RunJob is one "run this account" request. It lives in the queue until
// terminal, then is retained for a bounded window for inspection and pruned.
type RunJob struct {
	ID          string    `json:"id" badgerhold:"key"`
	AccountID   int       `json:"account_id" badgerhold:"index"`
	Status      JobStatus `json:"status" badgerhold:"index"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
	NextRunAt   time.Time `json:"next_run_at"` // not before this time; pushed out by backoff
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

// NewRunJob creates a pending run job for an account
func NewRunJob(accountID, maxAttempts int) *RunJob {
	now := time.Now()
	return &RunJob{
		ID:          "job_" + uuid.New().String(),
		AccountID:   accountID,
		Status:      JobStatusPending,
		MaxAttempts: maxAttempts,
		NextRunAt:   now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

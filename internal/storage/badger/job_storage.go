package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/SamiESK/insta-scrapper/internal/interfaces"
	"github.com/SamiESK/insta-scrapper/internal/models"
)

// JobStorage implements the JobStorage interface for Badger
type JobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(db *BadgerDB, logger arbor.ILogger) interfaces.JobStorage {
	return &JobStorage{db: db, logger: logger}
}

func (s *JobStorage) SaveJob(ctx context.Context, job *models.RunJob) error {
	if job.ID == "" {
		return fmt.Errorf("job ID is required")
	}
	job.UpdatedAt = time.Now()

	if err := s.db.Store().Upsert(job.ID, job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

func (s *JobStorage) GetJob(ctx context.Context, id string) (*models.RunJob, error) {
	var job models.RunJob
	if err := s.db.Store().Get(id, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("job not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// NextDue returns the oldest pending job whose NextRunAt has passed, or nil.
// Claiming is the dispatcher's responsibility; this is just the lookup.
func (s *JobStorage) NextDue(ctx context.Context, now time.Time) (*models.RunJob, error) {
	var jobs []models.RunJob
	query := badgerhold.Where("Status").Eq(models.JobStatusPending).SortBy("CreatedAt")
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to query pending jobs: %w", err)
	}

	for i := range jobs {
		if !jobs[i].NextRunAt.After(now) {
			return &jobs[i], nil
		}
	}
	return nil, nil
}

func (s *JobStorage) ListJobs(ctx context.Context, accountID int) ([]*models.RunJob, error) {
	var jobs []models.RunJob
	query := badgerhold.Where("AccountID").Eq(accountID).SortBy("CreatedAt").Reverse()
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	result := make([]*models.RunJob, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

// RequeueRunning returns orphaned running jobs to pending, due immediately.
// The attempt count is kept: the crashed run consumed its attempt.
func (s *JobStorage) RequeueRunning(ctx context.Context) (int, error) {
	var jobs []models.RunJob
	query := badgerhold.Where("Status").Eq(models.JobStatusRunning)
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return 0, fmt.Errorf("failed to query running jobs: %w", err)
	}

	requeued := 0
	for i := range jobs {
		jobs[i].Status = models.JobStatusPending
		jobs[i].NextRunAt = time.Now()
		jobs[i].UpdatedAt = time.Now()
		if err := s.db.Store().Upsert(jobs[i].ID, &jobs[i]); err != nil {
			s.logger.Warn().Str("job_id", jobs[i].ID).Err(err).Msg("Failed to requeue orphaned job")
			continue
		}
		requeued++
	}
	return requeued, nil
}

// PruneTerminal removes completed and failed jobs past their retention window
func (s *JobStorage) PruneTerminal(ctx context.Context, completedBefore, failedBefore time.Time) (int, error) {
	pruned := 0

	for _, target := range []struct {
		status models.JobStatus
		before time.Time
	}{
		{models.JobStatusCompleted, completedBefore},
		{models.JobStatusFailed, failedBefore},
	} {
		var jobs []models.RunJob
		query := badgerhold.Where("Status").Eq(target.status)
		if err := s.db.Store().Find(&jobs, query); err != nil {
			return pruned, fmt.Errorf("failed to query %s jobs: %w", target.status, err)
		}
		for i := range jobs {
			if jobs[i].CompletedAt.IsZero() || jobs[i].CompletedAt.After(target.before) {
				continue
			}
			if err := s.db.Store().Delete(jobs[i].ID, &models.RunJob{}); err != nil {
				s.logger.Warn().Str("job_id", jobs[i].ID).Err(err).Msg("Failed to prune job")
				continue
			}
			pruned++
		}
	}

	if pruned > 0 {
		s.logger.Debug().Int("pruned", pruned).Msg("Pruned terminal jobs")
	}
	return pruned, nil
}

package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/SamiESK/insta-scrapper/internal/common"
	"github.com/SamiESK/insta-scrapper/internal/interfaces"
	"github.com/SamiESK/insta-scrapper/internal/models"
)

var (
	// ErrAccountRunning is the conflict returned when a start request hits an
	// account that already has an in-flight run
	ErrAccountRunning = errors.New("queue: account already running")

	// ErrInvalidState is returned when the account's lifecycle state does not
	// permit a start
	ErrInvalidState = errors.New("queue: account state does not permit start")
)

// RunFunc executes one account run. The production wiring points this at the
// session runner; tests substitute a stub.
type RunFunc func(ctx context.Context, account *models.Account) error

// Service owns the run-job queue: enqueueing with lifecycle gating, a bounded
// worker pool with rate-limited starts, retry with exponential backoff, and
// retention pruning of terminal jobs.
type Service struct {
	storage interfaces.StorageManager
	run     RunFunc
	config  common.QueueConfig
	policy  *RetryPolicy
	limiter *rate.Limiter
	logger  arbor.ILogger

	// claimMu serializes claimNext across workers: the read-then-write claim
	// must be atomic or two workers can mark the same job running
	claimMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

// NewService creates the queue service. Start must be called to launch the
// workers.
func NewService(storage interfaces.StorageManager, run RunFunc, config common.QueueConfig, logger arbor.ILogger) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	startsPerMinute := config.StartsPerMinute
	if startsPerMinute <= 0 {
		startsPerMinute = 10
	}

	return &Service{
		storage: storage,
		run:     run,
		config:  config,
		policy:  NewRetryPolicy(config),
		limiter: rate.NewLimiter(rate.Limit(float64(startsPerMinute)/60.0), 1),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// StartAccount enqueues a run for the account. The lifecycle flag is flipped
// to running before the job is written, so a dispatched worker can never
// observe a stale idle state. A second start against a running account is a
// conflict, never a second browser.
func (s *Service) StartAccount(ctx context.Context, accountID int) (string, error) {
	account, err := s.storage.AccountStorage().GetAccount(ctx, accountID)
	if err != nil {
		return "", fmt.Errorf("load account %d: %w", accountID, err)
	}

	if account.Status == models.AccountStatusRunning {
		return "", fmt.Errorf("%w: account %d", ErrAccountRunning, accountID)
	}
	if !account.Status.CanStart() {
		return "", fmt.Errorf("%w: account %d is %s", ErrInvalidState, accountID, account.Status)
	}

	// Status first, job second. The worker re-reads status at dispatch and
	// must see running.
	if err := s.storage.AccountStorage().UpdateStatus(ctx, accountID, models.AccountStatusRunning); err != nil {
		return "", fmt.Errorf("mark account %d running: %w", accountID, err)
	}

	maxAttempts := s.config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	job := models.NewRunJob(accountID, maxAttempts)
	if err := s.storage.JobStorage().SaveJob(ctx, job); err != nil {
		// Roll the flag back so the account is not stranded in running
		if revertErr := s.storage.AccountStorage().UpdateStatus(ctx, accountID, account.Status); revertErr != nil {
			s.logger.Error().Err(revertErr).Int("account_id", accountID).Msg("Failed to revert lifecycle after enqueue failure")
		}
		return "", fmt.Errorf("enqueue job for account %d: %w", accountID, err)
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Int("account_id", accountID).
		Msg("Account run enqueued")
	return job.ID, nil
}

// StopAccount requests a cooperative stop. The running worker observes the
// flag at the next item boundary.
func (s *Service) StopAccount(ctx context.Context, accountID int) error {
	status, err := s.storage.AccountStorage().GetStatus(ctx, accountID)
	if err != nil {
		return fmt.Errorf("load account %d: %w", accountID, err)
	}
	if status != models.AccountStatusRunning {
		return fmt.Errorf("%w: account %d is %s, nothing to stop", ErrInvalidState, accountID, status)
	}
	if err := s.storage.AccountStorage().UpdateStatus(ctx, accountID, models.AccountStatusStopped); err != nil {
		return fmt.Errorf("mark account %d stopped: %w", accountID, err)
	}
	s.logger.Info().Int("account_id", accountID).Msg("Stop requested")
	return nil
}

// Start launches the worker pool and the retention pruner. Jobs left in
// running by a previous process are requeued first: the queue is
// single-process, so any running row at boot is an orphan from a crash.
func (s *Service) Start() {
	if requeued, err := s.storage.JobStorage().RequeueRunning(s.ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to requeue orphaned jobs")
	} else if requeued > 0 {
		s.logger.Info().Int("requeued", requeued).Msg("Requeued jobs orphaned by a previous run")
	}

	concurrency := s.config.Concurrency
	if concurrency <= 0 {
		concurrency = 3
	}

	s.logger.Info().
		Int("concurrency", concurrency).
		Int("max_attempts", s.config.MaxAttempts).
		Msg("Starting queue workers")

	for i := 0; i < concurrency; i++ {
		workerID := i
		common.SafeGo(s.logger, "queue-worker", func() {
			s.worker(workerID)
		})
	}
	common.SafeGo(s.logger, "queue-pruner", func() {
		s.pruneLoop()
	})
}

// Stop cancels the workers. In-flight runs observe the context and wind down.
func (s *Service) Stop() {
	s.logger.Info().Msg("Stopping queue workers")
	s.cancel()
}

// worker polls for due jobs and executes them one at a time
func (s *Service) worker(workerID int) {
	pollInterval := common.ParseDuration(s.config.PollInterval, time.Second)

	// Stagger worker starts to spread claim contention
	stagger := pollInterval / time.Duration(maxInt(s.config.Concurrency, 1)) * time.Duration(workerID)
	select {
	case <-s.ctx.Done():
		return
	case <-time.After(stagger):
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			job, err := s.claimNext()
			if err != nil {
				s.logger.Warn().Err(err).Int("worker_id", workerID).Msg("Job claim failed")
				continue
			}
			if job == nil {
				continue
			}

			// Rate-limit starts independently of concurrency to smooth bursts
			if err := s.limiter.Wait(s.ctx); err != nil {
				// Shutdown hit between claim and dispatch; put the job back
				s.releaseClaim(job)
				return
			}
			s.handle(job, workerID)
		}
	}
}

// claimNext takes the oldest due pending job and marks it running. The lock
// makes the lookup and the running transition one atomic step, so two
// workers polling at the same instant can never both claim the same job.
func (s *Service) claimNext() (*models.RunJob, error) {
	s.claimMu.Lock()
	defer s.claimMu.Unlock()

	job, err := s.storage.JobStorage().NextDue(s.ctx, time.Now())
	if err != nil || job == nil {
		return nil, err
	}

	job.Status = models.JobStatusRunning
	job.Attempts++
	job.UpdatedAt = time.Now()
	if err := s.storage.JobStorage().SaveJob(s.ctx, job); err != nil {
		return nil, fmt.Errorf("claim job %s: %w", job.ID, err)
	}
	return job, nil
}

// releaseClaim undoes a claim that never dispatched, returning the job to
// the queue with its attempt budget intact
func (s *Service) releaseClaim(job *models.RunJob) {
	job.Status = models.JobStatusPending
	job.Attempts--
	job.UpdatedAt = time.Now()
	if err := s.storage.JobStorage().SaveJob(context.Background(), job); err != nil {
		s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to release claimed job")
	}
}

// handle executes one claimed job. The account's lifecycle state is re-read
// first: a non-running account means a stop raced ahead of dispatch, and the
// handler exits without side effects.
func (s *Service) handle(job *models.RunJob, workerID int) {
	logger := s.logger.WithCorrelationId(job.ID)

	account, err := s.storage.AccountStorage().GetAccount(s.ctx, job.AccountID)
	if err != nil {
		logger.Warn().Err(err).Int("account_id", job.AccountID).Msg("Account vanished, failing job")
		s.finishJob(job, fmt.Errorf("account %d not found: %w", job.AccountID, err))
		return
	}

	if account.Status != models.AccountStatusRunning {
		logger.Info().
			Int("account_id", account.ID).
			Str("status", string(account.Status)).
			Msg("Account no longer running at dispatch, exiting as no-op")
		s.finishJob(job, nil)
		return
	}

	logger.Info().
		Int("worker_id", workerID).
		Int("account_id", account.ID).
		Int("attempt", job.Attempts).
		Msg("Executing account run")

	runErr := s.run(s.ctx, account)
	if runErr != nil {
		// The worker owns the running -> error transition
		if err := s.storage.AccountStorage().UpdateStatus(s.ctx, account.ID, models.AccountStatusError); err != nil {
			logger.Error().Err(err).Int("account_id", account.ID).Msg("Failed to set error status")
		}
		s.appendRunLog(account.ID, runErr)
		logger.Warn().Err(runErr).Int("account_id", account.ID).Msg("Account run failed")
	}
	s.finishJob(job, runErr)
}

// finishJob applies the retry policy: requeue with backoff while attempts
// remain, otherwise mark terminal
func (s *Service) finishJob(job *models.RunJob, runErr error) {
	now := time.Now()
	job.UpdatedAt = now

	if runErr == nil {
		job.Status = models.JobStatusCompleted
		job.Error = ""
		job.CompletedAt = now
	} else if job.Attempts < job.MaxAttempts {
		backoff := s.policy.CalculateBackoff(job.Attempts - 1)
		job.Status = models.JobStatusPending
		job.Error = runErr.Error()
		job.NextRunAt = now.Add(backoff)
		s.logger.Info().
			Str("job_id", job.ID).
			Int("attempt", job.Attempts).
			Dur("backoff", backoff).
			Msg("Run failed, retry scheduled")
	} else {
		job.Status = models.JobStatusFailed
		job.Error = runErr.Error()
		job.CompletedAt = now
		s.logger.Warn().
			Str("job_id", job.ID).
			Int("attempts", job.Attempts).
			Msg("Run failed terminally, attempts exhausted")
	}

	if err := s.storage.JobStorage().SaveJob(s.ctx, job); err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to persist job outcome")
	}
}

// appendRunLog writes the failure to the account's durable log stream
func (s *Service) appendRunLog(accountID int, runErr error) {
	entry := &models.LogEntry{
		ID:        fmt.Sprintf("log_%d_%d", accountID, time.Now().UnixNano()),
		AccountID: accountID,
		Level:     "error",
		Message:   runErr.Error(),
		Timestamp: time.Now(),
	}
	if err := s.storage.LogStorage().AppendLog(s.ctx, entry); err != nil {
		s.logger.Warn().Err(err).Int("account_id", accountID).Msg("Failed to append run log")
	}
}

// pruneLoop deletes terminal jobs past their retention windows
func (s *Service) pruneLoop() {
	interval := common.ParseDuration(s.config.PruneInterval, time.Hour)
	completedRetention := common.ParseDuration(s.config.CompletedRetention, 24*time.Hour)
	failedRetention := common.ParseDuration(s.config.FailedRetention, 72*time.Hour)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			removed, err := s.storage.JobStorage().PruneTerminal(
				s.ctx,
				now.Add(-completedRetention),
				now.Add(-failedRetention),
			)
			if err != nil {
				s.logger.Warn().Err(err).Msg("Job pruning failed")
				continue
			}
			if removed > 0 {
				s.logger.Info().Int("removed", removed).Msg("Pruned terminal jobs")
			}
		}
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

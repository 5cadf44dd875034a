package interfaces

import (
	"context"
	"time"

	"github.com/SamiESK/insta-scrapper/internal/models"
)

// AccountStorage persists accounts and their lifecycle state.
// Username uniqueness is enforced at this layer.
type AccountStorage interface {
	SaveAccount(ctx context.Context, account *models.Account) error
	GetAccount(ctx context.Context, id int) (*models.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*models.Account, error)
	ListAccounts(ctx context.Context) ([]*models.Account, error)

	// GetStatus re-reads only the lifecycle field; workers poll this between reels
	GetStatus(ctx context.Context, id int) (models.AccountStatus, error)
	UpdateStatus(ctx context.Context, id int, status models.AccountStatus) error
	TouchLastActive(ctx context.Context, id int) error

	// DeleteAccount fails while the account is running - a job may reference it
	DeleteAccount(ctx context.Context, id int) error
}

// ReelStorage persists discovered reels with (account, url) uniqueness
type ReelStorage interface {
	// SaveReel inserts the reel unless one with the same account and URL
	// already exists. Returns true when a new row was created.
	SaveReel(ctx context.Context, reel *models.Reel) (bool, error)
	GetReelByURL(ctx context.Context, accountID int, url string) (*models.Reel, error)
	ListReels(ctx context.Context, accountID int) ([]*models.Reel, error)
}

// MessageStorage persists outreach records with (reel, target user) uniqueness
type MessageStorage interface {
	HasMessage(ctx context.Context, reelID, targetUser string) (bool, error)
	SaveMessage(ctx context.Context, msg *models.DirectMessage) error
	ListMessages(ctx context.Context, reelID string) ([]*models.DirectMessage, error)
}

// LogStorage is the append-only durable log sink. The core only writes.
type LogStorage interface {
	AppendLog(ctx context.Context, entry *models.LogEntry) error
}

// JobStorage persists run jobs for the queue
type JobStorage interface {
	SaveJob(ctx context.Context, job *models.RunJob) error
	GetJob(ctx context.Context, id string) (*models.RunJob, error)
	// NextDue returns the oldest pending job whose NextRunAt has passed, or nil
	NextDue(ctx context.Context, now time.Time) (*models.RunJob, error)
	ListJobs(ctx context.Context, accountID int) ([]*models.RunJob, error)
	// PruneTerminal deletes completed jobs older than completedBefore and
	// failed jobs older than failedBefore, returning the number removed
	PruneTerminal(ctx context.Context, completedBefore, failedBefore time.Time) (int, error)
	// RequeueRunning returns every running job to pending. Called once at
	// startup: a running row at boot was orphaned by a crash.
	RequeueRunning(ctx context.Context) (int, error)
}

// StorageManager bundles the storage interfaces behind one lifecycle
type StorageManager interface {
	AccountStorage() AccountStorage
	ReelStorage() ReelStorage
	MessageStorage() MessageStorage
	LogStorage() LogStorage
	JobStorage() JobStorage
	Close() error
}

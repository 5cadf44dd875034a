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

// AccountStorage implements the AccountStorage interface for Badger
type AccountStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewAccountStorage creates a new AccountStorage instance
func NewAccountStorage(db *BadgerDB, logger arbor.ILogger) interfaces.AccountStorage {
	return &AccountStorage{db: db, logger: logger}
}

func (s *AccountStorage) SaveAccount(ctx context.Context, account *models.Account) error {
	if account.ID == 0 {
		return fmt.Errorf("account ID is required")
	}
	if account.Username == "" {
		return fmt.Errorf("account username is required")
	}

	// Enforce username uniqueness across other account IDs
	existing, err := s.GetAccountByUsername(ctx, account.Username)
	if err == nil && existing.ID != account.ID {
		return fmt.Errorf("username %s already taken by account %d", account.Username, existing.ID)
	}

	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}
	account.UpdatedAt = time.Now()
	if account.Status == "" {
		account.Status = models.AccountStatusIdle
	}

	if err := s.db.Store().Upsert(account.ID, account); err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

func (s *AccountStorage) GetAccount(ctx context.Context, id int) (*models.Account, error) {
	var account models.Account
	if err := s.db.Store().Get(id, &account); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("account not found: %d", id)
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

func (s *AccountStorage) GetAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	var accounts []models.Account
	if err := s.db.Store().Find(&accounts, badgerhold.Where("Username").Eq(username)); err != nil {
		return nil, fmt.Errorf("failed to query account by username: %w", err)
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("account not found: %s", username)
	}
	return &accounts[0], nil
}

func (s *AccountStorage) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	var accounts []models.Account
	if err := s.db.Store().Find(&accounts, badgerhold.Where("ID").Ne(0).SortBy("ID")); err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	result := make([]*models.Account, len(accounts))
	for i := range accounts {
		result[i] = &accounts[i]
	}
	return result, nil
}

func (s *AccountStorage) GetStatus(ctx context.Context, id int) (models.AccountStatus, error) {
	account, err := s.GetAccount(ctx, id)
	if err != nil {
		return "", err
	}
	return account.Status, nil
}

// UpdateStatus writes the lifecycle field. Exactly two logical actors call
// this - the start/stop trigger and the worker - and last write wins.
func (s *AccountStorage) UpdateStatus(ctx context.Context, id int, status models.AccountStatus) error {
	account, err := s.GetAccount(ctx, id)
	if err != nil {
		return err
	}
	account.Status = status
	account.UpdatedAt = time.Now()

	if err := s.db.Store().Update(id, account); err != nil {
		return fmt.Errorf("failed to update account status: %w", err)
	}
	return nil
}

func (s *AccountStorage) TouchLastActive(ctx context.Context, id int) error {
	account, err := s.GetAccount(ctx, id)
	if err != nil {
		return err
	}
	account.LastActiveAt = time.Now()
	account.UpdatedAt = time.Now()

	if err := s.db.Store().Update(id, account); err != nil {
		return fmt.Errorf("failed to update last active: %w", err)
	}
	return nil
}

// DeleteAccount removes an account. Rejected while a run is in flight - the
// stop trigger has to land first.
func (s *AccountStorage) DeleteAccount(ctx context.Context, id int) error {
	account, err := s.GetAccount(ctx, id)
	if err != nil {
		return err
	}
	if account.Status == models.AccountStatusRunning {
		return fmt.Errorf("account %d has a run in flight - stop it before deleting", id)
	}

	if err := s.db.Store().Delete(id, &models.Account{}); err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return nil
}

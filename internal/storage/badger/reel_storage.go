package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/SamiESK/insta-scrapper/internal/interfaces"
	"github.com/SamiESK/insta-scrapper/internal/models"
)

// ReelStorage implements the ReelStorage interface for Badger
type ReelStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewReelStorage creates a new ReelStorage instance
func NewReelStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ReelStorage {
	return &ReelStorage{db: db, logger: logger}
}

// SaveReel inserts the reel unless the (account, url) pair is already known.
// Returns true when a new row was created.
func (s *ReelStorage) SaveReel(ctx context.Context, reel *models.Reel) (bool, error) {
	if reel.AccountID == 0 {
		return false, fmt.Errorf("reel account ID is required")
	}
	if reel.URL == "" {
		return false, fmt.Errorf("reel URL is required")
	}

	existing, err := s.GetReelByURL(ctx, reel.AccountID, reel.URL)
	if err != nil {
		return false, err
	}
	if existing != nil {
		s.logger.Debug().
			Int("account_id", reel.AccountID).
			Str("url", reel.URL).
			Msg("Reel already known - skipping insert")
		return false, nil
	}

	if reel.ID == "" {
		reel.ID = "reel_" + uuid.New().String()
	}
	if reel.DiscoveredAt.IsZero() {
		reel.DiscoveredAt = time.Now()
	}

	if err := s.db.Store().Insert(reel.ID, reel); err != nil {
		return false, fmt.Errorf("failed to save reel: %w", err)
	}
	return true, nil
}

// GetReelByURL returns the reel for an (account, url) pair, or nil
func (s *ReelStorage) GetReelByURL(ctx context.Context, accountID int, url string) (*models.Reel, error) {
	var reels []models.Reel
	query := badgerhold.Where("AccountID").Eq(accountID).And("URL").Eq(url)
	if err := s.db.Store().Find(&reels, query); err != nil {
		return nil, fmt.Errorf("failed to query reel by URL: %w", err)
	}
	if len(reels) == 0 {
		return nil, nil
	}
	return &reels[0], nil
}

func (s *ReelStorage) ListReels(ctx context.Context, accountID int) ([]*models.Reel, error) {
	var reels []models.Reel
	query := badgerhold.Where("AccountID").Eq(accountID).SortBy("DiscoveredAt").Reverse()
	if err := s.db.Store().Find(&reels, query); err != nil {
		return nil, fmt.Errorf("failed to list reels: %w", err)
	}

	result := make([]*models.Reel, len(reels))
	for i := range reels {
		result[i] = &reels[i]
	}
	return result, nil
}

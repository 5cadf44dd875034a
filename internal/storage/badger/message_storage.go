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

// MessageStorage implements the MessageStorage interface for Badger
type MessageStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewMessageStorage creates a new MessageStorage instance
func NewMessageStorage(db *BadgerDB, logger arbor.ILogger) interfaces.MessageStorage {
	return &MessageStorage{db: db, logger: logger}
}

// HasMessage reports whether an outreach record exists for the
// (reel, target user) pair. This is the de-duplication key that prevents
// messaging the same person twice for the same reel.
func (s *MessageStorage) HasMessage(ctx context.Context, reelID, targetUser string) (bool, error) {
	var msgs []models.DirectMessage
	query := badgerhold.Where("ReelID").Eq(reelID).And("TargetUser").Eq(targetUser).Limit(1)
	if err := s.db.Store().Find(&msgs, query); err != nil {
		return false, fmt.Errorf("failed to query messages: %w", err)
	}
	return len(msgs) > 0, nil
}

func (s *MessageStorage) SaveMessage(ctx context.Context, msg *models.DirectMessage) error {
	if msg.ReelID == "" || msg.TargetUser == "" {
		return fmt.Errorf("message reel ID and target user are required")
	}

	exists, err := s.HasMessage(ctx, msg.ReelID, msg.TargetUser)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("outreach record already exists for reel %s and user %s", msg.ReelID, msg.TargetUser)
	}

	if msg.ID == "" {
		msg.ID = "dm_" + uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	if err := s.db.Store().Insert(msg.ID, msg); err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

func (s *MessageStorage) ListMessages(ctx context.Context, reelID string) ([]*models.DirectMessage, error) {
	var msgs []models.DirectMessage
	if err := s.db.Store().Find(&msgs, badgerhold.Where("ReelID").Eq(reelID)); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	result := make([]*models.DirectMessage, len(msgs))
	for i := range msgs {
		result[i] = &msgs[i]
	}
	return result, nil
}

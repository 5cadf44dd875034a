package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/SamiESK/insta-scrapper/internal/common"
	"github.com/SamiESK/insta-scrapper/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db      *BadgerDB
	account interfaces.AccountStorage
	reel    interfaces.ReelStorage
	message interfaces.MessageStorage
	log     interfaces.LogStorage
	job     interfaces.JobStorage
	logger  arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:      db,
		account: NewAccountStorage(db, logger),
		reel:    NewReelStorage(db, logger),
		message: NewMessageStorage(db, logger),
		log:     NewLogStorage(db, logger),
		job:     NewJobStorage(db, logger),
		logger:  logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// AccountStorage returns the Account storage interface
func (m *Manager) AccountStorage() interfaces.AccountStorage {
	return m.account
}

// ReelStorage returns the Reel storage interface
func (m *Manager) ReelStorage() interfaces.ReelStorage {
	return m.reel
}

// MessageStorage returns the DirectMessage storage interface
func (m *Manager) MessageStorage() interfaces.MessageStorage {
	return m.message
}

// LogStorage returns the LogEntry storage interface
func (m *Manager) LogStorage() interfaces.LogStorage {
	return m.log
}

// JobStorage returns the RunJob storage interface
func (m *Manager) JobStorage() interfaces.JobStorage {
	return m.job
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

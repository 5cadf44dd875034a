package models

import "time"

// AccountStatus is the authoritative lifecycle state per account.
//
// Transitions:
//   - idle|stopped|error -> running : written by the start trigger before the
//     run job is enqueued, so a dispatched worker never observes stale idle.
//   - running -> stopped : written by a stop request; the worker polls this
//     between reels and exits its loop promptly once observed.
//   - running -> error : written by the worker on an unrecoverable run error.
//
// A run that completes naturally leaves the status wherever the polling loop
// last observed it; the worker does not force a transition back to idle.
type AccountStatus string

const (
	AccountStatusIdle    AccountStatus = "idle"
	AccountStatusRunning AccountStatus = "running"
	AccountStatusStopped AccountStatus = "stopped"
	AccountStatusError   AccountStatus = "error"
	AccountStatusPaused  AccountStatus = "paused" // manual hold, never written by the worker
)

// CanStart reports whether a new run may be triggered from this state.
// A second start against a running account is a conflict, not a queue entry.
func (s AccountStatus) CanStart() bool {
	switch s {
	case AccountStatusIdle, AccountStatusStopped, AccountStatusError:
		return true
	default:
		return false
	}
}

// ShouldStop reports whether a running worker observing this state must end
// its collection loop at the next reel boundary.
func (s AccountStatus) ShouldStop() bool {
	return s == AccountStatusStopped || s == AccountStatusPaused
}

// Account represents one operated Instagram account
type Account struct {
	ID                int           `json:"id" badgerhold:"key"`
	Username          string        `json:"username" badgerhold:"unique"`
	EncryptedPassword string        `json:"-"` // vault blob, never exposed on read paths
	Proxy             string        `json:"proxy,omitempty"` // explicit proxy URL, overrides the allocator
	Status            AccountStatus `json:"status" badgerhold:"index"`
	MessageTemplate   string        `json:"message_template"` // prompt reference for outreach generation
	LastActiveAt      time.Time     `json:"last_active_at"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

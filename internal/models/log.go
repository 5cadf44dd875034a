package models

import "time"

// Log levels: "debug", "info", "warn", "error"

// LogEntry is a durable per-account log line. Append-only; the core never
// reads these back - they exist for the external log viewer.
type LogEntry struct {
	ID        string            `json:"id" badgerhold:"key"`
	AccountID int               `json:"account_id" badgerhold:"index"`
	Level     string            `json:"level" badgerhold:"index"`
	Message   string            `json:"message"`
	Timestamp time.Time         `json:"timestamp"`
	Context   map[string]string `json:"context,omitempty"`
}

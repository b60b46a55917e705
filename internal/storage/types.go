package storage

import (
	"errors"
	"time"
)

var (
	ErrClosed  = errors.New("storage closed")
	ErrUnknown = errors.New("unknown storage driver")
)

// Config configures storage.
//
// Driver values:
//   - "file": JSON state file + JSON Lines delivery log
//   - "sqlite": SQLite database file
//   - "memory", "none" or empty: process-local only
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// AlarmRecord is the persisted alarm attribute trio plus bookkeeping.
// The zero value means no alarm is pending.
type AlarmRecord struct {
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	Attempt   int       `json:"attempt"`
	ArmedAt   time.Time `json:"armed_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Pending reports whether an alarm awaits confirmation.
func (r AlarmRecord) Pending() bool { return r.Title != "" && r.Text != "" }

// DeliveryRecord records one delivery attempt to one recipient.
// Keep it compact and schema-stable.
type DeliveryRecord struct {
	ID          string    `json:"id"`
	At          time.Time `json:"at"`
	Channel     string    `json:"channel"`
	Provider    string    `json:"provider,omitempty"`
	Recipient   string    `json:"recipient"`
	MessageType string    `json:"message_type"`
	Repeat      bool      `json:"repeat,omitempty"`
	OK          bool      `json:"ok"`
	Diagnostic  string    `json:"diagnostic,omitempty"`
}

package storage

import (
	"context"
	"errors"
	"time"
)

var ErrClosed = errors.New("journal closed")

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines file (<path>.deliveries.jsonl)
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Entry records one delivery attempt to one sink.
// Keep it compact and schema-stable.
type Entry struct {
	At     time.Time `json:"at"`
	ItemID int       `json:"item_id"`
	Title  string    `json:"title"`
	URL    string    `json:"url"`
	Team   string    `json:"team"`
	Board  string    `json:"board"`
	Sink   string    `json:"sink"`
	OK     bool      `json:"ok"`
	Error  string    `json:"error,omitempty"`
	TookMS int64     `json:"took_ms"`
}

// Journal is the append-only delivery log.
type Journal interface {
	Append(ctx context.Context, e Entry) error
	Close() error
}

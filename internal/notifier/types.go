package notifier

import (
	"fmt"
	"time"
)

// Config controls formatting and delivery.
type Config struct {
	Timeout    time.Duration // per send; default 10s
	RatePerSec int           // per sink; default 1
	Template   Template
}

// Notification describes one work item that entered the watched column.
type Notification struct {
	Team   string
	Board  string
	ItemID int
	Title  string
	URL    string
}

type HistoryItem struct {
	At     time.Time
	Sink   string
	ItemID int
	OK     bool
	Error  string
}

// DeliveryError wraps a failed send to one sink.
type DeliveryError struct {
	Sink   string
	ItemID int
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver #%d via %s: %v", e.ItemID, e.Sink, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

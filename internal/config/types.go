package config

import (
	"bytes"
	"encoding/json"
	"strconv"
)

type Config struct {
	Azure    AzureConfig    `json:"azure"`
	Poll     PollConfig     `json:"poll"`
	Notifier NotifierConfig `json:"notifier"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  *StorageConfig `json:"storage,omitempty"`
	Debug    *DebugConfig   `json:"debug,omitempty"`
}

// AzureConfig names the board being watched.
//
// Board and column names are matched exactly (case and whitespace sensitive)
// against what the service returns; ids are resolved at every start.
type AzureConfig struct {
	Organization string `json:"organization"`
	Project      string `json:"project"`
	Team         string `json:"team"`
	Board        string `json:"board"`
	Column       string `json:"column"`

	// BaseURL defaults to "https://dev.azure.com".
	BaseURL string `json:"base_url,omitempty"`
	// RequestTimeout is a Go duration string (e.g. "30s"). Default 30s.
	RequestTimeout string `json:"request_timeout,omitempty"`
}

// PollConfig controls how often the column is queried.
//
// Interval accepts:
//   - Go duration: "120s", "2m"
//   - HH:MM: "00:02"
//   - cron: "*/2 * * * *", "@every 2m"
//   - a bare number of seconds: 120
//
// IntervalSeconds is the plain numeric form; Interval wins when both are set.
type PollConfig struct {
	Interval        Schedule `json:"interval,omitempty"`
	IntervalSeconds int      `json:"interval_seconds,omitempty"`
}

// Schedule is a poll schedule string. A bare number is read as seconds.
type Schedule string

func (s *Schedule) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = Schedule(str)
		return nil
	}
	n, err := strconv.Atoi(string(b))
	if err != nil || n <= 0 {
		return &ConfigError{Field: "poll.interval", Msg: "must be a schedule string or a positive whole number of seconds, got " + string(b)}
	}
	*s = Schedule(strconv.Itoa(n) + "s")
	return nil
}

// NotifierConfig controls message formatting and delivery.
//
// Defaults (when fields are omitted/zero):
//   - timeout: "10s"
//   - rate_per_sec: 1
//   - headline: "Ticket ready for testing"
//   - item_emoji: ":excitedstar:"
//   - slack.icon_emoji: ":robot_face:"
type NotifierConfig struct {
	Timeout    string `json:"timeout,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
	Headline   string `json:"headline,omitempty"`
	ItemEmoji  string `json:"item_emoji,omitempty"`

	Slack    SlackConfig    `json:"slack"`
	Telegram TelegramConfig `json:"telegram"`
}

type SlackConfig struct {
	IconEmoji string `json:"icon_emoji,omitempty"`
}

// TelegramConfig enables an extra Telegram sink. The bot token comes from
// the TELEGRAM_TOKEN environment variable.
type TelegramConfig struct {
	Enabled  bool  `json:"enabled"`
	ChatID   int64 `json:"chat_id,omitempty"`
	ThreadID int   `json:"thread_id,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the optional delivery journal.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./boardwatch_journal" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// DebugConfig controls the local diagnostics server (pprof, /healthz, /status).
// The optional bearer token comes from the DEBUG_TOKEN environment variable.
type DebugConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`   // default "127.0.0.1:6060"
	Prefix        string `json:"prefix,omitempty"` // default "/debug/pprof/"
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	ReadTimeout   string `json:"read_timeout,omitempty"`
	IdleTimeout   string `json:"idle_timeout,omitempty"`
}

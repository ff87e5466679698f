package app

import (
	"fmt"
	"strings"
	"time"

	"boardwatch/internal/ado"
	"boardwatch/internal/config"
	"boardwatch/internal/notifier"
	"boardwatch/internal/observability/pprof"
	"boardwatch/internal/poller"
	"boardwatch/internal/storage"
	logx "boardwatch/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapADOConfig(cfg *config.Config, pat string) (ado.Config, error) {
	timeout, err := config.ParseDurationOrDefault("azure.request_timeout", cfg.Azure.RequestTimeout, ado.DefaultTimeout)
	if err != nil {
		return ado.Config{}, err
	}
	return ado.Config{
		BaseURL:      cfg.Azure.BaseURL,
		Organization: cfg.Azure.Organization,
		PAT:          pat,
		Timeout:      timeout,
	}, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "file":
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	timeout, err := config.ParseDurationOrDefault("notifier.timeout", cfg.Notifier.Timeout, config.DefaultNotifyTimeout)
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{
		Timeout:    timeout,
		RatePerSec: cfg.Notifier.RatePerSec,
		Template: notifier.Template{
			Headline:  cfg.Notifier.Headline,
			ItemEmoji: cfg.Notifier.ItemEmoji,
		},
	}, nil
}

func mapSchedule(cfg *config.Config) (poller.Schedule, error) {
	sch, err := poller.ParseSchedule(cfg.PollSpec())
	if err != nil {
		return poller.Schedule{}, &config.ConfigError{Field: "poll.interval", Msg: "invalid schedule", Err: err}
	}
	return sch, nil
}

// mapDebugConfig converts the debug section. It never binds anything.
func mapDebugConfig(cfg *config.Config, token string) (pprof.Config, error) {
	d := cfg.Debug
	if d == nil || !d.Enabled {
		return pprof.Config{}, nil
	}
	readTO, err := config.ParseDurationOrDefault("debug.read_timeout", d.ReadTimeout, 5*time.Second)
	if err != nil {
		return pprof.Config{}, err
	}
	idleTO, err := config.ParseDurationOrDefault("debug.idle_timeout", d.IdleTimeout, 120*time.Second)
	if err != nil {
		return pprof.Config{}, err
	}
	out := pprof.Config{
		Enabled:       true,
		Addr:          strings.TrimSpace(d.Addr),
		Prefix:        strings.TrimSpace(d.Prefix),
		Token:         token,
		AllowInsecure: d.AllowInsecure,
		ReadTimeout:   readTO,
		IdleTimeout:   idleTO,
	}
	if out.Addr == "" {
		out.Addr = pprof.DefaultAddr
	}
	if !out.AllowInsecure && out.Token == "" && !pprof.IsLoopbackAddr(out.Addr) {
		return pprof.Config{}, &config.ConfigError{Field: "debug.addr", Msg: "non-loopback addr requires DEBUG_TOKEN or allow_insecure"}
	}
	return out, nil
}

package app

import (
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "boardwatch/pkg/logx"
)

const (
	sdReady    = daemon.SdNotifyReady
	sdStopping = daemon.SdNotifyStopping
	sdWatchdog = daemon.SdNotifyWatchdog
)

// sdNotify reports state to systemd. Outside a notify-type unit
// (NOTIFY_SOCKET unset) it does nothing.
func sdNotify(log logx.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		log.Debug("sd_notify", logx.String("state", state))
	}
}

// watchdogInterval returns WatchdogSec for this process, or 0.
func watchdogInterval(log logx.Logger) time.Duration {
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		log.Warn("systemd watchdog settings invalid; watchdog disabled", logx.Err(err))
		return 0
	}
	return d
}

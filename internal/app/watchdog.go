package app

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "zodbot/pkg/logx"
)

// The sd_notify calls are no-ops when NOTIFY_SOCKET is absent, so running
// outside systemd costs nothing.

func notifyReady(log logx.Logger) {
	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warn("sd_notify READY failed", logx.Err(err))
	} else if ok {
		log.Debug("sd_notify READY sent")
	}
}

func notifyStopping(log logx.Logger) {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
}

// runWatchdog pings systemd at half the configured WatchdogSec interval.
func runWatchdog(ctx context.Context, log logx.Logger) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		log.Warn("watchdog detection failed", logx.Err(err))
		return
	}
	if interval == 0 {
		return
	}

	t := time.NewTicker(interval / 2)
	defer t.Stop()
	log.Info("systemd watchdog enabled", logx.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
		}
	}
}

//go:build linux

package sdnotify

import "github.com/coreos/go-systemd/v22/daemon"

// Ready tells systemd the service finished starting up. A no-op outside
// a systemd unit (NOTIFY_SOCKET unset).
func Ready() error {
	_, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	return err
}

// Stopping tells systemd the service began shutting down.
func Stopping() error {
	_, err := daemon.SdNotify(false, daemon.SdNotifyStopping)
	return err
}

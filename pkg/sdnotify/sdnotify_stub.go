//go:build !linux

package sdnotify

func Ready() error    { return nil }
func Stopping() error { return nil }

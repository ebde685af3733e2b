//go:build linux

package capture

import (
	"go2tv.app/screencap/internal/envutil"
	"go2tv.app/screencap/internal/pipewire"
)

// IsSupported reports whether an X11 display or a Wayland session with
// libpipewire is available.
func IsSupported() bool {
	sess := envutil.CurrentSession()
	if sess.UseX11() {
		return true
	}
	return sess.Wayland && pipewire.IsAvailable()
}

// HasPermission always reports true on Linux. The portal asks for consent
// each time a session starts.
func HasPermission() bool {
	return true
}

// RequestPermission is a no-op on Linux.
func RequestPermission() bool {
	return true
}

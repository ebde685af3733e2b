//go:build linux

package capture

import "go2tv.app/screencap/internal/envutil"

// newPlatformBackend reads X11 directly when the session is X11 (or the user
// forces XWayland) and goes through the ScreenCast portal otherwise.
func newPlatformBackend(cfg backendConfig) (backend, error) {
	sess := envutil.CurrentSession()
	if sess.UseX11() {
		cfg.log.Debug().Msg("using x11 backend")
		return newX11Backend(cfg)
	}
	if sess.Wayland {
		cfg.log.Debug().Msg("using pipewire backend")
		return newPipewireBackend(cfg)
	}
	return nil, ErrNotSupported
}

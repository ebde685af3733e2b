//go:build linux

package targets

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/xgb/xproto"

	"go2tv.app/screencap/internal/envutil"
	"go2tv.app/screencap/internal/x11"
)

// X11 reports dimensions in pixels, so the scale factor is always 1.
const x11ScaleFactor = 1.0

func connect() (*x11.Conn, error) {
	// Wayland sessions pick their source in the portal dialog.
	if !envutil.CurrentSession().UseX11() {
		return nil, ErrUnavailable
	}
	c, err := x11.Connect()
	if errors.Is(err, x11.ErrNoDisplay) {
		return nil, ErrUnavailable
	}
	return c, err
}

func allTargets() ([]Target, error) {
	c, err := connect()
	if err != nil {
		return nil, err
	}
	defer c.Close()

	monitors, err := c.Monitors()
	if err != nil {
		return nil, err
	}
	var out []Target
	for _, m := range monitors {
		out = append(out, displayFromMonitor(c, m))
	}

	windows, err := c.Windows()
	if err != nil {
		// Window managers without EWMH still allow display capture.
		return out, nil
	}
	for _, w := range windows {
		out = append(out, Window{ID: w.ID, Title: w.Title, RawHandle: uintptr(w.ID)})
	}
	return out, nil
}

func displayFromMonitor(c *x11.Conn, m x11.Monitor) Display {
	return Display{
		ID:          m.ID,
		Title:       m.Name,
		ScaleFactor: x11ScaleFactor,
		RawHandle:   uintptr(c.Root()),
	}
}

func mainDisplay() (Display, error) {
	c, err := connect()
	if err != nil {
		return Display{}, err
	}
	defer c.Close()

	monitors, err := c.Monitors()
	if err != nil {
		return Display{}, err
	}
	for _, m := range monitors {
		if m.Primary {
			return displayFromMonitor(c, m), nil
		}
	}
	return Display{}, fmt.Errorf("%w: no primary monitor", ErrTargetNotFound)
}

func scaleFactor(Target) (float64, error) {
	return x11ScaleFactor, nil
}

func dimensions(t Target) (uint64, uint64, error) {
	c, err := connect()
	if err != nil {
		return 0, 0, err
	}
	defer c.Close()

	switch v := t.(type) {
	case Display:
		m, err := c.Monitor(v.ID)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %v", ErrTargetNotFound, err)
		}
		return uint64(m.Bounds.Dx()), uint64(m.Bounds.Dy()), nil
	case Window:
		w, h, err := c.WindowSize(xproto.Window(v.RawHandle))
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %v", ErrTargetNotFound, err)
		}
		return uint64(w), uint64(h), nil
	default:
		return 0, 0, fmt.Errorf("%w: unknown target type %T", ErrTargetNotFound, t)
	}
}

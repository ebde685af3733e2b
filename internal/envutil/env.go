// Package envutil reads the environment screencap reacts to: the SCREENCAP_
// tuning knobs and the variables that describe the graphical session.
package envutil

import (
	"os"
	"strconv"
	"strings"
)

// Prefix is shared by every knob and by the CLI's viper bindings.
const Prefix = "SCREENCAP_"

// Tuning knobs, named without Prefix.
const (
	KnobDebug            = "DEBUG"
	KnobCaptureDebug     = "CAPTURE_DEBUG"
	KnobDebugFile        = "DEBUG_FILE"
	KnobCaptureDebugFile = "CAPTURE_DEBUG_FILE"
	KnobForceX11         = "FORCE_X11"
	KnobQueueWarn        = "QUEUE_WARN"
	KnobPipeWireMaxSize  = "PW_MAX_SIZE"
)

func knob(name string) string {
	return strings.TrimSpace(os.Getenv(Prefix + name))
}

// Flag reads a boolean knob. Unset or unrecognized values give def.
func Flag(name string, def bool) bool {
	switch v := strings.ToLower(knob(name)); v {
	case "on", "yes":
		return true
	case "off", "no":
		return false
	default:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return def
		}
		return b
	}
}

// Int reads an integer knob clamped to [lo, hi]. Unset or malformed values
// give def.
func Int(name string, def, lo, hi int) int {
	n, err := strconv.Atoi(knob(name))
	if err != nil {
		return def
	}
	if lo <= hi {
		n = min(max(n, lo), hi)
	}
	return n
}

// First returns the value of the first knob among names that is set.
func First(names ...string) string {
	for _, name := range names {
		if v := knob(name); v != "" {
			return v
		}
	}
	return ""
}

// Debug reports whether debug logging was requested.
func Debug() bool {
	return Flag(KnobDebug, false) || Flag(KnobCaptureDebug, false)
}

// DebugFile is where debug logs go instead of stderr; the capture specific
// knob wins.
func DebugFile() string {
	return First(KnobCaptureDebugFile, KnobDebugFile)
}

// Session describes the graphical session of this process.
type Session struct {
	X11      bool // DISPLAY is set
	Wayland  bool // WAYLAND_DISPLAY is set
	ForceX11 bool
}

func CurrentSession() Session {
	return Session{
		X11:      os.Getenv("DISPLAY") != "",
		Wayland:  os.Getenv("WAYLAND_DISPLAY") != "",
		ForceX11: Flag(KnobForceX11, false),
	}
}

// UseX11 reports whether X11 should serve the session. Wayland sessions go
// through the portal unless ForceX11 routes them to XWayland.
func (s Session) UseX11() bool {
	return s.X11 && (!s.Wayland || s.ForceX11)
}

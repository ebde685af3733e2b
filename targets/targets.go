// Package targets enumerates the displays and windows that can be captured
// and reports their size and scale factor.
//
// Every result is a point-in-time snapshot. A window may be closed between
// enumeration and capture, in which case the capture backend fails to open.
package targets

import (
	"errors"
	"fmt"
)

var (
	// ErrTargetNotFound is returned when a target no longer exists.
	ErrTargetNotFound = errors.New("capture target not found")
	// ErrUnavailable is returned when the session cannot enumerate targets at
	// all, for example a Wayland session where the portal picks the source.
	ErrUnavailable = errors.New("target enumeration is unavailable in this session")
	// ErrNotSupported is returned on platforms without an enumeration backend.
	ErrNotSupported = errors.New("target enumeration is not supported on this platform")
)

// Target is a capturable surface: a Display or a Window.
type Target interface {
	TargetID() uint32
	TargetTitle() string
	// Handle is the OS handle of the surface. It is owned by the OS and must
	// not be used after the capture session that received it has ended.
	Handle() uintptr
	isTarget()
}

// Display is a physical or virtual monitor.
type Display struct {
	ID          uint32
	Title       string
	ScaleFactor float64
	RawHandle   uintptr
}

func (d Display) TargetID() uint32    { return d.ID }
func (d Display) TargetTitle() string { return d.Title }
func (d Display) Handle() uintptr     { return d.RawHandle }
func (Display) isTarget()             {}

// Window is a top-level application window.
type Window struct {
	ID        uint32
	Title     string
	RawHandle uintptr
}

func (w Window) TargetID() uint32    { return w.ID }
func (w Window) TargetTitle() string { return w.Title }
func (w Window) Handle() uintptr     { return w.RawHandle }
func (Window) isTarget()             {}

// GetAllTargets returns every display followed by every visible window.
func GetAllTargets() ([]Target, error) {
	return allTargets()
}

// GetMainDisplay returns the primary display.
func GetMainDisplay() (Display, error) {
	return mainDisplay()
}

// GetScaleFactor returns the ratio of native pixels to logical points for t.
// A Display that already carries a positive ScaleFactor returns it as-is.
func GetScaleFactor(t Target) (float64, error) {
	if t == nil {
		return 0, fmt.Errorf("%w: nil target", ErrTargetNotFound)
	}
	if d, ok := t.(Display); ok && d.ScaleFactor > 0 {
		return d.ScaleFactor, nil
	}
	return scaleFactor(t)
}

// GetTargetDimensions returns the size of t in logical points. Multiply by
// GetScaleFactor for native pixels.
func GetTargetDimensions(t Target) (uint64, uint64, error) {
	if t == nil {
		return 0, 0, fmt.Errorf("%w: nil target", ErrTargetNotFound)
	}
	return dimensions(t)
}

// Describe formats t for logs and CLI listings.
func Describe(t Target) string {
	switch v := t.(type) {
	case Display:
		return fmt.Sprintf("display %d %q", v.ID, v.Title)
	case Window:
		return fmt.Sprintf("window %d %q", v.ID, v.Title)
	case nil:
		return "main display"
	default:
		return fmt.Sprintf("target %d", t.TargetID())
	}
}

// Find returns the target in list with the given kind and id.
func Find(list []Target, kind string, id uint32) (Target, error) {
	for _, t := range list {
		if t.TargetID() != id {
			continue
		}
		switch t.(type) {
		case Display:
			if kind == "" || kind == "display" {
				return t, nil
			}
		case Window:
			if kind == "" || kind == "window" {
				return t, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s %d", ErrTargetNotFound, kind, id)
}

// Displays filters list down to displays.
func Displays(list []Target) []Display {
	var out []Display
	for _, t := range list {
		if d, ok := t.(Display); ok {
			out = append(out, d)
		}
	}
	return out
}

// Windows filters list down to windows.
func Windows(list []Target) []Window {
	var out []Window
	for _, t := range list {
		if w, ok := t.(Window); ok {
			out = append(out, w)
		}
	}
	return out
}

package capture

import (
	"errors"
	"testing"

	"go2tv.app/screencap/internal/xdgportal"
	"go2tv.app/screencap/targets"
)

func TestPortalSourceTypes(t *testing.T) {
	monitorsOnly := portalCaps{version: 4, sources: xdgportal.SourceTypeMonitor}

	if _, err := monitorsOnly.sourceTypes(targets.Window{ID: 1}); !errors.Is(err, ErrNotSupported) {
		t.Fatalf("window target on a monitor-only portal: err = %v, want ErrNotSupported", err)
	}
	got, err := monitorsOnly.sourceTypes(nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != xdgportal.SourceTypeMonitor {
		t.Fatalf("default types = %#x, want monitor only", got)
	}

	unknown := portalCaps{}
	got, err = unknown.sourceTypes(targets.Window{ID: 1})
	if err != nil {
		t.Fatal(err)
	}
	if got != xdgportal.SourceTypeWindow {
		t.Fatalf("window types with unknown mask = %#x", got)
	}
}

func TestPortalCursorMode(t *testing.T) {
	both := portalCaps{version: 4, cursorModes: xdgportal.CursorModeHidden | xdgportal.CursorModeEmbedded}
	if got := both.cursorMode(true); got != xdgportal.CursorModeEmbedded {
		t.Fatalf("cursorMode(true) = %d, want embedded", got)
	}
	if got := both.cursorMode(false); got != xdgportal.CursorModeHidden {
		t.Fatalf("cursorMode(false) = %d, want hidden", got)
	}
	old := portalCaps{version: 1}
	if got := old.cursorMode(true); got != 0 {
		t.Fatalf("cursorMode on a version 1 portal = %d, want 0", got)
	}
}

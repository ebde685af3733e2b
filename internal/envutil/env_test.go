package envutil

import "testing"

func TestFlag(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"", true, true},
		{"1", false, true},
		{"YES", false, true},
		{"T", false, true},
		{"off", true, false},
		{"garbage", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv(Prefix+"TEST_BOOL", tt.value)
			if got := Flag("TEST_BOOL", tt.def); got != tt.want {
				t.Fatalf("Flag(%q, %t) = %t, want %t", tt.value, tt.def, got, tt.want)
			}
		})
	}
}

func TestInt(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"", 10},
		{"abc", 10},
		{" 5 ", 5},
		{"-3", 0},
		{"5000", 100},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv(Prefix+"TEST_INT", tt.value)
			if got := Int("TEST_INT", 10, 0, 100); got != tt.want {
				t.Fatalf("Int(%q) = %d, want %d", tt.value, got, tt.want)
			}
		})
	}
}

func TestDebugFilePrefersCaptureKnob(t *testing.T) {
	t.Setenv(Prefix+KnobCaptureDebugFile, "  ")
	t.Setenv(Prefix+KnobDebugFile, "/tmp/x.log")
	if got := DebugFile(); got != "/tmp/x.log" {
		t.Fatalf("DebugFile = %q", got)
	}
	t.Setenv(Prefix+KnobCaptureDebugFile, "/tmp/capture.log")
	if got := DebugFile(); got != "/tmp/capture.log" {
		t.Fatalf("DebugFile = %q, want the capture knob", got)
	}
}

func TestDebug(t *testing.T) {
	t.Setenv(Prefix+KnobDebug, "")
	t.Setenv(Prefix+KnobCaptureDebug, "1")
	if !Debug() {
		t.Fatal("Debug() = false with CAPTURE_DEBUG=1")
	}
}

func TestSessionUseX11(t *testing.T) {
	tests := []struct {
		display, wayland, force string
		want                    bool
	}{
		{"", "", "", false},
		{":0", "", "", true},
		{":0", "wayland-0", "", false},
		{":0", "wayland-0", "1", true},
		{"", "wayland-0", "1", false},
	}
	for _, tt := range tests {
		t.Setenv("DISPLAY", tt.display)
		t.Setenv("WAYLAND_DISPLAY", tt.wayland)
		t.Setenv(Prefix+KnobForceX11, tt.force)
		if got := CurrentSession().UseX11(); got != tt.want {
			t.Errorf("UseX11(DISPLAY=%q WAYLAND_DISPLAY=%q force=%q) = %v, want %v",
				tt.display, tt.wayland, tt.force, got, tt.want)
		}
	}
}

package pipewire

import "testing"

func TestFrameTimestampKeepsHeaderPTS(t *testing.T) {
	if got := frameTimestamp(42, true); got != 42 {
		t.Fatalf("frameTimestamp(42, true) = %d, want 42", got)
	}
}

func TestFrameTimestampFallbackSharesHeaderClock(t *testing.T) {
	header := frameTimestamp(monotonicNow(), true)
	fallback := frameTimestamp(0, false)
	if fallback < header {
		t.Fatalf("headerless timestamp %d went backwards from header pts %d", fallback, header)
	}
}

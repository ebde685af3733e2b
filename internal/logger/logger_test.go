package logger

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"WARNING": zerolog.WarnLevel,
		" error ": zerolog.ErrorLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestShouldLogThrottles(t *testing.T) {
	var last atomic.Int64
	if !ShouldLog(&last, time.Hour) {
		t.Fatal("first call should log")
	}
	if ShouldLog(&last, time.Hour) {
		t.Fatal("second call within period should not log")
	}
	if !ShouldLog(nil, time.Hour) {
		t.Fatal("nil tracker should always log")
	}
}

func TestWithComponent(t *testing.T) {
	l := WithComponent("capture")
	if l == nil {
		t.Fatal("WithComponent returned nil")
	}
}

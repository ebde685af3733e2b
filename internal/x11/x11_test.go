package x11

import "testing"

func TestLatin1(t *testing.T) {
	if got := latin1([]byte{'c', 'a', 'f', 0xe9}); got != "café" {
		t.Fatalf("latin1 = %q", got)
	}
	if got := latin1(nil); got != "" {
		t.Fatalf("latin1(nil) = %q", got)
	}
}


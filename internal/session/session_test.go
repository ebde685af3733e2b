package session

import (
	"strings"
	"testing"
)

func TestTokenIsObjectPathSafe(t *testing.T) {
	a, b := Token(), Token()
	if a == b {
		t.Fatal("tokens should differ")
	}
	if !strings.HasPrefix(a, "screencap") {
		t.Fatalf("token %q missing prefix", a)
	}
	for _, r := range a {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			t.Fatalf("token %q has %q", a, r)
		}
	}
}

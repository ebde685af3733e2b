package apis

import "testing"

func TestRequestPath(t *testing.T) {
	got := requestPath(":1.42", "screencapabc")
	want := "/org/freedesktop/portal/desktop/request/1_42/screencapabc"
	if string(got) != want {
		t.Fatalf("requestPath = %q, want %q", got, want)
	}
}

package request

import (
	"context"
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"
)

func TestParseResponse(t *testing.T) {
	body := []any{uint32(0), map[string]dbus.Variant{"session_handle": dbus.MakeVariant("/s/1")}}
	status, results, err := parseResponse(body)
	if err != nil {
		t.Fatal(err)
	}
	if status != Success {
		t.Fatalf("status = %d, want success", status)
	}
	if got := results["session_handle"].Value(); got != "/s/1" {
		t.Fatalf("session_handle = %v", got)
	}
}

func TestParseResponseRejectsMalformedBodies(t *testing.T) {
	for name, body := range map[string][]any{
		"short":       {uint32(1)},
		"bad status":  {"1", map[string]dbus.Variant{}},
		"bad results": {uint32(1), "x"},
	} {
		if _, _, err := parseResponse(body); !errors.Is(err, ErrUnexpectedResponse) {
			t.Errorf("%s: err = %v, want ErrUnexpectedResponse", name, err)
		}
	}
}

func TestAwaitSkipsOtherRequests(t *testing.T) {
	signal := make(chan *dbus.Signal, 2)
	signal <- &dbus.Signal{
		Path: "/other",
		Name: "org.freedesktop.portal.Request.Response",
		Body: []any{uint32(1), map[string]dbus.Variant{}},
	}
	signal <- &dbus.Signal{
		Path: "/mine",
		Name: "org.freedesktop.portal.Request.Response",
		Body: []any{uint32(0), map[string]dbus.Variant{}},
	}
	status, _, err := await(context.Background(), signal, "/mine")
	if err != nil {
		t.Fatal(err)
	}
	if status != Success {
		t.Fatalf("status = %d, want the response for /mine", status)
	}
}

func TestAwaitClosedChannel(t *testing.T) {
	signal := make(chan *dbus.Signal)
	close(signal)
	if _, _, err := await(context.Background(), signal, "/mine"); !errors.Is(err, ErrUnexpectedResponse) {
		t.Fatalf("err = %v", err)
	}
}

func TestDoFollowsReturnedPathAndReleasesEachMatchOnce(t *testing.T) {
	released := map[dbus.ObjectPath]int{}

	oldPath, oldListen := requestPath, listen
	t.Cleanup(func() { requestPath, listen = oldPath, oldListen })
	requestPath = func(string) (dbus.ObjectPath, error) { return "/predicted", nil }
	listen = func(path dbus.ObjectPath, _, _ string) (chan *dbus.Signal, func(), error) {
		ch := make(chan *dbus.Signal, 1)
		ch <- &dbus.Signal{
			Path: path,
			Name: "org.freedesktop.portal.Request.Response",
			Body: []any{uint32(0), map[string]dbus.Variant{"from": dbus.MakeVariant(string(path))}},
		}
		return ch, func() { released[path]++ }, nil
	}

	status, results, err := Do(context.Background(), "tok", func() (any, error) {
		return dbus.ObjectPath("/returned"), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if status != Success || results["from"].Value() != "/returned" {
		t.Fatalf("Do = %d %v, want the response on /returned", status, results)
	}
	for _, p := range []dbus.ObjectPath{"/predicted", "/returned"} {
		if released[p] != 1 {
			t.Fatalf("match for %s released %d times, want 1", p, released[p])
		}
	}
}

func TestDoReleasesMatchWhenCallFails(t *testing.T) {
	released := 0

	oldPath, oldListen := requestPath, listen
	t.Cleanup(func() { requestPath, listen = oldPath, oldListen })
	requestPath = func(string) (dbus.ObjectPath, error) { return "/predicted", nil }
	listen = func(dbus.ObjectPath, string, string) (chan *dbus.Signal, func(), error) {
		return make(chan *dbus.Signal), func() { released++ }, nil
	}

	boom := errors.New("boom")
	if _, _, err := Do(context.Background(), "tok", func() (any, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if released != 1 {
		t.Fatalf("match released %d times, want 1", released)
	}
}

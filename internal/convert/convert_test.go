package convert

import (
	"testing"

	"github.com/godbus/dbus/v5"
)

func TestDictSkipsZeroValues(t *testing.T) {
	d := NewDict("tok").
		Uint32("types", 0).
		Uint32("cursor_mode", 2).
		Bool("multiple", false).
		String("restore_token", "")

	if len(d) != 2 {
		t.Fatalf("dict = %v, want handle_token and cursor_mode only", d)
	}
	if got, ok := Uint32(d, "cursor_mode"); !ok || got != 2 {
		t.Fatalf("cursor_mode = %d, %t", got, ok)
	}
	if got, ok := String(d, "handle_token"); !ok || got != "tok" {
		t.Fatalf("handle_token = %q, %t", got, ok)
	}
	if d["cursor_mode"].Signature().String() != "u" {
		t.Fatalf("cursor_mode signature = %s", d["cursor_mode"].Signature())
	}
}

func TestObjectPath(t *testing.T) {
	m := map[string]dbus.Variant{
		"a": dbus.MakeVariant(dbus.ObjectPath("/org/a")),
		"b": dbus.MakeVariant("/org/b"),
		"c": dbus.MakeVariant(uint32(1)),
	}
	if p, ok := ObjectPath(m, "a"); !ok || p != "/org/a" {
		t.Fatalf("a = %q, %t", p, ok)
	}
	if p, ok := ObjectPath(m, "b"); !ok || p != "/org/b" {
		t.Fatalf("b = %q, %t", p, ok)
	}
	if _, ok := ObjectPath(m, "c"); ok {
		t.Fatal("uint32 accepted as object path")
	}
	if _, ok := ObjectPath(m, "missing"); ok {
		t.Fatal("missing key accepted")
	}
}

func TestInt32Pair(t *testing.T) {
	m := map[string]dbus.Variant{
		"slice":  dbus.MakeVariant([]int32{1920, 1080}),
		"struct": dbus.MakeVariant([]any{int32(-5), int32(7)}),
		"short":  dbus.MakeVariant([]int32{1}),
		"mixed":  dbus.MakeVariant([]any{int32(1), "x"}),
	}
	if p, ok := Int32Pair(m, "slice"); !ok || p != [2]int32{1920, 1080} {
		t.Fatalf("slice = %v, %t", p, ok)
	}
	if p, ok := Int32Pair(m, "struct"); !ok || p != [2]int32{-5, 7} {
		t.Fatalf("struct = %v, %t", p, ok)
	}
	for _, key := range []string{"short", "mixed", "missing"} {
		if _, ok := Int32Pair(m, key); ok {
			t.Errorf("%s accepted", key)
		}
	}
}

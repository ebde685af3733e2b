// Package convert builds and reads the a{sv} option dictionaries portal
// methods take and return.
package convert

import (
	"reflect"

	"github.com/godbus/dbus/v5"
)

var (
	boolSignature   = dbus.SignatureOfType(reflect.TypeOf(false))
	stringSignature = dbus.SignatureOfType(reflect.TypeOf(""))
	uint32Signature = dbus.SignatureOfType(reflect.TypeOf(uint32(0)))
)

func FromBool(input bool) dbus.Variant {
	return dbus.MakeVariantWithSignature(input, boolSignature)
}

func FromString(input string) dbus.Variant {
	return dbus.MakeVariantWithSignature(input, stringSignature)
}

func FromUint32(input uint32) dbus.Variant {
	return dbus.MakeVariantWithSignature(input, uint32Signature)
}

// Dict is an a{sv} option dictionary. Setters skip zero values so optional
// keys the caller left unset are not sent at all.
type Dict map[string]dbus.Variant

// NewDict returns a dictionary carrying the request handle token.
func NewDict(handleToken string) Dict {
	return Dict{"handle_token": FromString(handleToken)}
}

func (d Dict) String(key, v string) Dict {
	if v != "" {
		d[key] = FromString(v)
	}
	return d
}

func (d Dict) Uint32(key string, v uint32) Dict {
	if v != 0 {
		d[key] = FromUint32(v)
	}
	return d
}

func (d Dict) Bool(key string, v bool) Dict {
	if v {
		d[key] = FromBool(v)
	}
	return d
}

// Uint32 reads key from a result dictionary.
func Uint32(m map[string]dbus.Variant, key string) (uint32, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	n, ok := v.Value().(uint32)
	return n, ok
}

// String reads key from a result dictionary.
func String(m map[string]dbus.Variant, key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.Value().(string)
	return s, ok
}

// ObjectPath reads key as an object path. Some portals send handles as plain
// strings.
func ObjectPath(m map[string]dbus.Variant, key string) (dbus.ObjectPath, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	switch p := v.Value().(type) {
	case dbus.ObjectPath:
		return p, true
	case string:
		return dbus.ObjectPath(p), true
	default:
		return "", false
	}
}

// Int32Pair reads an (ii) struct such as a stream position or size.
func Int32Pair(m map[string]dbus.Variant, key string) ([2]int32, bool) {
	v, ok := m[key]
	if !ok {
		return [2]int32{}, false
	}
	switch p := v.Value().(type) {
	case []int32:
		if len(p) >= 2 {
			return [2]int32{p[0], p[1]}, true
		}
	case []any:
		if len(p) < 2 {
			return [2]int32{}, false
		}
		left, ok := p[0].(int32)
		if !ok {
			return [2]int32{}, false
		}
		right, ok := p[1].(int32)
		if !ok {
			return [2]int32{}, false
		}
		return [2]int32{left, right}, true
	}
	return [2]int32{}, false
}

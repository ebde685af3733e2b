package apis

import (
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	ObjectName        = "org.freedesktop.portal.Desktop"
	ObjectPath        = "/org/freedesktop/portal/desktop"
	CallBaseName      = "org.freedesktop.portal"
	PropertiesGetName = "org.freedesktop.DBus.Properties.Get"
)

func Call(callName string, args ...any) (any, error) {
	call, err := callOnObject(ObjectPath, callName, args...)
	if err != nil {
		return nil, err
	}

	var result any
	err = call.Store(&result)
	return result, err
}

func CallOnObject(path dbus.ObjectPath, callName string, args ...any) error {
	_, err := callOnObject(path, callName, args...)
	return err
}

func callOnObject(path dbus.ObjectPath, callName string, args ...any) (*dbus.Call, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, err
	}

	obj := conn.Object(ObjectName, path)
	call := obj.Call(callName, 0, args...)
	return call, call.Err
}

func GetProperty(interfaceName, property string) (any, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, err
	}

	obj := conn.Object(ObjectName, ObjectPath)
	call := obj.Call(PropertiesGetName, 0, interfaceName, property)
	if call.Err != nil {
		return nil, call.Err
	}

	var value any
	err = call.Store(&value)
	return value, err
}

// ListenOnSignal subscribes to signalName on path. Call the returned cancel
// func once done to drop the match rule.
func ListenOnSignal(path dbus.ObjectPath, iface, signalName string) (chan *dbus.Signal, func(), error) {
	conn, signal, err := ListenOnSignalWithConn(path, iface, signalName)
	if err != nil {
		return nil, nil, err
	}
	cancel := func() {
		conn.RemoveSignal(signal)
		_ = conn.RemoveMatchSignal(matchOptions(path, iface, signalName)...)
	}
	return signal, cancel, nil
}

func ListenOnSignalWithConn(path dbus.ObjectPath, iface, signalName string) (*dbus.Conn, chan *dbus.Signal, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, nil, err
	}
	if path == "" {
		path = ObjectPath
	}

	if err := conn.AddMatchSignal(matchOptions(path, iface, signalName)...); err != nil {
		return nil, nil, err
	}

	signal := make(chan *dbus.Signal, 8)
	conn.Signal(signal)
	return conn, signal, nil
}

func matchOptions(path dbus.ObjectPath, iface, signalName string) []dbus.MatchOption {
	if path == "" {
		path = ObjectPath
	}
	return []dbus.MatchOption{
		dbus.WithMatchObjectPath(path),
		dbus.WithMatchInterface(iface),
		dbus.WithMatchMember(signalName),
	}
}

// RequestPath predicts the request object the portal creates for a call made
// with handle_token token, so the Response match can be added before the call.
func RequestPath(token string) (dbus.ObjectPath, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return "", err
	}
	return requestPath(conn.Names()[0], token), nil
}

func requestPath(uniqueName, token string) dbus.ObjectPath {
	sender := strings.ReplaceAll(strings.TrimPrefix(uniqueName, ":"), ".", "_")
	return dbus.ObjectPath(ObjectPath + "/request/" + sender + "/" + token)
}

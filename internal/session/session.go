package session

import (
	"strings"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"

	"go2tv.app/screencap/internal/apis"
)

const (
	interfaceName = "org.freedesktop.portal.Session"
	closedMember  = "Closed"
	closeCallName = interfaceName + ".Close"

	// ClosedSignal is the full name of the signal OnClosed delivers.
	ClosedSignal = interfaceName + "." + closedMember
)

func Close(path dbus.ObjectPath) error {
	return apis.CallOnObject(path, closeCallName)
}

// Token returns a fresh handle token. Portal tokens must be valid object
// path elements, so the uuid dashes are dropped.
func Token() string {
	return "screencap" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// OnClosed subscribes to the Closed signal of the session at path. The
// returned func drops the subscription.
func OnClosed(path dbus.ObjectPath) (<-chan *dbus.Signal, func(), error) {
	return apis.ListenOnSignal(path, interfaceName, closedMember)
}

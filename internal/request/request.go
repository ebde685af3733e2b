package request

import (
	"context"
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"

	"go2tv.app/screencap/internal/apis"
)

var ErrUnexpectedResponse = errors.New("unexpected response from dbus")

const (
	interfaceName  = "org.freedesktop.portal.Request"
	responseMember = "Response"
	closeCallName  = interfaceName + ".Close"
)

type ResponseStatus = uint32

const (
	Success   ResponseStatus = 0
	Cancelled ResponseStatus = 1
	Ended     ResponseStatus = 2
)

func Close(path dbus.ObjectPath) error {
	return apis.CallOnObject(path, closeCallName)
}

var (
	requestPath = apis.RequestPath
	listen      = apis.ListenOnSignal
)

// Do runs call, which must pass token as its handle_token, and blocks until
// the portal answers on the matching request object or ctx ends. The match
// rule is installed before call so a fast Response is not missed.
func Do(ctx context.Context, token string, call func() (any, error)) (ResponseStatus, map[string]dbus.Variant, error) {
	path, err := requestPath(token)
	if err != nil {
		return Ended, nil, err
	}
	signal, cancel, err := listen(path, interfaceName, responseMember)
	if err != nil {
		return Ended, nil, err
	}
	// cancel always holds the live subscription, so it is released once.
	defer func() {
		if cancel != nil {
			cancel()
		}
	}()

	result, err := call()
	if err != nil {
		return Ended, nil, err
	}
	if returned, ok := result.(dbus.ObjectPath); ok && returned != path {
		// Older portals ignore handle_token; follow the path they returned.
		cancel()
		cancel = nil
		signal, cancel, err = listen(returned, interfaceName, responseMember)
		if err != nil {
			return Ended, nil, err
		}
		path = returned
	}
	return await(ctx, signal, path)
}

func await(ctx context.Context, signal chan *dbus.Signal, path dbus.ObjectPath) (ResponseStatus, map[string]dbus.Variant, error) {
	for {
		select {
		case <-ctx.Done():
			_ = Close(path)
			return Cancelled, nil, ctx.Err()
		case response, ok := <-signal:
			if !ok || response == nil {
				return Ended, nil, ErrUnexpectedResponse
			}
			if response.Path != path || response.Name != interfaceName+"."+responseMember {
				continue
			}
			return parseResponse(response.Body)
		}
	}
}

func parseResponse(body []any) (ResponseStatus, map[string]dbus.Variant, error) {
	if len(body) != 2 {
		return Ended, nil, fmt.Errorf("%w: %d body fields", ErrUnexpectedResponse, len(body))
	}
	status, ok := body[0].(ResponseStatus)
	if !ok {
		return Ended, nil, fmt.Errorf("%w: status is %T", ErrUnexpectedResponse, body[0])
	}
	results, ok := body[1].(map[string]dbus.Variant)
	if !ok {
		return Ended, nil, fmt.Errorf("%w: results are %T", ErrUnexpectedResponse, body[1])
	}
	return status, results, nil
}

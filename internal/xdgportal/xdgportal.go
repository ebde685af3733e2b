// Package xdgportal drives the org.freedesktop.portal.ScreenCast interface
// used to obtain a PipeWire node on Wayland sessions.
package xdgportal

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"

	"go2tv.app/screencap/internal/apis"
	"go2tv.app/screencap/internal/convert"
	"go2tv.app/screencap/internal/logger"
	"go2tv.app/screencap/internal/request"
	"go2tv.app/screencap/internal/session"
)

var (
	ErrCancelled = errors.New("screencast request cancelled by user")
	ErrEnded     = errors.New("screencast request ended")
)

const (
	interfaceName      = apis.CallBaseName + ".ScreenCast"
	createSessionName  = interfaceName + ".CreateSession"
	selectSourcesName  = interfaceName + ".SelectSources"
	startName          = interfaceName + ".Start"
	openPipeWireRemote = interfaceName + ".OpenPipeWireRemote"
)

const (
	SourceTypeMonitor uint32 = 1
	SourceTypeWindow  uint32 = 2
)

const (
	CursorModeHidden   uint32 = 1
	CursorModeEmbedded uint32 = 2
)

func getUint32Property(property string) (uint32, error) {
	value, err := apis.GetProperty(interfaceName, property)
	if err != nil {
		return 0, err
	}

	result, ok := value.(uint32)
	if !ok {
		return 0, fmt.Errorf("property %s returned unexpected type %T", property, value)
	}
	return result, nil
}

func GetAvailableSourceTypes() (uint32, error) {
	return getUint32Property("AvailableSourceTypes")
}

func GetAvailableCursorModes() (uint32, error) {
	return getUint32Property("AvailableCursorModes")
}

func GetVersion() (uint32, error) {
	return getUint32Property("version")
}

type Stream struct {
	NodeID     uint32
	Position   [2]int32
	Size       [2]int32
	SourceType uint32
	MappingID  string
	ID         string
}

type Session struct {
	Path dbus.ObjectPath
	log  *zerolog.Logger
}

type Options struct {
	SessionHandleToken string
}

type SelectSourcesOptions struct {
	Types      uint32
	Multiple   bool
	CursorMode uint32
}

// statusError maps a non-success Response status to an error.
func statusError(call string, status request.ResponseStatus) error {
	switch status {
	case request.Success:
		return nil
	case request.Cancelled:
		return fmt.Errorf("%s: %w", call, ErrCancelled)
	default:
		return fmt.Errorf("%s: %w (status %d)", call, ErrEnded, status)
	}
}

func CreateSession(ctx context.Context, options *Options) (*Session, error) {
	token := session.Token()
	sessionToken := session.Token()
	if options != nil && options.SessionHandleToken != "" {
		sessionToken = options.SessionHandleToken
	}
	data := convert.NewDict(token).String("session_handle_token", sessionToken)

	status, results, err := request.Do(ctx, token, func() (any, error) {
		return apis.Call(createSessionName, data)
	})
	if err != nil {
		return nil, fmt.Errorf("CreateSession: %w", err)
	}
	if err := statusError("CreateSession", status); err != nil {
		return nil, err
	}

	sessionPath, ok := convert.ObjectPath(results, "session_handle")
	if !ok {
		return nil, fmt.Errorf("CreateSession response has no usable session_handle")
	}

	log := logger.WithComponent("xdgportal").With().Str("session", string(sessionPath)).Logger()
	log.Debug().Msg("portal session created")
	return &Session{Path: sessionPath, log: &log}, nil
}

func (s *Session) SelectSources(ctx context.Context, options *SelectSourcesOptions) error {
	token := session.Token()
	data := convert.NewDict(token)
	if options != nil {
		data.Uint32("types", options.Types).
			Bool("multiple", options.Multiple).
			Uint32("cursor_mode", options.CursorMode)
	}

	status, _, err := request.Do(ctx, token, func() (any, error) {
		return apis.Call(selectSourcesName, s.Path, data)
	})
	if err != nil {
		return fmt.Errorf("SelectSources: %w", err)
	}
	return statusError("SelectSources", status)
}

// Start shows the source picker and returns the streams the user granted.
func (s *Session) Start(ctx context.Context, parentWindow string) ([]Stream, error) {
	token := session.Token()
	data := convert.NewDict(token)

	status, results, err := request.Do(ctx, token, func() (any, error) {
		return apis.Call(startName, s.Path, parentWindow, data)
	})
	if err != nil {
		return nil, fmt.Errorf("Start: %w", err)
	}
	if err := statusError("Start", status); err != nil {
		return nil, err
	}

	streams := parseStreams(results["streams"])
	s.log.Debug().Int("streams", len(streams)).Msg("portal session started")
	return streams, nil
}

func parseStreams(streamVariant dbus.Variant) []Stream {
	var rawStreams [][]any
	switch rs := streamVariant.Value().(type) {
	case [][]any:
		rawStreams = rs
	case []any:
		rawStreams = make([][]any, len(rs))
		for i, r := range rs {
			if s, ok := r.([]any); ok {
				rawStreams[i] = s
			}
		}
	default:
		return nil
	}

	streams := []Stream{}
	for _, streamSlice := range rawStreams {
		if len(streamSlice) < 2 {
			continue
		}

		stream := Stream{}

		nodeID, ok := streamSlice[0].(uint32)
		if ok {
			stream.NodeID = nodeID
		}

		if props, ok := streamSlice[1].(map[string]dbus.Variant); ok {
			stream.Position, _ = convert.Int32Pair(props, "position")
			stream.Size, _ = convert.Int32Pair(props, "size")
			stream.SourceType, _ = convert.Uint32(props, "source_type")
			stream.MappingID, _ = convert.String(props, "mapping_id")
			stream.ID, _ = convert.String(props, "id")
		}

		streams = append(streams, stream)
	}
	return streams
}

// OpenPipeWireRemote returns a file descriptor for the PipeWire remote
// serving this session's streams. The caller owns it.
func (s *Session) OpenPipeWireRemote() (int, error) {
	data := map[string]dbus.Variant{}

	conn, err := dbus.SessionBus()
	if err != nil {
		return -1, err
	}

	obj := conn.Object(apis.ObjectName, apis.ObjectPath)
	call := obj.Call(openPipeWireRemote, 0, s.Path, data)
	if call.Err != nil {
		return -1, call.Err
	}

	var fd dbus.UnixFD
	if err := call.Store(&fd); err != nil {
		return -1, err
	}
	return int(fd), nil
}

// Closed returns a channel closed when the compositor ends the session, for
// instance after the user stops sharing from the shell. stop drops the watch.
func (s *Session) Closed() (closed <-chan struct{}, stop func(), err error) {
	signals, unsubscribe, err := session.OnClosed(s.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("watch session: %w", err)
	}

	done := make(chan struct{})
	quit := make(chan struct{})
	go func() {
		for {
			select {
			case sig, ok := <-signals:
				if !ok {
					return
				}
				if sig.Path != s.Path || sig.Name != session.ClosedSignal {
					continue
				}
				s.log.Debug().Msg("portal session closed by compositor")
				close(done)
				return
			case <-quit:
				return
			}
		}
	}()

	var once sync.Once
	return done, func() {
		once.Do(func() {
			close(quit)
			unsubscribe()
		})
	}, nil
}

func (s *Session) Close() error {
	err := session.Close(s.Path)
	s.log.Debug().Err(err).Msg("portal session closed")
	return err
}

//go:build !linux

package pipewire

import (
	"errors"

	"go2tv.app/screencap/frame"
	"go2tv.app/screencap/internal/lifecycle"
)

var (
	ErrLibraryNotLoaded = errors.New("pipewire capture backend is only available on linux")
	ErrStreamFailed     = errors.New("pipewire stream entered the error state")
)

type StreamOptions struct {
	FD      int
	NodeID  uint32
	FPS     uint32
	MaxSize uint32
	State   *lifecycle.Lifecycle
	OnFrame func(frame.Frame)
	OnError func(error)
	OnDrop  func(error)
}

type Stream struct{}

func IsAvailable() bool {
	return false
}

func NewStream(StreamOptions) (*Stream, error) {
	return nil, ErrLibraryNotLoaded
}

func NewAudioStream(StreamOptions) (*Stream, error) {
	return nil, ErrLibraryNotLoaded
}

func (s *Stream) Format() (Format, bool) {
	return Format{}, false
}

func (s *Stream) Close() error {
	return nil
}

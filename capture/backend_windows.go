//go:build windows

package capture

import (
	"fmt"
	"image"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/windows"

	"go2tv.app/screencap/frame"
	"go2tv.app/screencap/internal/lifecycle"
	"go2tv.app/screencap/targets"
)

// wgcBackend polls a free-threaded Windows.Graphics.Capture frame pool at the
// requested rate and reads each frame back through a staging texture.
type wgcBackend struct {
	cfg    backendConfig
	wgc    *wgcSession
	hwnd   windows.HWND // zero for display capture
	period time.Duration
	log    *zerolog.Logger

	wg      sync.WaitGroup
	once    sync.Once
	stopErr error
}

func newPlatformBackend(cfg backendConfig) (backend, error) {
	cfg.ignoreUnsupported("wgc", true, true)
	handle, isWindow, err := wgcHandle(cfg.target)
	if err != nil {
		return nil, err
	}

	runtime.LockOSThread()
	s, err := openWGC(handle, isWindow)
	runtime.UnlockOSThread()
	if err != nil {
		return nil, err
	}

	if err := s.setCursor(cfg.opts.ShowCursor); err != nil {
		cfg.log.Debug().Err(err).Msg("cursor capture toggle unavailable")
	}
	if err := s.setBorder(cfg.opts.ShowHighlight); err != nil {
		cfg.log.Debug().Err(err).Msg("capture border toggle unavailable")
	}

	b := &wgcBackend{
		cfg:    cfg,
		wgc:    s,
		period: time.Second / time.Duration(cfg.opts.FPS),
		log:    cfg.log,
	}
	if isWindow {
		b.hwnd = windows.HWND(handle)
	}
	b.log.Debug().
		Str("target", targets.Describe(cfg.target)).
		Int32("width", s.size.Width).
		Int32("height", s.size.Height).
		Msg("wgc session created")
	return b, nil
}

// wgcHandle returns the HMONITOR or HWND to capture. A nil target is resolved
// by the engine, so it only shows up when enumeration failed.
func wgcHandle(t targets.Target) (uintptr, bool, error) {
	switch v := t.(type) {
	case targets.Window:
		return v.RawHandle, true, nil
	case targets.Display:
		return v.RawHandle, false, nil
	default:
		main, err := targets.GetMainDisplay()
		if err != nil {
			return 0, false, err
		}
		return main.RawHandle, false, nil
	}
}

func (b *wgcBackend) start() error {
	if err := b.wgc.start(); err != nil {
		return err
	}
	b.wg.Add(1)
	go b.run()
	return nil
}

func (b *wgcBackend) run() {
	defer b.wg.Done()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if err := roInitialize(); err != nil {
		b.cfg.sink.fail(err)
		return
	}

	ticker := time.NewTicker(b.period)
	defer ticker.Stop()

	for b.cfg.state.Load() == lifecycle.Running {
		if b.hwnd != 0 && !windows.IsWindow(b.hwnd) {
			b.cfg.sink.fail(fmt.Errorf("%w: window closed", ErrTargetNotFound))
			return
		}
		f, ok, err := b.wgc.next()
		if err != nil {
			b.cfg.sink.fail(err)
			return
		}
		if ok {
			b.emit(f)
		}
		<-ticker.C
	}
}

func (b *wgcBackend) emit(f wgcFrame) {
	var v frame.Video = &frame.BGRAFrame{
		Meta: frame.Meta{Width: f.width, Height: f.height, DisplayTime: uint64(f.time) * 100},
		Data: f.data,
	}
	if b.cfg.opts.CropArea != nil {
		cropped, err := frame.Crop(v, b.cfg.geom.pixelCrop(image.Rect(0, 0, f.width, f.height)))
		if err != nil {
			b.cfg.sink.discard("crop", err)
			return
		}
		v = cropped
	}
	b.cfg.sink.push(v)
}

func (b *wgcBackend) stop() error {
	b.once.Do(func() {
		b.wg.Wait()
		b.stopErr = b.wgc.close()
	})
	return b.stopErr
}

func (b *wgcBackend) frameSize() (uint32, uint32) {
	return b.cfg.geom.outputSize()
}

//go:build linux

package capture

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/rs/zerolog"

	"go2tv.app/screencap/frame"
	"go2tv.app/screencap/internal/lifecycle"
	"go2tv.app/screencap/internal/logger"
	"go2tv.app/screencap/internal/x11"
	"go2tv.app/screencap/targets"
)

// maxGrabFailures is how many grabs in a row may fail before the session is
// ended. Single failures happen while windows are resized or remapped.
const maxGrabFailures = 30

// x11Backend polls the X server with GetImage at the requested frame rate.
type x11Backend struct {
	cfg    backendConfig
	conn   *x11.Conn
	window xproto.Window // zero for display capture
	rect   image.Rectangle
	period time.Duration
	epoch  time.Time
	cursor bool
	log    *zerolog.Logger

	lastGrabLog atomic.Int64

	wg   sync.WaitGroup
	once sync.Once
}

func newX11Backend(cfg backendConfig) (backend, error) {
	cfg.ignoreUnsupported("x11", true, true)
	conn, err := x11.Connect()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotSupported, err)
	}

	b := &x11Backend{
		cfg:    cfg,
		conn:   conn,
		period: time.Second / time.Duration(cfg.opts.FPS),
		cursor: cfg.opts.ShowCursor && conn.HasCursor(),
		log:    cfg.log,
	}
	if cfg.opts.ShowCursor && !b.cursor {
		b.log.Warn().Msg("XFixes unavailable, frames will not include the cursor")
	}

	switch t := cfg.target.(type) {
	case targets.Window:
		b.window = xproto.Window(t.RawHandle)
		w, h, err := conn.WindowSize(b.window)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("%w: %w", ErrTargetNotFound, err)
		}
		b.rect = cfg.geom.pixelCrop(image.Rect(0, 0, w, h))
	case targets.Display:
		m, err := conn.Monitor(t.ID)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("%w: %w", ErrTargetNotFound, err)
		}
		b.rect = displayGrabRect(m.Bounds, cfg.geom)
	default:
		monitors, err := conn.Monitors()
		if err != nil || len(monitors) == 0 {
			conn.Close()
			return nil, fmt.Errorf("%w: no monitors", ErrTargetNotFound)
		}
		b.rect = displayGrabRect(monitors[0].Bounds, cfg.geom)
	}

	if b.rect.Empty() {
		conn.Close()
		return nil, fmt.Errorf("%w: empty capture rectangle", ErrInvalidOptions)
	}

	b.log.Debug().
		Uint32("window", uint32(b.window)).
		Str("rect", b.rect.String()).
		Dur("period", b.period).
		Msg("x11 backend ready")
	return b, nil
}

// displayGrabRect places the crop, given relative to the monitor, into root
// window coordinates.
func displayGrabRect(monitor image.Rectangle, geom geometry) image.Rectangle {
	local := monitor.Sub(monitor.Min)
	return geom.pixelCrop(local).Add(monitor.Min)
}

func (b *x11Backend) start() error {
	b.epoch = time.Now()
	b.wg.Add(1)
	go b.run()
	return nil
}

func (b *x11Backend) run() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.period)
	defer ticker.Stop()

	failures := 0
	for b.cfg.state.Load() == lifecycle.Running {
		err := b.captureOnce()
		switch {
		case err == nil:
			failures = 0
		case errors.Is(err, x11.ErrWindowNotFound):
			b.cfg.sink.fail(fmt.Errorf("%w: %w", ErrTargetNotFound, err))
			return
		default:
			failures++
			b.cfg.sink.discard("grab", err)
			if failures >= maxGrabFailures {
				b.cfg.sink.fail(fmt.Errorf("x11 capture: %d grabs failed in a row: %w", failures, err))
				return
			}
		}
		<-ticker.C
	}
}

func (b *x11Backend) captureOnce() error {
	var (
		img x11.Image
		err error
	)
	if b.window != 0 {
		img, err = b.conn.GrabWindow(b.window, b.rect)
		if err != nil {
			if _, _, gerr := b.conn.WindowSize(b.window); gerr != nil {
				return fmt.Errorf("%w: %v", x11.ErrWindowNotFound, gerr)
			}
		}
	} else {
		img, err = b.conn.GrabRoot(b.rect)
	}
	if err != nil {
		return err
	}
	ts := uint64(time.Since(b.epoch).Nanoseconds())

	data := frame.PackPlane(img.Data, img.Stride, img.Width*4, img.Height)
	if b.cursor {
		if cur, ok := b.pointer(); ok {
			compositeCursor(data, img.Width*4, b.rect, cur)
		}
	}

	b.cfg.sink.push(&frame.BGRxFrame{
		Meta: frame.Meta{Width: img.Width, Height: img.Height, DisplayTime: ts},
		Data: data,
	})
	if logger.ShouldLog(&b.lastGrabLog, 5*time.Second) {
		b.log.Debug().Int("width", img.Width).Int("height", img.Height).Msg("x11 frame grabbed")
	}
	return nil
}

func (b *x11Backend) stop() error {
	b.once.Do(func() {
		b.wg.Wait()
		b.conn.Close()
	})
	return nil
}

func (b *x11Backend) frameSize() (uint32, uint32) {
	return b.cfg.geom.outputSize()
}

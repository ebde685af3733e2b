// Package capture produces a pull-based stream of decoded frames from a
// display or window using the native capture API of the running OS.
package capture

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"go2tv.app/screencap/frame"
	"go2tv.app/screencap/internal/logger"
	"go2tv.app/screencap/targets"
)

var (
	ErrNotSupported         = errors.New("screen capture is not supported on this platform")
	ErrPermissionNotGranted = errors.New("screen capture permission has not been granted")
	ErrInvalidOptions       = errors.New("invalid screen capture options")
	ErrCancelled            = errors.New("screen capture request was cancelled")
	ErrNoStreams            = errors.New("screen capture returned no streams")
	ErrCaptureEnded         = errors.New("screen capture session has ended")
	ErrEngineStopped        = errors.New("capture engine cannot be restarted after stop")

	ErrTargetNotFound = targets.ErrTargetNotFound
)

// Options configures a capture session. It is copied into the session by
// Build and not read again afterwards.
type Options struct {
	// FPS is the requested frame rate, 1 to 1000.
	FPS uint32
	// ShowCursor draws the pointer into captured frames.
	ShowCursor bool
	// ShowHighlight outlines captured windows where the backend supports it.
	ShowHighlight bool
	// Target is the display or window to capture. Nil selects the main display.
	Target targets.Target
	// CropArea restricts capture to a rectangle in target coordinates.
	CropArea *Area
	// OutputType is the pixel layout of delivered video frames.
	OutputType frame.Type
	// OutputResolution clamps the delivered frame size. Frames are never upscaled.
	OutputResolution Resolution
	// ExcludedTargets are windows left out of a display capture (macOS only).
	ExcludedTargets []targets.Target
	// CapturesAudio interleaves system audio frames with video (macOS, and
	// PipeWire on Wayland).
	CapturesAudio bool
}

// maxFPS bounds Options.FPS so that every backend's frame period stays a
// positive duration.
const maxFPS = 1000

func validateOptions(opts Options) error {
	if opts.FPS == 0 || opts.FPS > maxFPS {
		return fmt.Errorf("%w: FPS must be in 1..%d, got %d", ErrInvalidOptions, maxFPS, opts.FPS)
	}
	if opts.OutputType < frame.TypeYUV || opts.OutputType > frame.TypeBGRA {
		return fmt.Errorf("%w: unknown output type %v", ErrInvalidOptions, opts.OutputType)
	}
	if opts.OutputResolution < ResolutionCaptured || opts.OutputResolution > Resolution4320p {
		return fmt.Errorf("%w: unknown output resolution %v", ErrInvalidOptions, opts.OutputResolution)
	}
	if c := opts.CropArea; c != nil {
		// Anything under one point rounds to an empty pixel rectangle.
		if c.Size.Width < 1 || c.Size.Height < 1 || c.Origin.X < 0 || c.Origin.Y < 0 {
			return fmt.Errorf("%w: crop area %+v", ErrInvalidOptions, *c)
		}
	}
	return nil
}

// Stats reports queue counters of a running session.
type Stats struct {
	Queued    int
	Pushed    uint64
	Delivered uint64
	Dropped   uint64
}

// Capturer owns one capture session and the consumer side of its frame queue.
//
// StartCapture and StopCapture are not guarded against reentrancy; calling
// StartCapture twice without StopCapture in between is not supported.
type Capturer struct {
	engine *engine
	log    *zerolog.Logger
}

// Build checks platform support and permission, then opens a capture session
// for opts. It does not request permission itself; call RequestPermission
// first when HasPermission reports false.
func Build(opts Options) (*Capturer, error) {
	if err := validateOptions(opts); err != nil {
		return nil, err
	}
	if !IsSupported() {
		return nil, ErrNotSupported
	}
	if !HasPermission() {
		return nil, ErrPermissionNotGranted
	}

	log := logger.WithComponent("capture")
	e, err := newEngine(opts, log)
	if err != nil {
		return nil, err
	}

	w, h := e.outputFrameSize()
	log.Debug().
		Str("output_type", opts.OutputType.String()).
		Str("resolution", opts.OutputResolution.String()).
		Uint32("fps", opts.FPS).
		Uint32("width", w).
		Uint32("height", h).
		Msg("capturer built")

	return &Capturer{engine: e, log: log}, nil
}

// StartCapture begins frame delivery.
func (c *Capturer) StartCapture() error {
	return c.engine.start()
}

// StopCapture halts frame delivery, releases the native session and returns
// any stream error recorded while running. It is safe to call without a prior
// StartCapture.
func (c *Capturer) StopCapture() error {
	return c.engine.stop()
}

// GetNextFrame blocks until the next frame is available. Audio frames and
// zero-sized idle placeholders are returned as-is. Once the session has ended
// it returns an error wrapping ErrCaptureEnded.
func (c *Capturer) GetNextFrame() (frame.Frame, error) {
	return c.GetNextFrameContext(context.Background())
}

// GetNextFrameContext is GetNextFrame with cancellation.
func (c *Capturer) GetNextFrameContext(ctx context.Context) (frame.Frame, error) {
	for {
		f, err := c.engine.queue.next(ctx)
		if err != nil {
			return nil, err
		}
		out, err := c.engine.finish(f)
		if err != nil {
			c.engine.queue.discard("postprocess", err)
			continue
		}
		return out, nil
	}
}

// GetOutputFrameSize returns the size of delivered video frames.
func (c *Capturer) GetOutputFrameSize() (uint32, uint32) {
	return c.engine.outputFrameSize()
}

// Stats returns the session's queue counters.
func (c *Capturer) Stats() Stats {
	q := c.engine.queue
	return Stats{
		Queued:    q.depth(),
		Pushed:    q.pushed.Load(),
		Delivered: q.delivered.Load(),
		Dropped:   q.dropped.Load(),
	}
}

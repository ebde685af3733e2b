package capture

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"go2tv.app/screencap/frame"
	"go2tv.app/screencap/internal/lifecycle"
	"go2tv.app/screencap/internal/logger"
	"go2tv.app/screencap/targets"
)

// backend owns one native capture session and pushes decoded frames into the
// queue it was built with.
type backend interface {
	// start begins frame delivery.
	start() error
	// stop halts delivery, joins the producer and releases the native session.
	// It must be idempotent. Asynchronous stream errors are recorded with
	// sink.fail while running, so stop only returns teardown errors.
	stop() error
	// frameSize returns the size of the frames the backend delivers after
	// cropping and scaling.
	frameSize() (uint32, uint32)
}

// backendConfig is everything a backend needs to open its session.
type backendConfig struct {
	opts   Options
	target targets.Target
	geom   geometry
	sink   *frameQueue
	state  *lifecycle.Lifecycle
	log    *zerolog.Logger
}

// newBackend is the compile-time selected backend constructor. Tests replace
// it with a fake.
var newBackend func(cfg backendConfig) (backend, error) = newPlatformBackend

type engine struct {
	opts    Options
	queue   *frameQueue
	state   lifecycle.Lifecycle
	backend backend
	log     *zerolog.Logger

	mu      sync.Mutex
	started bool
	stopped bool
	stopErr error
}

func newEngine(opts Options, log *zerolog.Logger) (*engine, error) {
	target, native, scale, err := lookupTarget(opts, log)
	if err != nil {
		return nil, err
	}
	geom := resolveGeometry(opts, native, scale)
	if err := checkCrop(opts, geom); err != nil {
		return nil, err
	}

	e := &engine{
		opts:  opts,
		queue: newFrameQueue(logger.WithComponent("queue")),
		log:   log,
	}
	b, err := newBackend(backendConfig{
		opts:   opts,
		target: target,
		geom:   geom,
		sink:   e.queue,
		state:  &e.state,
		log:    log,
	})
	if err != nil {
		e.queue.close(err)
		return nil, err
	}
	e.backend = b
	return e, nil
}

// checkCrop rejects an explicit crop reaching past the target. Targets of
// unknown size are checked by the backend once it knows the stream size.
func checkCrop(opts Options, geom geometry) error {
	native := geom.native
	if opts.CropArea == nil || native.Width <= 0 || native.Height <= 0 {
		return nil
	}
	end := Point{X: geom.crop.Origin.X + geom.crop.Size.Width, Y: geom.crop.Origin.Y + geom.crop.Size.Height}
	if end.X > native.Width || end.Y > native.Height {
		return fmt.Errorf("%w: crop area %+v exceeds target size %gx%g", ErrInvalidOptions, geom.crop, native.Width, native.Height)
	}
	return nil
}

// ignoreUnsupported logs the options a backend has no native equivalent for.
func (cfg backendConfig) ignoreUnsupported(name string, excluded, audio bool) {
	if excluded && len(cfg.opts.ExcludedTargets) > 0 {
		cfg.log.Debug().Str("backend", name).Int("excluded", len(cfg.opts.ExcludedTargets)).Msg("excluded targets not supported; ignoring")
	}
	if audio && cfg.opts.CapturesAudio {
		cfg.log.Debug().Str("backend", name).Msg("audio capture not supported; ignoring")
	}
}

var lookupTarget = resolveTarget

// resolveTarget picks the target and reads its size and scale factor. When
// the session cannot enumerate targets at all (a Wayland session without
// XWayland) it returns a nil target and lets the backend size itself.
func resolveTarget(opts Options, log *zerolog.Logger) (targets.Target, Size, float64, error) {
	target := opts.Target
	if target == nil {
		main, err := targets.GetMainDisplay()
		if errors.Is(err, targets.ErrUnavailable) {
			log.Debug().Err(err).Msg("target enumeration unavailable; backend will size the stream")
			return nil, Size{}, 1, nil
		}
		if err != nil {
			return nil, Size{}, 0, fmt.Errorf("resolve main display: %w", err)
		}
		target = main
	}

	w, h, err := targets.GetTargetDimensions(target)
	if errors.Is(err, targets.ErrUnavailable) {
		return target, Size{}, 1, nil
	}
	if err != nil {
		return nil, Size{}, 0, fmt.Errorf("resolve target %s: %w", targets.Describe(target), err)
	}
	scale, err := targets.GetScaleFactor(target)
	if err != nil || scale <= 0 {
		scale = 1
	}
	return target, Size{Width: float64(w), Height: float64(h)}, scale, nil
}

func (e *engine) start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return ErrEngineStopped
	}
	if !e.state.Arm() {
		return nil
	}
	if err := e.backend.start(); err != nil {
		e.state.Disarm()
		e.state.Reset()
		return err
	}
	e.started = true
	e.log.Debug().Msg("capture started")
	return nil
}

func (e *engine) stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return e.stopErr
	}
	e.stopped = true

	prev := e.state.Disarm()
	begin := time.Now()
	err := errors.Join(e.backend.stop(), e.queue.failure())
	e.queue.close(nil)
	e.state.Reset()

	e.stopErr = err
	e.log.Debug().
		Str("previous_state", prev.String()).
		Bool("started", e.started).
		Dur("join", time.Since(begin)).
		Err(err).
		Msg("capture stopped")
	return err
}

func (e *engine) outputFrameSize() (uint32, uint32) {
	return e.backend.frameSize()
}

// finish converts a queued frame to the requested layout and size. Audio
// frames and idle placeholders pass through.
func (e *engine) finish(f frame.Frame) (frame.Frame, error) {
	v, ok := f.(frame.Video)
	if !ok {
		return f, nil
	}

	// Idle placeholders carry no pixels; Convert only retypes them.
	w, h := e.backend.frameSize()
	if vw, vh := v.Dimensions(); !v.IsIdle() && w > 0 && h > 0 && (vw != int(w) || vh != int(h)) {
		scaled, err := frame.ScaleVideo(v, int(w), int(h))
		if err != nil {
			return nil, err
		}
		v = scaled
	}
	return frame.Convert(v, e.opts.OutputType)
}

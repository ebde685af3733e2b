//go:build linux

package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"syscall"

	"github.com/rs/zerolog"

	"go2tv.app/screencap/frame"
	"go2tv.app/screencap/internal/pipewire"
	"go2tv.app/screencap/internal/xdgportal"
	"go2tv.app/screencap/targets"
)

// pipewireBackend captures the node granted by the ScreenCast portal. The
// compositor delivers the whole source; cropping happens per frame.
type pipewireBackend struct {
	cfg   backendConfig
	geom  geometry
	crop  image.Rectangle
	sess  *xdgportal.Session
	video *pipewire.Stream
	audio *pipewire.Stream
	log   *zerolog.Logger

	unwatch func()
	once    sync.Once
	stopErr error
}

func newPipewireBackend(cfg backendConfig) (backend, error) {
	if !pipewire.IsAvailable() {
		return nil, pipewire.ErrLibraryNotLoaded
	}
	cfg.ignoreUnsupported("pipewire", true, false)

	caps := queryPortalCaps(cfg.log)
	types, err := caps.sourceTypes(cfg.target)
	if err != nil {
		return nil, err
	}
	cursorMode := caps.cursorMode(cfg.opts.ShowCursor)
	if cursorMode == 0 {
		cfg.log.Debug().Uint32("available", caps.cursorModes).Bool("show_cursor", cfg.opts.ShowCursor).
			Msg("cursor mode not offered, leaving it to the compositor")
	}

	sess, err := xdgportal.CreateSession(context.Background(), nil)
	if err != nil {
		return nil, portalError(err)
	}

	// Close session on setup failure.
	cleanupSession := true
	defer func() {
		if cleanupSession {
			_ = sess.Close()
		}
	}()

	err = sess.SelectSources(context.Background(), &xdgportal.SelectSourcesOptions{
		Types:      types,
		CursorMode: cursorMode,
	})
	if err != nil {
		return nil, portalError(err)
	}

	streams, err := sess.Start(context.Background(), "")
	if err != nil {
		return nil, portalError(err)
	}
	if len(streams) == 0 {
		return nil, ErrNoStreams
	}
	selected := streams[0]
	if selected.Size[0] <= 0 || selected.Size[1] <= 0 {
		return nil, fmt.Errorf("invalid stream size %dx%d", selected.Size[0], selected.Size[1])
	}

	// The portal stream size is authoritative on Wayland; compositors report
	// it in logical pixels already scaled for the output.
	geom := cfg.geom
	if geom.native.Width <= 0 || geom.native.Height <= 0 {
		geom = resolveGeometry(cfg.opts, Size{Width: float64(selected.Size[0]), Height: float64(selected.Size[1])}, 1)
		if err := checkCrop(cfg.opts, geom); err != nil {
			return nil, err
		}
	}

	fd, err := sess.OpenPipeWireRemote()
	if err != nil {
		return nil, fmt.Errorf("open pipewire remote: %w", err)
	}
	defer syscall.Close(fd)

	b := &pipewireBackend{
		cfg:  cfg,
		geom: geom,
		sess: sess,
		log:  cfg.log,
	}
	b.crop = geom.crop.Rect()

	b.video, err = pipewire.NewStream(pipewire.StreamOptions{
		FD:      fd,
		NodeID:  selected.NodeID,
		FPS:     cfg.opts.FPS,
		State:   cfg.state,
		OnFrame: b.onVideo,
		OnError: cfg.sink.fail,
		OnDrop:  func(err error) { cfg.sink.discard("malformed_buffer", err) },
	})
	if err != nil {
		return nil, err
	}

	if cfg.opts.CapturesAudio {
		b.audio, err = pipewire.NewAudioStream(pipewire.StreamOptions{
			State:   cfg.state,
			OnFrame: b.onAudio,
			OnError: cfg.sink.fail,
		})
		if err != nil {
			_ = b.video.Close()
			return nil, fmt.Errorf("open audio stream: %w", err)
		}
	}

	b.watchSession()

	b.log.Debug().
		Uint32("node", selected.NodeID).
		Int32("width", selected.Size[0]).
		Int32("height", selected.Size[1]).
		Bool("audio", b.audio != nil).
		Msg("portal stream opened")

	cleanupSession = false
	return b, nil
}

// start is a no-op: the stream loops begin iterating as soon as the engine
// moves the shared lifecycle to Running.
func (b *pipewireBackend) start() error {
	return nil
}

func (b *pipewireBackend) stop() error {
	b.once.Do(func() {
		var errs []error
		if b.audio != nil {
			errs = append(errs, ignoreStreamFailure(b.audio.Close()))
		}
		errs = append(errs, ignoreStreamFailure(b.video.Close()))
		if b.unwatch != nil {
			b.unwatch()
		}
		errs = append(errs, b.sess.Close())
		b.stopErr = errors.Join(errs...)
	})
	return b.stopErr
}

// watchSession ends the stream when the compositor closes the portal
// session. Without the watch the node just stops producing buffers.
func (b *pipewireBackend) watchSession() {
	closed, unwatch, err := b.sess.Closed()
	if err != nil {
		b.log.Debug().Err(err).Msg("portal session watch unavailable")
		return
	}
	stopped := make(chan struct{})
	b.unwatch = func() {
		unwatch()
		close(stopped)
	}
	go func() {
		select {
		case <-closed:
			b.cfg.sink.fail(fmt.Errorf("portal session closed: %w", xdgportal.ErrEnded))
		case <-stopped:
		}
	}()
}

func (b *pipewireBackend) frameSize() (uint32, uint32) {
	return b.geom.outputSize()
}

func (b *pipewireBackend) onVideo(f frame.Frame) {
	v, ok := f.(frame.Video)
	if !ok {
		return
	}
	if !v.IsIdle() && b.cfg.opts.CropArea != nil {
		cropped, err := frame.Crop(v, b.frameCrop(v))
		if err != nil {
			b.cfg.sink.discard("crop", err)
			return
		}
		v = cropped
	}
	b.cfg.sink.push(v)
}

// frameCrop maps the crop into buffer pixels. Compositors may deliver
// buffers at the output's physical size rather than the logical stream size.
func (b *pipewireBackend) frameCrop(v frame.Video) image.Rectangle {
	w, h := v.Dimensions()
	native := b.geom.native
	if native.Width <= 0 || native.Height <= 0 || (float64(w) == native.Width && float64(h) == native.Height) {
		return b.crop
	}
	sx, sy := float64(w)/native.Width, float64(h)/native.Height
	c := b.geom.crop
	return Area{
		Origin: Point{X: c.Origin.X * sx, Y: c.Origin.Y * sy},
		Size:   Size{Width: c.Size.Width * sx, Height: c.Size.Height * sy},
	}.Rect()
}

func (b *pipewireBackend) onAudio(f frame.Frame) {
	b.cfg.sink.push(f)
}

// ignoreStreamFailure drops ErrStreamFailed from Close. The failure itself
// already reached the queue through OnError.
func ignoreStreamFailure(err error) error {
	if errors.Is(err, pipewire.ErrStreamFailed) {
		return nil
	}
	return err
}

func portalError(err error) error {
	switch {
	case errors.Is(err, xdgportal.ErrCancelled):
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	case errors.Is(err, xdgportal.ErrEnded):
		return fmt.Errorf("%w: %w", ErrCaptureEnded, err)
	default:
		return err
	}
}

// cursorModesVersion is the ScreenCast interface version that introduced
// cursor_mode and AvailableCursorModes.
const cursorModesVersion = 2

// portalCaps is what the ScreenCast portal advertises. Zero masks mean the
// property could not be read.
type portalCaps struct {
	version     uint32
	sources     uint32
	cursorModes uint32
}

func queryPortalCaps(log *zerolog.Logger) portalCaps {
	var (
		caps portalCaps
		err  error
	)
	if caps.version, err = xdgportal.GetVersion(); err != nil {
		log.Debug().Err(err).Msg("portal version unavailable")
	}
	if caps.sources, err = xdgportal.GetAvailableSourceTypes(); err != nil {
		log.Debug().Err(err).Msg("portal source types unavailable")
	}
	if caps.version >= cursorModesVersion {
		if caps.cursorModes, err = xdgportal.GetAvailableCursorModes(); err != nil {
			log.Debug().Err(err).Msg("portal cursor modes unavailable")
		}
	}
	log.Debug().
		Uint32("version", caps.version).
		Uint32("source_types", caps.sources).
		Uint32("cursor_modes", caps.cursorModes).
		Msg("screencast portal")
	return caps
}

// sourceTypes narrows the picker to what t needs. A target kind the portal
// does not offer is unsupported.
func (c portalCaps) sourceTypes(t targets.Target) (uint32, error) {
	var want uint32
	switch t.(type) {
	case targets.Window:
		want = xdgportal.SourceTypeWindow
	case targets.Display:
		want = xdgportal.SourceTypeMonitor
	default:
		want = xdgportal.SourceTypeMonitor | xdgportal.SourceTypeWindow
	}
	if c.sources == 0 {
		return want, nil
	}
	if got := want & c.sources; got != 0 {
		return got, nil
	}
	return 0, fmt.Errorf("%w: portal offers source types %#x, need %#x", ErrNotSupported, c.sources, want)
}

// cursorMode picks embedded or hidden, or 0 when the portal offers neither.
func (c portalCaps) cursorMode(show bool) uint32 {
	want := xdgportal.CursorModeHidden
	if show {
		want = xdgportal.CursorModeEmbedded
	}
	if c.cursorModes&want != 0 {
		return want
	}
	return 0
}

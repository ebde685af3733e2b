package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"go2tv.app/screencap/frame"
	"go2tv.app/screencap/internal/lifecycle"
	"go2tv.app/screencap/targets"
)

// fakeBackend feeds whatever the test pushes into the engine's queue.
type fakeBackend struct {
	cfg     backendConfig
	w, h    uint32
	startFn func() error

	mu      sync.Mutex
	started int
	stopped int
	stopErr error
}

func (f *fakeBackend) start() error {
	f.mu.Lock()
	f.started++
	f.mu.Unlock()
	if f.startFn != nil {
		return f.startFn()
	}
	return nil
}

func (f *fakeBackend) stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
	return f.stopErr
}

func (f *fakeBackend) frameSize() (uint32, uint32) { return f.w, f.h }

// emit pushes v while the session is running, like a real producer.
func (f *fakeBackend) emit(v frame.Frame) bool {
	if f.cfg.state.Load() != lifecycle.Running {
		return false
	}
	return f.cfg.sink.push(v)
}

func withFakes(t *testing.T, native Size, scale float64) *fakeBackend {
	t.Helper()
	fake := &fakeBackend{}
	prevBackend, prevLookup := newBackend, lookupTarget
	newBackend = func(cfg backendConfig) (backend, error) {
		fake.cfg = cfg
		fake.w, fake.h = cfg.geom.outputSize()
		return fake, nil
	}
	lookupTarget = func(opts Options, _ *zerolog.Logger) (targets.Target, Size, float64, error) {
		return targets.Display{ID: 1, Title: "test", ScaleFactor: scale}, native, scale, nil
	}
	t.Cleanup(func() {
		newBackend, lookupTarget = prevBackend, prevLookup
	})
	return fake
}

func newTestCapturer(t *testing.T, opts Options) *Capturer {
	t.Helper()
	log := zerolog.Nop()
	e, err := newEngine(opts, &log)
	if err != nil {
		t.Fatal(err)
	}
	return &Capturer{engine: e, log: &log}
}

func solidBGRA(w, h int) []byte {
	out := make([]byte, w*h*4)
	for i := 0; i < len(out); i += 4 {
		out[i], out[i+1], out[i+2], out[i+3] = 1, 2, 3, 0xff
	}
	return out
}

func TestValidateOptions(t *testing.T) {
	good := Options{FPS: 30, OutputType: frame.TypeBGRA}
	if err := validateOptions(good); err != nil {
		t.Fatal(err)
	}
	fastest := Options{FPS: maxFPS, CropArea: &Area{Size: Size{Width: 1, Height: 1}}}
	if err := validateOptions(fastest); err != nil {
		t.Fatalf("validateOptions(%+v) = %v", fastest, err)
	}
	bad := []Options{
		{FPS: 0},
		{FPS: maxFPS + 1},
		{FPS: 1_000_000_001},
		{FPS: 30, OutputType: frame.Type(99)},
		{FPS: 30, OutputResolution: Resolution(42)},
		{FPS: 30, CropArea: &Area{Size: Size{Width: 0, Height: 10}}},
		{FPS: 30, CropArea: &Area{Origin: Point{X: -1}, Size: Size{Width: 10, Height: 10}}},
		{FPS: 30, CropArea: &Area{Size: Size{Width: 0.3, Height: 10}}},
		{FPS: 30, CropArea: &Area{Size: Size{Width: 10, Height: 0.5}}},
	}
	for i, opts := range bad {
		if err := validateOptions(opts); !errors.Is(err, ErrInvalidOptions) {
			t.Errorf("case %d: err = %v, want ErrInvalidOptions", i, err)
		}
	}
}

func TestBuildRejectsInvalidOptionsFirst(t *testing.T) {
	if _, err := Build(Options{}); !errors.Is(err, ErrInvalidOptions) {
		t.Fatalf("Build(zero options) err = %v", err)
	}
}

func TestCaptureDeliversConvertedFrames(t *testing.T) {
	fake := withFakes(t, Size{Width: 4, Height: 2}, 1)
	c := newTestCapturer(t, Options{FPS: 30, OutputType: frame.TypeRGB})

	if w, h := c.GetOutputFrameSize(); w != 4 || h != 2 {
		t.Fatalf("output size = %dx%d, want 4x2", w, h)
	}
	if err := c.StartCapture(); err != nil {
		t.Fatal(err)
	}
	if !fake.emit(&frame.BGRAFrame{Meta: frame.Meta{Width: 4, Height: 2, DisplayTime: 7}, Data: solidBGRA(4, 2)}) {
		t.Fatal("emit rejected while running")
	}

	f, err := c.GetNextFrame()
	if err != nil {
		t.Fatal(err)
	}
	rgb, ok := f.(*frame.RGBFrame)
	if !ok {
		t.Fatalf("frame type %T, want *frame.RGBFrame", f)
	}
	if rgb.Timestamp() != 7 || rgb.Data[0] != 3 || rgb.Data[2] != 1 {
		t.Fatalf("converted frame = ts %d data %v", rgb.Timestamp(), rgb.Data[:3])
	}
	if err := c.StopCapture(); err != nil {
		t.Fatal(err)
	}
}

func TestCaptureScalesToOutputResolution(t *testing.T) {
	fake := withFakes(t, Size{Width: 1600, Height: 800}, 1)
	c := newTestCapturer(t, Options{FPS: 30, OutputType: frame.TypeBGRA, OutputResolution: Resolution480p})

	w, h := c.GetOutputFrameSize()
	if w != 640 || h != 320 {
		t.Fatalf("output size = %dx%d, want 640x320", w, h)
	}
	if err := c.StartCapture(); err != nil {
		t.Fatal(err)
	}
	fake.emit(&frame.BGRAFrame{Meta: frame.Meta{Width: 1600, Height: 800}, Data: solidBGRA(1600, 800)})

	f, err := c.GetNextFrame()
	if err != nil {
		t.Fatal(err)
	}
	if fw, fh := f.(frame.Video).Dimensions(); fw != 640 || fh != 320 {
		t.Fatalf("frame size = %dx%d", fw, fh)
	}
	_ = c.StopCapture()
}

func TestCapturePassesAudioAndIdleThrough(t *testing.T) {
	fake := withFakes(t, Size{Width: 4, Height: 2}, 1)
	c := newTestCapturer(t, Options{FPS: 30, OutputType: frame.TypeYUV})
	if err := c.StartCapture(); err != nil {
		t.Fatal(err)
	}

	audio := &frame.AudioFrame{Format: frame.AudioF32, Channels: 2, Planar: true, Data: make([]byte, 16), SampleCount: 2, Rate: 48000}
	fake.emit(audio)
	fake.emit(frame.NewIdle(frame.TypeBGRA, 3))

	f, err := c.GetNextFrame()
	if err != nil {
		t.Fatal(err)
	}
	if f != frame.Frame(audio) {
		t.Fatalf("first frame = %T, want the audio frame unchanged", f)
	}
	f, err = c.GetNextFrame()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := f.(*frame.YUVFrame); !ok {
		t.Fatalf("second frame = %T, want an idle *frame.YUVFrame", f)
	}
	if v := f.(frame.Video); !v.IsIdle() || v.Timestamp() != 3 {
		t.Fatalf("second frame = %#v, want the idle placeholder", f)
	}
	_ = c.StopCapture()
}

func TestCaptureRetypesIdleFrames(t *testing.T) {
	fake := withFakes(t, Size{Width: 4, Height: 2}, 1)
	c := newTestCapturer(t, Options{FPS: 30, OutputType: frame.TypeRGB})
	if err := c.StartCapture(); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c.StopCapture() }()

	fake.emit(frame.NewIdle(frame.TypeBGR0, 7))

	f, err := c.GetNextFrame()
	if err != nil {
		t.Fatal(err)
	}
	rgb, ok := f.(*frame.RGBFrame)
	if !ok {
		t.Fatalf("idle frame = %T, want *frame.RGBFrame", f)
	}
	if !rgb.IsIdle() || rgb.Timestamp() != 7 {
		t.Fatalf("idle frame = %#v, want an idle placeholder at 7", rgb)
	}
}

func TestCaptureDropsFramesThatFailPostprocessing(t *testing.T) {
	fake := withFakes(t, Size{Width: 4, Height: 2}, 1)
	c := newTestCapturer(t, Options{FPS: 30, OutputType: frame.TypeRGB})
	_ = c.StartCapture()

	// Too short for 4x2.
	fake.emit(&frame.BGRAFrame{Meta: frame.Meta{Width: 4, Height: 2}, Data: make([]byte, 3)})
	fake.emit(&frame.BGRAFrame{Meta: frame.Meta{Width: 4, Height: 2, DisplayTime: 9}, Data: solidBGRA(4, 2)})

	f, err := c.GetNextFrame()
	if err != nil {
		t.Fatal(err)
	}
	if f.Timestamp() != 9 {
		t.Fatalf("got frame %d, want the valid one", f.Timestamp())
	}
	if c.Stats().Dropped != 1 {
		t.Fatalf("stats = %+v, want one drop", c.Stats())
	}
	_ = c.StopCapture()
}

func TestStopWithoutStart(t *testing.T) {
	fake := withFakes(t, Size{Width: 4, Height: 2}, 1)
	c := newTestCapturer(t, Options{FPS: 30})
	if err := c.StopCapture(); err != nil {
		t.Fatalf("StopCapture without start = %v", err)
	}
	if fake.stopped != 1 {
		t.Fatalf("backend stopped %d times", fake.stopped)
	}
	if _, err := c.GetNextFrame(); !errors.Is(err, ErrCaptureEnded) {
		t.Fatalf("GetNextFrame after stop = %v", err)
	}
}

func TestStopIsIdempotentAndFinal(t *testing.T) {
	fake := withFakes(t, Size{Width: 4, Height: 2}, 1)
	c := newTestCapturer(t, Options{FPS: 30})
	_ = c.StartCapture()
	_ = c.StopCapture()
	_ = c.StopCapture()
	if fake.stopped != 1 {
		t.Fatalf("backend stopped %d times, want once", fake.stopped)
	}
	if err := c.StartCapture(); !errors.Is(err, ErrEngineStopped) {
		t.Fatalf("restart err = %v, want ErrEngineStopped", err)
	}
	if fake.emit(frame.NewIdle(frame.TypeBGRA, 1)) {
		t.Fatal("producer should see the session as stopped")
	}
}

func TestStartTwiceStartsBackendOnce(t *testing.T) {
	fake := withFakes(t, Size{Width: 4, Height: 2}, 1)
	c := newTestCapturer(t, Options{FPS: 30})
	_ = c.StartCapture()
	_ = c.StartCapture()
	if fake.started != 1 {
		t.Fatalf("backend started %d times", fake.started)
	}
	_ = c.StopCapture()
}

func TestStartFailureResetsState(t *testing.T) {
	fake := withFakes(t, Size{Width: 4, Height: 2}, 1)
	boom := errors.New("boom")
	fake.startFn = func() error { return boom }
	c := newTestCapturer(t, Options{FPS: 30})

	if err := c.StartCapture(); !errors.Is(err, boom) {
		t.Fatalf("StartCapture err = %v", err)
	}
	if got := c.engine.state.Load(); got != lifecycle.Idle {
		t.Fatalf("state after failed start = %v, want idle", got)
	}
}

func TestStreamErrorReachesConsumerAndStop(t *testing.T) {
	fake := withFakes(t, Size{Width: 4, Height: 2}, 1)
	c := newTestCapturer(t, Options{FPS: 30})
	_ = c.StartCapture()

	fake.emit(frame.NewIdle(frame.TypeBGRA, 1))
	streamErr := errors.New("stream died")
	fake.cfg.sink.fail(streamErr)

	if _, err := c.GetNextFrame(); err != nil {
		t.Fatalf("queued frame lost: %v", err)
	}
	if _, err := c.GetNextFrame(); !errors.Is(err, streamErr) {
		t.Fatalf("GetNextFrame err = %v, want the stream error", err)
	}
	if err := c.StopCapture(); !errors.Is(err, streamErr) {
		t.Fatalf("StopCapture err = %v, want the stream error", err)
	}
}

func TestGetNextFrameContextCancel(t *testing.T) {
	withFakes(t, Size{Width: 4, Height: 2}, 1)
	c := newTestCapturer(t, Options{FPS: 30})
	_ = c.StartCapture()
	defer c.StopCapture()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.GetNextFrameContext(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
}

func TestStopUnblocksWaitingConsumer(t *testing.T) {
	withFakes(t, Size{Width: 4, Height: 2}, 1)
	c := newTestCapturer(t, Options{FPS: 30})
	_ = c.StartCapture()

	done := make(chan error, 1)
	go func() {
		_, err := c.GetNextFrame()
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	_ = c.StopCapture()

	select {
	case err := <-done:
		if !errors.Is(err, ErrCaptureEnded) {
			t.Fatalf("err = %v, want ErrCaptureEnded", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("GetNextFrame still blocked after StopCapture")
	}
}

func TestCropOutsideTargetRejected(t *testing.T) {
	withFakes(t, Size{Width: 100, Height: 100}, 1)
	log := zerolog.Nop()
	_, err := newEngine(Options{FPS: 30, CropArea: &Area{Origin: Point{X: 50}, Size: Size{Width: 60, Height: 10}}}, &log)
	if !errors.Is(err, ErrInvalidOptions) {
		t.Fatalf("err = %v, want ErrInvalidOptions", err)
	}
}

func TestTargetNotFoundIsExported(t *testing.T) {
	if !errors.Is(ErrTargetNotFound, targets.ErrTargetNotFound) {
		t.Fatal("capture.ErrTargetNotFound should match targets.ErrTargetNotFound")
	}
}

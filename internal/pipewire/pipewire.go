//go:build linux

package pipewire

/*
#cgo pkg-config: libpipewire-0.3
#cgo LDFLAGS: -ldl
#include <pipewire/pipewire.h>
#include <spa/param/video/format-utils.h>
#include <spa/param/audio/format-utils.h>
#include <spa/buffer/meta.h>
#include <stdlib.h>
#include <string.h>
#include <dlfcn.h>
#include <errno.h>
#include <stdio.h>

// Function pointers for dynamic loading
static void (*d_pw_init)(int *argc, char **argv[]);
static struct pw_main_loop * (*d_pw_main_loop_new)(const struct spa_dict *props);
static struct pw_loop * (*d_pw_main_loop_get_loop)(struct pw_main_loop *loop);
static void (*d_pw_main_loop_destroy)(struct pw_main_loop *loop);
static struct pw_context * (*d_pw_context_new)(struct pw_loop *main_loop, struct pw_properties *props, size_t user_data_size);
static void (*d_pw_context_destroy)(struct pw_context *context);
static struct pw_core * (*d_pw_context_connect_fd)(struct pw_context *context, int fd, struct pw_properties *properties, size_t user_data_size);
static struct pw_core * (*d_pw_context_connect)(struct pw_context *context, struct pw_properties *properties, size_t user_data_size);
static int (*d_pw_core_disconnect)(struct pw_core *core);
static struct pw_properties * (*d_pw_properties_new)(const char *key, ...);
static struct pw_stream * (*d_pw_stream_new)(struct pw_core *core, const char *name, struct pw_properties *props);
static void (*d_pw_stream_add_listener)(struct pw_stream *stream, struct spa_hook *listener, const struct pw_stream_events *events, void *data);
static int (*d_pw_stream_connect)(struct pw_stream *stream, enum pw_direction direction, uint32_t target_id, enum pw_stream_flags flags, const struct spa_pod **params, uint32_t n_params);
static struct pw_buffer * (*d_pw_stream_dequeue_buffer)(struct pw_stream *stream);
static int (*d_pw_stream_queue_buffer)(struct pw_stream *stream, struct pw_buffer *buffer);
static int (*d_pw_stream_disconnect)(struct pw_stream *stream);
static void (*d_pw_stream_destroy)(struct pw_stream *stream);

static void* pw_lib_handle = NULL;

static int load_pipewire() {
    if (pw_lib_handle != NULL) return 1;

    const char* lib_names[] = {
        "libpipewire-0.3.so.0",
        "libpipewire-0.3.so",
        NULL
    };

    for (int i = 0; lib_names[i] != NULL; i++) {
        pw_lib_handle = dlopen(lib_names[i], RTLD_NOW);
        if (pw_lib_handle) break;
    }

    if (!pw_lib_handle) return 0;

    d_pw_init = dlsym(pw_lib_handle, "pw_init");
    d_pw_main_loop_new = dlsym(pw_lib_handle, "pw_main_loop_new");
    d_pw_main_loop_get_loop = dlsym(pw_lib_handle, "pw_main_loop_get_loop");
    d_pw_main_loop_destroy = dlsym(pw_lib_handle, "pw_main_loop_destroy");
    d_pw_context_new = dlsym(pw_lib_handle, "pw_context_new");
    d_pw_context_destroy = dlsym(pw_lib_handle, "pw_context_destroy");
    d_pw_context_connect_fd = dlsym(pw_lib_handle, "pw_context_connect_fd");
    d_pw_context_connect = dlsym(pw_lib_handle, "pw_context_connect");
    d_pw_core_disconnect = dlsym(pw_lib_handle, "pw_core_disconnect");
    d_pw_properties_new = dlsym(pw_lib_handle, "pw_properties_new");
    d_pw_stream_new = dlsym(pw_lib_handle, "pw_stream_new");
    d_pw_stream_add_listener = dlsym(pw_lib_handle, "pw_stream_add_listener");
    d_pw_stream_connect = dlsym(pw_lib_handle, "pw_stream_connect");
    d_pw_stream_dequeue_buffer = dlsym(pw_lib_handle, "pw_stream_dequeue_buffer");
    d_pw_stream_queue_buffer = dlsym(pw_lib_handle, "pw_stream_queue_buffer");
    d_pw_stream_disconnect = dlsym(pw_lib_handle, "pw_stream_disconnect");
    d_pw_stream_destroy = dlsym(pw_lib_handle, "pw_stream_destroy");

    if (!d_pw_init || !d_pw_main_loop_new || !d_pw_main_loop_get_loop || !d_pw_stream_new ||
        !d_pw_stream_connect || !d_pw_stream_dequeue_buffer || !d_pw_stream_queue_buffer) {
        dlclose(pw_lib_handle);
        pw_lib_handle = NULL;
        return 0;
    }

    return 1;
}

extern void on_state_changed_go(int id, int old, int state, char *error);
extern void on_format_go(int id, uint32_t format, uint32_t width, uint32_t height, uint32_t num, uint32_t denom);
extern void on_frame_go(int id, void *data, uint32_t size, int32_t stride, uint64_t pts, int has_pts);
extern void on_out_of_buffers_go(int id);

struct go_stream_data {
    int id;
    int video;
    struct pw_stream *stream;
    struct spa_hook stream_listener;
};

static void on_state_changed_c(void *userdata, enum pw_stream_state old, enum pw_stream_state state, const char *error) {
    struct go_stream_data *data = userdata;
    on_state_changed_go(data->id, (int)old, (int)state, (char*)error);
}

static void on_param_changed_c(void *userdata, uint32_t id, const struct spa_pod *param) {
    struct go_stream_data *data = userdata;
    if (param == NULL || id != SPA_PARAM_Format || !data->video) return;

    uint32_t media_type, media_subtype;
    if (spa_format_parse(param, &media_type, &media_subtype) < 0) return;
    if (media_type != SPA_MEDIA_TYPE_video || media_subtype != SPA_MEDIA_SUBTYPE_raw) return;

    struct spa_video_info_raw info;
    memset(&info, 0, sizeof(info));
    if (spa_format_video_raw_parse(param, &info) < 0) return;

    on_format_go(data->id, info.format, info.size.width, info.size.height,
        info.framerate.num, info.framerate.denom);
}

static void on_process_c(void *userdata) {
    struct go_stream_data *data = userdata;
    if (!data->stream) return;

    struct pw_buffer *b = d_pw_stream_dequeue_buffer(data->stream);
    if (b == NULL) {
        on_out_of_buffers_go(data->id);
        return;
    }

    struct spa_buffer *buf = b->buffer;
    uint64_t pts = 0;
    int has_pts = 0;
    struct spa_meta_header *h = spa_buffer_find_meta_data(buf, SPA_META_Header, sizeof(*h));
    if (h != NULL && h->pts >= 0) {
        pts = (uint64_t)h->pts;
        has_pts = 1;
    }

    if (buf->n_datas > 0 && buf->datas[0].data != NULL && buf->datas[0].chunk != NULL) {
        struct spa_data *d = &buf->datas[0];
        uint32_t offset = d->chunk->offset % d->maxsize;
        uint32_t size = d->chunk->size;
        if (offset + size > d->maxsize) size = d->maxsize - offset;
        on_frame_go(data->id, (uint8_t*)d->data + offset, size, d->chunk->stride, pts, has_pts);
    }

    d_pw_stream_queue_buffer(data->stream, b);
}

static const struct pw_stream_events stream_events = {
    PW_VERSION_STREAM_EVENTS,
    .state_changed = on_state_changed_c,
    .param_changed = on_param_changed_c,
    .process = on_process_c,
};

static inline struct pw_stream * create_stream(struct pw_core *core, const char *name, struct go_stream_data *data) {
    struct pw_properties *props = d_pw_properties_new(
                PW_KEY_MEDIA_TYPE, "Video",
                PW_KEY_MEDIA_CATEGORY, "Capture",
                PW_KEY_MEDIA_ROLE, "Screen",
                NULL);

    struct pw_stream *stream = d_pw_stream_new(core, name, props);
    if (stream != NULL) {
        data->stream = stream;
        data->video = 1;
        d_pw_stream_add_listener(stream, &data->stream_listener, &stream_events, data);
    }
    return stream;
}

static inline int connect_stream(struct pw_stream *stream, uint32_t target_id, uint32_t max_size, uint32_t framerate_num) {
    uint8_t buffer[1024];
    struct spa_pod_builder b = SPA_POD_BUILDER_INIT(buffer, sizeof(buffer));

    const struct spa_pod *params[2];
    params[0] = spa_pod_builder_add_object(&b,
        SPA_TYPE_OBJECT_Format, SPA_PARAM_EnumFormat,
        SPA_FORMAT_mediaType, SPA_POD_Id(SPA_MEDIA_TYPE_video),
        SPA_FORMAT_mediaSubtype, SPA_POD_Id(SPA_MEDIA_SUBTYPE_raw),
        SPA_FORMAT_VIDEO_format, SPA_POD_CHOICE_ENUM_Id(6,
            SPA_VIDEO_FORMAT_RGB,
            SPA_VIDEO_FORMAT_RGB,
            SPA_VIDEO_FORMAT_RGBA,
            SPA_VIDEO_FORMAT_RGBx,
            SPA_VIDEO_FORMAT_BGRx,
            SPA_VIDEO_FORMAT_BGRA),
        SPA_FORMAT_VIDEO_size, SPA_POD_CHOICE_RANGE_Rectangle(
            &SPA_RECTANGLE(128, 128),
            &SPA_RECTANGLE(1, 1),
            &SPA_RECTANGLE(max_size, max_size)),
        SPA_FORMAT_VIDEO_framerate, SPA_POD_CHOICE_RANGE_Fraction(
            &SPA_FRACTION(framerate_num, 1),
            &SPA_FRACTION(0, 1),
            &SPA_FRACTION(1000, 1)));

    params[1] = spa_pod_builder_add_object(&b,
        SPA_TYPE_OBJECT_ParamMeta, SPA_PARAM_Meta,
        SPA_PARAM_META_type, SPA_POD_Id(SPA_META_Header),
        SPA_PARAM_META_size, SPA_POD_Int(sizeof(struct spa_meta_header)));

    return d_pw_stream_connect(stream,
        PW_DIRECTION_INPUT,
        target_id,
        PW_STREAM_FLAG_AUTOCONNECT |
        PW_STREAM_FLAG_MAP_BUFFERS,
        params, 2);
}

static inline struct pw_stream * create_audio_stream(struct pw_core *core, const char *name, struct go_stream_data *data) {
    struct pw_properties *props = d_pw_properties_new(
                PW_KEY_MEDIA_TYPE, "Audio",
                PW_KEY_MEDIA_CATEGORY, "Capture",
                PW_KEY_STREAM_CAPTURE_SINK, "true",
                NULL);

    struct pw_stream *stream = d_pw_stream_new(core, name, props);
    if (stream != NULL) {
        data->stream = stream;
        data->video = 0;
        d_pw_stream_add_listener(stream, &data->stream_listener, &stream_events, data);
    }
    return stream;
}

static inline int connect_audio_stream(struct pw_stream *stream) {
    uint8_t buffer[1024];
    struct spa_pod_builder b = SPA_POD_BUILDER_INIT(buffer, sizeof(buffer));

    const struct spa_pod *params[1];
    params[0] = spa_pod_builder_add_object(&b,
        SPA_TYPE_OBJECT_Format, SPA_PARAM_EnumFormat,
        SPA_FORMAT_mediaType, SPA_POD_Id(SPA_MEDIA_TYPE_audio),
        SPA_FORMAT_mediaSubtype, SPA_POD_Id(SPA_MEDIA_SUBTYPE_raw),
        SPA_FORMAT_AUDIO_format, SPA_POD_Id(SPA_AUDIO_FORMAT_S16),
        SPA_FORMAT_AUDIO_rate, SPA_POD_Int(48000),
        SPA_FORMAT_AUDIO_channels, SPA_POD_Int(2));

    return d_pw_stream_connect(stream,
        PW_DIRECTION_INPUT,
        PW_ID_ANY,
        PW_STREAM_FLAG_AUTOCONNECT |
        PW_STREAM_FLAG_MAP_BUFFERS,
        params, 1);
}

// Accessors for Go
static inline void wrap_pw_init() { d_pw_init(NULL, NULL); }
static inline struct pw_main_loop * wrap_pw_main_loop_new() { return d_pw_main_loop_new(NULL); }
static inline struct pw_context * wrap_pw_context_new(struct pw_main_loop *loop) { return d_pw_context_new(d_pw_main_loop_get_loop(loop), NULL, 0); }
static inline struct pw_core * wrap_pw_context_connect_fd(struct pw_context *context, int fd) { return d_pw_context_connect_fd(context, fd, NULL, 0); }
static inline struct pw_core * wrap_pw_context_connect(struct pw_context *context) { return d_pw_context_connect(context, NULL, 0); }
static inline void wrap_pw_loop_enter(struct pw_main_loop *loop) { pw_loop_enter(d_pw_main_loop_get_loop(loop)); }
static inline void wrap_pw_loop_leave(struct pw_main_loop *loop) { pw_loop_leave(d_pw_main_loop_get_loop(loop)); }
static inline int wrap_pw_loop_iterate(struct pw_main_loop *loop, int timeout_ms) { return pw_loop_iterate(d_pw_main_loop_get_loop(loop), timeout_ms); }
static inline void wrap_pw_stream_destroy(struct pw_stream *stream) {
    if (d_pw_stream_disconnect) d_pw_stream_disconnect(stream);
    d_pw_stream_destroy(stream);
}
static inline void wrap_pw_core_disconnect(struct pw_core *core) { d_pw_core_disconnect(core); }
static inline void wrap_pw_context_destroy(struct pw_context *context) { d_pw_context_destroy(context); }
static inline void wrap_pw_main_loop_destroy(struct pw_main_loop *loop) { d_pw_main_loop_destroy(loop); }

*/
import "C"
import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
	"unsafe"

	"github.com/rs/zerolog"

	"go2tv.app/screencap/frame"
	"go2tv.app/screencap/internal/envutil"
	"go2tv.app/screencap/internal/lifecycle"
	"go2tv.app/screencap/internal/logger"
)

var (
	ErrLibraryNotLoaded = errors.New("libpipewire-0.3.so.0 could not be loaded")
	ErrStreamFailed     = errors.New("pipewire stream entered the error state")
)

const (
	idlePollInterval = 10 * time.Millisecond
	iterateTimeoutMs = 100
	defaultMaxSize   = 4096
	outOfBuffersLog  = time.Second
	stateStreamError = -1
)

// StreamOptions configures a stream.
type StreamOptions struct {
	// FD is the portal's PipeWire remote. It is duplicated, the caller keeps
	// ownership. Ignored for audio streams, which connect to the daemon.
	FD int
	// NodeID is the portal stream node to connect to.
	NodeID uint32
	// FPS is the preferred frame rate offered in format negotiation.
	FPS uint32
	// MaxSize bounds the negotiated width and height.
	MaxSize uint32
	// State gates the poll loop: it sleeps while Idle, iterates while Running
	// and exits on Stopping.
	State *lifecycle.Lifecycle
	// OnFrame receives every decoded frame on the loop thread. Payloads are
	// owned copies.
	OnFrame func(frame.Frame)
	// OnError is called once if the stream fails while running.
	OnError func(error)
	// OnDrop is told about buffers that could not be turned into a frame.
	OnDrop func(error)
}

// Stream is one PipeWire capture stream driven by its own locked OS thread.
type Stream struct {
	loop    *C.struct_pw_main_loop
	context *C.struct_pw_context
	core    *C.struct_pw_core
	cData   *C.struct_go_stream_data

	id    int
	video bool
	opts  StreamOptions
	log   *zerolog.Logger

	formatMu sync.Mutex
	format   Format
	ready    bool

	quit     atomic.Bool
	failed   atomic.Bool
	lastOOB  atomic.Int64
	done     chan struct{}
	closeErr error
	once     sync.Once
}

var (
	streamsMu sync.Mutex
	streams   = make(map[int]*Stream)
	nextID    = 1
	libLoaded bool
	libMu     sync.Mutex
)

// IsAvailable checks if the PipeWire C library can be loaded.
func IsAvailable() bool {
	libMu.Lock()
	defer libMu.Unlock()
	if libLoaded {
		return true
	}
	if C.load_pipewire() == 1 {
		libLoaded = true
		C.wrap_pw_init()
		return true
	}
	return false
}

// NewStream connects a video stream to the portal node and starts its poll
// loop. It returns once the stream is connected; the format is negotiated
// after the owner moves State to Running.
func NewStream(opts StreamOptions) (*Stream, error) {
	if opts.MaxSize == 0 {
		opts.MaxSize = uint32(envutil.Int(envutil.KnobPipeWireMaxSize, defaultMaxSize, 128, 16384))
	}
	return newStream(opts, true)
}

// NewAudioStream connects to the default sink's monitor and delivers
// interleaved S16 stereo at 48kHz.
func NewAudioStream(opts StreamOptions) (*Stream, error) {
	return newStream(opts, false)
}

func newStream(opts StreamOptions, video bool) (*Stream, error) {
	if !IsAvailable() {
		return nil, ErrLibraryNotLoaded
	}
	if opts.State == nil {
		return nil, fmt.Errorf("pipewire: stream needs a lifecycle")
	}

	s := &Stream{
		video: video,
		opts:  opts,
		log:   logger.WithComponent("pipewire"),
		done:  make(chan struct{}),
	}

	streamsMu.Lock()
	s.id = nextID
	nextID++
	streams[s.id] = s
	streamsMu.Unlock()

	ready := make(chan error, 1)
	go s.run(ready)

	if err := <-ready; err != nil {
		<-s.done
		return nil, err
	}
	s.log.Debug().Int("stream", s.id).Bool("video", video).Uint32("node", opts.NodeID).Msg("stream connected")
	return s, nil
}

// run owns every PipeWire object of the stream. They are created, iterated
// and destroyed on the same locked thread.
func (s *Stream) run(ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(s.done)

	if err := s.open(); err != nil {
		s.destroy()
		ready <- err
		return
	}
	ready <- nil

	C.wrap_pw_loop_enter(s.loop)
loop:
	for !s.quit.Load() && !s.failed.Load() {
		switch s.opts.State.Load() {
		case lifecycle.Idle:
			time.Sleep(idlePollInterval)
		case lifecycle.Running:
			if res := C.wrap_pw_loop_iterate(s.loop, iterateTimeoutMs); res < 0 && res != -C.EINTR {
				s.fail(fmt.Errorf("pipewire loop iterate: %w", syscall.Errno(-res)))
			}
		default:
			break loop
		}
	}
	C.wrap_pw_loop_leave(s.loop)
	s.destroy()
}

func (s *Stream) open() error {
	s.loop = C.wrap_pw_main_loop_new()
	if s.loop == nil {
		return fmt.Errorf("failed to create main loop")
	}

	s.context = C.wrap_pw_context_new(s.loop)
	if s.context == nil {
		return fmt.Errorf("failed to create context")
	}

	if s.video {
		// dup fd because pw_context_connect_fd takes ownership
		dupFd, err := syscall.Dup(s.opts.FD)
		if err != nil {
			return fmt.Errorf("dup fd: %v", err)
		}
		s.core = C.wrap_pw_context_connect_fd(s.context, C.int(dupFd))
		if s.core == nil {
			_ = syscall.Close(dupFd)
			return fmt.Errorf("failed to connect fd")
		}
	} else {
		s.core = C.wrap_pw_context_connect(s.context)
		if s.core == nil {
			return fmt.Errorf("failed to connect to pipewire daemon")
		}
	}

	s.cData = (*C.struct_go_stream_data)(C.calloc(1, C.sizeof_struct_go_stream_data))
	s.cData.id = C.int(s.id)

	if s.video {
		name := C.CString("screencap-video")
		defer C.free(unsafe.Pointer(name))
		if C.create_stream(s.core, name, s.cData) == nil {
			return fmt.Errorf("failed to create stream")
		}
		fps := s.opts.FPS
		if fps == 0 {
			fps = 60
		}
		if res := C.connect_stream(s.cData.stream, C.uint32_t(s.opts.NodeID), C.uint32_t(s.opts.MaxSize), C.uint32_t(fps)); res < 0 {
			return fmt.Errorf("failed to connect stream: %d", int(res))
		}
		return nil
	}

	name := C.CString("screencap-audio")
	defer C.free(unsafe.Pointer(name))
	if C.create_audio_stream(s.core, name, s.cData) == nil {
		return fmt.Errorf("failed to create audio stream")
	}
	if res := C.connect_audio_stream(s.cData.stream); res < 0 {
		return fmt.Errorf("failed to connect audio stream: %d", int(res))
	}
	return nil
}

func (s *Stream) destroy() {
	streamsMu.Lock()
	delete(streams, s.id)
	streamsMu.Unlock()

	if s.cData != nil {
		if s.cData.stream != nil {
			C.wrap_pw_stream_destroy(s.cData.stream)
		}
		C.free(unsafe.Pointer(s.cData))
		s.cData = nil
	}
	if s.core != nil {
		C.wrap_pw_core_disconnect(s.core)
		s.core = nil
	}
	if s.context != nil {
		C.wrap_pw_context_destroy(s.context)
		s.context = nil
	}
	if s.loop != nil {
		C.wrap_pw_main_loop_destroy(s.loop)
		s.loop = nil
	}
}

func (s *Stream) fail(err error) {
	if s.failed.Swap(true) {
		return
	}
	s.log.Debug().Int("stream", s.id).Err(err).Msg("stream failed")
	if s.opts.OnError != nil {
		s.opts.OnError(err)
	}
}

// Format returns the negotiated video format. ok is false until the
// compositor has answered.
func (s *Stream) Format() (f Format, ok bool) {
	s.formatMu.Lock()
	defer s.formatMu.Unlock()
	return s.format, s.ready
}

// Close stops the poll loop, waits for it to exit and releases the stream.
// The owner should move State to Stopping first; Close also works without.
func (s *Stream) Close() error {
	s.once.Do(func() {
		s.quit.Store(true)
		<-s.done
		if s.failed.Load() {
			s.closeErr = ErrStreamFailed
		}
	})
	return s.closeErr
}

func lookup(id C.int) *Stream {
	streamsMu.Lock()
	defer streamsMu.Unlock()
	return streams[int(id)]
}

//export on_state_changed_go
func on_state_changed_go(id C.int, old C.int, state C.int, errMsg *C.char) {
	s := lookup(id)
	if s == nil {
		return
	}
	s.log.Debug().
		Int("stream", s.id).
		Str("from", streamStateName(int(old))).
		Str("to", streamStateName(int(state))).
		Msg("stream state changed")
	if int(state) == stateStreamError {
		msg := "unknown error"
		if errMsg != nil {
			msg = C.GoString(errMsg)
		}
		s.fail(fmt.Errorf("%w: %s", ErrStreamFailed, msg))
	}
}

//export on_format_go
func on_format_go(id C.int, format, width, height, num, denom C.uint32_t) {
	s := lookup(id)
	if s == nil {
		return
	}
	pixel, ok := pixelFormat(uint32(format))
	if !ok {
		s.fail(fmt.Errorf("pipewire negotiated unsupported video format %d", uint32(format)))
		return
	}
	f := Format{
		Pixel:        pixel,
		Width:        int(width),
		Height:       int(height),
		FramerateNum: uint32(num),
		FramerateDen: uint32(denom),
	}
	s.formatMu.Lock()
	s.format = f
	s.ready = true
	s.formatMu.Unlock()

	s.log.Debug().
		Int("stream", s.id).
		Str("format", pixel.String()).
		Int("width", f.Width).
		Int("height", f.Height).
		Uint32("fps_num", f.FramerateNum).
		Uint32("fps_den", f.FramerateDen).
		Msg("video format negotiated")
}

//export on_frame_go
func on_frame_go(id C.int, data unsafe.Pointer, size C.uint32_t, stride C.int32_t, pts C.uint64_t, hasPTS C.int) {
	s := lookup(id)
	if s == nil || s.opts.OnFrame == nil {
		return
	}
	ts := frameTimestamp(uint64(pts), hasPTS != 0)

	var chunk []byte
	if size > 0 {
		chunk = unsafe.Slice((*byte)(data), int(size))
	}

	if !s.video {
		if len(chunk) == 0 {
			return
		}
		s.opts.OnFrame(audioFrame(chunk, ts))
		return
	}

	f, _ := s.Format()
	v, err := videoFrame(f, chunk, int(stride), ts)
	if err != nil {
		if s.opts.OnDrop != nil {
			s.opts.OnDrop(err)
		}
		return
	}
	s.opts.OnFrame(v)
}

//export on_out_of_buffers_go
func on_out_of_buffers_go(id C.int) {
	s := lookup(id)
	if s == nil {
		return
	}
	if logger.ShouldLog(&s.lastOOB, outOfBuffersLog) {
		s.log.Debug().Int("stream", s.id).Msg("out of buffers")
	}
}

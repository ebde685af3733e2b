//go:build darwin

package capture

/*
#cgo CFLAGS: -x objective-c -fobjc-arc -mmacosx-version-min=12.3
#cgo LDFLAGS: -mmacosx-version-min=12.3 -framework Foundation -framework ScreenCaptureKit -framework CoreMedia -framework CoreVideo -framework CoreGraphics

#include <Foundation/Foundation.h>
#include <ScreenCaptureKit/ScreenCaptureKit.h>
#include <CoreMedia/CoreMedia.h>
#include <CoreVideo/CoreVideo.h>
#include <stdlib.h>
#include <string.h>

enum {
    scPixelBGRA = 0,
    scPixelYUV420 = 1,
};

typedef struct {
    uint32_t displayID;
    uint32_t windowID;
    uint32_t *excluded;
    int excludedCount;
    int hasCrop;
    double cropX, cropY, cropW, cropH;
    uint32_t width, height;
    uint32_t fps;
    int showCursor;
    int audio;
    int pixel;
} scConfig;

extern void scVideoGo(int id, int status, uint64_t pts, int pixel, uint32_t width, uint32_t height,
                      void *plane0, size_t stride0, void *plane1, size_t stride1);
extern void scAudioGo(int id, uint64_t pts, void *data, uint32_t size, uint32_t frames, uint32_t channels, uint32_t rate);
extern void scErrorGo(int id, char *msg);

static uint64_t scNanos(CMTime t) {
    if (!CMTIME_IS_VALID(t)) return 0;
    CMTime ns = CMTimeConvertScale(t, 1000000000, kCMTimeRoundingMethod_Default);
    return ns.value < 0 ? 0 : (uint64_t)ns.value;
}

static void scSetError(char *out, int n, NSError *err, const char *fallback) {
    const char *msg = fallback;
    if (err != nil && err.localizedDescription != nil) msg = [err.localizedDescription UTF8String];
    snprintf(out, (size_t)n, "%s", msg);
}

@interface SCGoOutput : NSObject <SCStreamOutput, SCStreamDelegate>
@property (nonatomic) int goID;
@property (nonatomic) int pixel;
@end

@implementation SCGoOutput

- (void)stream:(SCStream *)stream didOutputSampleBuffer:(CMSampleBufferRef)sample ofType:(SCStreamOutputType)type {
    if (!CMSampleBufferIsValid(sample)) return;
    uint64_t pts = scNanos(CMSampleBufferGetPresentationTimeStamp(sample));

    if (type == SCStreamOutputTypeScreen) {
        int status = SCFrameStatusComplete;
        CFArrayRef attachments = CMSampleBufferGetSampleAttachmentsArray(sample, false);
        if (attachments != NULL && CFArrayGetCount(attachments) > 0) {
            NSDictionary *info = (__bridge NSDictionary *)CFArrayGetValueAtIndex(attachments, 0);
            NSNumber *raw = info[SCStreamFrameInfoStatus];
            if (raw != nil) status = raw.intValue;
        }
        if (status != SCFrameStatusComplete && status != SCFrameStatusStarted) {
            scVideoGo(self.goID, status, pts, self.pixel, 0, 0, NULL, 0, NULL, 0);
            return;
        }

        CVPixelBufferRef pb = CMSampleBufferGetImageBuffer(sample);
        if (pb == NULL) return;
        CVPixelBufferLockBaseAddress(pb, kCVPixelBufferLock_ReadOnly);
        uint32_t w = (uint32_t)CVPixelBufferGetWidth(pb);
        uint32_t h = (uint32_t)CVPixelBufferGetHeight(pb);
        if (CVPixelBufferIsPlanar(pb)) {
            scVideoGo(self.goID, status, pts, scPixelYUV420, w, h,
                      CVPixelBufferGetBaseAddressOfPlane(pb, 0), CVPixelBufferGetBytesPerRowOfPlane(pb, 0),
                      CVPixelBufferGetBaseAddressOfPlane(pb, 1), CVPixelBufferGetBytesPerRowOfPlane(pb, 1));
        } else {
            scVideoGo(self.goID, status, pts, scPixelBGRA, w, h,
                      CVPixelBufferGetBaseAddress(pb), CVPixelBufferGetBytesPerRow(pb), NULL, 0);
        }
        CVPixelBufferUnlockBaseAddress(pb, kCVPixelBufferLock_ReadOnly);
        return;
    }

    if (@available(macOS 13.0, *)) {
        if (type != SCStreamOutputTypeAudio) return;
    } else {
        return;
    }

    CMItemCount frames = CMSampleBufferGetNumSamples(sample);
    AudioBufferList list;
    CMBlockBufferRef block = NULL;
    OSStatus st = CMSampleBufferGetAudioBufferListWithRetainedBlockBuffer(
        sample, NULL, &list, sizeof(list), NULL, NULL,
        kCMSampleBufferFlag_AudioBufferList_Assure16ByteAlignment, &block);
    if (st != noErr) return;

    // Planes are copied back to back so Go sees one planar payload.
    size_t total = 0;
    for (UInt32 i = 0; i < list.mNumberBuffers; i++) total += list.mBuffers[i].mDataByteSize;
    if (total > 0) {
        uint8_t *buf = malloc(total);
        size_t off = 0;
        for (UInt32 i = 0; i < list.mNumberBuffers; i++) {
            memcpy(buf + off, list.mBuffers[i].mData, list.mBuffers[i].mDataByteSize);
            off += list.mBuffers[i].mDataByteSize;
        }
        uint32_t rate = 48000;
        CMAudioFormatDescriptionRef fmt = CMSampleBufferGetFormatDescription(sample);
        const AudioStreamBasicDescription *asbd = fmt ? CMAudioFormatDescriptionGetStreamBasicDescription(fmt) : NULL;
        if (asbd != NULL && asbd->mSampleRate > 0) rate = (uint32_t)asbd->mSampleRate;
        scAudioGo(self.goID, pts, buf, (uint32_t)total, (uint32_t)frames, list.mNumberBuffers, rate);
        free(buf);
    }
    if (block != NULL) CFRelease(block);
}

- (void)stream:(SCStream *)stream didStopWithError:(NSError *)error {
    const char *msg = error.localizedDescription ? [error.localizedDescription UTF8String] : "stream stopped";
    scErrorGo(self.goID, (char *)msg);
}

@end

typedef struct {
    void *stream;
    void *output;
    void *queue;
} scHandle;

static SCShareableContent *scContent(char *err, int n) {
    __block SCShareableContent *result = nil;
    __block NSError *failure = nil;
    dispatch_semaphore_t sem = dispatch_semaphore_create(0);
    [SCShareableContent getShareableContentExcludingDesktopWindows:NO
                                             onScreenWindowsOnly:YES
                                               completionHandler:^(SCShareableContent *content, NSError *e) {
        result = content;
        failure = e;
        dispatch_semaphore_signal(sem);
    }];
    dispatch_semaphore_wait(sem, DISPATCH_TIME_FOREVER);
    if (result == nil) scSetError(err, n, failure, "shareable content unavailable");
    return result;
}

// scStreamCreate returns NULL and fills err on failure. A missing display or
// window is reported with the "not found" prefix.
static scHandle *scStreamCreate(int id, scConfig *cfg, char *err, int n) {
    SCShareableContent *content = scContent(err, n);
    if (content == nil) return NULL;

    SCContentFilter *filter = nil;
    if (cfg->windowID != 0) {
        SCWindow *target = nil;
        for (SCWindow *w in content.windows) {
            if (w.windowID == cfg->windowID) { target = w; break; }
        }
        if (target == nil) { snprintf(err, (size_t)n, "not found: window %u", cfg->windowID); return NULL; }
        filter = [[SCContentFilter alloc] initWithDesktopIndependentWindow:target];
    } else {
        SCDisplay *target = nil;
        for (SCDisplay *d in content.displays) {
            if (d.displayID == cfg->displayID) { target = d; break; }
        }
        if (target == nil) { snprintf(err, (size_t)n, "not found: display %u", cfg->displayID); return NULL; }
        NSMutableArray<SCWindow *> *excluded = [NSMutableArray array];
        for (SCWindow *w in content.windows) {
            for (int i = 0; i < cfg->excludedCount; i++) {
                if (w.windowID == cfg->excluded[i]) { [excluded addObject:w]; break; }
            }
        }
        filter = [[SCContentFilter alloc] initWithDisplay:target excludingWindows:excluded];
    }

    SCStreamConfiguration *conf = [[SCStreamConfiguration alloc] init];
    conf.width = cfg->width;
    conf.height = cfg->height;
    conf.showsCursor = cfg->showCursor ? YES : NO;
    conf.minimumFrameInterval = CMTimeMake(1, (int32_t)cfg->fps);
    conf.pixelFormat = cfg->pixel == scPixelYUV420 ? kCVPixelFormatType_420YpCbCr8BiPlanarVideoRange : kCVPixelFormatType_32BGRA;
    if (cfg->hasCrop) {
        conf.sourceRect = CGRectMake(cfg->cropX, cfg->cropY, cfg->cropW, cfg->cropH);
    }
    if (cfg->audio) {
        if (@available(macOS 13.0, *)) {
            conf.capturesAudio = YES;
            conf.sampleRate = 48000;
            conf.channelCount = 2;
        }
    }

    SCGoOutput *output = [[SCGoOutput alloc] init];
    output.goID = id;
    output.pixel = cfg->pixel;
    dispatch_queue_t queue = dispatch_queue_create("app.go2tv.screencap", DISPATCH_QUEUE_SERIAL);

    SCStream *stream = [[SCStream alloc] initWithFilter:filter configuration:conf delegate:output];
    NSError *addErr = nil;
    if (![stream addStreamOutput:output type:SCStreamOutputTypeScreen sampleHandlerQueue:queue error:&addErr]) {
        scSetError(err, n, addErr, "add screen output failed");
        return NULL;
    }
    if (cfg->audio) {
        if (@available(macOS 13.0, *)) {
            if (![stream addStreamOutput:output type:SCStreamOutputTypeAudio sampleHandlerQueue:queue error:&addErr]) {
                scSetError(err, n, addErr, "add audio output failed");
                return NULL;
            }
        }
    }

    scHandle *h = calloc(1, sizeof(scHandle));
    h->stream = (__bridge_retained void *)stream;
    h->output = (__bridge_retained void *)output;
    h->queue = (__bridge_retained void *)queue;
    return h;
}

static int scStreamStart(scHandle *h, char *err, int n) {
    SCStream *stream = (__bridge SCStream *)h->stream;
    __block NSError *failure = nil;
    dispatch_semaphore_t sem = dispatch_semaphore_create(0);
    [stream startCaptureWithCompletionHandler:^(NSError *e) {
        failure = e;
        dispatch_semaphore_signal(sem);
    }];
    dispatch_semaphore_wait(sem, DISPATCH_TIME_FOREVER);
    if (failure != nil) {
        scSetError(err, n, failure, "start capture failed");
        return -1;
    }
    return 0;
}

static int scStreamStop(scHandle *h, char *err, int n) {
    SCStream *stream = (__bridge SCStream *)h->stream;
    __block NSError *failure = nil;
    dispatch_semaphore_t sem = dispatch_semaphore_create(0);
    [stream stopCaptureWithCompletionHandler:^(NSError *e) {
        failure = e;
        dispatch_semaphore_signal(sem);
    }];
    dispatch_semaphore_wait(sem, DISPATCH_TIME_FOREVER);
    if (failure != nil) {
        scSetError(err, n, failure, "stop capture failed");
        return -1;
    }
    return 0;
}

// scStreamFree drains the sample queue so no callback runs after it returns.
static void scStreamFree(scHandle *h) {
    if (h == NULL) return;
    SCStream *stream = (__bridge_transfer SCStream *)h->stream;
    SCGoOutput *output = (__bridge_transfer SCGoOutput *)h->output;
    dispatch_queue_t queue = (__bridge_transfer dispatch_queue_t)h->queue;
    dispatch_sync(queue, ^{});
    stream = nil;
    output = nil;
    queue = nil;
    free(h);
}
*/
import "C"

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/rs/zerolog"

	"go2tv.app/screencap/frame"
	"go2tv.app/screencap/internal/lifecycle"
	"go2tv.app/screencap/targets"
)

const scErrLen = 256

// SCFrameStatus values from ScreenCaptureKit.
const (
	scFrameComplete = 0
	scFrameIdle     = 1
	scFrameStarted  = 4
)

var (
	scStreamsMu sync.Mutex
	scStreams   = make(map[int]*sckBackend)
	scNextID    = 1
)

// sckBackend drives one SCStream. ScreenCaptureKit crops and scales on the
// GPU, so frames arrive at the output size.
type sckBackend struct {
	cfg    backendConfig
	id     int
	handle *C.scHandle
	log    *zerolog.Logger

	running atomic.Bool

	once    sync.Once
	stopErr error
}

func newPlatformBackend(cfg backendConfig) (backend, error) {
	conf, free, err := scConfigFor(cfg)
	if err != nil {
		return nil, err
	}
	defer free()

	b := &sckBackend{cfg: cfg, log: cfg.log}
	scStreamsMu.Lock()
	b.id = scNextID
	scNextID++
	scStreams[b.id] = b
	scStreamsMu.Unlock()

	var errBuf [scErrLen]C.char
	b.handle = C.scStreamCreate(C.int(b.id), conf, &errBuf[0], scErrLen)
	if b.handle == nil {
		b.unregister()
		msg := C.GoString(&errBuf[0])
		if strings.HasPrefix(msg, "not found") {
			return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, msg)
		}
		return nil, fmt.Errorf("screencapturekit: %s", msg)
	}

	w, h := cfg.geom.outputSize()
	b.log.Debug().
		Int("stream", b.id).
		Str("target", targets.Describe(cfg.target)).
		Uint32("width", w).
		Uint32("height", h).
		Bool("audio", cfg.opts.CapturesAudio).
		Msg("screencapturekit stream created")
	return b, nil
}

// scConfigFor fills the native stream configuration. The returned func frees
// the excluded-window array.
func scConfigFor(cfg backendConfig) (*C.scConfig, func(), error) {
	conf := (*C.scConfig)(C.calloc(1, C.size_t(unsafe.Sizeof(C.scConfig{}))))
	free := func() {
		if conf.excluded != nil {
			C.free(unsafe.Pointer(conf.excluded))
		}
		C.free(unsafe.Pointer(conf))
	}

	switch t := cfg.target.(type) {
	case targets.Window:
		conf.windowID = C.uint32_t(t.ID)
	case targets.Display:
		conf.displayID = C.uint32_t(t.ID)
	default:
		main, err := targets.GetMainDisplay()
		if err != nil {
			free()
			return nil, nil, err
		}
		conf.displayID = C.uint32_t(main.ID)
	}

	if ids := excludedWindowIDs(cfg.opts.ExcludedTargets); len(ids) > 0 {
		conf.excluded = (*C.uint32_t)(C.calloc(C.size_t(len(ids)), 4))
		copy(unsafe.Slice((*uint32)(unsafe.Pointer(conf.excluded)), len(ids)), ids)
		conf.excludedCount = C.int(len(ids))
	}

	if cfg.opts.CropArea != nil {
		c := cfg.geom.crop
		conf.hasCrop = 1
		conf.cropX, conf.cropY = C.double(c.Origin.X), C.double(c.Origin.Y)
		conf.cropW, conf.cropH = C.double(c.Size.Width), C.double(c.Size.Height)
	}

	w, h := cfg.geom.outputSize()
	conf.width, conf.height = C.uint32_t(w), C.uint32_t(h)
	conf.fps = C.uint32_t(cfg.opts.FPS)
	if cfg.opts.ShowCursor {
		conf.showCursor = 1
	}
	if cfg.opts.CapturesAudio {
		conf.audio = 1
	}
	conf.pixel = C.scPixelBGRA
	if cfg.opts.OutputType == frame.TypeYUV {
		conf.pixel = C.scPixelYUV420
	}
	return conf, free, nil
}

// excludedWindowIDs returns the window ids among excluded. Displays cannot be
// excluded from a display filter and are ignored.
func excludedWindowIDs(excluded []targets.Target) []uint32 {
	var ids []uint32
	for _, t := range excluded {
		if w, ok := t.(targets.Window); ok {
			ids = append(ids, w.ID)
		}
	}
	return ids
}

func (b *sckBackend) start() error {
	var errBuf [scErrLen]C.char
	if C.scStreamStart(b.handle, &errBuf[0], scErrLen) != 0 {
		return fmt.Errorf("screencapturekit: %s", C.GoString(&errBuf[0]))
	}
	b.running.Store(true)
	return nil
}

func (b *sckBackend) stop() error {
	b.once.Do(func() {
		var errBuf [scErrLen]C.char
		var stopErr error
		if b.running.Load() && C.scStreamStop(b.handle, &errBuf[0], scErrLen) != 0 {
			stopErr = fmt.Errorf("screencapturekit: %s", C.GoString(&errBuf[0]))
		}
		C.scStreamFree(b.handle)
		b.handle = nil
		b.unregister()
		b.stopErr = stopErr
	})
	return b.stopErr
}

func (b *sckBackend) frameSize() (uint32, uint32) {
	return b.cfg.geom.outputSize()
}

func (b *sckBackend) unregister() {
	scStreamsMu.Lock()
	delete(scStreams, b.id)
	scStreamsMu.Unlock()
}

func lookupSCK(id C.int) *sckBackend {
	scStreamsMu.Lock()
	defer scStreamsMu.Unlock()
	return scStreams[int(id)]
}

//export scVideoGo
func scVideoGo(id C.int, status C.int, pts C.uint64_t, pixel C.int, width, height C.uint32_t,
	plane0 unsafe.Pointer, stride0 C.size_t, plane1 unsafe.Pointer, stride1 C.size_t) {
	b := lookupSCK(id)
	if b == nil || b.cfg.state.Load() != lifecycle.Running {
		return
	}

	switch int(status) {
	case scFrameComplete, scFrameStarted:
	case scFrameIdle:
		b.cfg.sink.push(frame.NewIdle(b.cfg.opts.OutputType, uint64(pts)))
		return
	default:
		return
	}

	w, h := int(width), int(height)
	if w == 0 || h == 0 || plane0 == nil {
		return
	}
	v, err := sckFrame(int(pixel), w, h, uint64(pts),
		unsafe.Slice((*byte)(plane0), int(stride0)*h), int(stride0),
		planeBytes(plane1, int(stride1), (h+1)/2), int(stride1))
	if err != nil {
		b.cfg.sink.discard("sample_buffer", err)
		return
	}
	b.cfg.sink.push(v)
}

func planeBytes(p unsafe.Pointer, stride, rows int) []byte {
	if p == nil {
		return nil
	}
	return unsafe.Slice((*byte)(p), stride*rows)
}

// sckFrame copies a locked CVPixelBuffer into an owned frame.
func sckFrame(pixel, w, h int, pts uint64, p0 []byte, s0 int, p1 []byte, s1 int) (frame.Video, error) {
	meta := frame.Meta{Width: w, Height: h, DisplayTime: pts}
	if pixel == int(C.scPixelYUV420) {
		if p1 == nil {
			return nil, fmt.Errorf("%w: missing chroma plane", frame.ErrSizeMismatch)
		}
		return &frame.YUVFrame{
			Meta:              meta,
			LuminanceBytes:    frame.PackPlane(p0, s0, w, h),
			LuminanceStride:   w,
			ChrominanceBytes:  frame.PackPlane(p1, s1, w, (h+1)/2),
			ChrominanceStride: w,
		}, nil
	}
	if s0 < w*4 {
		return nil, fmt.Errorf("%w: stride %d for width %d", frame.ErrSizeMismatch, s0, w)
	}
	return frame.NewPacked(frame.FormatBGRA, meta, frame.PackPlane(p0, s0, w*4, h))
}

//export scAudioGo
func scAudioGo(id C.int, pts C.uint64_t, data unsafe.Pointer, size C.uint32_t, frames C.uint32_t, channels C.uint32_t, rate C.uint32_t) {
	b := lookupSCK(id)
	if b == nil || b.cfg.state.Load() != lifecycle.Running || size == 0 {
		return
	}
	payload := C.GoBytes(data, C.int(size))
	b.cfg.sink.push(&frame.AudioFrame{
		Format:      frame.AudioF32,
		Channels:    uint16(channels),
		Planar:      true,
		Data:        payload,
		SampleCount: int(frames),
		Rate:        uint32(rate),
		DisplayTime: uint64(pts),
	})
}

//export scErrorGo
func scErrorGo(id C.int, msg *C.char) {
	b := lookupSCK(id)
	if b == nil || b.cfg.state.Load() != lifecycle.Running {
		return
	}
	b.cfg.sink.fail(errors.New("screencapturekit stream stopped: " + C.GoString(msg)))
}

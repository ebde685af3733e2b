//go:build darwin && cgo

package targets

/*
#cgo CFLAGS: -x objective-c -fobjc-arc
#cgo LDFLAGS: -framework CoreGraphics -framework CoreFoundation -framework AppKit

#include <CoreGraphics/CoreGraphics.h>
#include <CoreFoundation/CoreFoundation.h>
#include <AppKit/AppKit.h>
#include <stdlib.h>
#include <string.h>
#include <stdio.h>

#define SC_MAX_DISPLAYS 32

typedef struct {
    uint32_t id;
    double width;
    double height;
    double scale;
    int main;
    char name[128];
} scDisplayInfo;

typedef struct {
    uint32_t id;
    double width;
    double height;
    char title[256];
} scWindowInfo;

static double displayScale(CGDirectDisplayID did) {
    CGDisplayModeRef mode = CGDisplayCopyDisplayMode(did);
    if (mode == NULL) return 1.0;
    size_t px = CGDisplayModeGetPixelWidth(mode);
    size_t pt = CGDisplayModeGetWidth(mode);
    CGDisplayModeRelease(mode);
    if (pt == 0) return 1.0;
    return (double)px / (double)pt;
}

static void displayName(CGDirectDisplayID did, char *out, size_t n) {
    snprintf(out, n, "Display %u", did);
    for (NSScreen *screen in [NSScreen screens]) {
        NSNumber *num = screen.deviceDescription[@"NSScreenNumber"];
        if (num && [num unsignedIntValue] == did) {
            if (@available(macOS 10.15, *)) {
                const char *s = [screen.localizedName UTF8String];
                if (s) snprintf(out, n, "%s", s);
            }
            return;
        }
    }
}

static int scListDisplays(scDisplayInfo *out, int max) {
    CGDirectDisplayID ids[SC_MAX_DISPLAYS];
    uint32_t count = 0;
    if (CGGetActiveDisplayList(SC_MAX_DISPLAYS, ids, &count) != kCGErrorSuccess) return -1;
    CGDirectDisplayID mainID = CGMainDisplayID();
    int n = 0;
    for (uint32_t i = 0; i < count && n < max; i++) {
        CGRect b = CGDisplayBounds(ids[i]);
        out[n].id = ids[i];
        out[n].width = b.size.width;
        out[n].height = b.size.height;
        out[n].scale = displayScale(ids[i]);
        out[n].main = ids[i] == mainID;
        displayName(ids[i], out[n].name, sizeof(out[n].name));
        n++;
    }
    return n;
}

static int scDisplayInfoFor(uint32_t did, scDisplayInfo *out) {
    CGRect b = CGDisplayBounds(did);
    if (b.size.width == 0 || b.size.height == 0) return -1;
    out->id = did;
    out->width = b.size.width;
    out->height = b.size.height;
    out->scale = displayScale(did);
    out->main = did == CGMainDisplayID();
    displayName(did, out->name, sizeof(out->name));
    return 0;
}

static void copyCFString(CFStringRef s, char *out, size_t n) {
    out[0] = 0;
    if (s == NULL) return;
    CFStringGetCString(s, out, (CFIndex)n, kCFStringEncodingUTF8);
}

// scListWindows returns on-screen, layer-0 windows. When only is non-zero the
// single window with that id is looked up instead.
static int scListWindows(scWindowInfo *out, int max, uint32_t only) {
    CFArrayRef list;
    if (only != 0) {
        list = CGWindowListCopyWindowInfo(kCGWindowListOptionIncludingWindow, only);
    } else {
        list = CGWindowListCopyWindowInfo(kCGWindowListOptionOnScreenOnly | kCGWindowListExcludeDesktopElements, kCGNullWindowID);
    }
    if (list == NULL) return -1;

    int n = 0;
    CFIndex count = CFArrayGetCount(list);
    for (CFIndex i = 0; i < count && n < max; i++) {
        CFDictionaryRef w = CFArrayGetValueAtIndex(list, i);
        int layer = 0;
        CFNumberRef layerRef = CFDictionaryGetValue(w, kCGWindowLayer);
        if (layerRef) CFNumberGetValue(layerRef, kCFNumberIntType, &layer);
        if (layer != 0 && only == 0) continue;

        uint32_t wid = 0;
        CFNumberRef idRef = CFDictionaryGetValue(w, kCGWindowNumber);
        if (idRef) CFNumberGetValue(idRef, kCFNumberSInt32Type, &wid);

        CGRect bounds = CGRectZero;
        CFDictionaryRef boundsRef = CFDictionaryGetValue(w, kCGWindowBounds);
        if (boundsRef) CGRectMakeWithDictionaryRepresentation(boundsRef, &bounds);

        out[n].id = wid;
        out[n].width = bounds.size.width;
        out[n].height = bounds.size.height;
        copyCFString(CFDictionaryGetValue(w, kCGWindowName), out[n].title, sizeof(out[n].title));
        if (out[n].title[0] == 0) {
            copyCFString(CFDictionaryGetValue(w, kCGWindowOwnerName), out[n].title, sizeof(out[n].title));
        }
        n++;
    }
    CFRelease(list);
    return n;
}
*/
import "C"

import (
	"fmt"
	"unsafe"
)

const maxWindows = 512

func displayFromInfo(info C.scDisplayInfo) Display {
	return Display{
		ID:          uint32(info.id),
		Title:       C.GoString(&info.name[0]),
		ScaleFactor: float64(info.scale),
		RawHandle:   uintptr(info.id),
	}
}

func listDisplays() ([]C.scDisplayInfo, error) {
	buf := make([]C.scDisplayInfo, C.SC_MAX_DISPLAYS)
	n := C.scListDisplays(&buf[0], C.int(len(buf)))
	if n < 0 {
		return nil, fmt.Errorf("CGGetActiveDisplayList failed")
	}
	return buf[:int(n)], nil
}

func listWindows(only uint32) ([]C.scWindowInfo, error) {
	size := maxWindows
	if only != 0 {
		size = 1
	}
	buf := (*C.scWindowInfo)(C.calloc(C.size_t(size), C.size_t(unsafe.Sizeof(C.scWindowInfo{}))))
	defer C.free(unsafe.Pointer(buf))
	n := C.scListWindows(buf, C.int(size), C.uint32_t(only))
	if n < 0 {
		return nil, fmt.Errorf("CGWindowListCopyWindowInfo failed")
	}
	out := make([]C.scWindowInfo, int(n))
	copy(out, unsafe.Slice(buf, int(n)))
	return out, nil
}

func allTargets() ([]Target, error) {
	infos, err := listDisplays()
	if err != nil {
		return nil, err
	}
	var out []Target
	for _, info := range infos {
		out = append(out, displayFromInfo(info))
	}

	windows, err := listWindows(0)
	if err != nil {
		return out, nil
	}
	for _, w := range windows {
		out = append(out, Window{ID: uint32(w.id), Title: C.GoString(&w.title[0]), RawHandle: uintptr(w.id)})
	}
	return out, nil
}

func mainDisplay() (Display, error) {
	var info C.scDisplayInfo
	if C.scDisplayInfoFor(C.uint32_t(C.CGMainDisplayID()), &info) != 0 {
		return Display{}, fmt.Errorf("%w: no main display", ErrTargetNotFound)
	}
	return displayFromInfo(info), nil
}

func scaleFactor(t Target) (float64, error) {
	switch v := t.(type) {
	case Display:
		var info C.scDisplayInfo
		if C.scDisplayInfoFor(C.uint32_t(v.ID), &info) != 0 {
			return 0, fmt.Errorf("%w: display %d", ErrTargetNotFound, v.ID)
		}
		return float64(info.scale), nil
	case Window:
		// Windows report point sizes on the main display's backing scale.
		var info C.scDisplayInfo
		if C.scDisplayInfoFor(C.uint32_t(C.CGMainDisplayID()), &info) != 0 {
			return 1, nil
		}
		return float64(info.scale), nil
	default:
		return 0, fmt.Errorf("%w: unknown target type %T", ErrTargetNotFound, t)
	}
}

func dimensions(t Target) (uint64, uint64, error) {
	switch v := t.(type) {
	case Display:
		var info C.scDisplayInfo
		if C.scDisplayInfoFor(C.uint32_t(v.ID), &info) != 0 {
			return 0, 0, fmt.Errorf("%w: display %d", ErrTargetNotFound, v.ID)
		}
		return uint64(info.width), uint64(info.height), nil
	case Window:
		ws, err := listWindows(v.ID)
		if err != nil || len(ws) == 0 {
			return 0, 0, fmt.Errorf("%w: window %d", ErrTargetNotFound, v.ID)
		}
		return uint64(ws[0].width), uint64(ws[0].height), nil
	default:
		return 0, 0, fmt.Errorf("%w: unknown target type %T", ErrTargetNotFound, t)
	}
}

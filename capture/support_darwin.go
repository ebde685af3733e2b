//go:build darwin

package capture

/*
#cgo CFLAGS: -x objective-c -fobjc-arc
#cgo LDFLAGS: -framework Foundation -framework CoreGraphics
#include <Foundation/Foundation.h>
#include <CoreGraphics/CoreGraphics.h>
#include <stdbool.h>

static bool scIsSupported(void) {
    NSOperatingSystemVersion v = {12, 3, 0};
    return [[NSProcessInfo processInfo] isOperatingSystemAtLeastVersion:v];
}

static bool scHasPermission(void) {
    return CGPreflightScreenCaptureAccess();
}

static bool scRequestPermission(void) {
    return CGRequestScreenCaptureAccess();
}
*/
import "C"

// IsSupported reports whether ScreenCaptureKit is available (macOS 12.3+).
func IsSupported() bool {
	return bool(C.scIsSupported())
}

// HasPermission reports whether screen recording has been granted.
func HasPermission() bool {
	return bool(C.scHasPermission())
}

// RequestPermission shows the system prompt when permission has not been
// decided yet. It returns the current grant state; a fresh grant usually takes
// effect only after the process restarts.
func RequestPermission() bool {
	return bool(C.scRequestPermission())
}

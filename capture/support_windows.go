//go:build windows

package capture

import "golang.org/x/sys/windows"

// Windows Graphics Capture with free-threaded frame pools needs 10 1903.
const minWGCBuild = 18362

// IsSupported reports whether Windows Graphics Capture is available.
func IsSupported() bool {
	v := windows.RtlGetVersion()
	if v.MajorVersion > 10 {
		return true
	}
	return v.MajorVersion == 10 && v.BuildNumber >= minWGCBuild
}

// HasPermission always reports true; Windows has no capture consent prompt.
func HasPermission() bool {
	return true
}

// RequestPermission is a no-op on Windows.
func RequestPermission() bool {
	return true
}

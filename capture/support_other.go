//go:build !linux && !windows && !darwin

package capture

func IsSupported() bool { return false }

func HasPermission() bool { return false }

func RequestPermission() bool { return false }

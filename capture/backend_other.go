//go:build !linux && !windows && !darwin

package capture

func newPlatformBackend(backendConfig) (backend, error) {
	return nil, ErrNotSupported
}

//go:build !linux && !windows && !(darwin && cgo)

package targets

func allTargets() ([]Target, error) {
	return nil, ErrNotSupported
}

func mainDisplay() (Display, error) {
	return Display{}, ErrNotSupported
}

func scaleFactor(Target) (float64, error) {
	return 0, ErrNotSupported
}

func dimensions(Target) (uint64, uint64, error) {
	return 0, 0, ErrNotSupported
}

package pipewire

import "golang.org/x/sys/unix"

// monotonicNow reads CLOCK_MONOTONIC, the clock spa_meta_header.pts is
// stamped with.
func monotonicNow() uint64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0
	}
	return uint64(ts.Nano())
}

// frameTimestamp returns the buffer's header pts, or the current monotonic
// time for buffers without a header so both kinds share one timeline.
func frameTimestamp(pts uint64, hasPTS bool) uint64 {
	if hasPTS {
		return pts
	}
	return monotonicNow()
}

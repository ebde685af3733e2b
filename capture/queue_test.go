package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"go2tv.app/screencap/frame"
)

func idleFrame(ts uint64) frame.Frame {
	return frame.NewIdle(frame.TypeBGRA, ts)
}

func TestQueueFIFO(t *testing.T) {
	q := newFrameQueue(nil)
	for i := uint64(1); i <= 3; i++ {
		if !q.push(idleFrame(i)) {
			t.Fatalf("push %d rejected", i)
		}
	}
	if q.depth() != 3 {
		t.Fatalf("depth = %d, want 3", q.depth())
	}
	for i := uint64(1); i <= 3; i++ {
		f, err := q.next(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if f.Timestamp() != i {
			t.Fatalf("frame %d has timestamp %d", i, f.Timestamp())
		}
	}
	if q.pushed.Load() != 3 || q.delivered.Load() != 3 {
		t.Fatalf("counters pushed=%d delivered=%d", q.pushed.Load(), q.delivered.Load())
	}
}

func TestQueueNextBlocksUntilPush(t *testing.T) {
	q := newFrameQueue(nil)
	got := make(chan uint64, 1)
	go func() {
		f, err := q.next(context.Background())
		if err == nil {
			got <- f.Timestamp()
		}
	}()

	time.Sleep(20 * time.Millisecond)
	q.push(idleFrame(42))

	select {
	case ts := <-got:
		if ts != 42 {
			t.Fatalf("timestamp = %d", ts)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("next did not wake up after push")
	}
}

func TestQueueFailDeliversBacklogFirst(t *testing.T) {
	q := newFrameQueue(nil)
	q.push(idleFrame(1))
	streamErr := errors.New("compositor went away")
	q.fail(streamErr)

	if q.push(idleFrame(2)) {
		t.Fatal("push after fail should be rejected")
	}
	if _, err := q.next(context.Background()); err != nil {
		t.Fatalf("queued frame lost: %v", err)
	}
	_, err := q.next(context.Background())
	if !errors.Is(err, ErrCaptureEnded) || !errors.Is(err, streamErr) {
		t.Fatalf("err = %v, want ErrCaptureEnded wrapping the stream error", err)
	}
	if !errors.Is(q.failure(), streamErr) {
		t.Fatalf("failure() = %v", q.failure())
	}
}

func TestQueueCloseKeepsFirstError(t *testing.T) {
	q := newFrameQueue(nil)
	first := errors.New("first")
	q.close(first)
	q.close(errors.New("second"))
	q.close(nil)
	if q.failure() != first {
		t.Fatalf("failure() = %v, want first", q.failure())
	}
}

func TestQueueNextHonoursContext(t *testing.T) {
	q := newFrameQueue(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := q.next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestQueueRejectsNil(t *testing.T) {
	q := newFrameQueue(nil)
	if q.push(nil) {
		t.Fatal("nil frame accepted")
	}
	q.discard("test", nil)
	if q.dropped.Load() != 1 {
		t.Fatalf("dropped = %d", q.dropped.Load())
	}
}

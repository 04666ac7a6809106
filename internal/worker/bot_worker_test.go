package worker

import (
	"context"
	"errors"
	"testing"
	"time"
)

type scriptedRunner struct {
	errs  []error
	calls int
	onRun func(call int)
}

func (r *scriptedRunner) Run(ctx context.Context) error {
	r.calls++
	if r.onRun != nil {
		r.onRun(r.calls)
	}
	if r.calls <= len(r.errs) {
		return r.errs[r.calls-1]
	}
	return nil
}

func newTestWorker(r Runner) (*BotWorker, *[]time.Duration) {
	var waits []time.Duration
	w := NewBotWorker(r, nil)
	w.minBackoff = time.Second
	w.maxBackoff = 3 * time.Second
	w.wait = func(ctx context.Context, d time.Duration) bool {
		waits = append(waits, d)
		return true
	}
	return w, &waits
}

func TestBotWorkerRestartsWithBackoff(t *testing.T) {
	boom := errors.New("connect: dial tcp: refused")
	r := &scriptedRunner{errs: []error{boom, boom, boom, boom}}
	w, waits := newTestWorker(r)

	w.Run(context.Background())

	if r.calls != 5 {
		t.Fatalf("calls = %d, want 5", r.calls)
	}
	want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second}
	if len(*waits) != len(want) {
		t.Fatalf("waits = %v, want %v", *waits, want)
	}
	for i := range want {
		if (*waits)[i] != want[i] {
			t.Errorf("wait[%d] = %v, want %v", i, (*waits)[i], want[i])
		}
	}
}

func TestBotWorkerResetsBackoffAfterHealthyRun(t *testing.T) {
	boom := errors.New("gateway closed")
	clock := time.Unix(0, 0)
	r := &scriptedRunner{errs: []error{boom, boom, boom}}
	w, waits := newTestWorker(r)
	w.healthyAfter = time.Minute
	w.now = func() time.Time { return clock }
	r.onRun = func(call int) {
		if call == 3 {
			clock = clock.Add(time.Hour)
		}
	}

	w.Run(context.Background())

	want := []time.Duration{time.Second, 2 * time.Second, time.Second}
	for i := range want {
		if (*waits)[i] != want[i] {
			t.Errorf("wait[%d] = %v, want %v", i, (*waits)[i], want[i])
		}
	}
}

func TestBotWorkerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &scriptedRunner{errs: []error{errors.New("x"), errors.New("y")}}
	r.onRun = func(int) { cancel() }
	w, waits := newTestWorker(r)

	select {
	case <-w.Start(ctx):
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
	if r.calls != 1 || len(*waits) != 0 {
		t.Errorf("calls = %d waits = %v, want 1 call and no wait", r.calls, *waits)
	}
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if sleep(ctx, time.Hour) {
		t.Error("sleep returned true on a cancelled context")
	}
	if !sleep(context.Background(), time.Millisecond) {
		t.Error("sleep returned false after the timer fired")
	}
}

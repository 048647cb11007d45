package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"txdash/internal/amqp"
)

type fakeReseeder struct {
	calls atomic.Int32
	err   error
}

func (f *fakeReseeder) Reseed(ctx context.Context) (int, error) {
	f.calls.Add(1)
	if f.err != nil {
		return 0, f.err
	}
	return 60, nil
}

type fakeInvalidator struct{ calls int }

func (f *fakeInvalidator) InvalidateAggregates(ctx context.Context) int {
	f.calls++
	return 3
}

func TestSeedWorker_RunOnce(t *testing.T) {
	r := &fakeReseeder{}
	n, err := NewSeedWorker(r, 0).RunOnce(context.Background())
	if err != nil || n != 60 {
		t.Fatalf("RunOnce() = %d, %v", n, err)
	}

	r.err = errors.New("feed unavailable")
	if _, err := NewSeedWorker(r, 0).RunOnce(context.Background()); !errors.Is(err, r.err) {
		t.Fatalf("RunOnce() error = %v, want wrapped feed error", err)
	}
}

func TestSeedWorker_RunDisabled(t *testing.T) {
	r := &fakeReseeder{}
	if err := NewSeedWorker(r, 0).Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if r.calls.Load() != 0 {
		t.Fatalf("disabled worker reseeded %d times", r.calls.Load())
	}
}

func TestSeedWorker_RunTicksUntilCancelled(t *testing.T) {
	r := &fakeReseeder{err: errors.New("transient")}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- NewSeedWorker(r, 10*time.Millisecond).Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for r.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("worker ran %d times before deadline", r.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestInvalidationHandler(t *testing.T) {
	inv := &fakeInvalidator{}
	handle := InvalidationHandler(context.Background(), inv)

	if err := handle(amqp.NewSeedCompletedMessage(60, "https://example.com/feed.json")); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if inv.calls != 1 {
		t.Fatalf("InvalidateAggregates called %d times, want 1", inv.calls)
	}
	if err := handle(nil); err == nil {
		t.Fatal("expected error for nil message")
	}
}

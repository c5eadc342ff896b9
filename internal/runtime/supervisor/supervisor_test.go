package supervisor

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func waitAll(t *testing.T, s *Supervisor) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Wait(ctx)
}

func TestGoRestartRetriesUntilSuccess(t *testing.T) {
	t.Parallel()
	s := NewSupervisor(context.Background())

	var runs int32
	done := make(chan struct{})
	s.GoRestart("flaky", func(ctx context.Context) error {
		if atomic.AddInt32(&runs, 1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("restart loop never reached the successful run")
	}
	s.Cancel()
	if err := waitAll(t, s); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	// Errors handled by the restart loop never count as fatal.
	if got := atomic.LoadInt32(&runs); got != 3 {
		t.Fatalf("runs = %d, want 3", got)
	}
}

func TestGoRestartStopsOnCancel(t *testing.T) {
	t.Parallel()
	s := NewSupervisor(context.Background())

	s.GoRestart("stuck", func(ctx context.Context) error {
		return errors.New("always failing")
	})

	s.Cancel()
	if err := waitAll(t, s); err != nil {
		t.Fatalf("Wait after cancel: %v", err)
	}
}

func TestGoCancelOnError(t *testing.T) {
	t.Parallel()
	s := NewSupervisor(context.Background(), WithCancelOnError(true))

	s.Go("boom", func(ctx context.Context) error {
		return errors.New("boom")
	})

	select {
	case <-s.Context().Done():
	case <-time.After(10 * time.Second):
		t.Fatal("context not canceled after goroutine error")
	}
	err := waitAll(t, s)
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("Wait = %v, want the goroutine error", err)
	}
}

func TestGoRecoversPanic(t *testing.T) {
	t.Parallel()
	s := NewSupervisor(context.Background(), WithCancelOnError(true))

	s.Go0("panics", func(ctx context.Context) {
		panic("kaboom")
	})

	select {
	case <-s.Context().Done():
	case <-time.After(10 * time.Second):
		t.Fatal("context not canceled after panic")
	}
	err := waitAll(t, s)
	if err == nil || !strings.Contains(err.Error(), "panic") {
		t.Fatalf("Wait = %v, want a recovered panic error", err)
	}
}

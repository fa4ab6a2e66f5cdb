package voice_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/quincybot/quincy/internal/voice"
)

type countingEvictor struct {
	calls atomic.Int64
}

func (e *countingEvictor) EvictIdle(context.Context, time.Duration) int {
	e.calls.Add(1)
	return 0
}

func TestNewReaperValidation(t *testing.T) {
	t.Parallel()

	if _, err := voice.NewReaper(voice.ReaperConfig{}); err == nil {
		t.Fatal("NewReaper with empty config: want error")
	}
	if _, err := voice.NewReaper(voice.ReaperConfig{
		Evictor:   &countingEvictor{},
		Interval:  -time.Second,
		Threshold: time.Minute,
	}); err == nil {
		t.Fatal("NewReaper with negative interval: want error")
	}
}

func TestReaperScansPeriodically(t *testing.T) {
	t.Parallel()

	ev := &countingEvictor{}
	r, err := voice.NewReaper(voice.ReaperConfig{
		Evictor:   ev,
		Interval:  5 * time.Millisecond,
		Threshold: time.Minute,
	})
	if err != nil {
		t.Fatalf("NewReaper: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()

	deadline := time.After(2 * time.Second)
	for ev.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d scans before deadline, want >= 3", ev.calls.Load())
		case <-time.After(time.Millisecond):
		}
	}

	r.Stop()
	r.Stop() // safe to call twice
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v after Stop, want nil", err)
	}
}

func TestReaperStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	r, err := voice.NewReaper(voice.ReaperConfig{
		Evictor:   &countingEvictor{},
		Interval:  time.Hour,
		Threshold: time.Minute,
	})
	if err != nil {
		t.Fatalf("NewReaper: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestReaperEvictsIdleSessionWithinOneInterval(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	conn := f.join(t)

	// Session ages past the threshold while nothing touches it.
	f.clock.Advance(10 * time.Minute)

	r, err := voice.NewReaper(voice.ReaperConfig{
		Evictor:   f.ctrl,
		Interval:  5 * time.Millisecond,
		Threshold: 5 * time.Minute,
	})
	if err != nil {
		t.Fatalf("NewReaper: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := f.ctrl.Session("guild-1"); !ok {
			break
		}
		select {
		case <-deadline:
			r.Stop()
			<-done
			t.Fatal("idle session not evicted before deadline")
		case <-time.After(time.Millisecond):
		}
	}

	// Join the loop before inspecting the handle so the eviction's cleanup
	// has finished.
	r.Stop()
	<-done

	if !conn.Closed() {
		t.Error("evicted session's connection not closed")
	}
	if conn.CallCountClose != 1 {
		t.Errorf("conn closed %d times, want exactly 1", conn.CallCountClose)
	}
}

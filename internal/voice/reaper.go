package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Evictor is the slice of the controller the reaper needs.
type Evictor interface {
	EvictIdle(ctx context.Context, threshold time.Duration) int
}

// ReaperConfig carries the reaper's collaborator and timing.
type ReaperConfig struct {
	// Evictor performs the actual eviction scan. Required.
	Evictor Evictor

	// Interval is the scan period. Required, positive.
	Interval time.Duration

	// Threshold is the idle age past which a session is evicted. Required,
	// positive.
	Threshold time.Duration
}

// Reaper periodically disconnects voice sessions that have seen no user
// activity past the configured threshold. Eviction precision is one interval:
// a session is gone within one scan period after crossing the threshold.
type Reaper struct {
	evictor   Evictor
	interval  time.Duration
	threshold time.Duration

	done     chan struct{}
	stopOnce sync.Once
}

// NewReaper validates cfg and returns a Reaper. Call [Reaper.Run] to start
// scanning.
func NewReaper(cfg ReaperConfig) (*Reaper, error) {
	var errs []error
	if cfg.Evictor == nil {
		errs = append(errs, errors.New("Evictor must not be nil"))
	}
	if cfg.Interval <= 0 {
		errs = append(errs, fmt.Errorf("Interval must be positive, got %v", cfg.Interval))
	}
	if cfg.Threshold <= 0 {
		errs = append(errs, fmt.Errorf("Threshold must be positive, got %v", cfg.Threshold))
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("voice: invalid reaper config: %w", errors.Join(errs...))
	}
	return &Reaper{
		evictor:   cfg.Evictor,
		interval:  cfg.Interval,
		threshold: cfg.Threshold,
		done:      make(chan struct{}),
	}, nil
}

// Run scans until ctx is cancelled or [Reaper.Stop] is called. It returns
// ctx.Err() on cancellation and nil after Stop, so it slots into an errgroup.
func (r *Reaper) Run(ctx context.Context) error {
	slog.Info("inactivity reaper started", "interval", r.interval, "threshold", r.threshold)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.done:
			return nil
		case <-ticker.C:
			if n := r.evictor.EvictIdle(ctx, r.threshold); n > 0 {
				slog.Debug("reaper scan complete", "evicted", n)
			}
		}
	}
}

// Stop signals Run to return. Safe to call more than once.
func (r *Reaper) Stop() {
	r.stopOnce.Do(func() { close(r.done) })
}

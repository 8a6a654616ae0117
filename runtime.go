package procslot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/viant/procslot/internal/clock"
	"github.com/viant/procslot/tracing"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Runtime advances started processes on a fixed tick
type Runtime struct {
	service  *Service
	interval time.Duration
	logger   *zap.Logger
	mux      sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	ticks    int
}

func newRuntime(s *Service) *Runtime {
	return &Runtime{service: s, interval: s.config.TickInterval, logger: s.logger.Named("runtime")}
}

// Start launches the tick loop; starting a running loop fails
func (r *Runtime) Start(ctx context.Context) error {
	r.mux.Lock()
	defer r.mux.Unlock()
	if r.cancel != nil {
		return fmt.Errorf("runtime already started")
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	go r.run(ctx, r.done)
	return nil
}

func (r *Runtime) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	last := clock.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := clock.Now()
			r.Tick(ctx, now.Sub(last))
			last = now
		}
	}
}

// Tick advances every active process by delta once and reaps completed
// processes when configured. Faults are logged; the loop keeps running.
func (r *Runtime) Tick(ctx context.Context, delta time.Duration) {
	manager := r.service.manager
	if err := manager.Advance(ctx, delta); err != nil {
		r.logger.Error("process fault", zap.Error(err))
	}
	if r.service.config.ReapCompleted {
		reaped, err := manager.ReapCompleted(ctx)
		if err != nil {
			r.logger.Error("failed to reap completed processes", zap.Error(err))
		}
		if len(reaped) > 0 {
			r.logger.Info("reaped completed processes", zap.Strings("processes", reaped))
		}
	}
	r.mux.Lock()
	r.ticks++
	r.mux.Unlock()
}

// Ticks returns the number of ticks performed
func (r *Runtime) Ticks() int {
	r.mux.Lock()
	defer r.mux.Unlock()
	return r.ticks
}

// Shutdown stops the loop, unloads every process, stops queued delivery and
// flushes traces.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.mux.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mux.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
	err := r.service.manager.Shutdown(ctx)
	if r.service.events != nil {
		r.service.events.Close()
	}
	if r.service.config.Tracing.Enabled {
		err = multierr.Append(err, tracing.Shutdown(ctx))
	}
	return err
}

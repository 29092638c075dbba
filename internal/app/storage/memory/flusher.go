package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dreamwell/sleepdiary/internal/app/system"
	"github.com/dreamwell/sleepdiary/pkg/logger"
)

var _ system.Service = (*Flusher)(nil)

// Flusher periodically writes the store snapshot to disk and flushes
// unconditionally on Stop, bounding data loss on abrupt termination to one
// interval.
type Flusher struct {
	store    *Store
	log      *logger.Logger
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewFlusher creates a lifecycle-managed snapshot flusher.
func NewFlusher(store *Store, interval time.Duration, log *logger.Logger) *Flusher {
	if log == nil {
		log = logger.NewDefault("snapshot-flusher")
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Flusher{
		store:    store,
		log:      log,
		interval: interval,
	}
}

func (f *Flusher) Name() string { return "snapshot-flusher" }

func (f *Flusher) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.running = true
	f.mu.Unlock()

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if err := f.store.Flush(); err != nil {
					f.log.WithError(err).Warn("snapshot flush failed")
				}
			}
		}
	}()

	f.log.Infof("snapshot flusher started, interval %s", f.interval)
	return nil
}

func (f *Flusher) Stop(ctx context.Context) error {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return nil
	}
	cancel := f.cancel
	f.running = false
	f.cancel = nil
	f.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	// Final flush so graceful shutdown never loses data.
	if err := f.store.Flush(); err != nil {
		f.log.WithError(err).Error("final snapshot flush failed")
		return err
	}

	f.log.Info("snapshot flusher stopped")
	return nil
}

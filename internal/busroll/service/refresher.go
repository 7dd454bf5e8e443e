package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/BrandonDHaskell/busroll/internal/busroll/identity"
)

// Rebuilder rebuilds the installed gallery and can drop a single subject
// from it in place.
type Rebuilder interface {
	Rebuild(ctx context.Context) (identity.BuildReport, error)
	EvictSubject(subjectID string)
}

// GalleryRefresher rebuilds the gallery in the background when the
// registry reports enrollment changes, and optionally on a fixed interval.
// Bursts of invalidations within the debounce window trigger one rebuild.
// It runs as a background goroutine and is safe to stop via its context
// or the Stop method.
type GalleryRefresher struct {
	rebuilder Rebuilder
	interval  time.Duration
	debounce  time.Duration
	logger    *log.Logger

	signal    chan struct{}
	done      chan struct{}
	cancel    context.CancelFunc
	startOnce sync.Once
	stopOnce  sync.Once
	started   bool
	mu        sync.Mutex
}

// RefresherConfig holds the parameters for NewGalleryRefresher.
type RefresherConfig struct {
	// IntervalMinutes forces a rebuild this often.  0 rebuilds only on
	// invalidation.
	IntervalMinutes int

	// Debounce is how long to wait for further invalidations before
	// rebuilding.  Defaults to 2s.
	Debounce time.Duration
}

// NewGalleryRefresher creates a refresher but does not start it.
// Call Start to begin the background loop.
func NewGalleryRefresher(r Rebuilder, cfg RefresherConfig, logger *log.Logger) *GalleryRefresher {
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &GalleryRefresher{
		rebuilder: r,
		interval:  time.Duration(cfg.IntervalMinutes) * time.Minute,
		debounce:  debounce,
		logger:    logger,
		signal:    make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

// InvalidateGallery schedules a rebuild.  It never blocks.
func (r *GalleryRefresher) InvalidateGallery(reason string) {
	select {
	case r.signal <- struct{}{}:
		r.logger.Printf("gallery invalidated: %s", reason)
	default:
		// A rebuild is already pending.
	}
}

// EvictSubject removes subjectID from the installed gallery right away.
// The rebuild scheduled by the matching invalidation follows later.
func (r *GalleryRefresher) EvictSubject(subjectID string) {
	r.rebuilder.EvictSubject(subjectID)
}

// Start begins the background loop.  The loop exits when ctx is cancelled
// or Stop is called.
func (r *GalleryRefresher) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(ctx)

		r.mu.Lock()
		r.cancel = cancel
		r.started = true
		r.mu.Unlock()

		go r.loop(ctx)

		if r.interval > 0 {
			r.logger.Printf("gallery refresher started (interval=%s, debounce=%s)", r.interval, r.debounce)
		} else {
			r.logger.Printf("gallery refresher started (on invalidation only, debounce=%s)", r.debounce)
		}
	})
}

// Stop signals the refresher to exit and waits for it to finish.
func (r *GalleryRefresher) Stop() {
	r.mu.Lock()
	started, cancel := r.started, r.cancel
	r.mu.Unlock()
	if !started {
		return
	}
	r.stopOnce.Do(cancel)
	<-r.done
}

func (r *GalleryRefresher) loop(ctx context.Context) {
	defer close(r.done)

	var tick <-chan time.Time
	if r.interval > 0 {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			r.rebuild(ctx)
		case <-r.signal:
			timer := time.NewTimer(r.debounce)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			// Invalidations that arrived while waiting are covered by
			// this rebuild.
			select {
			case <-r.signal:
			default:
			}
			r.rebuild(ctx)
		}
	}
}

func (r *GalleryRefresher) rebuild(ctx context.Context) {
	if _, err := r.rebuilder.Rebuild(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		r.logger.Printf("gallery refresh error: %v", err)
	}
}

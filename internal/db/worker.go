package db

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrWorkerClosed is returned by Do after Close.
var ErrWorkerClosed = errors.New("db: writer closed")

type TxFn func(ctx context.Context, tx *sql.Tx) error

// Job states.  A queued job is either claimed by the loop or abandoned by
// its caller, never both.
const (
	jobQueued int32 = iota
	jobRunning
	jobAbandoned
)

type job struct {
	ctx   context.Context
	fn    TxFn
	ch    chan error
	state *atomic.Int32
}

// Worker owns every write transaction.  Jobs run one at a time on a single
// goroutine, so a TxFn that reads, validates, and writes is atomic with
// respect to every other TxFn submitted to the same Worker.
type Worker struct {
	db   *sql.DB
	jobs chan job
	done chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewWorker(db *sql.DB) *Worker {
	w := &Worker{
		db:   db,
		jobs: make(chan job, 256),
		done: make(chan struct{}),
	}
	go w.loop()
	return w
}

// Close stops accepting jobs, drains the queue, and waits for the loop to
// exit.  It is safe to call more than once.
func (w *Worker) Close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.jobs)
	}
	w.mu.Unlock()
	<-w.done
}

// Do runs fn in a transaction on the writer goroutine.  A caller whose ctx
// ends while fn is still queued gets ctx.Err() and fn never runs.  Once fn
// has started, Do waits for the transaction and returns its outcome, so a
// nil result always means the commit happened.
func (w *Worker) Do(ctx context.Context, fn TxFn) error {
	j := job{ctx: ctx, fn: fn, ch: make(chan error, 1), state: new(atomic.Int32)}

	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return ErrWorkerClosed
	}
	// Enqueue; bail out if the caller's context expires while the buffer is full.
	select {
	case w.jobs <- j:
	case <-ctx.Done():
		w.mu.RUnlock()
		return ctx.Err()
	}
	w.mu.RUnlock()

	select {
	case err := <-j.ch:
		return err
	case <-ctx.Done():
		if j.state.CompareAndSwap(jobQueued, jobAbandoned) {
			return ctx.Err()
		}
		// Already running: the transaction observes the same ctx and ends
		// promptly, committed or not.
		return <-j.ch
	}
}

func (w *Worker) loop() {
	defer close(w.done)

	for j := range w.jobs {
		if !j.state.CompareAndSwap(jobQueued, jobRunning) {
			continue
		}
		if err := j.ctx.Err(); err != nil {
			j.ch <- err
			continue
		}

		tx, err := w.db.BeginTx(j.ctx, nil)
		if err != nil {
			j.ch <- err
			continue
		}

		if err := j.fn(j.ctx, tx); err != nil {
			_ = tx.Rollback()
			j.ch <- err
			continue
		}

		j.ch <- tx.Commit()
	}
}

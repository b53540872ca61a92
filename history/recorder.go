package history

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	dtnerrors "github.com/xiaonanln/dtnview/util/errors"
	"github.com/xiaonanln/dtnview/util/logger"
	"github.com/xiaonanln/dtnview/util/metrics"
	"github.com/xiaonanln/dtnview/util/workerpool"
)

var log = logger.NewLogger("history")

const (
	defaultWriteTimeout = 5 * time.Second
	defaultMaxPending   = 256
)

// AsyncRecorder hands point batches to a worker pool so callers never wait
// on the store. Batches beyond MaxPending are dropped.
type AsyncRecorder struct {
	ctx          context.Context
	store        Store
	pool         *workerpool.WorkerPool
	writeTimeout time.Duration
	maxPending   int64

	filter SeriesFilter

	pending  atomic.Int64
	inflight sync.WaitGroup
	dropped  atomic.Int64
}

// SeriesFilter decides which series a recorder keeps.
type SeriesFilter interface {
	Allow(series string) bool
}

// NewAsyncRecorder starts a recorder with the given number of workers.
func NewAsyncRecorder(ctx context.Context, store Store, workers int) *AsyncRecorder {
	r := &AsyncRecorder{
		ctx:          ctx,
		store:        store,
		pool:         workerpool.New(ctx, workers, defaultMaxPending),
		writeTimeout: defaultWriteTimeout,
		maxPending:   defaultMaxPending,
	}
	r.pool.Start()
	return r
}

// SetFilter restricts recording to the series f allows. It must be called
// before the first Record.
func (r *AsyncRecorder) SetFilter(f SeriesFilter) {
	r.filter = f
}

// Record queues a copy of points for writing.
func (r *AsyncRecorder) Record(points []Point) {
	batch := r.keep(points)
	if len(batch) == 0 {
		return
	}
	if r.pending.Add(1) > r.maxPending {
		r.pending.Add(-1)
		if r.dropped.Add(1)%100 == 1 {
			log.Warnf("History writer is behind, dropped %d batches so far", r.dropped.Load())
		}
		return
	}

	r.inflight.Add(1)
	task := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, r.writeTimeout)
		defer cancel()
		if err := r.store.Write(ctx, batch); err != nil {
			err = dtnerrors.WrapTimeout("history write", r.store.Backend(), err)
			if dtnerrors.IsTimeout(err) {
				log.Warnf("Dropped %d history points: %v", len(batch), err)
			} else {
				log.Errorf("Failed to write %d history points to %s: %v", len(batch), r.store.Backend(), err)
			}
			metrics.RecordHistoryWriteError(r.store.Backend())
			return err
		}
		metrics.RecordHistoryPoints(r.store.Backend(), len(batch))
		return nil
	}
	result, ok := r.pool.TrySubmit(task)
	if !ok {
		r.finish()
		r.dropped.Add(1)
		log.Debugf("History writer stopped, dropped a batch of %d points", len(batch))
		return
	}
	// the pool answers every accepted task, including the ones Stop discards
	go func() {
		<-result
		r.finish()
	}()
}

func (r *AsyncRecorder) keep(points []Point) []Point {
	batch := make([]Point, 0, len(points))
	for _, p := range points {
		if r.filter == nil || r.filter.Allow(p.Series) {
			batch = append(batch, p)
		}
	}
	return batch
}

func (r *AsyncRecorder) finish() {
	r.pending.Add(-1)
	r.inflight.Done()
}

// Dropped returns how many batches were discarded because the writer was
// behind.
func (r *AsyncRecorder) Dropped() int64 {
	return r.dropped.Load()
}

// Flush waits until every queued batch has been written or the recorder's
// context ends.
func (r *AsyncRecorder) Flush() {
	if r.ctx.Err() != nil {
		return
	}
	flushed := make(chan struct{})
	go func() {
		r.inflight.Wait()
		close(flushed)
	}()
	select {
	case <-flushed:
	case <-r.ctx.Done():
	}
}

// Close flushes and stops the workers. Batches still queued when the
// context has ended are discarded. The store is left open.
func (r *AsyncRecorder) Close() {
	r.Flush()
	r.pool.Stop()
	r.inflight.Wait()
}

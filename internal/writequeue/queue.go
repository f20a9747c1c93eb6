// Package writequeue implements spec §4.6: a bounded, durable,
// throughput-oriented write path from block fragments to SQLite,
// generalizing the teacher's one-off db.Exec insert loop
// (geth/geth-17-indexer) into a bounded queue with N parallel bulk
// writers. The writers are a fixed pool of writerCount goroutines
// tracked by a sync.WaitGroup.
package writequeue

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dando385/evm-indexer/internal/model"
)

// Queue is the single-producer, N-consumer channel spec §4.6 describes:
// "enqueue, queue_depth, wait_for_drain, start, stop."
type Queue struct {
	db  *sql.DB
	log *logrus.Entry

	highWater    int
	writerCount  int
	batchSize    int
	drainTimeout time.Duration

	mu       sync.Mutex
	buf      []model.BlockFragment
	depth    int
	drainers []chan struct{}

	notEmpty chan struct{}
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New builds a Queue. highWater gates producer backpressure
// (queue_high_water); writerCount is the parallel writer topology
// width (writer_concurrency, default 15); batchSize is the per-cycle
// pop ceiling (write_batch_size, default 200).
func New(db *sql.DB, highWater, writerCount, batchSize int, log *logrus.Entry) *Queue {
	if highWater <= 0 {
		highWater = 50000
	}
	if writerCount <= 0 {
		writerCount = 15
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Queue{
		db:           db,
		log:          log.WithField("component", "writequeue"),
		highWater:    highWater,
		writerCount:  writerCount,
		batchSize:    batchSize,
		drainTimeout: 60 * time.Second,
		notEmpty:     make(chan struct{}, 1),
		stopCh:       make(chan struct{}),
	}
}

// SetDrainTimeout overrides the bound on the final shutdown flush (spec
// §5: "Shutdown is bounded by the configured request timeout (default
// 60 s)"). Callers typically pass the same duration as the RPC client's
// request timeout. A non-positive value is ignored.
func (q *Queue) SetDrainTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	q.mu.Lock()
	q.drainTimeout = d
	q.mu.Unlock()
}

// Enqueue appends a completed fragment. Producers are expected to
// check QueueDepth against the high-water mark themselves and call
// WaitForDrain before calling Enqueue when above it (spec §4.6
// "Backpressure": "Producers check queue_depth before claiming new
// work").
func (q *Queue) Enqueue(frag model.BlockFragment) {
	q.mu.Lock()
	q.buf = append(q.buf, frag)
	q.depth = len(q.buf)
	q.mu.Unlock()
	q.signal()
}

// QueueDepth reports the number of fragments awaiting a writer.
func (q *Queue) QueueDepth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.depth
}

// HighWater reports the configured backpressure threshold.
func (q *Queue) HighWater() int {
	return q.highWater
}

// WaitForDrain blocks until the queue reaches empty at least once, per
// spec §4.6 "Drain signaling": "fires when the queue reaches empty ...
// Multiple waiters are all released."
func (q *Queue) WaitForDrain(ctx context.Context) error {
	ch := make(chan struct{})
	q.mu.Lock()
	if q.depth == 0 {
		q.mu.Unlock()
		close(ch)
		return nil
	}
	q.drainers = append(q.drainers, ch)
	q.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) signal() {
	select {
	case q.notEmpty <- struct{}{}:
	default:
	}
}

func (q *Queue) pop(max int) []model.BlockFragment {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.buf) == 0 {
		return nil
	}
	if max > len(q.buf) {
		max = len(q.buf)
	}
	// Copy rather than reslice: q.buf is shrunk in place below, and a
	// sub-slice of it here would alias the same backing array, so a
	// later pushFront appending onto this batch could corrupt the
	// remaining queue contents.
	batch := make([]model.BlockFragment, max)
	copy(batch, q.buf[:max])
	q.buf = append(q.buf[:0], q.buf[max:]...)
	q.depth = len(q.buf)
	if q.depth == 0 {
		for _, ch := range q.drainers {
			close(ch)
		}
		q.drainers = nil
	}
	return batch
}

// pushFront re-enqueues a failed batch at the head, LIFO, per spec
// §4.6 step 5: "re-enqueue the failed batch at the head (LIFO)."
func (q *Queue) pushFront(batch []model.BlockFragment) {
	q.mu.Lock()
	q.buf = append(batch, q.buf...)
	q.depth = len(q.buf)
	q.mu.Unlock()
	q.signal()
}

// Start launches writerCount parallel writer loops in the background
// and returns immediately. Each loop runs until ctx is canceled or Stop
// is called, draining in-flight work before exiting (spec §4.6/§5
// cancellation: "the queue is flushed: no new enqueues, all in-flight
// fragments written"). Call Stop (or cancel ctx, then call Stop to
// await the drain) to shut the pool down.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.writerCount; i++ {
		q.wg.Add(1)
		id := i
		go q.writerLoop(ctx, id)
	}
}

// Stop signals every writer loop to finish its current cycle, drain
// the buffer, and exit, then waits for them.
func (q *Queue) Stop() {
	close(q.stopCh)
	q.wg.Wait()
}

func (q *Queue) writerLoop(ctx context.Context, id int) {
	defer q.wg.Done()
	log := q.log.WithField("writer", id)
	for {
		select {
		case <-q.stopCh:
			q.drainRemaining(log)
			return
		case <-ctx.Done():
			q.drainRemaining(log)
			return
		case <-q.notEmpty:
		case <-time.After(50 * time.Millisecond):
		}

		batch := q.pop(q.batchSize)
		if len(batch) == 0 {
			continue
		}
		if err := writeBatch(ctx, q.db, batch); err != nil {
			log.WithError(err).Warn("batch write failed, re-enqueueing at head")
			q.pushFront(batch)
			time.Sleep(200 * time.Millisecond)
			continue
		}
		if q.QueueDepth() == 0 {
			q.mu.Lock()
			for _, ch := range q.drainers {
				close(ch)
			}
			q.drainers = nil
			q.mu.Unlock()
		}
	}
}

// drainRemaining flushes whatever is left in the buffer synchronously,
// ignoring the stop/cancel signal, so shutdown never drops a fragment
// that was already enqueued. It deliberately does not reuse the loop's
// (already-canceled) ctx: BeginTx on a canceled context fails instantly,
// which would turn every shutdown into a "fragments lost" drop. Instead
// it runs under a fresh context bounded by drainTimeout, per spec §5:
// "Shutdown is bounded by the configured request timeout."
func (q *Queue) drainRemaining(log *logrus.Entry) {
	q.mu.Lock()
	timeout := q.drainTimeout
	q.mu.Unlock()

	drainCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for {
		batch := q.pop(q.batchSize)
		if len(batch) == 0 {
			return
		}
		if err := writeBatch(drainCtx, q.db, batch); err != nil {
			log.WithError(err).Error("final drain write failed, fragments lost")
			return
		}
	}
}

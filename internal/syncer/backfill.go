package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// retryQueue holds ranges that failed on a transient timeout. Spec
// §4.2 describes the recovery as "roll the claimed range back onto
// the pointers and retry after a cooldown", but the pointers are
// shared across fetch_concurrency workers: naively resetting forward
// or backward back to a failed range's bounds could clobber a claim
// another worker already made further along. Parking the failed range
// here instead, for priority retry by whichever worker asks first,
// gets the same "the work isn't lost, and it's retried after a
// cooldown" outcome without that race.
type retryQueue struct {
	mu      sync.Mutex
	items   []blockRange
	pending int // ranges that failed and are cooling down, not yet pushed
}

func (q *retryQueue) markPending() {
	q.mu.Lock()
	q.pending++
	q.mu.Unlock()
}

func (q *retryQueue) push(r blockRange) {
	q.mu.Lock()
	q.items = append(q.items, r)
	q.pending--
	q.mu.Unlock()
}

func (q *retryQueue) pop() (blockRange, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return blockRange{}, false
	}
	r := q.items[0]
	q.items = q.items[1:]
	return r, true
}

// idle reports that there is no retry work outstanding: nothing
// queued and nothing cooling down on a timer. A worker must not treat
// the pointers being exhausted as "done" while this is false, or a
// range that is mid-cooldown never gets processed.
func (q *retryQueue) idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0 && q.pending == 0
}

// backfill runs spec §4.2's historical backfill: fetch_concurrency
// worker coroutines repeatedly claim up to blocks_per_batch blocks off
// the forward/backward pointers, assemble them, and enqueue the
// results, until the pointers meet.
func (s *Syncer) backfill(ctx context.Context) error {
	if _, _, synced := s.ptrs.snapshot(); synced {
		s.log.Info("backfill: nothing to do, already synced")
		return nil
	}

	workers := s.cfg.FetchConcurrency
	if workers <= 0 {
		workers = 2
	}
	retries := &retryQueue{}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		id := i
		g.Go(func() error {
			return s.backfillWorker(gctx, id, retries)
		})
	}
	return g.Wait()
}

func (s *Syncer) backfillWorker(ctx context.Context, id int, retries *retryQueue) error {
	log := s.log.WithField("worker", id)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if depth := s.queue.QueueDepth(); depth >= s.queue.HighWater() {
			if err := s.queue.WaitForDrain(ctx); err != nil {
				return err
			}
		}

		if r, ok := retries.pop(); ok {
			s.processRange(ctx, log, r, retries)
			s.maybeCheckpointAndRefreshTip(ctx)
			continue
		}

		fwd, hasFwd, bwd, hasBwd, exhausted := s.ptrs.claim(s.cfg.BlocksPerBatch)
		if exhausted {
			if retries.idle() {
				return nil
			}
			// The pointers are spent but a sibling range is still
			// cooling down before its retry; wait for it rather than
			// exiting and losing it.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Millisecond):
			}
			continue
		}
		if hasFwd {
			s.processRange(ctx, log, fwd, retries)
		}
		if hasBwd {
			s.processRange(ctx, log, bwd, retries)
		}
		s.maybeCheckpointAndRefreshTip(ctx)
	}
}

// processRange assembles and enqueues one claimed range, classifying
// failures per spec §4.2: timeouts go back on the retry queue after a
// cooldown, anything else is logged and dropped.
func (s *Syncer) processRange(ctx context.Context, log *logrus.Entry, r blockRange, retries *retryQueue) {
	fields := logrus.Fields{"lo": r.Lo, "hi": r.Hi}
	frags, err := s.asm.AssembleRange(ctx, r.Lo, r.Hi)
	if err != nil {
		if isTransientTimeout(err) {
			log.WithError(err).WithFields(fields).Warn("range fetch timed out, retrying after cooldown")
			retries.markPending()
			go func() {
				select {
				case <-time.After(time.Duration(s.cfg.RetryDelayMs) * time.Millisecond):
				case <-ctx.Done():
				}
				retries.push(r)
			}()
			return
		}
		log.WithError(err).WithFields(fields).Error("range fetch failed, dropping (idempotent on re-index)")
		return
	}
	for _, frag := range frags {
		s.queue.Enqueue(frag)
	}
}

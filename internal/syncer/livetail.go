package syncer

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// liveTail implements spec §4.2's live-tail phase: once backfilled,
// follow new blocks as they arrive, preferring a WS subscription. When
// the subscription errors or stays quiet for ws_watchdog_ms it is torn
// down and the WS connection is dialed again; while no WS connection
// can be established, the tip is polled at poll_interval_ms between
// dial attempts.
func (s *Syncer) liveTail(ctx context.Context) error {
	s.log.Info("entering live tail")

	watchdog := time.Duration(s.cfg.WSWatchdogMs) * time.Millisecond
	if watchdog <= 0 {
		watchdog = 60 * time.Second
	}
	pollInterval := time.Duration(s.cfg.PollIntervalMs) * time.Millisecond
	if pollInterval <= 0 {
		pollInterval = 100 * time.Millisecond
	}

	// An already-open WS connection is used for the first session only;
	// every later session dials again.
	reuseWS := s.client.HasWS()
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if reuseWS || s.dialWS(ctx) {
			reuseWS = false
			if err := s.tailViaWS(ctx, watchdog); err != nil {
				s.log.WithError(err).Warn("ws live tail ended, re-dialing (polling while the dial fails)")
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}

		if err := s.tailViaPolling(ctx, pollInterval); err != nil {
			return err
		}
	}
}

func (s *Syncer) dialWS(ctx context.Context) bool {
	if s.cfg.WSURL == "" {
		return false
	}
	if err := s.client.InitWS(ctx, s.cfg.WSURL); err != nil {
		s.log.WithError(err).Debug("ws dial failed, will poll instead")
		return false
	}
	return true
}

// tailViaWS subscribes to newHeads and processes each announced block
// number as it arrives, resetting a watchdog timer on every head; a
// silent subscription for longer than watchdog, or a subscription
// error, returns control to the caller so it can dial WS again.
func (s *Syncer) tailViaWS(ctx context.Context, watchdog time.Duration) error {
	heads := make(chan uint64, 64)
	unsub, errCh, err := s.client.SubscribeNewHeads(ctx, func(n uint64) {
		select {
		case heads <- n:
		default:
		}
	})
	if err != nil {
		return err
	}
	defer unsub()

	timer := time.NewTimer(watchdog)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case n := <-heads:
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(watchdog)
			s.tailRange(ctx, n)
		case <-timer.C:
			return nil
		}
	}
}

// tailViaPolling fetches the tip on a fixed interval and processes any
// blocks newer than the last one seen, for chains/providers without a
// usable WS endpoint.
func (s *Syncer) tailViaPolling(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			tip, err := s.client.LatestBlockNumber(ctx)
			if err != nil {
				s.log.WithError(err).Debug("poll: tip fetch failed")
				continue
			}
			s.tailRange(ctx, tip)
			if s.client.HasWS() || s.cfg.WSURL != "" {
				return nil // give WS another chance next loop
			}
		}
	}
}

// tailRange indexes [forward, hi] as a single batch, where forward is
// the next block not yet indexed, then advances forward to hi+1 (spec
// §4.2's live-tail preferred path). A burst of coalesced head notifications (or a
// polling tick that jumped several blocks) must not skip the blocks in
// between, so this always assembles the full gap rather than just the
// newest height.
func (s *Syncer) tailRange(ctx context.Context, hi uint64) {
	forward, _, _ := s.ptrs.snapshot()
	if hi < forward {
		return // already covered by an earlier, farther-reaching call
	}

	frags, err := s.asm.AssembleRange(ctx, forward, hi)
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"from": forward, "to": hi}).
			Warn("live tail: range fetch failed, will be picked up on next poll/restart")
		return
	}
	for _, frag := range frags {
		s.queue.Enqueue(frag)
	}
	s.ptrs.raiseBackward(hi)
	s.ptrs.setForward(hi + 1)
	if err := s.checkpoint(ctx); err != nil {
		s.log.WithError(err).Warn("live tail: checkpoint failed")
	}
}

package tokenprobe

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/dando385/evm-indexer/internal/evmrpc"
)

// DefaultConcurrency is batch_detect_tokens' default fan-out width
// (spec §4.5: "a small bounded concurrency, default 3").
const DefaultConcurrency = 3

// BatchDetectTokens runs DetectToken over addrs with bounded
// concurrency, preserving input order in the returned slice. A single
// address's probe failure never aborts the batch: DetectToken itself
// treats every RPC failure as "no classification, no metadata," so
// every slot is always populated.
func BatchDetectTokens(ctx context.Context, client *evmrpc.Client, addrs []string, concurrency int) []Result {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	out := make([]Result, len(addrs))
	sem := semaphore.NewWeighted(int64(concurrency))
	g, ctx := errgroup.WithContext(ctx)

	for i, addr := range addrs {
		i, addr := i, addr
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			out[i] = DetectToken(ctx, client, addr)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

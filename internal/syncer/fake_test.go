package syncer

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dando385/evm-indexer/internal/model"
)

// fakeChainClient is a synthetic chain for exercising tip-refresh and
// live-tail cadence without a live RPC endpoint, per spec §6.4's
// "fakes of evmrpc".
type fakeChainClient struct {
	mu  sync.Mutex
	tip uint64

	wsConnected bool
	wsDialErr   error

	headsCh chan uint64
}

func newFakeChainClient(tip uint64) *fakeChainClient {
	return &fakeChainClient{tip: tip}
}

func (f *fakeChainClient) setTip(n uint64) {
	f.mu.Lock()
	f.tip = n
	f.mu.Unlock()
}

func (f *fakeChainClient) LatestBlockNumber(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tip, nil
}

func (f *fakeChainClient) HasWS() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.wsConnected
}

func (f *fakeChainClient) InitWS(ctx context.Context, wsURL string) error {
	if f.wsDialErr != nil {
		return f.wsDialErr
	}
	f.mu.Lock()
	f.wsConnected = true
	f.headsCh = make(chan uint64, 16)
	f.mu.Unlock()
	return nil
}

func (f *fakeChainClient) pushHead(n uint64) {
	f.mu.Lock()
	ch := f.headsCh
	f.mu.Unlock()
	if ch != nil {
		ch <- n
	}
}

func (f *fakeChainClient) SubscribeNewHeads(ctx context.Context, cb func(blockNumber uint64)) (func(), <-chan error, error) {
	f.mu.Lock()
	ch := f.headsCh
	f.mu.Unlock()

	errCh := make(chan error, 1)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case n := <-ch:
				cb(n)
			}
		}
	}()
	return func() { close(done) }, errCh, nil
}

// fakeAssembler counts the ranges it was asked to assemble and returns
// one empty-but-valid fragment per block, without touching an RPC
// endpoint.
type fakeAssembler struct {
	calls int32
	fail  func(lo, hi uint64) bool
}

func (f *fakeAssembler) AssembleRange(ctx context.Context, lo, hi uint64) ([]model.BlockFragment, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.fail != nil && f.fail(lo, hi) {
		return nil, errTimeoutStub{}
	}
	frags := make([]model.BlockFragment, 0, hi-lo+1)
	for n := lo; n <= hi; n++ {
		frags = append(frags, model.BlockFragment{Header: model.BlockHeader{Number: n, Hash: "0xfake"}})
	}
	return frags, nil
}

// errTimeoutStub implements net.Error so isTransientTimeout classifies
// it as a retryable transport timeout.
type errTimeoutStub struct{}

func (errTimeoutStub) Error() string   { return "stub: i/o timeout" }
func (errTimeoutStub) Timeout() bool   { return true }
func (errTimeoutStub) Temporary() bool { return true }

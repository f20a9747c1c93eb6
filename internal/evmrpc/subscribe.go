package evmrpc

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
)

// InitWS attempts a persistent WS connection and validates it with a
// cheap network-info call, reporting failure non-fatally so the caller
// (the syncer) can fall back to polling, per spec §4.2/§4.2 "Live tail
// phase": "the client attempts a persistent connection, validates by
// fetching network info, and reports failure non-fatally."
func (c *Client) InitWS(ctx context.Context, wsURL string) error {
	rc, err := rpc.DialContext(ctx, wsURL)
	if err != nil {
		return fmt.Errorf("dial ws %s: %w", wsURL, err)
	}

	var chainID string
	if err := rc.CallContext(ctx, &chainID, "eth_chainId"); err != nil {
		rc.Close()
		return fmt.Errorf("ws validate %s: %w", wsURL, err)
	}

	c.wsMu.Lock()
	if c.wsRPC != nil {
		c.wsRPC.Close()
	}
	c.wsRPC = rc
	c.wsURL = wsURL
	c.wsMu.Unlock()
	return nil
}

// HasWS reports whether InitWS has established a connection.
func (c *Client) HasWS() bool {
	c.wsMu.Lock()
	defer c.wsMu.Unlock()
	return c.wsRPC != nil
}

// SubscribeNewHeads implements ws_subscribe_new_heads(callback): it
// pushes each new block number into cb and returns an unsubscribe
// handle. Subscription loss surfaces through the returned error
// channel rather than panicking, so the syncer can treat it as a
// recoverable error (spec §4.1/§4.2 watchdog).
func (c *Client) SubscribeNewHeads(ctx context.Context, cb func(blockNumber uint64)) (unsubscribe func(), errCh <-chan error, err error) {
	c.wsMu.Lock()
	rc := c.wsRPC
	c.wsMu.Unlock()
	if rc == nil {
		return nil, nil, fmt.Errorf("evmrpc: InitWS must succeed before SubscribeNewHeads")
	}

	heads := make(chan *types.Header, 16)
	sub, err := rc.EthSubscribe(ctx, heads, "newHeads")
	if err != nil {
		return nil, nil, fmt.Errorf("subscribe newHeads: %w", err)
	}

	out := make(chan error, 1)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case err := <-sub.Err():
				if err != nil {
					out <- err
				}
				return
			case h := <-heads:
				if h != nil && h.Number != nil {
					cb(h.Number.Uint64())
				}
			}
		}
	}()

	unsub := func() {
		close(done)
		sub.Unsubscribe()
	}
	return unsub, out, nil
}

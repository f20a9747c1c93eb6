package syncer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClaimSplitsRoughlyInHalf(t *testing.T) {
	p := newPointers(0, 999)
	fwd, hasFwd, bwd, hasBwd, exhausted := p.claim(100)
	require.False(t, exhausted)
	require.True(t, hasFwd)
	require.True(t, hasBwd)
	require.Equal(t, blockRange{Lo: 0, Hi: 49}, fwd)
	require.Equal(t, blockRange{Lo: 950, Hi: 999}, bwd)

	forward, backward, synced := p.snapshot()
	require.False(t, synced)
	require.Equal(t, uint64(50), forward)
	require.Equal(t, uint64(949), backward)
}

func TestClaimNeverCrossesPointers(t *testing.T) {
	p := newPointers(0, 9)
	fwd, hasFwd, bwd, hasBwd, exhausted := p.claim(100)
	require.False(t, exhausted)
	require.True(t, hasFwd)
	require.True(t, hasBwd)
	require.LessOrEqual(t, fwd.Hi, bwd.Lo-1)
	require.Equal(t, uint64(10), fwd.Hi-fwd.Lo+1+(bwd.Hi-bwd.Lo+1))

	_, _, _, _, exhausted = p.claim(100)
	require.True(t, exhausted)
}

func TestClaimSingleBlockRemaining(t *testing.T) {
	p := newPointers(5, 5)
	fwd, hasFwd, bwd, hasBwd, exhausted := p.claim(100)
	require.False(t, exhausted)
	// Exactly one block of work: it must land on exactly one side, not
	// both, and not be duplicated.
	require.NotEqual(t, hasFwd, hasBwd)
	if hasFwd {
		require.Equal(t, blockRange{Lo: 5, Hi: 5}, fwd)
	} else {
		require.Equal(t, blockRange{Lo: 5, Hi: 5}, bwd)
	}

	_, _, _, _, exhausted = p.claim(100)
	require.True(t, exhausted)
}

func TestClaimIsConcurrencySafeAndCoversEveryBlockExactlyOnce(t *testing.T) {
	const total uint64 = 5000
	p := newPointers(0, total-1)

	seen := make([]int32, total)
	var mu sync.Mutex
	record := func(r blockRange) {
		mu.Lock()
		defer mu.Unlock()
		for n := r.Lo; n <= r.Hi; n++ {
			seen[n]++
		}
	}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				fwd, hasFwd, bwd, hasBwd, exhausted := p.claim(37)
				if exhausted {
					return
				}
				if hasFwd {
					record(fwd)
				}
				if hasBwd {
					record(bwd)
				}
			}
		}()
	}
	wg.Wait()

	for n, count := range seen {
		require.Equal(t, int32(1), count, "block %d claimed %d times", n, count)
	}
}

func TestRaiseBackwardOnlyMovesForward(t *testing.T) {
	p := newPointers(0, 100)
	p.raiseBackward(50)
	_, backward, _ := p.snapshot()
	require.Equal(t, uint64(100), backward, "raiseBackward must never lower the pointer")

	p.raiseBackward(200)
	_, backward, _ = p.snapshot()
	require.Equal(t, uint64(200), backward)
}

package syncer

import "sync"

// blockRange is an inclusive [Lo, Hi] span of block numbers.
type blockRange struct {
	Lo, Hi uint64
}

// pointers tracks the bidirectional claim state spec §4.2 describes.
// forward/backward are kept as int64 internally so "claim crosses
// zero available work" never has to be detected via unsigned
// underflow — exhaustion is just forward > backward.
type pointers struct {
	mu       sync.Mutex
	forward  int64
	backward int64
}

func newPointers(forward, backward uint64) *pointers {
	return &pointers{forward: int64(forward), backward: int64(backward)}
}

func (p *pointers) snapshot() (forward, backward uint64, synced bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	synced = p.forward > p.backward
	f, b := p.forward, p.backward
	if f < 0 {
		f = 0
	}
	if b < 0 {
		b = 0
	}
	return uint64(f), uint64(b), synced
}

// raiseBackward lifts the backward pointer to a freshly observed tip,
// per spec §4.2's tip refresh: "if it has advanced, raise
// backward_block to the new tip."
func (p *pointers) raiseBackward(tip uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if int64(tip) > p.backward {
		p.backward = int64(tip)
	}
}

func (p *pointers) setForward(n uint64) {
	p.mu.Lock()
	p.forward = int64(n)
	p.mu.Unlock()
}

// claim atomically carves up to total blocks off both ends of the
// remaining [forward, backward] span, splitting roughly in half,
// never crossing the pointers (spec §4.2 step 2-3). exhausted is true
// once forward > backward, at which point neither range is valid.
func (p *pointers) claim(total int) (fwd blockRange, hasFwd bool, bwd blockRange, hasBwd bool, exhausted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.forward > p.backward {
		return blockRange{}, false, blockRange{}, false, true
	}

	avail := p.backward - p.forward + 1
	want := int64(total)
	if want > avail {
		want = avail
	}
	fwdWant := want / 2
	bwdWant := want - fwdWant

	if fwdWant > 0 {
		fwd = blockRange{Lo: uint64(p.forward), Hi: uint64(p.forward + fwdWant - 1)}
		hasFwd = true
		p.forward += fwdWant
	}

	remaining := p.backward - p.forward + 1
	if bwdWant > remaining {
		bwdWant = remaining
	}
	if bwdWant > 0 {
		lo := p.backward - bwdWant + 1
		bwd = blockRange{Lo: uint64(lo), Hi: uint64(p.backward)}
		hasBwd = true
		p.backward = lo - 1
	}

	// Reaching here means avail was >= 1, so this call always claimed
	// at least one block; exhausted only describes a call that found
	// no work at all (the early return above).
	return fwd, hasFwd, bwd, hasBwd, false
}

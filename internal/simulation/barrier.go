package simulation

import "sync"

// Barrier releases a fixed number of parties together. It is cyclic: once
// every party has arrived the barrier resets for the next generation.
type Barrier struct {
	mu         sync.Mutex
	cond       *sync.Cond
	parties    int
	waiting    int
	generation uint64
}

// NewBarrier returns a barrier for n parties. n must be positive.
func NewBarrier(n int) *Barrier {
	if n <= 0 {
		panic("simulation: barrier needs at least one party")
	}
	b := &Barrier{parties: n}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Wait blocks until all parties have called Wait for the current generation.
func (b *Barrier) Wait() {
	b.mu.Lock()
	defer b.mu.Unlock()

	gen := b.generation
	b.waiting++
	if b.waiting == b.parties {
		b.waiting = 0
		b.generation++
		b.cond.Broadcast()
		return
	}
	for gen == b.generation {
		b.cond.Wait()
	}
}

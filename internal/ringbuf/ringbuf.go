// Package ringbuf provides a fixed-capacity FIFO ring of model.Trade.
//
// When the ring is full, Push evicts the oldest unconsumed trade so the
// newest trade is always kept. A Ring is a plain structure and is not safe
// for concurrent use: the owner guards every call with its own lock.
package ringbuf

import "tickcandles-v1/internal/model"

// Ring is a FIFO ring buffer for trades with evict-oldest semantics.
type Ring struct {
	buf  []model.Trade
	head int // index of the oldest trade
	size int

	// Trades dropped by Push to make room (for metrics).
	evicted uint64
}

// New creates a ring holding at most capacity trades. Minimum capacity is 1.
func New(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{buf: make([]model.Trade, capacity)}
}

// Push appends a trade in O(1). If the ring is full the oldest trade is
// overwritten; Push reports false in that case.
func (r *Ring) Push(t model.Trade) bool {
	if r.size == len(r.buf) {
		r.buf[r.head] = t
		r.head = r.wrap(r.head + 1)
		r.evicted++
		return false
	}
	r.buf[r.wrap(r.head+r.size)] = t
	r.size++
	return true
}

// DrainBlocks removes the largest whole number of blockSize-long blocks from
// the front of the ring and returns them in FIFO order. Fewer than blockSize
// trades are left in place. Returns nil when no complete block is available.
func (r *Ring) DrainBlocks(blockSize int) [][]model.Trade {
	if blockSize < 1 {
		return nil
	}
	n := r.size / blockSize
	if n == 0 {
		return nil
	}

	// One backing array for all blocks; the ring slots are reused afterwards.
	flat := make([]model.Trade, n*blockSize)
	for i := range flat {
		flat[i] = r.at(i)
	}
	blocks := make([][]model.Trade, n)
	for b := range blocks {
		blocks[b] = flat[b*blockSize : (b+1)*blockSize : (b+1)*blockSize]
	}

	r.head = r.wrap(r.head + len(flat))
	r.size -= len(flat)
	return blocks
}

// SnapshotTail returns copies of the most recent n trades, most recent first.
// The ring is not modified.
func (r *Ring) SnapshotTail(n int) []model.Trade {
	if n > r.size {
		n = r.size
	}
	if n <= 0 {
		return nil
	}
	out := make([]model.Trade, n)
	for i := 0; i < n; i++ {
		out[i] = r.at(r.size - 1 - i)
	}
	return out
}

// Len returns the number of buffered trades.
func (r *Ring) Len() int { return r.size }

// Cap returns the ring capacity.
func (r *Ring) Cap() int { return len(r.buf) }

// Evicted returns the total number of trades dropped to make room.
func (r *Ring) Evicted() uint64 { return r.evicted }

// at returns the i-th oldest buffered trade.
func (r *Ring) at(i int) model.Trade {
	return r.buf[r.wrap(r.head+i)]
}

func (r *Ring) wrap(i int) int {
	if i >= len(r.buf) {
		i -= len(r.buf)
	}
	return i
}

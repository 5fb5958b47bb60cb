// Package bufferpool implements a fixed-capacity pool of reusable,
// fixed-size sample buffers (spec §4.2).
//
// Unlike sync.Pool — which the pack's other_examples/1ay1-gocast
// stream.Buffer leans on for its byte-slice scratch pools — this pool gives
// a deterministic, atomically-observable upper bound on live buffers and
// never silently evicts: sync.Pool may drop entries at any GC, which is
// fine for a best-effort scratch allocator but wrong for an RT-path buffer
// budget the spec wants accounted for.
package bufferpool

import "sync/atomic"

// Pool hands out []float32 buffers of a fixed element size, backed by a
// fixed maximum number of live+pooled buffers.
type Pool struct {
	elemSize int
	maxSize  int

	free chan []float32
	size atomic.Int64 // buffers currently pooled or outstanding
}

// New creates a Pool of buffers, each elemSize float32 samples long,
// pre-allocating preallocate buffers up front (spec §4.2 "initial
// pre-allocation") and never growing beyond maxSize live buffers.
func New(elemSize, maxSize, preallocate int) *Pool {
	if maxSize < 1 {
		maxSize = 1
	}
	if preallocate > maxSize {
		preallocate = maxSize
	}
	p := &Pool{
		elemSize: elemSize,
		maxSize:  maxSize,
		free:     make(chan []float32, maxSize),
	}
	for i := 0; i < preallocate; i++ {
		p.free <- make([]float32, elemSize)
		p.size.Add(1)
	}
	return p
}

// Rent returns a zeroed buffer of elemSize samples. If the pool has a free
// buffer it is reused; otherwise a new one is allocated so long as the pool
// hasn't hit maxSize, after which Rent blocks until Return frees one.
func (p *Pool) Rent() []float32 {
	select {
	case buf := <-p.free:
		zero(buf)
		return buf
	default:
	}

	if p.size.Add(1) <= int64(p.maxSize) {
		return make([]float32, p.elemSize)
	}
	// Hit the cap: undo the speculative increment and wait for a return.
	p.size.Add(-1)
	buf := <-p.free
	zero(buf)
	return buf
}

// TryRent is Rent's non-blocking counterpart: it never waits on a Return,
// returning ok=false instead when the pool is exhausted. RT callers that
// must never block (e.g. the mixer's recording tap) use this instead of
// Rent.
func (p *Pool) TryRent() (buf []float32, ok bool) {
	select {
	case buf := <-p.free:
		zero(buf)
		return buf, true
	default:
	}

	if p.size.Add(1) <= int64(p.maxSize) {
		return make([]float32, p.elemSize), true
	}
	p.size.Add(-1)
	return nil, false
}

// Return zeros buf and returns it to the pool. If the pool is already at
// capacity (e.g. Return is called more times than Rent, or buf came from
// elsewhere), the buffer is discarded rather than grown past maxSize.
func (p *Pool) Return(buf []float32) {
	if len(buf) != p.elemSize {
		return
	}
	zero(buf)
	select {
	case p.free <- buf:
	default:
		p.size.Add(-1)
	}
}

// Size returns the number of buffers currently pooled or rented out.
func (p *Pool) Size() int { return int(p.size.Load()) }

func zero(buf []float32) {
	for i := range buf {
		buf[i] = 0
	}
}

// Package ringbuffer implements a lock-free single-producer/single-consumer
// ring buffer of interleaved float32 sample frames.
//
// Exactly one producer goroutine and one consumer goroutine may use a Buffer
// concurrently; Clear is only legal when both are quiescent (spec §4.1).
// Capacity is rounded up to the next power of two so index arithmetic is a
// bitmask instead of a modulo, the same trick
// other_examples/1ay1-gocast's stream.Buffer and
// other_examples/linuxmatters-jivefire's SharedAudioBuffer both lean on for
// a single-writer/multi-reader byte ring — generalized here to an
// exactly-one-reader float32 ring with an explicit available-count instead
// of a free-running write cursor, since the RT consumer needs "how many
// frames can I take right now" in O(1).
package ringbuffer

import "sync/atomic"

// Buffer is a fixed-capacity SPSC ring of interleaved float32 samples.
// capacity is expressed in *frames*; each frame is `channels` samples.
type Buffer struct {
	channels int
	capMask  uint64 // capacityFrames - 1
	capFrame uint64

	data []float32 // capacityFrames * channels

	writeIdx atomic.Uint64 // frames written, monotonically increasing
	readIdx  atomic.Uint64 // frames read, monotonically increasing

	// generation is bumped by Clear/flush so a producer mid-write can
	// detect a concurrent seek-flush and discard its in-flight block
	// (spec §9 "seek + flush race").
	generation atomic.Uint64
}

// New returns a Buffer whose capacity is the next power of two >= requested
// frames (minimum 2).
func New(requestedFrames, channels int) *Buffer {
	if requestedFrames < 1 {
		requestedFrames = 1
	}
	cap := nextPowerOfTwo(uint64(requestedFrames))
	if cap < 2 {
		cap = 2
	}
	return &Buffer{
		channels: channels,
		capMask:  cap - 1,
		capFrame: cap,
		data:     make([]float32, cap*uint64(channels)),
	}
}

func nextPowerOfTwo(v uint64) uint64 {
	if v == 0 {
		return 1
	}
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v |= v >> 32
	v++
	return v
}

// CapacityFrames returns the rounded-up power-of-two capacity in frames.
func (b *Buffer) CapacityFrames() int { return int(b.capFrame) }

// Available returns the number of frames currently readable (acquire load).
func (b *Buffer) Available() int {
	return int(b.writeIdx.Load() - b.readIdx.Load())
}

// Writable returns the number of frames that can currently be written.
func (b *Buffer) Writable() int {
	return int(b.capFrame) - b.Available()
}

// IsFull reports whether the buffer has no writable frames.
func (b *Buffer) IsFull() bool { return b.Writable() == 0 }

// IsEmpty reports whether the buffer has no readable frames.
func (b *Buffer) IsEmpty() bool { return b.Available() == 0 }

// Generation returns the current flush generation. A producer should
// capture this before starting a decode, and discard the result (without
// calling Write) if it has changed by the time the decode completes.
func (b *Buffer) Generation() uint64 { return b.generation.Load() }

// Write copies up to Writable() frames from data (interleaved, channels
// samples per frame) into the ring and returns the number of frames
// actually written. Non-blocking: writing to a full buffer returns 0.
//
// Producer-only. Publishes the new write index with a release store after
// copying, so a concurrent Read (acquire load) never observes partially
// written samples.
func (b *Buffer) Write(data []float32) int {
	framesIn := len(data) / b.channels
	writable := b.Writable()
	n := framesIn
	if n > writable {
		n = writable
	}
	if n == 0 {
		return 0
	}

	start := b.writeIdx.Load() & b.capMask
	b.copyIn(start, data[:n*b.channels])

	b.writeIdx.Add(uint64(n)) // release: publishes the samples just copied
	return n
}

// copyIn writes n*channels samples starting at frame index `start`,
// wrapping around the ring as needed.
func (b *Buffer) copyIn(start uint64, data []float32) {
	n := len(data) / b.channels
	firstFrames := int(b.capFrame - start)
	if firstFrames > n {
		firstFrames = n
	}
	copy(b.data[start*uint64(b.channels):], data[:firstFrames*b.channels])
	if rem := n - firstFrames; rem > 0 {
		copy(b.data[:rem*b.channels], data[firstFrames*b.channels:n*b.channels])
	}
}

// Read copies up to len(dst)/channels frames from the ring into dst and
// returns the number of frames actually read. Non-blocking: reading from an
// empty buffer returns 0 — the caller (typically the RT thread) should fill
// the remainder with silence and count a dropout.
//
// Consumer-only. Reads Available() with an acquire load before copying, then
// advances the read index after, so it never reads past what Write has
// published.
func (b *Buffer) Read(dst []float32) int {
	n := b.peekOrRead(dst, true)
	return n
}

// Peek is like Read but does not consume: the next Read/Peek will return the
// same frames again.
func (b *Buffer) Peek(dst []float32) int {
	return b.peekOrRead(dst, false)
}

func (b *Buffer) peekOrRead(dst []float32, consume bool) int {
	wantFrames := len(dst) / b.channels
	available := b.Available()
	n := wantFrames
	if n > available {
		n = available
	}
	if n == 0 {
		return 0
	}

	start := b.readIdx.Load() & b.capMask
	b.copyOut(start, dst[:n*b.channels])

	if consume {
		b.readIdx.Add(uint64(n))
	}
	return n
}

func (b *Buffer) copyOut(start uint64, dst []float32) {
	n := len(dst) / b.channels
	firstFrames := int(b.capFrame - start)
	if firstFrames > n {
		firstFrames = n
	}
	copy(dst[:firstFrames*b.channels], b.data[start*uint64(b.channels):])
	if rem := n - firstFrames; rem > 0 {
		copy(dst[firstFrames*b.channels:n*b.channels], b.data[:rem*b.channels])
	}
}

// Skip discards up to n frames without copying them and returns the number
// actually skipped.
func (b *Buffer) Skip(n int) int {
	available := b.Available()
	if n > available {
		n = available
	}
	if n <= 0 {
		return 0
	}
	b.readIdx.Add(uint64(n))
	return n
}

// Clear resets the buffer to empty and bumps the flush generation. Only
// legal when neither the producer nor the consumer is concurrently
// operating on the buffer (spec §4.1) — typically called from the control
// thread immediately before/after a seek, with the producer thread paused.
func (b *Buffer) Clear() {
	b.writeIdx.Store(0)
	b.readIdx.Store(0)
	b.generation.Add(1)
	for i := range b.data {
		b.data[i] = 0
	}
}

// Package effects implements the fixed-order per-source effect chain
// described in spec §4.4: a small set of in-place sample processors
// applied in registration order after time-stretch and before the mixer
// accumulator. The engine deliberately has no dynamic plugin graph (spec
// Non-goals) — Chain is a plain ordered slice, not a DAG.
//
// Each concrete effect here is grounded on the teacher's corresponding
// client/internal/{agc,noisegate,aec} package, generalized from the
// teacher's mono 48 kHz/960-sample voice frames to arbitrary N-channel
// interleaved frames of whatever size the mixer's device buffer uses.
package effects

// Effect processes one interleaved multi-channel frame in place. Frame
// length is always a multiple of the stream's channel count.
type Effect interface {
	// Process applies the effect to frame in place.
	Process(frame []float32, channels int)
	// Reset clears any internal adaptation state (e.g. on seek or loop
	// restart) without changing configured parameters.
	Reset()
}

// Chain is an ordered, fixed sequence of effects applied to every frame a
// source pipeline reads. Registration order is processing order (spec
// §4.4 step 5: "apply the effect chain in registration order").
type Chain struct {
	effects []Effect
}

// NewChain builds a Chain that applies effects in the given order.
func NewChain(effects ...Effect) *Chain {
	return &Chain{effects: effects}
}

// Process runs every effect in the chain over frame, in order, in place.
func (c *Chain) Process(frame []float32, channels int) {
	for _, e := range c.effects {
		e.Process(frame, channels)
	}
}

// Reset resets every effect in the chain.
func (c *Chain) Reset() {
	for _, e := range c.effects {
		e.Reset()
	}
}

// Len returns the number of effects registered in the chain.
func (c *Chain) Len() int { return len(c.effects) }

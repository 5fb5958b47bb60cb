// Package clock implements the master clock described in spec §4.5: a
// single-writer timeline that notifies observer sources synchronously on
// every control-thread mutation, and is advanced by the mixer's RT
// callback once per tick.
//
// Grounded on the same atomic-scalar-state idiom as the teacher's
// client/audio.go control fields (atomic.Uint64/Int32/Bool), generalized
// from per-engine boolean flags to a full transport clock.
package clock

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/bken-audio/engine"
)

// Observer is notified synchronously, on the control thread, whenever the
// clock's state changes. Implementations must do nothing but an atomic
// store (spec §4.5: "the observer's sole obligation is an atomic
// store").
type Observer interface {
	OnClockChanged(c *Clock)
}

// Clock is a master timeline shared by a sync group's members.
type Clock struct {
	framePosition atomic.Uint64
	tempoBits     atomic.Uint32
	pitchBits     atomic.Uint32
	state         atomic.Int32 // engine.SourceState, reused for Playing/Paused/Stopped
	loopEnabled   atomic.Bool
	loopStart     int64 // written only by SetLoop
	loopEnd       int64

	mu        sync.Mutex // guards observers; control-thread only
	observers []Observer
}

// New creates a Clock at frame 0, tempo 1.0, pitch 0, Stopped.
func New() *Clock {
	c := &Clock{}
	c.tempoBits.Store(math.Float32bits(1.0))
	c.state.Store(int32(engine.Stopped))
	return c
}

// AddObserver registers an observer. Not safe to call concurrently with
// Play/Pause/Stop/Seek/SetTempo/SetPitch/SetLoop.
func (c *Clock) AddObserver(o Observer) {
	c.mu.Lock()
	c.observers = append(c.observers, o)
	c.mu.Unlock()
}

// RemoveObserver deregisters an observer.
func (c *Clock) RemoveObserver(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.observers {
		if existing == o {
			c.observers = append(c.observers[:i], c.observers[i+1:]...)
			return
		}
	}
}

func (c *Clock) notify() {
	c.mu.Lock()
	observers := append([]Observer(nil), c.observers...)
	c.mu.Unlock()
	for _, o := range observers {
		o.OnClockChanged(c)
	}
}

// FramePosition returns the current timeline position (acquire load).
func (c *Clock) FramePosition() int64 { return int64(c.framePosition.Load()) }

// Tempo returns the current tempo multiplier.
func (c *Clock) Tempo() float32 { return math.Float32frombits(c.tempoBits.Load()) }

// Pitch returns the current pitch shift in semitones.
func (c *Clock) Pitch() float32 { return math.Float32frombits(c.pitchBits.Load()) }

// State returns the current transport state.
func (c *Clock) State() engine.SourceState { return engine.SourceState(c.state.Load()) }

// LoopEnabled reports whether looping is active.
func (c *Clock) LoopEnabled() bool { return c.loopEnabled.Load() }

// LoopRegion returns the loop bounds last set by SetLoop, in frames.
func (c *Clock) LoopRegion() (start, end int64) { return c.loopStart, c.loopEnd }

// Play transitions the clock to Playing and notifies observers.
func (c *Clock) Play() {
	c.state.Store(int32(engine.Playing))
	c.notify()
}

// Pause transitions the clock to Paused and notifies observers.
func (c *Clock) Pause() {
	c.state.Store(int32(engine.Paused))
	c.notify()
}

// Stop transitions the clock to Stopped, resets frame_position to 0, and
// notifies observers.
func (c *Clock) Stop() {
	c.state.Store(int32(engine.Stopped))
	c.framePosition.Store(0)
	c.notify()
}

// Seek sets frame_position directly (e.g. from a sync-group-level seek)
// and notifies observers.
func (c *Clock) Seek(frame int64) {
	if frame < 0 {
		frame = 0
	}
	c.framePosition.Store(uint64(frame))
	c.notify()
}

// SetTempo sets the clock's tempo multiplier and notifies observers.
func (c *Clock) SetTempo(tempo float32) {
	if tempo < engine.MinTempo {
		tempo = engine.MinTempo
	}
	if tempo > engine.MaxTempo {
		tempo = engine.MaxTempo
	}
	c.tempoBits.Store(math.Float32bits(tempo))
	c.notify()
}

// SetPitch sets the clock's pitch shift in semitones and notifies
// observers.
func (c *Clock) SetPitch(semitones float32) {
	if semitones < engine.MinPitchSemitones {
		semitones = engine.MinPitchSemitones
	}
	if semitones > engine.MaxPitchSemitones {
		semitones = engine.MaxPitchSemitones
	}
	c.pitchBits.Store(math.Float32bits(semitones))
	c.notify()
}

// SetLoop configures the loop region and enablement, then notifies
// observers. start/end are changed only by SetLoop; calling it again
// replaces the earlier bounds.
func (c *Clock) SetLoop(start, end int64, enabled bool) {
	c.loopStart = start
	c.loopEnd = end
	c.loopEnabled.Store(enabled)
	c.notify()
}

// Advance moves frame_position forward by delta frames, wrapping into
// the loop region if one is active and the position has reached
// loop_end. Only the mixer's RT callback calls this, and only after a
// tick completes (spec §4.5).
func (c *Clock) Advance(delta int64) {
	next := c.FramePosition() + delta
	if c.loopEnabled.Load() && c.loopEnd > c.loopStart && next >= c.loopEnd {
		next = c.loopStart + (next - c.loopEnd)
	}
	c.framePosition.Store(uint64(next))
}

// Package syncgroup implements the sync group mechanism of spec §4.6: a
// named set of sources sharing a master clock.Clock, with drift detection
// and (optionally) automatic corrective seeks.
package syncgroup

import (
	"sync"
	"sync/atomic"

	"github.com/bken-audio/engine/clock"
)

// DefaultToleranceFrames is 10 ms worth of frames at 48 kHz (spec §4.6
// default).
const DefaultToleranceFrames = 480

// syncSource is the subset of source.Pipeline's surface a sync group
// needs. Defined locally (rather than importing the source package) so
// the group depends only on these three methods and tests can substitute
// a fake.
type syncSource interface {
	CurrentFrame() int64
	SetStartOffsetFrames(frames int64)
	Seek(frames int64) error
}

// member tracks one source's participation in the group, including any
// drift correction scheduled for the next tick.
type member struct {
	src               syncSource
	startOffsetFrames int64

	correctionPending atomic.Bool
	correctionTarget  atomic.Int64
}

// Group is a named set of sources sharing one master clock (spec §4.6).
type Group struct {
	name            string
	clock           *clock.Clock
	toleranceFrames int64
	autoCorrect     atomic.Bool

	// membersPtr is swapped via atomic.Pointer on every control-thread
	// AddMember/RemoveMember, the same lock-free handoff Mixer.sources/
	// Mixer.groupList use (spec §4.7: "single-writer pointer swap whose
	// old value the RT thread is already past"). ApplyScheduledCorrections
	// and DetectDrift run on the RT thread every tick and must not take a
	// lock or allocate to read the current membership.
	membersPtr atomic.Pointer[[]*member]

	mu      sync.Mutex // guards membership mutation; control-thread only
	members []*member
}

// New creates a Group bound to clk, with DefaultToleranceFrames drift
// tolerance.
func New(name string, clk *clock.Clock) *Group {
	g := &Group{name: name, clock: clk, toleranceFrames: DefaultToleranceFrames}
	empty := []*member{}
	g.membersPtr.Store(&empty)
	return g
}

// Name returns the group's name.
func (g *Group) Name() string { return g.name }

// Clock returns the group's master clock.
func (g *Group) Clock() *clock.Clock { return g.clock }

// SetToleranceFrames overrides the default drift tolerance.
func (g *Group) SetToleranceFrames(frames int64) { g.toleranceFrames = frames }

// SetAutoDriftCorrection enables or disables automatic corrective seeks.
func (g *Group) SetAutoDriftCorrection(enabled bool) { g.autoCorrect.Store(enabled) }

// AutoDriftCorrection reports whether automatic correction is enabled.
func (g *Group) AutoDriftCorrection() bool { return g.autoCorrect.Load() }

// AddMember attaches src to the group at the given timeline start
// offset (frames). The source's own start-offset field is updated so
// ReadSamplesAtTime computes the right effective position.
func (g *Group) AddMember(src syncSource, startOffsetFrames int64) {
	src.SetStartOffsetFrames(startOffsetFrames)
	g.mu.Lock()
	g.members = append(g.members, &member{src: src, startOffsetFrames: startOffsetFrames})
	g.publish()
	g.mu.Unlock()
}

// RemoveMember detaches src from the group.
func (g *Group) RemoveMember(src syncSource) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, m := range g.members {
		if m.src == src {
			g.members = append(g.members[:i], g.members[i+1:]...)
			g.publish()
			return
		}
	}
}

// publish rebuilds the atomic membership snapshot. Must be called with
// mu held.
func (g *Group) publish() {
	next := append([]*member(nil), g.members...)
	g.membersPtr.Store(&next)
}

// snapshot returns the current membership snapshot with no lock and no
// allocation: RT-safe, since it's just a pointer load.
func (g *Group) snapshot() []*member {
	return *g.membersPtr.Load()
}

// ApplyScheduledCorrections seeks any member with a pending correction
// from a prior DetectDrift call. The mixer calls this at the start of a
// tick, before reading any member's samples for that tick, so a
// correction never splices pre/post-seek data within one tick (spec
// §4.6: "schedule... for the next tick (never mid-tick)").
func (g *Group) ApplyScheduledCorrections() {
	for _, m := range g.snapshot() {
		if m.correctionPending.CompareAndSwap(true, false) {
			_ = m.src.Seek(m.correctionTarget.Load())
		}
	}
}

// DetectDrift compares each member's actual position against the
// position expected from masterFrame, and schedules a corrective seek
// for members exceeding the tolerance when auto-correction is enabled.
// The mixer calls this once per tick, after reading all members' samples
// for that tick.
func (g *Group) DetectDrift(masterFrame int64) {
	auto := g.autoCorrect.Load()
	for _, m := range g.snapshot() {
		expected := masterFrame - m.startOffsetFrames
		if expected < 0 {
			continue
		}
		actual := m.src.CurrentFrame()
		drift := actual - expected
		if drift < 0 {
			drift = -drift
		}
		if drift > g.toleranceFrames && auto {
			m.correctionTarget.Store(expected)
			m.correctionPending.Store(true)
		}
	}
}

// MemberCount returns the number of attached sources.
func (g *Group) MemberCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.members)
}

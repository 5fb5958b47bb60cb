// Package mixer implements the real-time root of the engine (spec §4.7):
// it owns the active source set and sync groups, and its Render method is
// the RT callback a Backend drives at device rate. Render never
// allocates, never takes a lock, and never blocks on I/O.
//
// Grounded on the teacher's client/audio.go playbackLoop: start from
// silence, additively mix each active voice into the buffer, scale and
// clamp once at the end, and store peak/level metering via
// math.Float32bits round-tripped through an atomic.Uint32. The teacher
// only ever mixed one decoded voice at a time into a fixed buffer; this
// generalizes that into an N-source accumulator with a copy-on-write
// source-set handoff so Render never walks a slice that a control-thread
// add/remove could be resizing underneath it.
package mixer

import (
	"log"
	"math"
	"sync"
	"sync/atomic"

	"github.com/bken-audio/engine"
	"github.com/bken-audio/engine/clock"
	"github.com/bken-audio/engine/enginerr"
	"github.com/bken-audio/engine/internal/dsputil"
	"github.com/bken-audio/engine/recorder"
	"github.com/bken-audio/engine/source"
	"github.com/bken-audio/engine/syncgroup"
)

// pipeline is the minimal surface Render needs from a source.Pipeline,
// kept as an interface so tests can substitute a fake without spinning up
// a real producer goroutine.
type pipeline interface {
	ID() engine.SourceID
	ReadSamples(dst []float32, frameCount int) engine.ReadResult
	ReadSamplesAtTime(masterFrame int64, dst []float32, frameCount int) engine.ReadResult
	CurrentFrame() int64
	SetStartOffsetFrames(frames int64)
	Seek(frames int64) error
	Dispose() error
}

// sourceHandle pairs a pipeline with the clock it's attached to, if any.
type sourceHandle struct {
	src pipeline
	clk *clock.Clock // nil if not clock-synchronized
}

// Mixer is the RT-root owning the active source set, sync groups, master
// volume, peak meters, and the optional recording tap.
type Mixer struct {
	cfg engine.AudioConfig

	// sources and groupList are each swapped via atomic.Pointer on every
	// control-thread mutation (spec §4.7: "snapshot list via a lock-free
	// swap pointer... from add/remove_source"); Render only ever
	// dereferences one Load per field, so it never takes mu.
	sources   atomic.Pointer[[]*sourceHandle]
	groupList atomic.Pointer[[]*syncgroup.Group]

	mu        sync.Mutex // guards sourceMap/groups; control-thread only
	sourceMap map[engine.SourceID]*sourceHandle
	groups    map[string]*syncgroup.Group

	masterVolumeBits atomic.Uint32
	autoDrift        atomic.Bool

	leftPeakBits  atomic.Uint32
	rightPeakBits atomic.Uint32

	scratch    []float32 // RT-owned mix accumulator, sized once at construction
	srcScratch []float32 // RT-owned per-source read buffer, sized once at construction

	rec       atomic.Pointer[recorder.Tap]
	recording atomic.Bool

	dropoutTotal atomic.Uint64
	disposed     atomic.Bool
}

// New constructs a Mixer for the given engine-wide audio configuration.
// cfg.BufferSizeFrames fixes the only buffer size Render will ever be
// called with (spec §9 Open Question, resolved: one immutable buffer
// size set at construction).
func New(cfg engine.AudioConfig) *Mixer {
	m := &Mixer{
		cfg:        cfg,
		sourceMap:  make(map[engine.SourceID]*sourceHandle),
		groups:     make(map[string]*syncgroup.Group),
		scratch:    make([]float32, cfg.BufferSizeFrames*cfg.Channels),
		srcScratch: make([]float32, cfg.BufferSizeFrames*cfg.Channels),
	}
	empty := []*sourceHandle{}
	m.sources.Store(&empty)
	emptyGroups := []*syncgroup.Group{}
	m.groupList.Store(&emptyGroups)
	m.masterVolumeBits.Store(math.Float32bits(1.0))
	return m
}

// AddPipelineSource registers a concrete source.Pipeline with the mixer.
// It's the constructor callers outside this package use; AddSource itself
// takes the narrower pipeline interface so tests can substitute a fake.
func (m *Mixer) AddPipelineSource(p *source.Pipeline) error {
	return m.AddSource(p)
}

// AddSource registers src with the mixer. Rejects beyond engine.MaxSources
// (spec §4.7, Testable Property 6).
func (m *Mixer) AddSource(p pipeline) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sourceMap) >= engine.MaxSources {
		return enginerr.New(enginerr.ResourceExhaustion, "source count limit reached", nil)
	}
	if m.disposed.Load() {
		return enginerr.New(enginerr.InvalidState, "mixer already disposed", nil)
	}

	h := &sourceHandle{src: p}
	m.sourceMap[p.ID()] = h
	m.publishSources()
	return nil
}

// RemoveSource detaches the source with the given ID, returning false if
// it wasn't present.
func (m *Mixer) RemoveSource(id engine.SourceID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sourceMap[id]; !ok {
		return false
	}
	delete(m.sourceMap, id)
	m.publishSources()
	return true
}

// publishSources rebuilds the atomic source-set snapshot. Must be called
// with mu held.
func (m *Mixer) publishSources() {
	next := make([]*sourceHandle, 0, len(m.sourceMap))
	for _, h := range m.sourceMap {
		next = append(next, h)
	}
	m.sources.Store(&next)
}

// publishGroups rebuilds the atomic sync-group snapshot. Must be called
// with mu held.
func (m *Mixer) publishGroups() {
	next := make([]*syncgroup.Group, 0, len(m.groups))
	for _, g := range m.groups {
		next = append(next, g)
	}
	m.groupList.Store(&next)
}

// SetMasterVolume sets the linear master volume multiplier.
func (m *Mixer) SetMasterVolume(v float32) {
	if v < engine.MinVolume {
		v = engine.MinVolume
	}
	if v > engine.MaxVolume {
		v = engine.MaxVolume
	}
	m.masterVolumeBits.Store(math.Float32bits(v))
}

// MasterVolume returns the current linear master volume multiplier.
func (m *Mixer) MasterVolume() float32 { return math.Float32frombits(m.masterVolumeBits.Load()) }

// CreateSyncGroup creates a named sync group with its own master clock
// and attaches the given sources, each starting at timeline offset 0.
func (m *Mixer) CreateSyncGroup(name string, sources []pipeline) *syncgroup.Group {
	clk := clock.New()
	g := syncgroup.New(name, clk)

	m.mu.Lock()
	g.SetAutoDriftCorrection(m.autoDrift.Load())
	m.groups[name] = g
	for _, p := range sources {
		if h, ok := m.sourceMap[p.ID()]; ok {
			h.clk = clk
		}
		g.AddMember(p, 0)
	}
	m.publishSources()
	m.publishGroups()
	m.mu.Unlock()

	return g
}

// CreateSyncGroupForPipelines is CreateSyncGroup for external callers:
// the pipeline interface itself is unexported (tests substitute a fake
// implementing it), so callers outside this package build the group from
// concrete *source.Pipeline values instead.
func (m *Mixer) CreateSyncGroupForPipelines(name string, sources []*source.Pipeline) *syncgroup.Group {
	wrapped := make([]pipeline, len(sources))
	for i, s := range sources {
		wrapped[i] = s
	}
	return m.CreateSyncGroup(name, wrapped)
}

// StartSyncGroup starts the named group's clock.
func (m *Mixer) StartSyncGroup(name string) error {
	g, err := m.group(name)
	if err != nil {
		return err
	}
	g.Clock().Play()
	return nil
}

// StopSyncGroup stops the named group's clock.
func (m *Mixer) StopSyncGroup(name string) error {
	g, err := m.group(name)
	if err != nil {
		return err
	}
	g.Clock().Stop()
	return nil
}

// SetSyncGroupTempo sets the named group's clock tempo.
func (m *Mixer) SetSyncGroupTempo(name string, tempo float32) error {
	g, err := m.group(name)
	if err != nil {
		return err
	}
	g.Clock().SetTempo(tempo)
	return nil
}

// SeekSyncGroupSeconds seeks the named group's clock to the given
// position in seconds (spec §6: "sync-group timeline unit on the public
// API is seconds").
func (m *Mixer) SeekSyncGroupSeconds(name string, seconds float64) error {
	g, err := m.group(name)
	if err != nil {
		return err
	}
	frames := int64(math.Round(seconds * float64(m.cfg.SampleRate)))
	g.Clock().Seek(frames)
	return nil
}

// SyncGroupPositionSeconds returns the named group's current position in
// seconds.
func (m *Mixer) SyncGroupPositionSeconds(name string) (float64, error) {
	g, err := m.group(name)
	if err != nil {
		return 0, err
	}
	return float64(g.Clock().FramePosition()) / float64(m.cfg.SampleRate), nil
}

func (m *Mixer) group(name string) (*syncgroup.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[name]
	if !ok {
		return nil, enginerr.New(enginerr.InvalidState, "unknown sync group: "+name, nil)
	}
	return g, nil
}

// EnableAutoDriftCorrection toggles automatic corrective seeks on every
// sync group.
func (m *Mixer) EnableAutoDriftCorrection(enabled bool) {
	m.autoDrift.Store(enabled)
	m.mu.Lock()
	for _, g := range m.groups {
		g.SetAutoDriftCorrection(enabled)
	}
	m.mu.Unlock()
}

// PeakLevels returns the left/right peak levels from the most recently
// rendered tick (spec Testable Property 5). RT-safe to call from any
// thread; it is a pair of atomic loads.
func (m *Mixer) PeakLevels() (left, right float32) {
	return math.Float32frombits(m.leftPeakBits.Load()), math.Float32frombits(m.rightPeakBits.Load())
}

// DroppedFrameTotal returns the cumulative dropout count across all
// sources, for the metrics package.
func (m *Mixer) DroppedFrameTotal() uint64 { return m.dropoutTotal.Load() }

// BeginRecording starts a WAV recording tap at the given bit depth
// (16, 24, or 32).
func (m *Mixer) BeginRecording(path string, bitDepth int) error {
	tap, err := recorder.NewTap(path, m.cfg, bitDepth)
	if err != nil {
		return err
	}
	m.rec.Store(tap)
	m.recording.Store(true)
	tap.Start()
	return nil
}

// EndRecording stops and finalizes the active recording, if any.
func (m *Mixer) EndRecording() error {
	if !m.recording.CompareAndSwap(true, false) {
		return nil
	}
	tap := m.rec.Load()
	if tap == nil {
		return nil
	}
	return tap.Stop()
}

// Dispose permanently stops the mixer: disposes every source (spec §5
// destruction order: detach from clock -> stop producer thread -> remove
// from mixer -> drop pipeline) and finalizes any active recording.
func (m *Mixer) Dispose() error {
	if !m.disposed.CompareAndSwap(false, true) {
		return nil
	}
	_ = m.EndRecording()

	m.mu.Lock()
	handles := make([]*sourceHandle, 0, len(m.sourceMap))
	for _, h := range m.sourceMap {
		handles = append(handles, h)
	}
	m.groups = make(map[string]*syncgroup.Group)
	m.publishGroups()
	m.mu.Unlock()

	for _, h := range handles {
		if err := h.src.Dispose(); err != nil {
			log.Printf("[mixer] dispose source: %v", err)
		}
	}

	m.mu.Lock()
	m.sourceMap = make(map[engine.SourceID]*sourceHandle)
	m.publishSources()
	m.mu.Unlock()
	return nil
}

// Render is the RT callback (spec §4.7 steps 1-10): it fills output with
// one mixed, clamped frame of audio and never allocates.
func (m *Mixer) Render(output []float32, frameCount int) error {
	masterVolume := m.MasterVolume()
	autoDrift := m.autoDrift.Load()

	for i := range m.scratch {
		m.scratch[i] = 0
	}
	acc := m.scratch[:frameCount*m.cfg.Channels]

	handles := *m.sources.Load()
	groups := *m.groupList.Load()

	if autoDrift {
		for _, g := range groups {
			g.ApplyScheduledCorrections()
		}
	}

	needed := frameCount * m.cfg.Channels
	scratch := m.srcScratch[:needed]

	for _, h := range handles {
		var res engine.ReadResult
		if h.clk != nil {
			master := h.clk.FramePosition()
			res = h.src.ReadSamplesAtTime(master, scratch, frameCount)
		} else {
			res = h.src.ReadSamples(scratch, frameCount)
		}
		if res.Dropout {
			m.dropoutTotal.Add(1)
		}
		for i := 0; i < needed; i++ {
			acc[i] += scratch[i]
		}
	}

	for i := range acc {
		acc[i] = dsputil.Clamp(acc[i] * masterVolume)
	}

	leftPeak := dsputil.ChannelPeak(acc, 0, m.cfg.Channels)
	var rightPeak float32
	if m.cfg.Channels > 1 {
		rightPeak = dsputil.ChannelPeak(acc, 1, m.cfg.Channels)
	}
	m.leftPeakBits.Store(math.Float32bits(leftPeak))
	m.rightPeakBits.Store(math.Float32bits(rightPeak))

	copy(output, acc)

	for _, g := range groups {
		g.Clock().Advance(int64(frameCount))
		g.DetectDrift(g.Clock().FramePosition())
	}

	if m.recording.Load() {
		if tap := m.rec.Load(); tap != nil {
			tap.Push(acc)
		}
	}

	return nil
}

// SourceCount returns the number of currently attached sources.
func (m *Mixer) SourceCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sourceMap)
}

// Package source implements the per-track playback pipeline (spec §4.4):
// a decoder feed, a dedicated producer goroutine, an SPSC buffer, an
// optional time-stretch unit, a fixed-order effects chain, and the
// atomic control state the mixer's RT callback reads without locking.
//
// Grounded on the teacher's client/audio.go captureLoop/playbackLoop
// pair: one goroutine per stream direction, atomic scalar control fields
// storing float bits via math.Float32bits, and a stop-then-join-then-
// dispose shutdown sequence that avoids touching native resources while
// a goroutine might still be using them.
package source

import (
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bken-audio/engine"
	"github.com/bken-audio/engine/effects"
	"github.com/bken-audio/engine/enginerr"
	"github.com/bken-audio/engine/internal/adaptive"
	"github.com/bken-audio/engine/internal/dsputil"
	"github.com/bken-audio/engine/ringbuffer"
	"github.com/bken-audio/engine/stretch"
)

// producerSleep bounds the duty cycle of the producer thread when the
// SPSC is full, mirroring the teacher's channel-based backpressure but
// via an explicit sleep since the producer here pushes into a ring
// buffer instead of a Go channel.
const producerSleep = 2 * time.Millisecond

// stopTimeout bounds how long Stop/Dispose waits for the producer
// goroutine to exit before giving up (spec §5 "joins with a 500ms
// timeout").
const stopTimeout = 500 * time.Millisecond

// Pipeline is one source's full playback pipeline.
type Pipeline struct {
	id     engine.SourceID
	cfg    engine.AudioConfig
	dec    engine.Decoder
	chain  *effects.Chain
	// stretchUnit is swapped atomically on seek (produced by the producer
	// thread, read by the RT thread) rather than mutated in place, per the
	// single-writer pointer-swap idiom the spec requires for cross-thread
	// handoff of RT-touched state.
	stretchUnit atomic.Pointer[stretch.Unit]

	ring *ringbuffer.Buffer

	state       atomic.Int32 // engine.SourceState
	volumeBits  atomic.Uint32
	currentFrame atomic.Int64
	loopEnabled atomic.Bool
	startOffsetFrames atomic.Int64 // sync-group attachment offset, in engine frames

	seekGeneration atomic.Uint64 // bumped on every seek; producer rechecks
	seekTargetFrames atomic.Int64

	dropouts atomic.Uint64
	smoothedDropoutRate float64 // RT-thread-owned, not shared
	cpuNanos atomic.Int64 // cumulative time spent inside ReadSamples, for metrics

	// targetAheadFrames is the producer's current "stay this far ahead"
	// goal, in frames, published by the RT thread from the smoothed
	// dropout rate via adaptive.TargetPrefetchDepth and read by the
	// producer thread every iteration. Starts at the default depth
	// (spec-equivalent of the teacher's jitter-buffer warm-up target).
	targetAheadFrames atomic.Int64

	stopCh chan struct{}
	wg     sync.WaitGroup
	running atomic.Bool

	decodeBlockFrames int
	maxBlockFrames    int
}

// Options configures a new Pipeline.
type Options struct {
	Decoder           engine.Decoder
	Chain             *effects.Chain // may be nil
	LoopEnabled       bool
	DecodeBlockFrames int // decoder frames pulled per producer iteration
	MaxBlockFrames    int // largest frame_count a single ReadSamples call will request
}

// New constructs a Pipeline in the Stopped state. The SPSC is sized to
// at least 8x the engine's device buffer (spec §4.4).
func New(cfg engine.AudioConfig, opts Options) *Pipeline {
	if opts.DecodeBlockFrames <= 0 {
		opts.DecodeBlockFrames = cfg.BufferSizeFrames
	}
	if opts.MaxBlockFrames <= 0 {
		opts.MaxBlockFrames = cfg.BufferSizeFrames
	}

	ringCapacity := cfg.BufferSizeFrames * 8
	p := &Pipeline{
		id:                engine.NewSourceID(),
		cfg:               cfg,
		dec:               opts.Decoder,
		chain:             opts.Chain,
		ring:              ringbuffer.New(ringCapacity, cfg.Channels),
		decodeBlockFrames: opts.DecodeBlockFrames,
		maxBlockFrames:    opts.MaxBlockFrames,
	}
	p.stretchUnit.Store(stretch.New(cfg.SampleRate, cfg.Channels, opts.MaxBlockFrames*2))
	p.state.Store(int32(engine.Stopped))
	p.volumeBits.Store(math.Float32bits(1.0))
	p.loopEnabled.Store(opts.LoopEnabled)
	p.targetAheadFrames.Store(int64(adaptive.DefaultPrefetchDepth) * int64(cfg.BufferSizeFrames))
	return p
}

// ID returns the source's opaque identifier.
func (p *Pipeline) ID() engine.SourceID { return p.id }

// State returns the current source state (acquire load).
func (p *Pipeline) State() engine.SourceState { return engine.SourceState(p.state.Load()) }

// CurrentFrame returns the current timeline position.
func (p *Pipeline) CurrentFrame() int64 { return p.currentFrame.Load() }

// SetVolume sets the linear volume multiplier, clamped to
// [engine.MinVolume, engine.MaxVolume].
func (p *Pipeline) SetVolume(v float32) {
	if v < engine.MinVolume {
		v = engine.MinVolume
	}
	if v > engine.MaxVolume {
		v = engine.MaxVolume
	}
	p.volumeBits.Store(math.Float32bits(v))
}

// Volume returns the current linear volume multiplier.
func (p *Pipeline) Volume() float32 { return math.Float32frombits(p.volumeBits.Load()) }

// SetTempo sets the time-stretch tempo ratio.
func (p *Pipeline) SetTempo(tempo float64) {
	if tempo < engine.MinTempo {
		tempo = engine.MinTempo
	}
	if tempo > engine.MaxTempo {
		tempo = engine.MaxTempo
	}
	p.stretchUnit.Load().SetTempo(tempo)
}

// SetPitch sets the pitch shift in semitones.
func (p *Pipeline) SetPitch(semitones float64) {
	if semitones < engine.MinPitchSemitones {
		semitones = engine.MinPitchSemitones
	}
	if semitones > engine.MaxPitchSemitones {
		semitones = engine.MaxPitchSemitones
	}
	p.stretchUnit.Load().SetPitch(semitones)
}

// SetStartOffsetFrames sets the sync-group start offset used by
// ReadSamplesAtTime.
func (p *Pipeline) SetStartOffsetFrames(frames int64) { p.startOffsetFrames.Store(frames) }

// DroppedFrames returns the cumulative dropout count.
func (p *Pipeline) DroppedFrames() uint64 { return p.dropouts.Load() }

// BufferFillRatio reports the SPSC's fill level as a fraction of its
// capacity, for the metrics package's non-RT buffer-fill% reporting
// (spec §8 Performance Metrics).
func (p *Pipeline) BufferFillRatio() float64 {
	cap := p.ring.CapacityFrames()
	if cap == 0 {
		return 0
	}
	return float64(p.ring.Available()) / float64(cap)
}

// CPUTimeEstimate returns the cumulative time spent inside ReadSamples
// since the last ResetCPUTimeEstimate, as a coarse per-source CPU-cost
// estimate (spec §8).
func (p *Pipeline) CPUTimeEstimate() time.Duration {
	return time.Duration(p.cpuNanos.Load())
}

// ResetCPUTimeEstimate zeroes the CPU-time accumulator, letting a metrics
// reporter read a per-interval estimate rather than a running total.
func (p *Pipeline) ResetCPUTimeEstimate() { p.cpuNanos.Store(0) }

// Play transitions Stopped/Paused -> Playing and starts the producer
// goroutine if not already running.
func (p *Pipeline) Play() error {
	switch p.State() {
	case engine.Playing:
		return nil
	case engine.Error:
		return enginerr.New(enginerr.InvalidState, "cannot play a source in Error state", nil)
	}
	p.state.Store(int32(engine.Playing))
	if p.running.CompareAndSwap(false, true) {
		p.stopCh = make(chan struct{})
		p.wg.Add(1)
		go p.produce()
	}
	return nil
}

// Pause transitions Playing -> Paused. The producer thread keeps running
// but stops decoding: it sleeps while the state is not Playing.
func (p *Pipeline) Pause() error {
	if p.State() != engine.Playing {
		return enginerr.New(enginerr.InvalidState, "pause requires Playing state", nil)
	}
	p.state.Store(int32(engine.Paused))
	return nil
}

// Stop transitions to Stopped, resets current_frame to 0, and joins the
// producer thread with a bounded timeout.
func (p *Pipeline) Stop() error {
	p.state.Store(int32(engine.Stopped))
	p.currentFrame.Store(0)
	return p.joinProducer()
}

// Dispose permanently stops the pipeline and releases the decoder.
func (p *Pipeline) Dispose() error {
	if err := p.joinProducer(); err != nil {
		log.Printf("[source] dispose: producer join timed out for %s", p.id)
	}
	if p.dec != nil {
		return p.dec.Dispose()
	}
	return nil
}

func (p *Pipeline) joinProducer() error {
	if !p.running.CompareAndSwap(true, false) {
		return nil
	}
	close(p.stopCh)

	done := make(chan struct{})
	go func() { p.wg.Wait(); close(done) }()

	select {
	case <-done:
		return nil
	case <-time.After(stopTimeout):
		p.state.Store(int32(engine.Error))
		return enginerr.New(enginerr.InvalidState, "producer thread join timed out", nil)
	}
}

// Seek snaps to a frame boundary, flushes the SPSC, resets time-stretch
// state, and updates current_frame. Safe to call while Playing; the RT
// side will see either pre-seek frames or silence, never spliced output,
// because it always re-reads the generation before trusting the buffer.
func (p *Pipeline) Seek(frames int64) error {
	if frames < 0 {
		return enginerr.New(enginerr.SeekError, "seek target before start of stream", nil)
	}
	p.seekTargetFrames.Store(frames)
	p.seekGeneration.Add(1)
	return nil
}

// produce is the producer-thread loop (spec §4.4): while Playing and the
// SPSC has room, pull one decode block and push it; on EOF, loop or
// transition to EndOfStream; sleep briefly when full.
func (p *Pipeline) produce() {
	defer p.wg.Done()

	lastGeneration := p.seekGeneration.Load()

	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		if gen := p.seekGeneration.Load(); gen != lastGeneration {
			lastGeneration = gen
			target := p.seekTargetFrames.Load()
			p.ring.Clear()
			old := p.stretchUnit.Load()
			su := stretch.New(p.cfg.SampleRate, p.cfg.Channels, p.maxBlockFrames*2)
			su.SetTempo(old.Tempo())
			su.SetPitch(old.Pitch())
			p.stretchUnit.Store(su)
			if err := p.dec.Seek(target); err != nil {
				p.state.Store(int32(engine.Error))
				return
			}
			p.currentFrame.Store(target)
		}

		if p.State() != engine.Playing {
			time.Sleep(producerSleep)
			continue
		}

		if int64(p.ring.Available()) >= p.targetAheadFrames.Load() {
			time.Sleep(producerSleep)
			continue
		}

		if p.ring.Writable() < p.decodeBlockFrames {
			time.Sleep(producerSleep)
			continue
		}

		frame, err := p.dec.DecodeNextFrame()
		if err != nil {
			p.state.Store(int32(engine.Error))
			return
		}
		if len(frame.Samples) > 0 {
			p.ring.Write(frame.Samples)
		}
		if frame.EOF {
			if p.loopEnabled.Load() {
				if err := p.dec.Seek(0); err != nil {
					p.state.Store(int32(engine.Error))
					return
				}
				continue
			}
			p.state.Store(int32(engine.EndOfStream))
			return
		}
	}
}

// ReadSamples is the RT-side read entry point (spec §4.4 step 1-8). dst
// must be frame_count * channels long.
func (p *Pipeline) ReadSamples(dst []float32, frameCount int) engine.ReadResult {
	start := time.Now()
	defer func() { p.cpuNanos.Add(int64(time.Since(start))) }()

	state := p.State()
	if state != engine.Playing {
		dsputil.Zero(dst)
		return engine.ReadResult{FramesRead: frameCount}
	}

	volume := p.Volume()
	needed := frameCount * p.cfg.Channels

	var dropout bool
	su := p.stretchUnit.Load()
	if su.Tempo() == 1.0 && su.Pitch() == 0.0 {
		n := p.ring.Read(dst[:needed])
		if n < frameCount {
			dsputil.Zero(dst[n*p.cfg.Channels : needed])
			dropout = true
		}
	} else {
		n := su.Process(p.pullFromRing, dst[:needed])
		if n < frameCount {
			dsputil.Zero(dst[n*p.cfg.Channels : needed])
			dropout = true
		}
	}

	if dropout {
		p.dropouts.Add(1)
	}
	p.smoothedDropoutRate = adaptiveRate(p.smoothedDropoutRate, dropout)
	depth := adaptive.TargetPrefetchDepth(p.smoothedDropoutRate)
	p.targetAheadFrames.Store(int64(depth) * int64(p.cfg.BufferSizeFrames))

	if p.chain != nil {
		p.chain.Process(dst[:needed], p.cfg.Channels)
	}

	if volume != 1.0 {
		for i := range dst[:needed] {
			dst[i] *= volume
		}
	}

	p.currentFrame.Add(int64(frameCount))
	return engine.ReadResult{FramesRead: frameCount, Dropout: dropout}
}

// ReadSamplesAtTime is the clock-synchronized read entry point (spec
// §4.4): it reconciles current_frame with the sync group's master
// timestamp before delegating to the same read path as ReadSamples.
func (p *Pipeline) ReadSamplesAtTime(masterFrame int64, dst []float32, frameCount int) engine.ReadResult {
	effective := masterFrame - p.startOffsetFrames.Load()
	if effective < 0 {
		dsputil.Zero(dst[:frameCount*p.cfg.Channels])
		return engine.ReadResult{FramesRead: frameCount}
	}
	if effective != p.currentFrame.Load() {
		_ = p.Seek(effective)
	}
	return p.ReadSamples(dst, frameCount)
}

func (p *Pipeline) pullFromRing(dst []float32) int {
	got := p.ring.Read(dst)
	return got
}


func adaptiveRate(current float64, dropout bool) float64 {
	raw := 0.0
	if dropout {
		raw = 1.0
	}
	return adaptive.SmoothDropoutRate(current, raw, adaptive.DefaultSmoothingAlpha)
}

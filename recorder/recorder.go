// Package recorder implements the mixer's recording tap (spec §4.8): a
// non-blocking path from the RT mix accumulator to a WAV file at 16, 24,
// or 32-bit PCM depth.
//
// Grounded on the WAV-writing shape in
// other_examples/7d06a8e3_rayboyd-audio-engine (wav.Encoder +
// audio.IntBuffer, written from the realtime callback), generalized
// here so the RT thread never touches the file or encoder directly: it
// only rents a buffer from bufferpool, copies the mixed frame into it,
// and hands it to a channel a dedicated writer goroutine drains. A full
// channel means the writer fell behind; the tap drops the frame and
// counts it rather than blocking the mixer.
package recorder

import (
	"os"
	"sync/atomic"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/bken-audio/engine"
	"github.com/bken-audio/engine/bufferpool"
	"github.com/bken-audio/engine/enginerr"
)

// queueDepth bounds how many pending frames the writer goroutine may lag
// by before the tap starts dropping (spec §4.8: "drop and count rather
// than block the RT thread").
const queueDepth = 64

// Tap is an active WAV recording fed by the mixer's Render.
type Tap struct {
	cfg      engine.AudioConfig
	bitDepth int

	pool     *bufferpool.Pool
	queue    chan []float32
	stopping chan struct{}
	done     chan struct{}
	dropped  atomic.Int64

	file *os.File
	enc  *wav.Encoder
	ibuf *audio.IntBuffer
}

// NewTap opens path and prepares a WAV encoder at bitDepth (16, 24, or
// 32). The file is created but no audio is written until Start is
// called.
func NewTap(path string, cfg engine.AudioConfig, bitDepth int) (*Tap, error) {
	if bitDepth != 16 && bitDepth != 24 && bitDepth != 32 {
		return nil, enginerr.New(enginerr.ConfigurationError, "bit depth must be 16, 24, or 32", nil)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, enginerr.New(enginerr.BackendError, "create recording file", err)
	}

	enc := wav.NewEncoder(f, cfg.SampleRate, bitDepth, cfg.Channels, 1)

	t := &Tap{
		cfg:      cfg,
		bitDepth: bitDepth,
		pool:     bufferpool.New(cfg.BufferSizeFrames*cfg.Channels, queueDepth, queueDepth),
		queue:    make(chan []float32, queueDepth),
		stopping: make(chan struct{}),
		done:     make(chan struct{}),
		file:     f,
		enc:      enc,
		ibuf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: cfg.Channels, SampleRate: cfg.SampleRate},
			Data:           make([]int, cfg.BufferSizeFrames*cfg.Channels),
			SourceBitDepth: bitDepth,
		},
	}
	return t, nil
}

// Start launches the writer goroutine.
func (t *Tap) Start() {
	go t.writeLoop()
}

// Push hands one rendered frame of interleaved float32 samples to the
// writer. Called from the mixer's RT callback: it rents a buffer from the
// pool, copies into it, and sends non-blocking — it never allocates and
// never blocks.
func (t *Tap) Push(frame []float32) {
	buf, ok := t.pool.TryRent()
	if !ok {
		t.dropped.Add(1)
		return
	}
	n := copy(buf, frame)
	select {
	case t.queue <- buf[:n]:
	default:
		t.dropped.Add(1)
		t.pool.Return(buf)
	}
}

// DroppedFrames reports how many frames the writer fell behind on and the
// tap had to discard.
func (t *Tap) DroppedFrames() int { return int(t.dropped.Load()) }

// writeLoop never ranges over a closed queue: Push may run concurrently
// with Stop (it's called from the mixer's RT thread, Stop from the
// control thread), and closing a channel a concurrent sender can still
// write to would panic. Stop instead closes the separate stopping
// channel; writeLoop drains whatever is left in queue once it fires.
func (t *Tap) writeLoop() {
	for {
		select {
		case buf := <-t.queue:
			t.encode(buf)
			t.pool.Return(buf)
		case <-t.stopping:
			t.drainRemaining()
			close(t.done)
			return
		}
	}
}

func (t *Tap) drainRemaining() {
	for {
		select {
		case buf := <-t.queue:
			t.encode(buf)
			t.pool.Return(buf)
		default:
			return
		}
	}
}

func (t *Tap) encode(buf []float32) {
	peak := peakScale(t.bitDepth)
	n := len(buf)
	if n > len(t.ibuf.Data) {
		n = len(t.ibuf.Data)
	}
	for i := 0; i < n; i++ {
		t.ibuf.Data[i] = int(buf[i] * peak)
	}
	t.ibuf.Data = t.ibuf.Data[:n]
	if err := t.enc.Write(t.ibuf); err != nil {
		// The write error surfaces only via DroppedFrames/metrics; the RT
		// path never observes encoder failures.
		t.dropped.Add(1)
	}
	t.ibuf.Data = t.ibuf.Data[:cap(t.ibuf.Data)]
}

func peakScale(bitDepth int) float32 {
	switch bitDepth {
	case 16:
		return 32767
	case 24:
		return 8388607
	default:
		return 2147483647
	}
}

// Stop drains the queue, closes the encoder, and flushes the file to
// disk. Blocks until the writer goroutine finishes any buffered frames.
func (t *Tap) Stop() error {
	close(t.stopping)
	<-t.done
	if err := t.enc.Close(); err != nil {
		return enginerr.New(enginerr.BackendError, "finalize WAV encoder", err)
	}
	return t.file.Close()
}

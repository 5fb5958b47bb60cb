package source

import (
	"sync"
	"testing"
	"time"

	"github.com/bken-audio/engine"
)

// sineDecoder is a fake engine.Decoder generating a fixed-length, fixed
// amplitude signal entirely in memory, standing in for the teacher's
// opusDecoder test double.
type sineDecoder struct {
	mu         sync.Mutex
	cfg        engine.AudioConfig
	totalFrames int64
	pos        int64
	blockFrames int
}

func newSineDecoder(cfg engine.AudioConfig, totalFrames int64, blockFrames int) *sineDecoder {
	return &sineDecoder{cfg: cfg, totalFrames: totalFrames, blockFrames: blockFrames}
}

func (d *sineDecoder) StreamInfo() engine.DecoderInfo {
	return engine.DecoderInfo{SampleRate: d.cfg.SampleRate, Channels: d.cfg.Channels, TotalFrames: d.totalFrames}
}

func (d *sineDecoder) DecodeNextFrame() (engine.DecodedFrame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pos >= d.totalFrames {
		return engine.DecodedFrame{EOF: true, PTSFrames: d.pos}, nil
	}
	n := d.blockFrames
	if d.pos+int64(n) > d.totalFrames {
		n = int(d.totalFrames - d.pos)
	}
	samples := make([]float32, n*d.cfg.Channels)
	for i := range samples {
		samples[i] = 0.5
	}
	frame := engine.DecodedFrame{Samples: samples, PTSFrames: d.pos}
	d.pos += int64(n)
	return frame, nil
}

func (d *sineDecoder) Seek(frames int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pos = frames
	return nil
}

func (d *sineDecoder) Dispose() error { return nil }

func testConfig() engine.AudioConfig {
	cfg, err := engine.NewAudioConfig(48000, 2, 64)
	if err != nil {
		panic(err)
	}
	return cfg
}

func TestPlayProducesNonSilentFrames(t *testing.T) {
	cfg := testConfig()
	dec := newSineDecoder(cfg, 48000, 64)
	p := New(cfg, Options{Decoder: dec, DecodeBlockFrames: 64, MaxBlockFrames: 64})

	if err := p.Play(); err != nil {
		t.Fatalf("Play() error: %v", err)
	}
	defer p.Stop()

	// Give the producer goroutine time to fill the SPSC.
	time.Sleep(30 * time.Millisecond)

	dst := make([]float32, 64*cfg.Channels)
	var res engine.ReadResult
	for i := 0; i < 20; i++ {
		res = p.ReadSamples(dst, 64)
		if !allZero(dst) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if allZero(dst) {
		t.Fatal("expected non-silent output once the source is playing and primed")
	}
	if res.FramesRead != 64 {
		t.Fatalf("FramesRead = %d, want 64", res.FramesRead)
	}
}

func TestStoppedSourceEmitsSilence(t *testing.T) {
	cfg := testConfig()
	dec := newSineDecoder(cfg, 48000, 64)
	p := New(cfg, Options{Decoder: dec, DecodeBlockFrames: 64, MaxBlockFrames: 64})

	dst := make([]float32, 64*cfg.Channels)
	for i := range dst {
		dst[i] = 1 // poison, should be overwritten with zero
	}
	p.ReadSamples(dst, 64)
	if !allZero(dst) {
		t.Fatal("a Stopped source must emit silence")
	}
}

func TestStopResetsCurrentFrame(t *testing.T) {
	cfg := testConfig()
	dec := newSineDecoder(cfg, 48000, 64)
	p := New(cfg, Options{Decoder: dec, DecodeBlockFrames: 64, MaxBlockFrames: 64})

	_ = p.Play()
	time.Sleep(20 * time.Millisecond)
	dst := make([]float32, 64*cfg.Channels)
	p.ReadSamples(dst, 64)

	if err := p.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if p.CurrentFrame() != 0 {
		t.Fatalf("CurrentFrame() after Stop = %d, want 0", p.CurrentFrame())
	}
	if p.State() != engine.Stopped {
		t.Fatalf("State() after Stop = %v, want Stopped", p.State())
	}
}

func TestPlayOnErroredSourceIsRejected(t *testing.T) {
	cfg := testConfig()
	dec := newSineDecoder(cfg, 48000, 64)
	p := New(cfg, Options{Decoder: dec, DecodeBlockFrames: 64, MaxBlockFrames: 64})
	p.state.Store(int32(engine.Error))

	if err := p.Play(); err == nil {
		t.Fatal("Play() on an Error-state source must fail")
	}
}

func allZero(buf []float32) bool {
	for _, v := range buf {
		if v != 0 {
			return false
		}
	}
	return true
}

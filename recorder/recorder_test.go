package recorder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bken-audio/engine"
)

func testConfig() engine.AudioConfig {
	cfg, _ := engine.NewAudioConfig(48000, 2, 64)
	return cfg
}

func TestNewTapRejectsBadBitDepth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	if _, err := NewTap(path, testConfig(), 17); err == nil {
		t.Fatalf("expected error for unsupported bit depth")
	}
}

func TestPushAndStopProducesNonEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	tap, err := NewTap(path, testConfig(), 16)
	if err != nil {
		t.Fatalf("NewTap: %v", err)
	}
	tap.Start()

	frame := make([]float32, testConfig().Channels*testConfig().BufferSizeFrames)
	for i := range frame {
		frame[i] = 0.25
	}
	for i := 0; i < 8; i++ {
		tap.Push(frame)
	}

	if err := tap.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat recorded file: %v", err)
	}
	if info.Size() == 0 {
		t.Fatalf("expected a non-empty WAV file")
	}
}

func TestPushDropsWhenPoolExhausted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	tap, err := NewTap(path, testConfig(), 16)
	if err != nil {
		t.Fatalf("NewTap: %v", err)
	}
	// Exhaust the pool directly without starting the writer, so every
	// subsequent Push must drop instead of blocking.
	var held [][]float32
	for {
		buf, ok := tap.pool.TryRent()
		if !ok {
			break
		}
		held = append(held, buf)
	}

	frame := make([]float32, testConfig().Channels*testConfig().BufferSizeFrames)
	tap.Push(frame)
	if tap.DroppedFrames() != 1 {
		t.Fatalf("DroppedFrames() = %d, want 1", tap.DroppedFrames())
	}

	for _, b := range held {
		tap.pool.Return(b)
	}
	_ = tap.file.Close()
}

package engineconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValidAudioConfig(t *testing.T) {
	cfg := Default()
	if cfg.SampleRate != 48000 || cfg.Channels != 2 || cfg.BufferSizeFrames != 512 {
		t.Fatalf("unexpected default config: %+v", cfg)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	cfg := Default()
	cfg.MasterVolume = 0.5
	cfg.AGCEnabled = true

	if err := Save(cfg); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	got := Load()
	if got.MasterVolume != 0.5 || !got.AGCEnabled {
		t.Fatalf("Load() = %+v, want MasterVolume=0.5 AGCEnabled=true", got)
	}

	path, err := Path()
	if err != nil {
		t.Fatalf("Path() error: %v", err)
	}
	if !filepath.IsAbs(path) {
		t.Fatalf("Path() = %q, want absolute", path)
	}
}

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	_ = os.RemoveAll(dir)

	got := Load()
	want := Default()
	if got != want {
		t.Fatalf("Load() with no file = %+v, want default %+v", got, want)
	}
}

package portaudio

import (
	"testing"

	gopa "github.com/gordonklaus/portaudio"

	"github.com/bken-audio/engine"
)

func testConfig() engine.AudioConfig {
	cfg, _ := engine.NewAudioConfig(48000, 2, 256)
	return cfg
}

func TestConfigReturnsConstructionConfig(t *testing.T) {
	b := &Backend{cfg: testConfig()}
	if b.Config() != testConfig() {
		t.Fatalf("Config() = %+v, want %+v", b.Config(), testConfig())
	}
}

func TestResolveDeviceUsesExplicitIndexWhenValid(t *testing.T) {
	devices := []*gopa.DeviceInfo{
		{Name: "first", MaxOutputChannels: 2},
		{Name: "second", MaxOutputChannels: 2},
	}
	got, err := resolveDevice(devices, 1)
	if err != nil {
		t.Fatalf("resolveDevice: %v", err)
	}
	if got.Name != "second" {
		t.Fatalf("got device %q, want %q", got.Name, "second")
	}
}

func TestResolveDeviceFallsBackForOutOfRangeIndex(t *testing.T) {
	devices := []*gopa.DeviceInfo{{Name: "only", MaxOutputChannels: 2}}
	// index 5 is out of range, so resolveDevice falls back to
	// gopa.DefaultOutputDevice(), which requires a live PortAudio runtime;
	// this only checks that an out-of-range index isn't silently accepted
	// as an in-range one.
	got, _ := resolveDevice(devices, 5)
	if got == devices[0] {
		t.Fatalf("expected an out-of-range index not to resolve to the in-range device")
	}
}

func TestOnDisconnectRegistersCallback(t *testing.T) {
	b := &Backend{cfg: testConfig()}
	called := false
	b.OnDisconnect(func(error) { called = true })
	b.onDisconnect(nil)
	if !called {
		t.Fatalf("expected the registered OnDisconnect callback to run")
	}
}

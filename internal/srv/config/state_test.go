package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestServerStateDefaults(t *testing.T) {
	state := NewServerState(filepath.Join(t.TempDir(), "state.yaml"))

	if state.Dial() != 0 {
		t.Fatalf("default dial = %d, want 0", state.Dial())
	}
	if state.IsBandFM() {
		t.Fatal("default band is FM, want AM")
	}
}

func TestServerStateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")

	state := NewServerState(path)
	state.SetDial(2913)
	state.SetBandFM(true)
	state.FlushSave()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("state file not written: %v", err)
	}

	reloaded := NewServerState(path)
	if reloaded.Dial() != 2913 {
		t.Fatalf("reloaded dial = %d, want 2913", reloaded.Dial())
	}
	if !reloaded.IsBandFM() {
		t.Fatal("reloaded band is AM, want FM")
	}
}

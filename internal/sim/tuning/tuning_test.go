package tuning

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsValidate(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	body := "tick_rate_hz: 5\ntick_duration_ms: 200\nworld:\n  width: 32\n  height: 24\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tu, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tu.TickRateHz != 5 || tu.TickDurationMs != 200 || tu.World.Width != 32 || tu.World.Height != 24 {
		t.Fatalf("unexpected tuning %+v", tu)
	}
	if tu.InventorySize != 28 || tu.ChunkSize != 16 {
		t.Fatalf("expected unspecified keys to keep defaults, got %+v", tu)
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("chunk_size: 0\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); !errors.Is(err, ErrBadTuning) {
		t.Fatalf("expected ErrBadTuning, got %v", err)
	}
}

package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	doc := `
frame_rate_hz: 60
selection:
  max_tiles_to_skip: 3
scene:
  max_depth: 8
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.FrameRateHz != 60 || got.Selection.MaxTilesToSkip != 3 || got.Scene.MaxDepth != 8 {
		t.Fatalf("overrides not applied: %+v", got)
	}
	// Untouched knobs keep their defaults.
	def := Defaults()
	if got.ViewHeightPx != def.ViewHeightPx || got.Streaming.MaxActiveRequests != def.Streaming.MaxActiveRequests {
		t.Fatalf("defaults lost under overlay: %+v", got)
	}
}

func TestLoadMissingFileReturnsDefaultsAndError(t *testing.T) {
	got, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if !os.IsNotExist(err) {
		t.Fatalf("err = %v, want not-exist", err)
	}
	if got != Defaults() {
		t.Fatalf("missing file should yield defaults, got %+v", got)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("selection: [not, a, map]"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("malformed yaml accepted")
	}
}

package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	FrameRateHz  int     `yaml:"frame_rate_hz"`
	ViewHeightPx float64 `yaml:"view_height_px"`
	FovYDeg      float64 `yaml:"fov_y_deg"`

	Selection Selection `yaml:"selection"`
	Streaming Streaming `yaml:"streaming"`
	Pruning   Pruning   `yaml:"pruning"`

	Scene Scene `yaml:"scene"`
}

type Selection struct {
	MaxInitialTilesToSkip int     `yaml:"max_initial_tiles_to_skip"`
	MaxTilesToSkip        int     `yaml:"max_tiles_to_skip"`
	DebugMaxDepth         int     `yaml:"debug_max_depth"`
	TileSizeModifier      float64 `yaml:"tile_size_modifier"`
}

type Streaming struct {
	MaxActiveRequests int `yaml:"max_active_requests"`
	StaleFrames       int `yaml:"stale_frames"`
}

type Pruning struct {
	SweepEverySec  int `yaml:"sweep_every_sec"`
	ExpireAfterSec int `yaml:"expire_after_sec"`
}

type Scene struct {
	MaxDepth        int     `yaml:"max_depth"`
	TileMaxSizePx   float64 `yaml:"tile_max_size_px"`
	MaxRefinement   float64 `yaml:"max_refinement"`
	HalfExtent      float64 `yaml:"half_extent"`
	DisplayableRoot bool    `yaml:"displayable_root"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		FrameRateHz:     30,
		ViewHeightPx:    1080,
		FovYDeg:         60,
		Selection: Selection{
			MaxInitialTilesToSkip: 1,
			MaxTilesToSkip:        1,
			TileSizeModifier:      1,
		},
		Streaming: Streaming{
			MaxActiveRequests: 10,
			StaleFrames:       20,
		},
		Pruning: Pruning{
			SweepEverySec:  5,
			ExpireAfterSec: 20,
		},
		Scene: Scene{
			MaxDepth:      6,
			TileMaxSizePx: 512,
			MaxRefinement: 2,
			HalfExtent:    512,
		},
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

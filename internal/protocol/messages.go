package protocol

// HELLO (viewer -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ViewerName      string `json:"viewer_name,omitempty"`
}

// SceneParams carries everything a viewer needs to rebuild the tile tree
// addressing that the server generates against.
type SceneParams struct {
	Seed            int64      `json:"seed"`
	MaxDepth        int        `json:"max_depth"`
	TileMaxSizePx   float64    `json:"tile_max_size_px"`
	MaxRefinement   float64    `json:"max_refinement"`
	BoundsLow       [3]float64 `json:"bounds_low"`
	BoundsHigh      [3]float64 `json:"bounds_high"`
	DisplayableRoot bool       `json:"displayable_root"`
}

// WELCOME (server -> viewer)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	SessionID       string      `json:"session_id"`
	Scene           SceneParams `json:"scene"`
}

// TILE_REQUEST (viewer -> server). RequestID correlates the eventual
// TILE_CONTENT, and a TILE_CANCEL if the viewer loses interest first.
type TileRequestMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RequestID       string `json:"request_id"`
	ContentID       string `json:"content_id"`
}

// TILE_CONTENT (server -> viewer). Payload is absent when Found is false.
type TileContentMsg struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
	ContentID string `json:"content_id"`
	Found     bool   `json:"found"`
	Payload   []byte `json:"payload,omitempty"`
}

// TILE_CANCEL (viewer -> server), best effort.
type TileCancelMsg struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
}

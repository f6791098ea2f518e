package scene

import (
	"time"

	"tilescape.dev/internal/geom"
)

// DrawArgs is the per-frame context threaded through the selection walk.
// It accumulates the selected and missing tile lists and refreshes usage
// markers on everything the walk touches. It is reused across frames via
// Reset to avoid churn.
type DrawArgs struct {
	Camera  geom.Camera
	Frustum geom.Frustum
	Now     time.Time

	// TileSizeModifier scales every tile's pixel threshold; >1 accepts
	// coarser tiles (lower quality, less memory).
	TileSizeModifier float64

	// PurgeOlderThan: when a tile is drawn at adequate resolution, child
	// subtrees not used since this instant are unloaded inline. Zero
	// disables the inline purge, leaving cleanup to the prune sweep.
	PurgeOlderThan time.Time

	selected  []*Tile
	missing   []*Tile
	inMissing map[*Tile]struct{}

	childrenLoading int
	numReady        int
}

func NewDrawArgs(cam geom.Camera, now time.Time) *DrawArgs {
	a := &DrawArgs{inMissing: make(map[*Tile]struct{})}
	a.Reset(cam, now)
	return a
}

// Reset prepares the args for a new frame.
func (a *DrawArgs) Reset(cam geom.Camera, now time.Time) {
	a.Camera = cam
	a.Frustum = cam.Frustum()
	a.Now = now
	if a.TileSizeModifier <= 0 {
		a.TileSizeModifier = 1
	}
	a.selected = a.selected[:0]
	a.missing = a.missing[:0]
	for k := range a.inMissing {
		delete(a.inMissing, k)
	}
	a.childrenLoading = 0
	a.numReady = 0
}

func (a *DrawArgs) Selected() []*Tile { return a.selected }

// Missing lists the tiles that need a content request this frame, in the
// order the walk discovered them, deduplicated.
func (a *DrawArgs) Missing() []*Tile { return a.missing }

// NumReady counts tiles selected with content already resident.
func (a *DrawArgs) NumReady() int { return a.numReady }

// ChildrenLoading counts subtrees whose child batches were still pending,
// useful for throttling descent.
func (a *DrawArgs) ChildrenLoading() int { return a.childrenLoading }

// PixelSize projects a tile's bounding sphere to an on-screen diameter.
func (a *DrawArgs) PixelSize(t *Tile) float64 {
	b := t.Bounds()
	return a.Camera.PixelSize(b.Center(), b.Radius())
}

// InsertMissing records a tile needing content, once per frame.
func (a *DrawArgs) InsertMissing(t *Tile) {
	if _, dup := a.inMissing[t]; dup {
		return
	}
	a.inMissing[t] = struct{}{}
	a.missing = append(a.missing, t)
}

// MarkUsed refreshes the usage marker on the tile and its ancestors so the
// prune sweep keeps the whole path alive.
func (a *DrawArgs) MarkUsed(t *Tile) {
	for p := t; p != nil; p = p.parent {
		p.lastUsed = a.Now
	}
}

// MarkReady is MarkUsed for a tile actually selected with graphics.
func (a *DrawArgs) MarkReady(t *Tile) {
	a.numReady++
	a.MarkUsed(t)
}

// MarkChildrenLoading flags that a subtree's child batch is still pending.
func (a *DrawArgs) MarkChildrenLoading() { a.childrenLoading++ }

func (a *DrawArgs) selectTile(t *Tile) { a.selected = append(a.selected, t) }

func (a *DrawArgs) truncateSelected(n int) { a.selected = a.selected[:n] }

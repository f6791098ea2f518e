// Package scene implements the hierarchical level-of-detail tile tree and
// the per-frame selection walk that decides which tiles to draw, request,
// or discard.
package scene

import (
	"time"

	"tilescape.dev/internal/geom"
	"tilescape.dev/internal/scene/content"
)

// LoadStatus tracks the lifecycle of one tile's content.
type LoadStatus int

const (
	NotLoaded LoadStatus = iota
	Queued               // handed to the scheduler, not yet dispatched
	Loading              // fetch/decode in flight
	Ready
	NotFound
)

func (s LoadStatus) String() string {
	switch s {
	case NotLoaded:
		return "not_loaded"
	case Queued:
		return "queued"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case NotFound:
		return "not_found"
	}
	return "unknown"
}

// Visibility classifies a tile against the current view.
type Visibility int

const (
	OutsideFrustum Visibility = iota
	TooCoarse
	Visible
)

// selectParent tells a tile's parent whether it must draw itself because
// this subtree could not stand in for it.
type selectParent int

const (
	selectParentNo selectParent = iota
	selectParentYes
)

// Params describes a tile to be constructed, either the tree root or one
// entry of a resolved child batch.
type Params struct {
	ContentID      string
	Bounds         geom.Box3
	MaximumSize    float64 // pixels; 0 means not displayable (pure anchor)
	IsLeaf         bool
	SizeMultiplier float64
}

// Tile is one node of the spatial hierarchy. All fields are owned by the
// tree's goroutine; the scheduler applies content only through SetContent
// and SetNotFound on that same goroutine.
type Tile struct {
	tree   *Tree
	parent *Tile // weak back-reference, never owned
	depth  int

	contentID      string
	bounds         geom.Box3
	maximumSize    float64
	sizeMultiplier float64
	isLeaf         bool
	emptyChildMask uint8

	status      LoadStatus
	graphic     *content.Graphic
	hadGraphics bool

	children       []*Tile
	childrenStatus LoadStatus
	lastUsed       time.Time
}

func newTile(tree *Tree, parent *Tile, p Params) *Tile {
	depth := 0
	if parent != nil {
		depth = parent.depth + 1
	}
	t := &Tile{
		tree:           tree,
		parent:         parent,
		depth:          depth,
		contentID:      p.ContentID,
		bounds:         p.Bounds,
		maximumSize:    p.MaximumSize,
		sizeMultiplier: p.SizeMultiplier,
		isLeaf:         p.IsLeaf,
	}
	if t.isLeaf {
		t.childrenStatus = Ready
	}
	return t
}

func (t *Tile) ContentID() string     { return t.contentID }
func (t *Tile) Bounds() geom.Box3     { return t.bounds }
func (t *Tile) Depth() int            { return t.depth }
func (t *Tile) Status() LoadStatus    { return t.status }
func (t *Tile) IsLeaf() bool          { return t.isLeaf }
func (t *Tile) Parent() *Tile         { return t.parent }
func (t *Tile) Children() []*Tile     { return t.children }
func (t *Tile) LastUsed() time.Time   { return t.lastUsed }
func (t *Tile) EmptyChildMask() uint8 { return t.emptyChildMask }

// Graphic returns the decoded drawable content, nil if none.
func (t *Tile) Graphic() *content.Graphic { return t.graphic }

// MaximumSize is the screen-space pixel threshold below which this tile is
// adequate resolution, accounting for progressive refinement.
func (t *Tile) MaximumSize() float64 {
	if t.sizeMultiplier > 1 {
		return t.maximumSize * t.sizeMultiplier
	}
	return t.maximumSize
}

func (t *Tile) SizeMultiplier() float64 { return t.sizeMultiplier }

func (t *Tile) HasGraphics() bool { return t.graphic != nil && t.graphic.Triangles > 0 }

// isReady reports whether loading has run to completion, successfully or
// not. NotFound tiles are terminal and must never be re-requested.
func (t *Tile) isReady() bool { return t.status == Ready || t.status == NotFound }

// isEmpty: a fully loaded leaf with nothing to draw contributes nothing to
// any view and is treated as outside every frustum.
func (t *Tile) isEmpty() bool {
	return t.isReady() && !t.HasGraphics() && t.isLeaf
}

func (t *Tile) isDisplayable() bool { return t.maximumSize > 0 }

func (t *Tile) isParentDisplayable() bool {
	return t.parent != nil && t.parent.isDisplayable()
}

// isUndisplayableRoot identifies root tiles that exist purely as hierarchy
// anchors. They must always show whatever children are available, or the
// view would be empty.
func (t *Tile) isUndisplayableRoot() bool {
	return t.parent == nil && !t.isDisplayable()
}

// MarkQueued transitions NotLoaded -> Queued when the scheduler accepts the
// tile. Reported, not enforced: callers only enqueue unloaded tiles.
func (t *Tile) MarkQueued() {
	if t.status == NotLoaded {
		t.status = Queued
	}
}

// MarkLoading transitions Queued -> Loading when a fetch is dispatched.
func (t *Tile) MarkLoading() {
	if t.status == Queued {
		t.status = Loading
	}
}

// MarkUnqueued returns a queued tile to NotLoaded, e.g. when its request
// went stale before dispatch.
func (t *Tile) MarkUnqueued() {
	if t.status == Queued || t.status == Loading {
		t.status = NotLoaded
	}
}

// SetNotFound records that no content exists at this tile's address. The
// branch below it is dead; the parent stands in permanently.
func (t *Tile) SetNotFound() {
	t.status = NotFound
	t.setGraphic(nil)
}

// SetContent applies a decoded payload. If the payload announces a strictly
// larger size multiplier, the tile adopts it under a new content id and
// restarts at NotLoaded so the refined payload gets fetched; any children
// built under the old addressing are invalidated.
func (t *Tile) SetContent(c content.TileContent) {
	t.setGraphic(c.Graphic)
	t.emptyChildMask = c.EmptyChildMask
	if c.IsLeaf && !t.isLeaf {
		t.isLeaf = true
		t.disposeChildren()
		t.childrenStatus = Ready
	}
	if c.SizeMultiplier > t.sizeMultiplier && c.SizeMultiplier > 1 {
		t.sizeMultiplier = c.SizeMultiplier
		t.contentID = t.tree.kind.RefinedContentID(t)
		t.status = NotLoaded
		t.disposeChildren()
		if !t.isLeaf {
			t.childrenStatus = NotLoaded
		}
		return
	}
	t.status = Ready
}

func (t *Tile) setGraphic(g *content.Graphic) {
	if t.HasGraphics() && (g == nil || g.Triangles == 0) {
		// Distinguishes "unloaded under memory pressure" from "genuinely
		// empty" for the coarsening skip heuristic.
		t.hadGraphics = true
	}
	t.graphic = g
}

// loadChildren kicks off (or reports) asynchronous construction of this
// tile's child batch. It never blocks.
func (t *Tile) loadChildren() LoadStatus {
	if t.childrenStatus != NotLoaded {
		return t.childrenStatus
	}
	t.childrenStatus = Loading
	t.tree.kind.LoadChildren(t, func(specs []Params, err error) {
		if t.childrenStatus != Loading {
			return // superseded by dispose/refinement
		}
		if err != nil {
			t.childrenStatus = NotFound
			return
		}
		kids := make([]*Tile, 0, len(specs))
		for _, p := range specs {
			kids = append(kids, newTile(t.tree, t, p))
		}
		t.children = kids
		t.childrenStatus = Ready
		if len(kids) == 0 {
			t.isLeaf = true
		}
	})
	return t.childrenStatus
}

// purgeChildren unloads the child subtree of a tile being drawn at adequate
// resolution, once no child has been used since args.PurgeOlderThan. Keeps
// memory bounded under zoom-out, where the prune sweep alone never reaches
// the children of a continuously-drawn parent.
func (t *Tile) purgeChildren(args *DrawArgs) {
	if t.children == nil || args.PurgeOlderThan.IsZero() {
		return
	}
	for _, kid := range t.children {
		if !kid.lastUsed.Before(args.PurgeOlderThan) {
			return
		}
	}
	t.disposeChildren()
}

// disposeChildren releases the whole child subtree. Ownership cascades, so
// dropping the slice unloads every descendant.
func (t *Tile) disposeChildren() {
	for _, kid := range t.children {
		kid.parent = nil
		kid.disposeChildren()
	}
	t.children = nil
	if !t.isLeaf {
		t.childrenStatus = NotLoaded
	}
}

package scene

import (
	"log"
	"time"
)

// Kind is the per-tile-family strategy: it decides how a tile's children
// are produced and how refined content is addressed. Content fetching and
// decoding live behind the scheduler, not here.
type Kind interface {
	// LoadChildren resolves the child batch of t. resolve must be invoked on
	// the tree owner's goroutine, either synchronously or on a later frame
	// boundary; a nil error with an empty batch turns t into a leaf.
	LoadChildren(t *Tile, resolve func([]Params, error))

	// RefinedContentID returns the content id addressing t's payload at its
	// current (just increased) size multiplier.
	RefinedContentID(t *Tile) string
}

// Options carries the tree-wide selection policy knobs.
type Options struct {
	// MaxInitialTilesToSkip: tiles shallower than this are always skipped
	// when too coarse, so the walk dives straight past the undetailed top
	// of the hierarchy.
	MaxInitialTilesToSkip int

	// MaxTilesToSkip bounds how many consecutive coarse-but-undisplayable
	// tiles may be skipped along one path before a load is forced.
	MaxTilesToSkip int

	// DebugMaxDepth, when positive, forces tiles at that depth to be
	// treated as adequate resolution regardless of projected size.
	DebugMaxDepth int
}

// Tree owns the root tile and the global selection parameters.
type Tree struct {
	kind Kind
	root *Tile
	opts Options
	log  *log.Logger
}

func NewTree(kind Kind, root Params, opts Options, logger *log.Logger) *Tree {
	if opts.MaxTilesToSkip <= 0 {
		opts.MaxTilesToSkip = 1
	}
	tr := &Tree{kind: kind, opts: opts, log: logger}
	tr.root = newTile(tr, nil, root)
	return tr
}

func (tr *Tree) Root() *Tile { return tr.root }

// SelectTiles runs the selection walk for one frame and returns the tiles
// to draw. The returned slice is owned by args and valid until the next
// frame.
func (tr *Tree) SelectTiles(args *DrawArgs) []*Tile {
	tr.root.selectTiles(args, 0)
	return args.Selected()
}

// Prune discards child subtrees whose usage marker is older than the
// threshold. Tiles touched by the current frame's selection are refreshed
// by MarkUsed/MarkReady and therefore survive.
func (tr *Tree) Prune(olderThan time.Time) {
	tr.root.pruneChildren(olderThan)
}

func (t *Tile) pruneChildren(olderThan time.Time) {
	if t.children == nil {
		return
	}
	if t.lastUsed.Before(olderThan) {
		t.disposeChildren()
		return
	}
	for _, kid := range t.children {
		kid.pruneChildren(olderThan)
	}
}

// CountTiles reports how many tiles are currently resident.
func (tr *Tree) CountTiles() int {
	return countSubtree(tr.root)
}

func countSubtree(t *Tile) int {
	n := 1
	for _, kid := range t.children {
		n += countSubtree(kid)
	}
	return n
}

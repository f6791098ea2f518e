package scene

import (
	"testing"

	"tilescape.dev/internal/scene/content"
)

func singleTileTree(maxSize float64) *Tree {
	kind := &testKind{}
	root := Params{ContentID: "root", Bounds: boxAt(100, 0, 10), MaximumSize: maxSize}
	return NewTree(kind, root, Options{MaxTilesToSkip: 1}, testLogger())
}

func TestLoadStatusTransitions(t *testing.T) {
	tile := singleTileTree(100).Root()
	if tile.Status() != NotLoaded {
		t.Fatalf("fresh tile status = %v", tile.Status())
	}
	tile.MarkQueued()
	if tile.Status() != Queued {
		t.Fatalf("after MarkQueued: %v", tile.Status())
	}
	tile.MarkLoading()
	if tile.Status() != Loading {
		t.Fatalf("after MarkLoading: %v", tile.Status())
	}
	tile.SetContent(readyContent())
	if tile.Status() != Ready || !tile.HasGraphics() {
		t.Fatalf("after SetContent: %v hasGraphics=%v", tile.Status(), tile.HasGraphics())
	}

	other := singleTileTree(100).Root()
	other.MarkQueued()
	other.MarkLoading()
	other.SetNotFound()
	if other.Status() != NotFound || other.HasGraphics() {
		t.Fatalf("after SetNotFound: %v", other.Status())
	}
}

func TestMarkUnqueuedReturnsToNotLoaded(t *testing.T) {
	tile := singleTileTree(100).Root()
	tile.MarkQueued()
	tile.MarkUnqueued()
	if tile.Status() != NotLoaded {
		t.Fatalf("stale queued tile should be retryable, got %v", tile.Status())
	}
	// Terminal states are unaffected.
	tile.SetContent(readyContent())
	tile.MarkUnqueued()
	if tile.Status() != Ready {
		t.Fatalf("ready tile must not regress, got %v", tile.Status())
	}
}

func TestRefinementRestartsContentUnderNewID(t *testing.T) {
	tile := singleTileTree(100).Root()
	base := tile.MaximumSize()

	tile.SetContent(content.TileContent{
		Graphic:        &content.Graphic{Vertices: 8, Triangles: 4},
		SizeMultiplier: 2,
	})
	if tile.Status() != NotLoaded {
		t.Fatalf("refinement should restart loading, got %v", tile.Status())
	}
	if tile.ContentID() != "root@r" {
		t.Fatalf("refinement should re-address content, got %q", tile.ContentID())
	}
	if tile.MaximumSize() != base*2 {
		t.Fatalf("effective maximum size = %g, want %g", tile.MaximumSize(), base*2)
	}
	if !tile.HasGraphics() {
		t.Fatalf("coarse graphic should remain displayable during refinement")
	}

	// The refined payload echoes the multiplier: terminal this time.
	tile.SetContent(content.TileContent{
		Graphic:        &content.Graphic{Vertices: 16, Triangles: 8},
		SizeMultiplier: 2,
	})
	if tile.Status() != Ready {
		t.Fatalf("echoed multiplier should finish loading, got %v", tile.Status())
	}

	// Monotonicity: a smaller multiplier never shrinks the threshold.
	tile.SetContent(content.TileContent{
		Graphic:        &content.Graphic{Vertices: 16, Triangles: 8},
		SizeMultiplier: 1.5,
	})
	if tile.MaximumSize() != base*2 {
		t.Fatalf("maximum size decreased: %g", tile.MaximumSize())
	}
}

func TestRefinementDisposesStaleChildren(t *testing.T) {
	kind := &testKind{children: map[string][]Params{
		"root": {{ContentID: "c0", Bounds: boxAt(100, 0, 5), MaximumSize: 100, IsLeaf: true}},
	}}
	root := Params{ContentID: "root", Bounds: boxAt(100, 0, 10), MaximumSize: 100}
	tree := NewTree(kind, root, Options{MaxInitialTilesToSkip: 1, MaxTilesToSkip: 1}, testLogger())

	args := newArgs()
	tree.SelectTiles(args) // builds children
	if len(tree.Root().Children()) != 1 {
		t.Fatalf("expected a child before refinement")
	}

	tree.Root().SetContent(content.TileContent{
		Graphic:        &content.Graphic{Vertices: 8, Triangles: 4},
		SizeMultiplier: 2,
	})
	if tree.Root().Children() != nil {
		t.Fatalf("refinement must invalidate children built under the old addressing")
	}
}

func TestHadGraphicsRemembersUnloadedContent(t *testing.T) {
	tile := singleTileTree(100).Root()
	tile.SetContent(readyContent())
	tile.SetContent(content.TileContent{IsLeaf: true})
	if !tile.hadGraphics {
		t.Fatalf("tile that lost its graphics should remember it had some")
	}
	if tile.HasGraphics() {
		t.Fatalf("graphics should be gone")
	}
}

func TestEmptyLeafIsInvisible(t *testing.T) {
	tree := singleTileTree(100)
	tile := tree.Root()
	tile.SetContent(content.TileContent{IsLeaf: true})

	args := newArgs()
	selected := tree.SelectTiles(args)
	if len(selected) != 0 || len(args.Missing()) != 0 {
		t.Fatalf("empty leaf selected=%d missing=%d", len(selected), len(args.Missing()))
	}
}

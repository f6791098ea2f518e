package scene

import (
	"testing"
	"time"
)

func TestPruneKeepsRecentlyUsedSubtrees(t *testing.T) {
	tree := coarseRootTree(t, &testKind{})
	args := newArgs()
	tree.SelectTiles(args)
	for _, kid := range tree.Root().Children() {
		kid.SetContent(readyContent())
	}
	args.Reset(testCamera(), time.Now())
	tree.SelectTiles(args)

	if got := tree.CountTiles(); got != 3 {
		t.Fatalf("resident tiles = %d, want 3", got)
	}

	// Everything was touched this frame, so an old threshold is a no-op.
	tree.Prune(time.Now().Add(-time.Minute))
	if got := tree.CountTiles(); got != 3 {
		t.Fatalf("prune dropped live tiles, resident = %d", got)
	}
}

func TestPruneDisposesExpiredSubtrees(t *testing.T) {
	tree := coarseRootTree(t, &testKind{})
	args := newArgs()
	tree.SelectTiles(args)
	if got := tree.CountTiles(); got != 3 {
		t.Fatalf("resident tiles = %d, want 3", got)
	}

	// A threshold past the last selection expires the whole tree's usage
	// markers; the root keeps itself but sheds its children.
	tree.Prune(time.Now().Add(time.Minute))
	if got := tree.CountTiles(); got != 1 {
		t.Fatalf("expired children survived, resident = %d", got)
	}
	if tree.Root().Children() != nil {
		t.Fatalf("children slice should be gone after dispose")
	}

	// The next selection rebuilds the subtree on demand.
	args.Reset(testCamera(), time.Now())
	tree.SelectTiles(args)
	if got := tree.CountTiles(); got != 3 {
		t.Fatalf("subtree not rebuilt after prune, resident = %d", got)
	}
}

func TestMarkUsedRefreshesAncestorChain(t *testing.T) {
	tree := coarseRootTree(t, &testKind{})
	args := newArgs()
	tree.SelectTiles(args)
	kid := tree.Root().Children()[0]

	// Only the leaf is marked, but the refresh walks up to the root, so a
	// prune between the two timestamps keeps the whole path.
	stale := time.Now()
	args.Reset(testCamera(), stale.Add(time.Second))
	args.MarkUsed(kid)
	tree.Prune(stale)
	if got := tree.CountTiles(); got != 3 {
		t.Fatalf("ancestor chain not kept alive, resident = %d", got)
	}
}

package supply

import (
	"context"
	"errors"
	"fmt"

	"tilescape.dev/internal/scene"
	"tilescape.dev/internal/sched"
)

// OctreeKind is the tile family for procedural octree scenes: children are
// derivable locally from the address, so child batches resolve
// synchronously; the parent's decoded empty-child mask keeps the tree
// sparse.
type OctreeKind struct {
	Def SceneDef
}

var _ scene.Kind = OctreeKind{}

func (k OctreeKind) LoadChildren(t *scene.Tile, resolve func([]scene.Params, error)) {
	a, ok := ParseAddr(t.ContentID())
	if !ok {
		resolve(nil, fmt.Errorf("octree: bad content id %q", t.ContentID()))
		return
	}
	if a.D >= k.Def.MaxDepth {
		resolve(nil, nil) // leaf
		return
	}
	mask := t.EmptyChildMask()
	specs := make([]scene.Params, 0, 8)
	for i := 0; i < 8; i++ {
		if mask&(1<<uint(i)) != 0 {
			continue
		}
		child := a.Child(i)
		specs = append(specs, scene.Params{
			ContentID:   child.String(),
			Bounds:      k.Def.BoundsOf(child),
			MaximumSize: k.Def.TileMaxSizePx,
			IsLeaf:      child.D == k.Def.MaxDepth,
		})
	}
	resolve(specs, nil)
}

func (k OctreeKind) RefinedContentID(t *scene.Tile) string {
	a, ok := ParseAddr(t.ContentID())
	if !ok {
		return t.ContentID()
	}
	a.Mult = t.SizeMultiplier()
	return a.String()
}

// LocalSource serves payloads straight from the scene definition, for
// in-process viewing and tests.
type LocalSource struct {
	Def SceneDef
}

func (s LocalSource) Fetch(ctx context.Context, contentID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := s.Def.Payload(contentID)
	if errors.Is(err, ErrNoContent) {
		return nil, sched.ErrNotFound
	}
	return b, err
}

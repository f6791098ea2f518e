package supply

import (
	"errors"
	"fmt"

	"tilescape.dev/internal/geom"
	"tilescape.dev/internal/scene"
	"tilescape.dev/internal/scene/content"
)

// ErrNoContent signals that no payload exists at the requested address.
var ErrNoContent = errors.New("supply: no content at address")

// SceneDef is the deterministic procedural scene: a fractal heightfield
// surface carved into an octree. Two processes constructing a SceneDef from
// the same parameters produce byte-identical payloads, which is what lets
// the server cache them and the viewer address them blindly.
type SceneDef struct {
	Seed          int64
	Bounds        geom.Box3
	MaxDepth      int
	TileMaxSizePx float64
	MaxRefinement float64 // size-multiplier cap for leaf refinement

	// DisplayableRoot controls whether the root carries its own graphics or
	// is a pure hierarchy anchor that always defers to children.
	DisplayableRoot bool
}

func DefaultScene(seed int64) SceneDef {
	half := 512.0
	return SceneDef{
		Seed:          seed,
		Bounds:        geom.NewBox3(geom.Vec3{X: -half, Y: -half, Z: -half}, geom.Vec3{X: half, Y: half, Z: half}),
		MaxDepth:      6,
		TileMaxSizePx: 512,
		MaxRefinement: 2,
	}
}

// RootParams describes the tree root for this scene.
func (d SceneDef) RootParams() scene.Params {
	maxSize := 0.0
	if d.DisplayableRoot {
		maxSize = d.TileMaxSizePx
	}
	return scene.Params{
		ContentID:   Addr{}.String(),
		Bounds:      d.Bounds,
		MaximumSize: maxSize,
		IsLeaf:      d.MaxDepth == 0,
	}
}

// BoundsOf descends octants from the root box to the addressed cell.
func (d SceneDef) BoundsOf(a Addr) geom.Box3 {
	b := d.Bounds
	for lvl := a.D - 1; lvl >= 0; lvl-- {
		i := ((a.X >> lvl) & 1) | ((a.Y>>lvl)&1)<<1 | ((a.Z>>lvl)&1)<<2
		b = b.Octant(i)
	}
	return b
}

// surfaceHeight evaluates the terrain surface (world Z) at world x,y.
func (d SceneDef) surfaceHeight(x, y float64) float64 {
	sx := (x - d.Bounds.Low.X) / (d.Bounds.High.X - d.Bounds.Low.X) * 4
	sy := (y - d.Bounds.Low.Y) / (d.Bounds.High.Y - d.Bounds.Low.Y) * 4
	h := fractalNoise(d.Seed, sx, sy)
	return d.Bounds.Low.Z + h*(d.Bounds.High.Z-d.Bounds.Low.Z)
}

// occupied reports whether the cell's box intersects the surface shell.
func (d SceneDef) occupied(a Addr) bool {
	b := d.BoundsOf(a)
	thickness := (d.Bounds.High.Z - d.Bounds.Low.Z) * 0.01
	c := b.Center()
	samples := [5][2]float64{
		{b.Low.X, b.Low.Y}, {b.High.X, b.Low.Y},
		{b.Low.X, b.High.Y}, {b.High.X, b.High.Y},
		{c.X, c.Y},
	}
	lo := d.surfaceHeight(samples[0][0], samples[0][1])
	hi := lo
	for _, p := range samples[1:] {
		h := d.surfaceHeight(p[0], p[1])
		if h < lo {
			lo = h
		}
		if h > hi {
			hi = h
		}
	}
	return b.Low.Z <= hi+thickness && b.High.Z >= lo-thickness
}

func (d SceneDef) emptyChildMask(a Addr) uint8 {
	var mask uint8
	for i := 0; i < 8; i++ {
		if !d.occupied(a.Child(i)) {
			mask |= 1 << uint(i)
		}
	}
	return mask
}

// dense marks cells whose leaf payload saturates the base resolution and
// should be refined in place rather than left blurry.
func (d SceneDef) dense(a Addr) bool {
	return hash3(d.Seed^0x7ea1, a.X, a.Y, a.Z)&3 == 0
}

// Content builds the decoded form of the payload at a.
func (d SceneDef) Content(a Addr) (content.TileContent, error) {
	if a.D > d.MaxDepth {
		return content.TileContent{}, fmt.Errorf("%w: depth %d exceeds max %d", ErrNoContent, a.D, d.MaxDepth)
	}
	if a.Mult > d.MaxRefinement {
		return content.TileContent{}, fmt.Errorf("%w: refinement %g exceeds cap", ErrNoContent, a.Mult)
	}
	if !d.occupied(a) {
		return content.TileContent{IsLeaf: true}, nil
	}
	c := content.TileContent{
		IsLeaf:         a.D == d.MaxDepth,
		SizeMultiplier: a.Mult,
		Graphic:        d.graphic(a),
	}
	if !c.IsLeaf {
		c.EmptyChildMask = d.emptyChildMask(a)
	} else if a.Mult == 0 && d.dense(a) {
		// Tell the viewer to re-request this leaf at higher resolution.
		c.SizeMultiplier = d.MaxRefinement
	}
	return c, nil
}

// Payload is Content followed by Encode: the wire bytes for a content id.
func (d SceneDef) Payload(contentID string) ([]byte, error) {
	a, ok := ParseAddr(contentID)
	if !ok {
		return nil, fmt.Errorf("%w: bad id %q", ErrNoContent, contentID)
	}
	c, err := d.Content(a)
	if err != nil {
		return nil, err
	}
	return content.Encode(c)
}

// graphic synthesizes a deterministic mesh whose density grows with depth
// and refinement.
func (d SceneDef) graphic(a Addr) *content.Graphic {
	detail := a.D + 1
	if a.Mult > 1 {
		detail *= int(a.Mult)
	}
	verts := 24 * detail
	h := hash3(d.Seed, a.X^a.D<<8, a.Y, a.Z)
	var pattern [16]byte
	for i := range pattern {
		pattern[i] = byte(h >> uint(i%8*8))
	}
	mesh := make([]byte, verts*12)
	for i := range mesh {
		mesh[i] = pattern[i%len(pattern)]
	}
	return &content.Graphic{Vertices: verts, Triangles: verts * 2, Mesh: mesh}
}

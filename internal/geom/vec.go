package geom

import "math"

type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

func (v Vec3) Dot(o Vec3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

func (v Vec3) Length() float64 { return math.Sqrt(v.Dot(v)) }

func (v Vec3) Normalized() Vec3 {
	l := v.Length()
	if l == 0 {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

// Box3 is an axis-aligned bounding box. A box with Low > High on any axis
// is treated as empty.
type Box3 struct {
	Low  Vec3
	High Vec3
}

func NewBox3(low, high Vec3) Box3 { return Box3{Low: low, High: high} }

func (b Box3) IsEmpty() bool {
	return b.Low.X > b.High.X || b.Low.Y > b.High.Y || b.Low.Z > b.High.Z
}

func (b Box3) Center() Vec3 {
	return Vec3{
		(b.Low.X + b.High.X) / 2,
		(b.Low.Y + b.High.Y) / 2,
		(b.Low.Z + b.High.Z) / 2,
	}
}

// Radius is half the diagonal, the radius of the bounding sphere.
func (b Box3) Radius() float64 {
	return b.High.Sub(b.Low).Length() / 2
}

func (b Box3) Union(o Box3) Box3 {
	if b.IsEmpty() {
		return o
	}
	if o.IsEmpty() {
		return b
	}
	return Box3{
		Low:  Vec3{math.Min(b.Low.X, o.Low.X), math.Min(b.Low.Y, o.Low.Y), math.Min(b.Low.Z, o.Low.Z)},
		High: Vec3{math.Max(b.High.X, o.High.X), math.Max(b.High.Y, o.High.Y), math.Max(b.High.Z, o.High.Z)},
	}
}

// Octant returns the i-th (0..7) octant sub-box, bit 0 = +X, bit 1 = +Y,
// bit 2 = +Z.
func (b Box3) Octant(i int) Box3 {
	c := b.Center()
	out := b
	if i&1 != 0 {
		out.Low.X = c.X
	} else {
		out.High.X = c.X
	}
	if i&2 != 0 {
		out.Low.Y = c.Y
	} else {
		out.High.Y = c.Y
	}
	if i&4 != 0 {
		out.Low.Z = c.Z
	} else {
		out.High.Z = c.Z
	}
	return out
}

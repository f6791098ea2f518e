package geom

import "math"

type Containment int

const (
	Outside Containment = iota
	Intersects
	Inside
)

// Plane is defined by Normal·p + D = 0 with Normal pointing toward the
// inside of the volume it bounds.
type Plane struct {
	Normal Vec3
	D      float64
}

func planeFromPoints(a, b, c Vec3) Plane {
	n := b.Sub(a).Cross(c.Sub(a)).Normalized()
	return Plane{Normal: n, D: -n.Dot(a)}
}

func (p Plane) DistanceTo(v Vec3) float64 {
	return p.Normal.Dot(v) + p.D
}

// Frustum is six inward-facing planes: near, far, left, right, top, bottom.
type Frustum struct {
	Planes [6]Plane
}

// ContainsBox classifies an axis-aligned box against the frustum by testing
// its eight corners against every plane.
func (f Frustum) ContainsBox(b Box3) Containment {
	if b.IsEmpty() {
		return Outside
	}
	corners := [8]Vec3{}
	for i := 0; i < 8; i++ {
		c := b.Low
		if i&1 != 0 {
			c.X = b.High.X
		}
		if i&2 != 0 {
			c.Y = b.High.Y
		}
		if i&4 != 0 {
			c.Z = b.High.Z
		}
		corners[i] = c
	}
	allInside := true
	for _, pl := range f.Planes {
		out := 0
		for _, c := range corners {
			if pl.DistanceTo(c) < 0 {
				out++
			}
		}
		if out == 8 {
			return Outside
		}
		if out > 0 {
			allInside = false
		}
	}
	if allInside {
		return Inside
	}
	return Intersects
}

// Camera describes a perspective view and the viewport it projects into.
type Camera struct {
	Eye     Vec3
	Forward Vec3 // unit
	Up      Vec3 // unit, roughly orthogonal to Forward
	FovY    float64
	Aspect  float64
	Near    float64
	Far     float64

	ViewHeightPx float64
}

// Frustum derives the six view planes from the camera parameters.
func (c Camera) Frustum() Frustum {
	fwd := c.Forward.Normalized()
	right := fwd.Cross(c.Up).Normalized()
	up := right.Cross(fwd)

	nearC := c.Eye.Add(fwd.Scale(c.Near))
	farC := c.Eye.Add(fwd.Scale(c.Far))

	nh := c.Near * math.Tan(c.FovY/2)
	nw := nh * c.Aspect

	ntl := nearC.Add(up.Scale(nh)).Sub(right.Scale(nw))
	ntr := nearC.Add(up.Scale(nh)).Add(right.Scale(nw))
	nbl := nearC.Sub(up.Scale(nh)).Sub(right.Scale(nw))
	nbr := nearC.Sub(up.Scale(nh)).Add(right.Scale(nw))

	// Side planes pass through the eye; near/far are perpendicular to the
	// view direction.
	var f Frustum
	f.Planes[0] = Plane{Normal: fwd, D: -fwd.Dot(nearC)}         // near
	f.Planes[1] = Plane{Normal: fwd.Scale(-1), D: fwd.Dot(farC)} // far
	f.Planes[2] = planeFromPoints(c.Eye, nbl, ntl)               // left
	f.Planes[3] = planeFromPoints(c.Eye, ntr, nbr)               // right
	f.Planes[4] = planeFromPoints(c.Eye, ntl, ntr)               // top
	f.Planes[5] = planeFromPoints(c.Eye, nbr, nbl)               // bottom
	return f
}

// PixelSize returns the approximate on-screen diameter, in pixels, of a
// sphere with the given center and radius.
func (c Camera) PixelSize(center Vec3, radius float64) float64 {
	dist := center.Sub(c.Eye).Dot(c.Forward.Normalized())
	if dist < c.Near {
		dist = c.Near
	}
	halfView := dist * math.Tan(c.FovY/2)
	if halfView <= 0 {
		return 0
	}
	return radius / halfView * c.ViewHeightPx
}

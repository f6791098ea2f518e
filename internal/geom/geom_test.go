package geom

import (
	"math"
	"testing"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestBox3Octants(t *testing.T) {
	b := NewBox3(Vec3{-2, -2, -2}, Vec3{2, 2, 2})
	var union Box3
	union.Low = Vec3{1, 1, 1} // empty seed
	for i := 0; i < 8; i++ {
		o := b.Octant(i)
		if o.IsEmpty() {
			t.Fatalf("octant %d empty", i)
		}
		if got := o.High.Sub(o.Low); !approx(got.X, 2) || !approx(got.Y, 2) || !approx(got.Z, 2) {
			t.Fatalf("octant %d extent = %+v", i, got)
		}
		union = union.Union(o)
	}
	if union != b {
		t.Fatalf("octants do not tile the box: %+v", union)
	}

	hi := b.Octant(0b111)
	if hi.Low != b.Center() || hi.High != b.High {
		t.Fatalf("octant 7 = %+v", hi)
	}
}

func TestBox3Radius(t *testing.T) {
	b := NewBox3(Vec3{0, 0, 0}, Vec3{2, 2, 2})
	if got := b.Radius(); !approx(got, math.Sqrt(3)) {
		t.Fatalf("radius = %g", got)
	}
}

func lookDownX() Camera {
	return Camera{
		Eye:          Vec3{},
		Forward:      Vec3{X: 1},
		Up:           Vec3{Z: 1},
		FovY:         math.Pi / 2,
		Aspect:       1,
		Near:         0.1,
		Far:          1000,
		ViewHeightPx: 1000,
	}
}

func TestFrustumClassification(t *testing.T) {
	f := lookDownX().Frustum()
	cases := []struct {
		name string
		box  Box3
		want Containment
	}{
		{"dead ahead", NewBox3(Vec3{99, -1, -1}, Vec3{101, 1, 1}), Inside},
		{"behind", NewBox3(Vec3{-101, -1, -1}, Vec3{-99, 1, 1}), Outside},
		{"far off axis", NewBox3(Vec3{10, 500, -1}, Vec3{12, 502, 1}), Outside},
		{"beyond far", NewBox3(Vec3{2000, -1, -1}, Vec3{2002, 1, 1}), Outside},
		{"straddles near plane", NewBox3(Vec3{-1, -1, -1}, Vec3{1, 1, 1}), Intersects},
		// With 90° fov the side planes sit at 45°; a box hugging the edge
		// of view at x=100 crosses the right plane.
		{"crosses side plane", NewBox3(Vec3{99, 99, -1}, Vec3{101, 101, 1}), Intersects},
	}
	for _, tc := range cases {
		if got := f.ContainsBox(tc.box); got != tc.want {
			t.Fatalf("%s: containment = %v, want %v", tc.name, got, tc.want)
		}
	}
	if f.ContainsBox(Box3{Low: Vec3{1, 1, 1}}) != Outside {
		t.Fatalf("empty box should classify Outside")
	}
}

func TestPixelSizeScalesWithDistance(t *testing.T) {
	cam := lookDownX()
	// FovY 90°, 1000px: a sphere of radius r at distance d covers 1000*r/d.
	if got := cam.PixelSize(Vec3{X: 100}, 10); !approx(got, 100) {
		t.Fatalf("pixel size = %g, want 100", got)
	}
	near := cam.PixelSize(Vec3{X: 100}, 10)
	far := cam.PixelSize(Vec3{X: 200}, 10)
	if !approx(near, far*2) {
		t.Fatalf("pixel size not inversely proportional to distance: %g vs %g", near, far)
	}
	// Distance clamps at the near plane rather than exploding.
	atEye := cam.PixelSize(Vec3{}, 1)
	clamped := cam.PixelSize(Vec3{X: cam.Near / 2}, 1)
	if atEye != clamped {
		t.Fatalf("near clamp broken: %g vs %g", atEye, clamped)
	}
}

package render

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/phil-mansfield/godeform/geom"
	"github.com/phil-mansfield/godeform/transform"
)

// Camera is the per-frame view: a world-space position looking at the orbit
// center, plus the spherical coordinates it was derived from, which the
// guidance model consumes as pose metadata.
type Camera struct {
	Pos, Target, Up geom.Vec

	Azimuth, Elevation, Radius float32
	Frame                      int
}

// View returns the camera's world-to-view matrix.
func (c *Camera) View() mgl32.Mat4 {
	return mgl32.LookAtV(toMgl(c.Pos), toMgl(c.Target), toMgl(c.Up))
}

// Orbit derives a deterministic camera per frame index: a viewpoint on a
// sphere around Center, parameterized by azimuth/elevation/radius with
// fixed per-frame deltas when Move is set.
type Orbit struct {
	Center geom.Vec
	// Orthonormal observant basis: o1, o2 span the horizontal plane, o3 is
	// the vertical upward axis.
	o1, o2, o3 geom.Vec

	InitAzimuth, InitElevation, InitRadius float32
	DeltaA, DeltaE, DeltaR                 float32
	Move                                   bool
}

// NewOrbit anchors an orbit in the world frame. center and up are given in
// the grid frame and mapped out through the transform, matching how runs
// are configured: the viewpoint is chosen by looking at the normalized
// simulation, not the raw reconstruction.
func NewOrbit(
	tr *transform.Transform, center, up geom.Vec,
	azimuth, elevation, radius, dA, dE, dR float32, move bool,
) *Orbit {
	o := &Orbit{
		Center:        tr.PointToWorld(center),
		InitAzimuth:   azimuth,
		InitElevation: elevation,
		InitRadius:    radius / tr.Scale,
		DeltaA:        dA, DeltaE: dE, DeltaR: dR,
		Move: move,
	}

	o3 := toMgl(tr.DirToWorld(up)).Normalize()
	helper := mgl32.Vec3{1, 0, 0}
	if math32.Abs(o3.Dot(helper)) > 0.99 {
		helper = mgl32.Vec3{0, 1, 0}
	}
	o1 := helper.Cross(o3).Normalize()
	o2 := o3.Cross(o1)

	o.o1, o.o2, o.o3 = fromMgl(o1), fromMgl(o2), fromMgl(o3)
	return o
}

// Camera returns the camera for the given frame index.
func (o *Orbit) Camera(frame int) *Camera {
	a, e, r := o.InitAzimuth, o.InitElevation, o.InitRadius
	if o.Move {
		f := float32(frame)
		a += f * o.DeltaA
		e += f * o.DeltaE
		r += f * o.DeltaR
	}

	aRad := a * math32.Pi / 180
	eRad := e * math32.Pi / 180

	dir := o.o1.Scale(math32.Cos(eRad) * math32.Cos(aRad)).
		Add(o.o2.Scale(math32.Cos(eRad) * math32.Sin(aRad))).
		Add(o.o3.Scale(math32.Sin(eRad)))

	return &Camera{
		Pos:       o.Center.Add(dir.Scale(r)),
		Target:    o.Center,
		Up:        o.o3,
		Azimuth:   a,
		Elevation: e,
		Radius:    r,
		Frame:     frame,
	}
}

func toMgl(v geom.Vec) mgl32.Vec3   { return mgl32.Vec3{v[0], v[1], v[2]} }
func fromMgl(v mgl32.Vec3) geom.Vec { return geom.Vec{v.X(), v.Y(), v.Z()} }

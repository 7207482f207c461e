package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

var (
	WorldUp      = mgl64.Vec3{0, 1, 0}
	WorldRight   = mgl64.Vec3{1, 0, 0}
	WorldForward = mgl64.Vec3{0, 0, 1}
)

// Frame is a rigid transform. Local axes are right=+X, up=+Y, forward=+Z.
type Frame struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
}

func IdentityFrame(pos mgl64.Vec3) Frame {
	return Frame{Position: pos, Rotation: mgl64.QuatIdent()}
}

func (f Frame) Up() mgl64.Vec3 {
	return f.Rotation.Rotate(WorldUp)
}

func (f Frame) Forward() mgl64.Vec3 {
	return f.Rotation.Rotate(WorldForward)
}

func (f Frame) Right() mgl64.Vec3 {
	return f.Rotation.Rotate(WorldRight)
}

func (f Frame) TransformPoint(local mgl64.Vec3) mgl64.Vec3 {
	return f.Position.Add(f.Rotation.Rotate(local))
}

func (f Frame) InverseTransformPoint(world mgl64.Vec3) mgl64.Vec3 {
	return f.Rotation.Inverse().Rotate(world.Sub(f.Position))
}

func SafeNormalize(v, fallback mgl64.Vec3) mgl64.Vec3 {
	l := v.Len()
	if l < CollisionAxisTolerance || math.IsNaN(l) || math.IsInf(l, 0) {
		return fallback
	}
	return v.Mul(1 / l)
}

// Project returns the component of v along onto.
func Project(v, onto mgl64.Vec3) mgl64.Vec3 {
	d := onto.LenSqr()
	if d < CollisionAxisTolerance {
		return mgl64.Vec3{}
	}
	return onto.Mul(v.Dot(onto) / d)
}

// ProjectOnPlane removes the component of v along the plane normal.
func ProjectOnPlane(v, normal mgl64.Vec3) mgl64.Vec3 {
	return v.Sub(Project(v, normal))
}

func Lerp(a, b mgl64.Vec3, t float64) mgl64.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}

func Clamp01(v float64) float64 {
	return mgl64.Clamp(v, 0, 1)
}

// FromToRotation is the shortest rotation taking direction from onto direction to.
func FromToRotation(from, to mgl64.Vec3) mgl64.Quat {
	from = SafeNormalize(from, WorldUp)
	to = SafeNormalize(to, WorldUp)
	if from.ApproxEqualThreshold(to, 1e-12) {
		return mgl64.QuatIdent()
	}
	return mgl64.QuatBetweenVectors(from, to).Normalize()
}

// Slerp interpolates along the shorter arc. t is clamped to [0,1].
func Slerp(a, b mgl64.Quat, t float64) mgl64.Quat {
	t = Clamp01(t)
	if a.Dot(b) < 0 {
		b = b.Scale(-1)
	}
	return mgl64.QuatSlerp(a, b, t).Normalize()
}

// AngleBetween returns the rotation angle between a and b in degrees.
func AngleBetween(a, b mgl64.Quat) float64 {
	d := math.Abs(a.Normalize().Dot(b.Normalize()))
	d = mgl64.Clamp(d, -1, 1)
	return mgl64.RadToDeg(2 * math.Acos(d))
}

// RotateTowards moves from toward to by at most maxDegrees.
func RotateTowards(from, to mgl64.Quat, maxDegrees float64) mgl64.Quat {
	angle := AngleBetween(from, to)
	if angle <= maxDegrees || angle < 1e-9 {
		return to.Normalize()
	}
	return Slerp(from, to, maxDegrees/angle)
}

// LookRotation builds the rotation whose forward axis is forward and whose up axis is as
// close to up as possible.
func LookRotation(forward, up mgl64.Vec3) mgl64.Quat {
	f := SafeNormalize(forward, WorldForward)
	r := SafeNormalize(up.Cross(f), mgl64.Vec3{})
	if r.LenSqr() == 0 {
		r = SafeNormalize(WorldUp.Cross(f), WorldRight)
	}
	u := f.Cross(r)
	m := mgl64.Mat3{
		r[0], r[1], r[2],
		u[0], u[1], u[2],
		f[0], f[1], f[2],
	}
	return mgl64.Mat4ToQuat(m.Mat4()).Normalize()
}

// Perpendicular returns two unit vectors orthogonal to dir and to each other.
func Perpendicular(dir mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	d := SafeNormalize(dir, WorldUp)
	ref := WorldRight
	if math.Abs(d.Dot(ref)) > 0.9 {
		ref = WorldForward
	}
	a := d.Cross(ref).Normalize()
	b := d.Cross(a).Normalize()
	return a, b
}

func nearlyZero(v float64) bool {
	return math.Abs(v) <= CollisionAxisTolerance
}

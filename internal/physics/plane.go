package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Plane is an infinite one-sided surface. Rays only hit it from the side its normal faces.
type Plane struct {
	Point  mgl64.Vec3
	Normal mgl64.Vec3
	Layer  Layer
}

func NewPlane(point, normal mgl64.Vec3) Plane {
	return Plane{Point: point, Normal: SafeNormalize(normal, WorldUp), Layer: LayerTerrain}
}

func (p Plane) layer() Layer {
	if p.Layer == 0 {
		return LayerDefault
	}
	return p.Layer
}

func (p Plane) Raycast(origin, dir mgl64.Vec3, maxDist float64, mask LayerMask) (Hit, bool) {
	if !mask.Has(p.layer()) {
		return Hit{}, false
	}
	denom := p.Normal.Dot(dir)
	if denom > -CollisionAxisTolerance {
		return Hit{}, false
	}
	t := p.Normal.Dot(p.Point.Sub(origin)) / denom
	if t < 0 || t > maxDist {
		return Hit{}, false
	}
	return Hit{
		Point:    origin.Add(dir.Mul(t)),
		Normal:   p.Normal,
		Distance: t,
		Layer:    p.layer(),
	}, true
}

func (p Plane) SphereCast(origin mgl64.Vec3, radius float64, dir mgl64.Vec3, maxDist float64, mask LayerMask) (Hit, bool) {
	if !mask.Has(p.layer()) {
		return Hit{}, false
	}
	denom := p.Normal.Dot(dir)
	signed := p.Normal.Dot(origin.Sub(p.Point))
	if signed < 0 {
		return Hit{}, false
	}
	if denom > -CollisionAxisTolerance {
		// Sliding along or leaving the plane never touches it, even from inside the radius.
		return Hit{}, false
	}
	if signed <= radius {
		return Hit{
			Point:    origin.Sub(p.Normal.Mul(signed)),
			Normal:   p.Normal,
			Distance: 0,
			Layer:    p.layer(),
		}, true
	}
	t := (signed - radius) / -denom
	if t > maxDist || math.IsInf(t, 0) {
		return Hit{}, false
	}
	center := origin.Add(dir.Mul(t))
	return Hit{
		Point:    center.Sub(p.Normal.Mul(radius)),
		Normal:   p.Normal,
		Distance: t,
		Layer:    p.layer(),
	}, true
}

package physics

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

type Layer uint32

const (
	LayerDefault Layer = 1 << iota
	LayerTerrain
	LayerProps
)

type LayerMask uint32

const AllLayers LayerMask = ^LayerMask(0)

func (m LayerMask) Has(l Layer) bool {
	return uint32(m)&uint32(l) != 0
}

// Hit is a single surface contact sample. It is produced and consumed within one tick.
type Hit struct {
	Point    mgl64.Vec3
	Normal   mgl64.Vec3
	Distance float64
	Layer    Layer
}

// Surface is the opaque terrain the controllers query. dir must be a unit vector.
type Surface interface {
	Raycast(origin, dir mgl64.Vec3, maxDist float64, mask LayerMask) (Hit, bool)
}

// SphereCaster is implemented by surfaces with an exact swept-sphere query.
type SphereCaster interface {
	SphereCast(origin mgl64.Vec3, radius float64, dir mgl64.Vec3, maxDist float64, mask LayerMask) (Hit, bool)
}

// SphereCast sweeps a sphere along dir. Surfaces without a native implementation are
// sampled with a center ray plus a ring of parallel rays at the sphere radius; the nearest
// hit point is reported with the averaged normal of every ray that hit.
func SphereCast(s Surface, origin mgl64.Vec3, radius float64, dir mgl64.Vec3, maxDist float64, mask LayerMask) (Hit, bool) {
	if s == nil {
		return Hit{}, false
	}
	if caster, ok := s.(SphereCaster); ok {
		return caster.SphereCast(origin, radius, dir, maxDist, mask)
	}
	best, ok := s.Raycast(origin, dir, maxDist, mask)
	if radius <= 0 {
		return best, ok
	}

	var normalSum mgl64.Vec3
	if ok {
		normalSum = best.Normal
	}
	a, b := Perpendicular(dir)
	for i := 0; i < SphereCastRingSamples; i++ {
		theta := 2 * math.Pi * float64(i) / SphereCastRingSamples
		offset := a.Mul(math.Cos(theta) * radius).Add(b.Mul(math.Sin(theta) * radius))
		hit, hitOK := s.Raycast(origin.Add(offset), dir, maxDist, mask)
		if !hitOK {
			continue
		}
		normalSum = normalSum.Add(hit.Normal)
		if !ok || hit.Distance < best.Distance {
			best = hit
			ok = true
		}
	}
	if !ok {
		return Hit{}, false
	}
	best.Normal = SafeNormalize(normalSum, best.Normal)
	return best, true
}

// Group reports the nearest hit among its members.
type Group []Surface

func (g Group) Raycast(origin, dir mgl64.Vec3, maxDist float64, mask LayerMask) (Hit, bool) {
	var (
		best Hit
		ok   bool
	)
	for _, s := range g {
		if s == nil {
			continue
		}
		hit, hitOK := s.Raycast(origin, dir, maxDist, mask)
		if hitOK && (!ok || hit.Distance < best.Distance) {
			best = hit
			ok = true
		}
	}
	return best, ok
}

// Empty never reports a hit.
type Empty struct{}

func (Empty) Raycast(mgl64.Vec3, mgl64.Vec3, float64, LayerMask) (Hit, bool) {
	return Hit{}, false
}

var layerNames = map[string]Layer{
	"default": LayerDefault,
	"terrain": LayerTerrain,
	"props":   LayerProps,
}

// ParseLayerMask converts layer names to a mask. An empty list selects every layer.
func ParseLayerMask(names []string) (LayerMask, error) {
	if len(names) == 0 {
		return AllLayers, nil
	}
	var mask LayerMask
	for _, name := range names {
		l, ok := layerNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return 0, fmt.Errorf("unknown layer %q", name)
		}
		mask |= LayerMask(l)
	}
	return mask, nil
}

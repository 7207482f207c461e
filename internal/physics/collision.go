package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

type BlockStore interface {
	IsSolid(x, y, z int) bool
}

// VoxelSurface exposes a block grid as a Surface. Block (x, y, z) spans
// [x, x+1) * BlockSize on each axis. Hits report the entered face normal.
type VoxelSurface struct {
	Blocks    BlockStore
	BlockSize float64
	Layer     Layer
}

func NewVoxelSurface(blocks BlockStore) *VoxelSurface {
	return &VoxelSurface{Blocks: blocks, BlockSize: 1, Layer: LayerTerrain}
}

func (v *VoxelSurface) blockSize() float64 {
	if v.BlockSize <= 0 {
		return 1
	}
	return v.BlockSize
}

func (v *VoxelSurface) layer() Layer {
	if v.Layer == 0 {
		return LayerDefault
	}
	return v.Layer
}

// Raycast walks the grid with a DDA. A ray starting inside a solid block reports no hit.
func (v *VoxelSurface) Raycast(origin, dir mgl64.Vec3, maxDist float64, mask LayerMask) (Hit, bool) {
	if v == nil || v.Blocks == nil || !mask.Has(v.layer()) {
		return Hit{}, false
	}
	if nearlyZero(dir[0]) && nearlyZero(dir[1]) && nearlyZero(dir[2]) {
		return Hit{}, false
	}
	size := v.blockSize()
	worldOrigin := origin
	origin = origin.Mul(1 / size)
	maxDist /= size

	x := int(math.Floor(origin[0]))
	y := int(math.Floor(origin[1]))
	z := int(math.Floor(origin[2]))
	if v.Blocks.IsSolid(x, y, z) {
		return Hit{}, false
	}

	stepX, tMaxX, tDeltaX := ddaAxis(origin[0], dir[0], x)
	stepY, tMaxY, tDeltaY := ddaAxis(origin[1], dir[1], y)
	stepZ, tMaxZ, tDeltaZ := ddaAxis(origin[2], dir[2], z)

	for {
		var (
			distance float64
			normal   mgl64.Vec3
		)
		switch {
		case tMaxX <= tMaxY && tMaxX <= tMaxZ:
			x += stepX
			distance = tMaxX
			tMaxX += tDeltaX
			normal = mgl64.Vec3{float64(-stepX), 0, 0}
		case tMaxY <= tMaxX && tMaxY <= tMaxZ:
			y += stepY
			distance = tMaxY
			tMaxY += tDeltaY
			normal = mgl64.Vec3{0, float64(-stepY), 0}
		default:
			z += stepZ
			distance = tMaxZ
			tMaxZ += tDeltaZ
			normal = mgl64.Vec3{0, 0, float64(-stepZ)}
		}
		if distance > maxDist || math.IsInf(distance, 1) {
			return Hit{}, false
		}
		if v.Blocks.IsSolid(x, y, z) {
			return Hit{
				Point:    worldOrigin.Add(dir.Mul(distance * size)),
				Normal:   normal,
				Distance: distance * size,
				Layer:    v.layer(),
			}, true
		}
	}
}

func ddaAxis(origin, dir float64, cell int) (step int, tMax float64, tDelta float64) {
	if nearlyZero(dir) {
		return 0, math.Inf(1), math.Inf(1)
	}
	if dir > 0 {
		step = 1
		tMax = (float64(cell+1) - origin) / dir
		tDelta = 1.0 / dir
		return
	}
	step = -1
	inv := -dir
	tMax = (origin - float64(cell)) / inv
	tDelta = 1.0 / inv
	return
}

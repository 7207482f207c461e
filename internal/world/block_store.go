package world

import (
	"sync"
)

type BlockPos struct {
	X int
	Y int
	Z int
}

// VoxelStore is a sparse set of solid blocks. It satisfies physics.BlockStore.
type VoxelStore struct {
	mu    sync.RWMutex
	solid map[BlockPos]struct{}
}

func NewVoxelStore() *VoxelStore {
	return &VoxelStore{solid: make(map[BlockPos]struct{})}
}

func (vs *VoxelStore) IsSolid(x, y, z int) bool {
	if vs == nil {
		return false
	}
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	_, ok := vs.solid[BlockPos{X: x, Y: y, Z: z}]
	return ok
}

func (vs *VoxelStore) SetSolid(x, y, z int, solid bool) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	if vs.solid == nil {
		vs.solid = make(map[BlockPos]struct{})
	}
	pos := BlockPos{X: x, Y: y, Z: z}
	if solid {
		vs.solid[pos] = struct{}{}
		return
	}
	delete(vs.solid, pos)
}

// Fill marks every block in the inclusive box [min, max] solid.
func (vs *VoxelStore) Fill(min, max BlockPos) {
	if max.X < min.X {
		min.X, max.X = max.X, min.X
	}
	if max.Y < min.Y {
		min.Y, max.Y = max.Y, min.Y
	}
	if max.Z < min.Z {
		min.Z, max.Z = max.Z, min.Z
	}

	vs.mu.Lock()
	defer vs.mu.Unlock()
	if vs.solid == nil {
		vs.solid = make(map[BlockPos]struct{})
	}
	for y := min.Y; y <= max.Y; y++ {
		for x := min.X; x <= max.X; x++ {
			for z := min.Z; z <= max.Z; z++ {
				vs.solid[BlockPos{X: x, Y: y, Z: z}] = struct{}{}
			}
		}
	}
}

func (vs *VoxelStore) Len() int {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	return len(vs.solid)
}

// StairStore is an unbounded analytic staircase rising along +Z. Columns with z < 0 form a
// floor whose top face is y = 0; every Depth blocks of z the floor rises by Rise blocks,
// up to Count steps.
type StairStore struct {
	Depth int
	Rise  int
	Count int
}

func (s StairStore) IsSolid(x, y, z int) bool {
	return y < s.columnTop(z)
}

func (s StairStore) columnTop(z int) int {
	if z < 0 || s.Depth <= 0 {
		return 0
	}
	step := z/s.Depth + 1
	if s.Count > 0 && step > s.Count {
		step = s.Count
	}
	return step * s.Rise
}

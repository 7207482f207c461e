package physics

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Heightfield is a regular grid of heights over the XZ plane, interpolated bilinearly.
// Rays outside the grid's footprint see no surface.
type Heightfield struct {
	MinX, MinZ float64
	CellSize   float64
	Cols, Rows int
	Heights    []float64 // row-major, len = Cols*Rows
	Layer      Layer
}

func NewHeightfield(minX, minZ, cellSize float64, cols, rows int, heights []float64) (*Heightfield, error) {
	if cellSize <= 0 {
		return nil, fmt.Errorf("heightfield cell size must be positive, got %v", cellSize)
	}
	if cols < 2 || rows < 2 {
		return nil, fmt.Errorf("heightfield needs at least 2x2 samples, got %dx%d", cols, rows)
	}
	if len(heights) != cols*rows {
		return nil, fmt.Errorf("heightfield expects %d samples, got %d", cols*rows, len(heights))
	}
	return &Heightfield{
		MinX:     minX,
		MinZ:     minZ,
		CellSize: cellSize,
		Cols:     cols,
		Rows:     rows,
		Heights:  heights,
		Layer:    LayerTerrain,
	}, nil
}

// SampleHeightfield evaluates fn at every grid vertex.
func SampleHeightfield(minX, minZ, cellSize float64, cols, rows int, fn func(x, z float64) float64) (*Heightfield, error) {
	if fn == nil {
		return nil, fmt.Errorf("heightfield sample func is nil")
	}
	if cols < 2 || rows < 2 {
		return nil, fmt.Errorf("heightfield needs at least 2x2 samples, got %dx%d", cols, rows)
	}
	heights := make([]float64, cols*rows)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			heights[r*cols+c] = fn(minX+float64(c)*cellSize, minZ+float64(r)*cellSize)
		}
	}
	return NewHeightfield(minX, minZ, cellSize, cols, rows, heights)
}

func (h *Heightfield) MaxX() float64 { return h.MinX + float64(h.Cols-1)*h.CellSize }
func (h *Heightfield) MaxZ() float64 { return h.MinZ + float64(h.Rows-1)*h.CellSize }

func (h *Heightfield) contains(x, z float64) bool {
	return x >= h.MinX && x <= h.MaxX() && z >= h.MinZ && z <= h.MaxZ()
}

func (h *Heightfield) at(c, r int) float64 {
	if c < 0 {
		c = 0
	}
	if r < 0 {
		r = 0
	}
	if c >= h.Cols {
		c = h.Cols - 1
	}
	if r >= h.Rows {
		r = h.Rows - 1
	}
	return h.Heights[r*h.Cols+c]
}

// HeightAt returns the interpolated height and whether (x, z) lies on the grid.
func (h *Heightfield) HeightAt(x, z float64) (float64, bool) {
	if h == nil || !h.contains(x, z) {
		return 0, false
	}
	fx := (x - h.MinX) / h.CellSize
	fz := (z - h.MinZ) / h.CellSize
	c := int(math.Floor(fx))
	r := int(math.Floor(fz))
	tx := fx - float64(c)
	tz := fz - float64(r)

	h00 := h.at(c, r)
	h10 := h.at(c+1, r)
	h01 := h.at(c, r+1)
	h11 := h.at(c+1, r+1)
	top := h00 + (h10-h00)*tx
	bottom := h01 + (h11-h01)*tx
	return top + (bottom-top)*tz, true
}

// NormalAt uses central differences over half a cell.
func (h *Heightfield) NormalAt(x, z float64) mgl64.Vec3 {
	e := h.CellSize * 0.5
	hl, okL := h.HeightAt(x-e, z)
	hr, okR := h.HeightAt(x+e, z)
	hd, okD := h.HeightAt(x, z-e)
	hu, okU := h.HeightAt(x, z+e)
	center, _ := h.HeightAt(x, z)
	if !okL {
		hl = center
	}
	if !okR {
		hr = center
	}
	if !okD {
		hd = center
	}
	if !okU {
		hu = center
	}
	n := mgl64.Vec3{hl - hr, 2 * e, hd - hu}
	return SafeNormalize(n, WorldUp)
}

func (h *Heightfield) layer() Layer {
	if h.Layer == 0 {
		return LayerDefault
	}
	return h.Layer
}

// above reports whether p is above the surface; ok is false outside the grid.
func (h *Heightfield) above(p mgl64.Vec3) (above bool, ok bool) {
	height, ok := h.HeightAt(p[0], p[2])
	if !ok {
		return false, false
	}
	return p[1] > height, true
}

func (h *Heightfield) Raycast(origin, dir mgl64.Vec3, maxDist float64, mask LayerMask) (Hit, bool) {
	if h == nil || !mask.Has(h.layer()) || maxDist <= 0 {
		return Hit{}, false
	}
	step := h.CellSize * HeightfieldMarchFraction
	prevT := 0.0
	prevAbove, prevOK := h.above(origin)

	for t := step; ; t += step {
		if t > maxDist {
			t = maxDist
		}
		p := origin.Add(dir.Mul(t))
		curAbove, curOK := h.above(p)
		if prevOK && curOK && prevAbove && !curAbove {
			lo, hi := prevT, t
			for i := 0; i < HeightfieldBisectionSteps; i++ {
				mid := (lo + hi) * 0.5
				if a, _ := h.above(origin.Add(dir.Mul(mid))); a {
					lo = mid
				} else {
					hi = mid
				}
			}
			point := origin.Add(dir.Mul(hi))
			height, _ := h.HeightAt(point[0], point[2])
			point[1] = height
			return Hit{
				Point:    point,
				Normal:   h.NormalAt(point[0], point[2]),
				Distance: hi,
				Layer:    h.layer(),
			}, true
		}
		prevT, prevAbove, prevOK = t, curAbove, curOK
		if t >= maxDist {
			break
		}
	}
	return Hit{}, false
}

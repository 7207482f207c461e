package world

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Versifine/strider/internal/physics"
)

const (
	TerrainFlat   = "flat"
	TerrainHills  = "hills"
	TerrainRamp   = "ramp"
	TerrainStairs = "stairs"
)

// Box is an inclusive block-space box placed on the props layer.
type Box struct {
	Min [3]int `yaml:"min" json:"min"`
	Max [3]int `yaml:"max" json:"max"`
}

type TerrainConfig struct {
	Kind       string  `yaml:"kind" json:"kind"`
	Extent     float64 `yaml:"extent" json:"extent"`
	CellSize   float64 `yaml:"cell_size" json:"cell_size"`
	Amplitude  float64 `yaml:"amplitude" json:"amplitude"`
	Wavelength float64 `yaml:"wavelength" json:"wavelength"`
	Slope      float64 `yaml:"slope" json:"slope"` // degrees, ramp rises toward +Z
	BlockSize  float64 `yaml:"block_size" json:"block_size"`
	StairDepth int     `yaml:"stair_depth" json:"stair_depth"`
	StairRise  int     `yaml:"stair_rise" json:"stair_rise"`
	StairCount int     `yaml:"stair_count" json:"stair_count"`
	Obstacles  []Box   `yaml:"obstacles" json:"obstacles"`
}

func DefaultTerrain() TerrainConfig {
	return TerrainConfig{
		Kind:       TerrainFlat,
		Extent:     20,
		CellSize:   0.25,
		Amplitude:  0.3,
		Wavelength: 4,
		Slope:      15,
		BlockSize:  0.1,
		StairDepth: 4,
		StairRise:  1,
		StairCount: 8,
	}
}

func (c TerrainConfig) Validate() error {
	var errs []error
	switch c.Kind {
	case TerrainFlat, TerrainRamp:
	case TerrainHills:
		if c.Extent <= 0 {
			errs = append(errs, fmt.Errorf("terrain.extent must be positive, got %v", c.Extent))
		}
		if c.CellSize <= 0 {
			errs = append(errs, fmt.Errorf("terrain.cell_size must be positive, got %v", c.CellSize))
		}
		if c.Wavelength <= 0 {
			errs = append(errs, fmt.Errorf("terrain.wavelength must be positive, got %v", c.Wavelength))
		}
	case TerrainStairs:
		if c.StairDepth <= 0 || c.StairRise <= 0 {
			errs = append(errs, fmt.Errorf("terrain stairs need positive depth and rise, got %d/%d", c.StairDepth, c.StairRise))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown terrain kind %q", c.Kind))
	}
	if c.Kind == TerrainRamp && (c.Slope <= -90 || c.Slope >= 90) {
		errs = append(errs, fmt.Errorf("terrain.slope must be within (-90, 90), got %v", c.Slope))
	}
	if (c.Kind == TerrainStairs || len(c.Obstacles) > 0) && c.BlockSize <= 0 {
		errs = append(errs, fmt.Errorf("terrain.block_size must be positive, got %v", c.BlockSize))
	}
	return errors.Join(errs...)
}

// Build turns the terrain description into a queryable surface. Obstacles are grouped on
// top of the base terrain on the props layer.
func Build(cfg TerrainConfig) (physics.Surface, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var base physics.Surface
	switch cfg.Kind {
	case TerrainFlat:
		base = physics.NewPlane(mgl64.Vec3{}, physics.WorldUp)
	case TerrainRamp:
		rad := mgl64.DegToRad(cfg.Slope)
		base = physics.NewPlane(mgl64.Vec3{}, mgl64.Vec3{0, math.Cos(rad), -math.Sin(rad)})
	case TerrainHills:
		n := int(math.Ceil(2*cfg.Extent/cfg.CellSize)) + 1
		amp, k := cfg.Amplitude, 2*math.Pi/cfg.Wavelength
		hf, err := physics.SampleHeightfield(-cfg.Extent, -cfg.Extent, cfg.CellSize, n, n, func(x, z float64) float64 {
			return amp * math.Sin(x*k) * math.Cos(z*k)
		})
		if err != nil {
			return nil, fmt.Errorf("build hills: %w", err)
		}
		base = hf
	case TerrainStairs:
		base = &physics.VoxelSurface{
			Blocks:    StairStore{Depth: cfg.StairDepth, Rise: cfg.StairRise, Count: cfg.StairCount},
			BlockSize: cfg.BlockSize,
			Layer:     physics.LayerTerrain,
		}
	}

	if len(cfg.Obstacles) == 0 {
		return base, nil
	}
	store := NewVoxelStore()
	for _, box := range cfg.Obstacles {
		store.Fill(
			BlockPos{X: box.Min[0], Y: box.Min[1], Z: box.Min[2]},
			BlockPos{X: box.Max[0], Y: box.Max[1], Z: box.Max[2]},
		)
	}
	props := &physics.VoxelSurface{Blocks: store, BlockSize: cfg.BlockSize, Layer: physics.LayerProps}
	return physics.Group{base, props}, nil
}

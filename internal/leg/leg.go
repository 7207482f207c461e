package leg

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Versifine/strider/internal/physics"
)

type Config struct {
	StepDistance float64 `yaml:"step_distance" json:"step_distance"`
	MinMotion    float64 `yaml:"min_motion" json:"min_motion"`
	StepLength   float64 `yaml:"step_length" json:"step_length"`
	StepHeight   float64 `yaml:"step_height" json:"step_height"`
	SwingSpeed   float64 `yaml:"swing_speed" json:"swing_speed"`
	RayLift      float64 `yaml:"ray_lift" json:"ray_lift"`
	RayDistance  float64 `yaml:"ray_distance" json:"ray_distance"`
	HintOffset   float64 `yaml:"hint_offset" json:"hint_offset"`
}

func DefaultConfig() Config {
	return Config{
		StepDistance: 0.4,
		MinMotion:    0.01,
		StepLength:   0.25,
		StepHeight:   0.1,
		SwingSpeed:   5,
		RayLift:      1.5,
		RayDistance:  2,
		HintOffset:   0.1,
	}
}

func (c Config) Validate() error {
	var errs []error
	positive := []struct {
		name  string
		value float64
	}{
		{"legs.step_distance", c.StepDistance},
		{"legs.min_motion", c.MinMotion},
		{"legs.step_length", c.StepLength},
		{"legs.step_height", c.StepHeight},
		{"legs.swing_speed", c.SwingSpeed},
		{"legs.ray_lift", c.RayLift},
		{"legs.ray_distance", c.RayDistance},
	}
	for _, p := range positive {
		if !(p.value > 0) {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", p.name, p.value))
		}
	}
	if c.HintOffset < 0 || math.IsNaN(c.HintOffset) {
		errs = append(errs, fmt.Errorf("legs.hint_offset must not be negative, got %v", c.HintOffset))
	}
	return errors.Join(errs...)
}

// Foothold is a foot position with the surface normal under it.
type Foothold struct {
	Position mgl64.Vec3
	Normal   mgl64.Vec3
}

// Leg places one foot. The committed target only changes when a swing starts; Position
// follows it through the swing arc.
type Leg struct {
	cfg        Config
	attachment mgl64.Vec3
	mask       physics.LayerMask

	prev     Foothold
	target   Foothold
	current  Foothold
	liftAxis mgl64.Vec3
	progress float64
}

func New(cfg Config, attachment mgl64.Vec3, mask physics.LayerMask) *Leg {
	return &Leg{
		cfg:        cfg,
		attachment: attachment,
		mask:       mask,
		liftAxis:   physics.WorldUp,
		progress:   1,
	}
}

// Spawn plants the foot under its attachment, or at the attachment itself when nothing is below.
func (l *Leg) Spawn(body physics.Frame, surface physics.Surface) {
	if l == nil {
		return
	}
	hold := Foothold{Position: body.TransformPoint(l.attachment), Normal: body.Up()}
	if hit, ok := l.Sample(body, surface); ok {
		hold = Foothold{Position: hit.Point, Normal: hit.Normal}
	}
	l.prev, l.target, l.current = hold, hold, hold
	l.progress = 1
}

// Sample casts the downward ray from above the attachment point.
func (l *Leg) Sample(body physics.Frame, surface physics.Surface) (physics.Hit, bool) {
	if l == nil || surface == nil {
		return physics.Hit{}, false
	}
	up := body.Up()
	origin := body.TransformPoint(l.attachment).Add(up.Mul(l.cfg.RayLift))
	return surface.Raycast(origin, up.Mul(-1), l.cfg.RayDistance, l.mask)
}

// Evaluate starts a swing toward the sample if the foothold is stale. partnerSwinging is the
// partner's state as of the start of the tick, false when the leg has no partner.
func (l *Leg) Evaluate(body physics.Frame, hit physics.Hit, ok bool, partnerSwinging bool) bool {
	if l == nil || !ok || l.IsSwinging() || partnerSwinging {
		return false
	}
	dist := l.target.Position.Sub(hit.Point).Len()
	if dist <= l.cfg.StepDistance || dist <= l.cfg.MinMotion {
		return false
	}

	sign := -1.0
	if body.InverseTransformPoint(hit.Point).Z() > body.InverseTransformPoint(l.target.Position).Z() {
		sign = 1
	}
	l.prev = l.target
	l.target = Foothold{
		Position: hit.Point.Add(body.Forward().Mul(l.cfg.StepLength * sign)),
		Normal:   physics.SafeNormalize(hit.Normal, body.Up()),
	}
	l.liftAxis = physics.SafeNormalize(body.Up(), physics.WorldUp)
	l.progress = 0
	return true
}

// Advance moves an in-flight swing forward and reports whether the foot landed this call.
func (l *Leg) Advance(dt float64) bool {
	if l == nil || !l.IsSwinging() || dt <= 0 {
		return false
	}
	l.progress += dt * l.cfg.SwingSpeed
	l.current = l.pose(math.Min(l.progress, 1))
	if l.progress >= 1 {
		l.current = l.target
		l.prev = l.target
		return true
	}
	return false
}

// Settle finishes an in-flight swing immediately.
func (l *Leg) Settle() bool {
	if l == nil || !l.IsSwinging() {
		return false
	}
	l.progress = 1
	l.current = l.target
	l.prev = l.target
	return true
}

func (l *Leg) pose(t float64) Foothold {
	pos := physics.Lerp(l.prev.Position, l.target.Position, t)
	pos = pos.Add(l.liftAxis.Mul(math.Sin(t*math.Pi) * l.cfg.StepHeight))
	normal := physics.SafeNormalize(physics.Lerp(l.prev.Normal, l.target.Normal, t), l.target.Normal)
	return Foothold{Position: pos, Normal: normal}
}

func (l *Leg) IsSwinging() bool {
	return l != nil && l.progress < 1
}

func (l *Leg) Progress() float64 {
	if l == nil {
		return 1
	}
	return l.progress
}

func (l *Leg) Target() Foothold {
	if l == nil {
		return Foothold{}
	}
	return l.target
}

// Current is the interpolated foot the skeletal solver should reach for.
func (l *Leg) Current() Foothold {
	if l == nil {
		return Foothold{}
	}
	return l.current
}

func (l *Leg) Attachment() mgl64.Vec3 {
	if l == nil {
		return mgl64.Vec3{}
	}
	return l.attachment
}

// Hint is the knee hint: the body-to-foot midpoint pushed out to the leg's side.
func (l *Leg) Hint(body physics.Frame) mgl64.Vec3 {
	if l == nil {
		return mgl64.Vec3{}
	}
	side := 1.0
	if l.attachment.X() < 0 {
		side = -1
	}
	mid := physics.Lerp(body.Position, l.current.Position, 0.5)
	return mid.Add(body.Right().Mul(side * l.cfg.HintOffset))
}

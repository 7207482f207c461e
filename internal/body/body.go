package body

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Versifine/strider/internal/input"
	"github.com/Versifine/strider/internal/physics"
)

type Config struct {
	MoveSpeed          float64 `yaml:"move_speed" json:"move_speed"`
	RotationSpeed      float64 `yaml:"rotation_speed" json:"rotation_speed"` // degrees per second
	AlignSpeed         float64 `yaml:"align_speed" json:"align_speed"`
	AirborneAlignSpeed float64 `yaml:"airborne_align_speed" json:"airborne_align_speed"`
	CastLift           float64 `yaml:"cast_lift" json:"cast_lift"`
	CastDistance       float64 `yaml:"cast_distance" json:"cast_distance"`
	CastRadius         float64 `yaml:"cast_radius" json:"cast_radius"`
	StickToSurface     float64 `yaml:"stick_to_surface" json:"stick_to_surface"`
	HoverHeight        float64 `yaml:"hover_height" json:"hover_height"`
	SurfaceDeadband    float64 `yaml:"surface_deadband" json:"surface_deadband"`
	Gravity            float64 `yaml:"gravity" json:"gravity"`
	JumpForce          float64 `yaml:"jump_force" json:"jump_force"`
	JumpUpwardBias     float64 `yaml:"jump_upward_bias" json:"jump_upward_bias"`
	JumpCooldown       float64 `yaml:"jump_cooldown" json:"jump_cooldown"`
	JumpDuration       float64 `yaml:"jump_duration" json:"jump_duration"`
	MinJumpFraction    float64 `yaml:"min_jump_fraction" json:"min_jump_fraction"`
	MaxChargeDuration  float64 `yaml:"max_charge_duration" json:"max_charge_duration"`
}

func DefaultConfig() Config {
	return Config{
		MoveSpeed:          5,
		RotationSpeed:      60,
		AlignSpeed:         10,
		AirborneAlignSpeed: 4,
		CastLift:           0.2,
		CastDistance:       2,
		CastRadius:         0.1,
		StickToSurface:     1,
		HoverHeight:        0.2,
		SurfaceDeadband:    0.01,
		Gravity:            physics.DefaultGravity,
		JumpForce:          8,
		JumpUpwardBias:     0.8,
		JumpCooldown:       0.5,
		JumpDuration:       0.6,
		MinJumpFraction:    0.1,
		MaxChargeDuration:  2,
	}
}

func (c Config) Validate() error {
	var errs []error
	positive := []struct {
		name  string
		value float64
	}{
		{"body.move_speed", c.MoveSpeed},
		{"body.rotation_speed", c.RotationSpeed},
		{"body.align_speed", c.AlignSpeed},
		{"body.airborne_align_speed", c.AirborneAlignSpeed},
		{"body.cast_lift", c.CastLift},
		{"body.cast_distance", c.CastDistance},
		{"body.cast_radius", c.CastRadius},
		{"body.stick_to_surface", c.StickToSurface},
		{"body.gravity", c.Gravity},
		{"body.jump_force", c.JumpForce},
		{"body.jump_duration", c.JumpDuration},
		{"body.max_charge_duration", c.MaxChargeDuration},
	}
	for _, p := range positive {
		if !(p.value > 0) {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", p.name, p.value))
		}
	}
	nonNegative := []struct {
		name  string
		value float64
	}{
		{"body.hover_height", c.HoverHeight},
		{"body.surface_deadband", c.SurfaceDeadband},
		{"body.jump_upward_bias", c.JumpUpwardBias},
		{"body.jump_cooldown", c.JumpCooldown},
	}
	for _, p := range nonNegative {
		if !(p.value >= 0) {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %v", p.name, p.value))
		}
	}
	if !(c.MinJumpFraction > 0 && c.MinJumpFraction <= 1) {
		errs = append(errs, fmt.Errorf("body.min_jump_fraction must be in (0, 1], got %v", c.MinJumpFraction))
	}
	return errors.Join(errs...)
}

// ChargeFraction maps a held duration to the jump charge in [MinJumpFraction, 1].
func (c Config) ChargeFraction(held float64) float64 {
	f := physics.Clamp01(held / c.MaxChargeDuration)
	return math.Max(f, c.MinJumpFraction)
}

type JumpState int

const (
	Grounded JumpState = iota
	ChargingJump
	Airborne
)

func (s JumpState) String() string {
	switch s {
	case Grounded:
		return "grounded"
	case ChargingJump:
		return "charging"
	case Airborne:
		return "airborne"
	default:
		return "unknown"
	}
}

// Events reports what happened during one physics tick.
type Events struct {
	JumpStarted  bool
	JumpRejected bool
	Charge       float64
	Impulse      mgl64.Vec3
	Landed       bool
}

type Snapshot struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
	Velocity mgl64.Vec3
	Normal   mgl64.Vec3
	Grounded bool
	Jump     JumpState
}

// Controller keeps the body hovering on and aligned to the surface below it. It is driven by
// a single caller and holds no lock.
type Controller struct {
	cfg  Config
	mask physics.LayerMask

	state    physics.State
	normal   mgl64.Vec3
	grounded bool

	jump        JumpState
	chargeStart float64
	jumpEnds    float64
	lastJump    float64
	hasJumped   bool
}

func New(cfg Config, mask physics.LayerMask, spawn physics.Frame) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rot := spawn.Rotation
	if rot.Len() == 0 {
		rot = mgl64.QuatIdent()
	}
	return &Controller{
		cfg:  cfg,
		mask: mask,
		state: physics.State{
			Position: spawn.Position,
			Rotation: rot.Normalize(),
		},
		normal: physics.WorldUp,
		jump:   Grounded,
	}, nil
}

// Tick runs one physics step at simulation time now.
func (c *Controller) Tick(now, dt float64, intent input.Intent, surface physics.Surface) Events {
	var ev Events
	if c == nil || dt <= 0 {
		return ev
	}

	c.handleJump(now, intent, &ev)
	c.applyLocomotion(dt, intent)

	if c.jump == Airborne && now < c.jumpEnds {
		c.alignAirborne(dt)
	} else {
		hit, ok := c.castGround(surface)
		if ok {
			if c.jump == Airborne {
				c.jump = Grounded
				ev.Landed = true
			}
			c.alignGrounded(dt, hit)
		} else {
			if c.jump == ChargingJump {
				// Losing the ground cancels the charge; the release has nothing to launch from.
				ev.JumpRejected = true
			}
			c.jump = Airborne
			c.alignAirborne(dt)
		}
	}

	physics.IntegrateSwept(&c.state, c.cfg.Gravity, dt, surface, c.cfg.CastRadius, c.mask)
	return ev
}

func (c *Controller) castGround(surface physics.Surface) (physics.Hit, bool) {
	up := c.Frame().Up()
	origin := c.state.Position.Add(up.Mul(c.cfg.CastLift))
	return physics.SphereCast(surface, origin, c.cfg.CastRadius, up.Mul(-1), c.cfg.CastDistance, c.mask)
}

// alignGrounded rotates toward the hit normal, then moves along it toward the hover point.
func (c *Controller) alignGrounded(dt float64, hit physics.Hit) {
	c.grounded = true
	c.state.UseGravity = false
	c.state.Velocity = mgl64.Vec3{}
	c.normal = physics.SafeNormalize(hit.Normal, physics.WorldUp)

	c.rotateToward(c.normal, c.cfg.AlignSpeed*dt)

	hover := hit.Point.Add(c.normal.Mul(c.cfg.HoverHeight))
	correction := physics.Project(hover.Sub(c.state.Position), c.normal)
	if correction.Len() > c.cfg.SurfaceDeadband {
		k := math.Min(c.cfg.StickToSurface*dt, 1)
		c.state.Position = c.state.Position.Add(correction.Mul(k))
	}
}

// alignAirborne blends the normal toward the velocity direction: along it while rising,
// against it while falling, and toward world up when at rest.
func (c *Controller) alignAirborne(dt float64) {
	c.grounded = false
	c.state.UseGravity = true

	target := physics.WorldUp
	if v := c.state.Velocity; v.Len() > physics.MinimumResidualSpeed {
		target = v.Normalize()
		if v.Y() < 0 {
			target = target.Mul(-1)
		}
	}
	t := physics.Clamp01(c.cfg.AirborneAlignSpeed * dt)
	c.normal = physics.SafeNormalize(physics.Lerp(c.normal, target, t), physics.WorldUp)
	c.rotateToward(c.normal, c.cfg.AirborneAlignSpeed*dt)
}

func (c *Controller) rotateToward(normal mgl64.Vec3, t float64) {
	rot := c.state.Rotation
	target := physics.FromToRotation(rot.Rotate(physics.WorldUp), normal).Mul(rot)
	c.state.Rotation = physics.Slerp(rot, target, t)
}

func (c *Controller) Frame() physics.Frame {
	if c == nil {
		return physics.IdentityFrame(mgl64.Vec3{})
	}
	return physics.Frame{Position: c.state.Position, Rotation: c.state.Rotation}
}

func (c *Controller) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{Rotation: mgl64.QuatIdent(), Normal: physics.WorldUp}
	}
	return Snapshot{
		Position: c.state.Position,
		Rotation: c.state.Rotation,
		Velocity: c.state.Velocity,
		Normal:   c.normal,
		Grounded: c.grounded,
		Jump:     c.jump,
	}
}

func (c *Controller) Normal() mgl64.Vec3 {
	if c == nil {
		return physics.WorldUp
	}
	return c.normal
}

func (c *Controller) Grounded() bool {
	return c != nil && c.grounded
}

func (c *Controller) JumpState() JumpState {
	if c == nil {
		return Grounded
	}
	return c.jump
}

func (c *Controller) Config() Config {
	if c == nil {
		return Config{}
	}
	return c.cfg
}

// Teleport moves the body without touching its jump state.
func (c *Controller) Teleport(pos mgl64.Vec3) {
	if c == nil {
		return
	}
	c.state.Position = pos
	c.state.Velocity = mgl64.Vec3{}
}

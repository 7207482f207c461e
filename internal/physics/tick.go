package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// State is the rigid body the body controller drives: kinematic moves plus optional gravity.
type State struct {
	Position   mgl64.Vec3
	Velocity   mgl64.Vec3
	Rotation   mgl64.Quat
	UseGravity bool
}

// Integrate advances velocity by gravity (when enabled) and position by velocity.
func Integrate(state *State, gravity float64, dt float64) {
	if state == nil || dt <= 0 {
		return
	}
	if state.UseGravity {
		state.Velocity = state.Velocity.Sub(WorldUp.Mul(gravity * dt))
	}
	state.Position = state.Position.Add(state.Velocity.Mul(dt))
	zeroResidualVelocity(&state.Velocity)
}

func zeroResidualVelocity(v *mgl64.Vec3) {
	if v == nil {
		return
	}
	for i := range v {
		if math.Abs(v[i]) < MinimumResidualSpeed {
			v[i] = 0
		}
	}
}

// IntegrateSwept is Integrate with the displacement swept as a sphere against the surface.
// On contact the body stops at the contact and loses the velocity component into the surface.
func IntegrateSwept(state *State, gravity float64, dt float64, surface Surface, radius float64, mask LayerMask) (Hit, bool) {
	if state == nil || dt <= 0 {
		return Hit{}, false
	}
	if state.UseGravity {
		state.Velocity = state.Velocity.Sub(WorldUp.Mul(gravity * dt))
	}
	disp := state.Velocity.Mul(dt)
	dist := disp.Len()
	if dist < CollisionAxisTolerance || surface == nil {
		state.Position = state.Position.Add(disp)
		zeroResidualVelocity(&state.Velocity)
		return Hit{}, false
	}

	dir := disp.Mul(1 / dist)
	hit, ok := SphereCast(surface, state.Position, radius, dir, dist, mask)
	if ok && hit.Normal.Dot(dir) >= 0 {
		// A contact facing along the motion is one the body is already leaving.
		ok = false
	}
	if !ok {
		state.Position = state.Position.Add(disp)
		zeroResidualVelocity(&state.Velocity)
		return Hit{}, false
	}
	state.Position = state.Position.Add(dir.Mul(hit.Distance))
	if into := state.Velocity.Dot(hit.Normal); into < 0 {
		state.Velocity = state.Velocity.Sub(hit.Normal.Mul(into))
	}
	zeroResidualVelocity(&state.Velocity)
	return hit, true
}

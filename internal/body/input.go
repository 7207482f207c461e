package body

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Versifine/strider/internal/input"
	"github.com/Versifine/strider/internal/physics"
)

const (
	minCameraProjection = 0.001
	minJumpDirection    = 0.01
)

func (c *Controller) applyLocomotion(dt float64, intent input.Intent) {
	if intent.Turn != 0 {
		angle := mgl64.DegToRad(intent.Turn * c.cfg.RotationSpeed * dt)
		c.state.Rotation = mgl64.QuatRotate(angle, c.normal).Mul(c.state.Rotation).Normalize()
	}

	if intent.FaceCamera {
		cam := physics.ProjectOnPlane(intent.CameraForward, c.normal)
		if cam.LenSqr() >= minCameraProjection {
			target := physics.LookRotation(cam, c.normal)
			c.state.Rotation = physics.RotateTowards(c.state.Rotation, target, c.cfg.RotationSpeed*dt)
		}
	}

	if intent.HasMove() {
		f := c.Frame()
		wish := f.Right().Mul(intent.Strafe).Add(f.Forward().Mul(intent.Forward))
		dir := physics.SafeNormalize(physics.ProjectOnPlane(wish, c.normal), mgl64.Vec3{})
		speed := c.cfg.MoveSpeed * math.Min(math.Hypot(intent.Forward, intent.Strafe), 1)
		c.state.Position = c.state.Position.Add(dir.Mul(speed * dt))
	}
}

func (c *Controller) handleJump(now float64, intent input.Intent, ev *Events) {
	if intent.JumpPressed && c.jump == Grounded {
		c.jump = ChargingJump
		c.chargeStart = now
	}
	if !intent.JumpReleased || c.jump != ChargingJump {
		return
	}

	c.jump = Grounded
	if c.hasJumped && now-c.lastJump < c.cfg.JumpCooldown {
		ev.JumpRejected = true
		return
	}
	charge := c.cfg.ChargeFraction(now - c.chargeStart)
	impulse := c.jumpDirection(intent.CameraForward).Mul(c.cfg.JumpForce * charge)

	c.lastJump = now
	c.hasJumped = true
	c.jump = Airborne
	c.jumpEnds = now + c.cfg.JumpDuration
	c.grounded = false
	c.state.UseGravity = true
	c.state.Velocity = impulse

	ev.JumpStarted = true
	ev.Charge = charge
	ev.Impulse = impulse
}

// jumpDirection aims along the camera projected onto the surface, falling back to body forward.
func (c *Controller) jumpDirection(camera mgl64.Vec3) mgl64.Vec3 {
	dir := physics.SafeNormalize(physics.ProjectOnPlane(camera, c.normal), mgl64.Vec3{})
	if dir.LenSqr() < minJumpDirection {
		dir = c.Frame().Forward()
	}
	return physics.SafeNormalize(dir.Add(c.normal.Mul(c.cfg.JumpUpwardBias)), c.normal)
}

package event

import "github.com/go-gl/mathgl/mgl64"

const (
	EventStepStart    = "step.start"
	EventStepLand     = "step.land"
	EventJumpStart    = "jump.start"
	EventJumpLand     = "jump.land"
	EventJumpRejected = "jump.rejected"
	EventRigDisabled  = "rig.disabled"
	EventRigEnabled   = "rig.enabled"
)

type StepEvent struct {
	Time  float64
	Leg   int
	Name  string
	Group int
	From  mgl64.Vec3
	To    mgl64.Vec3
}

type JumpEvent struct {
	Time     float64
	Charge   float64
	Impulse  mgl64.Vec3
	Position mgl64.Vec3
}

type RigEvent struct {
	Time    float64
	Snapped []int
}

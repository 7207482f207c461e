package rig

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Versifine/strider/internal/body"
	"github.com/Versifine/strider/internal/event"
	"github.com/Versifine/strider/internal/gait"
	"github.com/Versifine/strider/internal/input"
	"github.com/Versifine/strider/internal/leg"
	"github.com/Versifine/strider/internal/physics"
)

type Config struct {
	Spawn  [3]float64 `yaml:"spawn" json:"spawn"`
	Layers []string   `yaml:"layers" json:"layers"`
	Legs   []LegSpec  `yaml:"legs" json:"legs"`
}

func DefaultConfig() Config {
	return Config{
		Spawn:  [3]float64{0, 0.2, 0},
		Layers: []string{"terrain", "props"},
		Legs:   DefaultLegs(),
	}
}

type Options struct {
	Rig  Config
	Body body.Config
	Leg  leg.Config
	Gait gait.Config
}

type LegPose struct {
	Name     string
	Group    int
	Foot     mgl64.Vec3
	Normal   mgl64.Vec3
	Target   mgl64.Vec3
	Hint     mgl64.Vec3
	Progress float64
	Swinging bool
}

// Pose is a consistent copy of the whole rig, safe to hand to other goroutines.
type Pose struct {
	Time     float64
	Body     body.Snapshot
	Legs     []LegPose
	Flags    []bool
	Phase    string
	Active   int
	Jumps    int
	Disabled bool
}

// IKTarget is what a skeletal solver needs to place one leg.
type IKTarget struct {
	Name     string
	Position mgl64.Vec3
	Normal   mgl64.Vec3
	Hint     mgl64.Vec3
	HasHint  bool
}

// Rig owns one body, its legs and their coordinator. Ticks and snapshots may come from
// different goroutines; events are published after the lock is released.
type Rig struct {
	mu sync.Mutex

	body    *body.Controller
	legs    []*leg.Leg
	specs   []LegSpec
	coord   *gait.Coordinator
	surface physics.Surface
	bus     *event.Bus

	now      float64
	jumps    int
	disabled bool
}

func New(opts Options, surface physics.Surface, bus *event.Bus) (*Rig, error) {
	if surface == nil {
		surface = physics.Empty{}
	}
	if err := opts.Leg.Validate(); err != nil {
		return nil, err
	}
	mask, err := physics.ParseLayerMask(opts.Rig.Layers)
	if err != nil {
		return nil, fmt.Errorf("rig layers: %w", err)
	}
	specs := opts.Rig.Legs
	if len(specs) == 0 {
		specs = DefaultLegs()
	}
	layout, err := BuildLayout(specs)
	if err != nil {
		return nil, err
	}

	spawn := physics.IdentityFrame(mgl64.Vec3{opts.Rig.Spawn[0], opts.Rig.Spawn[1], opts.Rig.Spawn[2]})
	ctrl, err := body.New(opts.Body, mask, spawn)
	if err != nil {
		return nil, err
	}

	legs := make([]*leg.Leg, len(specs))
	for i, s := range specs {
		legs[i] = leg.New(opts.Leg, s.Offset(), mask)
		legs[i].Spawn(spawn, surface)
	}
	coord, err := gait.NewCoordinator(opts.Gait, layout, legs)
	if err != nil {
		return nil, err
	}

	return &Rig{
		body:    ctrl,
		legs:    legs,
		specs:   append([]LegSpec(nil), specs...),
		coord:   coord,
		surface: surface,
		bus:     bus,
	}, nil
}

// PhysicsTick advances the body controller.
func (r *Rig) PhysicsTick(now, dt float64, intent input.Intent) body.Events {
	if r == nil {
		return body.Events{}
	}
	r.mu.Lock()
	if r.disabled {
		r.mu.Unlock()
		return body.Events{}
	}
	ev := r.body.Tick(now, dt, intent, r.surface)
	r.now = now
	if ev.JumpStarted {
		r.jumps++
	}
	pos := r.body.Snapshot().Position
	r.mu.Unlock()

	switch {
	case ev.JumpStarted:
		slog.Debug("jump", "time", now, "charge", ev.Charge)
		r.bus.Publish(event.EventJumpStart, event.JumpEvent{Time: now, Charge: ev.Charge, Impulse: ev.Impulse, Position: pos})
	case ev.JumpRejected:
		r.bus.Publish(event.EventJumpRejected, event.JumpEvent{Time: now, Position: pos})
	}
	if ev.Landed {
		r.bus.Publish(event.EventJumpLand, event.JumpEvent{Time: now, Position: pos})
	}
	return ev
}

// FrameTick advances leg swings and lets the gait choose new steps.
func (r *Rig) FrameTick(now, dt float64) gait.Report {
	if r == nil {
		return gait.Report{}
	}
	r.mu.Lock()
	if r.disabled {
		r.mu.Unlock()
		return gait.Report{}
	}
	from := make([]mgl64.Vec3, len(r.legs))
	for i, l := range r.legs {
		from[i] = l.Target().Position
	}
	report := r.coord.Tick(dt, r.body.Frame(), r.surface)
	r.now = now

	events := make([]pending, 0, len(report.Landed)+len(report.Started))
	for _, i := range report.Landed {
		events = append(events, pending{event.EventStepLand, r.stepEvent(now, i, r.legs[i].Target().Position)})
	}
	for _, i := range report.Started {
		evt := r.stepEvent(now, i, r.legs[i].Target().Position)
		evt.From = from[i]
		events = append(events, pending{event.EventStepStart, evt})
	}
	r.mu.Unlock()

	for _, e := range events {
		r.bus.Publish(e.name, e.evt)
	}
	return report
}

type pending struct {
	name string
	evt  any
}

func (r *Rig) stepEvent(now float64, i int, to mgl64.Vec3) event.StepEvent {
	return event.StepEvent{
		Time:  now,
		Leg:   i,
		Name:  r.specs[i].Name,
		Group: r.specs[i].Group,
		To:    to,
	}
}

// Disable suspends the rig. In-flight swings keep their state.
func (r *Rig) Disable() {
	if r == nil {
		return
	}
	r.mu.Lock()
	if r.disabled {
		r.mu.Unlock()
		return
	}
	r.disabled = true
	r.coord.Suspend()
	now := r.now
	r.mu.Unlock()

	slog.Info("rig disabled", "time", now)
	r.bus.Publish(event.EventRigDisabled, event.RigEvent{Time: now})
}

// Enable resumes a disabled rig under the gait's resume policy.
func (r *Rig) Enable() {
	if r == nil {
		return
	}
	r.mu.Lock()
	if !r.disabled {
		r.mu.Unlock()
		return
	}
	r.disabled = false
	snapped := r.coord.Resume()
	now := r.now
	r.mu.Unlock()

	slog.Info("rig enabled", "time", now, "snapped", len(snapped))
	r.bus.Publish(event.EventRigEnabled, event.RigEvent{Time: now, Snapped: snapped})
}

func (r *Rig) Disabled() bool {
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disabled
}

func (r *Rig) Pose() Pose {
	if r == nil {
		return Pose{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	frame := r.body.Frame()
	pose := Pose{
		Time:     r.now,
		Body:     r.body.Snapshot(),
		Legs:     make([]LegPose, len(r.legs)),
		Flags:    r.coord.Flags(),
		Phase:    r.coord.Phase().String(),
		Active:   r.coord.Active(),
		Jumps:    r.jumps,
		Disabled: r.disabled,
	}
	for i, l := range r.legs {
		cur := l.Current()
		pose.Legs[i] = LegPose{
			Name:     r.specs[i].Name,
			Group:    r.specs[i].Group,
			Foot:     cur.Position,
			Normal:   cur.Normal,
			Target:   l.Target().Position,
			Hint:     l.Hint(frame),
			Progress: l.Progress(),
			Swinging: l.IsSwinging(),
		}
	}
	return pose
}

func (r *Rig) IKTargets() []IKTarget {
	pose := r.Pose()
	targets := make([]IKTarget, len(pose.Legs))
	for i, l := range pose.Legs {
		targets[i] = IKTarget{
			Name:     l.Name,
			Position: l.Foot,
			Normal:   l.Normal,
			Hint:     l.Hint,
			HasHint:  true,
		}
	}
	return targets
}

func (r *Rig) LegCount() int {
	if r == nil {
		return 0
	}
	return len(r.legs)
}

func (r *Rig) LegNames() []string {
	if r == nil {
		return nil
	}
	names := make([]string, len(r.specs))
	for i, s := range r.specs {
		names[i] = s.Name
	}
	return names
}

func (r *Rig) Layout() gait.Layout {
	if r == nil {
		return gait.Layout{}
	}
	return r.coord.Layout()
}

package gait

import (
	"errors"
	"fmt"

	"github.com/Versifine/strider/internal/leg"
	"github.com/Versifine/strider/internal/physics"
)

type Mode string

const (
	ModeAlternating Mode = "alternating"
	ModeFree        Mode = "free"
)

type ResumePolicy string

const (
	ResumeContinue ResumePolicy = "continue"
	ResumeSnap     ResumePolicy = "snap"
)

type Config struct {
	Mode         Mode         `yaml:"mode" json:"mode"`
	StepDelay    float64      `yaml:"step_delay" json:"step_delay"`
	ResumePolicy ResumePolicy `yaml:"resume_policy" json:"resume_policy"`
}

func DefaultConfig() Config {
	return Config{
		Mode:         ModeAlternating,
		StepDelay:    0.1,
		ResumePolicy: ResumeContinue,
	}
}

func (c Config) Validate() error {
	var errs []error
	switch c.Mode {
	case ModeAlternating, ModeFree:
	default:
		errs = append(errs, fmt.Errorf("gait.mode %q is not alternating or free", c.Mode))
	}
	if c.StepDelay < 0 {
		errs = append(errs, fmt.Errorf("gait.step_delay must not be negative, got %v", c.StepDelay))
	}
	switch c.ResumePolicy {
	case ResumeContinue, ResumeSnap:
	default:
		errs = append(errs, fmt.Errorf("gait.resume_policy %q is not continue or snap", c.ResumePolicy))
	}
	return errors.Join(errs...)
}

type Phase int

const (
	PhaseSettling Phase = iota
	PhaseSwinging
)

func (p Phase) String() string {
	switch p {
	case PhaseSettling:
		return "settling"
	case PhaseSwinging:
		return "swinging"
	default:
		return "unknown"
	}
}

// Report lists the legs whose swings started or landed during one tick.
type Report struct {
	Started []int
	Landed  []int
}

func (r Report) Empty() bool {
	return len(r.Started) == 0 && len(r.Landed) == 0
}

// Coordinator sequences leg groups. It is advanced once per frame tick and is not safe for
// concurrent use.
type Coordinator struct {
	cfg    Config
	layout Layout
	legs   []*leg.Leg

	swinging  []bool
	phase     Phase
	active    int
	next      int
	settled   float64
	suspended bool
}

func NewCoordinator(cfg Config, layout Layout, legs []*leg.Leg) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(legs) != layout.LegCount() {
		return nil, fmt.Errorf("%w: layout has %d legs, got %d", ErrInvalidLayout, layout.LegCount(), len(legs))
	}
	for i, l := range legs {
		if l == nil {
			return nil, fmt.Errorf("%w: leg %d is nil", ErrInvalidLayout, i)
		}
	}
	return &Coordinator{
		cfg:      cfg,
		layout:   layout,
		legs:     legs,
		swinging: make([]bool, len(layout.Groups)),
		phase:    PhaseSettling,
		active:   -1,
		next:     0,
		settled:  cfg.StepDelay,
	}, nil
}

// Tick advances in-flight swings, then lets the gait pick new steps from fresh surface samples.
func (c *Coordinator) Tick(dt float64, body physics.Frame, surface physics.Surface) Report {
	var report Report
	if c == nil || c.suspended {
		return report
	}

	for i, l := range c.legs {
		if l.Advance(dt) {
			report.Landed = append(report.Landed, i)
		}
	}

	if c.cfg.Mode == ModeFree {
		c.tickFree(body, surface, &report)
		return report
	}
	c.tickAlternating(dt, body, surface, &report)
	return report
}

func (c *Coordinator) tickAlternating(dt float64, body physics.Frame, surface physics.Surface, report *Report) {
	switch c.phase {
	case PhaseSwinging:
		if !c.groupPlanted(c.active) {
			return
		}
		c.swinging[c.active] = false
		c.phase = PhaseSettling
		c.next = (c.active + 1) % len(c.layout.Groups)
		c.settled = 0
	case PhaseSettling:
		c.settled += dt
	}

	if c.settled < c.cfg.StepDelay {
		return
	}
	group := c.next
	if c.swinging[group] {
		return
	}

	flags := append([]bool(nil), c.swinging...)
	c.swinging[group] = true
	c.phase = PhaseSwinging
	c.active = group
	for _, i := range c.layout.Groups[group] {
		if c.tryStep(i, body, surface, flags) {
			report.Started = append(report.Started, i)
		}
	}
}

// tickFree gates every leg on its partner alone. No group is ever entered, so the group
// flags stay clear; per-leg swing state is what callers read in this mode.
func (c *Coordinator) tickFree(body physics.Frame, surface physics.Surface, report *Report) {
	for i := range c.legs {
		if c.tryStep(i, body, surface, nil) {
			report.Started = append(report.Started, i)
		}
	}
}

// tryStep gates leg i on its partner. flags is the group flag snapshot taken before the
// group was entered; nil skips the group check.
func (c *Coordinator) tryStep(i int, body physics.Frame, surface physics.Surface, flags []bool) bool {
	l := c.legs[i]
	if l.IsSwinging() {
		return false
	}
	partnerSwinging := false
	if p := c.layout.PartnerOf(i); p >= 0 {
		partnerSwinging = c.legs[p].IsSwinging()
		if flags != nil && flags[c.layout.GroupOf(p)] {
			partnerSwinging = true
		}
	}
	hit, ok := l.Sample(body, surface)
	return l.Evaluate(body, hit, ok, partnerSwinging)
}

func (c *Coordinator) groupPlanted(group int) bool {
	if group < 0 || group >= len(c.layout.Groups) {
		return true
	}
	for _, i := range c.layout.Groups[group] {
		if c.legs[i].IsSwinging() {
			return false
		}
	}
	return true
}

// Suspend freezes the gait. Calling it again has no effect.
func (c *Coordinator) Suspend() {
	if c == nil {
		return
	}
	c.suspended = true
}

// Resume restarts a suspended gait under the configured policy and returns the legs whose
// swings were snapped to completion.
func (c *Coordinator) Resume() []int {
	if c == nil || !c.suspended {
		return nil
	}
	c.suspended = false
	if c.cfg.ResumePolicy != ResumeSnap {
		return nil
	}

	var snapped []int
	for i, l := range c.legs {
		if l.Settle() {
			snapped = append(snapped, i)
		}
	}
	for g := range c.swinging {
		c.swinging[g] = false
	}
	if c.phase == PhaseSwinging {
		c.next = (c.active + 1) % len(c.layout.Groups)
	}
	c.phase = PhaseSettling
	c.settled = 0
	return snapped
}

func (c *Coordinator) Suspended() bool {
	return c != nil && c.suspended
}

func (c *Coordinator) Phase() Phase {
	if c == nil {
		return PhaseSettling
	}
	return c.phase
}

// Active is the group currently swinging, or -1 before the first group is entered.
func (c *Coordinator) Active() int {
	if c == nil {
		return -1
	}
	return c.active
}

func (c *Coordinator) GroupSwinging(group int) bool {
	if c == nil || group < 0 || group >= len(c.swinging) {
		return false
	}
	return c.swinging[group]
}

// Flags returns a copy of the per-group swinging flags.
func (c *Coordinator) Flags() []bool {
	if c == nil {
		return nil
	}
	return append([]bool(nil), c.swinging...)
}

func (c *Coordinator) Layout() Layout {
	if c == nil {
		return Layout{}
	}
	return c.layout
}

func (c *Coordinator) Legs() []*leg.Leg {
	if c == nil {
		return nil
	}
	return c.legs
}

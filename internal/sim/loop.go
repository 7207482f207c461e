package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Versifine/strider/internal/body"
	"github.com/Versifine/strider/internal/gait"
	"github.com/Versifine/strider/internal/input"
)

type Config struct {
	PhysicsHz float64 `yaml:"physics_hz" json:"physics_hz"`
	FrameHz   float64 `yaml:"frame_hz" json:"frame_hz"`
	Duration  float64 `yaml:"duration" json:"duration"` // seconds, headless runs only
}

func DefaultConfig() Config {
	return Config{PhysicsHz: 50, FrameHz: 60, Duration: 10}
}

func (c Config) Validate() error {
	var errs []error
	if !(c.PhysicsHz > 0) {
		errs = append(errs, fmt.Errorf("sim.physics_hz must be positive, got %v", c.PhysicsHz))
	}
	if !(c.FrameHz > 0) {
		errs = append(errs, fmt.Errorf("sim.frame_hz must be positive, got %v", c.FrameHz))
	}
	if c.Duration < 0 || math.IsNaN(c.Duration) {
		errs = append(errs, fmt.Errorf("sim.duration must not be negative, got %v", c.Duration))
	}
	return errors.Join(errs...)
}

// Stepper is driven by the loop; *rig.Rig implements it.
type Stepper interface {
	PhysicsTick(now, dt float64, intent input.Intent) body.Events
	FrameTick(now, dt float64) gait.Report
}

// Source supplies the raw control sample for a physics tick.
type Source interface {
	Sample(now float64) input.Sample
}

// Frame is passed to observers after every frame tick.
type Frame struct {
	Index  uint64
	Time   float64
	Report gait.Report
}

type Observer func(Frame)

// Loop interleaves physics and frame ticks on a shared simulation clock. Ticks fire in time
// order; a physics tick runs first when both fall on the same instant.
type Loop struct {
	cfg       Config
	stepper   Stepper
	source    Source
	mapper    *input.Mapper
	observers []Observer

	now          float64
	physicsTicks uint64
	frameTicks   uint64
}

func NewLoop(cfg Config, stepper Stepper, source Source) (*Loop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if stepper == nil {
		return nil, fmt.Errorf("loop stepper is nil")
	}
	return &Loop{
		cfg:     cfg,
		stepper: stepper,
		source:  source,
		mapper:  input.NewMapper(),
	}, nil
}

// Observe registers fn for every frame tick. Not safe to call while the loop runs.
func (l *Loop) Observe(fn Observer) {
	if l == nil || fn == nil {
		return
	}
	l.observers = append(l.observers, fn)
}

// Advance moves the clock forward by d seconds and runs every tick that falls due.
func (l *Loop) Advance(d float64) {
	if l == nil || !(d > 0) {
		return
	}
	l.AdvanceTo(l.now + d)
}

// AdvanceTo runs every tick scheduled at or before target.
func (l *Loop) AdvanceTo(target float64) {
	if l == nil || !(target > l.now) {
		return
	}
	pdt := 1 / l.cfg.PhysicsHz
	fdt := 1 / l.cfg.FrameHz
	for {
		nextPhysics := float64(l.physicsTicks) / l.cfg.PhysicsHz
		nextFrame := float64(l.frameTicks) / l.cfg.FrameHz
		if nextPhysics > target && nextFrame > target {
			break
		}
		if nextPhysics <= nextFrame {
			l.physicsTick(nextPhysics, pdt)
		} else {
			l.frameTick(nextFrame, fdt)
		}
	}
	l.now = target
}

func (l *Loop) physicsTick(now, dt float64) {
	var sample input.Sample
	if l.source != nil {
		sample = l.source.Sample(now)
	}
	l.stepper.PhysicsTick(now, dt, l.mapper.Map(now, sample))
	l.physicsTicks++
}

func (l *Loop) frameTick(now, dt float64) {
	report := l.stepper.FrameTick(now, dt)
	frame := Frame{Index: l.frameTicks, Time: now, Report: report}
	l.frameTicks++
	for _, fn := range l.observers {
		fn(frame)
	}
}

// RunFor advances the loop headlessly until the clock reaches the configured duration or ctx
// is cancelled.
func (l *Loop) RunFor(ctx context.Context) error {
	if l == nil {
		return fmt.Errorf("loop is nil")
	}
	for i := 1; l.now < l.cfg.Duration; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.AdvanceTo(math.Min(float64(i)/l.cfg.FrameHz, l.cfg.Duration))
	}
	slog.Info("simulation finished",
		"duration", l.now, "physics_ticks", l.physicsTicks, "frame_ticks", l.frameTicks)
	return nil
}

// Run advances the loop in real time until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	if l == nil {
		return fmt.Errorf("loop is nil")
	}
	interval := time.Duration(float64(time.Second) / l.cfg.FrameHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-ticker.C:
			elapsed := t.Sub(last).Seconds()
			last = t
			// Cap catch-up after a stall so one wake-up does not replay seconds of ticks.
			l.Advance(math.Min(elapsed, 0.25))
		}
	}
}

func (l *Loop) Now() float64 {
	if l == nil {
		return 0
	}
	return l.now
}

func (l *Loop) Ticks() (physics, frame uint64) {
	if l == nil {
		return 0, 0
	}
	return l.physicsTicks, l.frameTicks
}

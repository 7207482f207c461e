package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Versifine/strider/internal/config"
	"github.com/Versifine/strider/internal/debug"
	"github.com/Versifine/strider/internal/event"
	"github.com/Versifine/strider/internal/input"
	"github.com/Versifine/strider/internal/rig"
	"github.com/Versifine/strider/internal/scenario"
	"github.com/Versifine/strider/internal/sim"
	"github.com/Versifine/strider/internal/stepindex"
	"github.com/Versifine/strider/internal/stream"
	"github.com/Versifine/strider/internal/trace"
	"github.com/Versifine/strider/internal/world"
)

type app struct {
	cfg      *config.Config
	bus      *event.Bus
	rig      *rig.Rig
	loop     *sim.Loop
	controls *input.Latch
	script   *scenario.Script
	header   trace.Header
	trace    *trace.Writer
	index    *stepindex.Index
}

func newApp(cfg *config.Config, mode string) (*app, error) {
	surface, err := world.Build(cfg.Terrain)
	if err != nil {
		return nil, fmt.Errorf("terrain: %w", err)
	}

	a := &app{cfg: cfg, bus: event.NewBus(), controls: &input.Latch{}}
	a.rig, err = rig.New(cfg.RigOptions(), surface, a.bus)
	if err != nil {
		return nil, err
	}

	var source sim.Source = a.controls
	if cfg.Scenario.Script != "" {
		a.script, err = scenario.Load(cfg.Scenario.Script)
		if err != nil {
			return nil, err
		}
		source = a.script
	} else if mode == "run" {
		slog.Warn("No scenario script, the rig will stand still")
	}

	a.loop, err = sim.NewLoop(cfg.Sim, a.rig, source)
	if err != nil {
		a.close()
		return nil, err
	}

	a.header, err = trace.NewHeader(cfg, cfg.Sim.PhysicsHz, cfg.Sim.FrameHz)
	if err != nil {
		a.close()
		return nil, err
	}
	layout := a.rig.Layout()
	a.header.Mode = string(cfg.Gait.Mode)
	a.header.Legs = a.rig.LegNames()
	for i := 0; i < layout.LegCount(); i++ {
		a.header.Groups = append(a.header.Groups, layout.GroupOf(i))
		a.header.Partners = append(a.header.Partners, layout.PartnerOf(i))
	}

	if cfg.Trace.Path != "" {
		a.trace, err = trace.Create(cfg.Trace.Path)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("trace: %w", err)
		}
		if err := a.trace.WriteHeader(a.header); err != nil {
			a.close()
			return nil, fmt.Errorf("trace header: %w", err)
		}
		a.loop.Observe(trace.Recorder(a.trace, a.rig, cfg.Trace.Every))
	}

	if cfg.Index.Path != "" {
		a.index, err = stepindex.Open(cfg.Index.Path)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("step index: %w", err)
		}
		a.index.BeginRun(stepindex.Run{
			ID:           a.header.RunID,
			Started:      a.header.Started,
			ConfigDigest: a.header.ConfigDigest,
			Legs:         a.rig.LegCount(),
		})
		a.index.Attach(a.bus)
	}

	a.bus.Subscribe(event.EventJumpStart, func(raw any) {
		if ev, ok := raw.(event.JumpEvent); ok {
			slog.Info("Jump", "t", ev.Time, "charge", ev.Charge)
		}
	})
	a.bus.Subscribe(event.EventJumpRejected, func(raw any) {
		if ev, ok := raw.(event.JumpEvent); ok {
			slog.Debug("Jump rejected", "t", ev.Time)
		}
	})
	a.bus.Subscribe(event.EventJumpLand, func(raw any) {
		if ev, ok := raw.(event.JumpEvent); ok {
			slog.Info("Landed", "t", ev.Time, "pos", ev.Position)
		}
	})

	slog.Info("Rig ready",
		"run_id", a.header.RunID, "legs", a.rig.LegCount(), "terrain", cfg.Terrain.Kind, "gait", cfg.Gait.Mode)
	return a, nil
}

func (a *app) run(ctx context.Context, mode string) error {
	switch mode {
	case "run":
		if err := a.loop.RunFor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		a.report(ctx)
		return nil
	case "serve":
		var controls *input.Latch
		if a.script == nil {
			controls = a.controls
		}
		hub := stream.NewHub(controls, false)
		a.loop.Observe(hub.Observer(a.rig))

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		errCh := make(chan error, 1)
		go func() {
			err := hub.Serve(ctx, a.cfg.Stream.Listen)
			cancel()
			errCh <- err
		}()
		loopErr := a.loop.Run(ctx)
		if err := <-errCh; err != nil {
			return err
		}
		return loopErr
	case "console":
		return debug.NewConsole(a.rig, a.loop, a.controls, nil).Start(ctx)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

func (a *app) report(ctx context.Context) {
	pose := a.rig.Pose()
	slog.Info("Final pose", "t", pose.Time, "pos", pose.Body.Position, "jump", pose.Body.Jump.String())
	if a.index == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := a.index.Flush(ctx); err != nil {
		slog.Warn("Step index flush failed", "error", err)
		return
	}
	stats, err := a.index.LegStats(ctx, a.header.RunID)
	if err != nil {
		slog.Warn("Step index query failed", "error", err)
		return
	}
	for _, s := range stats {
		slog.Info("Leg", "name", s.Name, "steps", s.Steps, "landed", s.Landed,
			"mean_stride", s.MeanStride, "mean_swing", s.MeanDuration)
	}
	if d := a.index.Dropped(); d > 0 {
		slog.Warn("Step index dropped entries", "count", d)
	}
}

func (a *app) close() error {
	var errs []error
	if a.trace != nil {
		errs = append(errs, a.trace.Close())
	}
	if a.index != nil {
		errs = append(errs, a.index.Close())
	}
	if a.script != nil {
		if err := a.script.Err(); err != nil {
			errs = append(errs, err)
		}
		a.script.Close()
	}
	return errors.Join(errs...)
}

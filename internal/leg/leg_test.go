package leg

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Versifine/strider/internal/physics"
)

func approxEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func flatGround() physics.Surface {
	return physics.NewPlane(mgl64.Vec3{}, physics.WorldUp)
}

func spawnedLeg(t *testing.T, cfg Config) (*Leg, physics.Frame) {
	t.Helper()
	body := physics.IdentityFrame(mgl64.Vec3{0, 0.5, 0})
	l := New(cfg, mgl64.Vec3{0.5, 0, 0}, physics.AllLayers)
	l.Spawn(body, flatGround())
	if got := l.Target().Position; !got.ApproxEqualThreshold(mgl64.Vec3{0.5, 0, 0}, 1e-9) {
		t.Fatalf("spawn target = %v, want (0.5,0,0)", got)
	}
	return l, body
}

func TestEvaluateStepsForwardWithOverstep(t *testing.T) {
	cfg := DefaultConfig()
	l, body := spawnedLeg(t, cfg)

	body.Position = body.Position.Add(mgl64.Vec3{0, 0, 1})
	hit, ok := l.Sample(body, flatGround())
	if !ok {
		t.Fatalf("sample missed flat ground")
	}
	if !l.Evaluate(body, hit, ok, false) {
		t.Fatalf("expected swing to start")
	}
	if l.Progress() != 0 || !l.IsSwinging() {
		t.Fatalf("progress = %v, want 0 and swinging", l.Progress())
	}
	want := mgl64.Vec3{0.5, 0, 1 + cfg.StepLength}
	if got := l.Target().Position; !got.ApproxEqualThreshold(want, 1e-9) {
		t.Fatalf("target = %v, want %v", got, want)
	}
	if l.Evaluate(body, hit, ok, false) {
		t.Fatalf("a swinging leg must not restart")
	}
}

func TestEvaluateStepsBackward(t *testing.T) {
	cfg := DefaultConfig()
	l, body := spawnedLeg(t, cfg)

	body.Position = body.Position.Add(mgl64.Vec3{0, 0, -1})
	hit, ok := l.Sample(body, flatGround())
	if !l.Evaluate(body, hit, ok, false) {
		t.Fatalf("expected swing to start")
	}
	want := mgl64.Vec3{0.5, 0, -1 - cfg.StepLength}
	if got := l.Target().Position; !got.ApproxEqualThreshold(want, 1e-9) {
		t.Fatalf("target = %v, want %v", got, want)
	}
}

func TestEvaluateGates(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(c *Config)
		move     float64
		ok       bool
		partner  bool
		wantStep bool
	}{
		{name: "within step distance", move: 0.3, ok: true},
		{name: "beyond step distance", move: 0.5, ok: true, wantStep: true},
		{name: "no hit", move: 5, ok: false},
		{name: "partner swinging", move: 5, ok: true, partner: true},
		{
			name:   "min motion guards tiny thresholds",
			mutate: func(c *Config) { c.StepDistance = 1e-6; c.MinMotion = 0.01 },
			move:   0.005,
			ok:     true,
		},
		{
			name:     "tiny threshold still steps past min motion",
			mutate:   func(c *Config) { c.StepDistance = 1e-6; c.MinMotion = 0.01 },
			move:     0.02,
			ok:       true,
			wantStep: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			l, body := spawnedLeg(t, cfg)
			hit := physics.Hit{Point: mgl64.Vec3{0.5, 0, tt.move}, Normal: physics.WorldUp}
			if got := l.Evaluate(body, hit, tt.ok, tt.partner); got != tt.wantStep {
				t.Fatalf("Evaluate() = %v, want %v", got, tt.wantStep)
			}
		})
	}
}

func TestSwingArcShape(t *testing.T) {
	l := New(DefaultConfig(), mgl64.Vec3{}, physics.AllLayers)
	l.prev = Foothold{Position: mgl64.Vec3{0, 0.2, 0}, Normal: physics.WorldUp}
	l.target = Foothold{Position: mgl64.Vec3{0, 0.2, 1}, Normal: physics.WorldUp}

	h := func(t float64) float64 { return l.pose(t).Position.Y() }
	if !approxEqual(h(0), 0.2, 1e-12) || !approxEqual(h(1), 0.2, 1e-12) {
		t.Fatalf("endpoint heights = %v, %v, want 0.2", h(0), h(1))
	}
	peak := h(0.5)
	if !approxEqual(peak, 0.2+l.cfg.StepHeight, 1e-12) {
		t.Fatalf("peak = %v, want %v", peak, 0.2+l.cfg.StepHeight)
	}
	for i := 1; i < 100; i++ {
		p := float64(i) / 100
		if h(p) <= 0.2 {
			t.Fatalf("h(%v) = %v, want above endpoints", p, h(p))
		}
		if h(p) > peak+1e-12 {
			t.Fatalf("h(%v) = %v exceeds midpoint %v", p, h(p), peak)
		}
	}
}

func TestAdvanceIsMonotonicAndLands(t *testing.T) {
	cfg := DefaultConfig()
	l, body := spawnedLeg(t, cfg)
	hit := physics.Hit{Point: mgl64.Vec3{0.5, 0, 1}, Normal: physics.WorldUp}
	if !l.Evaluate(body, hit, true, false) {
		t.Fatalf("expected swing to start")
	}

	last := l.Progress()
	landed := false
	for i := 0; i < 100 && !landed; i++ {
		landed = l.Advance(1.0 / 60)
		if l.Progress() < last {
			t.Fatalf("progress went backwards: %v -> %v", last, l.Progress())
		}
		last = l.Progress()
	}
	if !landed {
		t.Fatalf("swing never landed")
	}
	if l.IsSwinging() {
		t.Fatalf("landed leg still swinging")
	}
	if got := l.Current().Position; !got.ApproxEqualThreshold(l.Target().Position, 1e-12) {
		t.Fatalf("landed foot = %v, want target %v", got, l.Target().Position)
	}
	if l.Advance(1.0 / 60) {
		t.Fatalf("planted leg must not land again")
	}
}

func TestUnreachableLegHoldsTarget(t *testing.T) {
	l, body := spawnedLeg(t, DefaultConfig())
	start := l.Target()
	for i := 0; i < 200; i++ {
		body.Position = body.Position.Add(mgl64.Vec3{0, 0, 0.05})
		hit, ok := l.Sample(body, physics.Empty{})
		l.Evaluate(body, hit, ok, false)
		l.Advance(1.0 / 60)
		if l.Target() != start {
			t.Fatalf("tick %d: target changed to %v", i, l.Target())
		}
		if l.Progress() != 1 {
			t.Fatalf("tick %d: progress = %v, want 1", i, l.Progress())
		}
	}
}

func TestSettleSnapsSwing(t *testing.T) {
	l, body := spawnedLeg(t, DefaultConfig())
	hit := physics.Hit{Point: mgl64.Vec3{0.5, 0, 1}, Normal: physics.WorldUp}
	l.Evaluate(body, hit, true, false)
	l.Advance(0.05)
	if !l.Settle() {
		t.Fatalf("Settle() on a swinging leg should report true")
	}
	if l.IsSwinging() || l.Current() != l.Target() {
		t.Fatalf("settled leg should be planted on its target")
	}
	if l.Settle() {
		t.Fatalf("Settle() on a planted leg should be a no-op")
	}
}

func TestHintFollowsLegSide(t *testing.T) {
	body := physics.IdentityFrame(mgl64.Vec3{0, 0.5, 0})
	left := New(DefaultConfig(), mgl64.Vec3{-0.5, 0, 0}, physics.AllLayers)
	right := New(DefaultConfig(), mgl64.Vec3{0.5, 0, 0}, physics.AllLayers)
	left.Spawn(body, flatGround())
	right.Spawn(body, flatGround())

	if h := left.Hint(body); !approxEqual(h.X(), -0.25-0.1, 1e-9) {
		t.Fatalf("left hint x = %v, want -0.35", h.X())
	}
	if h := right.Hint(body); !approxEqual(h.X(), 0.25+0.1, 1e-9) {
		t.Fatalf("right hint x = %v, want 0.35", h.X())
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	cfg := DefaultConfig()
	cfg.SwingSpeed = 0
	cfg.StepDistance = -1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for non-positive swing speed and step distance")
	}
}

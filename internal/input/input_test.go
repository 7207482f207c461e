package input

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestMapNormalizesDiagonal(t *testing.T) {
	m := NewMapper()
	intent := m.Map(0, Sample{Forward: 1, Strafe: 1})
	if l := math.Hypot(intent.Forward, intent.Strafe); math.Abs(l-1) > 1e-9 {
		t.Fatalf("diagonal length = %v, want 1", l)
	}

	intent = m.Map(0, Sample{Forward: 0.3, Strafe: -0.4, Turn: 7})
	if intent.Forward != 0.3 || intent.Strafe != -0.4 {
		t.Fatalf("short move should pass through, got %v/%v", intent.Forward, intent.Strafe)
	}
	if intent.Turn != 1 {
		t.Fatalf("turn = %v, want clamped 1", intent.Turn)
	}
	if m.Map(0, Sample{Forward: math.NaN()}).HasMove() {
		t.Fatalf("NaN input should not move")
	}
}

func TestMapJumpEdges(t *testing.T) {
	m := NewMapper()
	steps := []struct {
		now          float64
		jump         bool
		wantPressed  bool
		wantReleased bool
	}{
		{0.0, false, false, false},
		{0.1, true, true, false},
		{0.2, true, false, false},
		{0.3, true, false, false},
		{0.4, false, false, true},
		{0.5, false, false, false},
		{0.6, true, true, false},
	}

	for _, s := range steps {
		intent := m.Map(s.now, Sample{Jump: s.jump, Camera: mgl64.Vec3{0, 0, 1}})
		if intent.JumpPressed != s.wantPressed || intent.JumpReleased != s.wantReleased {
			t.Fatalf("t=%.1f pressed=%v released=%v, want %v/%v",
				s.now, intent.JumpPressed, intent.JumpReleased, s.wantPressed, s.wantReleased)
		}
		if intent.Time != s.now {
			t.Fatalf("intent.Time = %v, want %v", intent.Time, s.now)
		}
	}

	since, ok := m.HeldSince()
	if !ok || since != 0.6 {
		t.Fatalf("HeldSince() = %v,%v want 0.6,true", since, ok)
	}
	m.Reset()
	if _, ok := m.HeldSince(); ok {
		t.Fatalf("Reset should clear the hold")
	}
}

func TestNilMapper(t *testing.T) {
	var m *Mapper
	intent := m.Map(1, Sample{Jump: true, Forward: 1})
	if intent.JumpPressed || intent.Forward != 1 {
		t.Fatalf("nil mapper should map axes without edges, got %+v", intent)
	}
}

func TestLatch(t *testing.T) {
	var l Latch
	l.Set(Sample{Forward: 1})
	l.Update(func(s *Sample) { s.Jump = true })
	got := l.Sample(0)
	if got.Forward != 1 || !got.Jump {
		t.Fatalf("Sample() = %+v, want forward and jump", got)
	}
}

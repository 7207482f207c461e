package stepindex

import (
	"context"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Versifine/strider/internal/event"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Open(filepath.Join(t.TempDir(), "db", "steps.sqlite"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestStepsThroughBus(t *testing.T) {
	idx := openTestIndex(t)
	bus := event.NewBus()
	idx.Attach(bus)
	idx.BeginRun(Run{ID: "run-1", Started: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), ConfigDigest: "abc", Legs: 2})

	steps := []struct {
		name string
		leg  int
		from mgl64.Vec3
		to   mgl64.Vec3
		at   float64
	}{
		{"L1", 0, mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 0, 0.6}, 0.0},
		{"R1", 1, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{1, 0, 0.4}, 0.5},
		{"L1", 0, mgl64.Vec3{0, 0, 0.6}, mgl64.Vec3{0, 0, 1.0}, 1.0},
	}
	for _, s := range steps {
		ev := event.StepEvent{Time: s.at, Leg: s.leg, Name: s.name, Group: s.leg, From: s.from, To: s.to}
		bus.Publish(event.EventStepStart, ev)
		ev.Time = s.at + 0.2
		bus.Publish(event.EventStepLand, ev)
	}
	// A landing with no open step is ignored.
	bus.Publish(event.EventStepLand, event.StepEvent{Leg: 1, Name: "R1", Time: 9})

	ctx := context.Background()
	if err := idx.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	stats, err := idx.LegStats(ctx, "run-1")
	if err != nil {
		t.Fatalf("LegStats() error = %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("len(stats) = %d, want 2", len(stats))
	}
	l1 := stats[0]
	if l1.Name != "L1" || l1.Steps != 2 || l1.Landed != 2 {
		t.Fatalf("L1 stats = %+v", l1)
	}
	if math.Abs(l1.MeanStride-0.5) > 1e-9 || math.Abs(l1.MeanDuration-0.2) > 1e-9 {
		t.Fatalf("L1 stride=%v duration=%v, want 0.5/0.2", l1.MeanStride, l1.MeanDuration)
	}
	if r1 := stats[1]; r1.Steps != 1 || math.Abs(r1.MeanStride-0.4) > 1e-9 {
		t.Fatalf("R1 stats = %+v", r1)
	}

	runs, err := idx.Runs(ctx)
	if err != nil {
		t.Fatalf("Runs() error = %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "run-1" || runs[0].Legs != 2 || runs[0].Started.Year() != 2026 {
		t.Fatalf("runs = %+v", runs)
	}
}

func TestQueueDropsWhenFull(t *testing.T) {
	idx := &Index{ch: make(chan req, 1)}
	idx.StepStarted(event.StepEvent{})
	idx.StepStarted(event.StepEvent{})
	idx.StepLanded(event.StepEvent{})
	if got := idx.Dropped(); got != 2 {
		t.Fatalf("Dropped() = %d, want 2", got)
	}
}

func TestClosedIndexIgnoresWrites(t *testing.T) {
	idx := openTestIndex(t)
	if err := idx.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	idx.StepStarted(event.StepEvent{})
	if err := idx.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() after Close error = %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	var nilIdx *Index
	nilIdx.StepStarted(event.StepEvent{})
	if _, err := nilIdx.LegStats(context.Background(), "x"); err == nil {
		t.Fatalf("nil index LegStats should fail")
	}
}

func TestCloseWhileWriting(t *testing.T) {
	for round := 0; round < 20; round++ {
		idx, err := Open(filepath.Join(t.TempDir(), "steps.sqlite"))
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		idx.BeginRun(Run{ID: "run", Legs: 8})

		var wg sync.WaitGroup
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func(leg int) {
				defer wg.Done()
				for i := 0; i < 500; i++ {
					idx.StepStarted(event.StepEvent{Leg: leg, Time: float64(i)})
					idx.StepLanded(event.StepEvent{Leg: leg, Time: float64(i) + 0.1})
					if i%100 == 0 {
						_ = idx.Flush(context.Background())
					}
				}
			}(w)
		}
		if err := idx.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		wg.Wait()
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatalf("Open(\"\") should fail")
	}
}

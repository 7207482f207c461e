package trace

import (
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Versifine/strider/internal/body"
	"github.com/Versifine/strider/internal/event"
	"github.com/Versifine/strider/internal/gait"
	"github.com/Versifine/strider/internal/input"
	"github.com/Versifine/strider/internal/leg"
	"github.com/Versifine/strider/internal/physics"
	"github.com/Versifine/strider/internal/rig"
	"github.com/Versifine/strider/internal/sim"
)

func TestWriteThenRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs", "a.jsonl.zst")
	w, err := Create(path)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	h, err := NewHeader(map[string]int{"legs": 2}, 50, 60)
	if err != nil {
		t.Fatalf("NewHeader() error = %v", err)
	}
	h.Legs, h.Groups, h.Partners = []string{"L1", "R1"}, []int{0, 1}, []int{1, 0}
	if err := w.WriteHeader(h); err != nil {
		t.Fatalf("WriteHeader() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		f := Frame{Index: uint64(i), Time: float64(i) / 60, Flags: []bool{i == 1, false}, Landed: []int{i}}
		if err := w.WriteFrame(f); err != nil {
			t.Fatalf("WriteFrame() error = %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if err := w.WriteFrame(Frame{}); err == nil {
		t.Fatalf("WriteFrame after Close should fail")
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer r.Close()

	got, err := r.ReadHeader()
	if err != nil {
		t.Fatalf("ReadHeader() error = %v", err)
	}
	if got.RunID != h.RunID || got.ConfigDigest != h.ConfigDigest || len(got.RunID) != 36 || got.Partners[0] != 1 {
		t.Fatalf("header = %+v, want %+v", got, h)
	}

	var frames []Frame
	for {
		line, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		var f Frame
		if err := json.Unmarshal(line, &f); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		frames = append(frames, f)
	}
	if len(frames) != 3 || frames[1].Type != TypeFrame || !frames[1].Flags[0] || frames[2].Landed[0] != 2 {
		t.Fatalf("frames = %+v", frames)
	}
}

func TestDigestIsStable(t *testing.T) {
	a, _ := Digest(map[string]any{"b": 1, "a": 2})
	b, _ := Digest(map[string]any{"a": 2, "b": 1})
	c, _ := Digest(map[string]any{"a": 3, "b": 1})
	if a != b || a == c || len(a) != 64 {
		t.Fatalf("digests a=%s b=%s c=%s", a, b, c)
	}
}

func TestReadHeaderRejectsFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl.zst")
	w, err := Create(path)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	_ = w.WriteFrame(Frame{})
	_ = w.Close()

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer r.Close()
	if _, err := r.ReadHeader(); err == nil {
		t.Fatalf("ReadHeader() on a frame line should fail")
	}
}

type forward struct{}

func (forward) Sample(float64) input.Sample { return input.Sample{Forward: 0.5} }

func TestRecorderWritesEveryNthAndStepFrames(t *testing.T) {
	r, err := rig.New(rig.Options{
		Rig:  rig.DefaultConfig(),
		Body: body.DefaultConfig(),
		Leg:  leg.DefaultConfig(),
		Gait: gait.DefaultConfig(),
	}, physics.NewPlane(mgl64.Vec3{}, physics.WorldUp), event.NewBus())
	if err != nil {
		t.Fatalf("rig.New() error = %v", err)
	}
	loop, err := sim.NewLoop(sim.Config{PhysicsHz: 50, FrameHz: 60, Duration: 3}, r, forward{})
	if err != nil {
		t.Fatalf("NewLoop() error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "walk.jsonl.zst")
	w, err := Create(path)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	loop.Observe(Recorder(w, r, 10))
	if err := loop.RunFor(testContext(t)); err != nil {
		t.Fatalf("RunFor() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	rd, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rd.Close()
	var total, withSteps int
	for {
		line, err := rd.Next()
		if err != nil {
			break
		}
		var f Frame
		if err := json.Unmarshal(line, &f); err != nil {
			t.Fatalf("decode: %v", err)
		}
		total++
		if len(f.Started)+len(f.Landed) > 0 {
			withSteps++
		} else if f.Index%10 != 0 {
			t.Fatalf("frame %d written without steps", f.Index)
		}
		if len(f.Legs) != 8 {
			t.Fatalf("frame %d has %d legs", f.Index, len(f.Legs))
		}
	}
	if total < 19 || withSteps == 0 {
		t.Fatalf("total=%d withSteps=%d", total, withSteps)
	}
}

package input

import (
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// Sample is the raw control state for one tick, as read from keys, a script or a network peer.
type Sample struct {
	Forward    float64
	Strafe     float64
	Turn       float64
	Jump       bool
	FaceCamera bool
	Camera     mgl64.Vec3
}

// Intent is what the body controller consumes. Move components lie in [-1,1] with a combined
// length of at most 1; jump edges carry the simulation time they were observed at.
type Intent struct {
	Forward       float64
	Strafe        float64
	Turn          float64
	CameraForward mgl64.Vec3
	FaceCamera    bool
	JumpPressed   bool
	JumpReleased  bool
	Time          float64
}

func (i Intent) HasMove() bool {
	return i.Forward != 0 || i.Strafe != 0
}

// Mapper turns held samples into intents with edge-triggered jump events.
type Mapper struct {
	jumpHeld bool
	pressAt  float64
}

func NewMapper() *Mapper {
	return &Mapper{}
}

func (m *Mapper) Map(now float64, s Sample) Intent {
	forward, strafe := normalizeMove(clampAxis(s.Forward), clampAxis(s.Strafe))
	intent := Intent{
		Forward:       forward,
		Strafe:        strafe,
		Turn:          clampAxis(s.Turn),
		CameraForward: s.Camera,
		FaceCamera:    s.FaceCamera,
		Time:          now,
	}
	if m == nil {
		return intent
	}

	switch {
	case s.Jump && !m.jumpHeld:
		intent.JumpPressed = true
		m.pressAt = now
	case !s.Jump && m.jumpHeld:
		intent.JumpReleased = true
	}
	m.jumpHeld = s.Jump
	return intent
}

// HeldSince reports when the current jump hold began.
func (m *Mapper) HeldSince() (float64, bool) {
	if m == nil || !m.jumpHeld {
		return 0, false
	}
	return m.pressAt, true
}

func (m *Mapper) Reset() {
	if m == nil {
		return
	}
	m.jumpHeld = false
	m.pressAt = 0
}

func clampAxis(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return mgl64.Clamp(v, -1, 1)
}

// normalizeMove keeps diagonal input from moving faster than a single axis.
func normalizeMove(forward, strafe float64) (float64, float64) {
	l := math.Hypot(forward, strafe)
	if l <= 1 {
		return forward, strafe
	}
	return forward / l, strafe / l
}

// Latch holds the latest sample for sources that update from another goroutine, such as a
// terminal or a network peer.
type Latch struct {
	mu sync.Mutex
	s  Sample
}

func (l *Latch) Set(s Sample) {
	l.mu.Lock()
	l.s = s
	l.mu.Unlock()
}

func (l *Latch) Update(fn func(s *Sample)) {
	l.mu.Lock()
	fn(&l.s)
	l.mu.Unlock()
}

func (l *Latch) Sample(float64) Sample {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.s
}

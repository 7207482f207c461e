package debug

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/Versifine/strider/internal/input"
	"github.com/Versifine/strider/internal/physics"
	"github.com/Versifine/strider/internal/rig"
)

const (
	defaultTickInterval = 16 * time.Millisecond
	defaultMovePulse    = 180 * time.Millisecond
	defaultScale        = 8.0 // cells per metre along Z; X gets twice that to offset glyph aspect
	minScale            = 2.0
	maxScale            = 64.0
)

// ControlledRig is what the console inspects and pauses.
type ControlledRig interface {
	Pose() rig.Pose
	Disable()
	Enable()
	Disabled() bool
}

// Clock advances the simulation by wall-clock seconds.
type Clock interface {
	Advance(d float64)
}

type Console struct {
	rig      ControlledRig
	clock    Clock
	controls *input.Latch
	screen   tcell.Screen

	tickInterval time.Duration
	movePulse    time.Duration

	mu            sync.Mutex
	forwardUntil  time.Time
	backwardUntil time.Time
	leftUntil     time.Time
	rightUntil    time.Time
	turnLeftUntil time.Time
	turnRightTil  time.Time
	jump          bool
	faceCamera    bool
	scale         float64
	message       string
}

func NewConsole(r ControlledRig, clock Clock, controls *input.Latch, screen tcell.Screen) *Console {
	return &Console{
		rig:          r,
		clock:        clock,
		controls:     controls,
		screen:       screen,
		tickInterval: defaultTickInterval,
		movePulse:    defaultMovePulse,
		scale:        defaultScale,
	}
}

// Start takes over the terminal until ctx is cancelled or the user quits.
func (c *Console) Start(ctx context.Context) error {
	if c == nil {
		return fmt.Errorf("console is nil")
	}
	if c.rig == nil {
		return fmt.Errorf("console rig is nil")
	}
	if c.clock == nil {
		return fmt.Errorf("console clock is nil")
	}
	if c.controls == nil {
		return fmt.Errorf("console controls are nil")
	}
	if c.screen == nil {
		screen, err := tcell.NewScreen()
		if err != nil {
			return fmt.Errorf("create screen: %w", err)
		}
		c.screen = screen
	}
	if err := c.screen.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	defer c.screen.Fini()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := c.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(c.tickInterval)
	defer ticker.Stop()
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if !c.handleEvent(ev) {
				return nil
			}
		case now := <-ticker.C:
			c.controls.Set(c.sample(now))
			c.clock.Advance(math.Min(now.Sub(last).Seconds(), 0.25))
			last = now
			c.draw()
		}
	}
}

// handleEvent returns false when the console should exit.
func (c *Console) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return false
		case tcell.KeyRune:
			c.handleRune(ev.Rune(), time.Now())
		}
	case *tcell.EventResize:
		c.screen.Sync()
	}
	return true
}

func (c *Console) handleRune(r rune, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pulse := now.Add(c.movePulse)
	switch r {
	case 'w', 'W':
		c.forwardUntil, c.backwardUntil = pulse, time.Time{}
	case 's', 'S':
		c.backwardUntil, c.forwardUntil = pulse, time.Time{}
	case 'a', 'A':
		c.leftUntil, c.rightUntil = pulse, time.Time{}
	case 'd', 'D':
		c.rightUntil, c.leftUntil = pulse, time.Time{}
	case 'q', 'Q':
		c.turnLeftUntil, c.turnRightTil = pulse, time.Time{}
	case 'e', 'E':
		c.turnRightTil, c.turnLeftUntil = pulse, time.Time{}
	case ' ':
		c.jump = !c.jump
		if c.jump {
			c.message = "charging jump, space to release"
		} else {
			c.message = "jump released"
		}
	case 'f', 'F':
		c.faceCamera = !c.faceCamera
	case 'x', 'X':
		c.forwardUntil, c.backwardUntil = time.Time{}, time.Time{}
		c.leftUntil, c.rightUntil = time.Time{}, time.Time{}
		c.turnLeftUntil, c.turnRightTil = time.Time{}, time.Time{}
		c.jump, c.faceCamera = false, false
		c.message = "input cleared"
	case 'p', 'P':
		if c.rig.Disabled() {
			c.rig.Enable()
			c.message = "resumed"
		} else {
			c.rig.Disable()
			c.message = "paused"
		}
	case '+', '=':
		c.scale = math.Min(c.scale*2, maxScale)
	case '-', '_':
		c.scale = math.Max(c.scale/2, minScale)
	}
}

// sample turns the held pulses into a control sample at wall time now.
func (c *Console) sample(now time.Time) input.Sample {
	c.mu.Lock()
	defer c.mu.Unlock()
	var s input.Sample
	if now.Before(c.forwardUntil) {
		s.Forward = 1
	} else if now.Before(c.backwardUntil) {
		s.Forward = -1
	}
	if now.Before(c.rightUntil) {
		s.Strafe = 1
	} else if now.Before(c.leftUntil) {
		s.Strafe = -1
	}
	if now.Before(c.turnRightTil) {
		s.Turn = 1
	} else if now.Before(c.turnLeftUntil) {
		s.Turn = -1
	}
	s.Jump = c.jump
	s.FaceCamera = c.faceCamera
	s.Camera = physics.WorldForward
	return s
}

func (c *Console) draw() {
	c.mu.Lock()
	scale, msg := c.scale, c.message
	c.mu.Unlock()

	w, h := c.screen.Size()
	pose := c.rig.Pose()
	c.screen.Clear()
	for _, cell := range render(pose, w, h-1, scale) {
		c.screen.SetContent(cell.X, cell.Y, cell.Ch, nil, cell.Style)
	}
	drawText(c.screen, 0, h-1, statusLine(pose, msg), tcell.StyleDefault.Reverse(true))
	c.screen.Show()
}

func drawText(s tcell.Screen, x, y int, text string, style tcell.Style) {
	for _, r := range text {
		s.SetContent(x, y, r, nil, style)
		x++
	}
}

func statusLine(p rig.Pose, msg string) string {
	state := "run"
	if p.Disabled {
		state = "PAUSED"
	}
	pos := p.Body.Position
	line := fmt.Sprintf("[%s t=%.2f | X:%.2f Y:%.2f Z:%.2f | %s grounded:%t | %s group:%d]",
		state, p.Time, pos.X(), pos.Y(), pos.Z(), p.Body.Jump, p.Body.Grounded, p.Phase, p.Active)
	if msg != "" {
		line += " " + msg
	}
	return line
}

// Cell is one glyph of the top-down view.
type Cell struct {
	X, Y  int
	Ch    rune
	Style tcell.Style
}

var (
	styleBody     = tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true)
	stylePlanted  = tcell.StyleDefault.Foreground(tcell.ColorWhite)
	styleSwinging = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	styleTarget   = tcell.StyleDefault.Foreground(tcell.ColorBlue)
	styleHeading  = tcell.StyleDefault.Foreground(tcell.ColorGreen)
)

// render projects the pose onto a w x h grid centred on the body, +Z pointing up the screen.
// Later cells overwrite earlier ones at the same position.
func render(p rig.Pose, w, h int, scale float64) []Cell {
	if w <= 0 || h <= 0 {
		return nil
	}
	cx, cy := w/2, h/2
	origin := p.Body.Position
	project := func(x, z float64) (int, int, bool) {
		col := cx + int(math.Round((x-origin.X())*scale*2))
		row := cy - int(math.Round((z-origin.Z())*scale))
		return col, row, col >= 0 && col < w && row >= 0 && row < h
	}

	var cells []Cell
	put := func(x, z float64, ch rune, style tcell.Style) {
		if col, row, ok := project(x, z); ok {
			cells = append(cells, Cell{X: col, Y: row, Ch: ch, Style: style})
		}
	}

	for _, l := range p.Legs {
		if l.Swinging {
			put(l.Target.X(), l.Target.Z(), '+', styleTarget)
		}
	}
	fwd := p.Body.Rotation.Rotate(physics.WorldForward)
	put(origin.X()+fwd.X()*1.5/scale, origin.Z()+fwd.Z()*1.5/scale, '^', styleHeading)
	for _, l := range p.Legs {
		if l.Swinging {
			put(l.Foot.X(), l.Foot.Z(), 'O', styleSwinging)
		} else {
			put(l.Foot.X(), l.Foot.Z(), 'o', stylePlanted)
		}
	}
	put(origin.X(), origin.Z(), '@', styleBody)
	return cells
}

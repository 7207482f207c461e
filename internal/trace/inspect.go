package trace

import (
	"errors"
	"fmt"
	"io"

	"github.com/tidwall/gjson"
)

// Summary describes a recorded run.
type Summary struct {
	Header   Header
	Frames   int
	Duration float64
	Steps    map[string]int
	Landings map[string]int
	Jumps    int
	Airborne int
	Disabled int
}

// Violation is a frame that breaks a gait rule.
type Violation struct {
	Index  uint64
	Time   float64
	Reason string
}

func (v Violation) String() string {
	return fmt.Sprintf("frame %d (t=%.3f): %s", v.Index, v.Time, v.Reason)
}

// Summarize scans a trace and counts steps per leg. Jumps comes from the rig's launch
// counter, so walking off a ledge only shows up in Airborne.
func Summarize(path string) (Summary, error) {
	var s Summary
	err := scan(path, func(h Header) {
		s.Header = h
		s.Steps = map[string]int{}
		s.Landings = map[string]int{}
	}, func(frame gjson.Result) {
		s.Frames++
		s.Duration = frame.Get("t").Float()
		frame.Get("started").ForEach(func(_, leg gjson.Result) bool {
			s.Steps[legName(s.Header, int(leg.Int()))]++
			return true
		})
		frame.Get("landed").ForEach(func(_, leg gjson.Result) bool {
			s.Landings[legName(s.Header, int(leg.Int()))]++
			return true
		})
		if frame.Get("disabled").Bool() {
			s.Disabled++
		}
		s.Jumps = int(frame.Get("jumps").Int())
	})
	if err != nil {
		return Summary{}, err
	}
	s.Airborne, err = countAirborne(path)
	return s, err
}

// countAirborne counts entries into the airborne state, launched or not.
func countAirborne(path string) (int, error) {
	n := 0
	prev := ""
	err := scan(path, nil, func(frame gjson.Result) {
		state := frame.Get("body.jump").String()
		if state == "airborne" && prev != "airborne" {
			n++
		}
		prev = state
	})
	return n, err
}

// Verify replays the swing flags of a trace. In every frame no leg may swing together with
// its partner; in alternating mode at most one group flag is set and every swinging leg
// belongs to the active group.
func Verify(path string) ([]Violation, error) {
	var (
		h     Header
		out   []Violation
		last  = -1.0
		first = true
	)
	err := scan(path, func(hd Header) { h = hd }, func(frame gjson.Result) {
		idx := frame.Get("index").Uint()
		at := frame.Get("t").Float()
		report := func(format string, args ...any) {
			out = append(out, Violation{Index: idx, Time: at, Reason: fmt.Sprintf(format, args...)})
		}
		if !first && at < last {
			report("time went backwards from %.3f", last)
		}
		first, last = false, at

		swinging := make([]bool, len(h.Legs))
		for i, leg := range frame.Get("legs").Array() {
			if i < len(swinging) {
				swinging[i] = leg.Get("swinging").Bool()
			}
		}
		for i, p := range h.Partners {
			if p > i && p < len(swinging) && swinging[i] && swinging[p] {
				report("%s and partner %s swing together", legName(h, i), legName(h, p))
			}
		}

		set := 0
		frame.Get("flags").ForEach(func(_, flag gjson.Result) bool {
			if flag.Bool() {
				set++
			}
			return true
		})
		if set > 1 {
			report("%d group flags set", set)
		}

		if h.Mode != "alternating" {
			return
		}
		active := int(frame.Get("active").Int())
		for i, sw := range swinging {
			if sw && i < len(h.Groups) && h.Groups[i] != active {
				report("%s swings outside active group %d", legName(h, i), active)
			}
		}
	})
	return out, err
}

func scan(path string, onHeader func(Header), onFrame func(gjson.Result)) error {
	r, err := Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	h, err := r.ReadHeader()
	if err != nil {
		return err
	}
	if onHeader != nil {
		onHeader(h)
	}
	for {
		line, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if !gjson.ValidBytes(line) {
			return fmt.Errorf("invalid trace line: %.40s", line)
		}
		frame := gjson.ParseBytes(line)
		if frame.Get("type").String() != TypeFrame {
			continue
		}
		onFrame(frame)
	}
}

func legName(h Header, i int) string {
	if i >= 0 && i < len(h.Legs) {
		return h.Legs[i]
	}
	return fmt.Sprintf("leg%d", i)
}

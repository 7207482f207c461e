// Package sonify renders footfalls as audio: each landing is a short decaying sine click whose
// pitch identifies the leg and whose pan follows the body side.
package sonify

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
	"github.com/tidwall/gjson"

	"github.com/Versifine/strider/internal/trace"
)

const (
	SampleRate = beep.SampleRate(44100)
	clickLen   = 60 * time.Millisecond
	baseFreq   = 220.0
	decay      = 40.0 // 1/s
	gain       = 0.4
)

type Footfall struct {
	Time float64
	Leg  int
}

type click struct {
	start       int
	freq        float64
	left, right float64
}

// clickTrack is a beep.Streamer that mixes overlapping clicks.
type clickTrack struct {
	sr     beep.SampleRate
	clicks []click
	length int
	pos    int
	first  int
	n      int
}

// Track builds a streamer of the given length in seconds. Legs are spread over one octave;
// even legs pan left and odd legs right, matching the L/R naming of the default layout.
func Track(falls []Footfall, legCount int, length float64, sr beep.SampleRate) beep.Streamer {
	if legCount < 1 {
		legCount = 1
	}
	t := &clickTrack{
		sr:     sr,
		length: sr.N(time.Duration(length * float64(time.Second))),
		n:      sr.N(clickLen),
	}
	for _, f := range falls {
		c := click{
			start: sr.N(time.Duration(f.Time * float64(time.Second))),
			freq:  baseFreq * math.Pow(2, float64(f.Leg)/float64(legCount)),
			left:  0.8,
			right: 0.3,
		}
		if f.Leg%2 == 1 {
			c.left, c.right = c.right, c.left
		}
		t.clicks = append(t.clicks, c)
	}
	sort.Slice(t.clicks, func(i, j int) bool { return t.clicks[i].start < t.clicks[j].start })
	return t
}

func (t *clickTrack) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		if t.pos >= t.length {
			return i, i > 0
		}
		for t.first < len(t.clicks) && t.clicks[t.first].start+t.n <= t.pos {
			t.first++
		}
		var l, r float64
		for k := t.first; k < len(t.clicks) && t.clicks[k].start <= t.pos; k++ {
			c := t.clicks[k]
			if t.pos >= c.start+t.n {
				continue
			}
			dt := float64(t.pos-c.start) / float64(t.sr)
			v := gain * math.Exp(-decay*dt) * math.Sin(2*math.Pi*c.freq*dt)
			l += v * c.left
			r += v * c.right
		}
		samples[i][0] = clamp(l)
		samples[i][1] = clamp(r)
		t.pos++
	}
	return len(samples), true
}

func (t *clickTrack) Err() error { return nil }

func clamp(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

// WriteWAV encodes the track as 16-bit stereo.
func WriteWAV(w io.WriteSeeker, s beep.Streamer, sr beep.SampleRate) error {
	return wav.Encode(w, s, beep.Format{SampleRate: sr, NumChannels: 2, Precision: 2})
}

// FromTrace collects the landings recorded in a trace, the run length and the leg count.
func FromTrace(path string) ([]Footfall, float64, int, error) {
	r, err := trace.Open(path)
	if err != nil {
		return nil, 0, 0, err
	}
	defer r.Close()

	h, err := r.ReadHeader()
	if err != nil {
		return nil, 0, 0, err
	}

	var falls []Footfall
	length := 0.0
	for {
		line, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, 0, err
		}
		if !gjson.ValidBytes(line) {
			return nil, 0, 0, fmt.Errorf("invalid trace line: %.40s", line)
		}
		frame := gjson.ParseBytes(line)
		at := frame.Get("t").Float()
		length = math.Max(length, at)
		frame.Get("landed").ForEach(func(_, leg gjson.Result) bool {
			falls = append(falls, Footfall{Time: at, Leg: int(leg.Int())})
			return true
		})
	}
	return falls, length + clickLen.Seconds(), len(h.Legs), nil
}

// Render writes the footfalls of a trace to a WAV file.
func Render(tracePath, outPath string) (int, error) {
	falls, length, legs, err := FromTrace(tracePath)
	if err != nil {
		return 0, err
	}
	f, err := os.Create(outPath)
	if err != nil {
		return 0, err
	}
	if err := WriteWAV(f, Track(falls, legs, length, SampleRate), SampleRate); err != nil {
		_ = f.Close()
		return 0, fmt.Errorf("encode wav: %w", err)
	}
	return len(falls), f.Close()
}

// Summary is a JSON-friendly description of a rendered track.
func Summary(falls []Footfall, length float64) ([]byte, error) {
	perLeg := map[int]int{}
	for _, f := range falls {
		perLeg[f.Leg]++
	}
	return json.Marshal(struct {
		Footfalls int         `json:"footfalls"`
		Seconds   float64     `json:"seconds"`
		PerLeg    map[int]int `json:"per_leg"`
	}{len(falls), length, perLeg})
}

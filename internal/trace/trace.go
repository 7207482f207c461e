// Package trace records simulation frames as zstd-compressed JSON lines. The first line is a
// header; every following line is one frame.
package trace

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

const (
	TypeHeader = "header"
	TypeFrame  = "frame"
)

type Header struct {
	Type         string    `json:"type"`
	RunID        string    `json:"run_id"`
	Started      time.Time `json:"started"`
	ConfigDigest string    `json:"config_digest"`
	PhysicsHz    float64   `json:"physics_hz"`
	FrameHz      float64   `json:"frame_hz"`
	Mode         string    `json:"mode"`
	Legs         []string  `json:"legs"`
	Groups       []int     `json:"groups"`
	Partners     []int     `json:"partners"`
}

// NewHeader stamps a fresh run id and the digest of cfg's JSON form. Callers fill in the
// gait layout.
func NewHeader(cfg any, physicsHz, frameHz float64) (Header, error) {
	digest, err := Digest(cfg)
	if err != nil {
		return Header{}, err
	}
	return Header{
		Type:         TypeHeader,
		RunID:        uuid.NewString(),
		Started:      time.Now().UTC(),
		ConfigDigest: digest,
		PhysicsHz:    physicsHz,
		FrameHz:      frameHz,
	}, nil
}

func Digest(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("digest config: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

type BodyFrame struct {
	Position [3]float64 `json:"pos"`
	Normal   [3]float64 `json:"normal"`
	Velocity [3]float64 `json:"vel"`
	Grounded bool       `json:"grounded"`
	Jump     string     `json:"jump"`
}

type LegFrame struct {
	Name     string     `json:"name"`
	Foot     [3]float64 `json:"foot"`
	Target   [3]float64 `json:"target"`
	Progress float64    `json:"progress"`
	Swinging bool       `json:"swinging"`
}

type Frame struct {
	Type     string     `json:"type"`
	Index    uint64     `json:"index"`
	Time     float64    `json:"t"`
	Body     BodyFrame  `json:"body"`
	Legs     []LegFrame `json:"legs"`
	Flags    []bool     `json:"flags"`
	Phase    string     `json:"phase"`
	Active   int        `json:"active"`
	Jumps    int        `json:"jumps"`
	Disabled bool       `json:"disabled,omitempty"`
	Started  []int      `json:"started,omitempty"`
	Landed   []int      `json:"landed,omitempty"`
}

// Writer appends lines to a single trace file. Safe for concurrent use.
type Writer struct {
	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

func Create(path string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Writer{f: f, enc: enc, w: bufio.NewWriterSize(enc, 128*1024)}, nil
}

func (w *Writer) WriteHeader(h Header) error {
	h.Type = TypeHeader
	return w.write(h)
}

func (w *Writer) WriteFrame(f Frame) error {
	f.Type = TypeFrame
	return w.write(f)
}

func (w *Writer) write(v any) error {
	if w == nil {
		return fmt.Errorf("trace writer is nil")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return fmt.Errorf("trace writer is closed")
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return nil
	}
	errFlush := w.w.Flush()
	errEnc := w.enc.Close()
	errFile := w.f.Close()
	w.w, w.enc, w.f = nil, nil, nil
	return errors.Join(errFlush, errEnc, errFile)
}

// Reader iterates the raw JSON lines of a trace.
type Reader struct {
	f   *os.File
	dec *zstd.Decoder
	sc  *bufio.Scanner
}

func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	return &Reader{f: f, dec: dec, sc: sc}, nil
}

// Next returns the next line, or io.EOF after the last one. The slice is only valid until the
// following call.
func (r *Reader) Next() ([]byte, error) {
	if r.sc.Scan() {
		return r.sc.Bytes(), nil
	}
	if err := r.sc.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// ReadHeader decodes the first line.
func (r *Reader) ReadHeader() (Header, error) {
	line, err := r.Next()
	if err != nil {
		return Header{}, fmt.Errorf("read trace header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(line, &h); err != nil {
		return Header{}, fmt.Errorf("decode trace header: %w", err)
	}
	if h.Type != TypeHeader {
		return Header{}, fmt.Errorf("trace starts with %q, want %q", h.Type, TypeHeader)
	}
	return h, nil
}

func (r *Reader) Close() error {
	r.dec.Close()
	return r.f.Close()
}

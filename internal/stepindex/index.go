// Package stepindex keeps a queryable SQLite record of every step a run takes. Writes are
// queued to a single writer goroutine; the trace file stays the source of truth, so the queue
// drops entries instead of stalling the simulation.
package stepindex

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Versifine/strider/internal/event"
)

type Index struct {
	db *sql.DB

	// mu orders sends on ch against close(ch).
	mu     sync.RWMutex
	ch     chan req
	closed bool
	wg     sync.WaitGroup
	once   sync.Once

	dropped atomic.Uint64
}

type reqKind int

const (
	reqRun reqKind = iota + 1
	reqStart
	reqLand
	reqFlush
)

type req struct {
	kind reqKind
	run  Run
	step event.StepEvent
	done chan struct{}
}

type Run struct {
	ID           string
	Started      time.Time
	ConfigDigest string
	Legs         int
}

const queueSize = 4096

func Open(path string) (*Index, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	idx := &Index{db: db, ch: make(chan req, queueSize)}
	idx.wg.Add(1)
	go func() {
		defer idx.wg.Done()
		idx.loop()
	}()
	return idx, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			started TEXT NOT NULL,
			config_digest TEXT NOT NULL,
			legs INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS steps (
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			leg INTEGER NOT NULL,
			name TEXT NOT NULL,
			grp INTEGER NOT NULL,
			start_time REAL NOT NULL,
			land_time REAL,
			from_x REAL NOT NULL, from_y REAL NOT NULL, from_z REAL NOT NULL,
			to_x REAL NOT NULL, to_y REAL NOT NULL, to_z REAL NOT NULL,
			stride REAL NOT NULL,
			PRIMARY KEY (run_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_steps_run_leg ON steps(run_id, leg);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// BeginRun records a run; steps enqueued afterwards belong to it.
func (x *Index) BeginRun(r Run) {
	x.enqueue(req{kind: reqRun, run: r})
}

func (x *Index) StepStarted(ev event.StepEvent) {
	x.enqueue(req{kind: reqStart, step: ev})
}

func (x *Index) StepLanded(ev event.StepEvent) {
	x.enqueue(req{kind: reqLand, step: ev})
}

// Attach feeds step events from bus into the index.
func (x *Index) Attach(bus *event.Bus) {
	if x == nil || bus == nil {
		return
	}
	bus.Subscribe(event.EventStepStart, func(raw any) {
		if ev, ok := raw.(event.StepEvent); ok {
			x.StepStarted(ev)
		}
	})
	bus.Subscribe(event.EventStepLand, func(raw any) {
		if ev, ok := raw.(event.StepEvent); ok {
			x.StepLanded(ev)
		}
	})
}

func (x *Index) enqueue(r req) {
	if x == nil {
		return
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return
	}
	select {
	case x.ch <- r:
	default:
		x.dropped.Add(1)
	}
}

// Flush blocks until everything queued so far is committed.
func (x *Index) Flush(ctx context.Context) error {
	if x == nil {
		return nil
	}
	done := make(chan struct{})
	if sent, err := x.send(ctx, req{kind: reqFlush, done: done}); !sent {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (x *Index) send(ctx context.Context, r req) (bool, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return false, nil
	}
	select {
	case x.ch <- r:
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (x *Index) Dropped() uint64 {
	if x == nil {
		return 0
	}
	return x.dropped.Load()
}

func (x *Index) Close() error {
	if x == nil {
		return nil
	}
	var err error
	x.once.Do(func() {
		x.mu.Lock()
		x.closed = true
		close(x.ch)
		x.mu.Unlock()
		x.wg.Wait()
		err = x.db.Close()
	})
	return err
}

func (x *Index) loop() {
	ctx := context.Background()
	var (
		tx          *sql.Tx
		ops         int
		runID       string
		seq         int64
		open        = map[int]int64{}
		commitEvery = 500
		ticker      = time.NewTicker(time.Second)
	)
	defer ticker.Stop()

	begin := func() bool {
		if tx != nil {
			return true
		}
		t, err := x.db.BeginTx(ctx, nil)
		if err != nil {
			slog.Warn("step index begin failed", "error", err)
			return false
		}
		tx = t
		ops = 0
		return true
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			slog.Warn("step index commit failed", "error", err)
		}
		tx = nil
		ops = 0
	}
	defer commit()

	for {
		select {
		case r, ok := <-x.ch:
			if !ok {
				return
			}
			if r.kind == reqFlush {
				commit()
				close(r.done)
				continue
			}
			if !begin() {
				continue
			}
			var err error
			switch r.kind {
			case reqRun:
				runID = r.run.ID
				seq = 0
				clear(open)
				_, err = tx.Exec(`INSERT OR REPLACE INTO runs(run_id,started,config_digest,legs) VALUES(?,?,?,?)`,
					r.run.ID, r.run.Started.UTC().Format(time.RFC3339Nano), r.run.ConfigDigest, r.run.Legs)
			case reqStart:
				s := r.step
				seq++
				open[s.Leg] = seq
				_, err = tx.Exec(`INSERT OR REPLACE INTO steps(run_id,seq,leg,name,grp,start_time,from_x,from_y,from_z,to_x,to_y,to_z,stride)
					VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`,
					runID, seq, s.Leg, s.Name, s.Group, s.Time,
					s.From.X(), s.From.Y(), s.From.Z(), s.To.X(), s.To.Y(), s.To.Z(), s.To.Sub(s.From).Len())
			case reqLand:
				n, found := open[r.step.Leg]
				if !found {
					continue
				}
				delete(open, r.step.Leg)
				_, err = tx.Exec(`UPDATE steps SET land_time=? WHERE run_id=? AND seq=?`, r.step.Time, runID, n)
			}
			if err != nil {
				slog.Warn("step index write failed", "error", err)
			}
			ops++
			if ops >= commitEvery {
				commit()
			}
		case <-ticker.C:
			commit()
		}
	}
}

// LegStat summarizes one leg's steps in a run.
type LegStat struct {
	Leg          int
	Name         string
	Steps        int
	Landed       int
	MeanStride   float64
	MeanDuration float64
}

func (x *Index) LegStats(ctx context.Context, runID string) ([]LegStat, error) {
	if x == nil {
		return nil, fmt.Errorf("step index is nil")
	}
	rows, err := x.db.QueryContext(ctx, `
		SELECT leg, name, COUNT(*), COUNT(land_time), AVG(stride),
			COALESCE(AVG(land_time - start_time), 0)
		FROM steps WHERE run_id = ?
		GROUP BY leg, name ORDER BY leg`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LegStat
	for rows.Next() {
		var s LegStat
		if err := rows.Scan(&s.Leg, &s.Name, &s.Steps, &s.Landed, &s.MeanStride, &s.MeanDuration); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (x *Index) Runs(ctx context.Context) ([]Run, error) {
	if x == nil {
		return nil, fmt.Errorf("step index is nil")
	}
	rows, err := x.db.QueryContext(ctx, `SELECT run_id, started, config_digest, legs FROM runs ORDER BY started`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started string
		if err := rows.Scan(&r.ID, &started, &r.ConfigDigest, &r.Legs); err != nil {
			return nil, err
		}
		r.Started, _ = time.Parse(time.RFC3339Nano, started)
		out = append(out, r)
	}
	return out, rows.Err()
}

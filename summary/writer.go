// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package summary

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	sync "github.com/sasha-s/go-deadlock"
)

// EventsFile is the name of the event store inside a log directory.
const EventsFile = "events.db"

// Buffering defaults, as TensorFlow's FileWriter (max_queue=10, flush_secs=120).
const (
	DefaultMaxQueue      = 10
	DefaultFlushInterval = 120 * time.Second
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		name TEXT,
		started_at REAL
	)`,
	`CREATE TABLE IF NOT EXISTS scalars (
		run_id TEXT REFERENCES runs(id),
		step INTEGER,
		tag TEXT,
		value REAL,
		wall_time REAL
	)`,
	`CREATE INDEX IF NOT EXISTS scalars_tag ON scalars (tag, step)`,
	`CREATE TABLE IF NOT EXISTS graphs (
		run_id TEXT REFERENCES runs(id),
		wall_time REAL,
		description TEXT
	)`,
}

// Point is one stored scalar.
type Point struct {
	RunID    string    `json:"run_id"`
	Step     int64     `json:"step"`
	Value    float64   `json:"value"`
	WallTime time.Time `json:"wall_time"`
}

type pending struct {
	step int64
	wall time.Time
	val  Value
}

// Writer appends summaries of one run to {logDir}/events.db.
//
// AddSummary buffers values and writes them in a single transaction once
// MaxQueue values are pending or FlushInterval has passed since the last
// write. Flush and Close write immediately.
type Writer struct {
	// MaxQueue is the number of buffered values that forces a flush.
	MaxQueue int
	// FlushInterval is the longest time values stay buffered while
	// summaries keep arriving.
	FlushInterval time.Duration

	mu        sync.Mutex
	db        *sql.DB
	runID     string
	path      string
	pending   []pending
	lastFlush time.Time
	closed    bool
	now       func() time.Time
}

// Open creates or opens the event store in logDir and registers runID.
func Open(logDir, runID string) (*Writer, error) {
	if err := os.MkdirAll(logDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create log dir: %w", err)
	}
	path := filepath.Join(logDir, EventsFile)
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create event schema: %w", err)
		}
	}
	if _, err := db.Exec(
		`INSERT OR IGNORE INTO runs (id, name, started_at) VALUES (?, ?, ?)`,
		runID, filepath.Base(logDir), wallTime(time.Now()),
	); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to register run: %w", err)
	}
	return &Writer{
		MaxQueue:      DefaultMaxQueue,
		FlushInterval: DefaultFlushInterval,
		db:            db,
		runID:         runID,
		path:          path,
		lastFlush:     time.Now(),
		now:           time.Now,
	}, nil
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open event store %s: %w", path, err)
	}
	return db, nil
}

// RunID returns the id rows are written under.
func (w *Writer) RunID() string {
	return w.runID
}

// Path returns the event store path.
func (w *Writer) Path() string {
	return w.path
}

// AddGraph records a description of the model graph.
func (w *Writer) AddGraph(description string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("summary writer is closed")
	}
	_, err := w.db.Exec(`INSERT INTO graphs (run_id, wall_time, description) VALUES (?, ?, ?)`,
		w.runID, wallTime(time.Now()), description)
	if err != nil {
		return fmt.Errorf("failed to add graph: %w", err)
	}
	return nil
}

// AddSummary buffers values for step, flushing when the queue is full or
// the flush interval has elapsed.
func (w *Writer) AddSummary(values []Value, step int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("summary writer is closed")
	}
	now := w.now()
	for _, v := range values {
		w.pending = append(w.pending, pending{step: step, wall: now, val: v})
	}
	if len(w.pending) >= w.MaxQueue || now.Sub(w.lastFlush) >= w.FlushInterval {
		return w.flushLocked()
	}
	return nil
}

// Flush writes every buffered value.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

func (w *Writer) flushLocked() error {
	if len(w.pending) == 0 {
		w.lastFlush = w.now()
		return nil
	}
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin flush: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO scalars (run_id, step, tag, value, wall_time) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare flush: %w", err)
	}
	defer stmt.Close()
	for _, p := range w.pending {
		if _, err := stmt.Exec(w.runID, p.step, p.val.Tag, p.val.Value, wallTime(p.wall)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to write summary %s: %w", p.val.Tag, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit summaries: %w", err)
	}
	w.pending = w.pending[:0]
	w.lastFlush = w.now()
	return nil
}

// Scalars returns this run's points for tag, ordered by step.
func (w *Writer) Scalars(tag string) ([]Point, error) {
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return queryScalars(w.db, tag, w.runID)
}

// Close flushes pending values and closes the store.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	flushErr := w.flushLocked()
	return errors.Join(flushErr, w.db.Close())
}

// ReadScalars returns the points for tag stored under logDir across all
// runs, ordered by step. It returns os.ErrNotExist when the directory has
// no event store.
func ReadScalars(logDir, tag string) ([]Point, error) {
	path := filepath.Join(logDir, EventsFile)
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return queryScalars(db, tag, "")
}

func queryScalars(db *sql.DB, tag, runID string) ([]Point, error) {
	q := `SELECT run_id, step, value, wall_time FROM scalars WHERE tag = ?`
	args := []any{tag}
	if runID != "" {
		q += ` AND run_id = ?`
		args = append(args, runID)
	}
	q += ` ORDER BY step, wall_time`

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scalars: %w", err)
	}
	defer rows.Close()

	var points []Point
	for rows.Next() {
		var p Point
		var wall float64
		if err := rows.Scan(&p.RunID, &p.Step, &p.Value, &wall); err != nil {
			return nil, fmt.Errorf("failed to scan scalar: %w", err)
		}
		p.WallTime = time.UnixMicro(int64(wall * 1e6))
		points = append(points, p)
	}
	return points, rows.Err()
}

func wallTime(t time.Time) float64 {
	return float64(t.UnixMicro()) / 1e6
}

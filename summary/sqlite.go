package summary

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

var schema = []string{`
CREATE TABLE IF NOT EXISTS scalars(
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts REAL NOT NULL,
	step INTEGER NOT NULL,
	tag TEXT NOT NULL,
	value REAL NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS histograms(
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts REAL NOT NULL,
	step INTEGER NOT NULL,
	tag TEXT NOT NULL,
	count INTEGER NOT NULL,
	min REAL NOT NULL,
	max REAL NOT NULL,
	mean REAL NOT NULL,
	stddev REAL NOT NULL,
	buckets TEXT NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS images(
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts REAL NOT NULL,
	step INTEGER NOT NULL,
	tag TEXT NOT NULL,
	width INTEGER NOT NULL,
	height INTEGER NOT NULL,
	png BLOB NOT NULL
)`,
}

// SQLite Writer storing records in SQLite database file
type SQLite struct {
	db    *sql.DB
	guard stepGuard
}

// NewSQLite Opens (or creates) database at path. Parent directories are created if needed.
func NewSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Can't create summary directory '%s'", dir))
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't open summary database '%s'", path))
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, errors.Wrap(err, "Can't create summary tables")
		}
	}
	w := &SQLite{db: db}
	// Appending to existing database continues after its last step
	var last sql.NullInt64
	err = db.QueryRow(`SELECT MAX(step) FROM (
		SELECT step FROM scalars UNION ALL SELECT step FROM histograms UNION ALL SELECT step FROM images
	)`).Scan(&last)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "Can't read last summary step")
	}
	if last.Valid {
		w.guard = stepGuard{last: int(last.Int64), started: true}
	}
	return w, nil
}

func now() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// Scalar See Writer
func (w *SQLite) Scalar(step int, tag string, value float64) error {
	if err := w.accept(step); err != nil {
		return err
	}
	_, err := w.db.Exec("INSERT INTO scalars(ts, step, tag, value) VALUES(?,?,?,?)", now(), step, tag, value)
	return err
}

// Histogram See Writer
func (w *SQLite) Histogram(step int, tag string, values []float64) error {
	h, err := NewHistogram(values, DefaultBins)
	if err != nil {
		return err
	}
	if err := w.accept(step); err != nil {
		return err
	}
	buckets, err := json.Marshal(struct {
		Dividers []float64 `json:"dividers"`
		Buckets  []float64 `json:"buckets"`
	}{h.Dividers, h.Buckets})
	if err != nil {
		return errors.Wrap(err, "Can't encode buckets")
	}
	_, err = w.db.Exec("INSERT INTO histograms(ts, step, tag, count, min, max, mean, stddev, buckets) VALUES(?,?,?,?,?,?,?,?,?)",
		now(), step, tag, h.Count, h.Min, h.Max, h.Mean, h.StdDev, string(buckets))
	return err
}

// Image See Writer
func (w *SQLite) Image(step int, tag string, img image.Image) error {
	if img == nil {
		return fmt.Errorf("Image is nil")
	}
	if err := w.accept(step); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return errors.Wrap(err, "Can't encode image")
	}
	bounds := img.Bounds()
	_, err := w.db.Exec("INSERT INTO images(ts, step, tag, width, height, png) VALUES(?,?,?,?,?,?)",
		now(), step, tag, bounds.Dx(), bounds.Dy(), buf.Bytes())
	return err
}

// Scalars Returns scalar values of tag ordered by step
func (w *SQLite) Scalars(tag string) ([]Point, error) {
	if w.db == nil {
		return nil, errClosed
	}
	rows, err := w.db.Query("SELECT step, value FROM scalars WHERE tag = ? ORDER BY step ASC, id ASC", tag)
	if err != nil {
		return nil, errors.Wrap(err, "Can't query scalars")
	}
	defer rows.Close()
	points := []Point{}
	for rows.Next() {
		var p Point
		if err := rows.Scan(&p.Step, &p.Value); err != nil {
			return nil, errors.Wrap(err, "Can't scan scalar")
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// Close See Writer
func (w *SQLite) Close() error {
	if w.db == nil {
		return nil
	}
	err := w.db.Close()
	w.db = nil
	return err
}

func (w *SQLite) accept(step int) error {
	if w.db == nil {
		return errClosed
	}
	return w.guard.check(step)
}

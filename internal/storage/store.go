// Package storage keeps a catalog of runs in SQLite and writes field
// snapshots as CSV files next to it, one directory per run.
package storage

import (
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/AndresSepulveda/gpu-ocean/internal/metrics"
)

const (
	catalogFile = "catalog.db"
	// fixed width so created_at sorts lexically
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

var ErrNotFound = errors.New("storage: run not found")

type Store struct {
	baseDir string
	db      *sql.DB
}

type RunMetadata struct {
	ID         string
	Scenario   string
	Timestamp  time.Time
	Nx, Ny     int
	Dx, Dy     float64
	Dt         float64
	Duration   float64
	Integrator string
	Boundary   string
	Backend    string
	Metrics    map[string]float64
}

// Open creates baseDir if needed and opens the catalog inside it.
func Open(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: cannot create directory %s: %w", baseDir, err)
	}
	db, err := sql.Open("sqlite", filepath.Join(baseDir, catalogFile))
	if err != nil {
		return nil, fmt.Errorf("storage: cannot open catalog: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: cannot connect to catalog: %w", err)
	}

	s := &Store{baseDir: baseDir, db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migration failed: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			scenario TEXT NOT NULL,
			created_at TEXT NOT NULL,
			nx INTEGER NOT NULL,
			ny INTEGER NOT NULL,
			dx REAL NOT NULL,
			dy REAL NOT NULL,
			dt REAL NOT NULL,
			duration REAL NOT NULL,
			integrator TEXT NOT NULL,
			boundary TEXT NOT NULL,
			backend TEXT NOT NULL,
			metrics TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS samples (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			t REAL NOT NULL,
			mass REAL NOT NULL,
			energy REAL NOT NULL,
			max_speed REAL NOT NULL,
			max_cfl REAL NOT NULL,
			PRIMARY KEY (run_id, seq)
		);
	`)
	return err
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Dir is the directory holding a run's files.
func (s *Store) Dir(runID string) string { return filepath.Join(s.baseDir, runID) }

// Save records a run and its per-output samples in one transaction. An
// empty meta.ID is replaced by one derived from the scenario and time.
func (s *Store) Save(meta RunMetadata, samples []metrics.Sample) (string, error) {
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	if meta.ID == "" {
		meta.ID = fmt.Sprintf("%s_%d", meta.Scenario, meta.Timestamp.UnixNano())
	}
	if meta.Metrics == nil {
		meta.Metrics = map[string]float64{}
	}
	encoded, err := json.Marshal(meta.Metrics)
	if err != nil {
		return "", fmt.Errorf("storage: cannot encode metrics: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("storage: cannot begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (id, scenario, created_at, nx, ny, dx, dy, dt, duration, integrator, boundary, backend, metrics)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		meta.ID, meta.Scenario, meta.Timestamp.UTC().Format(timeLayout),
		meta.Nx, meta.Ny, meta.Dx, meta.Dy, meta.Dt, meta.Duration,
		meta.Integrator, meta.Boundary, meta.Backend, string(encoded),
	)
	if err != nil {
		return "", fmt.Errorf("storage: cannot save run: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO samples (run_id, seq, t, mass, energy, max_speed, max_cfl) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("storage: cannot prepare samples: %w", err)
	}
	defer stmt.Close()
	for i, smp := range samples {
		if _, err := stmt.Exec(meta.ID, i, smp.T, smp.Mass, smp.Energy, smp.MaxSpeed, smp.MaxCFL); err != nil {
			return "", fmt.Errorf("storage: cannot save sample %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("storage: cannot commit run: %w", err)
	}
	return meta.ID, nil
}

const runColumns = `id, scenario, created_at, nx, ny, dx, dy, dt, duration, integrator, boundary, backend, metrics`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunMetadata, error) {
	var (
		m       RunMetadata
		created string
		encoded string
	)
	err := row.Scan(&m.ID, &m.Scenario, &created, &m.Nx, &m.Ny, &m.Dx, &m.Dy, &m.Dt, &m.Duration,
		&m.Integrator, &m.Boundary, &m.Backend, &encoded)
	if err != nil {
		return m, err
	}
	if ts, err := time.Parse(timeLayout, created); err == nil {
		m.Timestamp = ts
	}
	if err := json.Unmarshal([]byte(encoded), &m.Metrics); err != nil {
		return m, fmt.Errorf("storage: corrupt metrics for run %s: %w", m.ID, err)
	}
	return m, nil
}

// List returns every run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	rows, err := s.db.Query(`SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunMetadata, 0)
	for rows.Next() {
		m, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: cannot scan run: %w", err)
		}
		runs = append(runs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	m, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadSamples returns a run's samples in output order.
func (s *Store) LoadSamples(runID string) ([]metrics.Sample, error) {
	if _, err := s.Load(runID); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`SELECT t, mass, energy, max_speed, max_cfl FROM samples WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query samples: %w", err)
	}
	defer rows.Close()

	out := make([]metrics.Sample, 0)
	for rows.Next() {
		var smp metrics.Sample
		if err := rows.Scan(&smp.T, &smp.Mass, &smp.Energy, &smp.MaxSpeed, &smp.MaxCFL); err != nil {
			return nil, fmt.Errorf("storage: cannot scan sample: %w", err)
		}
		out = append(out, smp)
	}
	return out, rows.Err()
}

// WriteField stores one interior field as CSV under the run directory and
// returns the file path.
func (s *Store) WriteField(runID, name string, index int, field [][]float32) (string, error) {
	dir := s.Dir(runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%04d.csv", name, index))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}

	w := csv.NewWriter(f)
	record := make([]string, 0)
	for _, row := range field {
		record = record[:0]
		for _, v := range row {
			record = append(record, strconv.FormatFloat(float64(v), 'g', -1, 32))
		}
		if err := w.Write(record); err != nil {
			f.Close()
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("storage: closing %s: %w", path, err)
	}
	return path, nil
}

func ReadField(path string) ([][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(records))
	for j, rec := range records {
		out[j] = make([]float32, len(rec))
		for i, cell := range rec {
			v, err := strconv.ParseFloat(cell, 32)
			if err != nil {
				return nil, fmt.Errorf("storage: %s row %d col %d: %w", path, j, i, err)
			}
			out[j][i] = float32(v)
		}
	}
	return out, nil
}

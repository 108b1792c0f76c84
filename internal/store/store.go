package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"lightcurve/pkg/lightcurve"
)

// ErrRunNotFound is returned by LoadCurve for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// Store wraps SQLite-backed persistence for computed light curves.
type Store struct {
	DB *sql.DB
}

// RunInfo summarizes one stored run.
type RunInfo struct {
	ID         int64
	Label      string
	Method     string
	Frames     int
	References int
	CreatedAt  time.Time
}

// New opens (or creates) the database at path and ensures schema.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	// A single connection serializes writers on the same file.
	db.SetMaxOpenConns(1)
	s := &Store{DB: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.DB.Close()
}

func (s *Store) ensureSchema() error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS runs (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            label TEXT,
            method TEXT NOT NULL,
            frame_count INTEGER NOT NULL,
            has_times INTEGER NOT NULL,
            created_at TIMESTAMP NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS apertures (
            run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
            idx INTEGER NOT NULL,
            role TEXT NOT NULL,
            name TEXT,
            x REAL NOT NULL,
            y REAL NOT NULL,
            radius INTEGER NOT NULL,
            PRIMARY KEY (run_id, role, idx)
        );`,
		`CREATE TABLE IF NOT EXISTS measurements (
            run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
            role TEXT NOT NULL,
            aperture_idx INTEGER NOT NULL,
            frame_idx INTEGER NOT NULL,
            jd REAL,
            luminosity REAL NOT NULL,
            magnitude REAL,
            PRIMARY KEY (run_id, role, aperture_idx, frame_idx)
        );`,
	}
	for _, stmt := range stmts {
		if _, err := s.DB.Exec(stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// SaveCurve stores a curve in one transaction and returns the run id.
func (s *Store) SaveCurve(ctx context.Context, label string, c *lightcurve.Curve) (int64, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs(label, method, frame_count, has_times, created_at) VALUES (?, ?, ?, ?, ?)`,
		label, string(c.Method), c.Len(), c.HasTimes, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}

	apStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO apertures(run_id, idx, role, name, x, y, radius) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare aperture insert: %w", err)
	}
	defer apStmt.Close()

	mStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO measurements(run_id, role, aperture_idx, frame_idx, jd, luminosity, magnitude) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare measurement insert: %w", err)
	}
	defer mStmt.Close()

	save := func(a lightcurve.Aperture, idx int, lum []float64, mag []lightcurve.Magnitude) error {
		if _, err := apStmt.ExecContext(ctx, runID, idx, a.Role.String(), a.Name, a.Center.X, a.Center.Y, a.Radius); err != nil {
			return fmt.Errorf("insert aperture: %w", err)
		}
		for i := range lum {
			var jd, m sql.NullFloat64
			if c.HasTimes {
				jd = sql.NullFloat64{Float64: c.Times[i], Valid: true}
			}
			if mag[i].Defined {
				m = sql.NullFloat64{Float64: mag[i].Value, Valid: true}
			}
			if _, err := mStmt.ExecContext(ctx, runID, a.Role.String(), idx, i, jd, lum[i], m); err != nil {
				return fmt.Errorf("insert measurement: %w", err)
			}
		}
		return nil
	}

	if err := save(c.Target, 0, c.TargetLuminosity, c.TargetMagnitude); err != nil {
		return 0, err
	}
	for r, ref := range c.References {
		if err := save(ref, r, c.ReferenceLuminosity[r], c.ReferenceMagnitude[r]); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit save: %w", err)
	}
	return runID, nil
}

// LoadCurve reads a stored run back into a Curve.
func (s *Store) LoadCurve(ctx context.Context, id int64) (*lightcurve.Curve, error) {
	var (
		method     string
		frameCount int
		hasTimes   bool
	)
	err := s.DB.QueryRowContext(ctx,
		`SELECT method, frame_count, has_times FROM runs WHERE id = ?`, id).Scan(&method, &frameCount, &hasTimes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load run %d: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load run %d: %w", id, err)
	}

	c := &lightcurve.Curve{
		Method:           lightcurve.Method(method),
		HasTimes:         hasTimes,
		Times:            make([]float64, frameCount),
		TargetLuminosity: make([]float64, frameCount),
		TargetMagnitude:  make([]lightcurve.Magnitude, frameCount),
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT role, idx, name, x, y, radius FROM apertures WHERE run_id = ? ORDER BY role DESC, idx`, id)
	if err != nil {
		return nil, fmt.Errorf("load apertures: %w", err)
	}
	for rows.Next() {
		var (
			role string
			idx  int
			name sql.NullString
			a    lightcurve.Aperture
		)
		if err := rows.Scan(&role, &idx, &name, &a.Center.X, &a.Center.Y, &a.Radius); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan aperture: %w", err)
		}
		a.Name = name.String
		if role == lightcurve.RoleTarget.String() {
			a.Role = lightcurve.RoleTarget
			c.Target = a
			continue
		}
		a.Role = lightcurve.RoleReference
		c.References = append(c.References, a)
		c.ReferenceLuminosity = append(c.ReferenceLuminosity, make([]float64, frameCount))
		c.ReferenceMagnitude = append(c.ReferenceMagnitude, make([]lightcurve.Magnitude, frameCount))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load apertures: %w", err)
	}

	rows, err = s.DB.QueryContext(ctx,
		`SELECT role, aperture_idx, frame_idx, jd, luminosity, magnitude FROM measurements WHERE run_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("load measurements: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			role        string
			apIdx, fIdx int
			jd, mag     sql.NullFloat64
			lum         float64
		)
		if err := rows.Scan(&role, &apIdx, &fIdx, &jd, &lum, &mag); err != nil {
			return nil, fmt.Errorf("scan measurement: %w", err)
		}
		if fIdx < 0 || fIdx >= frameCount {
			return nil, fmt.Errorf("load measurements: frame index %d out of range", fIdx)
		}
		m := lightcurve.Magnitude{Value: mag.Float64, Defined: mag.Valid}
		if role == lightcurve.RoleTarget.String() {
			c.TargetLuminosity[fIdx] = lum
			c.TargetMagnitude[fIdx] = m
			c.Times[fIdx] = jd.Float64
			continue
		}
		if apIdx < 0 || apIdx >= len(c.References) {
			return nil, fmt.Errorf("load measurements: reference index %d out of range", apIdx)
		}
		c.ReferenceLuminosity[apIdx][fIdx] = lum
		c.ReferenceMagnitude[apIdx][fIdx] = m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load measurements: %w", err)
	}
	return c, nil
}

// ListRuns returns stored runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]RunInfo, error) {
	rows, err := s.DB.QueryContext(ctx, `
        SELECT r.id, COALESCE(r.label, ''), r.method, r.frame_count, r.created_at,
               (SELECT COUNT(*) FROM apertures a WHERE a.run_id = r.id AND a.role = ?)
        FROM runs r ORDER BY r.id DESC`, lightcurve.RoleReference.String())
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var r RunInfo
		if err := rows.Scan(&r.ID, &r.Label, &r.Method, &r.Frames, &r.CreatedAt, &r.References); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

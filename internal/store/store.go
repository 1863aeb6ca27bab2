// Package store persists period tables and pipeline runs in a SQLite
// database. The core pipeline never touches storage; the store is the
// external collaborator the CLI uses to create the database, bulk-ingest
// spreadsheet files, load tables back into a registry, and save pipeline
// outputs.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	// SQLite driver.
	_ "github.com/mattn/go-sqlite3"

	"github.com/agentstation/utc"

	"github.com/crosspoll/harmonizer/internal/ingest"
	"github.com/crosspoll/harmonizer/pkg/constants"
	"github.com/crosspoll/harmonizer/pkg/errors"
	"github.com/crosspoll/harmonizer/pkg/tables"
)

// Store is a SQLite-backed table store. Safe for concurrent use by CLI
// commands; the mutex serializes writes, which SQLite requires anyway.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the store at path, with WAL journaling
// and foreign keys on.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
			return nil, errors.WrapIO("create", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on", path))
	if err != nil {
		return nil, errors.WrapStore("open", "", err)
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate creates the schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS datasets (
		period     TEXT PRIMARY KEY,
		stage      TEXT NOT NULL DEFAULT 'ingested',
		columns    TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS dataset_rows (
		period TEXT NOT NULL REFERENCES datasets(period) ON DELETE CASCADE,
		idx    INTEGER NOT NULL,
		cells  TEXT NOT NULL,
		PRIMARY KEY (period, idx)
	);
	CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		started_at  TEXT NOT NULL,
		finished_at TEXT,
		status      TEXT NOT NULL,
		detail      TEXT
	);`

	if _, err := s.db.Exec(schema); err != nil {
		return errors.WrapStore("create", "", err)
	}
	return nil
}

// IngestCSV bulk-loads a CSV/TSV file as the period's table in one
// transaction, replacing any previous table for that period.
func (s *Store) IngestCSV(ctx context.Context, path string, period tables.Period) (*tables.Table, error) {
	t, err := ingest.ReadFile(path, period)
	if err != nil {
		return nil, err
	}
	if err := s.SaveTable(ctx, t, "ingested"); err != nil {
		return nil, err
	}
	return t, nil
}

// SaveTable persists a table, replacing any previous table for its
// period. The stage tag records which pipeline stage produced it.
func (s *Store) SaveTable(ctx context.Context, t *tables.Table, stage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapStore("save", string(t.Period()), err)
	}
	defer func() { _ = tx.Rollback() }()

	columns, err := json.Marshal(t.Columns())
	if err != nil {
		return errors.WrapStore("save", string(t.Period()), err)
	}

	now := utc.Now().Format(constants.TimeFormatISO8601)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO datasets (period, stage, columns, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(period) DO UPDATE SET stage=excluded.stage,
		   columns=excluded.columns, updated_at=excluded.updated_at`,
		string(t.Period()), stage, string(columns), now, now); err != nil {
		return errors.WrapStore("save", string(t.Period()), err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM dataset_rows WHERE period = ?`, string(t.Period())); err != nil {
		return errors.WrapStore("save", string(t.Period()), err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO dataset_rows (period, idx, cells) VALUES (?, ?, ?)`)
	if err != nil {
		return errors.WrapStore("save", string(t.Period()), err)
	}
	defer func() { _ = stmt.Close() }()

	for i, row := range t.Rows() {
		cells, err := json.Marshal(row)
		if err != nil {
			return errors.WrapStore("save", string(t.Period()), err)
		}
		if _, err := stmt.ExecContext(ctx, string(t.Period()), i, string(cells)); err != nil {
			return errors.WrapStore("save", string(t.Period()), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.WrapStore("save", string(t.Period()), err)
	}
	return nil
}

// LoadTable reconstructs one period's table.
func (s *Store) LoadTable(ctx context.Context, period tables.Period) (*tables.Table, error) {
	var columnsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT columns FROM datasets WHERE period = ?`, string(period)).Scan(&columnsJSON)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("dataset", string(period))
	}
	if err != nil {
		return nil, errors.WrapStore("load", string(period), err)
	}

	var columns []string
	if err := json.Unmarshal([]byte(columnsJSON), &columns); err != nil {
		return nil, errors.WrapStore("load", string(period), err)
	}

	t := tables.New(period, columns...)

	rows, err := s.db.QueryContext(ctx,
		`SELECT cells FROM dataset_rows WHERE period = ? ORDER BY idx`, string(period))
	if err != nil {
		return nil, errors.WrapStore("load", string(period), err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var cells string
		if err := rows.Scan(&cells); err != nil {
			return nil, errors.WrapStore("load", string(period), err)
		}
		row := make(tables.Row)
		if err := json.Unmarshal([]byte(cells), &row); err != nil {
			return nil, errors.WrapStore("load", string(period), err)
		}
		t.Append(row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapStore("load", string(period), err)
	}
	return t, nil
}

// LoadRegistry reconstructs a registry holding every stored table.
func (s *Store) LoadRegistry(ctx context.Context) (*tables.Registry, error) {
	periods, err := s.Periods(ctx)
	if err != nil {
		return nil, err
	}

	reg := tables.NewRegistry(tables.WithCapacity(len(periods)))
	for _, p := range periods {
		t, err := s.LoadTable(ctx, p)
		if err != nil {
			return nil, err
		}
		if err := reg.Add(t); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// SaveRegistry persists every table in the registry under one stage tag.
func (s *Store) SaveRegistry(ctx context.Context, reg *tables.Registry, stage string) error {
	for _, t := range reg.Tables() {
		if err := s.SaveTable(ctx, t, stage); err != nil {
			return err
		}
	}
	return nil
}

// Periods lists the stored periods in ascending order.
func (s *Store) Periods(ctx context.Context) ([]tables.Period, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT period FROM datasets ORDER BY period`)
	if err != nil {
		return nil, errors.WrapStore("list", "", err)
	}
	defer func() { _ = rows.Close() }()

	var periods []tables.Period
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, errors.WrapStore("list", "", err)
		}
		periods = append(periods, tables.Period(p))
	}
	return periods, rows.Err()
}

// Dataset summarizes one stored table.
type Dataset struct {
	Period    tables.Period `json:"period" yaml:"period"`
	Stage     string        `json:"stage" yaml:"stage"`
	Columns   int           `json:"columns" yaml:"columns"`
	Rows      int           `json:"rows" yaml:"rows"`
	UpdatedAt string        `json:"updated_at" yaml:"updated_at"`
}

// Datasets lists summaries for every stored table.
func (s *Store) Datasets(ctx context.Context) ([]Dataset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.period, d.stage, d.columns, d.updated_at,
		       (SELECT COUNT(*) FROM dataset_rows r WHERE r.period = d.period)
		FROM datasets d ORDER BY d.period`)
	if err != nil {
		return nil, errors.WrapStore("list", "", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Dataset
	for rows.Next() {
		var d Dataset
		var period, columnsJSON string
		if err := rows.Scan(&period, &d.Stage, &columnsJSON, &d.UpdatedAt, &d.Rows); err != nil {
			return nil, errors.WrapStore("list", "", err)
		}
		d.Period = tables.Period(period)
		var columns []string
		if err := json.Unmarshal([]byte(columnsJSON), &columns); err != nil {
			return nil, errors.WrapStore("list", "", err)
		}
		d.Columns = len(columns)
		out = append(out, d)
	}
	return out, rows.Err()
}

// Run records one pipeline run's lifecycle.
type Run struct {
	ID         string `json:"id" yaml:"id"`
	StartedAt  string `json:"started_at" yaml:"started_at"`
	FinishedAt string `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Status     string `json:"status" yaml:"status"`
	Detail     string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// RecordRun inserts or updates a run record.
func (s *Store) RecordRun(ctx context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, status, detail)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET finished_at=excluded.finished_at,
		   status=excluded.status, detail=excluded.detail`,
		run.ID, run.StartedAt, nullable(run.FinishedAt), run.Status, nullable(run.Detail))
	if err != nil {
		return errors.WrapStore("save", run.ID, err)
	}
	return nil
}

// History lists recorded runs, most recent first.
func (s *Store) History(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, status, detail
		 FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, errors.WrapStore("list", "runs", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Run
	for rows.Next() {
		var r Run
		var finished, detail sql.NullString
		if err := rows.Scan(&r.ID, &r.StartedAt, &finished, &r.Status, &detail); err != nil {
			return nil, errors.WrapStore("list", "runs", err)
		}
		r.FinishedAt = finished.String
		r.Detail = detail.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// nullable maps "" to NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

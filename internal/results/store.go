// Package results archives analysed runs in a local sqlite database so that
// earlier analyses can be listed and shown again without the report files.
package results

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/saveenergy/sockreport/internal/config"
	"github.com/saveenergy/sockreport/internal/loader"
	"github.com/saveenergy/sockreport/internal/logging"
	rerrors "github.com/saveenergy/sockreport/pkg/errors"
	"github.com/saveenergy/sockreport/pkg/sockperf"
)

const (
	retentionDays   = 90
	cleanupInterval = 1 * time.Hour
)

var log = logging.NewLogger("results")

// StoredResult is one archived test record.
type StoredResult struct {
	Test    string           `json:"test"`
	Kind    string           `json:"kind"`
	Path    string           `json:"path"`
	Metrics sockperf.Metrics `json:"metrics"`
}

// Record is an archived run.
type Record struct {
	ID        string          `json:"id"`
	Label     string          `json:"label"`
	CreatedAt time.Time       `json:"created_at"`
	Results   []StoredResult  `json:"results"`
	Missing   []StoredMissing `json:"missing"`
}

// StoredMissing is a test that had no report file when the run was archived.
type StoredMissing struct {
	Test string `json:"test"`
	Path string `json:"path"`
}

// Entry is the list view of an archived run.
type Entry struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
	Tests     int       `json:"tests"`
	Missing   int       `json:"missing"`
}

// Run rebuilds a loader run from the archived snapshot. Test kinds and
// payload sizes come from suite when the test name is known to it.
func (r *Record) Run(suite config.Suite) *loader.Run {
	run := &loader.Run{Label: r.Label}
	for _, res := range r.Results {
		test, ok := suite.Lookup(res.Test)
		if !ok {
			test = config.Test{Name: res.Test, Kind: res.Kind}
		}
		run.Results = append(run.Results, loader.Result{Test: test, Path: res.Path, Metrics: res.Metrics})
	}
	for _, m := range r.Missing {
		test, ok := suite.Lookup(m.Test)
		if !ok {
			test = config.Test{Name: m.Test}
		}
		run.Missing = append(run.Missing, loader.Missing{Test: test, Path: m.Path})
	}
	return run
}

type Store struct {
	db         *sql.DB
	maxResults int
	stopCh     chan struct{}
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

func New(dbPath string, maxResults int) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, rerrors.ErrArchiveFailed("open sqlite", err)
	}

	db.SetMaxOpenConns(3)
	db.SetMaxIdleConns(2)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, rerrors.ErrArchiveFailed("ping sqlite", err)
	}

	// modernc.org/sqlite requires explicit PRAGMAs (not query-string params)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, rerrors.ErrArchiveFailed("set WAL mode", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, rerrors.ErrArchiveFailed("set busy_timeout", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, rerrors.ErrArchiveFailed("migrate", err)
	}

	s := &Store{
		db:         db,
		maxResults: maxResults,
		stopCh:     make(chan struct{}),
	}

	s.cleanup()

	s.wg.Add(1)
	go s.cleanupLoop()

	return s, nil
}

// Open creates the data directory if needed and opens the archive configured
// by cfg.
func Open(cfg *config.Config) (*Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, rerrors.ErrArchiveFailed("create data dir", err)
	}
	return New(cfg.ArchivePath(), cfg.MaxStoredRuns)
}

func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
		if err := s.db.Close(); err != nil {
			log.Warn("close failed", logging.F("error", err))
		}
	})
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			label TEXT NOT NULL,
			missing_json TEXT NOT NULL DEFAULT '[]',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
		`CREATE TABLE IF NOT EXISTS run_results (
			run_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			test TEXT NOT NULL,
			kind TEXT NOT NULL DEFAULT '',
			path TEXT NOT NULL DEFAULT '',
			metrics_json TEXT NOT NULL,
			PRIMARY KEY (run_id, position)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Save archives a snapshot of run under label and returns its id.
func (s *Store) Save(label string, run *loader.Run) (string, error) {
	if run == nil {
		return "", rerrors.ErrArchiveFailed("nothing to save", nil)
	}
	missing := make([]StoredMissing, 0, len(run.Missing))
	for _, m := range run.Missing {
		missing = append(missing, StoredMissing{Test: m.Test.Name, Path: m.Path})
	}
	missingJSON, err := json.Marshal(missing)
	if err != nil {
		return "", rerrors.ErrArchiveFailed("encode missing list", err)
	}

	id := uuid.New().String()
	tx, err := s.db.Begin()
	if err != nil {
		return "", rerrors.ErrArchiveFailed("begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO runs (id, label, missing_json, created_at) VALUES (?, ?, ?, ?)`,
		id, label, string(missingJSON), time.Now().UTC(),
	); err != nil {
		return "", rerrors.ErrArchiveFailed("insert run", err)
	}
	for i, res := range run.Results {
		metricsJSON, err := json.Marshal(res.Metrics)
		if err != nil {
			return "", rerrors.ErrArchiveFailed("encode metrics for "+res.Test.Name, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO run_results (run_id, position, test, kind, path, metrics_json) VALUES (?, ?, ?, ?, ?, ?)`,
			id, i, res.Test.Name, res.Test.Kind, res.Path, string(metricsJSON),
		); err != nil {
			return "", rerrors.ErrArchiveFailed("insert result", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", rerrors.ErrArchiveFailed("commit run", err)
	}
	log.Debug("run archived", logging.F("id", id), logging.F("label", label), logging.F("results", len(run.Results)))
	return id, nil
}

// Get returns the archived run, or nil when no run has that id.
func (s *Store) Get(id string) (*Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	r := &Record{ID: id}
	var missingJSON string
	err := s.db.QueryRow(
		`SELECT label, missing_json, created_at FROM runs WHERE id = ?`, id,
	).Scan(&r.Label, &missingJSON, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, rerrors.ErrArchiveFailed("query run", err)
	}
	if err := json.Unmarshal([]byte(missingJSON), &r.Missing); err != nil {
		return nil, rerrors.ErrArchiveFailed("decode missing list", err)
	}

	rows, err := s.db.Query(
		`SELECT test, kind, path, metrics_json FROM run_results WHERE run_id = ? ORDER BY position`, id,
	)
	if err != nil {
		return nil, rerrors.ErrArchiveFailed("query results", err)
	}
	defer rows.Close()
	for rows.Next() {
		var res StoredResult
		var metricsJSON string
		if err := rows.Scan(&res.Test, &res.Kind, &res.Path, &metricsJSON); err != nil {
			return nil, rerrors.ErrArchiveFailed("scan result", err)
		}
		if err := json.Unmarshal([]byte(metricsJSON), &res.Metrics); err != nil {
			return nil, rerrors.ErrArchiveFailed(fmt.Sprintf("decode metrics for %s", res.Test), err)
		}
		r.Results = append(r.Results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, rerrors.ErrArchiveFailed("iterate results", err)
	}
	return r, nil
}

// List returns the newest archived runs first. limit <= 0 lists everything.
func (s *Store) List(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT r.id, r.label, r.missing_json, r.created_at,
			(SELECT COUNT(*) FROM run_results rr WHERE rr.run_id = r.id)
		FROM runs r ORDER BY r.created_at DESC, r.id LIMIT ?`, limit,
	)
	if err != nil {
		return nil, rerrors.ErrArchiveFailed("list runs", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var missingJSON string
		if err := rows.Scan(&e.ID, &e.Label, &missingJSON, &e.CreatedAt, &e.Tests); err != nil {
			return nil, rerrors.ErrArchiveFailed("scan run", err)
		}
		var missing []StoredMissing
		if err := json.Unmarshal([]byte(missingJSON), &missing); err == nil {
			e.Missing = len(missing)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, rerrors.ErrArchiveFailed("iterate runs", err)
	}
	return entries, nil
}

func (s *Store) cleanup() {
	cutoff := time.Now().UTC().Add(-retentionDays * 24 * time.Hour)
	res, err := s.db.Exec(`DELETE FROM runs WHERE created_at < ?`, cutoff)
	if err != nil {
		log.Warn("cleanup (age) failed", logging.F("error", err))
	} else if n, _ := res.RowsAffected(); n > 0 {
		log.Info("cleanup: removed expired runs", logging.F("count", n))
	}

	// Trim to max count, keeping newest
	if s.maxResults > 0 {
		res, err = s.db.Exec(
			`DELETE FROM runs WHERE id NOT IN (
				SELECT id FROM runs ORDER BY created_at DESC LIMIT ?
			)`, s.maxResults)
		if err != nil {
			log.Warn("cleanup (count) failed", logging.F("error", err))
		} else if n, _ := res.RowsAffected(); n > 0 {
			log.Info("cleanup: trimmed to max",
				logging.F("removed", n),
				logging.F("max", s.maxResults))
		}
	}

	if _, err := s.db.Exec(`DELETE FROM run_results WHERE run_id NOT IN (SELECT id FROM runs)`); err != nil {
		log.Warn("cleanup (orphans) failed", logging.F("error", err))
	}
}

func (s *Store) cleanupLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

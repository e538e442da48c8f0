// Package resultdb persists per-session recovery outcomes to SQLite. The
// journal is a diagnostics artifact like the JSON report: the pipeline never
// reads it back, and it is disabled unless configured. A file lock guards
// the database against concurrent recovery runs sharing one journal.
package resultdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"fluxrescue/internal/recovery"
)

// Store manages the results journal.
type Store struct {
	db   *sql.DB
	lock *flock.Flock
	path string
}

// Open creates or connects to the journal at path and applies migrations.
// It refuses to open a journal another process holds locked.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure results dir: %w", err)
	}

	lock := flock.New(path + ".lock")
	held, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire results lock: %w", err)
	}
	if !held {
		return nil, fmt.Errorf("results journal %s is locked by another process", path)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open results db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, lock: lock, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, err
	}
	return store, nil
}

// Close releases the database and the journal lock.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var err error
	if s.db != nil {
		err = s.db.Close()
	}
	if s.lock != nil {
		if unlockErr := s.lock.Unlock(); unlockErr != nil && err == nil {
			err = unlockErr
		}
	}
	return err
}

// Path returns the journal location.
func (s *Store) Path() string { return s.path }

// RecordSession writes a finished session and all its sector outcomes in one
// transaction. Recording the same session twice replaces the earlier rows.
func (s *Store) RecordSession(ctx context.Context, session *recovery.Session) error {
	if session == nil {
		return fmt.Errorf("session is required")
	}
	stats := session.Stats()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin results tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO sessions (
            id, started_at, recorded_at, stage, cylinders, heads, sector_size,
            sectors_good, sectors_repaired, sectors_failed, weak_bits
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.Started.Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano),
		session.Stage.String(),
		session.Cylinders,
		session.Heads,
		session.SectorSize,
		stats.GoodSectors,
		stats.RepairedSectors,
		stats.FailedSectors,
		stats.WeakBitsSeen,
	); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM sector_outcomes WHERE session_id = ?`, session.ID); err != nil {
		return fmt.Errorf("clear sector outcomes: %w", err)
	}
	for _, track := range session.Tracks {
		for _, sec := range track.Sectors {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO sector_outcomes (
                    session_id, cylinder, head, sector,
                    status, kind, method, confidence, corrections
                ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				session.ID,
				sec.Cyl,
				sec.Head,
				sec.Number,
				sec.Status.String(),
				sec.Kind.String(),
				sec.Method.String(),
				sec.Confidence,
				sec.Corrections,
			); err != nil {
				return fmt.Errorf("insert sector outcome: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit results tx: %w", err)
	}
	return nil
}

// SessionSummary is one row of the sessions table.
type SessionSummary struct {
	ID              string
	StartedAt       time.Time
	Stage           string
	Cylinders       int
	Heads           int
	SectorsGood     int
	SectorsRepaired int
	SectorsFailed   int
}

// ListSessions returns recorded sessions, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, stage, cylinders, heads,
                sectors_good, sectors_repaired, sectors_failed
           FROM sessions ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var sum SessionSummary
		var started string
		if err := rows.Scan(&sum.ID, &started, &sum.Stage, &sum.Cylinders, &sum.Heads,
			&sum.SectorsGood, &sum.SectorsRepaired, &sum.SectorsFailed); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if ts, parseErr := time.Parse(time.RFC3339Nano, started); parseErr == nil {
			sum.StartedAt = ts
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// SectorOutcome is one row of the sector_outcomes table.
type SectorOutcome struct {
	Cylinder    int
	Head        int
	Sector      int
	Status      string
	Kind        string
	Method      string
	Confidence  int
	Corrections int
}

// SessionOutcomes returns the per-sector rows for one session in address
// order.
func (s *Store) SessionOutcomes(ctx context.Context, sessionID string) ([]SectorOutcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cylinder, head, sector, status, kind, method, confidence, corrections
           FROM sector_outcomes WHERE session_id = ?
          ORDER BY cylinder, head, sector`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query sector outcomes: %w", err)
	}
	defer rows.Close()

	var out []SectorOutcome
	for rows.Next() {
		var o SectorOutcome
		if err := rows.Scan(&o.Cylinder, &o.Head, &o.Sector, &o.Status, &o.Kind,
			&o.Method, &o.Confidence, &o.Corrections); err != nil {
			return nil, fmt.Errorf("scan sector outcome: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

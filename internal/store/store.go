// Package store persists session results to SQLite so resolution runs can
// be queried and compared after the fact.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/funvibe/resolvekit/internal/resolve"
	"github.com/funvibe/resolvekit/internal/session"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    created TEXT NOT NULL,
    generation INTEGER NOT NULL,
    units INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS resolutions (
    session_id TEXT NOT NULL,
    unit TEXT NOT NULL,
    node INTEGER NOT NULL,
    role TEXT NOT NULL,
    line INTEGER,
    col INTEGER,
    name TEXT,
    status TEXT NOT NULL,
    symbol TEXT,
    tier TEXT,
    code TEXT,
    PRIMARY KEY (session_id, unit, node, role)
);

CREATE TABLE IF NOT EXISTS diagnostics (
    session_id TEXT NOT NULL,
    unit TEXT NOT NULL,
    line INTEGER,
    col INTEGER,
    code TEXT NOT NULL,
    kind TEXT NOT NULL,
    name TEXT,
    candidates TEXT,
    message TEXT
);

CREATE INDEX IF NOT EXISTS idx_resolutions_status ON resolutions(session_id, status);
CREATE INDEX IF NOT EXISTS idx_diagnostics_code ON diagnostics(session_id, code);
`

// ErrUnknownSession is returned when a session id has no stored result.
var ErrUnknownSession = errors.New("unknown session")

// Store is a SQLite database of session results.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path. ":memory:" gives a
// private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// an in-memory database lives only as long as its connection
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveResult writes res in one transaction. Saving the same session twice
// replaces the earlier rows.
func (s *Store) SaveResult(ctx context.Context, res *session.Result) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, q := range []string{
		`DELETE FROM resolutions WHERE session_id = ?`,
		`DELETE FROM diagnostics WHERE session_id = ?`,
	} {
		if _, err = tx.ExecContext(ctx, q, res.SessionID); err != nil {
			return fmt.Errorf("clear session: %w", err)
		}
	}

	generation := 0
	if res.Snapshot != nil {
		generation = res.Snapshot.Generation
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO sessions (id, created, generation, units) VALUES (?, ?, ?, ?)`,
		res.SessionID, time.Now().UTC().Format(time.RFC3339), generation, len(res.Units)); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	if err = insertResolutions(ctx, tx, res); err != nil {
		return err
	}
	if err = insertDiagnostics(ctx, tx, res); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertResolutions(ctx context.Context, tx *sql.Tx, res *session.Result) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO resolutions (session_id, unit, node, role, line, col, name, status, symbol, tier, code) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare resolutions: %w", err)
	}
	defer stmt.Close()

	for _, u := range res.Units {
		if u.Map == nil {
			continue
		}
		for _, r := range u.Map.Sorted() {
			pos := r.Site.Position()
			var symbol, tier sql.NullString
			if r.Symbol != nil {
				symbol = sql.NullString{String: r.Symbol.Describe(), Valid: true}
			}
			if r.Status == resolve.StatusResolved {
				tier = sql.NullString{String: r.Tier.String(), Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, res.SessionID, u.Path, int64(r.Site.NodeID()), r.Role.String(),
				pos.Line, pos.Column, r.Name, r.Status.String(), symbol, tier, string(r.Code)); err != nil {
				return fmt.Errorf("insert resolution %s:%s: %w", u.Path, pos, err)
			}
		}
	}
	return nil
}

func insertDiagnostics(ctx context.Context, tx *sql.Tx, res *session.Result) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO diagnostics (session_id, unit, line, col, code, kind, name, candidates, message) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare diagnostics: %w", err)
	}
	defer stmt.Close()

	for _, u := range res.Units {
		for _, d := range u.Diagnostics {
			if _, err := stmt.ExecContext(ctx, res.SessionID, u.Path, d.Pos.Line, d.Pos.Column,
				string(d.Code), d.Code.Kind(), d.Name, strings.Join(d.Candidates, "; "), d.Message); err != nil {
				return fmt.Errorf("insert diagnostic %s: %w", d, err)
			}
		}
	}
	return nil
}

// SessionRow is a stored session header.
type SessionRow struct {
	ID         string
	Created    time.Time
	Generation int
	Units      int
}

// ResolutionRow is one stored site.
type ResolutionRow struct {
	Unit   string
	Node   int
	Role   string
	Line   int
	Col    int
	Name   string
	Status string
	Symbol string
	Tier   string
	Code   string
}

// DiagnosticRow is one stored diagnostic.
type DiagnosticRow struct {
	Unit       string
	Line       int
	Col        int
	Code       string
	Kind       string
	Name       string
	Candidates string
	Message    string
}

// Session returns the header of a stored session.
func (s *Store) Session(ctx context.Context, id string) (*SessionRow, error) {
	var row SessionRow
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, created, generation, units FROM sessions WHERE id = ?`, id).
		Scan(&row.ID, &created, &row.Generation, &row.Units)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	if row.Created, err = time.Parse(time.RFC3339, created); err != nil {
		return nil, fmt.Errorf("session %s: bad timestamp %q: %w", id, created, err)
	}
	return &row, nil
}

// Resolutions returns the stored sites of a session, optionally limited to
// one status ("" for all), ordered by unit and node.
func (s *Store) Resolutions(ctx context.Context, sessionID, status string) ([]ResolutionRow, error) {
	q := `SELECT unit, node, role, line, col, name, status, COALESCE(symbol, ''), COALESCE(tier, ''), code
FROM resolutions WHERE session_id = ?`
	args := []any{sessionID}
	if status != "" {
		q += ` AND status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY unit, node, role`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query resolutions: %w", err)
	}
	defer rows.Close()

	var out []ResolutionRow
	for rows.Next() {
		var r ResolutionRow
		if err := rows.Scan(&r.Unit, &r.Node, &r.Role, &r.Line, &r.Col, &r.Name, &r.Status, &r.Symbol, &r.Tier, &r.Code); err != nil {
			return nil, fmt.Errorf("scan resolution: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Diagnostics returns the stored diagnostics of a session in source order.
func (s *Store) Diagnostics(ctx context.Context, sessionID string) ([]DiagnosticRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT unit, line, col, code, kind, name, candidates, message
FROM diagnostics WHERE session_id = ? ORDER BY unit, line, col, code`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query diagnostics: %w", err)
	}
	defer rows.Close()

	var out []DiagnosticRow
	for rows.Next() {
		var d DiagnosticRow
		if err := rows.Scan(&d.Unit, &d.Line, &d.Col, &d.Code, &d.Kind, &d.Name, &d.Candidates, &d.Message); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CodeCounts returns the number of diagnostics per code for a session.
func (s *Store) CodeCounts(ctx context.Context, sessionID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT code, COUNT(*) FROM diagnostics WHERE session_id = ? GROUP BY code`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("count diagnostics: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var code string
		var n int
		if err := rows.Scan(&code, &n); err != nil {
			return nil, err
		}
		out[code] = n
	}
	return out, rows.Err()
}

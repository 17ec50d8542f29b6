// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rakshak Contributors

// Package sqlite persists closed engagements as immutable case files.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rakshak-dev/rakshak/internal/store"
	rakerr "github.com/rakshak-dev/rakshak/pkg/errors"
)

// Compile-time interface check.
var _ store.CaseStore = (*CaseStore)(nil)

// CaseStore implements store.CaseStore backed by SQLite. One row per
// archived session; the transcript rows keep turns queryable by indicator
// investigators without unpacking JSON blobs.
type CaseStore struct {
	db *sql.DB
}

// NewCaseStore opens (or creates) a SQLite database at dbPath and
// initialises the cases and case_turns tables.
func NewCaseStore(dbPath string) (*CaseStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, rakerr.Wrapf(err, rakerr.CodeStoreDatabaseFailure, "opening sqlite db")
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, rakerr.Wrapf(err, rakerr.CodeStoreDatabaseFailure, "pinging sqlite db")
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, rakerr.Wrapf(err, rakerr.CodeStoreDatabaseFailure, "migrating sqlite db")
	}

	return &CaseStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS cases (
	session_id   TEXT PRIMARY KEY,
	scam_type    TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'closed',
	intelligence TEXT NOT NULL DEFAULT '{}',
	created_at   TEXT NOT NULL,
	closed_at    TEXT NOT NULL,
	archived_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cases_archived ON cases(archived_at);

CREATE TABLE IF NOT EXISTS case_turns (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL,
	role        TEXT NOT NULL,
	content     TEXT NOT NULL DEFAULT '',
	sent_at     TEXT NOT NULL,
	intent      TEXT NOT NULL DEFAULT '',
	risk_level  TEXT NOT NULL DEFAULT '',
	scam_type   TEXT NOT NULL DEFAULT '',
	extracted   TEXT NOT NULL DEFAULT '',
	FOREIGN KEY (session_id) REFERENCES cases(session_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_case_turns_session ON case_turns(session_id, sent_at);
`
	_, err := db.Exec(ddl)
	return err
}

// Close closes the underlying database connection.
func (s *CaseStore) Close() error {
	return s.db.Close()
}

// ArchiveCase writes the case row and its transcript in one transaction.
func (s *CaseStore) ArchiveCase(ctx context.Context, c *store.Case) error {
	intelJSON, err := json.Marshal(c.Intelligence)
	if err != nil {
		return rakerr.Wrapf(err, rakerr.CodeStoreDatabaseFailure, "marshalling intelligence record")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return rakerr.Wrapf(err, rakerr.CodeStoreDatabaseFailure, "beginning archive transaction")
	}
	defer tx.Rollback()

	const caseQ = `INSERT INTO cases (session_id, scam_type, status, intelligence, created_at, closed_at, archived_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err = tx.ExecContext(ctx, caseQ,
		c.Session.ID,
		c.Session.ScamType,
		string(c.Session.Status),
		string(intelJSON),
		formatTime(c.Session.CreatedAt),
		formatTime(c.Session.UpdatedAt),
		formatTime(c.ArchivedAt),
	)
	if err != nil {
		return rakerr.Wrapf(err, rakerr.CodeStoreSessionCreateConflict,
			"archiving case %s", c.Session.ID)
	}

	const turnQ = `INSERT INTO case_turns (id, session_id, role, content, sent_at, intent, risk_level, scam_type, extracted)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	for _, turn := range c.Transcript {
		extracted := ""
		if turn.Extracted != nil {
			b, err := json.Marshal(turn.Extracted)
			if err != nil {
				return rakerr.Wrapf(err, rakerr.CodeStoreDatabaseFailure,
					"marshalling extraction for turn %s", turn.ID)
			}
			extracted = string(b)
		}

		_, err = tx.ExecContext(ctx, turnQ,
			turn.ID,
			c.Session.ID,
			string(turn.Role),
			turn.Content,
			formatTime(turn.SentAt),
			turn.Intent,
			string(turn.RiskLevel),
			turn.ScamType,
			extracted,
		)
		if err != nil {
			return rakerr.Wrapf(err, rakerr.CodeStoreDatabaseFailure,
				"archiving turn %s of case %s", turn.ID, c.Session.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return rakerr.Wrapf(err, rakerr.CodeStoreDatabaseFailure,
			"committing archive of case %s", c.Session.ID)
	}
	return nil
}

// GetCase loads one archived case with its full transcript.
func (s *CaseStore) GetCase(ctx context.Context, sessionID string) (*store.Case, error) {
	const q = `SELECT session_id, scam_type, status, intelligence, created_at, closed_at, archived_at
FROM cases WHERE session_id = ?`

	c, err := scanCase(s.db.QueryRowContext(ctx, q, sessionID))
	if err == sql.ErrNoRows {
		return nil, rakerr.New(rakerr.CodeStoreSessionGetNotFound,
			"case not found: "+sessionID,
			rakerr.FieldSessionID(sessionID))
	}
	if err != nil {
		return nil, rakerr.Wrapf(err, rakerr.CodeStoreDatabaseFailure, "getting case %s", sessionID)
	}

	transcript, err := s.transcript(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	c.Transcript = transcript

	return c, nil
}

// ListCases returns archived cases, newest first. The transcript is not
// loaded for list views; fetch individual cases for the full record.
func (s *CaseStore) ListCases(ctx context.Context, opts store.ListOpts) ([]*store.Case, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	const q = `SELECT session_id, scam_type, status, intelligence, created_at, closed_at, archived_at
FROM cases ORDER BY archived_at DESC LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, q, limit, opts.Offset)
	if err != nil {
		return nil, rakerr.Wrapf(err, rakerr.CodeStoreDatabaseFailure, "listing cases")
	}
	defer rows.Close()

	var cases []*store.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, rakerr.Wrapf(err, rakerr.CodeStoreDatabaseFailure, "scanning case row")
		}
		cases = append(cases, c)
	}

	return cases, rows.Err()
}

func (s *CaseStore) transcript(ctx context.Context, sessionID string) ([]*store.Turn, error) {
	const q = `SELECT id, session_id, role, content, sent_at, intent, risk_level, scam_type, extracted
FROM case_turns WHERE session_id = ? ORDER BY sent_at ASC`

	rows, err := s.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, rakerr.Wrapf(err, rakerr.CodeStoreDatabaseFailure,
			"loading transcript for case %s", sessionID)
	}
	defer rows.Close()

	var turns []*store.Turn
	for rows.Next() {
		var turn store.Turn
		var sentAt, extracted string
		if err := rows.Scan(
			&turn.ID,
			&turn.SessionID,
			&turn.Role,
			&turn.Content,
			&sentAt,
			&turn.Intent,
			&turn.RiskLevel,
			&turn.ScamType,
			&extracted,
		); err != nil {
			return nil, rakerr.Wrapf(err, rakerr.CodeStoreDatabaseFailure, "scanning turn row")
		}
		turn.SentAt = parseTime(sentAt)
		if extracted != "" {
			var ex store.Extraction
			if err := json.Unmarshal([]byte(extracted), &ex); err != nil {
				return nil, rakerr.Wrapf(err, rakerr.CodeStoreDatabaseFailure,
					"unmarshalling extraction for turn %s", turn.ID)
			}
			turn.Extracted = &ex
		}
		turns = append(turns, &turn)
	}

	return turns, rows.Err()
}

// scanner is the shared subset of sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanCase(row scanner) (*store.Case, error) {
	var sess store.Session
	var intelJSON, createdAt, closedAt, archivedAt string

	if err := row.Scan(
		&sess.ID,
		&sess.ScamType,
		&sess.Status,
		&intelJSON,
		&createdAt,
		&closedAt,
		&archivedAt,
	); err != nil {
		return nil, err
	}

	sess.CreatedAt = parseTime(createdAt)
	sess.UpdatedAt = parseTime(closedAt)

	record := store.NewIntelligenceRecord()
	if intelJSON != "" && intelJSON != "{}" {
		if err := json.Unmarshal([]byte(intelJSON), record); err != nil {
			return nil, err
		}
	}

	return &store.Case{
		Session:      &sess,
		Intelligence: record,
		ArchivedAt:   parseTime(archivedAt),
	}, nil
}

// formatTime serialises a time.Time to RFC3339 with nanosecond precision.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime deserialises a time string stored in the database.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rakshak Contributors

package store

import "context"

// SessionStore manages live engagement sessions: the append-only transcript
// and the cumulative intelligence record for each session.
type SessionStore interface {
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	UpdateSession(ctx context.Context, session *Session) error
	ListSessions(ctx context.Context, opts ListOpts) ([]*Session, error)

	// AppendTurn commits one turn to the session transcript. Turns are
	// immutable once appended.
	AppendTurn(ctx context.Context, sessionID string, turn *Turn) error
	// Transcript returns the full ordered transcript for the session.
	Transcript(ctx context.Context, sessionID string) ([]*Turn, error)

	// Intelligence returns the session's cumulative intelligence record.
	Intelligence(ctx context.Context, sessionID string) (*IntelligenceRecord, error)
	// PutIntelligence replaces the session's intelligence record with the
	// given merged state.
	PutIntelligence(ctx context.Context, sessionID string, record *IntelligenceRecord) error
}

// CaseStore archives closed sessions for the case-management collaborator.
type CaseStore interface {
	ArchiveCase(ctx context.Context, c *Case) error
	GetCase(ctx context.Context, sessionID string) (*Case, error)
	ListCases(ctx context.Context, opts ListOpts) ([]*Case, error)
	Close() error
}

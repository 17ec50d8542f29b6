// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rakshak Contributors

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	rakerr "github.com/rakshak-dev/rakshak/pkg/errors"
)

// Compile-time interface check.
var _ SessionStore = (*MemorySessionStore)(nil)

// MemorySessionStore is the in-memory SessionStore used for live sessions.
// Closed sessions are archived to a CaseStore by the engagement manager;
// this store only needs to outlive the process.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	turns    map[string][]*Turn
	intel    map[string]*IntelligenceRecord
}

// NewMemorySessionStore returns an empty in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*Session),
		turns:    make(map[string][]*Turn),
		intel:    make(map[string]*IntelligenceRecord),
	}
}

func (s *MemorySessionStore) CreateSession(_ context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; ok {
		return rakerr.New(rakerr.CodeStoreSessionCreateConflict,
			"session already exists: "+session.ID,
			rakerr.FieldSessionID(session.ID))
	}

	cp := *session
	s.sessions[session.ID] = &cp
	s.intel[session.ID] = NewIntelligenceRecord()
	return nil
}

func (s *MemorySessionStore) GetSession(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, rakerr.New(rakerr.CodeStoreSessionGetNotFound,
			"session not found: "+id,
			rakerr.FieldSessionID(id))
	}

	cp := *session
	return &cp, nil
}

func (s *MemorySessionStore) UpdateSession(_ context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; !ok {
		return rakerr.New(rakerr.CodeStoreSessionGetNotFound,
			"session not found: "+session.ID,
			rakerr.FieldSessionID(session.ID))
	}

	cp := *session
	cp.UpdatedAt = time.Now()
	s.sessions[session.ID] = &cp
	return nil
}

func (s *MemorySessionStore) ListSessions(_ context.Context, opts ListOpts) ([]*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		cp := *session
		sessions = append(sessions, &cp)
	}

	// Newest first, matching the case archive's ordering.
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})

	return paginate(sessions, opts), nil
}

func (s *MemorySessionStore) AppendTurn(_ context.Context, sessionID string, turn *Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return rakerr.New(rakerr.CodeStoreSessionGetNotFound,
			"session not found: "+sessionID,
			rakerr.FieldSessionID(sessionID))
	}
	if turn.Content == "" && turn.Role == RoleAdversary {
		return rakerr.New(rakerr.CodeStoreTurnAppendInvalid,
			"adversary turn content must not be empty",
			rakerr.FieldSessionID(sessionID))
	}

	cp := *turn
	cp.SessionID = sessionID
	s.turns[sessionID] = append(s.turns[sessionID], &cp)
	return nil
}

func (s *MemorySessionStore) Transcript(_ context.Context, sessionID string) ([]*Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return nil, rakerr.New(rakerr.CodeStoreSessionGetNotFound,
			"session not found: "+sessionID,
			rakerr.FieldSessionID(sessionID))
	}

	turns := s.turns[sessionID]
	out := make([]*Turn, len(turns))
	for i, t := range turns {
		cp := *t
		out[i] = &cp
	}
	return out, nil
}

func (s *MemorySessionStore) Intelligence(_ context.Context, sessionID string) (*IntelligenceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.intel[sessionID]
	if !ok {
		return nil, rakerr.New(rakerr.CodeStoreSessionGetNotFound,
			"session not found: "+sessionID,
			rakerr.FieldSessionID(sessionID))
	}
	return record.Clone(), nil
}

func (s *MemorySessionStore) PutIntelligence(_ context.Context, sessionID string, record *IntelligenceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return rakerr.New(rakerr.CodeStoreSessionGetNotFound,
			"session not found: "+sessionID,
			rakerr.FieldSessionID(sessionID))
	}
	s.intel[sessionID] = record.Clone()
	return nil
}

func paginate(sessions []*Session, opts ListOpts) []*Session {
	if opts.Offset >= len(sessions) {
		return nil
	}
	sessions = sessions[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(sessions) {
		sessions = sessions[:opts.Limit]
	}
	return sessions
}

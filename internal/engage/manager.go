// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rakshak Contributors

package engage

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rakshak-dev/rakshak/internal/reasoning"
	"github.com/rakshak-dev/rakshak/internal/store"
	rakerr "github.com/rakshak-dev/rakshak/pkg/errors"
)

// ManagerConfig holds dependencies shared by all sessions.
type ManagerConfig struct {
	Store store.SessionStore
	// Cases is the archive for closed sessions. Optional: without it,
	// closed sessions simply stay in the live store.
	Cases          store.CaseStore
	Gateway        Generator
	TypingDelay    time.Duration
	DisengageAfter int
	Observers      []Observer
	Logger         *slog.Logger
}

// Manager owns the set of live engagement sessions. Sessions are fully
// independent; the manager only maps session IDs to controllers and
// archives closed sessions to the case store.
type Manager struct {
	st             store.SessionStore
	cases          store.CaseStore
	gateway        Generator
	typingDelay    time.Duration
	disengageAfter int
	observers      []Observer
	logger         *slog.Logger

	mu          sync.RWMutex
	controllers map[string]*Controller
}

// NewManager creates a Manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Store == nil || cfg.Gateway == nil {
		return nil, rakerr.New(rakerr.CodeEngageGenerationFailure, "manager requires a store and a gateway")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		st:             cfg.Store,
		cases:          cfg.Cases,
		gateway:        cfg.Gateway,
		typingDelay:    cfg.TypingDelay,
		disengageAfter: cfg.DisengageAfter,
		observers:      cfg.Observers,
		logger:         logger,
		controllers:    make(map[string]*Controller),
	}, nil
}

// StartSession creates a session for a message the classifier collaborator
// already confirmed as scam content. The seed message becomes the first
// adversary turn and schedules the first agent generation.
func (m *Manager) StartSession(ctx context.Context, seedMessage, scamType string) (*store.Session, error) {
	now := time.Now()
	session := &store.Session{
		ID:        uuid.New().String(),
		ScamType:  reasoning.NormalizeScamType(scamType),
		Status:    store.SessionStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := m.st.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	ctrl, err := NewController(ControllerConfig{
		Session:        session,
		Store:          m.st,
		Gateway:        m.gateway,
		TypingDelay:    m.typingDelay,
		DisengageAfter: m.disengageAfter,
		OnClosed:       m.archive,
		Observers:      m.observers,
		Logger:         m.logger,
	})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.controllers[session.ID] = ctrl
	m.mu.Unlock()

	if err := ctrl.SubmitAdversaryTurn(ctx, seedMessage); err != nil {
		return nil, err
	}

	m.logger.Info("engagement session started",
		"session_id", session.ID,
		"scam_type", session.ScamType)
	return session, nil
}

// Controller returns the controller for a live session.
func (m *Manager) Controller(sessionID string) (*Controller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ctrl, ok := m.controllers[sessionID]
	if !ok {
		return nil, rakerr.New(rakerr.CodeEngageSessionNotFound,
			"no controller for session: "+sessionID,
			rakerr.FieldSessionID(sessionID))
	}
	return ctrl, nil
}

// CloseSession ends a session externally.
func (m *Manager) CloseSession(ctx context.Context, sessionID string) error {
	ctrl, err := m.Controller(sessionID)
	if err != nil {
		return err
	}
	return ctrl.Close(ctx)
}

// archive copies a closed session into the case store. Best-effort: the
// live store keeps the session either way.
func (m *Manager) archive(sessionID string) {
	if m.cases == nil {
		return
	}

	ctx := context.Background()

	session, err := m.st.GetSession(ctx, sessionID)
	if err != nil {
		m.logger.Error("archive: loading session", "session_id", sessionID, "error", err)
		return
	}
	transcript, err := m.st.Transcript(ctx, sessionID)
	if err != nil {
		m.logger.Error("archive: loading transcript", "session_id", sessionID, "error", err)
		return
	}
	record, err := m.st.Intelligence(ctx, sessionID)
	if err != nil {
		m.logger.Error("archive: loading intelligence", "session_id", sessionID, "error", err)
		return
	}

	c := &store.Case{
		Session:      session,
		Transcript:   transcript,
		Intelligence: record,
		ArchivedAt:   time.Now(),
	}
	if err := m.cases.ArchiveCase(ctx, c); err != nil {
		m.logger.Error("archive: writing case", "session_id", sessionID, "error", err)
		return
	}

	m.logger.Info("session archived",
		"session_id", sessionID,
		"turns", len(transcript),
		"indicators", record.Count())
}

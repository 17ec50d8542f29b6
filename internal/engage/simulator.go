// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rakshak Contributors

package engage

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rakshak-dev/rakshak/internal/store"
)

// simulatorFallbackLine is replayed once a script is exhausted, keeping
// pressure on the agent the way a real scammer escalates.
const simulatorFallbackLine = "Jaldi payment karo varna police case hoga! Account details bhejo abhi."

// Simulator replays a scripted adversary against a controller. It
// registers as an Observer: every time the agent commits a reply, the
// simulator submits the next scripted line. Deterministic by design so
// end-to-end tests and demo runs are repeatable.
type Simulator struct {
	script   []string
	maxTurns int
	logger   *slog.Logger

	mu        sync.Mutex
	ctrl      *Controller
	cursor    int
	submitted int
}

// NewSimulator creates a Simulator that will send at most maxTurns
// adversary lines. Lines beyond the script repeat the escalation
// fallback. maxTurns <= 0 means len(script) turns exactly.
func NewSimulator(script []string, maxTurns int, logger *slog.Logger) *Simulator {
	if maxTurns <= 0 {
		maxTurns = len(script)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{
		script:   script,
		maxTurns: maxTurns,
		logger:   logger,
	}
}

// Exhausted reports whether the simulator has used its whole turn budget.
func (s *Simulator) Exhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitted >= s.maxTurns
}

// Next returns the next scripted line, or false when the simulator has
// used its turn budget.
func (s *Simulator) Next() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.submitted >= s.maxTurns {
		return "", false
	}
	s.submitted++

	if s.cursor < len(s.script) {
		line := s.script[s.cursor]
		s.cursor++
		return line, true
	}
	return simulatorFallbackLine, true
}

// Bind attaches the simulator to the controller it drives. Observers are
// fixed at controller construction, so register the simulator in the
// Observers list first and bind it once the controller exists.
func (s *Simulator) Bind(ctrl *Controller) {
	s.mu.Lock()
	s.ctrl = ctrl
	s.mu.Unlock()
}

// OnTranscriptChanged submits the next scripted line whenever the agent
// commits a reply. Adversary appends are ignored, so the simulator never
// reacts to its own lines.
func (s *Simulator) OnTranscriptChanged(sessionID string, transcript []*store.Turn) {
	if len(transcript) == 0 || transcript[len(transcript)-1].Role != store.RoleAgent {
		return
	}

	s.mu.Lock()
	ctrl := s.ctrl
	s.mu.Unlock()
	if ctrl == nil {
		return
	}

	line, ok := s.Next()
	if !ok {
		return
	}
	if err := ctrl.SubmitAdversaryTurn(context.Background(), line); err != nil {
		s.logger.Error("simulator: submitting scripted turn", "session_id", sessionID, "error", err)
	}
}

func (s *Simulator) OnIntelligenceChanged(string, *store.IntelligenceRecord) {}

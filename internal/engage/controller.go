// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rakshak Contributors

// Package engage drives the turn-by-turn honeypot loop: one controller per
// session, at most one in-flight generation at a time, no duplicate
// processing of the same inbound message.
package engage

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rakshak-dev/rakshak/internal/intel"
	"github.com/rakshak-dev/rakshak/internal/reasoning"
	"github.com/rakshak-dev/rakshak/internal/store"
	rakerr "github.com/rakshak-dev/rakshak/pkg/errors"
)

// State is the controller's position in the engagement state machine.
type State string

const (
	// StateIdle means no generation is in flight.
	StateIdle State = "idle"
	// StateAwaitingResponse means a reasoning call is in flight.
	StateAwaitingResponse State = "awaiting_response"
	// StateClosed is terminal: the session ended externally or by policy.
	StateClosed State = "closed"
)

// defaultTypingDelay is the deliberate pause before a generation fires.
// It models typing realism and doubles as the debounce window for rapid
// adversary fragments. Tunable, not a correctness requirement.
const defaultTypingDelay = 1800 * time.Millisecond

// Generator produces the agent's next turn. Satisfied by
// *reasoning.Gateway; the method never returns an error by contract.
type Generator interface {
	Generate(ctx context.Context, req reasoning.Request) *reasoning.Response
}

// Observer receives fire-and-forget notifications after each committed
// mutation. Notifications are synchronous and always follow the durable
// write, so an observer reading state after a callback sees the new state.
type Observer interface {
	OnTranscriptChanged(sessionID string, transcript []*store.Turn)
	OnIntelligenceChanged(sessionID string, record *store.IntelligenceRecord)
}

// ControllerConfig holds dependencies for one session's Controller.
type ControllerConfig struct {
	Session *store.Session
	Store   store.SessionStore
	Gateway Generator
	// TypingDelay is the debounce window before generation. Zero means the
	// default; negative disables automatic scheduling so callers drive
	// Trigger themselves.
	TypingDelay time.Duration
	// DisengageAfter closes the session autonomously after this many
	// consecutive agent turns that produced no new intelligence.
	// Zero means engage indefinitely.
	DisengageAfter int
	// OnClosed is invoked once when the controller transitions to
	// StateClosed, whether by Close or by the disengage policy.
	OnClosed  func(sessionID string)
	Observers []Observer
	Logger    *slog.Logger
	// Now overrides the time source (for testing).
	Now func() time.Time
}

// Controller owns one session's engagement state machine. All session
// state mutation flows through it; there is no concurrent writer to a
// session's transcript.
type Controller struct {
	sessionID string
	st        store.SessionStore
	gateway   Generator

	typingDelay    time.Duration
	disengageAfter int
	onClosed       func(string)
	observers      []Observer
	logger         *slog.Logger
	now            func() time.Time

	mu         sync.Mutex
	state      State
	timer      *time.Timer
	lastSentAt time.Time
	idleStreak int // consecutive agent turns with no new intelligence

	errorCount   atomic.Int64
	skippedCount atomic.Int64
}

// NewController builds a Controller for an already-created session.
func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.Session == nil || cfg.Store == nil || cfg.Gateway == nil {
		return nil, rakerr.New(rakerr.CodeEngageGenerationFailure, "controller requires session, store, and gateway")
	}

	delay := cfg.TypingDelay
	if delay == 0 {
		delay = defaultTypingDelay
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Controller{
		sessionID:      cfg.Session.ID,
		st:             cfg.Store,
		gateway:        cfg.Gateway,
		typingDelay:    delay,
		disengageAfter: cfg.DisengageAfter,
		onClosed:       cfg.OnClosed,
		observers:      cfg.Observers,
		logger:         logger,
		now:            now,
		state:          StateIdle,
	}, nil
}

// SessionID returns the session this controller owns.
func (c *Controller) SessionID() string { return c.sessionID }

// State returns the controller's current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ErrorCount returns the number of failed generation commits.
func (c *Controller) ErrorCount() int64 { return c.errorCount.Load() }

// SkippedCount returns how many trigger attempts were no-ops because a
// generation was already in flight. Debug visibility only; a skip is not
// a failure.
func (c *Controller) SkippedCount() int64 { return c.skippedCount.Load() }

// SubmitAdversaryTurn appends an adversary turn and (re)schedules the
// debounced generation. This is the single entry point for real scammer
// replies and manually-injected test replies alike. Empty or
// whitespace-only content is rejected with no state change.
//
// The append is independent of generation state: a turn arriving while a
// generation is in flight is still recorded immediately, but does not
// start a second concurrent generation.
func (c *Controller) SubmitAdversaryTurn(ctx context.Context, content string) error {
	if strings.TrimSpace(content) == "" {
		return rakerr.New(rakerr.CodeEngageTurnInvalidInput,
			"adversary turn must not be empty or whitespace-only",
			rakerr.FieldSessionID(c.sessionID))
	}

	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return rakerr.New(rakerr.CodeEngageSessionClosed,
			"session is closed, no further turns accepted",
			rakerr.FieldSessionID(c.sessionID))
	}

	turn := &store.Turn{
		ID:        uuid.New().String(),
		SessionID: c.sessionID,
		Role:      store.RoleAdversary,
		Content:   content,
		SentAt:    c.nextSentAtLocked(),
	}

	if err := c.st.AppendTurn(ctx, c.sessionID, turn); err != nil {
		c.mu.Unlock()
		return err
	}

	c.scheduleLocked()
	c.mu.Unlock()

	c.notifyTranscript(ctx)
	return nil
}

// Trigger runs one trigger-check cycle synchronously: if an unprocessed
// adversary turn is pending and no generation is in flight, a full
// generation executes before Trigger returns. It reports whether a
// generation ran. The debounce timer calls this; tests and manual replay
// may call it directly.
func (c *Controller) Trigger(ctx context.Context) bool {
	c.mu.Lock()
	if c.state != StateIdle {
		if c.state == StateAwaitingResponse {
			c.skippedCount.Add(1)
		}
		c.mu.Unlock()
		return false
	}
	c.mu.Unlock()

	session, err := c.st.GetSession(ctx, c.sessionID)
	if err != nil {
		c.errorCount.Add(1)
		c.logger.Error("trigger: loading session", "session_id", c.sessionID, "error", err)
		return false
	}

	transcript, err := c.st.Transcript(ctx, c.sessionID)
	if err != nil {
		c.errorCount.Add(1)
		c.logger.Error("trigger: loading transcript", "session_id", c.sessionID, "error", err)
		return false
	}
	if len(transcript) == 0 {
		return false
	}

	// The latest adversary turn may not be the newest entry: a message that
	// arrived while a generation was in flight sits below the agent reply
	// that was committed after it. Scan from the tail for it.
	var pending *store.Turn
	for i := len(transcript) - 1; i >= 0; i-- {
		if transcript[i].Role == store.RoleAdversary {
			pending = transcript[i]
			break
		}
	}
	if pending == nil || !pending.SentAt.After(session.LastProcessed) {
		return false
	}

	// Advance the cursor before dispatch so a transcript re-read during
	// the in-flight call cannot re-trigger on the same message.
	session.LastProcessed = pending.SentAt
	if err := c.st.UpdateSession(ctx, session); err != nil {
		c.errorCount.Add(1)
		c.logger.Error("trigger: advancing cursor", "session_id", c.sessionID, "error", err)
		return false
	}

	c.mu.Lock()
	if c.state != StateIdle {
		c.skippedCount.Add(1)
		c.mu.Unlock()
		return false
	}
	c.state = StateAwaitingResponse
	c.mu.Unlock()

	c.generate(ctx, transcript)
	return true
}

// generate runs the reasoning call and commits the result. The controller
// is in StateAwaitingResponse on entry and returns to StateIdle (or stays
// StateClosed) on exit.
func (c *Controller) generate(ctx context.Context, transcript []*store.Turn) {
	req := reasoning.Request{
		SessionID:  c.sessionID,
		Transcript: make([]reasoning.Message, 0, len(transcript)),
	}
	for _, t := range transcript {
		req.Transcript = append(req.Transcript, reasoning.Message{Role: t.Role, Content: t.Content})
	}

	// Network-bound; the only suspension point in the loop.
	resp := c.gateway.Generate(ctx, req)

	c.mu.Lock()
	if c.state == StateClosed {
		// Session closed while the call was in flight: discard the result.
		c.mu.Unlock()
		c.logger.Info("discarding generation result for closed session", "session_id", c.sessionID)
		return
	}

	turn := &store.Turn{
		ID:        uuid.New().String(),
		SessionID: c.sessionID,
		Role:      store.RoleAgent,
		Content:   resp.Reply,
		SentAt:    c.nextSentAtLocked(),
		Intent:    resp.Intent,
		RiskLevel: resp.RiskLevel,
		ScamType:  resp.ScamType,
		Extracted: resp.Extracted,
	}

	if err := c.st.AppendTurn(ctx, c.sessionID, turn); err != nil {
		// Nothing was committed; degrade to idle and leave the transcript
		// at its last good state. The next adversary message re-triggers.
		c.state = StateIdle
		c.mu.Unlock()
		c.errorCount.Add(1)
		c.logger.Error("committing agent turn", "session_id", c.sessionID, "error", err)
		return
	}

	added := c.mergeIntelligence(ctx, resp.Extracted)
	if added > 0 {
		c.idleStreak = 0
	} else {
		c.idleStreak++
	}

	disengage := c.disengageAfter > 0 && c.idleStreak >= c.disengageAfter
	c.state = StateIdle
	c.mu.Unlock()

	c.notifyTranscript(ctx)
	if added > 0 {
		c.notifyIntelligence(ctx)
	}

	if disengage {
		c.logger.Info("disengaging: no new intelligence",
			"session_id", c.sessionID,
			"idle_turns", c.disengageAfter)
		if err := c.Close(ctx); err != nil {
			c.logger.Error("autonomous close", "session_id", c.sessionID, "error", err)
		}
		return
	}

	// An adversary turn may have arrived while the call was in flight.
	// Re-schedule so the next cycle sees the newer cursor and decides
	// whether to fire again.
	c.mu.Lock()
	c.scheduleLocked()
	c.mu.Unlock()
}

// mergeIntelligence folds the turn's extraction into the session record.
// Returns the number of genuinely new entries. Caller holds c.mu.
func (c *Controller) mergeIntelligence(ctx context.Context, extraction *store.Extraction) int {
	if extraction.Empty() {
		return 0
	}

	record, err := c.st.Intelligence(ctx, c.sessionID)
	if err != nil {
		c.errorCount.Add(1)
		c.logger.Error("loading intelligence record", "session_id", c.sessionID, "error", err)
		return 0
	}

	added := intel.Merge(record, extraction, c.now())
	if added == 0 {
		return 0
	}

	if err := c.st.PutIntelligence(ctx, c.sessionID, record); err != nil {
		c.errorCount.Add(1)
		c.logger.Error("storing intelligence record", "session_id", c.sessionID, "error", err)
		return 0
	}
	return added
}

// Close transitions the controller to its terminal state. An in-flight
// reasoning call is not aborted; its completion handler discards the
// result. Closing twice is a no-op.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosed
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	session, err := c.st.GetSession(ctx, c.sessionID)
	if err != nil {
		return err
	}
	session.Status = store.SessionStatusClosed
	if err := c.st.UpdateSession(ctx, session); err != nil {
		return err
	}

	if c.onClosed != nil {
		c.onClosed(c.sessionID)
	}
	return nil
}

// scheduleLocked (re)arms the debounce timer. Scheduling cancels any
// previously scheduled timer for this session, so of several adversary
// fragments arriving inside the window only the last one triggers
// generation. Caller holds c.mu.
func (c *Controller) scheduleLocked() {
	if c.typingDelay < 0 || c.state == StateClosed {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.typingDelay, func() {
		c.Trigger(context.Background())
	})
}

// nextSentAtLocked returns a strictly increasing timestamp for the next
// turn. Caller holds c.mu.
func (c *Controller) nextSentAtLocked() time.Time {
	t := c.now()
	if !t.After(c.lastSentAt) {
		t = c.lastSentAt.Add(time.Nanosecond)
	}
	c.lastSentAt = t
	return t
}

func (c *Controller) notifyTranscript(ctx context.Context) {
	if len(c.observers) == 0 {
		return
	}
	transcript, err := c.st.Transcript(ctx, c.sessionID)
	if err != nil {
		c.logger.Error("loading transcript for notification", "session_id", c.sessionID, "error", err)
		return
	}
	for _, obs := range c.observers {
		obs.OnTranscriptChanged(c.sessionID, transcript)
	}
}

func (c *Controller) notifyIntelligence(ctx context.Context) {
	if len(c.observers) == 0 {
		return
	}
	record, err := c.st.Intelligence(ctx, c.sessionID)
	if err != nil {
		c.logger.Error("loading intelligence for notification", "session_id", c.sessionID, "error", err)
		return
	}
	for _, obs := range c.observers {
		obs.OnIntelligenceChanged(c.sessionID, record)
	}
}

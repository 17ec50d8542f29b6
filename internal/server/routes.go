// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rakshak Contributors

package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/rakshak-dev/rakshak/internal/reasoning"
	"github.com/rakshak-dev/rakshak/internal/store"
	rakerr "github.com/rakshak-dev/rakshak/pkg/errors"
	"github.com/rakshak-dev/rakshak/pkg/health"
)

// RegisterServices sets the service dependencies and registers REST routes.
func (s *Server) RegisterServices(svc *Services) {
	s.services = svc
	s.registerRoutes()
}

func (s *Server) registerRoutes() {
	// Session endpoints
	huma.Register(s.api, huma.Operation{
		OperationID: "create-session",
		Method:      http.MethodPost,
		Path:        "/api/v1/sessions",
		Summary:     "Start an engagement session",
		Tags:        []string{"sessions"},
	}, s.handleCreateSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-sessions",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions",
		Summary:     "List engagement sessions",
		Tags:        []string{"sessions"},
	}, s.handleListSessions)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-session",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions/{id}",
		Summary:     "Get session details",
		Tags:        []string{"sessions"},
	}, s.handleGetSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "submit-turn",
		Method:      http.MethodPost,
		Path:        "/api/v1/sessions/{id}/turns",
		Summary:     "Submit an adversary message",
		Tags:        []string{"sessions"},
	}, s.handleSubmitTurn)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-transcript",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions/{id}/transcript",
		Summary:     "Get the session transcript",
		Tags:        []string{"sessions"},
	}, s.handleGetTranscript)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-intelligence",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions/{id}/intelligence",
		Summary:     "Get the session intelligence record",
		Tags:        []string{"intelligence"},
	}, s.handleGetIntelligence)

	huma.Register(s.api, huma.Operation{
		OperationID: "close-session",
		Method:      http.MethodPost,
		Path:        "/api/v1/sessions/{id}/close",
		Summary:     "Close a session",
		Tags:        []string{"sessions"},
	}, s.handleCloseSession)

	// Case archive endpoints
	huma.Register(s.api, huma.Operation{
		OperationID: "list-cases",
		Method:      http.MethodGet,
		Path:        "/api/v1/cases",
		Summary:     "List archived cases",
		Tags:        []string{"cases"},
	}, s.handleListCases)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-case",
		Method:      http.MethodGet,
		Path:        "/api/v1/cases/{id}",
		Summary:     "Get an archived case",
		Tags:        []string{"cases"},
	}, s.handleGetCase)

	// Status endpoint
	huma.Register(s.api, huma.Operation{
		OperationID: "gateway-status",
		Method:      http.MethodGet,
		Path:        "/api/v1/status",
		Summary:     "Engine and provider status",
		Tags:        []string{"system"},
	}, s.handleStatus)
}

// --- View types ---

// SessionView is the API representation of a session.
type SessionView struct {
	ID        string    `json:"id"`
	ScamType  string    `json:"scam_type"`
	Status    string    `json:"status"`
	State     string    `json:"state,omitempty" doc:"Controller state for live sessions"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TurnView is the API representation of one transcript turn.
type TurnView struct {
	ID        string            `json:"id"`
	Role      string            `json:"role" enum:"adversary,agent"`
	Content   string            `json:"content"`
	SentAt    time.Time         `json:"sent_at"`
	Intent    string            `json:"intent,omitempty"`
	RiskLevel string            `json:"risk_level,omitempty"`
	ScamType  string            `json:"scam_type,omitempty"`
	Extracted *store.Extraction `json:"extracted,omitempty"`
}

// IntelligenceView groups captured indicators by class.
type IntelligenceView struct {
	Entries map[string][]store.IndicatorEntry `json:"entries"`
	Total   int                               `json:"total"`
}

// CaseView is the API representation of an archived case.
type CaseView struct {
	Session      SessionView      `json:"session"`
	Transcript   []TurnView       `json:"transcript,omitempty"`
	Intelligence IntelligenceView `json:"intelligence"`
	ArchivedAt   time.Time        `json:"archived_at"`
}

// --- Request/Response types for huma ---

type createSessionInput struct {
	Body struct {
		SeedMessage string `json:"seed_message" minLength:"1" doc:"The confirmed scam message that opens the session"`
		ScamType    string `json:"scam_type,omitempty" doc:"Classifier verdict, e.g. Bank"`
	}
}
type createSessionOutput struct {
	Body SessionView
}

type listSessionsInput struct {
	Limit  int `query:"limit" default:"100" minimum:"1" maximum:"1000"`
	Offset int `query:"offset" default:"0" minimum:"0"`
}
type listSessionsOutput struct {
	Body struct {
		Sessions []SessionView `json:"sessions"`
	}
}

type sessionIDInput struct {
	ID string `path:"id"`
}
type getSessionOutput struct {
	Body SessionView
}

type submitTurnInput struct {
	ID   string `path:"id"`
	Body struct {
		Content string `json:"content" minLength:"1" doc:"Adversary message content"`
	}
}
type submitTurnOutput struct {
	Body struct {
		Status string `json:"status" example:"accepted" doc:"Turn was recorded; the agent reply is generated asynchronously"`
	}
}

type getTranscriptOutput struct {
	Body struct {
		Turns []TurnView `json:"turns"`
	}
}

type getIntelligenceOutput struct {
	Body IntelligenceView
}

type closeSessionOutput struct {
	Body struct {
		Status string `json:"status" example:"closed"`
	}
}

type listCasesInput struct {
	Limit  int `query:"limit" default:"100" minimum:"1" maximum:"1000"`
	Offset int `query:"offset" default:"0" minimum:"0"`
}
type listCasesOutput struct {
	Body struct {
		Cases []CaseView `json:"cases"`
	}
}

type getCaseOutput struct {
	Body CaseView
}

// ProviderStatus pairs a provider name with its health metrics.
type ProviderStatus struct {
	Name      string         `json:"name"`
	Available bool           `json:"available"`
	Metrics   health.Metrics `json:"metrics"`
}

type statusOutput struct {
	Body struct {
		Status    string                `json:"status" example:"ok"`
		Gateway   *health.GatewayStatus `json:"gateway,omitempty"`
		Providers []ProviderStatus      `json:"providers,omitempty"`
	}
}

// --- Handlers ---

func (s *Server) handleCreateSession(ctx context.Context, input *createSessionInput) (*createSessionOutput, error) {
	session, err := s.services.manager.StartSession(ctx, input.Body.SeedMessage, input.Body.ScamType)
	if err != nil {
		if rakerr.IsInvalidInput(err) {
			return nil, huma.Error422UnprocessableEntity("invalid seed message", err)
		}
		return nil, huma.Error500InternalServerError("starting session", err)
	}
	return &createSessionOutput{Body: s.sessionView(session)}, nil
}

func (s *Server) handleListSessions(ctx context.Context, input *listSessionsInput) (*listSessionsOutput, error) {
	sessions, err := s.services.sessions.ListSessions(ctx, store.ListOpts{Limit: input.Limit, Offset: input.Offset})
	if err != nil {
		return nil, huma.Error500InternalServerError("listing sessions", err)
	}

	out := &listSessionsOutput{}
	out.Body.Sessions = make([]SessionView, 0, len(sessions))
	for _, sess := range sessions {
		out.Body.Sessions = append(out.Body.Sessions, s.sessionView(sess))
	}
	return out, nil
}

func (s *Server) handleGetSession(ctx context.Context, input *sessionIDInput) (*getSessionOutput, error) {
	session, err := s.services.sessions.GetSession(ctx, input.ID)
	if err != nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("session %q not found", input.ID))
	}
	return &getSessionOutput{Body: s.sessionView(session)}, nil
}

func (s *Server) handleSubmitTurn(ctx context.Context, input *submitTurnInput) (*submitTurnOutput, error) {
	ctrl, err := s.services.manager.Controller(input.ID)
	if err != nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("session %q not found", input.ID))
	}

	if err := ctrl.SubmitAdversaryTurn(ctx, input.Body.Content); err != nil {
		switch {
		case rakerr.HasCode(err, rakerr.CodeEngageSessionClosed):
			return nil, huma.Error409Conflict(fmt.Sprintf("session %q is closed", input.ID))
		case rakerr.IsInvalidInput(err):
			return nil, huma.Error422UnprocessableEntity("invalid turn content", err)
		default:
			return nil, huma.Error500InternalServerError("recording turn", err)
		}
	}

	out := &submitTurnOutput{}
	out.Body.Status = "accepted"
	return out, nil
}

func (s *Server) handleGetTranscript(ctx context.Context, input *sessionIDInput) (*getTranscriptOutput, error) {
	turns, err := s.services.sessions.Transcript(ctx, input.ID)
	if err != nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("session %q not found", input.ID))
	}

	out := &getTranscriptOutput{}
	out.Body.Turns = turnViews(turns)
	return out, nil
}

func (s *Server) handleGetIntelligence(ctx context.Context, input *sessionIDInput) (*getIntelligenceOutput, error) {
	record, err := s.services.sessions.Intelligence(ctx, input.ID)
	if err != nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("session %q not found", input.ID))
	}
	return &getIntelligenceOutput{Body: intelligenceView(record)}, nil
}

func (s *Server) handleCloseSession(ctx context.Context, input *sessionIDInput) (*closeSessionOutput, error) {
	if err := s.services.manager.CloseSession(ctx, input.ID); err != nil {
		if rakerr.IsNotFound(err) {
			return nil, huma.Error404NotFound(fmt.Sprintf("session %q not found", input.ID))
		}
		return nil, huma.Error500InternalServerError("closing session", err)
	}

	out := &closeSessionOutput{}
	out.Body.Status = "closed"
	return out, nil
}

func (s *Server) handleListCases(ctx context.Context, input *listCasesInput) (*listCasesOutput, error) {
	if s.services.cases == nil {
		return nil, huma.Error503ServiceUnavailable("case archive not configured")
	}

	cases, err := s.services.cases.ListCases(ctx, store.ListOpts{Limit: input.Limit, Offset: input.Offset})
	if err != nil {
		return nil, huma.Error500InternalServerError("listing cases", err)
	}

	out := &listCasesOutput{}
	out.Body.Cases = make([]CaseView, 0, len(cases))
	for _, c := range cases {
		out.Body.Cases = append(out.Body.Cases, s.caseView(c))
	}
	return out, nil
}

func (s *Server) handleGetCase(ctx context.Context, input *sessionIDInput) (*getCaseOutput, error) {
	if s.services.cases == nil {
		return nil, huma.Error503ServiceUnavailable("case archive not configured")
	}

	c, err := s.services.cases.GetCase(ctx, input.ID)
	if err != nil {
		if rakerr.IsNotFound(err) {
			return nil, huma.Error404NotFound(fmt.Sprintf("case %q not found", input.ID))
		}
		return nil, huma.Error500InternalServerError("getting case", err)
	}
	return &getCaseOutput{Body: s.caseView(c)}, nil
}

func (s *Server) handleStatus(ctx context.Context, _ *struct{}) (*statusOutput, error) {
	out := &statusOutput{}
	out.Body.Status = "ok"

	if s.services.throttle != nil {
		status := s.services.throttle.Status()
		out.Body.Gateway = &status
	}

	if s.services.registry != nil {
		for name, p := range s.services.registry.Providers() {
			ps := ProviderStatus{
				Name:      name,
				Available: p.Available(ctx),
			}
			if ht, ok := p.(interface{ Health() *reasoning.HealthTracker }); ok {
				ps.Metrics = ht.Health().Metrics()
			}
			out.Body.Providers = append(out.Body.Providers, ps)
		}
	}

	return out, nil
}

// --- View builders ---

func (s *Server) sessionView(sess *store.Session) SessionView {
	view := SessionView{
		ID:        sess.ID,
		ScamType:  sess.ScamType,
		Status:    string(sess.Status),
		CreatedAt: sess.CreatedAt,
		UpdatedAt: sess.UpdatedAt,
	}
	if ctrl, err := s.services.manager.Controller(sess.ID); err == nil {
		view.State = string(ctrl.State())
	}
	return view
}

func (s *Server) caseView(c *store.Case) CaseView {
	return CaseView{
		Session: SessionView{
			ID:        c.Session.ID,
			ScamType:  c.Session.ScamType,
			Status:    string(c.Session.Status),
			CreatedAt: c.Session.CreatedAt,
			UpdatedAt: c.Session.UpdatedAt,
		},
		Transcript:   turnViews(c.Transcript),
		Intelligence: intelligenceView(c.Intelligence),
		ArchivedAt:   c.ArchivedAt,
	}
}

func turnViews(turns []*store.Turn) []TurnView {
	views := make([]TurnView, 0, len(turns))
	for _, t := range turns {
		views = append(views, TurnView{
			ID:        t.ID,
			Role:      string(t.Role),
			Content:   t.Content,
			SentAt:    t.SentAt,
			Intent:    t.Intent,
			RiskLevel: string(t.RiskLevel),
			ScamType:  t.ScamType,
			Extracted: t.Extracted,
		})
	}
	return views
}

func intelligenceView(record *store.IntelligenceRecord) IntelligenceView {
	view := IntelligenceView{Entries: make(map[string][]store.IndicatorEntry)}
	if record == nil {
		return view
	}
	for class, entries := range record.Entries {
		if len(entries) == 0 {
			continue
		}
		view.Entries[string(class)] = entries
	}
	view.Total = record.Count()
	return view
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rakshak Contributors

package server_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rakshak-dev/rakshak/internal/engage"
	"github.com/rakshak-dev/rakshak/internal/reasoning"
	"github.com/rakshak-dev/rakshak/internal/server"
	"github.com/rakshak-dev/rakshak/internal/store"
	rakerr "github.com/rakshak-dev/rakshak/pkg/errors"
)

// scriptedGateway returns a fixed parsed response for every call.
type scriptedGateway struct {
	resp *reasoning.Response
}

func (g *scriptedGateway) Generate(_ context.Context, _ reasoning.Request) *reasoning.Response {
	if g.resp != nil {
		return g.resp
	}
	return reasoning.Fallback()
}

type testEnv struct {
	srv     *server.Server
	manager *engage.Manager
	cases   *fakeCaseStore
}

// fakeCaseStore keeps archived cases in memory for endpoint tests.
type fakeCaseStore struct {
	cases []*store.Case
}

func (f *fakeCaseStore) ArchiveCase(_ context.Context, c *store.Case) error {
	f.cases = append(f.cases, c)
	return nil
}

func (f *fakeCaseStore) GetCase(_ context.Context, sessionID string) (*store.Case, error) {
	for _, c := range f.cases {
		if c.Session.ID == sessionID {
			return c, nil
		}
	}
	return nil, rakerr.New(rakerr.CodeStoreSessionGetNotFound, "no case: "+sessionID)
}

func (f *fakeCaseStore) ListCases(_ context.Context, _ store.ListOpts) ([]*store.Case, error) {
	return f.cases, nil
}

func (f *fakeCaseStore) Close() error { return nil }

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	gw := &scriptedGateway{resp: &reasoning.Response{
		Reply:                "Haan ji, ek minute rukiye.",
		Intent:               "stalling",
		RiskLevel:            store.RiskHigh,
		ContinueConversation: true,
		ScamType:             "Bank",
		Extracted:            &store.Extraction{UPIIDs: []string{"scammer@upi"}},
	}}

	sessions := store.NewMemorySessionStore()
	cases := &fakeCaseStore{}

	manager, err := engage.NewManager(engage.ManagerConfig{
		Store:       sessions,
		Cases:       cases,
		Gateway:     gw,
		TypingDelay: -1, // tests drive Trigger explicitly
	})
	require.NoError(t, err)

	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"})
	require.NoError(t, err)

	svc, err := server.NewServices(server.ServicesConfig{
		Manager:  manager,
		Sessions: sessions,
		Cases:    cases,
		Throttle: reasoning.NewThrottle(),
	})
	require.NoError(t, err)
	srv.RegisterServices(svc)

	return &testEnv{srv: srv, manager: manager, cases: cases}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)
	return w
}

func (e *testEnv) createSession(t *testing.T, seed string) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/sessions",
		fmt.Sprintf(`{"seed_message": %q, "scam_type": "Bank"}`, seed))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var view server.SessionView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	require.NotEmpty(t, view.ID)
	return view.ID
}

func TestRoutes_Health(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoutes_CreateSession(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/sessions",
		`{"seed_message": "Your KYC expires today!", "scam_type": "kyc scam"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var view server.SessionView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "KYC", view.ScamType)
	assert.Equal(t, "active", view.Status)
	assert.Equal(t, "idle", view.State)
}

func TestRoutes_CreateSession_EmptySeed(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/sessions", `{"seed_message": ""}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestRoutes_GetSession(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t, "Account blocked, call now")

	w := env.do(t, http.MethodGet, "/api/v1/sessions/"+id, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), id)

	w = env.do(t, http.MethodGet, "/api/v1/sessions/nonexistent", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRoutes_ListSessions(t *testing.T) {
	env := newTestEnv(t)
	env.createSession(t, "seed one")
	env.createSession(t, "seed two")

	w := env.do(t, http.MethodGet, "/api/v1/sessions", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Sessions []server.SessionView `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Sessions, 2)
}

func TestRoutes_SubmitTurnAndTranscript(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t, "Pay to scammer@upi immediately")

	w := env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/turns",
		`{"content": "Last warning, send money!"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "accepted")

	// Drive one generation cycle; the server records turns asynchronously
	// in production.
	ctrl, err := env.manager.Controller(id)
	require.NoError(t, err)
	require.True(t, ctrl.Trigger(context.Background()))

	w = env.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/transcript", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Turns []server.TurnView `json:"turns"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Turns, 3)
	assert.Equal(t, "adversary", resp.Turns[0].Role)
	assert.Equal(t, "agent", resp.Turns[2].Role)
	assert.Equal(t, "Haan ji, ek minute rukiye.", resp.Turns[2].Content)
}

func TestRoutes_SubmitTurn_UnknownSession(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/sessions/ghost/turns", `{"content": "hi"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRoutes_SubmitTurn_ClosedSessionConflicts(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t, "seed")

	w := env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/close", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/turns", `{"content": "anyone?"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRoutes_GetIntelligence(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t, "Pay to scammer@upi")

	ctrl, err := env.manager.Controller(id)
	require.NoError(t, err)
	require.True(t, ctrl.Trigger(context.Background()))

	w := env.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/intelligence", "")
	require.Equal(t, http.StatusOK, w.Code)

	var view server.IntelligenceView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, 1, view.Total)
	require.Len(t, view.Entries["upi_id"], 1)
	assert.Equal(t, "scammer@upi", view.Entries["upi_id"][0].Value)
}

func TestRoutes_CloseSessionArchivesCase(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t, "seed message")

	w := env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/close", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "closed")

	w = env.do(t, http.MethodGet, "/api/v1/cases/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)

	var view server.CaseView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, id, view.Session.ID)
	assert.Equal(t, "closed", view.Session.Status)
}

func TestRoutes_ListCases(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t, "seed")
	w := env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/close", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/cases", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Cases []server.CaseView `json:"cases"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Cases, 1)
}

func TestRoutes_GetCase_NotFound(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/cases/ghost", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRoutes_CasesUnavailableWithoutArchive(t *testing.T) {
	sessions := store.NewMemorySessionStore()
	manager, err := engage.NewManager(engage.ManagerConfig{
		Store:       sessions,
		Gateway:     &scriptedGateway{},
		TypingDelay: -1,
	})
	require.NoError(t, err)

	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"})
	require.NoError(t, err)
	svc, err := server.NewServices(server.ServicesConfig{Manager: manager, Sessions: sessions})
	require.NoError(t, err)
	srv.RegisterServices(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cases", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRoutes_Status(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Status  string `json:"status"`
		Gateway *struct {
			Throttled bool `json:"throttled"`
		} `json:"gateway"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.NotNil(t, resp.Gateway)
	assert.False(t, resp.Gateway.Throttled)
}

func TestNewServices_RequiresManagerAndSessions(t *testing.T) {
	_, err := server.NewServices(server.ServicesConfig{Sessions: store.NewMemorySessionStore()})
	require.Error(t, err)

	manager, err := engage.NewManager(engage.ManagerConfig{
		Store:   store.NewMemorySessionStore(),
		Gateway: &scriptedGateway{},
	})
	require.NoError(t, err)
	_, err = server.NewServices(server.ServicesConfig{Manager: manager})
	require.Error(t, err)
}

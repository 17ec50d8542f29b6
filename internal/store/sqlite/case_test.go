// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rakshak Contributors

package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rakshak-dev/rakshak/internal/store"
	"github.com/rakshak-dev/rakshak/internal/store/sqlite"
	rakerr "github.com/rakshak-dev/rakshak/pkg/errors"
)

func newCaseStore(t *testing.T) *sqlite.CaseStore {
	t.Helper()

	cs, err := sqlite.NewCaseStore(filepath.Join(t.TempDir(), "cases.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })
	return cs
}

func sampleCase(sessionID string, archivedAt time.Time) *store.Case {
	created := archivedAt.Add(-10 * time.Minute)

	record := store.NewIntelligenceRecord()
	record.Entries[store.ClassUPIID] = []store.IndicatorEntry{{
		Value:       "powerbill.recovery@okaxis",
		Confidence:  98,
		FirstSeenAt: created.Add(2 * time.Minute),
	}}
	record.Entries[store.ClassPhoneNumber] = []store.IndicatorEntry{{
		Value:       "9876543210",
		Confidence:  95,
		FirstSeenAt: created.Add(3 * time.Minute),
	}}

	return &store.Case{
		Session: &store.Session{
			ID:        sessionID,
			ScamType:  "Bank",
			Status:    store.SessionStatusClosed,
			CreatedAt: created,
			UpdatedAt: archivedAt,
		},
		Transcript: []*store.Turn{
			{
				ID:        sessionID + "-t1",
				SessionID: sessionID,
				Role:      store.RoleAdversary,
				Content:   "Bijli kat jayegi! Pay to powerbill.recovery@okaxis",
				SentAt:    created.Add(time.Minute),
			},
			{
				ID:        sessionID + "-t2",
				SessionID: sessionID,
				Role:      store.RoleAgent,
				Content:   "Arre ruko ji, main dekh raha hoon.",
				SentAt:    created.Add(2 * time.Minute),
				Intent:    "stalling",
				RiskLevel: store.RiskHigh,
				ScamType:  "Bank",
				Extracted: &store.Extraction{UPIIDs: []string{"powerbill.recovery@okaxis"}},
			},
		},
		Intelligence: record,
		ArchivedAt:   archivedAt,
	}
}

func TestCaseStore_ArchiveAndGetRoundTrip(t *testing.T) {
	cs := newCaseStore(t)
	ctx := context.Background()

	archived := time.Date(2026, 8, 15, 12, 0, 0, 123456789, time.UTC)
	require.NoError(t, cs.ArchiveCase(ctx, sampleCase("s1", archived)))

	got, err := cs.GetCase(ctx, "s1")
	require.NoError(t, err)

	assert.Equal(t, "s1", got.Session.ID)
	assert.Equal(t, "Bank", got.Session.ScamType)
	assert.Equal(t, store.SessionStatusClosed, got.Session.Status)
	assert.True(t, got.ArchivedAt.Equal(archived))

	require.Len(t, got.Transcript, 2)
	assert.Equal(t, store.RoleAdversary, got.Transcript[0].Role)
	agent := got.Transcript[1]
	assert.Equal(t, "stalling", agent.Intent)
	assert.Equal(t, store.RiskHigh, agent.RiskLevel)
	require.NotNil(t, agent.Extracted)
	assert.Equal(t, []string{"powerbill.recovery@okaxis"}, agent.Extracted.UPIIDs)

	assert.Equal(t, 2, got.Intelligence.Count())
	entries := got.Intelligence.Entries[store.ClassUPIID]
	require.Len(t, entries, 1)
	assert.Equal(t, "powerbill.recovery@okaxis", entries[0].Value)
	assert.Equal(t, 98, entries[0].Confidence)
}

func TestCaseStore_DuplicateArchiveConflicts(t *testing.T) {
	cs := newCaseStore(t)
	ctx := context.Background()

	c := sampleCase("s1", time.Now())
	require.NoError(t, cs.ArchiveCase(ctx, c))

	err := cs.ArchiveCase(ctx, c)
	require.Error(t, err)
	assert.True(t, rakerr.HasCode(err, rakerr.CodeStoreSessionCreateConflict))
}

func TestCaseStore_GetCaseNotFound(t *testing.T) {
	cs := newCaseStore(t)

	_, err := cs.GetCase(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, rakerr.HasCode(err, rakerr.CodeStoreSessionGetNotFound))
}

func TestCaseStore_ListCasesNewestFirst(t *testing.T) {
	cs := newCaseStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, cs.ArchiveCase(ctx, sampleCase(id, base.Add(time.Duration(i)*time.Hour))))
	}

	cases, err := cs.ListCases(ctx, store.ListOpts{})
	require.NoError(t, err)
	require.Len(t, cases, 3)
	assert.Equal(t, "new", cases[0].Session.ID)
	assert.Equal(t, "mid", cases[1].Session.ID)
	assert.Equal(t, "old", cases[2].Session.ID)

	// List views carry the intelligence summary but not the transcript.
	assert.Equal(t, 2, cases[0].Intelligence.Count())
	assert.Nil(t, cases[0].Transcript)
}

func TestCaseStore_ListCasesPagination(t *testing.T) {
	cs := newCaseStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		id := string(rune('a' + i))
		require.NoError(t, cs.ArchiveCase(ctx, sampleCase(id, base.Add(time.Duration(i)*time.Hour))))
	}

	page, err := cs.ListCases(ctx, store.ListOpts{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "d", page[0].Session.ID)
	assert.Equal(t, "c", page[1].Session.ID)
}

func TestCaseStore_ArchiveSurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cases.db")
	ctx := context.Background()

	cs, err := sqlite.NewCaseStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, cs.ArchiveCase(ctx, sampleCase("s1", time.Now())))
	require.NoError(t, cs.Close())

	reopened, err := sqlite.NewCaseStore(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetCase(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, got.Transcript, 2)
}

func TestCaseStore_EmptyTranscriptAndIntelligence(t *testing.T) {
	cs := newCaseStore(t)
	ctx := context.Background()

	c := &store.Case{
		Session: &store.Session{
			ID:        "bare",
			Status:    store.SessionStatusClosed,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		},
		Intelligence: store.NewIntelligenceRecord(),
		ArchivedAt:   time.Now(),
	}
	require.NoError(t, cs.ArchiveCase(ctx, c))

	got, err := cs.GetCase(ctx, "bare")
	require.NoError(t, err)
	assert.Empty(t, got.Transcript)
	require.NotNil(t, got.Intelligence)
	assert.Zero(t, got.Intelligence.Count())
}

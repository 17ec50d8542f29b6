// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rakshak Contributors

package intel_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rakshak-dev/rakshak/internal/intel"
	"github.com/rakshak-dev/rakshak/internal/store"
)

func TestMerge_AddsAllClasses(t *testing.T) {
	record := store.NewIntelligenceRecord()
	now := time.Now()

	added := intel.Merge(record, &store.Extraction{
		UPIIDs:       []string{"scammer@upi"},
		BankAccounts: []string{"50100234567890"},
		IFSCCodes:    []string{"HDFC0001234"},
		PhoneNumbers: []string{"9876543210"},
		PhishingURLs: []string{"http://phish.example.in"},
	}, now)

	assert.Equal(t, 5, added)
	assert.Equal(t, 5, record.Count())
}

func TestMerge_SameExtractionTwiceIsNoOp(t *testing.T) {
	record := store.NewIntelligenceRecord()
	extraction := &store.Extraction{
		UPIIDs:       []string{"scammer@upi"},
		PhoneNumbers: []string{"9876543210"},
	}

	first := intel.Merge(record, extraction, time.Now())
	second := intel.Merge(record, extraction, time.Now())

	assert.Equal(t, 2, first)
	assert.Equal(t, 0, second)
	assert.Equal(t, 2, record.Count())
}

func TestMerge_NilExtraction(t *testing.T) {
	record := store.NewIntelligenceRecord()
	assert.Equal(t, 0, intel.Merge(record, nil, time.Now()))
}

func TestMerge_ConfidenceDefaults(t *testing.T) {
	record := store.NewIntelligenceRecord()

	intel.Merge(record, &store.Extraction{
		UPIIDs:       []string{"scammer@upi"},
		BankAccounts: []string{"50100234567890"},
	}, time.Now())

	require.Len(t, record.Entries[store.ClassUPIID], 1)
	require.Len(t, record.Entries[store.ClassBankAccount], 1)
	assert.Equal(t, intel.UPIDefaultConfidence, record.Entries[store.ClassUPIID][0].Confidence)
	assert.Equal(t, intel.DefaultConfidence, record.Entries[store.ClassBankAccount][0].Confidence)
}

func TestMergeValues_DedupIsCaseAndWhitespaceInsensitive(t *testing.T) {
	record := store.NewIntelligenceRecord()
	now := time.Now()

	added := intel.MergeValues(record, store.ClassUPIID,
		[]string{"Scammer@UPI", "scammer@upi", "  SCAMMER@upi  "},
		intel.UPIDefaultConfidence, now)

	assert.Equal(t, 1, added)
	require.Len(t, record.Entries[store.ClassUPIID], 1)
	// First occurrence's casing is preserved.
	assert.Equal(t, "Scammer@UPI", record.Entries[store.ClassUPIID][0].Value)
}

func TestMergeValues_FirstSeenConfidenceWins(t *testing.T) {
	record := store.NewIntelligenceRecord()

	intel.MergeValues(record, store.ClassPhoneNumber, []string{"9876543210"}, 95, time.Now())
	intel.MergeValues(record, store.ClassPhoneNumber, []string{"9876543210"}, 40, time.Now())

	require.Len(t, record.Entries[store.ClassPhoneNumber], 1)
	assert.Equal(t, 95, record.Entries[store.ClassPhoneNumber][0].Confidence)
}

func TestMergeValues_FirstSeenTimestampWins(t *testing.T) {
	record := store.NewIntelligenceRecord()
	first := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	later := first.Add(time.Hour)

	intel.MergeValues(record, store.ClassIFSCCode, []string{"HDFC0001234"}, 95, first)
	intel.MergeValues(record, store.ClassIFSCCode, []string{"hdfc0001234"}, 95, later)

	require.Len(t, record.Entries[store.ClassIFSCCode], 1)
	assert.Equal(t, first, record.Entries[store.ClassIFSCCode][0].FirstSeenAt)
}

func TestMergeValues_SkipsEmptyAndWhitespace(t *testing.T) {
	record := store.NewIntelligenceRecord()

	added := intel.MergeValues(record, store.ClassPhishingURL,
		[]string{"", "   ", "http://phish.example.in"},
		intel.DefaultConfidence, time.Now())

	assert.Equal(t, 1, added)
	require.Len(t, record.Entries[store.ClassPhishingURL], 1)
}

func TestMergeValues_ClassesAreIndependent(t *testing.T) {
	record := store.NewIntelligenceRecord()
	now := time.Now()

	// Same literal value in two classes stays in both.
	intel.MergeValues(record, store.ClassPhoneNumber, []string{"9876543210"}, 95, now)
	intel.MergeValues(record, store.ClassBankAccount, []string{"9876543210"}, 95, now)

	assert.Len(t, record.Entries[store.ClassPhoneNumber], 1)
	assert.Len(t, record.Entries[store.ClassBankAccount], 1)
}

func TestKey_NormalizesCaseAndWhitespace(t *testing.T) {
	assert.Equal(t, intel.Key("Scammer@UPI"), intel.Key("  scammer@upi "))
	assert.Equal(t, "a b c", intel.Key("A   b\tC"))
	assert.NotEqual(t, intel.Key("a@upi"), intel.Key("b@upi"))
}

func TestMergeValues_AppendOrderIsStable(t *testing.T) {
	record := store.NewIntelligenceRecord()
	now := time.Now()

	intel.MergeValues(record, store.ClassUPIID, []string{"first@upi"}, 98, now)
	intel.MergeValues(record, store.ClassUPIID, []string{"second@upi", "first@upi"}, 98, now)

	entries := record.Entries[store.ClassUPIID]
	require.Len(t, entries, 2)
	assert.Equal(t, "first@upi", entries[0].Value)
	assert.Equal(t, "second@upi", entries[1].Value)
}

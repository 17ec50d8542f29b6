// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rakshak Contributors

// Package intel merges per-turn extraction payloads into a session's
// cumulative intelligence record.
package intel

import (
	"strings"
	"time"

	"github.com/rakshak-dev/rakshak/internal/store"
)

// Default confidence assigned when the upstream model reports a bare value.
// UPI handles get a higher default because the model only emits them when
// the adversary spelled one out verbatim. Opaque ranking hints, not
// calibrated probabilities.
const (
	DefaultConfidence    = 95
	UPIDefaultConfidence = 98
)

// Merge folds one turn's extraction into the record. It returns the number
// of genuinely new entries added across all classes; zero means the merge
// only re-confirmed already-known indicators and observers need not be
// notified. Merging the same extraction twice is a no-op the second time.
func Merge(record *store.IntelligenceRecord, extraction *store.Extraction, now time.Time) int {
	if extraction == nil {
		return 0
	}

	added := 0
	added += MergeValues(record, store.ClassUPIID, extraction.UPIIDs, UPIDefaultConfidence, now)
	added += MergeValues(record, store.ClassBankAccount, extraction.BankAccounts, DefaultConfidence, now)
	added += MergeValues(record, store.ClassIFSCCode, extraction.IFSCCodes, DefaultConfidence, now)
	added += MergeValues(record, store.ClassPhoneNumber, extraction.PhoneNumbers, DefaultConfidence, now)
	added += MergeValues(record, store.ClassPhishingURL, extraction.PhishingURLs, DefaultConfidence, now)
	return added
}

// MergeValues inserts values into one indicator class, deduplicating on the
// normalized key. The stored value preserves the original casing of the
// first occurrence; first-seen confidence wins, so re-extraction of a known
// value never raises or lowers the stored confidence.
func MergeValues(record *store.IntelligenceRecord, class store.IndicatorClass, values []string, confidence int, now time.Time) int {
	if len(values) == 0 {
		return 0
	}
	if record.Entries == nil {
		record.Entries = make(map[store.IndicatorClass][]store.IndicatorEntry)
	}

	known := make(map[string]struct{}, len(record.Entries[class]))
	for _, entry := range record.Entries[class] {
		known[Key(entry.Value)] = struct{}{}
	}

	added := 0
	for _, raw := range values {
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}

		key := Key(value)
		if _, ok := known[key]; ok {
			continue
		}
		known[key] = struct{}{}

		record.Entries[class] = append(record.Entries[class], store.IndicatorEntry{
			Value:       value,
			Confidence:  confidence,
			FirstSeenAt: now,
		})
		added++
	}
	return added
}

// Key computes the class-scoped dedup key for an indicator value:
// lower-cased with all whitespace runs collapsed. Keys are for comparison
// only; display values keep their original form.
func Key(value string) string {
	return strings.ToLower(strings.Join(strings.Fields(value), " "))
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rakshak Contributors

package store

import (
	"time"
)

// --- Session types ---

// SessionStatus represents the lifecycle state of an engagement session.
type SessionStatus string

const (
	SessionStatusActive SessionStatus = "active"
	SessionStatusClosed SessionStatus = "closed"
)

// Session represents one continuous engagement between the agent persona
// and one adversary. The session is created when the classifier collaborator
// confirms a scam; the seed adversary message becomes the first turn.
type Session struct {
	ID       string
	ScamType string // classifier verdict at creation; refined by later agent turns
	Status   SessionStatus
	// LastProcessed is the SentAt of the most recent adversary turn that has
	// already been dispatched for generation. The controller advances it
	// before the reasoning call goes out so a re-read of the transcript
	// during the in-flight call cannot re-trigger on the same turn.
	LastProcessed time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// --- Turn types ---

// Role identifies the speaker of a turn.
type Role string

const (
	// RoleAdversary is the scammer side of the conversation.
	RoleAdversary Role = "adversary"
	// RoleAgent is the defending honeypot persona.
	RoleAgent Role = "agent"
)

// RiskLevel is the model's self-assessed risk attached to agent turns.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Turn is one utterance in a session transcript. Turns are strictly ordered
// by SentAt and the transcript is append-only: no turn is ever edited or
// removed once committed.
type Turn struct {
	ID        string
	SessionID string
	Role      Role
	Content   string
	SentAt    time.Time
	// Intent is a short tactical label for agent turns
	// (e.g. "stalling for payment details").
	Intent string
	// RiskLevel is set on agent turns only.
	RiskLevel RiskLevel
	// ScamType is the classification the model reported on this agent turn.
	ScamType string
	// Extracted holds the indicator captures attributed to this agent turn,
	// already normalized from the raw wire payload. Nil for adversary turns.
	Extracted *Extraction
}

// Extraction is a single turn's canonical indicator capture: one string
// slice per indicator class. Bank accounts that arrived as structured
// objects have already been serialized to a stable string form.
type Extraction struct {
	UPIIDs       []string `json:"upi_ids"`
	BankAccounts []string `json:"bank_accounts"`
	IFSCCodes    []string `json:"ifsc_codes"`
	PhoneNumbers []string `json:"phone_numbers"`
	PhishingURLs []string `json:"phishing_urls"`
}

// Empty reports whether the extraction carries no indicators at all.
func (e *Extraction) Empty() bool {
	if e == nil {
		return true
	}
	return len(e.UPIIDs) == 0 &&
		len(e.BankAccounts) == 0 &&
		len(e.IFSCCodes) == 0 &&
		len(e.PhoneNumbers) == 0 &&
		len(e.PhishingURLs) == 0
}

// --- Intelligence types ---

// IndicatorClass names one of the indicator families tracked per session.
type IndicatorClass string

const (
	ClassUPIID       IndicatorClass = "upi_id"
	ClassBankAccount IndicatorClass = "bank_account"
	ClassIFSCCode    IndicatorClass = "ifsc_code"
	ClassPhoneNumber IndicatorClass = "phone_number"
	ClassPhishingURL IndicatorClass = "phishing_url"
)

// Classes lists all indicator classes in canonical order.
func Classes() []IndicatorClass {
	return []IndicatorClass{
		ClassUPIID,
		ClassBankAccount,
		ClassIFSCCode,
		ClassPhoneNumber,
		ClassPhishingURL,
	}
}

// IndicatorEntry is one captured indicator value. Value preserves the
// original casing of the first occurrence; deduplication happens on a
// normalized key (see intel package).
type IndicatorEntry struct {
	Value string `json:"value"`
	// Confidence is an opaque 0-100 ranking hint from the upstream model,
	// not a calibrated probability. First-seen confidence wins: later
	// re-extractions of a known value never change it.
	Confidence  int       `json:"confidence"`
	FirstSeenAt time.Time `json:"first_seen_at"`
}

// IntelligenceRecord is a session's cumulative extracted indicators,
// one entry list per class. Within a class, values are unique under
// case-insensitive whitespace-normalized comparison.
type IntelligenceRecord struct {
	Entries map[IndicatorClass][]IndicatorEntry `json:"entries"`
}

// NewIntelligenceRecord returns an empty record with all classes present.
func NewIntelligenceRecord() *IntelligenceRecord {
	entries := make(map[IndicatorClass][]IndicatorEntry, len(Classes()))
	for _, c := range Classes() {
		entries[c] = nil
	}
	return &IntelligenceRecord{Entries: entries}
}

// Count returns the total number of entries across all classes.
func (r *IntelligenceRecord) Count() int {
	n := 0
	for _, entries := range r.Entries {
		n += len(entries)
	}
	return n
}

// Clone returns a deep copy of the record.
func (r *IntelligenceRecord) Clone() *IntelligenceRecord {
	out := &IntelligenceRecord{Entries: make(map[IndicatorClass][]IndicatorEntry, len(r.Entries))}
	for class, entries := range r.Entries {
		out.Entries[class] = append([]IndicatorEntry(nil), entries...)
	}
	return out
}

// --- Case archive types ---

// Case is an archived, closed engagement: the session row plus its full
// transcript and final intelligence record, persisted by the case store.
type Case struct {
	Session      *Session
	Transcript   []*Turn
	Intelligence *IntelligenceRecord
	ArchivedAt   time.Time
}

// --- Query options ---

// ListOpts provides pagination parameters for list operations.
type ListOpts struct {
	Limit  int
	Offset int
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rakshak Contributors

// Package reasoning is the single choke point between the engagement engine
// and the external reasoning providers. Every call path through the Gateway
// terminates in either a validated Response or the documented fallback;
// callers never see an error from this package's Gateway.
package reasoning

import (
	"context"

	"github.com/rakshak-dev/rakshak/internal/store"
)

// Message is one (role, content) pair of the transcript as it crosses the
// gateway boundary.
type Message struct {
	Role    store.Role
	Content string
}

// Request carries the full ordered transcript for one session.
type Request struct {
	SessionID  string
	Transcript []Message
}

// Response is the strict canonical result of a reasoning call. Every field
// is always populated: missing or invalid upstream fields are substituted
// with deterministic defaults before a Response reaches the caller.
type Response struct {
	Reply                string
	Intent               string
	RiskLevel            store.RiskLevel
	ContinueConversation bool
	ScamType             string
	Extracted            *store.Extraction
}

// Provider generates one raw model completion for a transcript. The return
// value is the unparsed model text; the Gateway owns parsing and validation
// so the output contract is enforced in exactly one place.
type Provider interface {
	Name() string
	Available(ctx context.Context) bool
	Generate(ctx context.Context, model string, req Request) (string, error)
	Close() error
}

// Deterministic fallback values, matching the stock persona replies the
// engagement engine ships when the upstream is unavailable or malformed.
const (
	FallbackReply    = "Ji sir, main thoda confused hoon. Kahan pay karna hai?"
	FallbackIntent   = "Maintaining persona"
	ScamTypeUnknown  = "Unknown"
	FallbackRisk     = store.RiskMedium
	FallbackContinue = true
)

// Fallback returns the schema-complete substitute Response used whenever
// the upstream call fails entirely or returns unparseable output.
func Fallback() *Response {
	return &Response{
		Reply:                FallbackReply,
		Intent:               FallbackIntent,
		RiskLevel:            FallbackRisk,
		ContinueConversation: FallbackContinue,
		ScamType:             ScamTypeUnknown,
		Extracted:            &store.Extraction{},
	}
}

// PersonaPrompt is the fixed behavior instruction sent with every request.
// The persona is a worried, slightly confused citizen who keeps the
// adversary talking and coaxes out payment details.
const PersonaPrompt = `You are an autonomous honeypot persona engaging a scammer.

AGENT COMMUNICATION RULES (MANDATORY):
1. You MUST ALWAYS respond with a user-facing message. No silence.
2. Act as a believable victim persona: a worried citizen, confused and slow. Reply in Hinglish.
3. Sustain long-running conversations without losing context.
4. Extract intelligence (UPI handles, bank accounts, IFSC codes, phone numbers, links) subtly through natural dialogue.

OUTPUT FORMAT (STRICT CONTRACT):
Return a single JSON object:
{
  "reply": string,
  "intent": string,
  "riskLevel": "low" | "medium" | "high",
  "continueConversation": boolean,
  "scam_type": string,
  "extracted_intelligence": {
    "upi_ids": string[],
    "bank_accounts": string[],
    "ifsc_codes": string[],
    "phone_numbers": string[],
    "phishing_urls": string[]
  }
}`

// scamTypes is the fixed classification taxonomy. Anything else the model
// reports is normalized to "Unknown".
var scamTypes = map[string]string{
	"bank":    "Bank",
	"kyc":     "KYC",
	"courier": "Courier",
	"job":     "Job",
	"crypto":  "Crypto",
	"romance": "Romance",
	"loan":    "Loan",

	// Common variants models emit for the same buckets.
	"bank fraud":   "Bank",
	"banking":      "Bank",
	"upi":          "Bank",
	"upi fraud":    "Bank",
	"kyc fraud":    "KYC",
	"kyc scam":     "KYC",
	"courier scam": "Courier",
	"parcel":       "Courier",
	"job scam":     "Job",
	"job offer":    "Job",
	"crypto scam":  "Crypto",
	"investment":   "Crypto",
	"romance scam": "Romance",
	"loan scam":    "Loan",
	"loan app":     "Loan",
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rakshak Contributors

package reasoning

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rakshak-dev/rakshak/internal/store"
)

// rawResponse is the loosely-typed intermediate representation of an
// upstream reply. Fields may be missing, mistyped, or extra; Normalize maps
// this shape onto the strict Response with per-field defaults. Unvalidated
// upstream data never reaches session state directly.
type rawResponse struct {
	Reply                any              `json:"reply"`
	Intent               any              `json:"intent"`
	RiskLevel            any              `json:"riskLevel"`
	ContinueConversation any              `json:"continueConversation"`
	ScamType             any              `json:"scam_type"`
	ExtractedIntelligence *rawIntelligence `json:"extracted_intelligence"`
}

// rawIntelligence tolerates arbitrary element types per class. The wire
// contract says string[], but bank accounts in particular arrive as
// structured objects from some model revisions.
type rawIntelligence struct {
	UPIIDs       []any `json:"upi_ids"`
	BankAccounts []any `json:"bank_accounts"`
	IFSCCodes    []any `json:"ifsc_codes"`
	PhoneNumbers []any `json:"phone_numbers"`
	PhishingURLs []any `json:"phishing_urls"`
}

// Parse turns raw model text into the canonical Response. Markdown code
// fences are stripped first; if the remainder is not JSON, a salvage pass
// retries on the outermost {...} window. Text that still fails to parse is
// treated identically to a fully-missing response: the full fallback.
func Parse(text string) *Response {
	raw, ok := parseLoose(text)
	if !ok {
		return Fallback()
	}
	return Normalize(raw)
}

func parseLoose(text string) (*rawResponse, bool) {
	if strings.TrimSpace(text) == "" {
		return nil, false
	}

	cleaned := stripFences(text)

	var raw rawResponse
	if err := json.Unmarshal([]byte(cleaned), &raw); err == nil {
		return &raw, true
	}

	// Salvage: the model sometimes wraps valid JSON in prose. Retry on the
	// outermost brace window of the original text.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return nil, false
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, false
	}
	return &raw, true
}

// stripFences removes surrounding markdown code-fence decoration
// ("```json ... ```" or bare "```").
func stripFences(text string) string {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// Normalize maps the loose intermediate representation onto the strict
// Response. Defaults are substituted field by field, never for the whole
// response: a reply-only payload still yields the model's reply with
// default intent, risk, and an empty extraction.
func Normalize(raw *rawResponse) *Response {
	if raw == nil {
		return Fallback()
	}

	resp := &Response{
		Reply:                stringOr(raw.Reply, FallbackReply),
		Intent:               stringOr(raw.Intent, FallbackIntent),
		RiskLevel:            normalizeRisk(raw.RiskLevel),
		ContinueConversation: boolOr(raw.ContinueConversation, FallbackContinue),
		ScamType:             NormalizeScamType(stringOr(raw.ScamType, "")),
		Extracted:            normalizeIntelligence(raw.ExtractedIntelligence),
	}
	return resp
}

// NormalizeScamType maps a free-form label onto the fixed taxonomy,
// case-insensitively. Unrecognized and empty labels become "Unknown".
func NormalizeScamType(label string) string {
	if canonical, ok := scamTypes[strings.ToLower(strings.TrimSpace(label))]; ok {
		return canonical
	}
	return ScamTypeUnknown
}

func normalizeRisk(v any) store.RiskLevel {
	s, _ := v.(string)
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return store.RiskLow
	case "medium":
		return store.RiskMedium
	case "high":
		return store.RiskHigh
	default:
		return FallbackRisk
	}
}

func normalizeIntelligence(raw *rawIntelligence) *store.Extraction {
	if raw == nil {
		return &store.Extraction{}
	}
	return &store.Extraction{
		UPIIDs:       stringValues(raw.UPIIDs, false),
		BankAccounts: stringValues(raw.BankAccounts, true),
		IFSCCodes:    stringValues(raw.IFSCCodes, false),
		PhoneNumbers: stringValues(raw.PhoneNumbers, false),
		PhishingURLs: stringValues(raw.PhishingURLs, false),
	}
}

// stringValues coerces loose list elements to strings. Numbers are
// formatted without an exponent (phone numbers arrive as JSON numbers from
// some revisions). When allowObjects is set, structured values are
// serialized before use as an indicator value; encoding/json emits map
// keys in sorted order, so equal objects always produce the same string.
func stringValues(values []any, allowObjects bool) []string {
	if len(values) == 0 {
		return nil
	}

	out := make([]string, 0, len(values))
	for _, v := range values {
		switch tv := v.(type) {
		case string:
			if s := strings.TrimSpace(tv); s != "" {
				out = append(out, s)
			}
		case float64:
			out = append(out, strconv.FormatFloat(tv, 'f', -1, 64))
		case json.Number:
			out = append(out, tv.String())
		case map[string]any:
			if !allowObjects {
				continue
			}
			b, err := json.Marshal(tv)
			if err != nil {
				continue
			}
			out = append(out, string(b))
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func stringOr(v any, fallback string) string {
	if s, ok := v.(string); ok {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func boolOr(v any, fallback bool) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return fallback
}

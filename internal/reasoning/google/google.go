// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rakshak Contributors

package google

import (
	"context"

	"google.golang.org/genai"

	"github.com/rakshak-dev/rakshak/internal/reasoning"
	"github.com/rakshak-dev/rakshak/internal/store"
	rakerr "github.com/rakshak-dev/rakshak/pkg/errors"
)

// Config holds Google provider configuration.
type Config struct {
	APIKey string
	// ThinkingBudget caps the model's internal reasoning tokens. Zero
	// disables the thinking config entirely.
	ThinkingBudget int32
}

// Provider implements reasoning.Provider using the Google Gemini API.
// This is the primary provider: the Gemini structured-output schema lets
// us request the response contract directly instead of relying on prompt
// discipline alone.
type Provider struct {
	client *genai.Client
	config Config
	health *reasoning.HealthTracker
}

// New creates a new Google provider. Returns an error if the API key is missing.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, rakerr.New(rakerr.CodeReasoningRequestInvalid, "google: missing api_key in config", rakerr.FieldProvider("google"))
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, rakerr.Wrapf(err, rakerr.CodeReasoningUpstreamFailure, "google: creating client")
	}

	health, err := reasoning.NewHealthTracker(reasoning.DefaultHealthCooldown)
	if err != nil {
		return nil, rakerr.Wrapf(err, rakerr.CodeReasoningRequestInvalid, "google: creating health tracker")
	}

	return &Provider{
		client: client,
		config: cfg,
		health: health,
	}, nil
}

func (p *Provider) Name() string { return "google" }

func (p *Provider) Available(_ context.Context) bool {
	return p.health.IsHealthy()
}

func (p *Provider) Health() *reasoning.HealthTracker { return p.health }

// Generate runs one non-streaming completion over the transcript and
// returns the raw model text. The gateway owns parsing.
func (p *Provider) Generate(ctx context.Context, model string, req reasoning.Request) (string, error) {
	contents := convertTranscript(req.Transcript)
	config := p.buildConfig()

	result, err := p.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		p.health.RecordFailure()
		return "", rakerr.Wrapf(err, rakerr.CodeReasoningUpstreamFailure, "google: generate content")
	}

	p.health.RecordSuccess()
	return result.Text(), nil
}

func (p *Provider) Close() error { return nil }

// convertTranscript maps transcript roles onto the Gemini protocol:
// adversary turns are the "user" side, agent turns the "model" side.
func convertTranscript(transcript []reasoning.Message) []*genai.Content {
	var contents []*genai.Content
	for _, msg := range transcript {
		role := "user"
		if msg.Role == store.RoleAgent {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role: role,
			Parts: []*genai.Part{
				{Text: msg.Content},
			},
		})
	}
	return contents
}

func (p *Provider) buildConfig() *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema(),
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{
				{Text: reasoning.PersonaPrompt},
			},
		},
	}

	if p.config.ThinkingBudget > 0 {
		cfg.ThinkingConfig = &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr(p.config.ThinkingBudget),
		}
	}

	return cfg
}

// responseSchema declares the strict output contract to the model. The
// gateway still validates the result: schema-constrained decoding reduces
// malformed output but does not eliminate it.
func responseSchema() *genai.Schema {
	stringList := &genai.Schema{
		Type:  genai.TypeArray,
		Items: &genai.Schema{Type: genai.TypeString},
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"reply":  {Type: genai.TypeString},
			"intent": {Type: genai.TypeString},
			"riskLevel": {
				Type: genai.TypeString,
				Enum: []string{"low", "medium", "high"},
			},
			"continueConversation": {Type: genai.TypeBoolean},
			"scam_type":            {Type: genai.TypeString},
			"extracted_intelligence": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"upi_ids":       stringList,
					"bank_accounts": stringList,
					"ifsc_codes":    stringList,
					"phone_numbers": stringList,
					"phishing_urls": stringList,
				},
			},
		},
		Required: []string{"reply", "intent", "riskLevel", "continueConversation", "scam_type", "extracted_intelligence"},
	}
}

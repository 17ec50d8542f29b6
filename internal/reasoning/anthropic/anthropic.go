// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rakshak Contributors

package anthropic

import (
	"context"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/rakshak-dev/rakshak/internal/reasoning"
	"github.com/rakshak-dev/rakshak/internal/store"
	rakerr "github.com/rakshak-dev/rakshak/pkg/errors"
)

// defaultMaxTokens bounds one agent turn; persona replies are short.
const defaultMaxTokens = 2048

// Config holds Anthropic provider configuration.
type Config struct {
	APIKey  string
	BaseURL string // optional, useful for testing against a mock server
}

// Provider implements reasoning.Provider using the Anthropic Messages API.
// Anthropic has no structured-output mode; the persona prompt carries the
// output contract and the gateway's parser enforces it.
type Provider struct {
	client anthropicsdk.Client
	config Config
	health *reasoning.HealthTracker
}

// New creates a new Anthropic provider. Returns an error if the API key is missing.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, rakerr.New(rakerr.CodeReasoningRequestInvalid, "anthropic: missing api_key in config", rakerr.FieldProvider("anthropic"))
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	health, err := reasoning.NewHealthTracker(reasoning.DefaultHealthCooldown)
	if err != nil {
		return nil, rakerr.Wrapf(err, rakerr.CodeReasoningRequestInvalid, "anthropic: creating health tracker")
	}

	return &Provider{
		client: anthropicsdk.NewClient(opts...),
		config: cfg,
		health: health,
	}, nil
}

func (p *Provider) Name() string { return "anthropic" }

func (p *Provider) Available(_ context.Context) bool {
	return p.health.IsHealthy()
}

func (p *Provider) Health() *reasoning.HealthTracker { return p.health }

func (p *Provider) Generate(ctx context.Context, model string, req reasoning.Request) (string, error) {
	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(model),
		Messages:  convertTranscript(req.Transcript),
		MaxTokens: defaultMaxTokens,
		System: []anthropicsdk.TextBlockParam{
			{Text: reasoning.PersonaPrompt},
		},
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		p.health.RecordFailure()
		return "", rakerr.Wrapf(err, rakerr.CodeReasoningUpstreamFailure, "anthropic: messages call")
	}

	p.health.RecordSuccess()

	var buf strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			buf.WriteString(block.Text)
		}
	}
	return buf.String(), nil
}

func (p *Provider) Close() error { return nil }

// convertTranscript maps transcript roles onto the Messages API:
// adversary turns become user messages, agent turns assistant messages.
func convertTranscript(transcript []reasoning.Message) []anthropicsdk.MessageParam {
	var result []anthropicsdk.MessageParam
	for _, msg := range transcript {
		if msg.Role == store.RoleAgent {
			result = append(result, anthropicsdk.NewAssistantMessage(
				anthropicsdk.NewTextBlock(msg.Content),
			))
			continue
		}
		result = append(result, anthropicsdk.NewUserMessage(
			anthropicsdk.NewTextBlock(msg.Content),
		))
	}
	return result
}

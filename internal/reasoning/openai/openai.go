// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rakshak Contributors

package openai

import (
	"context"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/rakshak-dev/rakshak/internal/reasoning"
	"github.com/rakshak-dev/rakshak/internal/store"
	rakerr "github.com/rakshak-dev/rakshak/pkg/errors"
)

// Config holds OpenAI provider configuration.
type Config struct {
	APIKey  string
	BaseURL string // optional, useful for testing against a mock server
}

// Provider implements reasoning.Provider using the OpenAI Chat Completions
// API in JSON mode.
type Provider struct {
	client openaisdk.Client
	config Config
	health *reasoning.HealthTracker
}

// New creates a new OpenAI provider. Returns an error if the API key is missing.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, rakerr.New(rakerr.CodeReasoningRequestInvalid, "openai: missing api_key in config", rakerr.FieldProvider("openai"))
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	health, err := reasoning.NewHealthTracker(reasoning.DefaultHealthCooldown)
	if err != nil {
		return nil, rakerr.Wrapf(err, rakerr.CodeReasoningRequestInvalid, "openai: creating health tracker")
	}

	return &Provider{
		client: openaisdk.NewClient(opts...),
		config: cfg,
		health: health,
	}, nil
}

func (p *Provider) Name() string { return "openai" }

func (p *Provider) Available(_ context.Context) bool {
	return p.health.IsHealthy()
}

func (p *Provider) Health() *reasoning.HealthTracker { return p.health }

func (p *Provider) Generate(ctx context.Context, model string, req reasoning.Request) (string, error) {
	params := openaisdk.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: convertTranscript(req.Transcript),
		ResponseFormat: openaisdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		p.health.RecordFailure()
		return "", rakerr.Wrapf(err, rakerr.CodeReasoningUpstreamFailure, "openai: chat completion")
	}

	p.health.RecordSuccess()

	if len(completion.Choices) == 0 {
		return "", rakerr.New(rakerr.CodeReasoningUpstreamFailure, "openai: completion returned no choices", rakerr.FieldProvider("openai"))
	}
	return completion.Choices[0].Message.Content, nil
}

func (p *Provider) Close() error { return nil }

// convertTranscript maps transcript roles onto chat-completion messages,
// with the persona prompt prepended as the system message.
func convertTranscript(transcript []reasoning.Message) []openaisdk.ChatCompletionMessageParamUnion {
	result := []openaisdk.ChatCompletionMessageParamUnion{
		openaisdk.SystemMessage(reasoning.PersonaPrompt),
	}
	for _, msg := range transcript {
		if msg.Role == store.RoleAgent {
			result = append(result, openaisdk.AssistantMessage(msg.Content))
			continue
		}
		result = append(result, openaisdk.UserMessage(msg.Content))
	}
	return result
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rakshak Contributors

package reasoning

import (
	"context"
	"log/slog"
	"strings"

	rakerr "github.com/rakshak-dev/rakshak/pkg/errors"
)

// defaultRetries is the retry bound for transient upstream errors. The
// gateway makes at most 1 + defaultRetries generation attempts per provider
// walk; rate-limit signals short-circuit to the fallback with no retry.
const defaultRetries = 1

// GatewayConfig holds dependencies for the Gateway.
type GatewayConfig struct {
	Registry *Registry
	Throttle *Throttle
	// Retries bounds retry attempts on transient errors. Negative means
	// the default of 1.
	Retries int
	Logger  *slog.Logger
}

// Gateway translates a transcript into the external request/response
// contract, enforcing the structured-output schema and applying resilience
// policy. Generate never returns an error: every call path terminates in
// either a validated Response or the documented fallback, so the engagement
// controller needs no error-handling branches for this dependency.
type Gateway struct {
	registry *Registry
	throttle *Throttle
	retries  int
	logger   *slog.Logger
}

// NewGateway creates a Gateway. The throttle flag is required: it is the
// only process-wide shared state and must be injected, not ambient.
func NewGateway(cfg GatewayConfig) (*Gateway, error) {
	if cfg.Registry == nil {
		return nil, rakerr.New(rakerr.CodeReasoningRequestInvalid, "gateway requires a provider registry")
	}
	if cfg.Throttle == nil {
		return nil, rakerr.New(rakerr.CodeReasoningRequestInvalid, "gateway requires an injected throttle flag")
	}

	retries := cfg.Retries
	if retries < 0 {
		retries = defaultRetries
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Gateway{
		registry: cfg.Registry,
		throttle: cfg.Throttle,
		retries:  retries,
		logger:   logger,
	}, nil
}

// Generate produces the agent's next turn for the given transcript.
//
// Resilience policy: on a rate-limit signal the throttle flag is raised and
// the fallback returns immediately, with no retry. Any other transient
// error is retried up to the configured bound, walking the failover chain,
// before falling back. A successful call always clears the throttle flag.
func (g *Gateway) Generate(ctx context.Context, req Request) *Response {
	attempts := g.retries + 1
	if max := g.registry.MaxAttempts(); max > attempts {
		attempts = max
	}

	var tried []string
	for attempt := 0; attempt < attempts; attempt++ {
		provider, model, err := g.registry.Route(ctx, tried)
		if err != nil {
			g.logger.Warn("no reasoning provider available",
				"session_id", req.SessionID,
				"attempt", attempt,
				"error", err)
			break
		}
		tried = append(tried, provider.Name())

		raw, err := provider.Generate(ctx, model, req)
		if err != nil {
			if isRateLimited(err) {
				g.throttle.MarkThrottled()
				g.logger.Warn("reasoning provider throttled, serving fallback",
					"session_id", req.SessionID,
					"provider", provider.Name())
				return Fallback()
			}

			g.throttle.RecordError()
			g.logger.Error("reasoning call failed",
				"session_id", req.SessionID,
				"provider", provider.Name(),
				"attempt", attempt,
				"error", err)
			continue
		}

		g.throttle.Clear()
		return Parse(raw)
	}

	return Fallback()
}

// isRateLimited recognizes provider rate-limit signals: our own throttled
// code, or the 429 / RESOURCE_EXHAUSTED markers SDKs embed in error text.
func isRateLimited(err error) bool {
	if rakerr.IsThrottled(err) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

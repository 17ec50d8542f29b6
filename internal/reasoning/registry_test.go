// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rakshak Contributors

package reasoning_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rakshak-dev/rakshak/internal/reasoning"
	rakerr "github.com/rakshak-dev/rakshak/pkg/errors"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := reasoning.NewRegistry()
	reg.Register("google", &mockProvider{name: "google", available: true})

	got, err := reg.Get("google")
	require.NoError(t, err)
	assert.Equal(t, "google", got.Name())
}

func TestRegistry_GetUnknownProvider(t *testing.T) {
	reg := reasoning.NewRegistry()

	_, err := reg.Get("nope")
	require.Error(t, err)
	assert.True(t, rakerr.HasCode(err, rakerr.CodeReasoningProviderNotFound))
}

func TestRegistry_SetDefaultRequiresRegisteredProvider(t *testing.T) {
	reg := reasoning.NewRegistry()
	require.Error(t, reg.SetDefault("google/gemini-2.5-flash"))

	reg.Register("google", &mockProvider{name: "google", available: true})
	require.NoError(t, reg.SetDefault("google/gemini-2.5-flash"))
}

func TestRegistry_RoutePrefersDefault(t *testing.T) {
	reg := reasoning.NewRegistry()
	reg.Register("google", &mockProvider{name: "google", available: true})
	reg.Register("anthropic", &mockProvider{name: "anthropic", available: true})
	require.NoError(t, reg.SetDefault("google/gemini-2.5-flash"))
	require.NoError(t, reg.SetFailover([]string{"anthropic/claude-sonnet-4-5"}))

	p, model, err := reg.Route(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "google", p.Name())
	assert.Equal(t, "gemini-2.5-flash", model)
}

func TestRegistry_RouteSkipsUnhealthyAndExcluded(t *testing.T) {
	reg := reasoning.NewRegistry()
	reg.Register("google", &mockProvider{name: "google", available: false})
	reg.Register("anthropic", &mockProvider{name: "anthropic", available: true})
	reg.Register("openai", &mockProvider{name: "openai", available: true})
	require.NoError(t, reg.SetDefault("google/gemini-2.5-flash"))
	require.NoError(t, reg.SetFailover([]string{"anthropic/claude-sonnet-4-5", "openai/gpt-4o-mini"}))

	// Default is unhealthy, anthropic is excluded: openai wins.
	p, model, err := reg.Route(context.Background(), []string{"anthropic"})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())
	assert.Equal(t, "gpt-4o-mini", model)
}

func TestRegistry_RouteAllUnavailable(t *testing.T) {
	reg := reasoning.NewRegistry()
	reg.Register("google", &mockProvider{name: "google", available: false})
	require.NoError(t, reg.SetDefault("google/gemini-2.5-flash"))

	_, _, err := reg.Route(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, rakerr.HasCode(err, rakerr.CodeReasoningAllUnavailable))
}

func TestRegistry_RouteWithoutDefault(t *testing.T) {
	reg := reasoning.NewRegistry()

	_, _, err := reg.Route(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, rakerr.HasCode(err, rakerr.CodeReasoningNoDefault))
}

func TestRegistry_MaxAttempts(t *testing.T) {
	reg := reasoning.NewRegistry()
	reg.Register("google", &mockProvider{name: "google", available: true})
	reg.Register("anthropic", &mockProvider{name: "anthropic", available: true})
	require.NoError(t, reg.SetDefault("google/gemini-2.5-flash"))

	assert.Equal(t, 1, reg.MaxAttempts())
	require.NoError(t, reg.SetFailover([]string{"anthropic/claude-sonnet-4-5"}))
	assert.Equal(t, 2, reg.MaxAttempts())
}

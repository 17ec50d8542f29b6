// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rakshak Contributors

package reasoning

import (
	"context"
	"slices"
	"strings"
	"sync"

	rakerr "github.com/rakshak-dev/rakshak/pkg/errors"
)

// Registry manages provider registration, lookup, and routing with
// health-aware failover. Refs use "provider/model" format.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider

	defaultRef string
	failover   []string // ordered list of "provider/model" refs
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider to the registry.
func (r *Registry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

// Get retrieves a provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, rakerr.New(
			rakerr.CodeReasoningProviderNotFound,
			"provider not found: "+name,
			rakerr.FieldProvider(name),
		)
	}
	return p, nil
}

// SetDefault sets the default "provider/model" reference. Returns an error
// if the provider portion of the ref is not registered.
func (r *Registry) SetDefault(ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	provName, _ := parseRef(ref)
	if _, ok := r.providers[provName]; !ok {
		return rakerr.New(
			rakerr.CodeReasoningProviderNotFound,
			"SetDefault: provider not registered: "+provName,
			rakerr.FieldProvider(provName),
		)
	}
	r.defaultRef = ref
	return nil
}

// SetFailover sets the ordered failover chain of "provider/model" refs.
// Returns an error if any provider portion of the refs is not registered.
func (r *Registry) SetFailover(chain []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ref := range chain {
		provName, _ := parseRef(ref)
		if _, ok := r.providers[provName]; !ok {
			return rakerr.New(
				rakerr.CodeReasoningProviderNotFound,
				"SetFailover: provider not registered: "+provName,
				rakerr.FieldProvider(provName),
			)
		}
	}
	r.failover = append([]string(nil), chain...)
	return nil
}

// Route selects the first healthy provider: the default ref first, then the
// failover chain in order. Providers named in exclude are skipped so a
// failover sequence never retries a provider that already failed this call.
func (r *Registry) Route(ctx context.Context, exclude []string) (Provider, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.defaultRef == "" {
		return nil, "", rakerr.New(
			rakerr.CodeReasoningNoDefault,
			"no default provider configured",
		)
	}

	refs := append([]string{r.defaultRef}, r.failover...)
	for _, ref := range refs {
		provName, model := parseRef(ref)
		if slices.Contains(exclude, provName) {
			continue
		}

		p, ok := r.providers[provName]
		if !ok {
			continue
		}
		if !p.Available(ctx) {
			continue
		}
		return p, model, nil
	}

	return nil, "", rakerr.New(
		rakerr.CodeReasoningAllUnavailable,
		"all providers unavailable: no healthy provider found",
	)
}

// Providers returns a snapshot of the registered providers keyed by name.
func (r *Registry) Providers() map[string]Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Provider, len(r.providers))
	for name, p := range r.providers {
		out[name] = p
	}
	return out
}

// MaxAttempts returns 1 (primary) + len(failover chain) so the gateway caps
// its failover walk to exactly the number of configured candidates.
func (r *Registry) MaxAttempts() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return 1 + len(r.failover)
}

// Close shuts down all registered providers.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, p := range r.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return rakerr.Join(errs...)
	}
	return nil
}

// parseRef splits a "provider/model" reference on the first "/".
func parseRef(ref string) (providerName, model string) {
	idx := strings.Index(ref, "/")
	if idx < 0 {
		return ref, ""
	}
	return ref[:idx], ref[idx+1:]
}

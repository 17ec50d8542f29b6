// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rakshak Contributors

package server

import (
	"github.com/rakshak-dev/rakshak/internal/engage"
	"github.com/rakshak-dev/rakshak/internal/reasoning"
	"github.com/rakshak-dev/rakshak/internal/store"
	rakerr "github.com/rakshak-dev/rakshak/pkg/errors"
)

// Services holds dependencies injected into route handlers.
// Use NewServices constructor to ensure all required services are provided.
type Services struct {
	manager  *engage.Manager
	sessions store.SessionStore
	cases    store.CaseStore     // optional; nil = case endpoints return 503
	throttle *reasoning.Throttle // optional; nil = status omits throttle state
	registry *reasoning.Registry // optional; nil = status omits provider health
}

// ServicesConfig bundles the dependencies for NewServices.
type ServicesConfig struct {
	Manager  *engage.Manager
	Sessions store.SessionStore
	Cases    store.CaseStore
	Throttle *reasoning.Throttle
	Registry *reasoning.Registry
}

// NewServices creates a Services instance with validation.
// Returns an error if any required service is nil.
func NewServices(cfg ServicesConfig) (*Services, error) {
	if cfg.Manager == nil {
		return nil, rakerr.New(rakerr.CodeServerStartFailure, "engagement manager is required")
	}
	if cfg.Sessions == nil {
		return nil, rakerr.New(rakerr.CodeServerStartFailure, "session store is required")
	}
	return &Services{
		manager:  cfg.Manager,
		sessions: cfg.Sessions,
		cases:    cfg.Cases,
		throttle: cfg.Throttle,
		registry: cfg.Registry,
	}, nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rakshak Contributors

package health

import "time"

// Metrics exposes the current health state of a reasoning provider for
// monitoring and operator visibility. All fields are point-in-time
// snapshots safe to serialize to JSON.
type Metrics struct {
	FailureCount  int64      `json:"failure_count"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
	Available     bool       `json:"available"`
}

// GatewayStatus is the process-wide snapshot of the reasoning gateway:
// the advisory throttle flag plus aggregate error counts. Consumers
// (the UI collaborator) use Throttled to switch to a degraded mode.
type GatewayStatus struct {
	Throttled      bool       `json:"throttled"`
	LastThrottleAt *time.Time `json:"last_throttle_at,omitempty"`
	ErrorCount     int64      `json:"error_count"`
}

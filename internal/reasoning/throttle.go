// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rakshak Contributors

package reasoning

import (
	"sync/atomic"
	"time"

	"github.com/rakshak-dev/rakshak/pkg/health"
)

// Throttle is the process-wide advisory flag raised when the upstream
// reasoning provider rate-limits requests. It is explicitly owned and
// injected into the Gateway at construction, never ambient global state,
// so tests can supply their own instance. Last-writer-wins is acceptable:
// the flag is advisory, not correctness-critical.
type Throttle struct {
	throttled      atomic.Bool
	lastThrottleAt atomic.Int64 // unix nanos; 0 = never
	errorCount     atomic.Int64
}

// NewThrottle returns a clear throttle flag.
func NewThrottle() *Throttle {
	return &Throttle{}
}

// MarkThrottled raises the flag and records the time.
func (t *Throttle) MarkThrottled() {
	t.throttled.Store(true)
	t.lastThrottleAt.Store(time.Now().UnixNano())
	t.errorCount.Add(1)
}

// Clear lowers the flag. Called after every successful upstream call.
func (t *Throttle) Clear() {
	t.throttled.Store(false)
}

// IsThrottled reports whether the upstream is currently rate-limiting.
func (t *Throttle) IsThrottled() bool {
	return t.throttled.Load()
}

// RecordError increments the aggregate error counter for non-throttle
// upstream failures.
func (t *Throttle) RecordError() {
	t.errorCount.Add(1)
}

// ErrorCount returns the cumulative upstream error count.
func (t *Throttle) ErrorCount() int64 {
	return t.errorCount.Load()
}

// Status returns a point-in-time snapshot for operational visibility.
func (t *Throttle) Status() health.GatewayStatus {
	status := health.GatewayStatus{
		Throttled:  t.throttled.Load(),
		ErrorCount: t.errorCount.Load(),
	}
	if nanos := t.lastThrottleAt.Load(); nanos > 0 {
		at := time.Unix(0, nanos)
		status.LastThrottleAt = &at
	}
	return status
}

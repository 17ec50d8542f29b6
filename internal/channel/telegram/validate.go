// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rakshak Contributors

// Package telegram verifies credentials for the Telegram bot that relays
// scammer messages into the engagement engine.
package telegram

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	rakerr "github.com/rakshak-dev/rakshak/pkg/errors"
)

const defaultAPIBase = "https://api.telegram.org"

// Validator checks Telegram bot tokens against the Bot API.
type Validator struct {
	client  *http.Client
	apiBase string
}

// Option configures a Validator.
type Option func(*Validator)

// WithClient sets the HTTP client used for validation calls.
func WithClient(client *http.Client) Option {
	return func(v *Validator) { v.client = client }
}

// WithAPIBase overrides the Telegram API base URL (for tests).
func WithAPIBase(base string) Option {
	return func(v *Validator) { v.apiBase = strings.TrimRight(base, "/") }
}

// NewValidator creates a Validator with a 10 second default timeout.
func NewValidator(opts ...Option) *Validator {
	v := &Validator{
		client:  &http.Client{Timeout: 10 * time.Second},
		apiBase: defaultAPIBase,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateToken calls the Bot API getMe endpoint to verify the token is
// usable before the relay goes live. A 401 or 403 means the token itself
// is bad; any other failure means the check could not complete.
func (v *Validator) ValidateToken(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return rakerr.New(rakerr.CodeChannelTokenInvalid, "telegram bot token must not be empty")
	}

	url := v.apiBase + "/bot" + token + "/getMe"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return rakerr.Wrapf(err, rakerr.CodeChannelTokenCheckFailed, "building telegram validation request")
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return rakerr.Wrapf(err, rakerr.CodeChannelTokenCheckFailed, "calling telegram getMe")
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return rakerr.Errorf(rakerr.CodeChannelTokenInvalid,
			"telegram rejected the bot token (HTTP %d)", resp.StatusCode)
	case resp.StatusCode >= 400:
		return rakerr.Errorf(rakerr.CodeChannelTokenCheckFailed,
			"telegram token check failed (HTTP %d)", resp.StatusCode)
	}
	return nil
}

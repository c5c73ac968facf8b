// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

// Package mretry holds the retry policies of the ledger core: the linear,
// jitter-free FastTransferBackoff used for the fast-path transfer
// handler's serialization-conflict retries, and the Config whose fields
// the outbox dispatcher's exponential publish backoff reads. The offline
// queue's sync does not use this package.
package mretry

import (
	"errors"
	"math/rand"
	"time"
)

// Default tuning for general-purpose outbox-style retries.
const (
	DefaultMaxRetries     = 10
	DefaultInitialBackoff = 1 * time.Second
	DefaultMaxBackoff     = 30 * time.Minute
	DefaultJitterFactor   = 0.25

	// DLQInitialBackoff is the slower initial backoff of DefaultDLQConfig.
	DLQInitialBackoff = 1 * time.Minute
)

// Config describes a capped backoff policy with jitter. Its own Backoff
// grows linearly; the outbox dispatcher computes exponential growth from
// the same fields.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	JitterFactor   float64
}

// DefaultMetadataOutboxConfig is the policy used by the outbox dispatcher.
func DefaultMetadataOutboxConfig() Config {
	return Config{
		MaxRetries:     DefaultMaxRetries,
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
		JitterFactor:   DefaultJitterFactor,
	}
}

// DefaultDLQConfig is a slower-cadence policy (one minute initial backoff).
// The outbox dispatcher does not use it: a message past its retry budget
// moves to StatusDLQ, which is terminal.
func DefaultDLQConfig() Config {
	return Config{
		MaxRetries:     DefaultMaxRetries,
		InitialBackoff: DLQInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
		JitterFactor:   DefaultJitterFactor,
	}
}

// FastTransferConfig is the hot-path policy: linear backoff of
// baseDelay * attempt, no jitter. MaxBackoff is maxRetries * baseDelay,
// the delay before the last retry.
func FastTransferConfig(maxRetries int, baseDelay time.Duration) Config {
	return Config{
		MaxRetries:     maxRetries,
		InitialBackoff: baseDelay,
		MaxBackoff:     baseDelay * time.Duration(maxRetries),
		JitterFactor:   0,
	}
}

func (c Config) WithMaxRetries(n int) Config               { c.MaxRetries = n; return c }
func (c Config) WithInitialBackoff(d time.Duration) Config { c.InitialBackoff = d; return c }
func (c Config) WithMaxBackoff(d time.Duration) Config     { c.MaxBackoff = d; return c }
func (c Config) WithJitterFactor(f float64) Config         { c.JitterFactor = f; return c }

// Validate reports whether the config describes a usable policy.
func (c Config) Validate() error {
	if c.MaxRetries < 0 {
		return errors.New("mretry: MaxRetries must be >= 0")
	}

	if c.InitialBackoff <= 0 || c.MaxBackoff <= 0 {
		return errors.New("mretry: backoff durations must be positive")
	}

	if c.InitialBackoff > c.MaxBackoff {
		return errors.New("mretry: InitialBackoff must not exceed MaxBackoff")
	}

	if c.JitterFactor < 0 || c.JitterFactor > 1 {
		return errors.New("mretry: JitterFactor must be in [0,1]")
	}

	return nil
}

// Backoff returns the delay before retry attempt n (1-indexed), including
// jitter, capped at MaxBackoff.
func (c Config) Backoff(attempt int) time.Duration {
	d := c.InitialBackoff * time.Duration(attempt)
	if d > c.MaxBackoff {
		d = c.MaxBackoff
	}

	if c.JitterFactor == 0 {
		return d
	}

	jitter := float64(d) * c.JitterFactor * (rand.Float64()*2 - 1)

	return d + time.Duration(jitter)
}

// FastTransferBackoff returns the linear hot-path delay baseDelay *
// attempt, attempt being 1-indexed.
func FastTransferBackoff(baseDelay time.Duration, attempt int) time.Duration {
	return baseDelay * time.Duration(attempt)
}

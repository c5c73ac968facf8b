// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

package mretry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultMetadataOutboxConfig(t *testing.T) {
	cfg := DefaultMetadataOutboxConfig()

	assert.Equal(t, DefaultMaxRetries, cfg.MaxRetries)
	assert.Equal(t, DefaultInitialBackoff, cfg.InitialBackoff)
	assert.Equal(t, DefaultMaxBackoff, cfg.MaxBackoff)
	assert.Equal(t, DefaultJitterFactor, cfg.JitterFactor)
}

func TestDefaultDLQConfig(t *testing.T) {
	cfg := DefaultDLQConfig()

	assert.Equal(t, DefaultMaxRetries, cfg.MaxRetries)
	assert.Equal(t, DLQInitialBackoff, cfg.InitialBackoff)
	assert.Equal(t, DefaultMaxBackoff, cfg.MaxBackoff)
	assert.Equal(t, DefaultJitterFactor, cfg.JitterFactor)
}

func TestConfig_WithMaxRetries(t *testing.T) {
	cfg := DefaultMetadataOutboxConfig().WithMaxRetries(5)

	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, DefaultInitialBackoff, cfg.InitialBackoff)
}

func TestConfig_WithInitialBackoff(t *testing.T) {
	cfg := DefaultMetadataOutboxConfig().WithInitialBackoff(2 * time.Second)

	assert.Equal(t, 2*time.Second, cfg.InitialBackoff)
	assert.Equal(t, DefaultMaxRetries, cfg.MaxRetries)
}

func TestConfig_Chaining(t *testing.T) {
	cfg := DefaultMetadataOutboxConfig().
		WithMaxRetries(5).
		WithInitialBackoff(2 * time.Second).
		WithMaxBackoff(1 * time.Hour).
		WithJitterFactor(0.5)

	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.InitialBackoff)
	assert.Equal(t, 1*time.Hour, cfg.MaxBackoff)
	assert.Equal(t, 0.5, cfg.JitterFactor)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultMetadataOutboxConfig().Validate())
	assert.NoError(t, DefaultDLQConfig().Validate())

	bad := Config{MaxRetries: -1, InitialBackoff: time.Second, MaxBackoff: time.Minute, JitterFactor: 0}
	assert.Error(t, bad.Validate())

	bad = Config{MaxRetries: 1, InitialBackoff: time.Minute, MaxBackoff: time.Second, JitterFactor: 0}
	assert.Error(t, bad.Validate())

	bad = Config{MaxRetries: 1, InitialBackoff: time.Second, MaxBackoff: time.Minute, JitterFactor: 2}
	assert.Error(t, bad.Validate())
}

func TestFastTransferConfig_Backoff(t *testing.T) {
	cfg := FastTransferConfig(3, 100*time.Millisecond)

	assert.Equal(t, 100*time.Millisecond, FastTransferBackoff(cfg.InitialBackoff, 1))
	assert.Equal(t, 200*time.Millisecond, FastTransferBackoff(cfg.InitialBackoff, 2))
	assert.Equal(t, 300*time.Millisecond, FastTransferBackoff(cfg.InitialBackoff, 3))
}

func TestConfig_Backoff_CapsAtMax(t *testing.T) {
	cfg := Config{MaxRetries: 5, InitialBackoff: time.Second, MaxBackoff: 3 * time.Second, JitterFactor: 0}

	assert.Equal(t, 3*time.Second, cfg.Backoff(10))
}

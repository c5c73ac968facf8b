// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAccountID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "msisdn alias", raw: "msisdn::2348100000001"},
		{name: "suspense", raw: "suspense"},
		{name: "empty", raw: "", wantErr: true},
		{name: "too long", raw: string(make([]byte, 51)), wantErr: true},
		{name: "invalid chars", raw: "acct with spaces", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseAccountID(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
		})
	}
}

func TestParseTenantID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "valid", raw: "tnt_acme01"},
		{name: "missing prefix", raw: "acme01", wantErr: true},
		{name: "too short suffix", raw: "tnt_ab", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseTenantID(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			assert.NoError(t, err)
		})
	}
}

func TestCurrencySet_Valid(t *testing.T) {
	t.Parallel()

	set := NewCurrencySet(DefaultSupportedCurrencies)

	assert.True(t, set.Valid("NGN"))
	assert.True(t, set.Valid("USD"))
	assert.False(t, set.Valid("ngn"))
	assert.False(t, set.Valid("XYZ"))
	assert.False(t, set.Valid("US"))
}

func TestMoney_AddSub_CurrencyMismatch(t *testing.T) {
	t.Parallel()

	set := NewCurrencySet(DefaultSupportedCurrencies)
	ngn, err := New(1000, "NGN", set)
	require.NoError(t, err)

	usd, err := New(500, "USD", set)
	require.NoError(t, err)

	_, err = ngn.Add(usd)
	assert.Error(t, err)

	_, err = ngn.Sub(usd)
	assert.Error(t, err)
}

func TestMoney_AddSub_SameCurrency(t *testing.T) {
	t.Parallel()

	set := NewCurrencySet(DefaultSupportedCurrencies)
	a, err := New(1000, "NGN", set)
	require.NoError(t, err)

	b, err := New(250, "NGN", set)
	require.NoError(t, err)

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, int64(1250), sum.Minor)

	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.Equal(t, int64(750), diff.Minor)
}

func TestValidateTransferAmount(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateTransferAmount(1))
	assert.NoError(t, ValidateTransferAmount(MaxTransferMinor))
	assert.Error(t, ValidateTransferAmount(0))
	assert.Error(t, ValidateTransferAmount(-5))
	assert.Error(t, ValidateTransferAmount(MaxTransferMinor+1))
}

func TestValidateNarration(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateNarration("Transfer to savings"))
	assert.Error(t, ValidateNarration(""))
	assert.Error(t, ValidateNarration(string(make([]byte, 257))))
}

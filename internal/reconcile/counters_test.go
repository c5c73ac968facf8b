// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHashKey_RoundTripsColonFreeAccount(t *testing.T) {
	key := Key{TenantID: "tnt_acme01", AccountID: "acct_001", Currency: "KES"}

	parsed, ok := parseHashKey(counterHashKey(key))
	require.True(t, ok)
	assert.Equal(t, key, parsed)
}

func TestParseHashKey_PreservesColonsInAccountID(t *testing.T) {
	// Canonical account id forms embed '::' themselves
	// (msisdn::234..., card::..., merchant::...); the tenant boundary must
	// come from the first colon and the currency boundary from the last,
	// or this id gets split in the wrong place.
	key := Key{TenantID: "tnt_acme01", AccountID: "msisdn::2348100000001", Currency: "NGN"}

	hashKey := counterHashKey(key)
	assert.Equal(t, "drift:tnt_acme01:msisdn::2348100000001:NGN", hashKey)

	parsed, ok := parseHashKey(hashKey)
	require.True(t, ok)
	assert.Equal(t, key, parsed)
}

func TestParseHashKey_RejectsMissingPrefix(t *testing.T) {
	_, ok := parseHashKey("not-a-drift-key")
	assert.False(t, ok)
}

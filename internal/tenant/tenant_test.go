// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbuspay/ledger-core/pkg/apperr"
)

func TestParse_Valid(t *testing.T) {
	tc, err := Parse("tnt_acme01")
	require.NoError(t, err)
	assert.Equal(t, "tnt_acme01", tc.ID.String())
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse("acme")
	assert.Error(t, err)
}

func TestRequireFromContext_Missing(t *testing.T) {
	_, err := RequireFromContext(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeTenantIsolation))
}

func TestRequireFromContext_Present(t *testing.T) {
	tc, err := Parse("tnt_acme01")
	require.NoError(t, err)

	ctx := WithContext(context.Background(), tc)

	got, err := RequireFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, tc, got)
}

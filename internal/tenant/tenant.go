// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

// Package tenant implements the tenant context and isolation gate.
// Every ledger-core operation carries a parsed, validated tenant
// Context; storage methods that would otherwise run without one fail
// fatally rather than silently scanning across tenants.
package tenant

import (
	"context"

	"github.com/nimbuspay/ledger-core/pkg/apperr"
	"github.com/nimbuspay/ledger-core/pkg/money"
)

// Context is the immutable, validated tenant identity attached to an
// operation.
type Context struct {
	ID money.TenantID
}

type ctxKey struct{}

// WithContext returns a copy of ctx carrying tc.
func WithContext(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, tc)
}

// FromContext returns the TenantContext carried by ctx, and whether one
// was present.
func FromContext(ctx context.Context) (Context, bool) {
	tc, ok := ctx.Value(ctxKey{}).(Context)
	return tc, ok
}

// Parse validates a raw tenant header value and builds a Context.
func Parse(raw string) (Context, error) {
	id, err := money.ParseTenantID(raw)
	if err != nil {
		return Context{}, err
	}

	return Context{ID: id}, nil
}

// RequireFromContext returns the TenantContext carried by ctx, or a fatal
// apperr.TenantIsolationViolation if storage code reached this point
// without one. Every repository method that filters by tenant_id must
// call this instead of trusting a caller-supplied string, so a missing
// tenant scope fails loudly rather than leaking data across tenants.
func RequireFromContext(ctx context.Context) (Context, error) {
	tc, ok := FromContext(ctx)
	if !ok {
		return Context{}, apperr.TenantIsolationViolation("operation reached storage without a tenant context")
	}

	return tc, nil
}

// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

package reconcile

import (
	"context"

	"github.com/nimbuspay/ledger-core/internal/outbox"
)

// Feeder is the counter service: it consumes ledger events tagged with
// their origin region and increments pos[region] for credit legs,
// neg[region] for debit legs, keyed by (tenant, account, currency),
// taking the region from the payload's SourceRegion. Its only driver is
// the local outbox dispatcher, which calls it right after a successful
// publish (this region's own counter); nothing in this repository
// consumes the peer region's events or feeds them here.
type Feeder struct {
	counters CounterStore
}

// NewFeeder returns a Feeder backed by counters.
func NewFeeder(counters CounterStore) *Feeder {
	return &Feeder{counters: counters}
}

// Apply increments the drift counters for every line in payload.
func (f *Feeder) Apply(ctx context.Context, payload outbox.EventPayload) error {
	for _, line := range payload.Lines {
		key := Key{TenantID: payload.Tenant, AccountID: line.Account, Currency: line.Currency}

		if err := f.counters.Apply(ctx, key, payload.SourceRegion, line.Side, line.Amount); err != nil {
			return err
		}
	}

	return nil
}

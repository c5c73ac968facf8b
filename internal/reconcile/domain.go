// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

// Package reconcile implements drift reconciliation between two ledger
// regions: per-account per-region counters and a healer loop that posts
// bounded compensating entries through a suspense account.
package reconcile

import "time"

// Status is the health grade of a reconciliation key or run.
type Status string

const (
	StatusHealthy  Status = "HEALTHY"
	StatusWarning  Status = "WARNING"
	StatusCritical Status = "CRITICAL"
)

// Key identifies one drift counter: (tenant, account_id, currency).
type Key struct {
	TenantID  string
	AccountID string
	Currency  string
}

// Counters holds the two per-region running sums: pos[region] (sum of
// credits observed) and neg[region] (sum of debits observed), for
// exactly the two regions this reconciler compares.
type Counters struct {
	Key Key

	PosA, NegA int64
	PosB, NegB int64
}

// BalanceA and BalanceB are the derived per-region balances:
// balance[region] = pos[region] - neg[region].
func (c Counters) BalanceA() int64 { return c.PosA - c.NegA }
func (c Counters) BalanceB() int64 { return c.PosB - c.NegB }

// Diff is balance[A] - balance[B].
func (c Counters) Diff() int64 { return c.BalanceA() - c.BalanceB() }

// Report is a single healer-loop run's outcome. A monotonically growing
// |diff| is surfaced here as a Diverging key rather than healed, so an
// operator sees the trend instead of the healer chasing it forever.
type Report struct {
	RanAt     time.Time
	Status    Status
	Examined  int
	Healed    int
	Skipped   int
	Diverging []Key
}

// DetermineStatus computes the overall Status for a run: CRITICAL if any
// key is diverging (its |diff| grew since the previous run), WARNING if
// any key was skipped for staleness or bound violation without healing,
// else HEALTHY.
func (r *Report) DetermineStatus() {
	switch {
	case len(r.Diverging) > 0:
		r.Status = StatusCritical
	case r.Skipped > 0:
		r.Status = StatusWarning
	default:
		r.Status = StatusHealthy
	}
}

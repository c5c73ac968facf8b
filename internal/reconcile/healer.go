// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nimbuspay/ledger-core/internal/transfer"
	"github.com/nimbuspay/ledger-core/pkg/apperr"
	"github.com/nimbuspay/ledger-core/pkg/mlog"
	"github.com/nimbuspay/ledger-core/pkg/mtrace"
)

// healRPCTimeout bounds a single compensating-transfer call so a hung
// heal cannot stall the whole sweep.
const healRPCTimeout = 5 * time.Second

// TenantLister enumerates the tenants the healer should sweep. A fixed
// deployment usually backs this with a small config-driven list rather
// than a live query; internal/bootstrap supplies the concrete
// implementation.
type TenantLister interface {
	Tenants(ctx context.Context) ([]string, error)
}

// TransferExecutor is the subset of internal/transfer.Handler the healer
// needs to post a compensating entry.
type TransferExecutor interface {
	Transfer(ctx context.Context, req transfer.Request) (transfer.Result, error)
}

// Healer runs the reconciliation loop: enumerate drift keys, gate on
// staleness and bound, post a bounded compensating transfer through the
// suspense account against the fix region's ledger, and keep a
// queryable health Report.
type Healer struct {
	counters   CounterStore
	watermarks WatermarkStore
	tenants    TenantLister
	executors  map[string]TransferExecutor
	logger     mlog.Logger

	regionA, regionB string
	suspenseAccount  string
	maxAbsMinor      int64
	staleness        time.Duration

	mu          sync.RWMutex
	lastReport  *Report
	lastAbsDiff map[Key]int64
}

// NewHealer returns a Healer. regionA/regionB are the two regions this
// instance reconciles. executors maps each region to the
// TransferExecutor that posts against THAT region's ledger: the local
// transfer handler for this instance's own region, a cross-region
// client (transfer.RemoteClient) for the peer. A compensating entry
// must land on the fix region's books, never this instance's own by
// default; a fix region with no executor is left unhealed and counted
// as skipped rather than silently applied locally.
func NewHealer(counters CounterStore, watermarks WatermarkStore, tenants TenantLister, executors map[string]TransferExecutor, logger mlog.Logger, regionA, regionB, suspenseAccount string, maxAbsMinor int64, staleness time.Duration) *Healer {
	return &Healer{
		counters:        counters,
		watermarks:      watermarks,
		tenants:         tenants,
		executors:       executors,
		logger:          logger,
		regionA:         regionA,
		regionB:         regionB,
		suspenseAccount: suspenseAccount,
		maxAbsMinor:     maxAbsMinor,
		staleness:       staleness,
		lastAbsDiff:     map[Key]int64{},
	}
}

// Run executes the heal loop every period until ctx is cancelled.
func (h *Healer) Run(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single pass over every tenant's drift keys.
func (h *Healer) RunOnce(ctx context.Context) {
	ctx, span := mtrace.Start(ctx, "reconcile.heal_once")
	defer span.End()

	report := &Report{RanAt: time.Now()}

	tenants, err := h.tenants.Tenants(ctx)
	if err != nil {
		mtrace.HandleSpanError(&span, "failed to list tenants", err)
		h.logger.Errorf("healer: failed to list tenants: %v", err)

		return
	}

	for _, tenantID := range tenants {
		h.healTenant(ctx, tenantID, report)
	}

	report.DetermineStatus()

	h.mu.Lock()
	h.lastReport = report
	h.mu.Unlock()
}

func (h *Healer) healTenant(ctx context.Context, tenantID string, report *Report) {
	keys, err := h.counters.Keys(ctx, tenantID)
	if err != nil {
		h.logger.Errorf("healer: failed to list drift keys for tenant %s: %v", tenantID, err)
		return
	}

	watermark, err := h.watermarks.Get(ctx, tenantID)
	if err != nil {
		h.logger.Errorf("healer: failed to read watermark for tenant %s: %v", tenantID, err)
		return
	}

	for _, key := range keys {
		report.Examined++
		h.healKey(ctx, key, watermark, report)
	}
}

func (h *Healer) healKey(ctx context.Context, key Key, watermark time.Time, report *Report) {
	counters, err := h.counters.Read(ctx, key, h.regionA, h.regionB)
	if err != nil {
		h.logger.Errorf("healer: failed to read counters for %+v: %v", key, err)
		return
	}

	diff := counters.Diff()
	if diff == 0 {
		h.clearDivergence(key)
		return
	}

	if time.Since(watermark) > h.staleness {
		report.Skipped++
		h.logger.Infof("healer: skipping %+v, %s", key, apperr.StaleWatermark("global watermark stale").Error())

		return
	}

	absDiff := diff
	if absDiff < 0 {
		absDiff = -absDiff
	}

	if absDiff > h.maxAbsMinor {
		report.Skipped++
		h.logger.Warnf("healer: |diff|=%d for %+v exceeds HEAL_MAX_ABS_MINOR=%d, skipping", absDiff, key, h.maxAbsMinor)

		if h.isDiverging(key, absDiff) {
			report.Diverging = append(report.Diverging, key)
		}

		return
	}

	if h.heal(ctx, key, diff, watermark) {
		report.Healed++
		h.clearDivergence(key)
	} else {
		report.Skipped++
	}
}

// isDiverging reports whether |diff| grew since the previous run for
// key. healKey consults it only for keys whose |diff| is over the heal
// bound, which are never healed; keys within the bound are healed
// without a trend check.
func (h *Healer) isDiverging(key Key, absDiff int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	prev, ok := h.lastAbsDiff[key]
	h.lastAbsDiff[key] = absDiff

	return ok && absDiff > prev
}

func (h *Healer) clearDivergence(key Key) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.lastAbsDiff, key)
}

// heal posts the compensating transfer: fix_region = B if diff > 0
// else A; move exactly |diff| between the account and the tenant-scoped
// suspense account, applied against the fix region's own ledger,
// idempotent on the watermark-timestamped key.
func (h *Healer) heal(ctx context.Context, key Key, diff int64, watermark time.Time) bool {
	ctx, cancel := context.WithTimeout(ctx, healRPCTimeout)
	defer cancel()

	fixRegion := h.regionB
	if diff < 0 {
		fixRegion = h.regionA
	}

	xfer, ok := h.executors[fixRegion]
	if !ok {
		h.logger.Errorf("healer: no transfer executor for fix region %s, leaving %+v unhealed", fixRegion, key)
		return false
	}

	absDiff := diff
	if absDiff < 0 {
		absDiff = -absDiff
	}

	healKey := fmt.Sprintf("heal::%s::%s::%s::%s::%d", fixRegion, key.TenantID, key.AccountID, key.Currency, watermark.UnixMilli())

	// A positive diff means region A is ahead: the fix region's account
	// balance must increase, so suspense debits and the account credits.
	// A negative diff means region B is ahead: the inverse applies.
	src, dst := h.suspenseAccount, key.AccountID
	if diff < 0 {
		src, dst = key.AccountID, h.suspenseAccount
	}

	result, err := xfer.Transfer(ctx, transfer.Request{
		IdempotencyKey: healKey,
		TenantID:       key.TenantID,
		Source:         src,
		Dest:           dst,
		AmountMinor:    absDiff,
		Currency:       key.Currency,
		Narration:      "drift reconciliation heal",
	})
	if err != nil {
		h.logger.Errorf("healer: heal transfer failed for %+v: %v", key, err)
		return false
	}

	if result.Duplicate {
		h.logger.Infof("healer: heal %s already applied (entry %s), no-op", healKey, result.EntryID)
	} else {
		h.logger.Infof("healer: healed %+v by %d minor via entry %s", key, absDiff, result.EntryID)
	}

	return true
}

// IsHealthy reports whether the most recent run's Status is not
// CRITICAL. WARNING still counts as healthy.
func (h *Healer) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.lastReport == nil {
		return false
	}

	return h.lastReport.Status != StatusCritical
}

// GetLastReport returns the most recent Report, or nil if the healer has
// never run.
func (h *Healer) GetLastReport() *Report {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.lastReport
}

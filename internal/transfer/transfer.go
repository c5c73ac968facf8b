// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

// Package transfer implements the fast-path transfer handler: input
// validation, the ApplyTransfer call with serialization-conflict retry,
// and surfacing Duplicate as a success-equivalent result rather than an
// error.
package transfer

import (
	"context"
	"errors"
	"time"

	"github.com/nimbuspay/ledger-core/internal/ledger/store"
	"github.com/nimbuspay/ledger-core/internal/tenant"
	"github.com/nimbuspay/ledger-core/pkg/apperr"
	"github.com/nimbuspay/ledger-core/pkg/mlog"
	"github.com/nimbuspay/ledger-core/pkg/money"
	"github.com/nimbuspay/ledger-core/pkg/mretry"
	"github.com/nimbuspay/ledger-core/pkg/mtrace"
)

// LedgerStore is the storage dependency a Handler needs. It is satisfied
// by *store.Store; tests substitute a fake.
type LedgerStore interface {
	ApplyTransfer(ctx context.Context, p store.ApplyTransferParams) (store.ApplyTransferResult, error)
}

// Request is the validated input to Transfer.
type Request struct {
	IdempotencyKey string
	TenantID       string
	Source         string
	Dest           string
	AmountMinor    int64
	Currency       string
	Narration      string
}

// Result is Transfer's success-path outcome. Duplicate is not an error:
// it means the idempotency key was already applied, and EntryID is the
// original entry's id.
type Result struct {
	EntryID   string
	Duplicate bool
}

// Handler wires the fast-path transfer contract over a LedgerStore.
type Handler struct {
	store    LedgerStore
	currency *money.CurrencySet
	region   string
	retry    mretry.Config
	logger   mlog.Logger
}

// New returns a Handler. region tags every outbox event this handler
// produces with its source region.
func New(s LedgerStore, currencies *money.CurrencySet, region string, retry mretry.Config, logger mlog.Logger) *Handler {
	return &Handler{store: s, currency: currencies, region: region, retry: retry, logger: logger}
}

// Transfer validates req and applies it, retrying on serialization
// conflict up to retry.MaxRetries times with linear backoff. Validation
// and business-rule failures (InsufficientFunds, CurrencyMismatch) are
// never retried.
func (h *Handler) Transfer(ctx context.Context, req Request) (Result, error) {
	ctx, span := mtrace.Start(ctx, "transfer.transfer")
	defer span.End()

	if err := h.validate(req); err != nil {
		return Result{}, err
	}

	// validate already confirmed req.TenantID parses; attach it to ctx so
	// the storage layer's tenant.RequireFromContext gate (internal/tenant)
	// sees a real tenant context instead of trusting the request's string
	// field on its own. This is the single choke point every caller of
	// Transfer (the HTTP handler, offline sync, and the drift healer)
	// goes through, so it never needs duplicating at each call site.
	tid, _ := money.ParseTenantID(req.TenantID)
	ctx = tenant.WithContext(ctx, tenant.Context{ID: tid})

	params := store.ApplyTransferParams{
		IdempotencyKey: req.IdempotencyKey,
		TenantID:       req.TenantID,
		SourceAccount:  req.Source,
		DestAccount:    req.Dest,
		AmountMinor:    req.AmountMinor,
		Currency:       req.Currency,
		Narration:      req.Narration,
		SourceRegion:   h.region,
	}

	var lastErr error

	for attempt := 1; attempt <= h.retry.MaxRetries+1; attempt++ {
		result, err := h.store.ApplyTransfer(ctx, params)
		if err == nil {
			return Result{EntryID: result.EntryID, Duplicate: result.Duplicate}, nil
		}

		if !errors.Is(err, store.ErrSerializationConflict) {
			mtrace.HandleSpanError(&span, "transfer failed without retry", err)
			return Result{}, err
		}

		lastErr = err

		if attempt > h.retry.MaxRetries {
			break
		}

		h.logger.Warnf("transfer %s: serialization conflict, retrying attempt %d", req.IdempotencyKey, attempt)

		select {
		case <-time.After(mretry.FastTransferBackoff(h.retry.InitialBackoff, attempt)):
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}

	mtrace.HandleSpanError(&span, "transfer exhausted retries", lastErr)

	return Result{}, apperr.Conflict("transfer retries exhausted: " + lastErr.Error())
}

func (h *Handler) validate(req Request) error {
	if _, err := money.ParseIdempotencyKey(req.IdempotencyKey); err != nil {
		return err
	}

	if _, err := money.ParseTenantID(req.TenantID); err != nil {
		return err
	}

	src, err := money.ParseAccountID(req.Source)
	if err != nil {
		return err
	}

	dst, err := money.ParseAccountID(req.Dest)
	if err != nil {
		return err
	}

	if src == dst {
		return apperr.Validation("source and destination accounts must differ, got %s", src)
	}

	if !h.currency.Valid(req.Currency) {
		return apperr.Validation("unsupported currency %q", req.Currency)
	}

	if err := money.ValidateTransferAmount(req.AmountMinor); err != nil {
		return err
	}

	return money.ValidateNarration(req.Narration)
}

// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

package offline

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nimbuspay/ledger-core/internal/transfer"
	"github.com/nimbuspay/ledger-core/pkg/apperr"
	"github.com/nimbuspay/ledger-core/pkg/mlog"
	"github.com/nimbuspay/ledger-core/pkg/mtrace"
)

// DeviceLock serializes Sync calls per device: at most one sync
// executes at a time for a device_id, while syncs across devices
// proceed in parallel. It is satisfied by *RedisDeviceLock; tests
// substitute an in-memory fake.
type DeviceLock interface {
	// Acquire attempts to take the lock for deviceID, returning false if
	// another sync already holds it.
	Acquire(ctx context.Context, deviceID string, ttl time.Duration) (bool, error)
	// Release gives up the lock for deviceID.
	Release(ctx context.Context, deviceID string) error
}

// TransferExecutor is the subset of internal/transfer.Handler Syncer
// needs, narrowed so this package does not have to import its concrete
// store dependency.
type TransferExecutor interface {
	Transfer(ctx context.Context, req transfer.Request) (transfer.Result, error)
}

// Repository is the persistence dependency Syncer needs.
type Repository interface {
	ListQueued(ctx context.Context, deviceID string, limit int) ([]Operation, error)
	MarkSynced(ctx context.Context, deviceID, nonce, entryID string) error
	MarkRejected(ctx context.Context, deviceID, nonce, reason string) error
}

// ErrSyncInFlight is returned when a sync is already running for a
// device; the HTTP layer surfaces it as a 409.
var ErrSyncInFlight = errors.New("offline: sync already in flight for this device")

const syncLockTTL = 30 * time.Second

// Syncer replays a device's queue: it translates each queued operation
// into a core operation (currently only KindTransfer is wired;
// bill-pay/cashout belong to upstream business services, so the
// translation switch rejects them permanently) using a derived
// idempotency key, and marks each item synced/rejected/queued
// accordingly.
type Syncer struct {
	repo     Repository
	lock     DeviceLock
	transfer TransferExecutor
	logger   mlog.Logger
	region   string
}

// NewSyncer returns a Syncer.
func NewSyncer(repo Repository, lock DeviceLock, xfer TransferExecutor, logger mlog.Logger, region string) *Syncer {
	return &Syncer{repo: repo, lock: lock, transfer: xfer, logger: logger, region: region}
}

// Sync processes up to max queued operations for deviceID, in enqueue
// order, each as its own transaction so a cancellation partway through
// leaves already-processed items Synced/Rejected and the rest Queued.
func (s *Syncer) Sync(ctx context.Context, tenantID, deviceID string, max int) ([]ItemResult, error) {
	ctx, span := mtrace.Start(ctx, "offline.sync")
	defer span.End()

	acquired, err := s.lock.Acquire(ctx, deviceID, syncLockTTL)
	if err != nil {
		mtrace.HandleSpanError(&span, "failed to acquire device lock", err)
		return nil, err
	}

	if !acquired {
		return nil, ErrSyncInFlight
	}

	defer func() {
		if err := s.lock.Release(context.Background(), deviceID); err != nil {
			s.logger.Warnf("offline sync: failed to release device lock for %s: %v", deviceID, err)
		}
	}()

	ops, err := s.repo.ListQueued(ctx, deviceID, max)
	if err != nil {
		mtrace.HandleSpanError(&span, "failed to list queued offline operations", err)
		return nil, err
	}

	results := make([]ItemResult, 0, len(ops))

	for _, op := range ops {
		if ctx.Err() != nil {
			break
		}

		results = append(results, s.syncOne(ctx, tenantID, op))
	}

	return results, nil
}

func (s *Syncer) syncOne(ctx context.Context, tenantID string, op Operation) ItemResult {
	itemCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	switch op.Kind {
	case KindTransfer:
		return s.syncTransfer(itemCtx, tenantID, op)
	default:
		reason := "unsupported offline operation kind: " + string(op.Kind)
		if err := s.repo.MarkRejected(ctx, op.DeviceID, op.Nonce, reason); err != nil {
			s.logger.Errorf("offline sync: failed to mark %s/%s rejected: %v", op.DeviceID, op.Nonce, err)
		}

		return ItemResult{Nonce: op.Nonce, Status: StatusRejected, Error: reason}
	}
}

func (s *Syncer) syncTransfer(ctx context.Context, tenantID string, op Operation) ItemResult {
	var payload TransferPayload
	if err := json.Unmarshal(op.Payload, &payload); err != nil {
		reason := "malformed transfer payload: " + err.Error()

		if markErr := s.repo.MarkRejected(ctx, op.DeviceID, op.Nonce, reason); markErr != nil {
			s.logger.Errorf("offline sync: failed to mark %s/%s rejected: %v", op.DeviceID, op.Nonce, markErr)
		}

		return ItemResult{Nonce: op.Nonce, Status: StatusRejected, Error: reason}
	}

	req := transfer.Request{
		IdempotencyKey: DerivedIdempotencyKey(op.DeviceID, op.Nonce),
		TenantID:       tenantID,
		Source:         payload.Source,
		Dest:           payload.Dest,
		AmountMinor:    payload.AmountMinor,
		Currency:       payload.Currency,
		Narration:      payload.Narration,
	}

	result, err := s.transfer.Transfer(ctx, req)
	if err != nil {
		if isPermanent(err) {
			reason := err.Error()

			if markErr := s.repo.MarkRejected(ctx, op.DeviceID, op.Nonce, reason); markErr != nil {
				s.logger.Errorf("offline sync: failed to mark %s/%s rejected: %v", op.DeviceID, op.Nonce, markErr)
			}

			return ItemResult{Nonce: op.Nonce, Status: StatusRejected, Error: reason}
		}

		// Transient failure: leave StatusQueued for the next sync call.
		s.logger.Warnf("offline sync: transient failure syncing %s/%s: %v", op.DeviceID, op.Nonce, err)

		return ItemResult{Nonce: op.Nonce, Status: StatusQueued, Error: err.Error()}
	}

	if markErr := s.repo.MarkSynced(ctx, op.DeviceID, op.Nonce, result.EntryID); markErr != nil {
		s.logger.Errorf("offline sync: failed to mark %s/%s synced: %v", op.DeviceID, op.Nonce, markErr)
	}

	return ItemResult{Nonce: op.Nonce, Status: StatusSynced, EntryID: result.EntryID}
}

// isPermanent reports whether err is a validation or funds/currency
// failure that will never succeed on retry. Anything else is treated as
// transient and leaves the operation queued.
func isPermanent(err error) bool {
	return apperr.HasCode(err, apperr.CodeValidation) ||
		apperr.HasCode(err, apperr.CodeInsufficientFunds) ||
		apperr.HasCode(err, apperr.CodeCurrencyMismatch)
}

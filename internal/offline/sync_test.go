// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

package offline

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbuspay/ledger-core/internal/transfer"
	"github.com/nimbuspay/ledger-core/pkg/apperr"
	"github.com/nimbuspay/ledger-core/pkg/mlog"
)

type noopLogger struct{}

func (noopLogger) Info(args ...any)                       {}
func (noopLogger) Infof(format string, args ...any)       {}
func (noopLogger) Error(args ...any)                      {}
func (noopLogger) Errorf(format string, args ...any)      {}
func (noopLogger) Warn(args ...any)                       {}
func (noopLogger) Warnf(format string, args ...any)       {}
func (noopLogger) Debug(args ...any)                      {}
func (noopLogger) Debugf(format string, args ...any)      {}
func (noopLogger) Fatal(args ...any)                      {}
func (noopLogger) Fatalf(format string, args ...any)      {}
func (l noopLogger) WithFields(fields ...any) mlog.Logger { return l }

type memLock struct {
	mu      sync.Mutex
	holders map[string]bool
}

func newMemLock() *memLock { return &memLock{holders: map[string]bool{}} }

func (l *memLock) Acquire(ctx context.Context, deviceID string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.holders[deviceID] {
		return false, nil
	}

	l.holders[deviceID] = true

	return true, nil
}

func (l *memLock) Release(ctx context.Context, deviceID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.holders, deviceID)

	return nil
}

type memRepo struct {
	ops      []Operation
	synced   map[string]string
	rejected map[string]string
}

func newMemRepo(ops []Operation) *memRepo {
	return &memRepo{ops: ops, synced: map[string]string{}, rejected: map[string]string{}}
}

func (r *memRepo) ListQueued(ctx context.Context, deviceID string, limit int) ([]Operation, error) {
	var out []Operation

	for _, op := range r.ops {
		if op.DeviceID == deviceID && op.Status == StatusQueued {
			out = append(out, op)
		}

		if len(out) >= limit {
			break
		}
	}

	return out, nil
}

func (r *memRepo) MarkSynced(ctx context.Context, deviceID, nonce, entryID string) error {
	r.synced[nonce] = entryID
	return nil
}

func (r *memRepo) MarkRejected(ctx context.Context, deviceID, nonce, reason string) error {
	r.rejected[nonce] = reason
	return nil
}

type fakeTransfer struct {
	calls   []transfer.Request
	nextErr error
}

func (f *fakeTransfer) Transfer(ctx context.Context, req transfer.Request) (transfer.Result, error) {
	f.calls = append(f.calls, req)

	if f.nextErr != nil {
		return transfer.Result{}, f.nextErr
	}

	return transfer.Result{EntryID: "entry-" + req.IdempotencyKey}, nil
}

func transferPayload(t *testing.T) []byte {
	t.Helper()

	raw, err := json.Marshal(TransferPayload{Source: "a", Dest: "b", AmountMinor: 100, Currency: "NGN", Narration: "offline transfer"})
	require.NoError(t, err)

	return raw
}

func TestSyncer_Sync_ProcessesInEnqueueOrder(t *testing.T) {
	payload := transferPayload(t)
	ops := []Operation{
		{DeviceID: "d1", Nonce: "n1", TenantID: "tnt_acme01", Kind: KindTransfer, Payload: payload, Status: StatusQueued},
		{DeviceID: "d1", Nonce: "n2", TenantID: "tnt_acme01", Kind: KindTransfer, Payload: payload, Status: StatusQueued},
		{DeviceID: "d1", Nonce: "n3", TenantID: "tnt_acme01", Kind: KindTransfer, Payload: payload, Status: StatusQueued},
	}

	repo := newMemRepo(ops)
	xfer := &fakeTransfer{}
	syncer := NewSyncer(repo, newMemLock(), xfer, noopLogger{}, "region-a")

	results, err := syncer.Sync(context.Background(), "tnt_acme01", "d1", 10)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i, r := range results {
		assert.Equal(t, StatusSynced, r.Status)
		assert.Equal(t, ops[i].Nonce, r.Nonce)
	}

	require.Len(t, xfer.calls, 3)
	assert.Equal(t, "offline:d1:n1", xfer.calls[0].IdempotencyKey)
	assert.Equal(t, "offline:d1:n2", xfer.calls[1].IdempotencyKey)
	assert.Equal(t, "offline:d1:n3", xfer.calls[2].IdempotencyKey)
}

func TestSyncer_Sync_RejectsOnPermanentFailure(t *testing.T) {
	payload := transferPayload(t)
	ops := []Operation{{DeviceID: "d1", Nonce: "n1", TenantID: "tnt_acme01", Kind: KindTransfer, Payload: payload, Status: StatusQueued}}

	repo := newMemRepo(ops)
	xfer := &fakeTransfer{nextErr: apperr.InsufficientFunds("a")}
	syncer := NewSyncer(repo, newMemLock(), xfer, noopLogger{}, "region-a")

	results, err := syncer.Sync(context.Background(), "tnt_acme01", "d1", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, StatusRejected, results[0].Status)
	assert.Contains(t, repo.rejected, "n1")
}

func TestSyncer_Sync_LeavesQueuedOnTransientFailure(t *testing.T) {
	payload := transferPayload(t)
	ops := []Operation{{DeviceID: "d1", Nonce: "n1", TenantID: "tnt_acme01", Kind: KindTransfer, Payload: payload, Status: StatusQueued}}

	repo := newMemRepo(ops)
	xfer := &fakeTransfer{nextErr: apperr.Conflict("serialization retries exhausted")}
	syncer := NewSyncer(repo, newMemLock(), xfer, noopLogger{}, "region-a")

	results, err := syncer.Sync(context.Background(), "tnt_acme01", "d1", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, StatusQueued, results[0].Status)
	assert.Empty(t, repo.rejected)
	assert.Empty(t, repo.synced)
}

func TestSyncer_Sync_RejectsConcurrentSyncForSameDevice(t *testing.T) {
	lock := newMemLock()
	_, _ = lock.Acquire(context.Background(), "d1", time.Minute)

	repo := newMemRepo(nil)
	syncer := NewSyncer(repo, lock, &fakeTransfer{}, noopLogger{}, "region-a")

	_, err := syncer.Sync(context.Background(), "tnt_acme01", "d1", 10)
	assert.ErrorIs(t, err, ErrSyncInFlight)
}

func TestSyncer_Sync_RejectsUnsupportedKind(t *testing.T) {
	ops := []Operation{{DeviceID: "d1", Nonce: "n1", TenantID: "tnt_acme01", Kind: KindBillPayment, Payload: []byte(`{}`), Status: StatusQueued}}
	repo := newMemRepo(ops)
	syncer := NewSyncer(repo, newMemLock(), &fakeTransfer{}, noopLogger{}, "region-a")

	results, err := syncer.Sync(context.Background(), "tnt_acme01", "d1", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, StatusRejected, results[0].Status)
}

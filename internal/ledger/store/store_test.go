// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbuspay/ledger-core/internal/tenant"
	"github.com/nimbuspay/ledger-core/pkg/mlog"
	"github.com/nimbuspay/ledger-core/pkg/money"
)

// withTenant attaches tenantID to ctx as the validated tenant.Context every
// storage method now requires (internal/tenant's isolation gate).
func withTenant(ctx context.Context, tenantID string) context.Context {
	return tenant.WithContext(ctx, tenant.Context{ID: money.TenantID(tenantID)})
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	logger, err := mlog.NewZapLogger("error")
	require.NoError(t, err)

	return New(db, logger), mock
}

func TestApplyTransfer_Success(t *testing.T) {
	s, mock := newMockStore(t)

	p := ApplyTransferParams{
		IdempotencyKey: "key-1",
		TenantID:       "tnt_acme",
		SourceAccount:  "acct:alice",
		DestAccount:    "acct:bob",
		AmountMinor:    500,
		Currency:       "NGN",
		Narration:      "fast transfer",
		SourceRegion:   "region-a",
	}

	mock.ExpectBegin()

	mock.ExpectExec("INSERT INTO idempotency_keys").
		WithArgs(p.IdempotencyKey, p.TenantID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectExec("SELECT pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectExec("INSERT INTO accounts").
		WithArgs("acct:alice", p.TenantID, p.Currency).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT account_id, tenant_id, currency, balance_minor, created_at").
		WithArgs("acct:alice", p.TenantID).
		WillReturnRows(sqlmock.NewRows([]string{"account_id", "tenant_id", "currency", "balance_minor", "created_at"}).
			AddRow("acct:alice", p.TenantID, "NGN", int64(10000), time.Now()))

	mock.ExpectExec("INSERT INTO accounts").
		WithArgs("acct:bob", p.TenantID, p.Currency).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT account_id, tenant_id, currency, balance_minor, created_at").
		WithArgs("acct:bob", p.TenantID).
		WillReturnRows(sqlmock.NewRows([]string{"account_id", "tenant_id", "currency", "balance_minor", "created_at"}).
			AddRow("acct:bob", p.TenantID, "NGN", int64(0), time.Now()))

	mock.ExpectExec("INSERT INTO journal_entries").WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectExec("INSERT INTO postings").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE accounts SET balance_minor").
		WithArgs(int64(-500), "acct:alice", p.TenantID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectExec("INSERT INTO postings").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE accounts SET balance_minor").
		WithArgs(int64(500), "acct:bob", p.TenantID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectExec("INSERT INTO outbox_messages").WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectExec("UPDATE idempotency_keys SET entry_id").WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectCommit()

	result, err := s.ApplyTransfer(withTenant(context.Background(), p.TenantID), p)
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
	assert.NotEmpty(t, result.EntryID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyTransfer_Duplicate(t *testing.T) {
	s, mock := newMockStore(t)

	p := ApplyTransferParams{
		IdempotencyKey: "key-1",
		TenantID:       "tnt_acme",
		SourceAccount:  "acct:alice",
		DestAccount:    "acct:bob",
		AmountMinor:    500,
		Currency:       "NGN",
		Narration:      "fast transfer",
	}

	mock.ExpectBegin()

	mock.ExpectExec("INSERT INTO idempotency_keys").
		WithArgs(p.IdempotencyKey, p.TenantID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectQuery("SELECT entry_id FROM idempotency_keys").
		WithArgs(p.IdempotencyKey).
		WillReturnRows(sqlmock.NewRows([]string{"entry_id"}).AddRow("entry-original"))

	mock.ExpectCommit()

	result, err := s.ApplyTransfer(withTenant(context.Background(), p.TenantID), p)
	require.NoError(t, err)
	assert.True(t, result.Duplicate)
	assert.Equal(t, "entry-original", result.EntryID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyTransfer_InsufficientFunds(t *testing.T) {
	s, mock := newMockStore(t)

	p := ApplyTransferParams{
		IdempotencyKey: "key-2",
		TenantID:       "tnt_acme",
		SourceAccount:  "acct:alice",
		DestAccount:    "acct:bob",
		AmountMinor:    5000,
		Currency:       "NGN",
		Narration:      "fast transfer",
	}

	mock.ExpectBegin()

	mock.ExpectExec("INSERT INTO idempotency_keys").WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectExec("SELECT pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectExec("INSERT INTO accounts").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT account_id, tenant_id, currency, balance_minor, created_at").
		WithArgs("acct:alice", p.TenantID).
		WillReturnRows(sqlmock.NewRows([]string{"account_id", "tenant_id", "currency", "balance_minor", "created_at"}).
			AddRow("acct:alice", p.TenantID, "NGN", int64(100), time.Now()))

	mock.ExpectExec("INSERT INTO accounts").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT account_id, tenant_id, currency, balance_minor, created_at").
		WithArgs("acct:bob", p.TenantID).
		WillReturnRows(sqlmock.NewRows([]string{"account_id", "tenant_id", "currency", "balance_minor", "created_at"}).
			AddRow("acct:bob", p.TenantID, "NGN", int64(0), time.Now()))

	mock.ExpectRollback()

	_, err := s.ApplyTransfer(withTenant(context.Background(), p.TenantID), p)
	require.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadBalance_UnknownAccountIsZero(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT balance_minor, currency FROM accounts").
		WithArgs("acct:ghost", "tnt_acme").
		WillReturnError(sql.ErrNoRows)

	balance, currency, err := s.ReadBalance(withTenant(context.Background(), "tnt_acme"), "tnt_acme", "acct:ghost")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
	assert.Empty(t, currency)

	assert.NoError(t, mock.ExpectationsWereMet())
}

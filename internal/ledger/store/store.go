// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

// Package store is the storage engine of the ledger core: accounts,
// journal entries, postings, and the idempotency-key gate that makes
// ApplyTransfer safe to retry. The whole transfer runs as a single
// serializable transaction; the only other query surface is the
// lock-free balance read.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nimbuspay/ledger-core/internal/ledger/posting"
	"github.com/nimbuspay/ledger-core/internal/tenant"
	"github.com/nimbuspay/ledger-core/pkg/apperr"
	"github.com/nimbuspay/ledger-core/pkg/dbtx"
	"github.com/nimbuspay/ledger-core/pkg/mlog"
	"github.com/nimbuspay/ledger-core/pkg/money"
	"github.com/nimbuspay/ledger-core/pkg/mtrace"
)

// pgUniqueViolation and pgSerializationFailure are the Postgres SQLSTATE
// codes this package inspects directly; see
// https://www.postgresql.org/docs/current/errcodes-appendix.html.
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
)

// ErrSerializationConflict is returned by ApplyTransfer when Postgres
// aborts the transaction for a serializable write conflict. Callers (the
// fast-path transfer handler) are expected to retry with backoff; this
// package never retries internally.
var ErrSerializationConflict = errors.New("store: serialization conflict, retry")

// Store is the Postgres-backed ledger storage engine.
type Store struct {
	db     *sql.DB
	logger mlog.Logger
}

// New returns a Store backed by db.
func New(db *sql.DB, logger mlog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// ApplyTransfer is the single-round-trip transfer routine: it gates on
// the idempotency key, locks both accounts in ascending
// account-id order to avoid deadlocks between opposing transfers, verifies
// currency and balance, posts a balanced two-line journal entry through
// internal/ledger/posting, and updates both balances, all inside one
// serializable transaction.
func (s *Store) ApplyTransfer(ctx context.Context, p ApplyTransferParams) (ApplyTransferResult, error) {
	ctx, span := mtrace.Start(ctx, "store.apply_transfer")
	defer span.End()

	if err := requireMatchingTenant(ctx, p.TenantID); err != nil {
		mtrace.HandleSpanError(&span, "tenant isolation check failed", err)
		return ApplyTransferResult{}, err
	}

	var result ApplyTransferResult

	txErr := dbtx.RunInTransactionWithOptions(ctx, s.db, &sql.TxOptions{Isolation: sql.LevelSerializable}, func(ctx context.Context) error {
		tx := dbtx.TxFromContext(ctx)

		inserted, err := gateIdempotencyKey(ctx, tx, p.IdempotencyKey, p.TenantID)
		if err != nil {
			return err
		}

		if !inserted {
			entryID, err := entryForKey(ctx, tx, p.IdempotencyKey)
			if err != nil {
				return err
			}

			s.logger.Infof("apply_transfer: idempotency key %s already applied, returning entry %s", p.IdempotencyKey, entryID)

			result = ApplyTransferResult{EntryID: entryID, Duplicate: true}

			return nil
		}

		entryID, err := applyBalancedTransfer(ctx, tx, p)
		if err != nil {
			return err
		}

		if err := bindEntryToKey(ctx, tx, p.IdempotencyKey, entryID); err != nil {
			return err
		}

		result = ApplyTransferResult{EntryID: entryID, Duplicate: false}

		return nil
	})
	if txErr != nil {
		var pgErr *pgconn.PgError
		if errors.As(txErr, &pgErr) && pgErr.Code == pgSerializationFailure {
			mtrace.HandleSpanError(&span, "serialization conflict applying transfer", txErr)
			return ApplyTransferResult{}, ErrSerializationConflict
		}

		mtrace.HandleSpanError(&span, "failed to apply transfer", txErr)

		return ApplyTransferResult{}, txErr
	}

	return result, nil
}

// requireMatchingTenant is the tenant isolation gate: every storage
// method that filters by tenant_id calls this instead of
// trusting a caller-supplied string directly, so a request that reaches
// storage without a validated tenant.Context attached to ctx, or whose
// context tenant disagrees with the tenant_id the query is about to
// filter on, fails loudly rather than risking a cross-tenant read or
// write.
func requireMatchingTenant(ctx context.Context, wantTenantID string) error {
	tc, err := tenant.RequireFromContext(ctx)
	if err != nil {
		return err
	}

	if tc.ID.String() != wantTenantID {
		return apperr.TenantIsolationViolation("tenant context does not match requested tenant_id")
	}

	return nil
}

// gateIdempotencyKey inserts the key if absent. It reports inserted=false,
// with no error and the transaction left usable, when the key already
// exists: this is the duplicate path, not a failure.
func gateIdempotencyKey(ctx context.Context, tx *sql.Tx, key, tenantID string) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO idempotency_keys (key, tenant_id, entry_id, created_at)
		VALUES ($1, $2, NULL, now())
		ON CONFLICT (key) DO NOTHING`,
		key, tenantID,
	)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n == 1, nil
}

// entryForKey returns the entry id bound to an already-seen idempotency
// key. ApplyTransfer inserts the gate row and binds its entry id in one
// transaction, so a committed row it wrote always carries an entry id; a
// NULL entry_id yields an empty entry id.
func entryForKey(ctx context.Context, tx *sql.Tx, key string) (string, error) {
	var entryID sql.NullString

	row := tx.QueryRowContext(ctx, `SELECT entry_id FROM idempotency_keys WHERE key = $1`, key)
	if err := row.Scan(&entryID); err != nil {
		return "", err
	}

	return entryID.String, nil
}

func bindEntryToKey(ctx context.Context, tx *sql.Tx, key, entryID string) error {
	_, err := tx.ExecContext(ctx, `UPDATE idempotency_keys SET entry_id = $1 WHERE key = $2`, entryID, key)
	return err
}

// applyBalancedTransfer upserts and locks both accounts, verifies
// currency and funds, posts the two-line entry, updates balances and
// appends the outbox event, returning the new entry's id.
func applyBalancedTransfer(ctx context.Context, tx *sql.Tx, p ApplyTransferParams) (string, error) {
	lockOrder := []string{p.SourceAccount, p.DestAccount}
	sort.Strings(lockOrder)

	for _, id := range lockOrder {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, id); err != nil {
			return "", err
		}
	}

	src, err := upsertAccount(ctx, tx, p.TenantID, p.SourceAccount, p.Currency)
	if err != nil {
		return "", err
	}

	dst, err := upsertAccount(ctx, tx, p.TenantID, p.DestAccount, p.Currency)
	if err != nil {
		return "", err
	}

	if src.Currency != p.Currency || dst.Currency != p.Currency {
		return "", apperr.CurrencyMismatch("account currency does not match transfer currency")
	}

	if src.BalanceMinor < p.AmountMinor {
		return "", apperr.InsufficientFunds(p.SourceAccount)
	}

	entry, err := posting.BuildTransferEntry(
		money.AccountID(p.SourceAccount), money.AccountID(p.DestAccount), p.AmountMinor, p.Currency, p.Narration,
	)
	if err != nil {
		return "", err
	}

	entryID := uuid.New().String()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO journal_entries (id, tenant_id, narration, currency, created_at)
		VALUES ($1, $2, $3, $4, now())`,
		entryID, p.TenantID, entry.Narration, entry.Currency,
	); err != nil {
		return "", err
	}

	for _, line := range entry.Lines {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO postings (entry_id, account_id, side, amount_minor)
			VALUES ($1, $2, $3, $4)`,
			entryID, string(line.AccountID), string(line.Side), line.AmountMinor,
		); err != nil {
			return "", err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE accounts SET balance_minor = balance_minor + $1 WHERE account_id = $2 AND tenant_id = $3`,
			posting.Delta(line.Side, line.AmountMinor), string(line.AccountID), p.TenantID,
		); err != nil {
			return "", err
		}
	}

	if err := appendTransferOutboxEvent(ctx, tx, entryID, p); err != nil {
		return "", err
	}

	return entryID, nil
}

// appendTransferOutboxEvent appends the balance-changed event in the
// same transaction as the posting, so a crash between the two can never
// happen. The payload is the ledger-events wire shape
// (entryId/tenant/occurredAt/lines/sourceRegion).
//
// The partition key is the tenant id rather than a single account id: a
// balanced entry always touches at least two accounts (src debit, dst
// credit), and delivery only has to stay in order *per account*;
// partitioning by tenant is a superset ordering that preserves every
// per-account sub-ordering without splitting one entry's two legs
// across two independently-draining partitions.
func appendTransferOutboxEvent(ctx context.Context, tx *sql.Tx, entryID string, p ApplyTransferParams) error {
	payload, err := json.Marshal(outboxEventPayload{
		EntryID:    entryID,
		Tenant:     p.TenantID,
		OccurredAt: time.Now().UTC(),
		Lines: []outboxEventLine{
			{Account: p.SourceAccount, Side: "D", Amount: p.AmountMinor, Currency: p.Currency},
			{Account: p.DestAccount, Side: "C", Amount: p.AmountMinor, Currency: p.Currency},
		},
		SourceRegion: p.SourceRegion,
	})
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO outbox_messages (tenant_id, partition_key, event_type, payload, source_region, status, created_at)
		VALUES ($1, $2, 'balance.changed', $3, $4, 'pending', now())`,
		p.TenantID, p.TenantID, payload, p.SourceRegion,
	)

	return err
}

// outboxEventPayload is the JSON body of a ledger-events message.
type outboxEventPayload struct {
	EntryID      string            `json:"entryId"`
	Tenant       string            `json:"tenant"`
	OccurredAt   time.Time         `json:"occurredAt"`
	Lines        []outboxEventLine `json:"lines"`
	SourceRegion string            `json:"sourceRegion"`
}

type outboxEventLine struct {
	Account  string `json:"account"`
	Side     string `json:"side"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// upsertAccount creates the account row on first reference (balance 0,
// given currency) and otherwise returns the existing row untouched.
func upsertAccount(ctx context.Context, tx *sql.Tx, tenantID, accountID, currency string) (Account, error) {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (account_id, tenant_id, currency, balance_minor, created_at)
		VALUES ($1, $2, $3, 0, now())
		ON CONFLICT (account_id, tenant_id) DO NOTHING`,
		accountID, tenantID, currency,
	)
	if err != nil {
		return Account{}, err
	}

	var a Account

	row := tx.QueryRowContext(ctx, `
		SELECT account_id, tenant_id, currency, balance_minor, created_at
		FROM accounts WHERE account_id = $1 AND tenant_id = $2`,
		accountID, tenantID,
	)
	if err := row.Scan(&a.AccountID, &a.TenantID, &a.Currency, &a.BalanceMinor, &a.CreatedAt); err != nil {
		return Account{}, err
	}

	return a, nil
}

// ReadBalance returns an account's current balance and currency. An
// account that has never been referenced yields a zero balance, an empty
// currency and no error; internal/httpapi answers that case with 404.
func (s *Store) ReadBalance(ctx context.Context, tenantID, accountID string) (int64, string, error) {
	ctx, span := mtrace.Start(ctx, "store.read_balance")
	defer span.End()

	if err := requireMatchingTenant(ctx, tenantID); err != nil {
		mtrace.HandleSpanError(&span, "tenant isolation check failed", err)
		return 0, "", err
	}

	exec := dbtx.GetExecutor(ctx, s.db)

	var balance int64

	var currency string

	row := exec.QueryRowContext(ctx, `
		SELECT balance_minor, currency FROM accounts WHERE account_id = $1 AND tenant_id = $2`,
		accountID, tenantID,
	)

	err := row.Scan(&balance, &currency)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", nil
	}

	if err != nil {
		mtrace.HandleSpanError(&span, "failed to read balance", err)
		return 0, "", err
	}

	return balance, currency, nil
}

// PruneIdempotencyKeys deletes idempotency keys older than olderThan,
// the IDEMPOTENCY_RETENTION_DAYS sweep. Keys are the only gate on
// re-executing a transfer's side effect; once past the replay horizon a
// resubmission with the same key is treated as a brand new request
// rather than a Duplicate.
func (s *Store) PruneIdempotencyKeys(ctx context.Context, olderThan time.Time) (int64, error) {
	ctx, span := mtrace.Start(ctx, "store.prune_idempotency_keys")
	defer span.End()

	res, err := s.db.ExecContext(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, olderThan)
	if err != nil {
		mtrace.HandleSpanError(&span, "failed to prune idempotency keys", err)
		return 0, err
	}

	return res.RowsAffected()
}

// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

package offline

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nimbuspay/ledger-core/pkg/mtrace"
)

const pgUniqueViolation = "23505"

// Store is the Postgres-backed repository for the offline_operations
// table. Each method runs a single statement; it opens no transaction and
// takes no advisory lock.
type Store struct {
	db *sql.DB
}

// New returns a Store backed by db.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Enqueue inserts op if (device_id, nonce) has never been seen. It
// reports inserted=false (no error) when the pair already exists: the
// AlreadyQueued success path, never an error the caller must handle.
func (s *Store) Enqueue(ctx context.Context, op Operation) (inserted bool, err error) {
	ctx, span := mtrace.Start(ctx, "offline.enqueue")
	defer span.End()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO offline_operations (device_id, nonce, tenant_id, kind, payload, signature, status, enqueued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())`,
		op.DeviceID, op.Nonce, op.TenantID, string(op.Kind), op.Payload, op.Signature, string(StatusQueued),
	)
	if err == nil {
		return true, nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return false, nil
	}

	mtrace.HandleSpanError(&span, "failed to enqueue offline operation", err)

	return false, err
}

// ListQueued returns up to limit queued operations for deviceID in
// enqueue order.
func (s *Store) ListQueued(ctx context.Context, deviceID string, limit int) ([]Operation, error) {
	ctx, span := mtrace.Start(ctx, "offline.list_queued")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `
		SELECT device_id, nonce, tenant_id, kind, payload, signature, status, COALESCE(entry_id::text, ''), COALESCE(error_message, ''), enqueued_at, synced_at
		FROM offline_operations
		WHERE device_id = $1 AND status = $2
		ORDER BY enqueued_at ASC, nonce ASC
		LIMIT $3`,
		deviceID, string(StatusQueued), limit,
	)
	if err != nil {
		mtrace.HandleSpanError(&span, "failed to list queued offline operations", err)
		return nil, err
	}
	defer rows.Close()

	var ops []Operation

	for rows.Next() {
		var op Operation

		var status string

		if err := rows.Scan(&op.DeviceID, &op.Nonce, &op.TenantID, &op.Kind, &op.Payload, &op.Signature, &status, &op.EntryID, &op.ErrorMessage, &op.EnqueuedAt, &op.SyncedAt); err != nil {
			return nil, err
		}

		op.Status = Status(status)
		ops = append(ops, op)
	}

	return ops, rows.Err()
}

// MarkSynced transitions an operation to StatusSynced with the committed
// entry id.
func (s *Store) MarkSynced(ctx context.Context, deviceID, nonce, entryID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE offline_operations SET status = $1, entry_id = $2, synced_at = now()
		WHERE device_id = $3 AND nonce = $4`,
		string(StatusSynced), entryID, deviceID, nonce,
	)

	return err
}

// MarkRejected transitions an operation to StatusRejected with a
// permanent failure reason. A transient failure leaves the operation
// StatusQueued (no call here) so the next sync retries it.
func (s *Store) MarkRejected(ctx context.Context, deviceID, nonce, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE offline_operations SET status = $1, error_message = $2
		WHERE device_id = $3 AND nonce = $4`,
		string(StatusRejected), reason, deviceID, nonce,
	)

	return err
}

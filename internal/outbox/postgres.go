// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

package outbox

import (
	"context"
	"database/sql"

	"github.com/nimbuspay/ledger-core/pkg/dbtx"
	"github.com/nimbuspay/ledger-core/pkg/mtrace"
)

// PostgresRepository is the Postgres-backed Repository over the
// outbox_messages table (migrations/000005).
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a Repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) PendingPartitions(ctx context.Context, limit int) ([]string, error) {
	ctx, span := mtrace.Start(ctx, "outbox.pending_partitions")
	defer span.End()

	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT partition_key FROM outbox_messages
		WHERE status IN ($1, $2, $3)
		LIMIT $4`,
		string(StatusPending), string(StatusFailed), string(StatusProcessing), limit,
	)
	if err != nil {
		mtrace.HandleSpanError(&span, "failed to list pending partitions", err)
		return nil, err
	}
	defer rows.Close()

	var keys []string

	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}

		keys = append(keys, k)
	}

	return keys, rows.Err()
}

func (r *PostgresRepository) FetchPendingForPartition(ctx context.Context, partitionKey string, limit int) ([]Message, error) {
	ctx, span := mtrace.Start(ctx, "outbox.fetch_pending_for_partition")
	defer span.End()

	exec := dbtx.GetExecutor(ctx, r.db)

	rows, err := exec.QueryContext(ctx, `
		SELECT id, tenant_id, partition_key, event_type, payload, source_region, status, attempts, COALESCE(last_error, ''), created_at, published_at, updated_at
		FROM outbox_messages
		WHERE partition_key = $1 AND status IN ($2, $3, $4)
		ORDER BY id ASC
		LIMIT $5`,
		partitionKey, string(StatusPending), string(StatusFailed), string(StatusProcessing), limit,
	)
	if err != nil {
		mtrace.HandleSpanError(&span, "failed to fetch pending messages", err)
		return nil, err
	}
	defer rows.Close()

	var msgs []Message

	for rows.Next() {
		var m Message

		var status string

		if err := rows.Scan(&m.ID, &m.TenantID, &m.PartitionKey, &m.EventType, &m.Payload, &m.SourceRegion, &status, &m.Attempts, &m.LastError, &m.CreatedAt, &m.PublishedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}

		m.Status = Status(status)
		msgs = append(msgs, m)
	}

	return msgs, rows.Err()
}

func (r *PostgresRepository) MarkProcessing(ctx context.Context, id int64) error {
	ctx, span := mtrace.Start(ctx, "outbox.mark_processing")
	defer span.End()

	_, err := r.db.ExecContext(ctx, `
		UPDATE outbox_messages SET status = $1, updated_at = now() WHERE id = $2`,
		string(StatusProcessing), id,
	)
	if err != nil {
		mtrace.HandleSpanError(&span, "failed to mark message processing", err)
	}

	return err
}

func (r *PostgresRepository) MarkPublished(ctx context.Context, id int64) error {
	ctx, span := mtrace.Start(ctx, "outbox.mark_published")
	defer span.End()

	_, err := r.db.ExecContext(ctx, `
		UPDATE outbox_messages SET status = $1, published_at = now(), updated_at = now() WHERE id = $2`,
		string(StatusPublished), id,
	)
	if err != nil {
		mtrace.HandleSpanError(&span, "failed to mark message published", err)
	}

	return err
}

func (r *PostgresRepository) MarkFailed(ctx context.Context, id int64, cause error) error {
	ctx, span := mtrace.Start(ctx, "outbox.mark_failed")
	defer span.End()

	_, err := r.db.ExecContext(ctx, `
		UPDATE outbox_messages SET status = $1, attempts = attempts + 1, last_error = $2, updated_at = now() WHERE id = $3`,
		string(StatusFailed), cause.Error(), id,
	)
	if err != nil {
		mtrace.HandleSpanError(&span, "failed to mark message failed", err)
	}

	return err
}

func (r *PostgresRepository) MarkPoison(ctx context.Context, id int64, cause error) error {
	ctx, span := mtrace.Start(ctx, "outbox.mark_poison")
	defer span.End()

	_, err := r.db.ExecContext(ctx, `
		UPDATE outbox_messages SET status = $1, last_error = $2, updated_at = now() WHERE id = $3`,
		string(StatusDLQ), cause.Error(), id,
	)
	if err != nil {
		mtrace.HandleSpanError(&span, "failed to mark message poison", err)
	}

	return err
}

// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

package outbox

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/nimbuspay/ledger-core/pkg/mlog"
	"github.com/nimbuspay/ledger-core/pkg/mretry"
)

// pruner is the subset of internal/ledger/store.Store the retention sweep
// needs; kept narrow so this package does not import the store package.
type pruner interface {
	PruneIdempotencyKeys(ctx context.Context, olderThan time.Time) (int64, error)
}

// Dispatcher drains pending outbox messages onto the external stream in
// partition order. It never drops a message: a transient publish error
// is retried with capped exponential backoff, and a message that
// exhausts its retry budget is quarantined (StatusDLQ) rather than
// discarded.
type Dispatcher struct {
	logger    mlog.Logger
	repo      Repository
	publisher Publisher

	maxWorkers    int
	retentionDays int
	retry         mretry.Config

	observer Observer
}

// SetObserver attaches an Observer notified with every successfully
// published message's decoded payload. Optional: a Dispatcher with no
// observer simply skips the notification.
func (d *Dispatcher) SetObserver(o Observer) {
	d.observer = o
}

// NewDispatcher returns a Dispatcher. It panics if logger, repo, or
// publisher is nil: a dispatcher with a missing dependency cannot make
// any delivery guarantee and must never start. maxWorkers and
// retentionDays default to 5 and 30 respectively when zero.
func NewDispatcher(logger mlog.Logger, repo Repository, publisher Publisher, maxWorkers, retentionDays int) *Dispatcher {
	if logger == nil {
		panic("outbox: logger must not be nil")
	}

	if repo == nil {
		panic("outbox: repository must not be nil")
	}

	if publisher == nil {
		panic("outbox: publisher must not be nil")
	}

	if maxWorkers <= 0 {
		maxWorkers = 5
	}

	if retentionDays <= 0 {
		retentionDays = 30
	}

	return &Dispatcher{
		logger:        logger,
		repo:          repo,
		publisher:     publisher,
		maxWorkers:    maxWorkers,
		retentionDays: retentionDays,
		retry:         mretry.DefaultMetadataOutboxConfig(),
	}
}

// calculateBackoff returns the delay before retrying a message that has
// already failed attempt times, exponential with the Dispatcher's retry
// policy, capped at retry.MaxBackoff.
func (d *Dispatcher) calculateBackoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	d2 := float64(d.retry.InitialBackoff) * math.Pow(2, float64(attempt-1))

	if d2 > float64(d.retry.MaxBackoff) {
		return d.retry.MaxBackoff
	}

	return time.Duration(d2)
}

// Run polls for pending partitions every pollInterval and dispatches each
// one's backlog, until ctx is cancelled. Partitions are processed
// concurrently up to maxWorkers; within a partition, messages are
// published strictly in enqueue order.
func (d *Dispatcher) Run(ctx context.Context, pollInterval time.Duration) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.dispatchOnce(ctx)
		}
	}
}

func (d *Dispatcher) dispatchOnce(ctx context.Context) {
	partitions, err := d.repo.PendingPartitions(ctx, d.maxWorkers*4)
	if err != nil {
		d.logger.Errorf("outbox dispatcher: failed to list pending partitions: %v", err)
		return
	}

	sem := make(chan struct{}, d.maxWorkers)

	done := make(chan struct{}, len(partitions))

	for _, partition := range partitions {
		partition := partition

		sem <- struct{}{}

		go func() {
			defer func() { <-sem; done <- struct{}{} }()
			d.dispatchPartition(ctx, partition)
		}()
	}

	for range partitions {
		<-done
	}
}

// dispatchPartition drains one partition's backlog in enqueue order. Each
// message is published independently: a failure on message N does not
// block reattempting message N on the next pass, but it does stop this
// pass from moving on to N+1, preserving per-partition order.
func (d *Dispatcher) dispatchPartition(ctx context.Context, partitionKey string) {
	msgs, err := d.repo.FetchPendingForPartition(ctx, partitionKey, 100)
	if err != nil {
		d.logger.Errorf("outbox dispatcher: failed to fetch partition %s: %v", partitionKey, err)
		return
	}

	for _, msg := range msgs {
		if !d.backoffElapsed(msg) {
			// A message still inside its backoff window blocks the rest of
			// the partition too: reattempting N+1 ahead of N would break
			// the per-partition ordering guarantee.
			return
		}

		if !d.deliver(ctx, msg) {
			return
		}
	}
}

// backoffElapsed reports whether msg is eligible for another delivery
// attempt. Only previously-failed messages are gated; pending (never
// attempted) and processing (crash-recovered) messages are always eligible.
func (d *Dispatcher) backoffElapsed(msg Message) bool {
	if msg.Status != StatusFailed {
		return true
	}

	return time.Since(msg.UpdatedAt) >= d.calculateBackoff(msg.Attempts)
}

// deliver publishes a single message, returning false when delivery did
// not succeed (caller must stop draining this partition to preserve
// order).
func (d *Dispatcher) deliver(ctx context.Context, msg Message) bool {
	if err := d.repo.MarkProcessing(ctx, msg.ID); err != nil {
		d.logger.Errorf("outbox dispatcher: failed to mark message %d processing: %v", msg.ID, err)
		return false
	}

	publishCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := d.publisher.Publish(publishCtx, msg.PartitionKey, msg.Payload); err != nil {
		if msg.Attempts+1 >= d.retry.MaxRetries {
			d.logger.Errorf("outbox dispatcher: message %d exhausted retries, quarantining: %v", msg.ID, err)

			if markErr := d.repo.MarkPoison(ctx, msg.ID, err); markErr != nil {
				d.logger.Errorf("outbox dispatcher: failed to mark message %d poison: %v", msg.ID, markErr)
			}

			return false
		}

		d.logger.Warnf("outbox dispatcher: message %d publish failed (attempt %d), will retry: %v", msg.ID, msg.Attempts+1, err)

		if markErr := d.repo.MarkFailed(ctx, msg.ID, err); markErr != nil {
			d.logger.Errorf("outbox dispatcher: failed to mark message %d failed: %v", msg.ID, markErr)
		}

		return false
	}

	if err := d.repo.MarkPublished(ctx, msg.ID); err != nil {
		d.logger.Errorf("outbox dispatcher: failed to mark message %d published: %v", msg.ID, err)
		return false
	}

	d.notifyObserver(ctx, msg)

	return true
}

// notifyObserver decodes msg's payload and hands it to the attached
// Observer, if any. A failure here never rolls back the publish: the
// message has already been durably delivered to the external stream, so
// this is best-effort counter bookkeeping, logged and otherwise ignored.
func (d *Dispatcher) notifyObserver(ctx context.Context, msg Message) {
	if d.observer == nil {
		return
	}

	var payload EventPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		d.logger.Errorf("outbox dispatcher: failed to decode message %d payload for observer: %v", msg.ID, err)
		return
	}

	if err := d.observer.Apply(ctx, payload); err != nil {
		d.logger.Errorf("outbox dispatcher: observer failed for message %d: %v", msg.ID, err)
	}
}

// RunRetentionSweep runs PruneIdempotencyKeys on store every period
// until ctx is cancelled: a small ticker living in the dispatcher
// process rather than a separate component.
func (d *Dispatcher) RunRetentionSweep(ctx context.Context, store pruner, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().AddDate(0, 0, -d.retentionDays)

			n, err := store.PruneIdempotencyKeys(ctx, cutoff)
			if err != nil {
				d.logger.Errorf("outbox dispatcher: idempotency key retention sweep failed: %v", err)
				continue
			}

			if n > 0 {
				d.logger.Infof("outbox dispatcher: pruned %d idempotency keys older than %s", n, cutoff)
			}
		}
	}
}

// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

package reconcile

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/nimbuspay/ledger-core/internal/outbox"
)

// CounterStore is the per-region drift counter dependency the healer
// needs: one hash per (tenant, account, currency) key holding the
// per-region pos/neg sums.
type CounterStore interface {
	// Apply increments the counters for key's (tenant, account, currency)
	// in region by one posting line: credits add to pos[region], debits
	// add to neg[region].
	Apply(ctx context.Context, key Key, region string, side outbox.LineSide, amountMinor int64) error

	// Read returns the Counters for key across the two named regions.
	Read(ctx context.Context, key Key, regionA, regionB string) (Counters, error)

	// Keys returns every drift key currently tracked for tenantID.
	Keys(ctx context.Context, tenantID string) ([]Key, error)
}

// WatermarkStore reads and advances the per-tenant global watermark:
// the most recent instant at which all regions have acknowledged all
// events up to that time.
type WatermarkStore interface {
	Get(ctx context.Context, tenantID string) (time.Time, error)
	Set(ctx context.Context, tenantID string, at time.Time) error
}

// RedisCounterStore is the Redis-backed CounterStore.
type RedisCounterStore struct {
	client *goredis.Client
}

// NewRedisCounterStore returns a CounterStore backed by client.
func NewRedisCounterStore(client *goredis.Client) *RedisCounterStore {
	return &RedisCounterStore{client: client}
}

func counterHashKey(key Key) string {
	return fmt.Sprintf("drift:%s:%s:%s", key.TenantID, key.AccountID, key.Currency)
}

func keysSetKey(tenantID string) string {
	return "drift:keys:" + tenantID
}

func (s *RedisCounterStore) Apply(ctx context.Context, key Key, region string, side outbox.LineSide, amountMinor int64) error {
	field := "neg:" + region
	if side == outbox.LineSideCredit {
		field = "pos:" + region
	}

	pipe := s.client.TxPipeline()
	pipe.HIncrBy(ctx, counterHashKey(key), field, amountMinor)
	pipe.SAdd(ctx, keysSetKey(key.TenantID), counterHashKey(key))

	_, err := pipe.Exec(ctx)

	return err
}

func (s *RedisCounterStore) Read(ctx context.Context, key Key, regionA, regionB string) (Counters, error) {
	h, err := s.client.HGetAll(ctx, counterHashKey(key)).Result()
	if err != nil {
		return Counters{}, err
	}

	return Counters{
		Key:  key,
		PosA: parseOrZero(h["pos:"+regionA]),
		NegA: parseOrZero(h["neg:"+regionA]),
		PosB: parseOrZero(h["pos:"+regionB]),
		NegB: parseOrZero(h["neg:"+regionB]),
	}, nil
}

func (s *RedisCounterStore) Keys(ctx context.Context, tenantID string) ([]Key, error) {
	hashKeys, err := s.client.SMembers(ctx, keysSetKey(tenantID)).Result()
	if err != nil {
		return nil, err
	}

	keys := make([]Key, 0, len(hashKeys))

	for _, hk := range hashKeys {
		parsed, ok := parseHashKey(hk)
		if !ok {
			continue
		}

		keys = append(keys, parsed)
	}

	return keys, nil
}

func parseHashKey(hk string) (Key, bool) {
	// Format: drift:{tenant}:{account}:{currency}. Tenant ids never contain
	// ':' (money.ParseTenantID rejects it) but account ids routinely do
	// (the canonical "msisdn::234...", "card::...", "merchant::..." forms),
	// so the tenant boundary must be taken from the FIRST colon and the
	// currency boundary from the LAST colon, with everything in between as
	// the account id.
	const prefix = "drift:"
	if len(hk) <= len(prefix) || !strings.HasPrefix(hk, prefix) {
		return Key{}, false
	}

	rest := hk[len(prefix):]

	firstColon := strings.IndexByte(rest, ':')
	if firstColon < 0 {
		return Key{}, false
	}

	tenantID := rest[:firstColon]
	rest = rest[firstColon+1:]

	lastColon := strings.LastIndexByte(rest, ':')
	if lastColon < 0 {
		return Key{}, false
	}

	return Key{
		TenantID:  tenantID,
		AccountID: rest[:lastColon],
		Currency:  rest[lastColon+1:],
	}, true
}

func parseOrZero(v string) int64 {
	if v == "" {
		return 0
	}

	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}

	return n
}

// RedisWatermarkStore is the Redis-backed WatermarkStore: a single key per
// tenant holding a Unix-millisecond timestamp.
type RedisWatermarkStore struct {
	client *goredis.Client
}

// NewRedisWatermarkStore returns a WatermarkStore backed by client.
func NewRedisWatermarkStore(client *goredis.Client) *RedisWatermarkStore {
	return &RedisWatermarkStore{client: client}
}

func watermarkKey(tenantID string) string { return "drift:watermark:" + tenantID }

func (s *RedisWatermarkStore) Get(ctx context.Context, tenantID string) (time.Time, error) {
	v, err := s.client.Get(ctx, watermarkKey(tenantID)).Result()
	if err == goredis.Nil {
		return time.Time{}, nil
	}

	if err != nil {
		return time.Time{}, err
	}

	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, nil
	}

	return time.UnixMilli(ms), nil
}

func (s *RedisWatermarkStore) Set(ctx context.Context, tenantID string, at time.Time) error {
	return s.client.Set(ctx, watermarkKey(tenantID), at.UnixMilli(), 0).Err()
}

// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

// Package realtime implements the balance fan-out publisher: it
// consumes ledger events and fans out balanceUpdate messages to any
// websocket client subscribed to the affected account.
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/nimbuspay/ledger-core/internal/outbox"
	"github.com/nimbuspay/ledger-core/internal/tenant"
	"github.com/nimbuspay/ledger-core/pkg/mlog"
	"github.com/nimbuspay/ledger-core/pkg/money"
)

// BalanceUpdate is the event shape pushed on the `/events/balance`
// stream.
type BalanceUpdate struct {
	Type         string `json:"type"`
	AccountID    string `json:"accountId"`
	Minor        int64  `json:"minor"`
	Currency     string `json:"currency"`
	PendingMinor int64  `json:"pendingMinor"`
}

// BalanceReader resolves the current balance for an account, matching
// internal/ledger/store.Store.ReadBalance. It is used to compute the
// minor field of a BalanceUpdate from an outbox event that only carries
// the posting delta; pendingMinor is always 0, since this data model
// has no separate pending-transaction concept, only a settled
// balance_minor column.
type BalanceReader interface {
	ReadBalance(ctx context.Context, tenantID, accountID string) (balanceMinor int64, currency string, err error)
}

// client is a single websocket connection's subscription state and
// outbound queue. tenantID is the tenant the connection authenticated
// as at the upgrade handshake; account ids are only unique within a
// tenant, so every fan-out decision is scoped by it.
type client struct {
	tenantID string
	send     chan []byte

	mu            sync.RWMutex
	subscriptions map[string]bool
}

func newClient(tenantID string) *client {
	return &client{
		tenantID:      tenantID,
		send:          make(chan []byte, 256),
		subscriptions: map[string]bool{},
	}
}

func (c *client) subscribe(accountID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscriptions[accountID] = true
}

func (c *client) unsubscribe(accountID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subscriptions, accountID)
}

func (c *client) isSubscribed(accountID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.subscriptions[accountID]
}

// Hub groups connections by account subscription and fans out balance
// updates. It implements outbox.Observer so the dispatcher can drive it
// directly off the same successfully-published events the external
// stream sees.
type Hub struct {
	logger  mlog.Logger
	balance BalanceReader

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub returns a Hub. balance is used to fill in the current minor
// balance on every fan-out, since the outbox event itself only carries
// the posting delta, not the resulting balance; pendingMinor is always 0.
func NewHub(logger mlog.Logger, balance BalanceReader) *Hub {
	return &Hub{
		logger:  logger,
		balance: balance,
		clients: map[*client]struct{}{},
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// ClientCount reports the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// Apply implements outbox.Observer: for every posting line in payload, it
// re-reads the account's current balance and fans the resulting
// BalanceUpdate out to every client subscribed to that account.
func (h *Hub) Apply(ctx context.Context, payload outbox.EventPayload) error {
	seen := map[string]bool{}

	for _, line := range payload.Lines {
		if seen[line.Account] {
			continue
		}

		seen[line.Account] = true

		h.publishAccount(ctx, payload.Tenant, line.Account, line.Currency)
	}

	return nil
}

func (h *Hub) publishAccount(ctx context.Context, tenantID, accountID, currency string) {
	h.mu.RLock()
	subscribers := make([]*client, 0, len(h.clients))

	for c := range h.clients {
		// Same account id under another tenant is a different account;
		// a connection only ever sees its own tenant's events.
		if c.tenantID == tenantID && c.isSubscribed(accountID) {
			subscribers = append(subscribers, c)
		}
	}
	h.mu.RUnlock()

	if len(subscribers) == 0 {
		return
	}

	tid, err := money.ParseTenantID(tenantID)
	if err != nil {
		h.logger.Errorf("realtime hub: invalid tenant id %q on published event: %v", tenantID, err)
		return
	}

	// ReadBalance enforces internal/tenant's isolation gate, so the event's
	// tenant must be attached to ctx before calling it; the dispatcher's
	// publish context carries no tenant of its own.
	ctx = tenant.WithContext(ctx, tenant.Context{ID: tid})

	available, resolvedCurrency, err := h.balance.ReadBalance(ctx, tenantID, accountID)
	if err != nil {
		h.logger.Errorf("realtime hub: failed to read balance for account %s: %v", accountID, err)
		return
	}

	if resolvedCurrency == "" {
		resolvedCurrency = currency
	}

	update := BalanceUpdate{
		Type:      "balanceUpdate",
		AccountID: accountID,
		Minor:     available,
		Currency:  resolvedCurrency,
	}

	data, err := json.Marshal(update)
	if err != nil {
		h.logger.Errorf("realtime hub: failed to marshal balance update: %v", err)
		return
	}

	h.fanOut(subscribers, data)
}

func (h *Hub) fanOut(subscribers []*client, data []byte) {
	for _, c := range subscribers {
		select {
		case c.send <- data:
		default:
			h.logger.Warnf("realtime hub: client send buffer full, dropping connection")
			h.unregister(c)
		}
	}
}

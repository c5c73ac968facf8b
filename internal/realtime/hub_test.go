// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbuspay/ledger-core/internal/outbox"
	"github.com/nimbuspay/ledger-core/pkg/mlog"
)

type fakeBalanceReader struct {
	balance  int64
	currency string
	err      error
}

func (f *fakeBalanceReader) ReadBalance(ctx context.Context, tenantID, accountID string) (int64, string, error) {
	return f.balance, f.currency, f.err
}

type noopLogger struct{}

func (noopLogger) Info(args ...any)                  {}
func (noopLogger) Infof(format string, args ...any)  {}
func (noopLogger) Error(args ...any)                 {}
func (noopLogger) Errorf(format string, args ...any) {}
func (noopLogger) Warn(args ...any)                  {}
func (noopLogger) Warnf(format string, args ...any)  {}
func (noopLogger) Debug(args ...any)                 {}
func (noopLogger) Debugf(format string, args ...any) {}
func (noopLogger) Fatal(args ...any)                 {}
func (noopLogger) Fatalf(format string, args ...any) {}
func (l noopLogger) WithFields(fields ...any) mlog.Logger {
	return l
}

func TestHub_ApplyFansOutToSubscribedClient(t *testing.T) {
	hub := NewHub(noopLogger{}, &fakeBalanceReader{balance: 1500, currency: "KES"})

	c := newClient("tnt_acme01")
	c.subscribe("acct_001")
	hub.register(c)

	err := hub.Apply(context.Background(), outbox.EventPayload{
		Tenant: "tnt_acme01",
		Lines: []outbox.Line{
			{Account: "acct_001", Side: outbox.LineSideCredit, Amount: 1500, Currency: "KES"},
		},
	})
	require.NoError(t, err)

	select {
	case msg := <-c.send:
		var update BalanceUpdate
		require.NoError(t, json.Unmarshal(msg, &update))
		assert.Equal(t, "acct_001", update.AccountID)
		assert.Equal(t, int64(1500), update.Minor)
		assert.Equal(t, "KES", update.Currency)
	default:
		t.Fatal("expected a fanned-out message")
	}
}

func TestHub_ApplySkipsUnsubscribedClient(t *testing.T) {
	hub := NewHub(noopLogger{}, &fakeBalanceReader{balance: 1500, currency: "KES"})

	c := newClient("tnt_acme01")
	c.subscribe("acct_999")
	hub.register(c)

	err := hub.Apply(context.Background(), outbox.EventPayload{
		Tenant: "tnt_acme01",
		Lines: []outbox.Line{
			{Account: "acct_001", Side: outbox.LineSideCredit, Amount: 1500, Currency: "KES"},
		},
	})
	require.NoError(t, err)

	select {
	case <-c.send:
		t.Fatal("unsubscribed client should not receive a message")
	default:
	}
}

func TestClient_SubscribeUnsubscribe(t *testing.T) {
	c := newClient("tnt_acme01")

	assert.False(t, c.isSubscribed("acct_001"))

	c.subscribe("acct_001")
	assert.True(t, c.isSubscribed("acct_001"))

	c.unsubscribe("acct_001")
	assert.False(t, c.isSubscribed("acct_001"))
}

func TestHub_ClientCount(t *testing.T) {
	hub := NewHub(noopLogger{}, &fakeBalanceReader{})
	assert.Equal(t, 0, hub.ClientCount())

	c := newClient("tnt_acme01")
	hub.register(c)
	assert.Equal(t, 1, hub.ClientCount())

	hub.unregister(c)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHub_ApplySkipsOtherTenantsClient(t *testing.T) {
	// Account ids are only unique per tenant (every tenant shares the
	// literal "suspense" id, for one): a client authenticated as another
	// tenant must not receive this tenant's events for the same account
	// id string.
	hub := NewHub(noopLogger{}, &fakeBalanceReader{balance: 1500, currency: "NGN"})

	eavesdropper := newClient("tnt_other1")
	eavesdropper.subscribe("suspense")
	hub.register(eavesdropper)

	owner := newClient("tnt_acme01")
	owner.subscribe("suspense")
	hub.register(owner)

	err := hub.Apply(context.Background(), outbox.EventPayload{
		Tenant: "tnt_acme01",
		Lines: []outbox.Line{
			{Account: "suspense", Side: outbox.LineSideCredit, Amount: 1500, Currency: "NGN"},
		},
	})
	require.NoError(t, err)

	select {
	case <-eavesdropper.send:
		t.Fatal("client of another tenant must not receive the event")
	default:
	}

	select {
	case <-owner.send:
	default:
		t.Fatal("owning tenant's client should receive the event")
	}
}

// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

package bootstrap

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/nimbuspay/ledger-core/pkg/mlog"
)

// ledgerEventsExchange is the topic exchange the outbox dispatcher
// publishes to.
const ledgerEventsExchange = "ledger-events"

// connectRabbitMQ dials dsn, opens a channel, and declares the
// ledger-events topic exchange.
func connectRabbitMQ(dsn string, logger mlog.Logger) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("bootstrap: open rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(ledgerEventsExchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()

		return nil, nil, fmt.Errorf("bootstrap: declare ledger-events exchange: %w", err)
	}

	logger.Infof("bootstrap: connected to rabbitmq, ledger-events exchange declared")

	return conn, ch, nil
}

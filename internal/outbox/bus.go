// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

package outbox

import (
	"context"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher is the external stream dependency Dispatcher needs. It is
// satisfied by *RabbitMQPublisher; tests substitute a fake.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// RabbitMQPublisher publishes ledger-events to a topic exchange.
type RabbitMQPublisher struct {
	channel  *amqp.Channel
	exchange string
}

// NewRabbitMQPublisher returns a Publisher that publishes persistent
// messages to exchange over channel.
func NewRabbitMQPublisher(channel *amqp.Channel, exchange string) *RabbitMQPublisher {
	return &RabbitMQPublisher{channel: channel, exchange: exchange}
}

// Publish sends body to the ledger-events exchange with routingKey as
// the partition key (the tenant-level key chosen by
// internal/ledger/store; see its appendTransferOutboxEvent doc comment).
func (p *RabbitMQPublisher) Publish(ctx context.Context, routingKey string, body []byte) error {
	err := p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return errors.Wrap(err, "outbox: publish to rabbitmq")
	}

	return nil
}

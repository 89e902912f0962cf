package mq

import (
	"context"

	"github.com/rabbitmq/amqp091-go"
)

// PublishToDLQ publishes a failed message body to the dead letter exchange.
func (p *Publisher) PublishToDLQ(ctx context.Context, routingKey string, body []byte, reason, origin string) error {
	headers := amqp091.Table{
		"x-original-error": reason,
		"x-failed-at":      origin,
	}
	return p.publish(ctx, DLQExchangeName, routingKey, body, headers)
}

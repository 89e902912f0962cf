package mq

import (
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeName    = "selftracker.events"
	DLQExchangeName = "selftracker.events.dlq"

	heartbeat = 10 * time.Second
)

// Binding 一个持久队列及其 routing key
type Binding struct {
	Queue      string
	RoutingKey string
}

// DeadLetterBinding 每个 routing key 对应一个 "<routing key>.dlq" 队列
func DeadLetterBinding(routingKey string) Binding {
	return Binding{Queue: routingKey + ".dlq", RoutingKey: routingKey}
}

// dial opens a named connection and one channel, and declares both topic exchanges.
// On error nothing is left open.
func dial(url, name string) (*amqp091.Connection, *amqp091.Channel, error) {
	props := amqp091.NewConnectionProperties()
	props.SetClientConnectionName(name)

	conn, err := amqp091.DialConfig(url, amqp091.Config{
		Heartbeat:  heartbeat,
		Properties: props,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}

	for _, exchange := range []string{ExchangeName, DLQExchangeName} {
		err := ch.ExchangeDeclare(
			exchange,
			"topic",
			true,  // durable
			false, // auto-deleted
			false, // internal
			false, // no-wait
			nil,
		)
		if err != nil {
			ch.Close()
			conn.Close()
			return nil, nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
		}
	}
	return conn, ch, nil
}

// declareBinding 声明持久队列并绑定到 exchange
func declareBinding(ch *amqp091.Channel, exchange string, b Binding) (amqp091.Queue, error) {
	q, err := ch.QueueDeclare(
		b.Queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to declare queue %s: %w", b.Queue, err)
	}
	if err := ch.QueueBind(q.Name, b.RoutingKey, exchange, false, nil); err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to bind queue %s to %s: %w", b.Queue, exchange, err)
	}
	return q, nil
}

package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"selftracker/pkg/logger"
	"selftracker/pkg/metrics"
	"selftracker/pkg/trace"
	"selftracker/pkg/util"
)

type MessageHandler func(ctx context.Context, data json.RawMessage) error

// DeadLetterSink 接收重试耗尽或不可重试的消息
type DeadLetterSink interface {
	PublishToDLQ(ctx context.Context, routingKey string, body []byte, reason, origin string) error
}

// RetryPolicy 控制失败消息是重新入队还是进入 DLQ
type RetryPolicy struct {
	Counter    *util.RetryCounter // nil 表示可重试错误无限重投
	MaxRetries int64
	DeadLetter DeadLetterSink // nil 表示直接丢弃
}

type Consumer struct {
	channel    *amqp091.Channel
	queue      amqp091.Queue
	routingKey string
	handler    MessageHandler
	policy     RetryPolicy
	conn       *amqp091.Connection
	logger     *zap.Logger
}

// NewConsumer creates a consumer for a specific routing key.
func NewConsumer(url, queueName, routingKey string, logger *zap.Logger) (*Consumer, error) {
	conn, ch, err := dial(url, "selftracker-consumer-"+queueName)
	if err != nil {
		return nil, err
	}

	fail := func(err error) (*Consumer, error) {
		ch.Close()
		conn.Close()
		return nil, err
	}

	if _, err := declareBinding(ch, DLQExchangeName, DeadLetterBinding(routingKey)); err != nil {
		return fail(err)
	}
	q, err := declareBinding(ch, ExchangeName, Binding{Queue: queueName, RoutingKey: routingKey})
	if err != nil {
		return fail(err)
	}

	if err := ch.Qos(16, 0, false); err != nil {
		return fail(fmt.Errorf("failed to set qos: %w", err))
	}

	logger.Info("Consumer initialized",
		zap.String("routing_key", routingKey),
		zap.String("queue", queueName),
		zap.String("exchange", ExchangeName),
	)

	return &Consumer{
		conn:       conn,
		channel:    ch,
		queue:      q,
		routingKey: routingKey,
		logger:     logger,
	}, nil
}

func (c *Consumer) SetHandler(h MessageHandler) {
	c.handler = h
}

func (c *Consumer) SetRetryPolicy(p RetryPolicy) {
	c.policy = p
}

func (c *Consumer) Close() error {
	var err error
	if c.channel != nil {
		err = multierr.Append(err, c.channel.Close())
	}
	if c.conn != nil {
		err = multierr.Append(err, c.conn.Close())
	}
	return err
}

// StartConsuming blocks until ctx is cancelled or the delivery channel closes.
func (c *Consumer) StartConsuming(ctx context.Context) error {
	if c.handler == nil {
		return fmt.Errorf("consumer handler not set")
	}

	deliveries, err := c.channel.Consume(
		c.queue.Name,
		"worker",
		false, // 手动ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Consumer started consuming messages",
		zap.String("routing_key", c.routingKey),
		zap.String("queue", c.queue.Name),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			c.handle(ctx, msg)
		}
	}
}

// handle 保证每条消息都会被 ack 或 nack
func (c *Consumer) handle(parent context.Context, msg amqp091.Delivery) {
	start := time.Now()
	ctx := parent
	if traceID, ok := msg.Headers[TraceHeader].(string); ok && traceID != "" {
		ctx = trace.WithContext(ctx, traceID)
	}
	log := logger.WithTrace(ctx, c.logger).With(
		zap.String("routing_key", c.routingKey),
		zap.String("queue", c.queue.Name),
		zap.String("message_id", msg.MessageId),
	)

	defer func() {
		metrics.RecordMQConsumeLatency(c.routingKey, c.queue.Name, time.Since(start))
	}()

	// Panic 恢复：确保即使 handler panic 也能正确处理消息
	defer func() {
		if r := recover(); r != nil {
			log.Error("Handler panic recovered", zap.Any("panic", r))
			c.settle(ctx, log, msg, fmt.Errorf("handler panic: %v", r), true)
		}
	}()

	log.Debug("Received message", zap.Int("message_size", len(msg.Body)))

	if err := c.handler(ctx, msg.Body); err != nil {
		retryable, errType := util.IsRetryableError(err)
		log.Error("Handler error", zap.String("error_type", errType), zap.Bool("retryable", retryable), zap.Error(err))
		c.settle(ctx, log, msg, err, retryable)
		return
	}

	if c.policy.Counter != nil && msg.MessageId != "" {
		_ = c.policy.Counter.Reset(ctx, util.FormatRetryKey(c.queue.Name, msg.MessageId))
	}

	if err := msg.Ack(false); err != nil {
		log.Error("Failed to ack message", zap.Error(err))
		return
	}
	log.Debug("Message processed successfully")
}

// settle 决定失败消息的去向：重新入队，或进入 DLQ 后 ack
func (c *Consumer) settle(ctx context.Context, log *zap.Logger, msg amqp091.Delivery, cause error, retryable bool) {
	requeue := retryable
	if retryable && c.policy.Counter != nil && msg.MessageId != "" {
		count, err := c.policy.Counter.IncrementAndGet(ctx, util.FormatRetryKey(c.queue.Name, msg.MessageId))
		if err != nil {
			log.Warn("Retry counter unavailable, requeueing", zap.Error(err))
		} else {
			requeue = util.ShouldRetry(count, c.policy.MaxRetries, true)
			log.Info("Retry budget", zap.Int64("attempt", count), zap.Int64("max_retries", c.policy.MaxRetries))
		}
	}

	if requeue {
		if err := msg.Nack(false, true); err != nil {
			log.Error("Failed to nack message", zap.Error(err))
		}
		return
	}

	if c.policy.DeadLetter != nil {
		if err := c.policy.DeadLetter.PublishToDLQ(ctx, c.routingKey, msg.Body, cause.Error(), c.queue.Name); err != nil {
			log.Error("Failed to publish to DLQ, requeueing", zap.Error(err))
			_ = msg.Nack(false, true)
			return
		}
		log.Warn("Message moved to DLQ", zap.String("reason", cause.Error()))
	} else {
		log.Warn("Dropping message", zap.String("reason", cause.Error()))
	}

	if err := msg.Ack(false); err != nil {
		log.Error("Failed to ack message", zap.Error(err))
	}
}

package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"selftracker/pkg/trace"
	"selftracker/pkg/util"
)

type fakeAcker struct {
	acks    int
	nacks   int
	requeue bool
}

func (f *fakeAcker) Ack(uint64, bool) error { f.acks++; return nil }
func (f *fakeAcker) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacks++
	f.requeue = requeue
	return nil
}
func (f *fakeAcker) Reject(uint64, bool) error { return nil }

type fakeDLQ struct {
	bodies  [][]byte
	reasons []string
}

func (f *fakeDLQ) PublishToDLQ(_ context.Context, _ string, body []byte, reason, _ string) error {
	f.bodies = append(f.bodies, body)
	f.reasons = append(f.reasons, reason)
	return nil
}

func newTestConsumer(h MessageHandler, dlq DeadLetterSink) *Consumer {
	c := &Consumer{
		queue:      amqp091.Queue{Name: "test.q"},
		routingKey: "todo.completed",
		logger:     zap.NewNop(),
		handler:    h,
	}
	if dlq != nil {
		c.policy.DeadLetter = dlq
	}
	return c
}

func delivery(acker *fakeAcker, body string) amqp091.Delivery {
	return amqp091.Delivery{Acknowledger: acker, DeliveryTag: 1, Body: []byte(body), MessageId: "m-1"}
}

func TestConsumer_AcksOnSuccess(t *testing.T) {
	acker := &fakeAcker{}
	c := newTestConsumer(func(context.Context, json.RawMessage) error { return nil }, nil)

	c.handle(context.Background(), delivery(acker, `{}`))

	assert.Equal(t, 1, acker.acks)
	assert.Zero(t, acker.nacks)
}

func TestConsumer_RequeuesRetryableError(t *testing.T) {
	acker := &fakeAcker{}
	dlq := &fakeDLQ{}
	c := newTestConsumer(func(context.Context, json.RawMessage) error {
		return context.DeadlineExceeded
	}, dlq)

	c.handle(context.Background(), delivery(acker, `{}`))

	assert.Equal(t, 1, acker.nacks)
	assert.True(t, acker.requeue)
	assert.Empty(t, dlq.bodies)
}

func TestConsumer_DeadLettersPermanentError(t *testing.T) {
	acker := &fakeAcker{}
	dlq := &fakeDLQ{}
	c := newTestConsumer(func(context.Context, json.RawMessage) error {
		return util.Permanent(errors.New("unknown user"))
	}, dlq)

	c.handle(context.Background(), delivery(acker, `{"userId":9}`))

	assert.Equal(t, 1, acker.acks)
	assert.Zero(t, acker.nacks)
	if assert.Len(t, dlq.bodies, 1) {
		assert.JSONEq(t, `{"userId":9}`, string(dlq.bodies[0]))
		assert.Equal(t, "unknown user", dlq.reasons[0])
	}
}

func TestConsumer_DropsPermanentErrorWithoutDLQ(t *testing.T) {
	acker := &fakeAcker{}
	c := newTestConsumer(func(context.Context, json.RawMessage) error {
		return util.Permanent(errors.New("bad"))
	}, nil)

	c.handle(context.Background(), delivery(acker, `{}`))

	assert.Equal(t, 1, acker.acks)
}

func TestConsumer_RecoversPanic(t *testing.T) {
	acker := &fakeAcker{}
	c := newTestConsumer(func(context.Context, json.RawMessage) error { panic("boom") }, nil)

	assert.NotPanics(t, func() {
		c.handle(context.Background(), delivery(acker, `{}`))
	})
	assert.Equal(t, 1, acker.nacks)
	assert.True(t, acker.requeue)
}

func TestConsumer_PropagatesTraceHeader(t *testing.T) {
	acker := &fakeAcker{}
	var seen string
	c := newTestConsumer(func(ctx context.Context, _ json.RawMessage) error {
		seen = trace.FromContext(ctx)
		return nil
	}, nil)

	msg := delivery(acker, `{}`)
	msg.Headers = amqp091.Table{TraceHeader: "trace-xyz"}
	c.handle(context.Background(), msg)

	assert.Equal(t, "trace-xyz", seen)
}

func TestDeadLetterBinding(t *testing.T) {
	b := DeadLetterBinding("todo.completed")
	assert.Equal(t, Binding{Queue: "todo.completed.dlq", RoutingKey: "todo.completed"}, b)
}

package mq

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"selftracker/pkg/circuitbreaker"
)

type publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// GuardedPublisher 在 broker 连续失败时熔断，请求不再等待发布超时
type GuardedPublisher struct {
	pub     publisher
	breaker *circuitbreaker.Breaker
	logger  *zap.Logger

	mu   sync.Mutex
	last circuitbreaker.State
}

func NewGuardedPublisher(pub publisher, cfg circuitbreaker.Config, logger *zap.Logger) *GuardedPublisher {
	return &GuardedPublisher{
		pub:     pub,
		breaker: circuitbreaker.New(cfg),
		logger:  logger,
	}
}

func (g *GuardedPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	err := g.breaker.Execute(func() error {
		return g.pub.Publish(ctx, routingKey, payload)
	})
	state := g.breaker.State()
	g.mu.Lock()
	defer g.mu.Unlock()
	if state != g.last {
		g.logger.Warn("Publisher circuit state changed",
			zap.String("from", g.last.String()),
			zap.String("to", state.String()),
		)
		g.last = state
	}
	return err
}

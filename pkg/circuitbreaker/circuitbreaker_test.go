package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errBroker = errors.New("broker unreachable")

func newTestBreaker(clock *time.Time) *Breaker {
	b := New(Config{FailureThreshold: 3, SuccessThreshold: 2, Timeout: time.Minute, HalfOpenMaxRequests: 1})
	b.now = func() time.Time { return *clock }
	return b
}

func fail() error { return errBroker }
func succeed() error { return nil }

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	clock := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	b := newTestBreaker(&clock)

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.Execute(fail), errBroker)
	}
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	clock := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	b := newTestBreaker(&clock)

	_ = b.Execute(fail)
	_ = b.Execute(fail)
	assert.NoError(t, b.Execute(succeed))
	_ = b.Execute(fail)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	clock := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	b := newTestBreaker(&clock)
	for i := 0; i < 3; i++ {
		_ = b.Execute(fail)
	}

	clock = clock.Add(time.Minute)
	assert.NoError(t, b.Execute(succeed))
	assert.Equal(t, StateHalfOpen, b.State())
	assert.NoError(t, b.Execute(succeed))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	b := newTestBreaker(&clock)
	for i := 0; i < 3; i++ {
		_ = b.Execute(fail)
	}

	clock = clock.Add(time.Minute)
	assert.ErrorIs(t, b.Execute(fail), errBroker)
	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Execute(succeed), ErrOpen)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "half_open", StateHalfOpen.String())
}

package db

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestTracer(t *testing.T, threshold, took time.Duration) (*SlowQueryTracer, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.WarnLevel)
	tr := NewSlowQueryTracer(zap.New(core), threshold)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	tr.now = func() time.Time {
		calls++
		if calls == 1 {
			return base
		}
		return base.Add(took)
	}
	return tr, logs
}

func TestSlowQueryTracer_LogsSlowQuery(t *testing.T) {
	tr, logs := newTestTracer(t, 50*time.Millisecond, 120*time.Millisecond)

	ctx := tr.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT  *\n FROM todos"})
	tr.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{CommandTag: pgconn.NewCommandTag("SELECT 3")})

	entries := logs.FilterMessage("slow-query").All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "SELECT * FROM todos", entries[0].ContextMap()["sql"])
	}
}

func TestSlowQueryTracer_IgnoresFastQuery(t *testing.T) {
	tr, logs := newTestTracer(t, 50*time.Millisecond, 10*time.Millisecond)

	ctx := tr.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
	tr.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{})

	assert.Zero(t, logs.Len())
}

func TestSlowQueryTracer_DefaultThreshold(t *testing.T) {
	tr := NewSlowQueryTracer(zap.NewNop(), 0)
	assert.Equal(t, 100*time.Millisecond, tr.slowThreshold)
}

func TestOperationOf(t *testing.T) {
	assert.Equal(t, "insert", operationOf("INSERT INTO todos"))
	assert.Equal(t, "unknown", operationOf("   "))
}

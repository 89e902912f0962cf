package trace

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateTraceID_IsUUID(t *testing.T) {
	id := GenerateTraceID()
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.NotEqual(t, id, GenerateTraceID())
}

func TestContextRoundTrip(t *testing.T) {
	assert.Empty(t, FromContext(context.Background()))

	ctx := WithContext(context.Background(), "t-1")
	assert.Equal(t, "t-1", FromContext(ctx))
}

func TestFromHeaders(t *testing.T) {
	assert.Equal(t, "a", FromHeaders("a", "b"))
	assert.Equal(t, "b", FromHeaders("", "b"))
	assert.Empty(t, FromHeaders("", ""))
}

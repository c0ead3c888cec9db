package contextkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))

	ctx = WithRequestID(ctx, "req-1")
	assert.Equal(t, "req-1", GetRequestID(ctx))
}

func TestActor(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetActor(ctx))

	ctx = WithActor(ctx, "bob")
	assert.Equal(t, "bob", GetActor(ctx))
	assert.Empty(t, GetRequestID(ctx))
}

func TestWrongTypeIsIgnored(t *testing.T) {
	ctx := context.WithValue(context.Background(), RequestIDKey, 42)
	assert.Empty(t, GetRequestID(ctx))
}

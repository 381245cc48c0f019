package ristretto

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvalidConfig(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestSetIsVisibleImmediately(t *testing.T) {
	ctx := context.Background()
	p, err := New(Config{NumCounters: 1000, MaxCost: 1 << 20, BufferItems: 64, Metrics: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(ctx) })

	ok, err := p.Set(ctx, "pagestate:app", []byte("snapshot"), int64(len("snapshot")), 0)
	require.NoError(t, err)
	require.True(t, ok)

	got, ok, err := p.Get(ctx, "pagestate:app")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "snapshot", string(got))
	assert.NotNil(t, p.Metrics())

	require.NoError(t, p.Del(ctx, "pagestate:app"))
	_, ok, _ = p.Get(ctx, "pagestate:app")
	assert.False(t, ok)
}

package dedup

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/marksfx/content-agent/internal/models"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(mr.Addr(), "", 0, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisIsNewAtMostOnce(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	isNew, err := store.IsNew(ctx, models.SourceTwitter, "1234")
	require.NoError(t, err)
	assert.True(t, isNew)

	isNew, err = store.IsNew(ctx, models.SourceTwitter, "1234")
	require.NoError(t, err)
	assert.False(t, isNew)
}

func TestRedisNamespacesBySourceType(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	isNew, err := store.IsNew(ctx, models.SourceTwitter, "same-id")
	require.NoError(t, err)
	assert.True(t, isNew)

	// Same external id under a different source type is a different item.
	isNew, err = store.IsNew(ctx, models.SourceRSS, "same-id")
	require.NoError(t, err)
	assert.True(t, isNew)
}

func TestRedisFailsClosedWhenUnreachable(t *testing.T) {
	store, mr := newRedisStore(t)
	mr.Close()

	isNew, err := store.IsNew(context.Background(), models.SourceTwitter, "1234")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, isNew, "unreachable store must never report new")
}

func TestRedisConcurrentCheckersSeeOneWinner(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			isNew, err := store.IsNew(ctx, models.SourceRSS, "contested")
			if err == nil && isNew {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestMemoryStoreMirrorsRedisSemantics(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	isNew, err := store.IsNew(ctx, models.SourceTwitter, "1234")
	require.NoError(t, err)
	assert.True(t, isNew)

	isNew, err = store.IsNew(ctx, models.SourceTwitter, "1234")
	require.NoError(t, err)
	assert.False(t, isNew)

	isNew, err = store.IsNew(ctx, models.SourceRSS, "1234")
	require.NoError(t, err)
	assert.True(t, isNew)
}

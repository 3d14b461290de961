//go:build integration

package infra

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func TestRedisCache_GenerationInvalidation(t *testing.T) {
	ctx := context.Background()
	rdC, err := tcRedis.RunContainer(ctx, testcontainers.WithImage("redis:7-alpine"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })

	url, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)
	rdb, err := NewRedis(url)
	require.NoError(t, err)
	defer rdb.Close()

	metrics := NewCollector("nutrition")
	cache := NewRedisCache(rdb, time.Minute, nil, metrics)

	cache.Set(ctx, "/api/categories", []byte(`{"success":true}`))
	body, ok := cache.Get(ctx, "/api/categories")
	require.True(t, ok)
	assert.JSONEq(t, `{"success":true}`, string(body))

	cache.Invalidate(ctx)
	_, ok = cache.Get(ctx, "/api/categories")
	assert.False(t, ok)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheMisses))
}

package clientcache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	url string
}

func TestCache_GetOrCreate(t *testing.T) {
	var built atomic.Int64
	cache := New(func(url string) (*fakeClient, error) {
		built.Add(1)
		return &fakeClient{url: url}, nil
	})

	t.Run("creates_new_client", func(t *testing.T) {
		c, err := cache.GetOrCreate("https://h1:9200")
		require.NoError(t, err)
		require.NotNil(t, c)
		assert.Equal(t, "https://h1:9200", c.url)
	})

	t.Run("returns_cached_client", func(t *testing.T) {
		c1, err := cache.GetOrCreate("https://h1:9200")
		require.NoError(t, err)
		c2, err := cache.GetOrCreate("https://h1:9200")
		require.NoError(t, err)
		assert.Same(t, c1, c2) // same pointer, from cache
		assert.EqualValues(t, 1, built.Load())
	})

	t.Run("different_endpoints_different_clients", func(t *testing.T) {
		c1, _ := cache.GetOrCreate("https://h1:9200")
		c2, err := cache.GetOrCreate("https://h2:9200")
		require.NoError(t, err)
		assert.NotSame(t, c1, c2)
		assert.Equal(t, 2, cache.Len())
	})
}

func TestCache_ConcurrentFirstUse(t *testing.T) {
	var built atomic.Int64
	cache := New(func(url string) (*fakeClient, error) {
		built.Add(1)
		return &fakeClient{url: url}, nil
	})

	const callers = 32
	var wg sync.WaitGroup
	results := make([]*fakeClient, callers)
	start := make(chan struct{})

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-start
			c, err := cache.GetOrCreate("https://h1:9200")
			assert.NoError(t, err)
			results[idx] = c
		}(i)
	}
	close(start)
	wg.Wait()

	assert.EqualValues(t, 1, built.Load(), "exactly one construction")
	for i := 1; i < callers; i++ {
		assert.Same(t, results[0], results[i])
	}
}

func TestCache_FailedConstructionNotCached(t *testing.T) {
	var attempts atomic.Int64
	cache := New(func(url string) (*fakeClient, error) {
		if attempts.Add(1) == 1 {
			return nil, errors.New("handshake failed")
		}
		return &fakeClient{url: url}, nil
	})

	_, err := cache.GetOrCreate("https://h1:9200")
	require.Error(t, err)
	assert.Equal(t, 0, cache.Len())

	c, err := cache.GetOrCreate("https://h1:9200")
	require.NoError(t, err)
	assert.Equal(t, "https://h1:9200", c.url)
}

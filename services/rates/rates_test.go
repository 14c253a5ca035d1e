package rates

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockCache implements cache.CacheService for testing
type mockCache struct {
	data map[string][]byte
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (m *mockCache) Get(key string) ([]byte, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, errors.New("cache miss")
}

func (m *mockCache) Set(key string, value []byte, _ time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(key string) error {
	delete(m.data, key)
	return nil
}

type failingProvider struct{}

func (failingProvider) Rate(context.Context) (*float64, error) {
	return nil, errors.New("upstream unavailable")
}

func TestStaticProvider(t *testing.T) {
	rate, err := NewStaticProvider(26.9).Rate(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rate)
	assert.Equal(t, 26.9, *rate)

	rate, err = NewStaticProvider(0).Rate(context.Background())
	require.NoError(t, err)
	assert.Nil(t, rate)
}

func TestCachedProviderRemembersRate(t *testing.T) {
	c := newMockCache()

	rate, err := NewCachedProvider(NewStaticProvider(27.5), c).Rate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 27.5, *rate)
	assert.Equal(t, "27.5", string(c.data[LastKnownKey]))

	// A later run without a configured rate falls back to the remembered one
	rate, err = NewCachedProvider(NewStaticProvider(0), c).Rate(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rate)
	assert.Equal(t, 27.5, *rate)

	rate, err = NewCachedProvider(failingProvider{}, c).Rate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 27.5, *rate)
}

func TestCachedProviderWithoutFallback(t *testing.T) {
	rate, err := NewCachedProvider(NewStaticProvider(0), newMockCache()).Rate(context.Background())
	require.NoError(t, err)
	assert.Nil(t, rate)

	rate, err = NewCachedProvider(failingProvider{}, newMockCache()).Rate(context.Background())
	require.Error(t, err)
	assert.Nil(t, rate)

	c := newMockCache()
	c.data[LastKnownKey] = []byte("not-a-number")
	rate, err = NewCachedProvider(NewStaticProvider(0), c).Rate(context.Background())
	require.NoError(t, err)
	assert.Nil(t, rate)
}

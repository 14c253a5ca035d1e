package crawler

import (
	"context"
	"sync"
	"time"

	"buildprice/priceworker/helpers"
)

// MockCacheService implements a simple in-memory cache for testing
type MockCacheService struct {
	mu    sync.Mutex
	cache map[string][]byte
	ttl   map[string]time.Duration
}

func NewMockCacheService() *MockCacheService {
	return &MockCacheService{
		cache: make(map[string][]byte),
		ttl:   make(map[string]time.Duration),
	}
}

func (m *MockCacheService) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if val, ok := m.cache[key]; ok {
		return val, nil
	}
	return nil, &mockError{message: "cache miss"}
}

func (m *MockCacheService) Set(key string, value []byte, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = value
	m.ttl[key] = expiration
	return nil
}

func (m *MockCacheService) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, key)
	return nil
}

type mockError struct {
	message string
}

func (e *mockError) Error() string {
	return e.message
}

// mockFetcher serves a fixed page or error and counts calls
type mockFetcher struct {
	body     string
	finalURL string
	err      error
	calls    int
}

func (m *mockFetcher) Fetch(_ context.Context, url string, _ map[string]string) (*helpers.Page, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	final := m.finalURL
	if final == "" {
		final = url
	}
	return &helpers.Page{Body: []byte(m.body), FinalURL: final, StatusCode: 200}, nil
}

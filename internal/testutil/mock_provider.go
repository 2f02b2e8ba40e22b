package testutil

import (
	"context"
	"sync"

	"amlchecker/internal/core/screening"
)

// MockProvider is a mock implementation of screening.Provider for testing.
type MockProvider struct {
	SearchFunc func(ctx context.Context, query screening.Query) (*screening.ProviderResponse, error)

	mu      sync.Mutex
	queries []screening.Query
}

// Search records the query and calls the mock function if set, otherwise
// returns an empty response.
func (m *MockProvider) Search(ctx context.Context, query screening.Query) (*screening.ProviderResponse, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()

	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, query)
	}
	return &screening.ProviderResponse{Matches: []screening.RawMatch{}}, nil
}

// Queries returns every query received so far.
func (m *MockProvider) Queries() []screening.Query {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]screening.Query(nil), m.queries...)
}

// RawMatches parses JSON match objects, panicking on invalid input.
func RawMatches(objects ...string) []screening.RawMatch {
	matches := make([]screening.RawMatch, 0, len(objects))
	for _, obj := range objects {
		match, err := screening.ParseRawMatch([]byte(obj))
		if err != nil {
			panic(err)
		}
		matches = append(matches, match)
	}
	return matches
}

package screening

import "context"

// Query is what the orchestrator forwards to the provider.
type Query struct {
	Name      string
	Limit     int
	Fuzzy     bool
	Schema    *string
	Country   *string
	RequestID string
}

// ProviderResponse is the decoded upstream search response.
type ProviderResponse struct {
	Matches []RawMatch
	// Total is the provider's own hit count, nil when it did not send one.
	Total *int
}

// Provider is the upstream sanctions/PEP search service.
type Provider interface {
	Search(ctx context.Context, query Query) (*ProviderResponse, error)
}

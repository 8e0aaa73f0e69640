package agent

import "context"

// OfflineProvider fails every call. Sessions still complete through the
// deterministic fallbacks, which makes it the provider of choice for demos
// and for deployments without credentials.
type OfflineProvider struct{}

// NewOfflineProvider creates an offline provider
func NewOfflineProvider() *OfflineProvider {
	return &OfflineProvider{}
}

// Provider returns the provider name
func (p *OfflineProvider) Provider() string {
	return ProviderOffline
}

// Call always returns ErrOffline
func (p *OfflineProvider) Call(context.Context, LLMRequest) (*LLMResponse, error) {
	return nil, ErrOffline
}

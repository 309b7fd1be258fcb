package identity

import (
	"context"
	"fmt"

	"go.pilab.hu/gtgram/domain"
)

// MultiProvider fans several identity providers into one event stream so
// a single subscriber sees sign-in state transitions from every entry
// path.
type MultiProvider struct {
	providers []domain.IdentityProvider
}

// NewMultiProvider combines the given providers. Nil entries are skipped.
func NewMultiProvider(providers ...domain.IdentityProvider) *MultiProvider {
	m := &MultiProvider{}
	for _, p := range providers {
		if p != nil {
			m.providers = append(m.providers, p)
		}
	}
	return m
}

// Authenticate tries each provider in order and returns the first
// success. Credential shape decides which provider accepts it.
func (m *MultiProvider) Authenticate(ctx context.Context, cred domain.Credential) (*domain.Identity, error) {
	var lastErr error
	for _, p := range m.providers {
		identity, err := p.Authenticate(ctx, cred)
		if err == nil {
			return identity, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%w: no identity provider configured", domain.ErrInvalidCredential)
	}
	return nil, lastErr
}

// Subscribe registers the callback with every provider. The returned
// function cancels all registrations.
func (m *MultiProvider) Subscribe(fn func(*domain.Identity)) func() {
	cancels := make([]func(), 0, len(m.providers))
	for _, p := range m.providers {
		cancels = append(cancels, p.Subscribe(fn))
	}
	return func() {
		for _, cancel := range cancels {
			cancel()
		}
	}
}

// SignOut signs out of every provider, returning the first error after
// all were attempted.
func (m *MultiProvider) SignOut(ctx context.Context) error {
	var firstErr error
	for _, p := range m.providers {
		if err := p.SignOut(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ domain.IdentityProvider = (*MultiProvider)(nil)

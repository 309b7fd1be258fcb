package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"go.pilab.hu/gtgram/domain"
)

func TestGoogleProviderAuthCodeURL(t *testing.T) {
	p := NewGoogleProvider("client-id", "client-secret", "https://app.example.com/callback")

	u := p.AuthCodeURL("state-token")

	assert.Contains(t, u, "client_id=client-id")
	assert.Contains(t, u, "state=state-token")
	assert.Contains(t, u, "accounts.google.com")
}

func TestGoogleProviderRequiresCode(t *testing.T) {
	p := NewGoogleProvider("client-id", "client-secret", "https://app.example.com/callback")

	_, err := p.Authenticate(context.Background(), domain.Credential{})
	assert.ErrorIs(t, err, domain.ErrInvalidCredential)
}

func TestGoogleProviderRequiresConfiguration(t *testing.T) {
	p := NewGoogleProvider("", "", "")

	_, err := p.Authenticate(context.Background(), domain.Credential{AuthorizationCode: "abc"})
	assert.ErrorIs(t, err, domain.ErrRemoteUnavailable)
}

func TestGoogleProviderSignOut(t *testing.T) {
	p := NewGoogleProvider("client-id", "client-secret", "")

	var got []*domain.Identity
	p.Subscribe(func(id *domain.Identity) { got = append(got, id) })

	assert.NoError(t, p.SignOut(context.Background()))
	assert.Equal(t, []*domain.Identity{nil}, got)
}

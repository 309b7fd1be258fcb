package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go.pilab.hu/gtgram/domain"
)

func registerTestUser(t *testing.T, store *MemoryCredentialStore) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, store.Register(context.Background(), &StoredCredential{
		UserID:       "u1",
		Email:        "jane@example.com",
		PasswordHash: string(hash),
		DisplayName:  "Jane Doe",
		PhoneNumber:  "555",
	}))
}

func TestMemoryCredentialStoreRejectsDuplicateEmail(t *testing.T) {
	store := NewMemoryCredentialStore()
	registerTestUser(t, store)

	err := store.Register(context.Background(), &StoredCredential{
		UserID: "u2",
		Email:  "Jane@Example.com",
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateAccount)
}

func TestPasswordProviderAuthenticate(t *testing.T) {
	store := NewMemoryCredentialStore()
	registerTestUser(t, store)
	p := NewPasswordProvider(store, nil)

	var emitted *domain.Identity
	p.Subscribe(func(id *domain.Identity) { emitted = id })

	identity, err := p.Authenticate(context.Background(), domain.Credential{
		Email:    "  Jane@Example.COM ",
		Password: "secret",
	})

	require.NoError(t, err)
	assert.Equal(t, "u1", identity.ID)
	assert.Equal(t, "Jane Doe", identity.DisplayName)
	assert.Equal(t, "password", identity.Provider)
	assert.Same(t, identity, emitted)
}

func TestPasswordProviderRejections(t *testing.T) {
	store := NewMemoryCredentialStore()
	registerTestUser(t, store)
	p := NewPasswordProvider(store, nil)

	var emits int
	p.Subscribe(func(*domain.Identity) { emits++ })

	tests := []struct {
		name string
		cred domain.Credential
	}{
		{"missing email", domain.Credential{Password: "secret"}},
		{"missing password", domain.Credential{Email: "jane@example.com"}},
		{"unknown account", domain.Credential{Email: "nobody@example.com", Password: "secret"}},
		{"wrong password", domain.Credential{Email: "jane@example.com", Password: "nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Authenticate(context.Background(), tt.cred)
			assert.ErrorIs(t, err, domain.ErrInvalidCredential)
		})
	}
	assert.Zero(t, emits, "failed attempts must not emit identity changes")
}

func TestPasswordProviderSignOut(t *testing.T) {
	p := NewPasswordProvider(NewMemoryCredentialStore(), nil)

	var got []*domain.Identity
	p.Subscribe(func(id *domain.Identity) { got = append(got, id) })

	require.NoError(t, p.SignOut(context.Background()))
	assert.Equal(t, []*domain.Identity{nil}, got)
}

package identity

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"go.pilab.hu/gtgram/domain"
	"go.pilab.hu/gtgram/internal/auth"
)

// CredentialStore persists email/password login credentials.
type CredentialStore interface {
	// Lookup returns the credential registered for the email, or an
	// error wrapping domain.ErrInvalidCredential when none exists.
	Lookup(ctx context.Context, email string) (*StoredCredential, error)
	// Register stores a new credential. Registering an email that
	// already has one fails with domain.ErrDuplicateAccount.
	Register(ctx context.Context, cred *StoredCredential) error
}

// StoredCredential is a registered email/password account.
type StoredCredential struct {
	UserID       string
	Email        string
	PasswordHash string
	DisplayName  string
	PhoneNumber  string
}

// PasswordProvider is the first-party email/password identity provider.
type PasswordProvider struct {
	Broadcaster
	hasher auth.PasswordHasher
	creds  CredentialStore
}

// NewPasswordProvider creates a PasswordProvider over the given store.
func NewPasswordProvider(creds CredentialStore, hasher auth.PasswordHasher) *PasswordProvider {
	if hasher == nil {
		hasher = auth.NewBcryptPasswordHasher(0)
	}
	return &PasswordProvider{creds: creds, hasher: hasher}
}

// Authenticate verifies the email/password credential and emits the
// resulting identity to subscribers.
func (p *PasswordProvider) Authenticate(ctx context.Context, cred domain.Credential) (*domain.Identity, error) {
	email := strings.TrimSpace(strings.ToLower(cred.Email))
	if email == "" || cred.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", domain.ErrInvalidCredential)
	}

	stored, err := p.creds.Lookup(ctx, email)
	if err != nil {
		log.Warn().Err(err).Str("email", email).Msg("Password login: credential lookup failed")
		return nil, fmt.Errorf("%w: unknown account", domain.ErrInvalidCredential)
	}
	if err := p.hasher.Verify(stored.PasswordHash, cred.Password); err != nil {
		log.Warn().Str("email", email).Msg("Password login: incorrect password")
		return nil, fmt.Errorf("%w: wrong password", domain.ErrInvalidCredential)
	}

	identity := &domain.Identity{
		ID:            stored.UserID,
		Email:         stored.Email,
		PhoneNumber:   stored.PhoneNumber,
		DisplayName:   stored.DisplayName,
		EmailVerified: true,
		Provider:      "password",
	}
	p.Emit(identity)
	return identity, nil
}

// SignOut emits a signed-out state. There is no provider-side session to
// terminate for password accounts.
func (p *PasswordProvider) SignOut(_ context.Context) error {
	p.Emit(nil)
	return nil
}

var _ domain.IdentityProvider = (*PasswordProvider)(nil)

// MemoryCredentialStore is an in-memory CredentialStore for development
// and tests.
type MemoryCredentialStore struct {
	mu    sync.RWMutex
	byKey map[string]*StoredCredential
}

// NewMemoryCredentialStore creates an empty store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{byKey: make(map[string]*StoredCredential)}
}

// Register implements CredentialStore.
func (s *MemoryCredentialStore) Register(_ context.Context, cred *StoredCredential) error {
	key := strings.ToLower(cred.Email)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byKey[key]; exists {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateAccount, cred.Email)
	}
	s.byKey[key] = cred
	return nil
}

// Lookup implements CredentialStore.
func (s *MemoryCredentialStore) Lookup(_ context.Context, email string) (*StoredCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.byKey[strings.ToLower(email)]
	if !ok {
		return nil, fmt.Errorf("%w: no account for %s", domain.ErrInvalidCredential, email)
	}
	return cred, nil
}

var _ CredentialStore = (*MemoryCredentialStore)(nil)

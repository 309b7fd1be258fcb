package domain

import "context"

// ProfileRepository defines access to the remote profile store.
type ProfileRepository interface {
	// GetProfileByID returns the profile document for the given user ID,
	// or an error wrapping ErrProfileNotFound when no document exists.
	GetProfileByID(ctx context.Context, id string) (*Profile, error)
	// CreateProfile inserts a new profile document.
	CreateProfile(ctx context.Context, profile *Profile) error
	// UpdateProfile applies a partial update to an existing document.
	UpdateProfile(ctx context.Context, id string, fields map[string]any) error
}

// IdentityProvider is the external authentication service. It issues a
// stable unique identifier per account and notifies subscribers about
// sign-in state transitions.
type IdentityProvider interface {
	// Authenticate verifies the credential and returns the asserted
	// identity. A successful call also emits a sign-in-state change.
	Authenticate(ctx context.Context, cred Credential) (*Identity, error)
	// Subscribe registers a callback invoked on every sign-in state
	// transition. A nil identity means signed out. The returned function
	// cancels the subscription.
	Subscribe(fn func(*Identity)) (cancel func())
	// SignOut terminates the provider-side session and emits a nil
	// identity to subscribers.
	SignOut(ctx context.Context) error
}

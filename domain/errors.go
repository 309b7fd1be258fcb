package domain

import "errors"

var (
	// ErrInvalidSessionData marks a malformed or incomplete cached or
	// candidate session record. Recovered locally by discarding the
	// record and treating the user as logged out.
	ErrInvalidSessionData = errors.New("invalid session data")

	// ErrInvalidCredential is returned by identity providers when the
	// supplied credential does not authenticate.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrProfileNotFound means the profile document does not exist,
	// typically because the account was deleted remotely.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrRemoteUnavailable marks a network or service failure reaching
	// the identity provider or the profile store.
	ErrRemoteUnavailable = errors.New("remote service unavailable")

	// ErrProvisioningFailure means a new profile document could not be
	// created. Surfaced to user-visible flows, not silently swallowed.
	ErrProvisioningFailure = errors.New("profile provisioning failed")

	// ErrDuplicateAccount means a registration targeted an email that
	// already has a credential.
	ErrDuplicateAccount = errors.New("account already exists")
)

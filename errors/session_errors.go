package errors

import "fmt"

// SessionError is the user-facing error payload rendered by the HTTP
// surface. Description is a short-lived, human-readable message; Code is
// stable and machine-readable.
type SessionError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Stable error codes for the session flows.
const (
	InvalidCredential   = "invalid_credential"
	InvalidSessionData  = "invalid_session_data"
	RemoteUnavailable   = "remote_unavailable"
	ProfileNotFound     = "profile_not_found"
	ProvisioningFailure = "provisioning_failure"
	NotAuthenticated    = "not_authenticated"
	DuplicateAccount    = "duplicate_account"
)

// Common error constructors
func NewInvalidCredential(description string) *SessionError {
	return &SessionError{
		Code:        InvalidCredential,
		Description: description,
	}
}

func NewInvalidSessionData(description string) *SessionError {
	return &SessionError{
		Code:        InvalidSessionData,
		Description: description,
	}
}

func NewRemoteUnavailable(description string) *SessionError {
	return &SessionError{
		Code:        RemoteUnavailable,
		Description: description,
	}
}

func NewProfileNotFound(description string) *SessionError {
	return &SessionError{
		Code:        ProfileNotFound,
		Description: description,
	}
}

func NewProvisioningFailure(description string) *SessionError {
	return &SessionError{
		Code:        ProvisioningFailure,
		Description: description,
	}
}

func NewDuplicateAccount(description string) *SessionError {
	return &SessionError{
		Code:        DuplicateAccount,
		Description: description,
	}
}

func NewNotAuthenticated() *SessionError {
	return &SessionError{
		Code:        NotAuthenticated,
		Description: "no active session",
	}
}

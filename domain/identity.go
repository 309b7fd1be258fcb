package domain

// Identity is what an identity provider asserts about an authenticated
// account. It carries contact identifiers and display hints only; social
// profile fields live in the Profile document.
type Identity struct {
	ID            string
	Email         string
	PhoneNumber   string
	DisplayName   string
	AvatarURL     string
	EmailVerified bool
	// Provider names the issuing provider, e.g. "password" or "google.com".
	Provider string
}

// Credential carries whatever a concrete identity provider needs to
// authenticate. Providers read only the fields relevant to them.
type Credential struct {
	Email    string
	Password string
	// AuthorizationCode is set for OAuth code-exchange providers.
	AuthorizationCode string
}

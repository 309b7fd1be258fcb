package domain

import "time"

// Provenance records which entry path established a session.
type Provenance string

const (
	ProvenanceEmailLogin  Provenance = "email_login"
	ProvenanceGoogleLogin Provenance = "google_login"
	ProvenanceAutoAction  Provenance = "auto_action"
	ProvenanceManual      Provenance = "manual"
)

// Session is the authoritative, validated in-memory user record for the
// current browsing session. It merges identity provider claims with the
// profile document and is the only shape ever persisted to the session cache.
//
// JSON field names mirror the persisted cache payload.
type Session struct {
	ID          string     `json:"uid"`
	Email       string     `json:"email,omitempty"`
	PhoneNumber string     `json:"phoneNumber,omitempty"`
	DisplayName string     `json:"displayName,omitempty"`
	Username    string     `json:"username,omitempty"`
	FullName    string     `json:"fullName,omitempty"`
	Bio         string     `json:"bio"`
	AvatarURL   string     `json:"photoURL,omitempty"`
	Followers   []string   `json:"followers"`
	Following   []string   `json:"following"`
	Verified    bool       `json:"verified"`
	Provenance  Provenance `json:"createdVia,omitempty"`
	IssuedAt    time.Time  `json:"issuedAt"`
}

// Valid reports whether the record may be treated as authenticated.
// A session without a stable ID must never be persisted or exposed.
func (s *Session) Valid() bool {
	return s != nil && s.ID != ""
}

// Clone returns a deep copy so callers cannot mutate the reconciler's
// committed state through a returned pointer.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Followers = append([]string(nil), s.Followers...)
	out.Following = append([]string(nil), s.Following...)
	return &out
}

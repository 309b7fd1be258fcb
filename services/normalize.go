package services

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"go.pilab.hu/gtgram/domain"
	"go.pilab.hu/gtgram/internal/placeholder"
)

// UsernameFor derives a default username: the display name lowercased
// with whitespace collapsed to underscores, else the email local part,
// else a randomized fallback.
func UsernameFor(displayName, email string) string {
	if name := strings.TrimSpace(displayName); name != "" {
		return strings.ToLower(strings.Join(strings.Fields(name), "_"))
	}
	if at := strings.Index(email, "@"); at > 0 {
		return strings.ToLower(email[:at])
	}
	return "user_" + uuid.NewString()[:8]
}

// NormalizeSession validates a candidate record and returns a clean copy
// with defaults filled in. Marshaling through the typed struct is what
// strips anything non-serializable a caller may have carried along.
// Candidates without a stable ID are rejected with ErrInvalidSessionData.
func NormalizeSession(candidate *domain.Session) (*domain.Session, error) {
	if candidate == nil || candidate.ID == "" {
		return nil, fmt.Errorf("%w: missing or empty uid", domain.ErrInvalidSessionData)
	}

	clean := candidate.Clone()
	if clean.DisplayName == "" {
		clean.DisplayName = clean.FullName
	}
	if clean.FullName == "" {
		clean.FullName = clean.DisplayName
	}
	if clean.Username == "" {
		clean.Username = UsernameFor(clean.DisplayName, clean.Email)
	}
	if clean.AvatarURL == "" {
		clean.AvatarURL = placeholder.Avatar()
	}
	if clean.Followers == nil {
		clean.Followers = []string{}
	}
	if clean.Following == nil {
		clean.Following = []string{}
	}
	if clean.Provenance == "" {
		clean.Provenance = domain.ProvenanceManual
	}
	return clean, nil
}

// provenanceFromProvider maps an identity provider name to the session
// provenance recorded for logins through that provider.
func provenanceFromProvider(provider string) domain.Provenance {
	switch provider {
	case "password":
		return domain.ProvenanceEmailLogin
	case "google.com":
		return domain.ProvenanceGoogleLogin
	case "auto_action":
		return domain.ProvenanceAutoAction
	default:
		return domain.ProvenanceManual
	}
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

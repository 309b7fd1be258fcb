package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"go.pilab.hu/gtgram/domain"
	"go.pilab.hu/gtgram/internal/audit"
	"go.pilab.hu/gtgram/internal/auth"
	"go.pilab.hu/gtgram/internal/identity"
	"go.pilab.hu/gtgram/internal/placeholder"
)

// minPasswordLength is the minimum accepted password length.
const minPasswordLength = 6

// RegistrationParams carry a new-account request. Email and Password are
// required; the rest is optional profile seed data.
type RegistrationParams struct {
	Email       string
	Password    string
	FullName    string
	Username    string
	PhoneNumber string
}

// Registrar creates email/password accounts: a stored credential plus a
// profile document, then a session installed through the reconciler's
// Login with provenance email_login.
type Registrar struct {
	reconciler    *Reconciler
	profiles      domain.ProfileRepository
	creds         identity.CredentialStore
	hasher        auth.PasswordHasher
	remoteTimeout time.Duration
	now           func() time.Time
}

// NewRegistrar creates a Registrar bound to the reconciler.
func NewRegistrar(reconciler *Reconciler, profiles domain.ProfileRepository, creds identity.CredentialStore, hasher auth.PasswordHasher) *Registrar {
	if hasher == nil {
		hasher = auth.NewBcryptPasswordHasher(0)
	}
	return &Registrar{
		reconciler:    reconciler,
		profiles:      profiles,
		creds:         creds,
		hasher:        hasher,
		remoteTimeout: defaultRemoteTimeout,
		now:           time.Now,
	}
}

// Register validates the request, persists the credential and profile,
// and installs the new account's session. On success the installed
// session is returned.
func (s *Registrar) Register(ctx context.Context, params RegistrationParams) (*domain.Session, error) {
	email := strings.TrimSpace(strings.ToLower(params.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", domain.ErrInvalidCredential)
	}
	if len(params.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidCredential, minPasswordLength)
	}

	tctx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
	_, err := s.creds.Lookup(tctx, email)
	cancel()
	if err == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateAccount, email)
	}

	hash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProvisioningFailure, err)
	}

	uid := uuid.NewString()
	fullName := coalesce(strings.TrimSpace(params.FullName), "Unknown User")
	username := coalesce(strings.TrimSpace(params.Username), UsernameFor(params.FullName, email))

	profile := &domain.Profile{
		ID:          uid,
		Email:       email,
		PhoneNumber: params.PhoneNumber,
		Username:    username,
		FullName:    fullName,
		AvatarURL:   placeholder.Avatar(),
		Followers:   []string{},
		Following:   []string{},
		CreatedVia:  domain.ProvenanceEmailLogin,
		JoinedAt:    s.now(),
	}
	tctx, cancel = context.WithTimeout(ctx, s.remoteTimeout)
	err = s.profiles.CreateProfile(tctx, profile)
	cancel()
	if err != nil {
		audit.Log(audit.ActionRegister, uid, email, false, err)
		log.Error().Err(err).Str("email", email).Msg("Registration: failed to create profile")
		return nil, fmt.Errorf("%w: %v", domain.ErrProvisioningFailure, err)
	}

	cred := &identity.StoredCredential{
		UserID:       uid,
		Email:        email,
		PasswordHash: hash,
		DisplayName:  fullName,
		PhoneNumber:  params.PhoneNumber,
	}
	tctx, cancel = context.WithTimeout(ctx, s.remoteTimeout)
	err = s.creds.Register(tctx, cred)
	cancel()
	if err != nil {
		audit.Log(audit.ActionRegister, uid, email, false, err)
		// The unique email index catches registrations that raced past
		// the lookup above.
		if errors.Is(err, domain.ErrDuplicateAccount) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrProvisioningFailure, err)
	}

	sess := sessionFromProfile(profile, nil, domain.ProvenanceEmailLogin, s.now())
	if err := s.reconciler.Login(ctx, sess); err != nil {
		return nil, err
	}

	audit.Log(audit.ActionRegister, uid, email, true, nil)
	log.Info().Str("uid", uid).Str("username", username).Msg("Registration: new account created")
	return s.reconciler.Current(), nil
}

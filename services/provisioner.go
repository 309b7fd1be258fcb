package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"go.pilab.hu/gtgram/domain"
	"go.pilab.hu/gtgram/internal/audit"
	"go.pilab.hu/gtgram/internal/metrics"
	"go.pilab.hu/gtgram/internal/placeholder"
)

// AutoActionParams are the recognized query parameters of the
// deep-linking entry path. UID is required for any action; the rest are
// optional.
type AutoActionParams struct {
	UID      string
	Name     string
	Phone    string
	Redirect string
}

// ParseAutoActionParams extracts the recognized parameters from a query
// string. The second return value is false when none of uid, name or
// phone is present, which suppresses the whole flow. Unrecognized
// parameters are ignored.
func ParseAutoActionParams(q url.Values) (AutoActionParams, bool) {
	p := AutoActionParams{
		UID:      q.Get("uid"),
		Name:     q.Get("name"),
		Phone:    q.Get("phone"),
		Redirect: q.Get("redirect"),
	}
	if p.UID == "" && p.Name == "" && p.Phone == "" {
		return AutoActionParams{}, false
	}
	return p, true
}

// AutoProvisioner creates or refreshes a session from externally
// supplied parameters, provisioning a profile document when the supplied
// ID has none. All session construction goes through the reconciler's
// Login, with provenance auto_action.
type AutoProvisioner struct {
	reconciler    *Reconciler
	profiles      domain.ProfileRepository
	remoteTimeout time.Duration
	now           func() time.Time
}

// NewAutoProvisioner creates an AutoProvisioner bound to the reconciler.
func NewAutoProvisioner(reconciler *Reconciler, profiles domain.ProfileRepository) *AutoProvisioner {
	return &AutoProvisioner{
		reconciler:    reconciler,
		profiles:      profiles,
		remoteTimeout: defaultRemoteTimeout,
		now:           time.Now,
	}
}

// Process handles one auto-action request. Without a uid it reports an
// error and performs no mutation. On success the installed session is
// returned.
func (a *AutoProvisioner) Process(ctx context.Context, params AutoActionParams) (*domain.Session, error) {
	if params.UID == "" {
		return nil, fmt.Errorf("%w: uid is required for user operations", domain.ErrInvalidSessionData)
	}

	tctx, cancel := context.WithTimeout(ctx, a.remoteTimeout)
	profile, err := a.profiles.GetProfileByID(tctx, params.UID)
	cancel()

	switch {
	case errors.Is(err, domain.ErrProfileNotFound):
		profile = &domain.Profile{
			ID:          params.UID,
			FullName:    coalesce(params.Name, "Unknown User"),
			PhoneNumber: params.Phone,
			Username:    UsernameFor(params.Name, ""),
			Bio:         "",
			AvatarURL:   placeholder.Avatar(),
			Followers:   []string{},
			Following:   []string{},
			CreatedVia:  domain.ProvenanceAutoAction,
			JoinedAt:    a.now(),
		}
		tctx, cancel := context.WithTimeout(ctx, a.remoteTimeout)
		cerr := a.profiles.CreateProfile(tctx, profile)
		cancel()
		if cerr != nil {
			audit.Log(audit.ActionAutoProvision, params.UID, "auto_action", false, cerr)
			log.Error().Err(cerr).Str("uid", params.UID).Msg("Auto action: failed to create profile")
			return nil, fmt.Errorf("%w: %v", domain.ErrProvisioningFailure, cerr)
		}
		metrics.AutoProvisionedTotal.Inc()
		audit.Log(audit.ActionAutoProvision, params.UID, "auto_action", true, nil)
		log.Info().Str("uid", params.UID).Str("username", profile.Username).Msg("Auto action: new profile created")
	case err != nil:
		log.Error().Err(err).Str("uid", params.UID).Msg("Auto action: profile lookup failed")
		return nil, err
	default:
		log.Info().Str("uid", params.UID).Msg("Auto action: refreshing session from existing profile")
	}

	sess := sessionFromProfile(profile, nil, domain.ProvenanceAutoAction, a.now())
	if sess.PhoneNumber == "" {
		sess.PhoneNumber = params.Phone
	}
	if profile.CreatedVia != "" {
		sess.Provenance = profile.CreatedVia
	}

	if err := a.reconciler.Login(ctx, sess); err != nil {
		return nil, err
	}
	return a.reconciler.Current(), nil
}

package services

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"go.pilab.hu/gtgram/domain"
)

func TestParseAutoActionParams(t *testing.T) {
	t.Run("all recognized params", func(t *testing.T) {
		q, err := url.ParseQuery("uid=u2&name=Jane&phone=555&redirect=/profile/u2&utm_source=mail")
		require.NoError(t, err)

		p, ok := ParseAutoActionParams(q)

		require.True(t, ok)
		assert.Equal(t, AutoActionParams{UID: "u2", Name: "Jane", Phone: "555", Redirect: "/profile/u2"}, p)
	})

	t.Run("nothing recognized", func(t *testing.T) {
		q, err := url.ParseQuery("utm_source=mail&ref=abc")
		require.NoError(t, err)

		_, ok := ParseAutoActionParams(q)
		assert.False(t, ok)
	})

	t.Run("empty query", func(t *testing.T) {
		_, ok := ParseAutoActionParams(url.Values{})
		assert.False(t, ok)
	})
}

func TestProcessRequiresUID(t *testing.T) {
	repo := new(MockProfileRepository)
	r, _ := newTestReconciler(repo, nil)
	p := NewAutoProvisioner(r, repo)

	_, err := p.Process(context.Background(), AutoActionParams{Name: "Jane", Phone: "555"})

	require.ErrorIs(t, err, domain.ErrInvalidSessionData)
	assert.Equal(t, StateUnknown, r.StateNow())
	repo.AssertNotCalled(t, "GetProfileByID", mock.Anything, mock.Anything)
}

func TestProcessProvisionsNewProfile(t *testing.T) {
	repo := new(MockProfileRepository)
	r, c := newTestReconciler(repo, nil)
	p := NewAutoProvisioner(r, repo)
	p.now = r.now

	repo.On("GetProfileByID", mock.Anything, "u2").Return(nil, domain.ErrProfileNotFound)
	repo.On("CreateProfile", mock.Anything, mock.MatchedBy(func(pr *domain.Profile) bool {
		return pr.ID == "u2" &&
			pr.FullName == "Jane" &&
			pr.PhoneNumber == "555" &&
			pr.Username == "jane" &&
			pr.CreatedVia == domain.ProvenanceAutoAction
	})).Return(nil)

	sess, err := p.Process(context.Background(), AutoActionParams{UID: "u2", Name: "Jane", Phone: "555"})

	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "u2", sess.ID)
	assert.Equal(t, "Jane", sess.FullName)
	assert.Equal(t, "555", sess.PhoneNumber)
	assert.Equal(t, domain.ProvenanceAutoAction, sess.Provenance)
	assert.Equal(t, StateAuthenticated, r.StateNow())

	raw, err := c.Read(context.Background())
	require.NoError(t, err)
	require.NotNil(t, raw)
	assert.True(t, raw.AutoLogin)
	repo.AssertExpectations(t)
}

func TestProcessDefaultsNameWhenAbsent(t *testing.T) {
	repo := new(MockProfileRepository)
	r, _ := newTestReconciler(repo, nil)
	p := NewAutoProvisioner(r, repo)

	repo.On("GetProfileByID", mock.Anything, "u3").Return(nil, domain.ErrProfileNotFound)
	repo.On("CreateProfile", mock.Anything, mock.MatchedBy(func(pr *domain.Profile) bool {
		return pr.FullName == "Unknown User"
	})).Return(nil)

	sess, err := p.Process(context.Background(), AutoActionParams{UID: "u3"})

	require.NoError(t, err)
	assert.Equal(t, "Unknown User", sess.FullName)
	repo.AssertExpectations(t)
}

func TestProcessRefreshesExistingProfile(t *testing.T) {
	repo := new(MockProfileRepository)
	r, _ := newTestReconciler(repo, nil)
	p := NewAutoProvisioner(r, repo)

	repo.On("GetProfileByID", mock.Anything, "u2").Return(&domain.Profile{
		ID:         "u2",
		Username:   "jane_doe",
		FullName:   "Jane Doe",
		CreatedVia: domain.ProvenanceEmailLogin,
	}, nil)

	sess, err := p.Process(context.Background(), AutoActionParams{UID: "u2", Phone: "555"})

	require.NoError(t, err)
	assert.Equal(t, "jane_doe", sess.Username)
	// Phone from the request fills the gap; provenance stays the profile's.
	assert.Equal(t, "555", sess.PhoneNumber)
	assert.Equal(t, domain.ProvenanceEmailLogin, sess.Provenance)
	repo.AssertNotCalled(t, "CreateProfile", mock.Anything, mock.Anything)
}

func TestProcessCreateFailure(t *testing.T) {
	repo := new(MockProfileRepository)
	r, _ := newTestReconciler(repo, nil)
	p := NewAutoProvisioner(r, repo)

	repo.On("GetProfileByID", mock.Anything, "u2").Return(nil, domain.ErrProfileNotFound)
	repo.On("CreateProfile", mock.Anything, mock.Anything).Return(assert.AnError)

	_, err := p.Process(context.Background(), AutoActionParams{UID: "u2", Name: "Jane"})

	require.ErrorIs(t, err, domain.ErrProvisioningFailure)
	assert.Equal(t, StateUnknown, r.StateNow())
}

func TestProcessLookupFailure(t *testing.T) {
	repo := new(MockProfileRepository)
	r, _ := newTestReconciler(repo, nil)
	p := NewAutoProvisioner(r, repo)

	repo.On("GetProfileByID", mock.Anything, "u2").Return(nil, domain.ErrRemoteUnavailable)

	_, err := p.Process(context.Background(), AutoActionParams{UID: "u2"})

	require.ErrorIs(t, err, domain.ErrRemoteUnavailable)
	assert.Equal(t, StateUnknown, r.StateNow())
}

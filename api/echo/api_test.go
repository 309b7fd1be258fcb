package echo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go.pilab.hu/gtgram/cache"
	"go.pilab.hu/gtgram/domain"
	"go.pilab.hu/gtgram/internal/auth"
	"go.pilab.hu/gtgram/internal/identity"
	"go.pilab.hu/gtgram/services"
)

type stubProfileRepo struct {
	mu       sync.Mutex
	profiles map[string]*domain.Profile
}

func newStubProfileRepo() *stubProfileRepo {
	return &stubProfileRepo{profiles: make(map[string]*domain.Profile)}
}

func (s *stubProfileRepo) GetProfileByID(_ context.Context, id string) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrProfileNotFound, id)
	}
	cp := *p
	return &cp, nil
}

func (s *stubProfileRepo) CreateProfile(_ context.Context, profile *domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *profile
	s.profiles[profile.ID] = &cp
	return nil
}

func (s *stubProfileRepo) UpdateProfile(_ context.Context, id string, _ map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[id]; !ok {
		return domain.ErrProfileNotFound
	}
	return nil
}

var _ domain.ProfileRepository = (*stubProfileRepo)(nil)

type apiFixture struct {
	api        *SessionAPI
	e          *echo.Echo
	repo       *stubProfileRepo
	creds      *identity.MemoryCredentialStore
	reconciler *services.Reconciler
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	repo := newStubProfileRepo()
	creds := identity.NewMemoryCredentialStore()
	password := identity.NewPasswordProvider(creds, nil)

	reconciler := services.NewReconciler(cache.NewMemorySessionCache(time.Hour), repo, password)
	reconciler.Bootstrap(context.Background())
	t.Cleanup(reconciler.Close)

	routes := services.DefaultRoutes()
	orchestrator := services.NewRedirectOrchestrator(routes, services.NavigatorFunc(func(string) {}))
	provisioner := services.NewAutoProvisioner(reconciler, repo)
	registrar := services.NewRegistrar(reconciler, repo, creds, auth.NewBcryptPasswordHasher(bcrypt.MinCost))

	api := NewSessionAPI(reconciler, provisioner, registrar, orchestrator, password, nil, routes)
	e := echo.New()
	api.RegisterRoutes(e)

	return &apiFixture{api: api, e: e, repo: repo, creds: creds, reconciler: reconciler}
}

func (f *apiFixture) registerUser(t *testing.T, id, email, passwd string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(passwd), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, f.creds.Register(context.Background(), &identity.StoredCredential{
		UserID:       id,
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  "Jane Doe",
	}))
}

func (f *apiFixture) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func TestRegisterEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodPost, "/auth/register", `{"email":"jane@example.com","password":"secret1","fullName":"Jane Doe"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var sess domain.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "jane@example.com", sess.Email)
	assert.Equal(t, "jane_doe", sess.Username)
	assert.Equal(t, domain.ProvenanceEmailLogin, sess.Provenance)
	assert.Equal(t, services.StateAuthenticated, f.reconciler.StateNow())

	created, err := f.repo.GetProfileByID(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", created.FullName)

	// The stored credential works for a regular login afterwards.
	require.Equal(t, http.StatusNoContent, f.do(http.MethodPost, "/auth/logout", "").Code)
	rec = f.do(http.MethodPost, "/auth/login", `{"email":"jane@example.com","password":"secret1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterEndpointDuplicateEmail(t *testing.T) {
	f := newAPIFixture(t)
	f.registerUser(t, "u1", "jane@example.com", "secret1")

	rec := f.do(http.MethodPost, "/auth/register", `{"email":"jane@example.com","password":"secret1"}`)

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "duplicate_account")
}

func TestRegisterEndpointRejectsWeakInput(t *testing.T) {
	f := newAPIFixture(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing email", `{"password":"secret1"}`},
		{"malformed email", `{"email":"not-an-email","password":"secret1"}`},
		{"short password", `{"email":"jane@example.com","password":"abc"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/auth/register", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "invalid_credential")
		})
	}
	assert.NotEqual(t, services.StateAuthenticated, f.reconciler.StateNow())
}

func TestLoginEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.registerUser(t, "u1", "jane@example.com", "secret")
	require.NoError(t, f.repo.CreateProfile(context.Background(), &domain.Profile{
		ID:       "u1",
		Email:    "jane@example.com",
		Username: "jane_doe",
		FullName: "Jane Doe",
	}))

	rec := f.do(http.MethodPost, "/auth/login", `{"email":"jane@example.com","password":"secret"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var sess domain.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.Equal(t, "u1", sess.ID)
	assert.Equal(t, "jane_doe", sess.Username)
	assert.Equal(t, domain.ProvenanceEmailLogin, sess.Provenance)
	assert.Equal(t, services.StateAuthenticated, f.reconciler.StateNow())
}

func TestLoginEndpointProvisionsProfile(t *testing.T) {
	f := newAPIFixture(t)
	f.registerUser(t, "u1", "jane@example.com", "secret")

	rec := f.do(http.MethodPost, "/auth/login", `{"email":"jane@example.com","password":"secret"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	created, err := f.repo.GetProfileByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "jane_doe", created.Username)
}

func TestLoginEndpointWrongPassword(t *testing.T) {
	f := newAPIFixture(t)
	f.registerUser(t, "u1", "jane@example.com", "secret")

	rec := f.do(http.MethodPost, "/auth/login", `{"email":"jane@example.com","password":"nope"}`)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_credential")
	assert.NotEqual(t, services.StateAuthenticated, f.reconciler.StateNow())
}

func TestSessionEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodGet, "/auth/session", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_authenticated")

	require.NoError(t, f.reconciler.Login(context.Background(), &domain.Session{ID: "u1"}))

	rec = f.do(http.MethodGet, "/auth/session", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"uid":"u1"`)
}

func TestLogoutEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	require.NoError(t, f.reconciler.Login(context.Background(), &domain.Session{ID: "u1"}))

	rec := f.do(http.MethodPost, "/auth/logout", "")

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, services.StateUnauthenticated, f.reconciler.StateNow())
	rec = f.do(http.MethodGet, "/auth/session", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAutoActionEndpoint(t *testing.T) {
	t.Run("provisions and strips query", func(t *testing.T) {
		f := newAPIFixture(t)

		rec := f.do(http.MethodGet, "/auto-action?uid=u2&name=Jane&phone=555", "")

		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/home", rec.Header().Get(echo.HeaderLocation))

		created, err := f.repo.GetProfileByID(context.Background(), "u2")
		require.NoError(t, err)
		assert.Equal(t, "Jane", created.FullName)
		assert.Equal(t, "555", created.PhoneNumber)
		assert.Equal(t, services.StateAuthenticated, f.reconciler.StateNow())
	})

	t.Run("honors relative redirect target", func(t *testing.T) {
		f := newAPIFixture(t)

		rec := f.do(http.MethodGet, "/auto-action?uid=u2&redirect=%2Fprofile%2Fu2", "")

		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/profile/u2", rec.Header().Get(echo.HeaderLocation))
	})

	t.Run("rejects absolute redirect target", func(t *testing.T) {
		f := newAPIFixture(t)

		rec := f.do(http.MethodGet, "/auto-action?uid=u2&redirect=https%3A%2F%2Fevil.example", "")

		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/home", rec.Header().Get(echo.HeaderLocation))
	})

	t.Run("missing uid is an error", func(t *testing.T) {
		f := newAPIFixture(t)

		rec := f.do(http.MethodGet, "/auto-action?name=Jane&phone=555", "")

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid_session_data")
		assert.NotEqual(t, services.StateAuthenticated, f.reconciler.StateNow())
	})

	t.Run("no recognized params just redirects", func(t *testing.T) {
		f := newAPIFixture(t)

		rec := f.do(http.MethodGet, "/auto-action?utm_source=mail", "")

		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation))
	})
}

func TestRouteGuard(t *testing.T) {
	f := newAPIFixture(t)
	f.e.GET("/home", func(c echo.Context) error {
		return c.String(http.StatusOK, "home")
	}, f.api.RouteGuard)
	f.e.GET("/login", func(c echo.Context) error {
		return c.String(http.StatusOK, "login")
	}, f.api.RouteGuard)

	rec := f.do(http.MethodGet, "/home", "")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation))

	require.NoError(t, f.reconciler.Login(context.Background(), &domain.Session{ID: "u1"}))

	rec = f.do(http.MethodGet, "/home", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/login", "")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/home", rec.Header().Get(echo.HeaderLocation))
}

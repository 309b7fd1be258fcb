package echo

import (
	goerrors "errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"go.pilab.hu/gtgram/domain"
	"go.pilab.hu/gtgram/errors"
	"go.pilab.hu/gtgram/internal/identity"
	"go.pilab.hu/gtgram/services"
)

// SessionAPI struct to hold dependencies.
type SessionAPI struct {
	reconciler   *services.Reconciler
	provisioner  *services.AutoProvisioner
	registrar    *services.Registrar
	orchestrator *services.RedirectOrchestrator
	password     *identity.PasswordProvider
	google       *identity.GoogleProvider
	routes       services.Routes
}

// NewSessionAPI initializes the session API. The google provider may be
// nil when no client registration is configured.
func NewSessionAPI(
	reconciler *services.Reconciler,
	provisioner *services.AutoProvisioner,
	registrar *services.Registrar,
	orchestrator *services.RedirectOrchestrator,
	password *identity.PasswordProvider,
	google *identity.GoogleProvider,
	routes services.Routes,
) *SessionAPI {
	return &SessionAPI{
		reconciler:   reconciler,
		provisioner:  provisioner,
		registrar:    registrar,
		orchestrator: orchestrator,
		password:     password,
		google:       google,
		routes:       routes,
	}
}

// RegisterRoutes registers the session routes.
func (sa *SessionAPI) RegisterRoutes(e *echo.Echo) {
	e.POST("/auth/register", sa.RegisterHandler)
	e.POST("/auth/login", sa.LoginHandler)
	e.POST("/auth/google", sa.GoogleLoginHandler)
	e.GET("/auth/google/url", sa.GoogleAuthURLHandler)
	e.POST("/auth/logout", sa.LogoutHandler)
	e.GET("/auth/session", sa.SessionHandler)
	e.GET("/auto-action", sa.AutoActionHandler)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FullName    string `json:"fullName"`
	Username    string `json:"username"`
	PhoneNumber string `json:"phoneNumber"`
}

type googleLoginRequest struct {
	Code string `json:"code"`
}

// RegisterHandler creates a new email/password account and installs its
// session. Validation failures are the caller's fault, so invalid
// credentials map to 400 here rather than the login handler's 401.
func (sa *SessionAPI) RegisterHandler(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errors.NewInvalidCredential("Malformed request body"))
	}

	sess, err := sa.registrar.Register(c.Request().Context(), services.RegistrationParams{
		Email:       req.Email,
		Password:    req.Password,
		FullName:    req.FullName,
		Username:    req.Username,
		PhoneNumber: req.PhoneNumber,
	})
	switch {
	case err == nil:
		return c.JSON(http.StatusCreated, sess)
	case goerrors.Is(err, domain.ErrDuplicateAccount):
		return c.JSON(http.StatusConflict, errors.NewDuplicateAccount(err.Error()))
	case goerrors.Is(err, domain.ErrInvalidCredential):
		return c.JSON(http.StatusBadRequest, errors.NewInvalidCredential(err.Error()))
	default:
		return sa.errorJSON(c, err)
	}
}

// LoginHandler authenticates an email/password credential. The identity
// provider broadcasts the resulting identity, which the reconciler turns
// into a committed session before Authenticate returns.
func (sa *SessionAPI) LoginHandler(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errors.NewInvalidCredential("Malformed request body"))
	}

	if _, err := sa.password.Authenticate(c.Request().Context(), domain.Credential{
		Email:    req.Email,
		Password: req.Password,
	}); err != nil {
		return sa.errorJSON(c, err)
	}

	sess := sa.reconciler.Current()
	if sess == nil {
		// Authentication succeeded but reconciliation against the
		// profile store did not; the session was cleared.
		return c.JSON(http.StatusServiceUnavailable, errors.NewRemoteUnavailable("Session could not be established"))
	}
	return c.JSON(http.StatusOK, sess)
}

// GoogleLoginHandler exchanges an authorization code from the client-side
// Google flow for a session.
func (sa *SessionAPI) GoogleLoginHandler(c echo.Context) error {
	if sa.google == nil {
		return c.JSON(http.StatusServiceUnavailable, errors.NewRemoteUnavailable("Google sign-in is not configured"))
	}

	var req googleLoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errors.NewInvalidCredential("Malformed request body"))
	}

	if _, err := sa.google.Authenticate(c.Request().Context(), domain.Credential{
		AuthorizationCode: req.Code,
	}); err != nil {
		return sa.errorJSON(c, err)
	}

	sess := sa.reconciler.Current()
	if sess == nil {
		return c.JSON(http.StatusServiceUnavailable, errors.NewRemoteUnavailable("Session could not be established"))
	}
	return c.JSON(http.StatusOK, sess)
}

// GoogleAuthURLHandler returns the consent URL to send the user to.
func (sa *SessionAPI) GoogleAuthURLHandler(c echo.Context) error {
	if sa.google == nil {
		return c.JSON(http.StatusServiceUnavailable, errors.NewRemoteUnavailable("Google sign-in is not configured"))
	}
	return c.JSON(http.StatusOK, map[string]string{
		"url": sa.google.AuthCodeURL(c.QueryParam("state")),
	})
}

// LogoutHandler clears the session and signs out of the identity provider.
func (sa *SessionAPI) LogoutHandler(c echo.Context) error {
	sa.reconciler.Logout(c.Request().Context())
	return c.NoContent(http.StatusNoContent)
}

// SessionHandler returns the current session record.
func (sa *SessionAPI) SessionHandler(c echo.Context) error {
	sess := sa.reconciler.Current()
	if sess == nil {
		return c.JSON(http.StatusUnauthorized, errors.NewNotAuthenticated())
	}
	return c.JSON(http.StatusOK, sess)
}

// AutoActionHandler handles the deep-linking entry path. Recognized query
// parameters establish or refresh a session; the redirect strips them so
// a reload cannot replay the action.
func (sa *SessionAPI) AutoActionHandler(c echo.Context) error {
	params, ok := services.ParseAutoActionParams(c.QueryParams())
	if !ok {
		dest := sa.routes.Login
		if sa.reconciler.StateNow() == services.StateAuthenticated {
			dest = sa.routes.Home
		}
		return c.Redirect(http.StatusSeeOther, dest)
	}

	if _, err := sa.provisioner.Process(c.Request().Context(), params); err != nil {
		return sa.errorJSON(c, err)
	}

	dest := params.Redirect
	if dest == "" || !strings.HasPrefix(dest, "/") || strings.HasPrefix(dest, "//") {
		dest = sa.routes.Home
	}
	return c.Redirect(http.StatusSeeOther, dest)
}

// RouteGuard redirects requests whose path does not match the current
// authentication state, mirroring the orchestrator's decisions.
func (sa *SessionAPI) RouteGuard(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		state := sa.reconciler.StateNow()
		if dest, ok := sa.orchestrator.Destination(state, c.Request().URL.Path); ok {
			log.Debug().Str("path", c.Request().URL.Path).Str("dest", dest).Msg("Route guard redirect")
			return c.Redirect(http.StatusSeeOther, dest)
		}
		return next(c)
	}
}

// errorJSON maps domain errors onto the HTTP error payloads.
func (sa *SessionAPI) errorJSON(c echo.Context, err error) error {
	switch {
	case goerrors.Is(err, domain.ErrInvalidCredential):
		return c.JSON(http.StatusUnauthorized, errors.NewInvalidCredential(err.Error()))
	case goerrors.Is(err, domain.ErrInvalidSessionData):
		return c.JSON(http.StatusBadRequest, errors.NewInvalidSessionData(err.Error()))
	case goerrors.Is(err, domain.ErrProfileNotFound):
		return c.JSON(http.StatusNotFound, errors.NewProfileNotFound(err.Error()))
	case goerrors.Is(err, domain.ErrProvisioningFailure):
		return c.JSON(http.StatusBadGateway, errors.NewProvisioningFailure(err.Error()))
	case goerrors.Is(err, domain.ErrRemoteUnavailable):
		return c.JSON(http.StatusServiceUnavailable, errors.NewRemoteUnavailable(err.Error()))
	default:
		log.Error().Err(err).Msg("Unhandled session error")
		return c.JSON(http.StatusInternalServerError, &errors.SessionError{
			Code:        "server_error",
			Description: "An unexpected error occurred",
		})
	}
}

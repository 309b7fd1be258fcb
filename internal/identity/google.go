package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	googleOAuth2 "golang.org/x/oauth2/google"

	"go.pilab.hu/gtgram/domain"
)

// GoogleUserInfoEndpoint is overridable in tests.
var GoogleUserInfoEndpoint = "https://www.googleapis.com/oauth2/v3/userinfo"

// GoogleProvider implements domain.IdentityProvider against Google's
// OAuth2 endpoints. Authenticate expects an authorization code from the
// client-side popup/redirect flow.
type GoogleProvider struct {
	Broadcaster
	config *oauth2.Config
}

// NewGoogleProvider creates a GoogleProvider for the given client
// registration. Profile and email scopes are always requested.
func NewGoogleProvider(clientID, clientSecret, redirectURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes: []string{
				"openid",
				"https://www.googleapis.com/auth/userinfo.profile",
				"https://www.googleapis.com/auth/userinfo.email",
			},
			Endpoint: googleOAuth2.Endpoint,
		},
	}
}

// AuthCodeURL returns the URL to send the user to for consent.
func (g *GoogleProvider) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Authenticate exchanges the authorization code, fetches the userinfo
// document, and emits the resulting identity to subscribers.
func (g *GoogleProvider) Authenticate(ctx context.Context, cred domain.Credential) (*domain.Identity, error) {
	if cred.AuthorizationCode == "" {
		return nil, fmt.Errorf("%w: authorization code is required", domain.ErrInvalidCredential)
	}
	if g.config.ClientID == "" || g.config.ClientSecret == "" {
		return nil, fmt.Errorf("%w: google provider is not configured", domain.ErrRemoteUnavailable)
	}

	token, err := g.config.Exchange(ctx, cred.AuthorizationCode)
	if err != nil {
		return nil, fmt.Errorf("%w: code exchange failed: %v", domain.ErrInvalidCredential, err)
	}

	identity, err := g.fetchUserInfo(ctx, token)
	if err != nil {
		return nil, err
	}
	g.Emit(identity)
	return identity, nil
}

func (g *GoogleProvider) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*domain.Identity, error) {
	client := g.config.Client(ctx, token)
	resp, err := client.Get(GoogleUserInfoEndpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get user info from Google: %v", domain.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: userinfo status %d, body: %s",
			domain.ErrRemoteUnavailable, resp.StatusCode, string(bodyBytes))
	}

	var rawUserInfo struct {
		Sub           string `json:"sub"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rawUserInfo); err != nil {
		return nil, fmt.Errorf("%w: failed to decode Google user info: %v", domain.ErrRemoteUnavailable, err)
	}
	if rawUserInfo.Sub == "" {
		return nil, fmt.Errorf("%w: Google user info missing subject", domain.ErrInvalidSessionData)
	}

	return &domain.Identity{
		ID:            rawUserInfo.Sub,
		Email:         rawUserInfo.Email,
		DisplayName:   rawUserInfo.Name,
		AvatarURL:     rawUserInfo.Picture,
		EmailVerified: rawUserInfo.EmailVerified,
		Provider:      "google.com",
	}, nil
}

// SignOut emits a signed-out state. Token revocation against Google is
// the client's concern; the server holds no long-lived Google tokens.
func (g *GoogleProvider) SignOut(_ context.Context) error {
	g.Emit(nil)
	return nil
}

var _ domain.IdentityProvider = (*GoogleProvider)(nil)

// Package client is a thin HTTP client for the gtgram session API, used
// by the gtgramctl command line tool.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.pilab.hu/gtgram/domain"
	"go.pilab.hu/gtgram/errors"
)

// Client talks to a running gtgram session server.
type Client struct {
	base string
	http *http.Client
}

// New creates a Client for the given base URL, e.g. http://localhost:8080.
func New(base string) *Client {
	return &Client{
		base: base,
		http: &http.Client{
			Timeout: 15 * time.Second,
			// Redirects carry the auto-action result; the caller wants
			// the Location header, not the followed page.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Register creates a new email/password account and logs it in.
func (c *Client) Register(ctx context.Context, email, password, fullName string) (*domain.Session, error) {
	body, err := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
		"fullName": fullName,
	})
	if err != nil {
		return nil, err
	}
	return c.sessionRequest(ctx, http.MethodPost, "/auth/register", body, http.StatusCreated)
}

// Login authenticates with an email/password credential.
func (c *Client) Login(ctx context.Context, email, password string) (*domain.Session, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}
	return c.sessionRequest(ctx, http.MethodPost, "/auth/login", body, http.StatusOK)
}

// Logout terminates the current session.
func (c *Client) Logout(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/auth/logout", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return decodeError(resp)
	}
	return nil
}

// Session returns the current session record.
func (c *Client) Session(ctx context.Context) (*domain.Session, error) {
	return c.sessionRequest(ctx, http.MethodGet, "/auth/session", nil, http.StatusOK)
}

// AutoAction triggers the deep-linking flow and returns the route the
// server redirects to.
func (c *Client) AutoAction(ctx context.Context, uid, name, phone string) (string, error) {
	q := url.Values{}
	if uid != "" {
		q.Set("uid", uid)
	}
	if name != "" {
		q.Set("name", name)
	}
	if phone != "" {
		q.Set("phone", phone)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/auto-action?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		return "", decodeError(resp)
	}
	return resp.Header.Get("Location"), nil
}

func (c *Client) sessionRequest(ctx context.Context, method, path string, body []byte, wantStatus int) (*domain.Session, error) {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return nil, decodeError(resp)
	}
	var sess domain.Session
	if err := json.NewDecoder(resp.Body).Decode(&sess); err != nil {
		return nil, fmt.Errorf("failed to decode session response: %w", err)
	}
	return &sess, nil
}

func decodeError(resp *http.Response) error {
	var sessionErr errors.SessionError
	if err := json.NewDecoder(resp.Body).Decode(&sessionErr); err != nil || sessionErr.Code == "" {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	return &sessionErr
}

// Package auth exchanges companion client credentials for identities. The
// actual identity provider is an external collaborator.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Identity is an authenticated user.
type Identity struct {
	ID     string `json:"id"`
	Name   string `json:"username"`
	Avatar string `json:"avatar"`
}

// An Authenticator exchanges a client supplied credential for an identity
// and a refresh credential the client may use to re-authenticate later.
type Authenticator interface {
	Exchange(ctx context.Context, credential string) (Identity, string, error)
}

// HTTPAuthenticator implements the credential exchange against an OAuth
// style HTTP endpoint pair: a token exchange followed by an identity fetch.
type HTTPAuthenticator struct {
	TokenURL     string
	IdentityURL  string
	ClientID     string
	ClientSecret string
	RedirectURI  string

	// Client defaults to http.DefaultClient.
	Client *http.Client
}

func (a *HTTPAuthenticator) httpClient() *http.Client {
	if a.Client != nil {
		return a.Client
	}
	return http.DefaultClient
}

func (a *HTTPAuthenticator) Exchange(ctx context.Context, credential string) (Identity, string, error) {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {credential},
		"client_id":     {a.ClientID},
		"client_secret": {a.ClientSecret},
		"redirect_uri":  {a.RedirectURI},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Identity{}, "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res, err := a.httpClient().Do(req)
	if err != nil {
		return Identity{}, "", fmt.Errorf("token exchange: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return Identity{}, "", fmt.Errorf("token exchange: unexpected status %s", res.Status)
	}
	var token struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(res.Body).Decode(&token); err != nil {
		return Identity{}, "", fmt.Errorf("token exchange: %w", err)
	}

	identity, err := a.fetchIdentity(ctx, token.AccessToken)
	if err != nil {
		return Identity{}, "", err
	}
	return identity, token.RefreshToken, nil
}

func (a *HTTPAuthenticator) fetchIdentity(ctx context.Context, accessToken string) (Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.IdentityURL, nil)
	if err != nil {
		return Identity{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	res, err := a.httpClient().Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("identity lookup: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return Identity{}, fmt.Errorf("identity lookup: unexpected status %s", res.Status)
	}
	var identity Identity
	if err := json.NewDecoder(res.Body).Decode(&identity); err != nil {
		return Identity{}, fmt.Errorf("identity lookup: %w", err)
	}
	return identity, nil
}

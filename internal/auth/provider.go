package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// GoogleUserInfoURL is the OpenID Connect userinfo endpoint
const GoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// Provider runs the identity provider's consent flow
type Provider interface {
	// AuthCodeURL is where the browser is sent to sign in
	AuthCodeURL(state string) string
	// Exchange turns the callback code into a user
	Exchange(ctx context.Context, code string) (*User, error)
}

// GoogleProvider signs users in with Google OAuth2
type GoogleProvider struct {
	config      *oauth2.Config
	userInfoURL string
}

// NewGoogleProvider creates a provider redirecting back to redirectURL
func NewGoogleProvider(clientID, clientSecret, redirectURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     endpoints.Google,
			Scopes:       []string{"openid", "profile", "email"},
		},
		userInfoURL: GoogleUserInfoURL,
	}
}

// WithEndpoint points the provider at another OAuth2 server
func (p *GoogleProvider) WithEndpoint(endpoint oauth2.Endpoint, userInfoURL string) *GoogleProvider {
	p.config.Endpoint = endpoint
	p.userInfoURL = userInfoURL
	return p
}

// AuthCodeURL implements Provider
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// Exchange implements Provider
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*User, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, &Error{Op: "exchange", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, &Error{Op: "userinfo", Err: err}
	}

	resp, err := p.config.Client(ctx, token).Do(req)
	if err != nil {
		return nil, &Error{Op: "userinfo", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Op: "userinfo", Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	var info struct {
		Sub     string `json:"sub"`
		Name    string `json:"name"`
		Email   string `json:"email"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, &Error{Op: "userinfo", Err: err}
	}
	if info.Sub == "" {
		return nil, &Error{Op: "userinfo", Err: fmt.Errorf("missing subject")}
	}

	log.Info().Str("uid", info.Sub).Msg("👤 User signed in")
	return &User{UID: info.Sub, Name: info.Name, Email: info.Email, Picture: info.Picture}, nil
}

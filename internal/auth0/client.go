// Package auth0 implements the identity-provider REST client: authorization
// code exchange and profile lookup against the provider's OAuth endpoints.
package auth0

import (
	"context"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/eduramiba/auth0-pkce-login/internal/auth0/pkce"
	"github.com/eduramiba/auth0-pkce-login/internal/common/restclient"
	"github.com/eduramiba/auth0-pkce-login/internal/common/resterror"
	"github.com/eduramiba/auth0-pkce-login/pkg/types"
)

// TokenResponse is the provider's token-exchange response. It is transient:
// it only exists to build a Session.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Client talks to one identity-provider tenant.
type Client struct {
	baseURL  string
	clientID string
	consumer *restclient.Consumer
}

// NewClient creates a client for the given provider domain and application
// client ID.
func NewClient(domain, clientID string) (*Client, error) {
	baseURL := pkce.NormalizeDomain(domain)
	consumer, err := restclient.New(baseURL, nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL:  baseURL,
		clientID: clientID,
		consumer: consumer,
	}, nil
}

// ExchangeCode exchanges an authorization code and its PKCE verifier for
// tokens. Retry, timeout, and error classification come from the underlying
// consumer unmodified.
func (c *Client) ExchangeCode(ctx context.Context, code, verifier, redirectURI string) (*TokenResponse, *resterror.Error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", c.clientID)
	form.Set("code_verifier", verifier)
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)

	var tokens TokenResponse
	if apiErr := c.consumer.PostForm(ctx, "/oauth/token", form, &tokens); apiErr != nil {
		log.Debug().Str("code", apiErr.Code()).Msg("token exchange failed")
		return nil, apiErr
	}
	return &tokens, nil
}

// UserInfo fetches the user's profile with a bearer credential built from
// the access token. A fresh consumer carries the credential so it never
// leaks into unauthenticated calls.
func (c *Client) UserInfo(ctx context.Context, accessToken string) (*types.Profile, *resterror.Error) {
	consumer, err := restclient.New(c.baseURL, restclient.BearerCredentials(accessToken))
	if err != nil {
		return nil, resterror.Transport(err)
	}
	defer consumer.Close()

	var profile types.Profile
	if apiErr := consumer.Get(ctx, "/userinfo", &profile); apiErr != nil {
		return nil, apiErr
	}
	return &profile, nil
}

// SetTimeout adjusts all timeouts on the underlying consumer.
func (c *Client) SetTimeout(d time.Duration) {
	c.consumer.SetTimeout(d)
}

// SetRetryPolicy replaces the retry policy on the underlying consumer.
func (c *Client) SetRetryPolicy(p restclient.RetryPolicy) {
	c.consumer.SetRetryPolicy(p)
}

// Close releases the underlying transport.
func (c *Client) Close() {
	c.consumer.Close()
}

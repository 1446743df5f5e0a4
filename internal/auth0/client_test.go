package auth0

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExchangeCode(t *testing.T) {
	var gotForm url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/oauth/token", r.URL.Path)
		require.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		gotForm, err = url.ParseQuery(string(body))
		require.NoError(t, err)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","id_token":"idt-1","token_type":"Bearer","expires_in":86400}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "client-123")
	require.NoError(t, err)
	defer client.Close()

	tokens, apiErr := client.ExchangeCode(context.Background(), "code-xyz", "verifier-abc", "https://idp.example/mobile")
	require.Nil(t, apiErr)
	require.NotNil(t, tokens)

	assert.Equal(t, "at-1", tokens.AccessToken)
	assert.Equal(t, "idt-1", tokens.IDToken)
	assert.Equal(t, "Bearer", tokens.TokenType)
	assert.Equal(t, int64(86400), tokens.ExpiresIn)

	assert.Equal(t, "authorization_code", gotForm.Get("grant_type"))
	assert.Equal(t, "client-123", gotForm.Get("client_id"))
	assert.Equal(t, "verifier-abc", gotForm.Get("code_verifier"))
	assert.Equal(t, "code-xyz", gotForm.Get("code"))
	assert.Equal(t, "https://idp.example/mobile", gotForm.Get("redirect_uri"))
}

func TestExchangeCodeRejected(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errorCode":"invalid_grant","messages":["Invalid authorization code"]}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "client-123")
	require.NoError(t, err)
	defer client.Close()

	tokens, apiErr := client.ExchangeCode(context.Background(), "stale", "v", "https://idp.example/mobile")
	assert.Nil(t, tokens)
	require.NotNil(t, apiErr)
	assert.Equal(t, "REST-API-STATUS-400", apiErr.Code())
	assert.Contains(t, apiErr.FriendlyMessage(), "Invalid authorization code")

	// A rejected exchange is terminal, never retried.
	assert.Equal(t, 1, calls)
}

func TestUserInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/userinfo", r.URL.Path)
		require.Equal(t, "Bearer at-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"Jane Doe","email":"jane@example.com","picture":"https://cdn.example/j.png"}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "client-123")
	require.NoError(t, err)
	defer client.Close()

	profile, apiErr := client.UserInfo(context.Background(), "at-1")
	require.Nil(t, apiErr)
	require.NotNil(t, profile)
	assert.Equal(t, "Jane Doe", profile.Name)
	assert.Equal(t, "jane@example.com", profile.Email)
	assert.Equal(t, "https://cdn.example/j.png", profile.Picture)
}

func TestNewClientNormalizesDomain(t *testing.T) {
	client, err := NewClient("tenant.eu.auth0.com", "c")
	require.NoError(t, err)
	defer client.Close()
	assert.Equal(t, "https://tenant.eu.auth0.com", client.baseURL)
}

// Package pkce builds the parameters for an OAuth2 Authorization Code flow
// with Proof Key for Code Exchange (RFC 7636). A Flow is created once per
// login attempt and discarded when the attempt completes; it is never
// persisted.
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"
	"net/url"
	"strings"
)

// Scope is the fixed set of scopes requested during authorization.
const Scope = "openid profile email"

const (
	verifierBytes = 32 // 256 bits of entropy
	stateLength   = 8
)

const stateCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Flow holds the per-attempt PKCE parameters and the assembled authorization
// URL. All fields are immutable after creation.
type Flow struct {
	// Verifier is the high-entropy client-held secret.
	Verifier string
	// Challenge is the URL-safe base64 SHA-256 digest of the verifier.
	Challenge string
	// State binds the authorize redirect to this attempt (anti-CSRF).
	State string
	// AuthorizeURL is the fully assembled provider authorization URL.
	AuthorizeURL string
}

// New creates the PKCE parameters for one login attempt. domain may be a
// bare host (e.g. "tenant.eu.auth0.com") or a full https URL.
func New(clientID, redirectURI, domain string) (*Flow, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, fmt.Errorf("client ID is required")
	}
	if strings.TrimSpace(redirectURI) == "" {
		return nil, fmt.Errorf("redirect URI is required")
	}
	if strings.TrimSpace(domain) == "" {
		return nil, fmt.Errorf("provider domain is required")
	}

	verifier, err := generateVerifier()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code verifier: %w", err)
	}
	state, err := randomState(stateLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate state: %w", err)
	}
	challenge := Challenge(verifier)

	return &Flow{
		Verifier:     verifier,
		Challenge:    challenge,
		State:        state,
		AuthorizeURL: authorizeURL(domain, clientID, challenge, state, redirectURI),
	}, nil
}

// Challenge derives the S256 code challenge from a verifier: the URL-safe
// base64 encoding, without padding, of the SHA-256 digest of the ASCII
// verifier.
func Challenge(verifier string) string {
	hashed := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hashed[:])
}

// generateVerifier creates a high-entropy cryptographically random code
// verifier.
func generateVerifier() (string, error) {
	b := make([]byte, verifierBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// randomState creates a random alphanumeric state token. The state only
// binds the redirect to the attempt; it is not security-critical entropy,
// but it still comes from crypto/rand.
func randomState(length int) (string, error) {
	charsetLen := big.NewInt(int64(len(stateCharset)))
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, charsetLen)
		if err != nil {
			return "", err
		}
		result[i] = stateCharset[n.Int64()]
	}
	return string(result), nil
}

// authorizeURL assembles the provider authorization endpoint URL.
func authorizeURL(domain, clientID, challenge, state, redirectURI string) string {
	base := NormalizeDomain(domain)

	q := url.Values{}
	q.Set("client_id", clientID)
	q.Set("response_type", "code")
	q.Set("code_challenge_method", "S256")
	q.Set("code_challenge", challenge)
	q.Set("scope", Scope)
	q.Set("state", state)
	q.Set("redirect_uri", redirectURI)

	return base + "/authorize?" + q.Encode()
}

// NormalizeDomain ensures the provider domain is an https base URL without a
// trailing slash.
func NormalizeDomain(domain string) string {
	domain = strings.TrimRight(strings.TrimSpace(domain), "/")
	if !strings.HasPrefix(domain, "http://") && !strings.HasPrefix(domain, "https://") {
		domain = "https://" + domain
	}
	return domain
}

// Package restclient provides a resilient JSON-over-HTTP consumer for REST
// APIs. It supports configurable timeouts, pluggable header injection, an
// optional credential header, and a retry policy that distinguishes
// retryable from terminal failures using the resterror taxonomy.
package restclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"

	"github.com/eduramiba/auth0-pkce-login/internal/common/resterror"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Default timeouts for new consumers.
const (
	DefaultConnectTimeout = 30 * time.Second
	DefaultReadTimeout    = 30 * time.Second
	DefaultWriteTimeout   = 30 * time.Second
)

const defaultUserAgent = "auth0-pkce-login"

// Credentials is a shared-secret credential injected as a request header.
type Credentials struct {
	Header string
	Secret string
}

// BearerCredentials builds an Authorization header credential from a token.
// Returns nil for a blank token.
func BearerCredentials(token string) *Credentials {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	return &Credentials{
		Header: "Authorization",
		Secret: "Bearer " + token,
	}
}

// String renders the credentials with the secret partially redacted.
func (c *Credentials) String() string {
	secret := c.Secret
	if len(secret) > 12 {
		secret = secret[:6] + "..." + secret[len(secret)-3:]
	}
	return fmt.Sprintf("Credentials{header=%s, secret=%s}", c.Header, secret)
}

// HeadersProvider contributes extra headers to every request. A nil map and
// entries with an empty key or value are skipped.
type HeadersProvider interface {
	ExtraHeaders() map[string]string
}

// HeadersProviderFunc adapts a function to the HeadersProvider interface.
type HeadersProviderFunc func() map[string]string

// ExtraHeaders implements HeadersProvider.
func (f HeadersProviderFunc) ExtraHeaders() map[string]string { return f() }

// Consumer is a client for making JSON requests against a single base URL.
// Verb methods all go through one retry-wrapped execution path. The
// underlying transport is built lazily once and shared for concurrent reuse;
// Close drops it so the next call rebuilds.
type Consumer struct {
	baseURL   *url.URL
	creds     *Credentials
	userAgent string

	mu             sync.Mutex
	providers      []HeadersProvider
	connectTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	policy         RetryPolicy
	client         *http.Client
}

// New creates a consumer for the given base URL. creds may be nil when no
// credential header is needed.
func New(baseURL string, creds *Credentials) (*Consumer, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base URL must be absolute: %q", baseURL)
	}
	return &Consumer{
		baseURL:        u,
		creds:          creds,
		userAgent:      defaultUserAgent,
		connectTimeout: DefaultConnectTimeout,
		readTimeout:    DefaultReadTimeout,
		writeTimeout:   DefaultWriteTimeout,
		policy:         DefaultRetryPolicy(),
	}, nil
}

// SetTimeout sets the connect, read, and write timeouts to the same value.
func (c *Consumer) SetTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectTimeout = d
	c.readTimeout = d
	c.writeTimeout = d
	c.client = nil
}

// SetConnectTimeout sets the connection timeout.
func (c *Consumer) SetConnectTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectTimeout = d
	c.client = nil
}

// SetReadTimeout sets the response read timeout.
func (c *Consumer) SetReadTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readTimeout = d
	c.client = nil
}

// SetWriteTimeout sets the request write timeout. net/http has no per-write
// deadline, so this participates in the overall request deadline.
func (c *Consumer) SetWriteTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeTimeout = d
	c.client = nil
}

// AddHeadersProvider registers an extra-headers provider. Nil providers are
// ignored.
func (c *Consumer) AddHeadersProvider(p HeadersProvider) {
	if p == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.providers = append(c.providers, p)
}

// SetRetryPolicy replaces the retry policy for subsequent calls.
func (c *Consumer) SetRetryPolicy(p RetryPolicy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.policy = p
}

// Close invalidates the underlying transport. The consumer remains usable;
// the next call reconstructs the client.
func (c *Consumer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.client = nil
}

// Get performs a GET request and decodes the JSON response into out. A nil
// out discards the body. A 404 yields a nil result rather than an error.
func (c *Consumer) Get(ctx context.Context, path string, out any) *resterror.Error {
	return c.execute(ctx, http.MethodGet, path, nil, "", out)
}

// Post performs a POST request with a JSON-encoded body.
func (c *Consumer) Post(ctx context.Context, path string, body any, out any) *resterror.Error {
	data, err := marshalBody(body)
	if err != nil {
		return resterror.Contract(fmt.Sprintf("unable to encode request body: %v", err))
	}
	return c.execute(ctx, http.MethodPost, path, data, "application/json", out)
}

// PostForm performs a POST request with a form-encoded body.
func (c *Consumer) PostForm(ctx context.Context, path string, form url.Values, out any) *resterror.Error {
	return c.execute(ctx, http.MethodPost, path, []byte(form.Encode()), "application/x-www-form-urlencoded", out)
}

// Put performs a PUT request with a JSON-encoded body.
func (c *Consumer) Put(ctx context.Context, path string, body any, out any) *resterror.Error {
	data, err := marshalBody(body)
	if err != nil {
		return resterror.Contract(fmt.Sprintf("unable to encode request body: %v", err))
	}
	return c.execute(ctx, http.MethodPut, path, data, "application/json", out)
}

// Delete performs a DELETE request.
func (c *Consumer) Delete(ctx context.Context, path string, out any) *resterror.Error {
	return c.execute(ctx, http.MethodDelete, path, nil, "", out)
}

func marshalBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	return json.Marshal(body)
}

// execute runs one request through the retry policy. Terminal failures stop
// the loop immediately; everything else is re-attempted on the configured
// delay schedule.
func (c *Consumer) execute(ctx context.Context, method, path string, body []byte, contentType string, out any) *resterror.Error {
	u := c.resolve(path)
	policy := c.retryPolicy()
	requestID := uuid.NewString()

	var apiErr *resterror.Error
	err := retry.Do(
		func() error {
			apiErr = c.attempt(ctx, method, u, body, contentType, out, requestID)
			if apiErr == nil {
				return nil
			}
			if !policy.shouldRetry(apiErr) {
				return retry.Unrecoverable(apiErr)
			}
			return apiErr
		},
		retry.Attempts(policy.Attempts),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return policy.DelayFor(n)
		}),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().
				Str("request_id", requestID).
				Str("method", method).
				Str("url", u.String()).
				Uint("attempt", n+1).
				Err(err).
				Msg("request failed, will retry")
		}),
	)
	if err == nil {
		return nil
	}
	if apiErr != nil {
		log.Error().
			Str("request_id", requestID).
			Str("code", apiErr.Code()).
			Msg("irrecoverable error doing request")
		return apiErr
	}
	// Context cancellation before the first attempt completed.
	return resterror.Transport(err)
}

// attempt performs a single request and classifies its outcome.
func (c *Consumer) attempt(ctx context.Context, method string, u *url.URL, body []byte, contentType string, out any, requestID string) *resterror.Error {
	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(body))
	if err != nil {
		return resterror.Transport(err)
	}

	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for _, p := range c.headerProviders() {
		for k, v := range p.ExtraHeaders() {
			if k == "" || v == "" {
				continue
			}
			req.Header.Set(k, v)
		}
	}
	req.Header.Set("User-Agent", c.userAgent)
	if c.creds != nil && strings.TrimSpace(c.creds.Header) != "" && strings.TrimSpace(c.creds.Secret) != "" {
		req.Header.Set(strings.TrimSpace(c.creds.Header), strings.TrimSpace(c.creds.Secret))
	}

	t0 := time.Now()
	resp, err := c.httpClient().Do(req)
	elapsed := time.Since(t0)
	if err != nil {
		log.Debug().
			Str("request_id", requestID).
			Str("method", method).
			Str("url", u.String()).
			Dur("elapsed", elapsed).
			Err(err).
			Msg("http request failed")
		return resterror.Transport(err)
	}
	defer resp.Body.Close()

	log.Debug().
		Str("request_id", requestID).
		Str("method", method).
		Str("url", u.String()).
		Int("status", resp.StatusCode).
		Dur("elapsed", elapsed).
		Msg("http request")

	return parseResponse(resp, method, u.String(), out)
}

// parseResponse maps a response to a decoded value or a classified error.
// 204 and an empty body yield a nil result. A 404 yields nil for read-style
// verbs but is a protocol error for mutating verbs, since a 404 on a
// mutating call signals a real addressing error.
func parseResponse(resp *http.Response, method, uri string, out any) *resterror.Error {
	isReadVerb := method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resterror.Transport(err)
	}

	if resp.StatusCode == http.StatusNotFound && isReadVerb {
		return nil
	}
	if resp.StatusCode == http.StatusNotImplemented {
		message := strings.TrimSpace(string(body))
		if message == "" {
			message = "NO MESSAGE"
		}
		return resterror.Unsupported(uri, message)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resterror.Protocol(resp.StatusCode, method, uri, body)
	}

	if out == nil || len(body) == 0 {
		return nil
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if !strings.Contains(strings.ToLower(mediaType), "json") {
		return resterror.Contract(fmt.Sprintf(
			"expected JSON response media type but got %q. Content: %s", contentType, string(body)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return resterror.Contract(fmt.Sprintf("unable to decode JSON response: %v", err))
	}
	return nil
}

// resolve joins the base URL with the request path, preserving any query
// string already present on the path.
func (c *Consumer) resolve(path string) *url.URL {
	ref, err := url.Parse(path)
	if err != nil {
		ref = &url.URL{Path: path}
	}
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(ref.Path, "/")
	u.RawQuery = ref.RawQuery
	return &u
}

func (c *Consumer) headerProviders() []HeadersProvider {
	c.mu.Lock()
	defer c.mu.Unlock()
	providers := make([]HeadersProvider, len(c.providers))
	copy(providers, c.providers)
	return providers
}

func (c *Consumer) retryPolicy() RetryPolicy {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.policy
}

// httpClient returns the shared transport, constructing it on first use.
// Construction is guarded so concurrent callers never race on it.
func (c *Consumer) httpClient() *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		dialer := &net.Dialer{Timeout: c.connectTimeout}
		c.client = &http.Client{
			Transport: &http.Transport{
				DialContext:           dialer.DialContext,
				TLSHandshakeTimeout:   c.connectTimeout,
				ResponseHeaderTimeout: c.readTimeout,
			},
			Timeout: c.connectTimeout + c.readTimeout + c.writeTimeout,
		}
	}
	return c.client
}

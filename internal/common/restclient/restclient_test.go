package restclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduramiba/auth0-pkce-login/internal/common/resterror"
)

// fastPolicy keeps the default classification but removes real sleeps.
func fastPolicy() RetryPolicy {
	p := DefaultRetryPolicy()
	p.Delays = []time.Duration{time.Millisecond}
	return p
}

func newTestConsumer(t *testing.T, handler http.Handler) (*Consumer, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := New(server.URL, nil)
	require.NoError(t, err)
	c.SetRetryPolicy(fastPolicy())
	return c, server
}

func TestGetDecodesJSON(t *testing.T) {
	c, _ := newTestConsumer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/things/1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"thing one"}`))
	}))

	var out struct {
		Name string `json:"name"`
	}
	apiErr := c.Get(context.Background(), "/things/1", &out)
	require.Nil(t, apiErr)
	assert.Equal(t, "thing one", out.Name)
}

func TestRetryOnServerErrors(t *testing.T) {
	var attempts atomic.Int32
	c, _ := newTestConsumer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	apiErr := c.Get(context.Background(), "/things", nil)
	require.NotNil(t, apiErr)
	assert.Equal(t, int32(3), attempts.Load(), "must exhaust all attempts on 503")
	assert.Equal(t, resterror.KindProtocol, apiErr.Kind)
	assert.Equal(t, "REST-API-STATUS-503", apiErr.Code())
}

func TestRetryRecoversMidway(t *testing.T) {
	var attempts atomic.Int32
	c, _ := newTestConsumer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))

	var out map[string]bool
	apiErr := c.Get(context.Background(), "/things", &out)
	require.Nil(t, apiErr)
	assert.Equal(t, int32(3), attempts.Load())
	assert.True(t, out["ok"])
}

func TestNoRetryOnTerminalStatuses(t *testing.T) {
	for _, status := range []int{300, 399, 400, 401, 403, 405, 406, 415} {
		var attempts atomic.Int32
		c, _ := newTestConsumer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			w.WriteHeader(status)
		}))

		apiErr := c.Post(context.Background(), "/things", map[string]string{"a": "b"}, nil)
		require.NotNil(t, apiErr, "status %d", status)
		assert.Equal(t, int32(1), attempts.Load(), "status %d must not be retried", status)
		assert.Equal(t, status, apiErr.Status)
	}
}

func TestNoContent(t *testing.T) {
	c, _ := newTestConsumer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	var out map[string]any
	apiErr := c.Get(context.Background(), "/things", &out)
	assert.Nil(t, apiErr)
	assert.Nil(t, out)
}

func TestNotFoundByVerb(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	t.Run("read verbs yield nil", func(t *testing.T) {
		c, _ := newTestConsumer(t, handler)
		var out map[string]any
		apiErr := c.Get(context.Background(), "/things/missing", &out)
		assert.Nil(t, apiErr)
		assert.Nil(t, out)
	})

	t.Run("mutating verbs raise a protocol error", func(t *testing.T) {
		var attempts atomic.Int32
		c, _ := newTestConsumer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		apiErr := c.Delete(context.Background(), "/things/missing", nil)
		require.NotNil(t, apiErr)
		assert.Equal(t, resterror.KindProtocol, apiErr.Kind)
		assert.Equal(t, 404, apiErr.Status)
		assert.Equal(t, int32(1), attempts.Load())
	})
}

func TestNotImplemented(t *testing.T) {
	c, _ := newTestConsumer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotImplemented)
		w.Write([]byte("not here"))
	}))

	apiErr := c.Get(context.Background(), "/op", nil)
	require.NotNil(t, apiErr)
	assert.Equal(t, resterror.KindUnsupported, apiErr.Kind)
	assert.Contains(t, apiErr.FriendlyMessage(), "not here")
}

func TestNonJSONContentTypeIsTerminal(t *testing.T) {
	var attempts atomic.Int32
	c, _ := newTestConsumer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>surprise</html>"))
	}))

	var out map[string]any
	apiErr := c.Get(context.Background(), "/things", &out)
	require.NotNil(t, apiErr)
	assert.Equal(t, resterror.KindValidation, apiErr.Kind)
	assert.Equal(t, "REST-API-CONTRACT", apiErr.Code())
	assert.Equal(t, int32(1), attempts.Load(), "contract errors must not be retried")
}

func TestEmptySuccessBodyYieldsNil(t *testing.T) {
	c, _ := newTestConsumer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
	}))

	var out map[string]any
	apiErr := c.Get(context.Background(), "/things", &out)
	assert.Nil(t, apiErr)
	assert.Nil(t, out)
}

func TestHeaderInjection(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c, err := New(server.URL, BearerCredentials("secret-token"))
	require.NoError(t, err)
	c.SetRetryPolicy(fastPolicy())
	c.AddHeadersProvider(HeadersProviderFunc(func() map[string]string {
		return map[string]string{"X-Extra": "one", "": "dropped", "X-Empty": ""}
	}))
	c.AddHeadersProvider(nil)

	apiErr := c.Get(context.Background(), "/things", nil)
	require.Nil(t, apiErr)

	assert.Equal(t, "one", got.Get("X-Extra"))
	assert.Empty(t, got.Get("X-Empty"))
	assert.Equal(t, "Bearer secret-token", got.Get("Authorization"))
	assert.Equal(t, "auth0-pkce-login", got.Get("User-Agent"))
}

func TestPostForm(t *testing.T) {
	var gotBody string
	var gotContentType string
	c, _ := newTestConsumer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusNoContent)
	}))

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", "abc")
	apiErr := c.PostForm(context.Background(), "/oauth/token", form, nil)
	require.Nil(t, apiErr)
	assert.Equal(t, "application/x-www-form-urlencoded", gotContentType)
	assert.Equal(t, "code=abc&grant_type=authorization_code", gotBody)
}

func TestCloseRebuildsTransport(t *testing.T) {
	c, _ := newTestConsumer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	require.Nil(t, c.Get(context.Background(), "/a", nil))
	c.Close()
	require.Nil(t, c.Get(context.Background(), "/b", nil))
}

func TestBearerCredentials(t *testing.T) {
	assert.Nil(t, BearerCredentials("  "))

	creds := BearerCredentials("abcdefghijklmnop")
	require.NotNil(t, creds)
	assert.Equal(t, "Authorization", creds.Header)
	assert.NotContains(t, creds.String(), "abcdefghijklmnop", "String must redact the secret")
}

func TestDelaySchedule(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, 1*time.Second, p.DelayFor(0))
	assert.Equal(t, 2*time.Second, p.DelayFor(1))
	assert.Equal(t, 2*time.Second, p.DelayFor(2))
	assert.Equal(t, 2*time.Second, p.DelayFor(7))

	empty := RetryPolicy{Attempts: 2}
	assert.Equal(t, time.Duration(0), empty.DelayFor(0))
}

func TestInvalidBaseURL(t *testing.T) {
	_, err := New("not a url", nil)
	assert.Error(t, err)
	_, err = New("/relative/only", nil)
	assert.Error(t, err)
}

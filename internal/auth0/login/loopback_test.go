package login

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopbackSurfaceCallback(t *testing.T) {
	surface, err := NewLoopbackSurface()
	require.NoError(t, err)
	defer surface.Close()

	require.True(t, strings.HasPrefix(surface.RedirectURI(), "http://127.0.0.1:"))
	require.True(t, strings.HasSuffix(surface.RedirectURI(), "/callback"))

	locations := make(chan string, 1)
	surface.OnLocationChanged(func(loc string) { locations <- loc })

	resp, err := http.Get(surface.RedirectURI() + "?code=abc&state=xyz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "close this window")

	select {
	case loc := <-locations:
		assert.Equal(t, surface.RedirectURI()+"?code=abc&state=xyz", loc)
	case <-time.After(2 * time.Second):
		t.Fatal("no location event received")
	}
}

func TestLoopbackSurfaceAbort(t *testing.T) {
	surface, err := NewLoopbackSurface()
	require.NoError(t, err)

	closed := make(chan struct{}, 1)
	surface.OnClosed(func() { closed <- struct{}{} })

	surface.Abort()

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("closed callback not fired")
	}

	// Safe to close again.
	surface.Close()
}

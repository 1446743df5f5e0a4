package login

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"github.com/skratchdot/open-golang/open"

	"github.com/eduramiba/auth0-pkce-login/internal/common/middleware"
)

const callbackPath = "/callback"

const completionPage = `<!DOCTYPE html>
<html>
  <head><title>Login</title></head>
  <body>
    <p>Login received. You can close this window and return to the application.</p>
  </body>
</html>`

// LoopbackSurface is a Surface backed by the system browser and a loopback
// HTTP listener. The provider redirects the browser to the listener, which
// turns the request into a location event for the flow.
type LoopbackSurface struct {
	listener net.Listener
	server   *http.Server
	path     string

	mu         sync.Mutex
	onLocation func(string)
	onClosed   func()

	closeOnce sync.Once
}

// NewLoopbackSurface binds a listener on an ephemeral loopback port and
// starts serving the callback route.
func NewLoopbackSurface() (*LoopbackSurface, error) {
	return NewLoopbackSurfaceFor("")
}

// NewLoopbackSurfaceFor binds the listener to the host, port and path of a
// pre-registered redirect URI. Providers that require an exact redirect URI
// match need a fixed port; an empty redirectURI picks an ephemeral one.
func NewLoopbackSurfaceFor(redirectURI string) (*LoopbackSurface, error) {
	addr := "127.0.0.1:0"
	path := callbackPath
	if redirectURI != "" {
		u, err := url.Parse(redirectURI)
		if err != nil {
			return nil, fmt.Errorf("invalid redirect URI: %w", err)
		}
		addr = u.Host
		if u.Path != "" {
			path = u.Path
		}
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("unable to bind loopback listener: %w", err)
	}

	s := &LoopbackSurface{listener: listener, path: path}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestLogger)
	r.Get(path, s.handleCallback)
	s.server = &http.Server{Handler: r}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Warn().Err(err).Msg("loopback listener stopped")
		}
	}()

	log.Debug().Str("addr", listener.Addr().String()).Msg("loopback surface listening")
	return s, nil
}

// RedirectURI is the callback URL the provider must redirect to.
func (s *LoopbackSurface) RedirectURI() string {
	return fmt.Sprintf("http://%s%s", s.listener.Addr().String(), s.path)
}

// Navigate opens the URL in the system browser.
func (s *LoopbackSurface) Navigate(url string) error {
	return open.Run(url)
}

func (s *LoopbackSurface) OnLocationChanged(fn func(location string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLocation = fn
}

func (s *LoopbackSurface) OnClosed(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClosed = fn
}

// Abort reports the surface as closed by the user and tears it down. Used
// when the process is interrupted while a login is pending.
func (s *LoopbackSurface) Abort() {
	s.mu.Lock()
	fn := s.onClosed
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
	s.Close()
}

// Close shuts the listener down. Safe to call more than once and from the
// flow's resolution path.
func (s *LoopbackSurface) Close() {
	s.closeOnce.Do(func() {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := s.server.Shutdown(ctx); err != nil {
				_ = s.server.Close()
			}
		}()
	})
}

func (s *LoopbackSurface) handleCallback(w http.ResponseWriter, r *http.Request) {
	location := s.RedirectURI()
	if r.URL.RawQuery != "" {
		location += "?" + r.URL.RawQuery
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(completionPage))

	s.mu.Lock()
	fn := s.onLocation
	s.mu.Unlock()
	if fn != nil {
		fn(location)
	}
}

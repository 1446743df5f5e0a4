// Package login orchestrates one interactive browser login attempt: it
// drives an authentication surface through the provider's authorize
// endpoint, detects the redirect back, exchanges the authorization code and
// validates the resulting session. A Flow is single-use.
package login

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/eduramiba/auth0-pkce-login/internal/auth0"
	"github.com/eduramiba/auth0-pkce-login/internal/auth0/idtoken"
	"github.com/eduramiba/auth0-pkce-login/internal/auth0/pkce"
	"github.com/eduramiba/auth0-pkce-login/internal/common/resterror"
	"github.com/eduramiba/auth0-pkce-login/pkg/types"
)

// State is the lifecycle phase of a login attempt. Transitions are strictly
// forward; Completed, Cancelled and Failed are terminal.
type State int

const (
	StateIdle State = iota
	StateAwaitingRedirect
	StateExchangingToken
	StateValidatingSession
	StateCompleted
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingRedirect:
		return "awaiting-redirect"
	case StateExchangingToken:
		return "exchanging-token"
	case StateValidatingSession:
		return "validating-session"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the outcome of a login attempt. A cancelled attempt has neither
// a session nor an error.
type Result struct {
	Session *types.Session
	Err     *resterror.Error
}

// Exchanger performs the provider calls the flow needs. *auth0.Client
// satisfies it.
type Exchanger interface {
	ExchangeCode(ctx context.Context, code, verifier, redirectURI string) (*auth0.TokenResponse, *resterror.Error)
	UserInfo(ctx context.Context, accessToken string) (*types.Profile, *resterror.Error)
}

// Surface is the user-facing browser surface the flow drives. Callbacks must
// be registered before Navigate and may fire from any goroutine.
type Surface interface {
	Navigate(url string) error
	OnLocationChanged(fn func(location string))
	OnClosed(fn func())
	Close()
}

// Options configure a login attempt.
type Options struct {
	Domain      string
	ClientID    string
	RedirectURI string
}

// Flow runs one login attempt from authorize navigation to a resolved
// Result. All event entry points are safe for concurrent use; the attempt
// resolves exactly once.
type Flow struct {
	opts      Options
	exchanger Exchanger
	surface   Surface

	mu      sync.Mutex
	state   State
	attempt *pkce.Flow
	ctx     context.Context

	resolveOnce sync.Once
	done        chan struct{}
	result      Result
}

// New creates an unstarted flow.
func New(opts Options, exchanger Exchanger, surface Surface) (*Flow, error) {
	if strings.TrimSpace(opts.Domain) == "" {
		return nil, fmt.Errorf("provider domain is required")
	}
	if strings.TrimSpace(opts.ClientID) == "" {
		return nil, fmt.Errorf("client ID is required")
	}
	if strings.TrimSpace(opts.RedirectURI) == "" {
		return nil, fmt.Errorf("redirect URI is required")
	}
	if exchanger == nil || surface == nil {
		return nil, fmt.Errorf("exchanger and surface are required")
	}
	return &Flow{
		opts:      opts,
		exchanger: exchanger,
		surface:   surface,
		state:     StateIdle,
		done:      make(chan struct{}),
	}, nil
}

// Start generates fresh attempt parameters, wires the surface events and
// navigates to the provider's authorize URL. ctx bounds the whole attempt,
// including the token exchange that runs after the redirect.
func (f *Flow) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.state != StateIdle {
		f.mu.Unlock()
		return fmt.Errorf("login flow already started")
	}

	attempt, err := pkce.New(f.opts.ClientID, f.opts.RedirectURI, f.opts.Domain)
	if err != nil {
		f.mu.Unlock()
		return err
	}
	f.attempt = attempt
	f.ctx = ctx
	f.state = StateAwaitingRedirect
	f.mu.Unlock()

	f.surface.OnLocationChanged(f.HandleLocationChanged)
	f.surface.OnClosed(f.HandleSurfaceClosed)

	log.Debug().Str("state", attempt.State).Msg("starting login attempt")
	if err := f.surface.Navigate(attempt.AuthorizeURL); err != nil {
		f.fail(resterror.Transport(err))
		return nil
	}
	return nil
}

// HandleLocationChanged processes a surface navigation event. Anything that
// is not this attempt's redirect is ignored and the flow keeps waiting.
func (f *Flow) HandleLocationChanged(location string) {
	f.mu.Lock()
	if f.state != StateAwaitingRedirect {
		f.mu.Unlock()
		return
	}
	code, ok := f.matchRedirect(location)
	if !ok {
		f.mu.Unlock()
		return
	}
	f.state = StateExchangingToken
	verifier := f.attempt.Verifier
	ctx := f.ctx
	f.mu.Unlock()

	go f.exchange(ctx, code, verifier)
}

// HandleSurfaceClosed resolves the attempt as cancelled. After resolution it
// is a no-op, so the surface teardown triggered by completion does not feed
// back into the flow.
func (f *Flow) HandleSurfaceClosed() {
	f.resolve(StateCancelled, Result{})
}

// Wait blocks until the attempt resolves or ctx expires.
func (f *Flow) Wait(ctx context.Context) (Result, error) {
	select {
	case <-f.done:
		return f.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Done is closed when the attempt resolves.
func (f *Flow) Done() <-chan struct{} {
	return f.done
}

// State reports the current lifecycle phase.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// matchRedirect decides whether a navigation event is this attempt's
// redirect and extracts the authorization code. Callers hold f.mu.
func (f *Flow) matchRedirect(location string) (string, bool) {
	if !strings.HasPrefix(location, f.opts.RedirectURI) {
		return "", false
	}
	u, err := url.Parse(location)
	if err != nil {
		log.Warn().Err(err).Msg("unparseable redirect location")
		return "", false
	}
	q := u.Query()
	code := q.Get("code")
	if code == "" {
		return "", false
	}
	if q.Get("state") != f.attempt.State {
		log.Warn().Msg("redirect state does not match this attempt, ignoring")
		return "", false
	}
	return code, true
}

// exchange runs off the event path: it trades the code for tokens, validates
// the identity token and builds the session.
func (f *Flow) exchange(ctx context.Context, code, verifier string) {
	tokens, apiErr := f.exchanger.ExchangeCode(ctx, code, verifier, f.opts.RedirectURI)
	if apiErr != nil {
		f.fail(apiErr)
		return
	}

	f.mu.Lock()
	if f.state == StateExchangingToken {
		f.state = StateValidatingSession
	}
	f.mu.Unlock()

	claims := idtoken.Verify(tokens.IDToken)
	if claims == nil {
		f.fail(resterror.SessionInvalid("identity token failed validation"))
		return
	}

	session := &types.Session{
		DisplayName:  claims.Name,
		Email:        claims.Email,
		AvatarURL:    claims.Picture,
		SessionToken: tokens.IDToken,
	}

	// Some tenants omit profile claims from the identity token; the
	// userinfo endpoint is the fallback.
	if session.Email == "" {
		profile, apiErr := f.exchanger.UserInfo(ctx, tokens.AccessToken)
		if apiErr != nil {
			f.fail(apiErr)
			return
		}
		session.DisplayName = profile.Name
		session.Email = profile.Email
		session.AvatarURL = profile.Picture
	}

	if !session.Valid() {
		f.fail(resterror.SessionInvalid("provider returned an incomplete profile"))
		return
	}

	f.resolve(StateCompleted, Result{Session: session})
}

func (f *Flow) fail(err *resterror.Error) {
	f.resolve(StateFailed, Result{Err: err})
}

// resolve commits the terminal state exactly once and tears down the
// surface.
func (f *Flow) resolve(terminal State, result Result) {
	f.resolveOnce.Do(func() {
		f.mu.Lock()
		f.state = terminal
		f.mu.Unlock()
		f.result = result
		log.Debug().Str("state", terminal.String()).Msg("login attempt resolved")
		close(f.done)
		f.surface.Close()
	})
}

// Package session implements the session guard of the manager client. The guard
// tracks whether the current session is usable, runs at most one re-authentication
// at a time and replays the requests that failed only because the session expired.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/xiaozhi/managerctl/internal/request"
)

// State is the session state tracked by the guard.
type State int

const (
	StateValid State = iota
	StateReauthenticating
	StateInvalid
)

func (s State) String() string {
	switch s {
	case StateValid:
		return "valid"
	case StateReauthenticating:
		return "reauthenticating"
	case StateInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Authenticator performs one re-authentication exchange.
type Authenticator interface {
	Authenticate(ctx context.Context) error
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context) error

func (f AuthenticatorFunc) Authenticate(ctx context.Context) error {
	return f(ctx)
}

const (
	defaultReauthTimeout = 30 * time.Second
	defaultMaxEpisodes   = 1
)

// Guard is the session state machine:
//
//	Valid            -> Reauthenticating  on the first auth failure
//	Reauthenticating -> Valid             re-authentication succeeded, queue replayed in FIFO order
//	Reauthenticating -> Invalid           re-authentication failed, queue failed
//	Invalid          -> Valid             Reset
//
// While Reauthenticating every further auth failure is queued behind the first one.
// While Invalid auth failures are surfaced to their callers.
type Guard struct {
	auth          Authenticator
	reauthTimeout time.Duration
	maxEpisodes   int
	onChange      func(from, to State)
	now           func() time.Time
	logger        zerolog.Logger

	mu          sync.Mutex
	state       State
	queue       []request.Replay
	lastErr     error
	failures    int
	lastSuccess time.Time
}

// Option configures a Guard.
type Option func(*Guard)

// WithReauthTimeout bounds a single re-authentication exchange.
func WithReauthTimeout(d time.Duration) Option {
	return func(g *Guard) {
		g.reauthTimeout = d
	}
}

// WithMaxEpisodes sets how many re-authentication episodes a single request may
// go through before its auth failure is surfaced.
func WithMaxEpisodes(n int) Option {
	return func(g *Guard) {
		g.maxEpisodes = n
	}
}

// WithStateChange registers fn to be called on every state transition. fn runs with
// the guard's lock held and must not call back into the guard.
func WithStateChange(fn func(from, to State)) Option {
	return func(g *Guard) {
		g.onChange = fn
	}
}

// WithLogger replaces the global logger.
func WithLogger(l zerolog.Logger) Option {
	return func(g *Guard) {
		g.logger = l
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) {
		g.now = now
	}
}

// NewGuard returns a guard in the Valid state.
func NewGuard(auth Authenticator, opts ...Option) *Guard {
	g := &Guard{
		auth:          auth,
		reauthTimeout: defaultReauthTimeout,
		maxEpisodes:   defaultMaxEpisodes,
		now:           time.Now,
		logger:        log.Logger,
		state:         StateValid,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Intercept takes over a request that failed with an auth error. It returns false
// when the guard is Invalid or the request has used up its re-authentication
// episodes; the caller then surfaces the error itself.
func (g *Guard) Intercept(ctx context.Context, r request.Replay) bool {
	g.mu.Lock()
	if r.Episode >= g.maxEpisodes {
		g.mu.Unlock()
		g.logger.Warn().Str("request_id", r.Spec.ID()).Msg("request rejected again after re-authentication")
		return false
	}
	switch g.state {
	case StateInvalid:
		g.mu.Unlock()
		return false
	case StateReauthenticating:
		g.queue = append(g.queue, r)
		n := len(g.queue)
		g.mu.Unlock()
		g.logger.Debug().Str("request_id", r.Spec.ID()).Int("queued", n).Msg("re-authentication in flight, request queued")
		return true
	}

	g.queue = append(g.queue, r)
	g.setState(StateReauthenticating)
	g.mu.Unlock()

	go g.reauthenticate(context.WithoutCancel(ctx))
	return true
}

func (g *Guard) reauthenticate(ctx context.Context) {
	var err error = ErrNoAuthenticator
	if g.auth != nil {
		actx, cancel := context.WithTimeout(ctx, g.reauthTimeout)
		err = g.auth.Authenticate(actx)
		cancel()
	}

	g.mu.Lock()
	queue := g.queue
	g.queue = nil
	if err != nil {
		g.lastErr = err
		g.setState(StateInvalid)
		g.mu.Unlock()

		g.logger.Error().Err(err).Int("queued", len(queue)).Msg("re-authentication failed")
		for _, r := range queue {
			r.Fail(ErrReauthentication.MsgErr(err.Error(), r.Err, err))
		}
		return
	}
	g.lastErr = nil
	g.setState(StateValid)
	g.mu.Unlock()

	g.logger.Info().Int("queued", len(queue)).Msg("re-authenticated, replaying requests")
	for _, r := range queue {
		r.Resend()
	}
}

// setState must be called with g.mu held.
func (g *Guard) setState(to State) {
	from := g.state
	if from == to {
		return
	}
	g.state = to
	if g.onChange != nil {
		g.onChange(from, to)
	}
}

// Reset returns an Invalid guard to Valid, e.g. after an interactive login.
// It has no effect while a re-authentication is in flight.
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == StateReauthenticating {
		return
	}
	g.lastErr = nil
	g.setState(StateValid)
}

// State returns the current state.
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Pending returns the number of requests waiting for re-authentication.
func (g *Guard) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.queue)
}

// LastError returns the error of the failed re-authentication that made the guard
// Invalid, or nil.
func (g *Guard) LastError() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastErr
}

// ClearRequestTime resets the guard-wide count of consecutive network failures and
// records the time of the last successful exchange.
func (g *Guard) ClearRequestTime() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures = 0
	g.lastSuccess = g.now()
}

// RecordFailure counts a network failure and returns the consecutive count.
func (g *Guard) RecordFailure() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures++
	return g.failures
}

// Failures returns the consecutive network failure count.
func (g *Guard) Failures() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.failures
}

// LastSuccess returns the time of the last successful exchange.
func (g *Guard) LastSuccess() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastSuccess
}

var _ request.Guard = &Guard{}

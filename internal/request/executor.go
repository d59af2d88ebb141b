// Package request builds HTTP calls against the manager API and orchestrates their
// completion. A Builder accumulates an immutable Spec, the Executor dispatches it
// through a Transport, and requests rejected for an expired session are handed to a
// Guard that re-authenticates and replays them.
package request

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/xiaozhi/managerctl/internal/common/apperrors"
	"github.com/xiaozhi/managerctl/internal/common/logtrace"
	"github.com/xiaozhi/managerctl/internal/common/uuid"
)

// Transport performs a single HTTP exchange.
type Transport interface {
	Do(ctx context.Context, spec Spec) Outcome
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, spec Spec) Outcome

func (f TransportFunc) Do(ctx context.Context, spec Spec) Outcome {
	return f(ctx, spec)
}

// Replay is a request that failed with an auth error, handed to the Guard.
type Replay struct {
	Spec Spec
	// Err is the auth error the request failed with.
	Err error
	// Episode counts the re-authentication episodes this request already went through.
	Episode int
	// Resend dispatches the request again and returns once it has completed.
	Resend func()
	// Fail delivers err to the request's failure callback.
	Fail func(err error)
}

// Guard owns the session state. Intercept takes over a request that failed with an
// auth error and reports false when it refuses to, in which case the error is
// delivered to the caller. ClearRequestTime is called after every success.
type Guard interface {
	Intercept(ctx context.Context, r Replay) bool
	ClearRequestTime()
}

// Executor dispatches Specs through a Transport.
type Executor struct {
	transport Transport
	guard     Guard
	logger    zerolog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithGuard routes auth failures through g.
func WithGuard(g Guard) Option {
	return func(e *Executor) {
		e.guard = g
	}
}

// WithLogger replaces the global logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// NewExecutor returns an Executor sending requests through t.
func NewExecutor(t Transport, opts ...Option) *Executor {
	e := &Executor{
		transport: t,
		logger:    log.Logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewRequest returns a Builder bound to the executor.
func (e *Executor) NewRequest() Builder {
	b := New()
	b.exec = e
	return b
}

// Execute validates spec and dispatches it asynchronously. Exactly one of the
// callbacks runs for the attempt, then the returned Future resolves.
func (e *Executor) Execute(ctx context.Context, spec Spec, cb Callbacks) *Future {
	fut := newFuture()
	if err := spec.Validate(); err != nil {
		deliver(cb, fut, Outcome{Err: err})
		return fut
	}
	if spec.id == "" {
		spec.id = uuid.NewRequestID()
	}
	go e.attempt(ctx, spec, cb, fut, 0)
	return fut
}

// Do executes spec and waits for its result.
func (e *Executor) Do(ctx context.Context, spec Spec) (Payload, error) {
	return e.Execute(ctx, spec, Callbacks{}).Wait(ctx)
}

func (e *Executor) attempt(ctx context.Context, spec Spec, cb Callbacks, fut *Future, episode int) {
	logger := e.logger.With().
		Str("request_id", spec.ID()).
		Str("method", spec.Method()).
		Str("url", spec.URL()).
		Logger()
	if episode > 0 {
		if issued, ok := uuid.IssuedAt(spec.ID()); ok {
			logger.Debug().Int("episode", episode).Dur("age", time.Since(issued)).Msg("replaying request")
		}
	}

	out := e.transport.Do(logtrace.WithRequestID(ctx, spec.ID()), spec)
	if out.OK() {
		logger.Debug().Msg("request succeeded")
		if e.guard != nil {
			e.guard.ClearRequestTime()
		}
		deliver(cb, fut, out)
		return
	}

	kind := out.Kind()
	if kind == apperrors.KindAuth && e.guard != nil {
		r := Replay{
			Spec:    spec,
			Err:     out.Err,
			Episode: episode,
			Resend: func() {
				e.attempt(ctx, spec, cb, fut, episode+1)
			},
			Fail: func(err error) {
				deliver(cb, fut, Outcome{Err: err})
			},
		}
		if e.guard.Intercept(ctx, r) {
			logger.Info().Msg("session rejected, request queued for replay")
			return
		}
	}

	logger.Warn().Err(out.Err).Str("kind", kind.String()).Msg("request failed")
	deliver(cb, fut, out)
}

package request

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xiaozhi/managerctl/internal/common/apperrors"
)

type recordingGuard struct {
	mu      sync.Mutex
	accept  bool
	replays []Replay
	cleared int
}

func (g *recordingGuard) Intercept(_ context.Context, r Replay) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.accept {
		return false
	}
	g.replays = append(g.replays, r)
	return true
}

func (g *recordingGuard) ClearRequestTime() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cleared++
}

type result struct {
	payload  Payload
	err      error
	success  int32
	failures int32
}

func (r *result) callbacks() Callbacks {
	return Callbacks{
		Success: func(p Payload) {
			atomic.AddInt32(&r.success, 1)
			r.payload = p
		},
		NetworkFail: func(err error) {
			atomic.AddInt32(&r.failures, 1)
			r.err = err
		},
	}
}

func waitFuture(t *testing.T, fut *Future) (Payload, error) {
	t.Helper()
	select {
	case <-fut.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("future did not resolve")
	}
	return fut.Wait(context.Background())
}

func TestExecutorDeliversExactlyOneCallback(t *testing.T) {
	outcomes := []Outcome{
		Success(Payload(`{"code":0,"data":{"id":1}}`)),
		Failure(apperrors.KindNetwork, "connection refused", 0),
		Failure(apperrors.KindTimeout, "", 0),
		Failure(apperrors.KindServer, "duplicate code", 500),
		Failure(apperrors.KindAuth, "token expired", 401),
	}
	for _, o := range outcomes {
		t.Run(o.Kind().String(), func(t *testing.T) {
			var calls int32
			exec := NewExecutor(TransportFunc(func(context.Context, Spec) Outcome {
				atomic.AddInt32(&calls, 1)
				return o
			}))
			var r result
			fut := exec.NewRequest().URL("http://manager.local/device/bind/A1").Success(r.callbacks().Success).
				NetworkFail(r.callbacks().NetworkFail).Send(context.Background())
			p, err := waitFuture(t, fut)

			assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
			assert.Equal(t, int32(1), r.success+r.failures)
			if o.OK() {
				assert.NoError(t, err)
				assert.Equal(t, o.Payload, p)
				assert.Equal(t, o.Payload, r.payload)
			} else {
				assert.Equal(t, o.Err, err)
				assert.Equal(t, o.Kind(), apperrors.KindOf(r.err))
			}
		})
	}
}

func TestExecutorValidationNeverReachesTransport(t *testing.T) {
	exec := NewExecutor(TransportFunc(func(context.Context, Spec) Outcome {
		t.Fatal("transport must not be called")
		return Outcome{}
	}))
	var r result
	fut := exec.Execute(context.Background(), Spec{}, r.callbacks())
	_, err := waitFuture(t, fut)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, int32(1), r.failures)
	assert.Equal(t, int32(0), r.success)
}

func TestExecutorSuccessClearsRequestTime(t *testing.T) {
	guard := &recordingGuard{accept: true}
	exec := NewExecutor(TransportFunc(func(context.Context, Spec) Outcome {
		return Success(Payload(`{"id":1}`))
	}), WithGuard(guard))
	_, err := waitFuture(t, exec.NewRequest().URL("http://manager.local/x").Send(context.Background()))
	require.NoError(t, err)
	assert.Equal(t, 1, guard.cleared)
}

func TestExecutorHandsAuthErrorsToGuard(t *testing.T) {
	var calls int32
	exec := NewExecutor(TransportFunc(func(context.Context, Spec) Outcome {
		if atomic.AddInt32(&calls, 1) == 1 {
			return Failure(apperrors.KindAuth, "token expired", 401)
		}
		return Success(Payload(`{"ok":true}`))
	}), WithGuard(&recordingGuard{accept: true}))
	guard := exec.guard.(*recordingGuard)

	var r result
	fut := exec.NewRequest().URL("http://manager.local/device/unbind").Method("POST").
		Success(r.callbacks().Success).NetworkFail(r.callbacks().NetworkFail).Send(context.Background())

	require.Eventually(t, func() bool {
		guard.mu.Lock()
		defer guard.mu.Unlock()
		return len(guard.replays) == 1
	}, time.Second, 5*time.Millisecond)

	select {
	case <-fut.Done():
		t.Fatal("future resolved before replay")
	default:
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(&r.failures))

	replay := guard.replays[0]
	assert.Equal(t, 0, replay.Episode)
	assert.ErrorIs(t, replay.Err, ErrAuth)
	assert.Equal(t, "http://manager.local/device/unbind", replay.Spec.URL())
	replay.Resend()

	p, err := waitFuture(t, fut)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, p.String())
	assert.Equal(t, int32(1), r.success)
	assert.Equal(t, int32(0), r.failures)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestExecutorSurfacesAuthErrorWhenGuardRefuses(t *testing.T) {
	exec := NewExecutor(TransportFunc(func(context.Context, Spec) Outcome {
		return Failure(apperrors.KindAuth, "", 401)
	}), WithGuard(&recordingGuard{accept: false}))
	var r result
	_, err := waitFuture(t, exec.Execute(context.Background(), mustBuild(t, New().URL("http://manager.local/x")), r.callbacks()))
	assert.ErrorIs(t, err, ErrAuth)
	assert.Equal(t, int32(1), r.failures)
}

func TestExecutorDo(t *testing.T) {
	exec := NewExecutor(TransportFunc(func(_ context.Context, s Spec) Outcome {
		assert.NotEmpty(t, s.ID())
		return Success(Payload(`{"code":0,"data":[{"id":"1"}]}`))
	}))
	p, err := exec.Do(context.Background(), mustBuild(t, New().URL("http://manager.local/device/bind/A1")))
	require.NoError(t, err)
	assert.Equal(t, "1", p.Data().Get("0.id").String())
	assert.Nil(t, Payload(`{}`).Data())
}

func TestFutureWaitHonoursContext(t *testing.T) {
	fut := newFuture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := fut.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func mustBuild(t *testing.T, b Builder) Spec {
	t.Helper()
	s, err := b.Build()
	require.NoError(t, err)
	return s
}

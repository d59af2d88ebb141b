package request

import (
	"context"
	"sync"
)

// Future is the handle of a dispatched request. It resolves once, after the
// matching callback has returned.
type Future struct {
	done    chan struct{}
	once    sync.Once
	payload Payload
	err     error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) resolve(p Payload, err error) {
	f.once.Do(func() {
		f.payload = p
		f.err = err
		close(f.done)
	})
}

// Done is closed when the request has completed.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the request completes or ctx is done.
func (f *Future) Wait(ctx context.Context) (Payload, error) {
	select {
	case <-f.done:
		return f.payload, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func deliver(cb Callbacks, fut *Future, o Outcome) {
	if o.OK() {
		if cb.Success != nil {
			cb.Success(o.Payload)
		}
		fut.resolve(o.Payload, nil)
		return
	}
	if cb.NetworkFail != nil {
		cb.NetworkFail(o.Err)
	}
	fut.resolve(nil, o.Err)
}

package ops

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Operation is any blocking fleet call. Implementations return a value
// rather than panic; failures travel inside the value or err.
type Operation func(ctx context.Context) (any, error)

// Result carries an operation's outcome to the handle's channel.
type Result struct {
	Value any
	Err   error
}

// Handle tracks one submitted operation. Done receives exactly one
// Result and is then closed.
type Handle struct {
	ID   string
	Name string
	Done <-chan Result
}

// Pool runs fleet operations on their own goroutines so the submitting
// context never blocks on adb. Exclusive operations share one
// single-flight slot; installs are unbounded and independent of each
// other.
type Pool struct {
	guard Guard
}

func NewPool() *Pool {
	return &Pool{}
}

// SubmitExclusive runs op under the single-flight guard. While another
// exclusive operation is in flight the submission is rejected with
// ErrBusy instead of being queued.
func (p *Pool) SubmitExclusive(ctx context.Context, name string, op Operation) (*Handle, error) {
	if !p.guard.TryAcquire() {
		log.Warn().Str("op", name).Msg("rejecting operation, single-flight slot is held")
		return nil, ErrBusy
	}
	return p.submit(ctx, name, func(ctx context.Context) (any, error) {
		defer p.guard.Release()
		return op(ctx)
	}), nil
}

// SubmitInstall runs an installation on its own worker. Installations
// never contend with the single-flight slot or with each other.
func (p *Pool) SubmitInstall(ctx context.Context, name string, op Operation) *Handle {
	return p.submit(ctx, name, op)
}

func (p *Pool) submit(ctx context.Context, name string, op Operation) *Handle {
	done := make(chan Result, 1)
	h := &Handle{ID: uuid.NewString(), Name: name, Done: done}
	log.Debug().Str("op", name).Str("id", h.ID).Msg("operation submitted")
	go func() {
		value, err := op(ctx)
		done <- Result{Value: value, Err: err}
		close(done)
	}()
	return h
}

// Await blocks until the handle completes and returns its result.
func Await(h *Handle) (any, error) {
	r := <-h.Done
	return r.Value, r.Err
}

package page

import (
	"context"
	"sync"

	"arnime/internal/service"

	"github.com/pkg/errors"
)

// Status is the phase of a page controller
type Status int

const (
	Idle Status = iota
	Loading
	Ready
	Failed
)

func (s Status) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "error"
	}
	return "idle"
}

// State is a snapshot of a controller
type State[T any] struct {
	Status Status
	Key    string
	Data   T
	Err    error
}

// Message is the text shown on the error panel
func (s State[T]) Message() string {
	if s.Err == nil {
		return ""
	}
	return ErrorMessage(s.Err)
}

// Fetcher loads the data for a key
type Fetcher[T any] func(ctx context.Context, key string) (T, error)

// Controller runs the idle -> loading -> ready|error cycle for one page.
// Every Load supersedes the previous one: a result that arrives after a
// newer Load started is dropped.
type Controller[T any] struct {
	mu    sync.Mutex
	fetch Fetcher[T]
	gen   uint64
	state State[T]
}

// NewController creates an idle controller
func NewController[T any](fetch Fetcher[T]) *Controller[T] {
	return &Controller[T]{fetch: fetch}
}

// State returns the current snapshot
func (c *Controller[T]) State() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Load enters loading for key, runs the fetch and commits its result
// unless a newer Load has started meanwhile. It returns the state
// visible once the fetch settled.
func (c *Controller[T]) Load(ctx context.Context, key string) State[T] {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	var zero T
	c.state = State[T]{Status: Loading, Key: key, Data: zero}
	c.mu.Unlock()

	data, err := c.fetch(ctx, key)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return c.state
	}
	if err != nil {
		c.state = State[T]{Status: Failed, Key: key, Err: err}
	} else {
		c.state = State[T]{Status: Ready, Key: key, Data: data}
	}
	return c.state
}

// Retry reloads the current key
func (c *Controller[T]) Retry(ctx context.Context) State[T] {
	c.mu.Lock()
	key := c.state.Key
	c.mu.Unlock()
	return c.Load(ctx, key)
}

// ErrorMessage turns an error into the text shown to the user
func ErrorMessage(err error) string {
	var notFound *service.NotFoundError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &notFound):
		return notFound.Error()
	case errors.Is(err, context.Canceled):
		return "request canceled"
	}
	return err.Error()
}

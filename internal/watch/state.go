// Package watch binds in-process state to live store listeners. A watch holds
// {Data, Loading, Err} for one query or document and re-subscribes whenever
// its input changes.
package watch

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"clinic-backend-go/internal/db"
	"clinic-backend-go/internal/diag"
)

// ErrClosed is returned by WaitFor when the watch is closed while waiting.
var ErrClosed = errors.New("watch closed")

// State is the observable state of a watch.
type State[T any] struct {
	Data    T                     `json:"data"`
	Loading bool                  `json:"loading"`
	Err     *diag.PermissionError `json:"error,omitempty"`
}

// CollectionState holds every matching document, each merged with its id.
type CollectionState = State[[]map[string]interface{}]

// DocumentState holds one document merged with its id, or nil when it does not exist.
type DocumentState = State[map[string]interface{}]

// Guard authorizes reads before a listener is opened.
type Guard interface {
	Authorize(ctx context.Context, op diag.Operation, path string) error
	AuthorizeQuery(ctx context.Context, q db.Query) error
}

// Deps are the collaborators shared by every watch.
type Deps struct {
	Store  db.DocumentStore
	Guard  Guard
	Bus    *diag.Bus
	Logger *zap.Logger
}

func (d Deps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// binding is the state machine shared by collection and document watches.
// gen identifies the current listener; results from older listeners are dropped.
type binding[T any] struct {
	mu      sync.Mutex
	state   State[T]
	gen     uint64
	cancel  context.CancelFunc
	updates chan State[T]
	closed  bool
}

func newBinding[T any]() *binding[T] {
	return &binding[T]{updates: make(chan State[T], 1)}
}

// stopLocked cancels the current listener and invalidates its generation.
func (b *binding[T]) stopLocked() {
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	b.gen++
}

// emitLocked replaces any undelivered state with the current one.
func (b *binding[T]) emitLocked() {
	select {
	case <-b.updates:
	default:
	}
	select {
	case b.updates <- b.state:
	default:
	}
}

// apply mutates the state if gen is still current.
func (b *binding[T]) apply(gen uint64, fn func(*State[T])) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || gen != b.gen {
		return false
	}
	fn(&b.state)
	b.emitLocked()
	return true
}

func (b *binding[T]) current() State[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *binding[T]) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.stopLocked()
	b.closed = true
	b.state = State[T]{}
	select {
	case <-b.updates:
	default:
	}
	close(b.updates)
}

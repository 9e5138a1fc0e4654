package watch

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"clinic-backend-go/internal/authz"
	"clinic-backend-go/internal/diag"
)

// Document keeps the state of a single live document.
type Document struct {
	deps Deps
	base context.Context
	path string
	b    *binding[map[string]interface{}]
}

// NewDocument creates an idle document watch.
func NewDocument(ctx context.Context, deps Deps) *Document {
	return &Document{deps: deps, base: ctx, b: newBinding[map[string]interface{}]()}
}

// SetPath points the watch at a document path. An empty path tears the
// listener down and clears the state before returning.
func (d *Document) SetPath(path string) {
	d.b.mu.Lock()
	if d.b.closed || path == d.path {
		d.b.mu.Unlock()
		return
	}
	d.path = path
	d.b.stopLocked()
	if path == "" {
		d.b.state = DocumentState{}
		d.b.emitLocked()
		d.b.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(d.base)
	d.b.cancel = cancel
	gen := d.b.gen
	d.b.state.Loading = true
	d.b.state.Err = nil
	d.b.emitLocked()
	d.b.mu.Unlock()

	go d.run(ctx, gen, path)
}

// State returns the latest state.
func (d *Document) State() DocumentState { return d.b.current() }

// Updates delivers the latest state after every change.
func (d *Document) Updates() <-chan DocumentState { return d.b.updates }

// Close stops the listener for good.
func (d *Document) Close() { d.b.close() }

func (d *Document) run(ctx context.Context, gen uint64, path string) {
	if d.deps.Guard != nil {
		if err := d.deps.Guard.Authorize(ctx, diag.OpGet, path); err != nil {
			d.fail(ctx, gen, path, err)
			return
		}
	}

	it := d.deps.Store.WatchDocument(ctx, path)
	defer it.Stop()
	for {
		doc, err := it.Next()
		if err != nil {
			if errors.Is(err, iterator.Done) || ctx.Err() != nil {
				return
			}
			d.fail(ctx, gen, path, err)
			return
		}
		var data map[string]interface{}
		if doc != nil {
			data = doc.WithID()
		}
		d.b.apply(gen, func(s *DocumentState) {
			s.Data = data
			s.Loading = false
			s.Err = nil
		})
	}
}

func (d *Document) fail(ctx context.Context, gen uint64, path string, cause error) {
	perr := diag.NewPermissionError(diag.OpGet, path, authz.ActorOf(d.base), nil, cause)
	applied := d.b.apply(gen, func(s *DocumentState) {
		s.Data = nil
		s.Loading = false
		s.Err = perr
	})
	if !applied {
		return
	}
	d.deps.logger().Debug("Document watch failed", zap.String("path", path), zap.Error(cause))
	if d.deps.Bus != nil {
		d.deps.Bus.Publish(ctx, perr)
	}
}

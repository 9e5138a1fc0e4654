package watch

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"clinic-backend-go/internal/authz"
	"clinic-backend-go/internal/db"
	"clinic-backend-go/internal/diag"
)

// Collection keeps the result set of a live query.
type Collection struct {
	deps  Deps
	base  context.Context
	query *db.Query
	b     *binding[[]map[string]interface{}]
}

// NewCollection creates an idle collection watch. ctx carries the caller's
// principal and bounds every listener the watch opens.
func NewCollection(ctx context.Context, deps Deps) *Collection {
	return &Collection{deps: deps, base: ctx, b: newBinding[[]map[string]interface{}]()}
}

// SetQuery points the watch at q. A nil q tears the listener down and clears
// the state before returning. A descriptor Equal to the current one is ignored.
func (c *Collection) SetQuery(q *db.Query) {
	c.b.mu.Lock()
	if c.b.closed {
		c.b.mu.Unlock()
		return
	}
	if q == nil {
		c.query = nil
		c.b.stopLocked()
		c.b.state = CollectionState{}
		c.b.emitLocked()
		c.b.mu.Unlock()
		return
	}
	if c.query != nil && c.query.Equal(*q) {
		c.b.mu.Unlock()
		return
	}

	qc := q.Clone()
	c.query = &qc
	c.b.stopLocked()
	ctx, cancel := context.WithCancel(c.base)
	c.b.cancel = cancel
	gen := c.b.gen
	c.b.state.Loading = true
	c.b.state.Err = nil
	c.b.emitLocked()
	c.b.mu.Unlock()

	go c.run(ctx, gen, qc)
}

// State returns the latest state.
func (c *Collection) State() CollectionState { return c.b.current() }

// Updates delivers the latest state after every change. Intermediate states
// may be skipped when the reader falls behind. The channel is closed by Close.
func (c *Collection) Updates() <-chan CollectionState { return c.b.updates }

// Close stops the listener for good.
func (c *Collection) Close() { c.b.close() }

func (c *Collection) run(ctx context.Context, gen uint64, q db.Query) {
	if c.deps.Guard != nil {
		if err := c.deps.Guard.AuthorizeQuery(ctx, q); err != nil {
			c.fail(ctx, gen, q, err)
			return
		}
	}

	it := c.deps.Store.WatchQuery(ctx, q)
	defer it.Stop()
	for {
		docs, err := it.Next()
		if err != nil {
			if errors.Is(err, iterator.Done) || ctx.Err() != nil {
				return
			}
			c.fail(ctx, gen, q, err)
			return
		}
		items := make([]map[string]interface{}, 0, len(docs))
		for _, d := range docs {
			items = append(items, d.WithID())
		}
		c.b.apply(gen, func(s *CollectionState) {
			s.Data = items
			s.Loading = false
			s.Err = nil
		})
	}
}

func (c *Collection) fail(ctx context.Context, gen uint64, q db.Query, cause error) {
	perr := diag.NewPermissionError(diag.OpList, q.Path, authz.ActorOf(c.base), nil, cause)
	applied := c.b.apply(gen, func(s *CollectionState) {
		s.Data = nil
		s.Loading = false
		s.Err = perr
	})
	if !applied {
		return
	}
	c.deps.logger().Debug("Collection watch failed", zap.String("query", q.String()), zap.Error(cause))
	if c.deps.Bus != nil {
		c.deps.Bus.Publish(ctx, perr)
	}
}

package db

import (
	"fmt"
	"reflect"
	"strings"
)

// Filter operators understood by every store implementation.
const (
	OpEqual         = "=="
	OpNotEqual      = "!="
	OpLess          = "<"
	OpLessEqual     = "<="
	OpGreater       = ">"
	OpGreaterEqual  = ">="
	OpIn            = "in"
	OpArrayContains = "array-contains"
)

var validOps = map[string]bool{
	OpEqual: true, OpNotEqual: true, OpLess: true, OpLessEqual: true,
	OpGreater: true, OpGreaterEqual: true, OpIn: true, OpArrayContains: true,
}

// Filter is a single field condition.
type Filter struct {
	Field string
	Op    string
	Value interface{}
}

// Order is a single sort key.
type Order struct {
	Field string
	Desc  bool
}

// Query describes a collection read. It is a plain value: two descriptors that
// compare Equal select the same documents, which is what live watches use to
// decide whether to re-subscribe.
type Query struct {
	// Path is the collection path, or the collection identifier when Group is set.
	Path    string
	Group   bool
	Filters []Filter
	Orders  []Order
	Limit   int
}

// Collection starts a query over a single collection.
func Collection(path string) Query {
	return Query{Path: strings.Trim(path, "/")}
}

// CollectionGroup starts a query over every collection with the given identifier.
func CollectionGroup(collectionID string) Query {
	return Query{Path: collectionID, Group: true}
}

// Where returns a copy of q with an extra filter.
func (q Query) Where(field, op string, value interface{}) Query {
	out := q.Clone()
	out.Filters = append(out.Filters, Filter{Field: field, Op: op, Value: value})
	return out
}

// OrderBy returns a copy of q with an extra sort key.
func (q Query) OrderBy(field string, desc bool) Query {
	out := q.Clone()
	out.Orders = append(out.Orders, Order{Field: field, Desc: desc})
	return out
}

// LimitTo returns a copy of q capped at n results. Zero means unlimited.
func (q Query) LimitTo(n int) Query {
	out := q.Clone()
	out.Limit = n
	return out
}

// Clone returns a deep enough copy that appending to the result never aliases q.
func (q Query) Clone() Query {
	out := q
	out.Filters = append([]Filter(nil), q.Filters...)
	out.Orders = append([]Order(nil), q.Orders...)
	return out
}

// Validate checks the descriptor before it reaches a store.
func (q Query) Validate() error {
	if q.Path == "" {
		return fmt.Errorf("query path is empty")
	}
	if q.Group {
		if strings.Contains(q.Path, "/") {
			return fmt.Errorf("collection group id %q must not contain '/'", q.Path)
		}
	} else if !IsCollectionPath(q.Path) {
		return fmt.Errorf("%w: %q is not a collection path", ErrInvalidPath, q.Path)
	}
	for _, f := range q.Filters {
		if f.Field == "" {
			return fmt.Errorf("filter field is empty")
		}
		if !validOps[f.Op] {
			return fmt.Errorf("unsupported filter operator %q", f.Op)
		}
	}
	if q.Limit < 0 {
		return fmt.Errorf("limit must not be negative")
	}
	return nil
}

// Equal reports structural equality of two descriptors.
func (q Query) Equal(other Query) bool {
	if q.Path != other.Path || q.Group != other.Group || q.Limit != other.Limit {
		return false
	}
	if len(q.Filters) != len(other.Filters) || len(q.Orders) != len(other.Orders) {
		return false
	}
	for i, f := range q.Filters {
		o := other.Filters[i]
		if f.Field != o.Field || f.Op != o.Op || !reflect.DeepEqual(f.Value, o.Value) {
			return false
		}
	}
	for i, o := range q.Orders {
		if o != other.Orders[i] {
			return false
		}
	}
	return true
}

// String renders the descriptor for logs.
func (q Query) String() string {
	var b strings.Builder
	if q.Group {
		b.WriteString("group:")
	}
	b.WriteString(q.Path)
	for _, f := range q.Filters {
		fmt.Fprintf(&b, " where %s %s %v", f.Field, f.Op, f.Value)
	}
	for _, o := range q.Orders {
		dir := "asc"
		if o.Desc {
			dir = "desc"
		}
		fmt.Fprintf(&b, " order %s %s", o.Field, dir)
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " limit %d", q.Limit)
	}
	return b.String()
}

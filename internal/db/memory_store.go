package db

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// MemoryStore is an in-process DocumentStore with live listeners. It backs
// local development (STORE_BACKEND=memory) and the test suites.
type MemoryStore struct {
	mu        sync.RWMutex
	docs      map[string]map[string]interface{}
	listeners map[uint64]chan struct{}
	nextID    uint64
	denied    map[string]bool
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:      make(map[string]map[string]interface{}),
		listeners: make(map[uint64]chan struct{}),
		denied:    make(map[string]bool),
	}
}

// Deny makes every operation on the given collection path fail with
// codes.PermissionDenied, the way store-side security rules reject a request.
func (m *MemoryStore) Deny(collectionPath string) {
	m.mu.Lock()
	m.denied[strings.Trim(collectionPath, "/")] = true
	m.mu.Unlock()
	m.notifyAll()
}

// Allow lifts a previous Deny.
func (m *MemoryStore) Allow(collectionPath string) {
	m.mu.Lock()
	delete(m.denied, strings.Trim(collectionPath, "/"))
	m.mu.Unlock()
	m.notifyAll()
}

func (m *MemoryStore) checkLocked(collectionPath string) error {
	if m.denied[collectionPath] {
		return status.Errorf(codes.PermissionDenied, "missing or insufficient permissions on %s", collectionPath)
	}
	return nil
}

// Add creates a document with a random identifier.
func (m *MemoryStore) Add(ctx context.Context, collectionPath string, data map[string]interface{}) (string, error) {
	if !IsCollectionPath(collectionPath) {
		return "", fmt.Errorf("%w: %q is not a collection path", ErrInvalidPath, collectionPath)
	}
	col := strings.Trim(collectionPath, "/")
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:20]

	m.mu.Lock()
	if err := m.checkLocked(col); err != nil {
		m.mu.Unlock()
		return "", err
	}
	m.docs[col+"/"+id] = copyMap(data)
	m.mu.Unlock()

	m.notifyAll()
	return id, nil
}

// Set writes a document, merging top level fields when merge is set.
func (m *MemoryStore) Set(ctx context.Context, docPath string, data map[string]interface{}, merge bool) error {
	col, _, err := ParentCollection(docPath)
	if err != nil {
		return err
	}
	key := strings.Trim(docPath, "/")

	m.mu.Lock()
	if err := m.checkLocked(col); err != nil {
		m.mu.Unlock()
		return err
	}
	existing, ok := m.docs[key]
	if merge && ok {
		for k, v := range data {
			existing[k] = copyValue(v)
		}
	} else {
		m.docs[key] = copyMap(data)
	}
	m.mu.Unlock()

	m.notifyAll()
	return nil
}

// Update changes fields of an existing document.
func (m *MemoryStore) Update(ctx context.Context, docPath string, fields map[string]interface{}) error {
	col, _, err := ParentCollection(docPath)
	if err != nil {
		return err
	}
	key := strings.Trim(docPath, "/")

	m.mu.Lock()
	if err := m.checkLocked(col); err != nil {
		m.mu.Unlock()
		return err
	}
	existing, ok := m.docs[key]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("document %s: %w", docPath, ErrNotFound)
	}
	for k, v := range fields {
		existing[k] = copyValue(v)
	}
	m.mu.Unlock()

	m.notifyAll()
	return nil
}

// Delete removes a document. Deleting a missing document is not an error.
func (m *MemoryStore) Delete(ctx context.Context, docPath string) error {
	col, _, err := ParentCollection(docPath)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if err := m.checkLocked(col); err != nil {
		m.mu.Unlock()
		return err
	}
	delete(m.docs, strings.Trim(docPath, "/"))
	m.mu.Unlock()

	m.notifyAll()
	return nil
}

// Get reads a single document.
func (m *MemoryStore) Get(ctx context.Context, docPath string) (*Document, error) {
	doc, err := m.getDocument(docPath)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("document %s: %w", docPath, ErrNotFound)
	}
	return doc, nil
}

func (m *MemoryStore) getDocument(docPath string) (*Document, error) {
	col, id, err := ParentCollection(docPath)
	if err != nil {
		return nil, err
	}
	key := strings.Trim(docPath, "/")

	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkLocked(col); err != nil {
		return nil, err
	}
	data, ok := m.docs[key]
	if !ok {
		return nil, nil
	}
	return &Document{ID: id, Path: key, Data: copyMap(data)}, nil
}

// Query runs a one-shot read of q.
func (m *MemoryStore) Query(ctx context.Context, q Query) ([]Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queryLocked(q)
}

func (m *MemoryStore) queryLocked(q Query) ([]Document, error) {
	var out []Document
	for key, data := range m.docs {
		col, id, err := ParentCollection(key)
		if err != nil {
			continue
		}
		if q.Group {
			segs := SplitPath(col)
			if segs[len(segs)-1] != q.Path {
				continue
			}
		} else if col != q.Path {
			continue
		}
		if err := m.checkLocked(col); err != nil {
			return nil, err
		}
		if !matchesAll(data, q.Filters) || !hasOrderFields(data, q.Orders) {
			continue
		}
		out = append(out, Document{ID: id, Path: key, Data: copyMap(data)})
	}
	if !q.Group {
		if err := m.checkLocked(q.Path); err != nil {
			return nil, err
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		for _, o := range q.Orders {
			c := compareValues(out[i].Data[o.Field], out[j].Data[o.Field])
			if c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		return out[i].Path < out[j].Path
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// WatchQuery opens a live listener on q.
func (m *MemoryStore) WatchQuery(ctx context.Context, q Query) QueryIterator {
	if err := q.Validate(); err != nil {
		return &failedQueryIterator{failedOnce{err: err}}
	}
	return &memoryQueryIterator{memoryListener: m.listen(ctx), query: q.Clone()}
}

// WatchDocument opens a live listener on a single document.
func (m *MemoryStore) WatchDocument(ctx context.Context, docPath string) DocumentIterator {
	if !IsDocumentPath(docPath) {
		return &failedDocumentIterator{failedOnce{err: fmt.Errorf("%w: %q is not a document path", ErrInvalidPath, docPath)}}
	}
	return &memoryDocumentIterator{memoryListener: m.listen(ctx), path: docPath}
}

func (m *MemoryStore) listen(ctx context.Context) memoryListener {
	ch := make(chan struct{}, 1)
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.listeners[id] = ch
	m.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	return memoryListener{store: m, id: id, changed: ch, ctx: ctx, cancel: cancel}
}

func (m *MemoryStore) notifyAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ch := range m.listeners {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

type memoryListener struct {
	store   *MemoryStore
	id      uint64
	changed chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	primed  bool
}

// wait blocks until the store changes. The first call returns immediately.
func (l *memoryListener) wait() error {
	if l.ctx.Err() != nil {
		return l.doneErr()
	}
	if !l.primed {
		l.primed = true
		return nil
	}
	select {
	case <-l.ctx.Done():
		return l.doneErr()
	case <-l.changed:
		return nil
	}
}

func (l *memoryListener) doneErr() error {
	if l.ctx.Err() == context.Canceled {
		return iterator.Done
	}
	return status.FromContextError(l.ctx.Err()).Err()
}

func (l *memoryListener) Stop() {
	l.cancel()
	l.store.mu.Lock()
	delete(l.store.listeners, l.id)
	l.store.mu.Unlock()
}

type memoryQueryIterator struct {
	memoryListener
	query Query
	last  []Document
	sent  bool
}

// Next returns the current result set, skipping notifications that did not change it.
func (it *memoryQueryIterator) Next() ([]Document, error) {
	for {
		if err := it.wait(); err != nil {
			return nil, err
		}
		docs, err := it.store.Query(it.ctx, it.query)
		if err != nil {
			return nil, err
		}
		if it.sent && reflect.DeepEqual(docs, it.last) {
			continue
		}
		it.sent = true
		it.last = docs
		return docs, nil
	}
}

type memoryDocumentIterator struct {
	memoryListener
	path string
	last *Document
	sent bool
}

// Next returns the current document state, skipping notifications that did not change it.
func (it *memoryDocumentIterator) Next() (*Document, error) {
	for {
		if err := it.wait(); err != nil {
			return nil, err
		}
		doc, err := it.store.getDocument(it.path)
		if err != nil {
			return nil, err
		}
		if it.sent && reflect.DeepEqual(doc, it.last) {
			continue
		}
		it.sent = true
		it.last = doc
		return doc, nil
	}
}

func matchesAll(data map[string]interface{}, filters []Filter) bool {
	for _, f := range filters {
		if !matches(data, f) {
			return false
		}
	}
	return true
}

func matches(data map[string]interface{}, f Filter) bool {
	v, ok := data[f.Field]
	switch f.Op {
	case OpEqual:
		return ok && compareValues(v, f.Value) == 0
	case OpNotEqual:
		return ok && compareValues(v, f.Value) != 0
	case OpLess:
		return ok && sameKind(v, f.Value) && compareValues(v, f.Value) < 0
	case OpLessEqual:
		return ok && sameKind(v, f.Value) && compareValues(v, f.Value) <= 0
	case OpGreater:
		return ok && sameKind(v, f.Value) && compareValues(v, f.Value) > 0
	case OpGreaterEqual:
		return ok && sameKind(v, f.Value) && compareValues(v, f.Value) >= 0
	case OpIn:
		return ok && containsValue(f.Value, v)
	case OpArrayContains:
		return ok && containsValue(v, f.Value)
	}
	return false
}

func hasOrderFields(data map[string]interface{}, orders []Order) bool {
	for _, o := range orders {
		if _, ok := data[o.Field]; !ok {
			return false
		}
	}
	return true
}

func containsValue(list, needle interface{}) bool {
	rv := reflect.ValueOf(list)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return false
	}
	for i := 0; i < rv.Len(); i++ {
		if compareValues(rv.Index(i).Interface(), needle) == 0 {
			return true
		}
	}
	return false
}

// typeRank orders values of different types the way Firestore does.
func typeRank(v interface{}) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case int, int32, int64, float32, float64:
		return 2
	case time.Time:
		return 3
	case string:
		return 4
	default:
		return 5
	}
}

func sameKind(a, b interface{}) bool {
	return typeRank(a) == typeRank(b)
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	}
	return 0
}

func compareValues(a, b interface{}) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch av := a.(type) {
	case nil:
		return 0
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		default:
			return 1
		}
	case time.Time:
		bv := b.(time.Time)
		switch {
		case av.Before(bv):
			return -1
		case av.After(bv):
			return 1
		default:
			return 0
		}
	case string:
		return strings.Compare(av, b.(string))
	}
	if ra == 2 {
		af, bf := toFloat(a), toFloat(b)
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	if reflect.DeepEqual(a, b) {
		return 0
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func copyMap(in map[string]interface{}) map[string]interface{} {
	if in == nil {
		return map[string]interface{}{}
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v interface{}) interface{} {
	switch vv := v.(type) {
	case map[string]interface{}:
		return copyMap(vv)
	case []interface{}:
		out := make([]interface{}, len(vv))
		for i, x := range vv {
			out[i] = copyValue(x)
		}
		return out
	case []string:
		out := make([]string, len(vv))
		copy(out, vv)
		return out
	case []map[string]interface{}:
		out := make([]map[string]interface{}, len(vv))
		for i, x := range vv {
			out[i] = copyMap(x)
		}
		return out
	case *time.Time:
		if vv == nil {
			return nil
		}
		return *vv
	default:
		return v
	}
}

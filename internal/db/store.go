package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// ErrInvalidPath is returned for paths with the wrong number of segments.
var ErrInvalidPath = errors.New("invalid document path")

// Document is a single stored document. Data never contains the identifier.
type Document struct {
	ID   string
	Path string
	Data map[string]interface{}
}

// WithID returns a copy of the document data merged with its identifier
// under the reserved "id" key.
func (d Document) WithID() map[string]interface{} {
	out := make(map[string]interface{}, len(d.Data)+1)
	for k, v := range d.Data {
		out[k] = v
	}
	out["id"] = d.ID
	return out
}

// QueryIterator delivers the full result set of a live query every time it changes.
// Next blocks until the next snapshot; after Stop it returns iterator.Done.
type QueryIterator interface {
	Next() ([]Document, error)
	Stop()
}

// DocumentIterator delivers the current state of a single document every time it changes.
// Next returns a nil document when the document does not exist.
type DocumentIterator interface {
	Next() (*Document, error)
	Stop()
}

// DocumentStore is the document database the clinic backend reads and writes.
// Collection and document paths are slash separated, e.g. "therapists/t1/appointments".
type DocumentStore interface {
	// Add creates a document with a store-assigned identifier.
	Add(ctx context.Context, collectionPath string, data map[string]interface{}) (string, error)
	// Set writes a document at a known path, merging into existing fields when merge is set.
	Set(ctx context.Context, docPath string, data map[string]interface{}, merge bool) error
	// Update changes individual fields of an existing document.
	Update(ctx context.Context, docPath string, fields map[string]interface{}) error
	Delete(ctx context.Context, docPath string) error
	Get(ctx context.Context, docPath string) (*Document, error)
	Query(ctx context.Context, q Query) ([]Document, error)
	WatchQuery(ctx context.Context, q Query) QueryIterator
	WatchDocument(ctx context.Context, docPath string) DocumentIterator
}

// IsPermissionDenied reports whether err is a store-side authorization rejection.
func IsPermissionDenied(err error) bool {
	return status.Code(err) == codes.PermissionDenied
}

// SplitPath splits a slash separated path into its non-empty segments.
func SplitPath(path string) []string {
	raw := strings.Split(strings.Trim(path, "/"), "/")
	segs := raw[:0]
	for _, s := range raw {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// IsDocumentPath reports whether path addresses a document (even segment count).
func IsDocumentPath(path string) bool {
	n := len(SplitPath(path))
	return n > 0 && n%2 == 0
}

// IsCollectionPath reports whether path addresses a collection (odd segment count).
func IsCollectionPath(path string) bool {
	return len(SplitPath(path))%2 == 1
}

// ParentCollection returns the collection path and identifier of a document path.
func ParentCollection(docPath string) (string, string, error) {
	segs := SplitPath(docPath)
	if len(segs) == 0 || len(segs)%2 != 0 {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, docPath)
	}
	return strings.Join(segs[:len(segs)-1], "/"), segs[len(segs)-1], nil
}

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

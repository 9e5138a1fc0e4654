package db

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore implements DocumentStore on top of Cloud Firestore.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore wraps an initialized Firestore client.
func NewFirestoreStore(client *firestore.Client) (*FirestoreStore, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client is not initialized")
	}
	return &FirestoreStore{client: client}, nil
}

func (s *FirestoreStore) collection(path string) (*firestore.CollectionRef, error) {
	if !IsCollectionPath(path) {
		return nil, fmt.Errorf("%w: %q is not a collection path", ErrInvalidPath, path)
	}
	return s.client.Collection(strings.Trim(path, "/")), nil
}

func (s *FirestoreStore) doc(path string) (*firestore.DocumentRef, error) {
	if !IsDocumentPath(path) {
		return nil, fmt.Errorf("%w: %q is not a document path", ErrInvalidPath, path)
	}
	return s.client.Doc(strings.Trim(path, "/")), nil
}

// Add creates a document with a Firestore generated identifier.
func (s *FirestoreStore) Add(ctx context.Context, collectionPath string, data map[string]interface{}) (string, error) {
	col, err := s.collection(collectionPath)
	if err != nil {
		return "", err
	}
	ref, _, err := col.Add(ctx, data)
	if err != nil {
		return "", fmt.Errorf("failed to add document to %s: %w", collectionPath, err)
	}
	return ref.ID, nil
}

// Set writes a document, merging into existing fields when merge is set.
func (s *FirestoreStore) Set(ctx context.Context, docPath string, data map[string]interface{}, merge bool) error {
	ref, err := s.doc(docPath)
	if err != nil {
		return err
	}
	var opts []firestore.SetOption
	if merge {
		opts = append(opts, firestore.MergeAll)
	}
	if _, err := ref.Set(ctx, data, opts...); err != nil {
		return fmt.Errorf("failed to set document %s: %w", docPath, err)
	}
	return nil
}

// Update changes individual fields; it fails with ErrNotFound when the document is missing.
func (s *FirestoreStore) Update(ctx context.Context, docPath string, fields map[string]interface{}) error {
	ref, err := s.doc(docPath)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	updates := make([]firestore.Update, 0, len(keys))
	for _, k := range keys {
		updates = append(updates, firestore.Update{Path: k, Value: fields[k]})
	}
	if _, err := ref.Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("document %s: %w", docPath, ErrNotFound)
		}
		return fmt.Errorf("failed to update document %s: %w", docPath, err)
	}
	return nil
}

// Delete removes a document. Deleting a missing document is not an error.
func (s *FirestoreStore) Delete(ctx context.Context, docPath string) error {
	ref, err := s.doc(docPath)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", docPath, err)
	}
	return nil
}

// Get reads a single document.
func (s *FirestoreStore) Get(ctx context.Context, docPath string) (*Document, error) {
	ref, err := s.doc(docPath)
	if err != nil {
		return nil, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("document %s: %w", docPath, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get document %s: %w", docPath, err)
	}
	doc := fromSnapshot(snap)
	return &doc, nil
}

// Query runs a one-shot read of q.
func (s *FirestoreStore) Query(ctx context.Context, q Query) ([]Document, error) {
	fq, err := s.build(q)
	if err != nil {
		return nil, err
	}
	iter := fq.Documents(ctx)
	defer iter.Stop()

	var docs []Document
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query %s: %w", q, err)
		}
		docs = append(docs, fromSnapshot(snap))
	}
	return docs, nil
}

// WatchQuery opens a snapshot listener on q.
func (s *FirestoreStore) WatchQuery(ctx context.Context, q Query) QueryIterator {
	fq, err := s.build(q)
	if err != nil {
		return &failedQueryIterator{failedOnce{err: err}}
	}
	return &firestoreQueryIterator{it: fq.Snapshots(ctx)}
}

// WatchDocument opens a snapshot listener on a single document.
func (s *FirestoreStore) WatchDocument(ctx context.Context, docPath string) DocumentIterator {
	ref, err := s.doc(docPath)
	if err != nil {
		return &failedDocumentIterator{failedOnce{err: err}}
	}
	return &firestoreDocumentIterator{it: ref.Snapshots(ctx)}
}

func (s *FirestoreStore) build(q Query) (firestore.Query, error) {
	if err := q.Validate(); err != nil {
		return firestore.Query{}, err
	}
	var fq firestore.Query
	if q.Group {
		fq = s.client.CollectionGroup(q.Path).Query
	} else {
		fq = s.client.Collection(q.Path).Query
	}
	for _, f := range q.Filters {
		fq = fq.Where(f.Field, f.Op, f.Value)
	}
	for _, o := range q.Orders {
		dir := firestore.Asc
		if o.Desc {
			dir = firestore.Desc
		}
		fq = fq.OrderBy(o.Field, dir)
	}
	if q.Limit > 0 {
		fq = fq.Limit(q.Limit)
	}
	return fq, nil
}

type firestoreQueryIterator struct {
	it *firestore.QuerySnapshotIterator
}

func (i *firestoreQueryIterator) Next() ([]Document, error) {
	snap, err := i.it.Next()
	if err != nil {
		return nil, err
	}
	snaps, err := snap.Documents.GetAll()
	if err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(snaps))
	for _, ds := range snaps {
		docs = append(docs, fromSnapshot(ds))
	}
	return docs, nil
}

func (i *firestoreQueryIterator) Stop() { i.it.Stop() }

type firestoreDocumentIterator struct {
	it *firestore.DocumentSnapshotIterator
}

func (i *firestoreDocumentIterator) Next() (*Document, error) {
	snap, err := i.it.Next()
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, err
	}
	if snap == nil || !snap.Exists() {
		return nil, nil
	}
	doc := fromSnapshot(snap)
	return &doc, nil
}

func (i *firestoreDocumentIterator) Stop() { i.it.Stop() }

// failedOnce reports a setup error on the first Next and iterator.Done afterwards.
type failedOnce struct {
	err     error
	stopped bool
}

func (f *failedOnce) next() error {
	if f.stopped || f.err == nil {
		return iterator.Done
	}
	err := f.err
	f.err = nil
	return err
}

func (f *failedOnce) Stop() { f.stopped = true }

type failedQueryIterator struct{ failedOnce }

func (i *failedQueryIterator) Next() ([]Document, error) { return nil, i.next() }

type failedDocumentIterator struct{ failedOnce }

func (i *failedDocumentIterator) Next() (*Document, error) { return nil, i.next() }

func fromSnapshot(snap *firestore.DocumentSnapshot) Document {
	return Document{
		ID:   snap.Ref.ID,
		Path: relativePath(snap.Ref),
		Data: snap.Data(),
	}
}

// relativePath strips the "projects/…/documents/" prefix from a reference path.
func relativePath(ref *firestore.DocumentRef) string {
	const marker = "/documents/"
	if i := strings.Index(ref.Path, marker); i >= 0 {
		return ref.Path[i+len(marker):]
	}
	return ref.Path
}

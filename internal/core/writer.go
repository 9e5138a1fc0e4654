package core

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"clinic-backend-go/internal/authz"
	"clinic-backend-go/internal/db"
	"clinic-backend-go/internal/diag"
	"clinic-backend-go/internal/models"
)

// Writer is the single path from services to the document store. It
// authorizes every call, validates records before they are written and turns
// every rejected operation into a PermissionError that is published once on
// the diagnostics bus and returned to the caller.
type Writer struct {
	store  db.DocumentStore
	policy Authorizer
	bus    *diag.Bus
	logger *zap.Logger
}

// NewWriter creates a Writer. A nil authorizer performs no policy checks.
func NewWriter(store db.DocumentStore, authorizer Authorizer, bus *diag.Bus, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bus == nil {
		bus = diag.NewBus(logger)
	}
	return &Writer{store: store, policy: authorizer, bus: bus, logger: logger}
}

// Create adds rec to collectionPath under a store-assigned id.
func (w *Writer) Create(ctx context.Context, collectionPath string, rec models.Record) (string, error) {
	if err := rec.Validate(); err != nil {
		return "", err
	}
	data := rec.ToData()
	if err := w.authorize(ctx, diag.OpCreate, collectionPath); err != nil {
		return "", w.fail(ctx, diag.OpCreate, collectionPath, data, err)
	}
	id, err := w.store.Add(ctx, collectionPath, data)
	if err != nil {
		return "", w.fail(ctx, diag.OpCreate, collectionPath, data, err)
	}
	w.logger.Debug("Document created", zap.String("collection", collectionPath), zap.String("id", id))
	return id, nil
}

// CreateAt writes rec at a caller-chosen document path, replacing whatever is
// there. It is reported as a create, e.g. admins/{uid}.
func (w *Writer) CreateAt(ctx context.Context, docPath string, rec models.Record) error {
	return w.set(ctx, diag.OpCreate, docPath, rec, false)
}

// Set writes rec at docPath. With merge the fields are merged into an
// existing document; without it the document is overwritten.
func (w *Writer) Set(ctx context.Context, docPath string, rec models.Record, merge bool) error {
	return w.set(ctx, diag.OpUpdate, docPath, rec, merge)
}

func (w *Writer) set(ctx context.Context, op diag.Operation, docPath string, rec models.Record, merge bool) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	data := rec.ToData()
	if err := w.authorize(ctx, op, docPath); err != nil {
		return w.fail(ctx, op, docPath, data, err)
	}
	if err := w.store.Set(ctx, docPath, data, merge); err != nil {
		return w.fail(ctx, op, docPath, data, err)
	}
	w.logger.Debug("Document written", zap.String("path", docPath), zap.Bool("merge", merge))
	return nil
}

// Update changes individual fields of an existing document.
func (w *Writer) Update(ctx context.Context, docPath string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return fmt.Errorf("update %s: no fields", docPath)
	}
	if w.policy != nil {
		if err := w.policy.AuthorizeUpdate(ctx, docPath, fields); err != nil {
			return w.fail(ctx, diag.OpUpdate, docPath, fields, err)
		}
	}
	if err := w.store.Update(ctx, docPath, fields); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("update %s: %w", docPath, err)
		}
		return w.fail(ctx, diag.OpUpdate, docPath, fields, err)
	}
	w.logger.Debug("Document updated", zap.String("path", docPath))
	return nil
}

// Delete removes a document.
func (w *Writer) Delete(ctx context.Context, docPath string) error {
	if err := w.authorize(ctx, diag.OpDelete, docPath); err != nil {
		return w.fail(ctx, diag.OpDelete, docPath, nil, err)
	}
	if err := w.store.Delete(ctx, docPath); err != nil {
		return w.fail(ctx, diag.OpDelete, docPath, nil, err)
	}
	w.logger.Debug("Document deleted", zap.String("path", docPath))
	return nil
}

// Get reads one document. A missing document yields db.ErrNotFound and is
// not reported as a diagnostic.
func (w *Writer) Get(ctx context.Context, docPath string) (*db.Document, error) {
	if err := w.authorize(ctx, diag.OpGet, docPath); err != nil {
		return nil, w.fail(ctx, diag.OpGet, docPath, nil, err)
	}
	doc, err := w.store.Get(ctx, docPath)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, err
		}
		return nil, w.fail(ctx, diag.OpGet, docPath, nil, err)
	}
	return doc, nil
}

// List runs a one-shot query.
func (w *Writer) List(ctx context.Context, q db.Query) ([]db.Document, error) {
	if w.policy != nil {
		if err := w.policy.AuthorizeQuery(ctx, q); err != nil {
			return nil, w.fail(ctx, diag.OpList, q.Path, nil, err)
		}
	}
	docs, err := w.store.Query(ctx, q)
	if err != nil {
		return nil, w.fail(ctx, diag.OpList, q.Path, nil, err)
	}
	return docs, nil
}

func (w *Writer) authorize(ctx context.Context, op diag.Operation, path string) error {
	if w.policy == nil {
		return nil
	}
	return w.policy.Authorize(ctx, op, path)
}

func (w *Writer) fail(ctx context.Context, op diag.Operation, path string, data map[string]interface{}, cause error) error {
	perr := diag.NewPermissionError(op, path, authz.ActorOf(ctx), data, cause)
	fields := []zap.Field{
		zap.String("operation", string(op)),
		zap.String("path", path),
		zap.Error(cause),
	}
	if errors.Is(cause, authz.ErrDenied) || db.IsPermissionDenied(cause) {
		w.logger.Debug("Store operation rejected", fields...)
	} else {
		w.logger.Warn("Store operation failed", fields...)
	}
	w.bus.Publish(ctx, perr)
	return perr
}

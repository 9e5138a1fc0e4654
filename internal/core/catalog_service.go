package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"clinic-backend-go/internal/db"
	"clinic-backend-go/internal/models"
)

var (
	ErrUnknownCollection = errors.New("unknown catalog collection")
	ErrRecordNotFound    = errors.New("record not found")
	ErrKindMismatch      = errors.New("record kind does not match collection")
	ErrInvalidPatch      = errors.New("invalid patch document")
	// ErrDuplicatePlatform is returned when a social link for the platform already exists.
	ErrDuplicatePlatform = errors.New("a link for this platform already exists")
)

// listOrder is the field each catalog collection is listed by.
var listOrder = map[string]db.Order{
	models.ConditionsCollection:        {Field: "name"},
	models.TreatmentGuidesCollection:   {Field: "title"},
	models.TherapistsCollection:        {Field: "name"},
	models.ProductsCollection:          {Field: "name"},
	models.SubscriptionPlansCollection: {Field: "price"},
	models.SocialLinksCollection:       {Field: "platform"},
}

type catalogService struct {
	writer *Writer
	logger *zap.Logger
}

// NewCatalogService creates a CatalogService writing through w.
func NewCatalogService(w *Writer, logger *zap.Logger) CatalogService {
	return &catalogService{writer: w, logger: logger}
}

func (s *catalogService) kindOf(collection string) (models.Kind, error) {
	kind, ok := models.CatalogKind(collection)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCollection, collection)
	}
	return kind, nil
}

func (s *catalogService) List(ctx context.Context, collection string) ([]models.Record, error) {
	kind, err := s.kindOf(collection)
	if err != nil {
		return nil, err
	}
	q := db.Collection(collection)
	if o, ok := listOrder[collection]; ok {
		q = q.OrderBy(o.Field, o.Desc)
	}
	docs, err := s.writer.List(ctx, q)
	if err != nil {
		return nil, err
	}
	return decodeAll(kind, docs)
}

func (s *catalogService) Get(ctx context.Context, collection, id string) (models.Record, error) {
	kind, err := s.kindOf(collection)
	if err != nil {
		return nil, err
	}
	return s.get(ctx, kind, collection, id)
}

func (s *catalogService) get(ctx context.Context, kind models.Kind, collection, id string) (models.Record, error) {
	doc, err := s.writer.Get(ctx, db.Join(collection, id))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s/%s", ErrRecordNotFound, collection, id)
		}
		return nil, err
	}
	return models.Decode(kind, doc.ID, doc.Data)
}

func (s *catalogService) FindBySlug(ctx context.Context, collection, slug string) (models.Record, error) {
	kind, err := s.kindOf(collection)
	if err != nil {
		return nil, err
	}
	docs, err := s.writer.List(ctx, db.Collection(collection).Where("slug", db.OpEqual, slug))
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: %s with slug %q", ErrRecordNotFound, collection, slug)
	}
	first := docs[0]
	for _, d := range docs[1:] {
		if d.ID < first.ID {
			first = d
		}
	}
	return models.Decode(kind, first.ID, first.Data)
}

func (s *catalogService) Create(ctx context.Context, collection string, rec models.Record) (models.Record, error) {
	kind, err := s.checkKind(collection, rec)
	if err != nil {
		return nil, err
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkUniquePlatform(ctx, rec, ""); err != nil {
		return nil, err
	}
	id, err := s.writer.Create(ctx, collection, rec)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Catalog record created", zap.String("collection", collection), zap.String("id", id))
	return models.Decode(kind, id, rec.ToData())
}

func (s *catalogService) Replace(ctx context.Context, collection, id string, rec models.Record) (models.Record, error) {
	kind, err := s.checkKind(collection, rec)
	if err != nil {
		return nil, err
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkUniquePlatform(ctx, rec, id); err != nil {
		return nil, err
	}
	if err := s.writer.Set(ctx, db.Join(collection, id), rec, false); err != nil {
		return nil, err
	}
	return models.Decode(kind, id, rec.ToData())
}

func (s *catalogService) Patch(ctx context.Context, collection, id string, patch []byte) (models.Record, error) {
	kind, err := s.kindOf(collection)
	if err != nil {
		return nil, err
	}
	rec, err := s.get(ctx, kind, collection, id)
	if err != nil {
		return nil, err
	}
	rec, err = applyPatch(kind, id, rec, patch)
	if err != nil {
		return nil, err
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkUniquePlatform(ctx, rec, id); err != nil {
		return nil, err
	}
	// The whole merged record is written so cleared fields leave the document too.
	if err := s.writer.Set(ctx, db.Join(collection, id), rec, false); err != nil {
		return nil, err
	}
	return models.Decode(kind, id, rec.ToData())
}

// applyPatch overlays a partial JSON document on rec. A key set to null
// removes the field.
func applyPatch(kind models.Kind, id string, rec models.Record, patch []byte) (models.Record, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(patch, &keys); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	if err := json.Unmarshal(patch, rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	data := rec.ToData()
	for key, raw := range keys {
		if string(bytes.TrimSpace(raw)) == "null" {
			delete(data, key)
		}
	}
	return models.Decode(kind, id, data)
}

func (s *catalogService) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.kindOf(collection); err != nil {
		return err
	}
	if err := s.writer.Delete(ctx, db.Join(collection, id)); err != nil {
		return err
	}
	s.logger.Info("Catalog record deleted", zap.String("collection", collection), zap.String("id", id))
	return nil
}

func (s *catalogService) GetContactInformation(ctx context.Context) (*models.ContactInformation, error) {
	doc, err := s.writer.Get(ctx, models.ContactInformationDoc)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return &models.ContactInformation{}, nil
		}
		return nil, err
	}
	rec, err := models.Decode(models.KindContactInformation, doc.ID, doc.Data)
	if err != nil {
		return nil, err
	}
	return rec.(*models.ContactInformation), nil
}

func (s *catalogService) SetContactInformation(ctx context.Context, info *models.ContactInformation) error {
	return s.writer.Set(ctx, models.ContactInformationDoc, info, false)
}

func (s *catalogService) checkKind(collection string, rec models.Record) (models.Kind, error) {
	kind, err := s.kindOf(collection)
	if err != nil {
		return "", err
	}
	if rec.Kind() != kind {
		return "", fmt.Errorf("%w: %s into %s", ErrKindMismatch, rec.Kind(), collection)
	}
	return kind, nil
}

// checkUniquePlatform rejects a social link whose platform is already used by
// another document. selfID is the document being replaced, if any.
func (s *catalogService) checkUniquePlatform(ctx context.Context, rec models.Record, selfID string) error {
	link, ok := rec.(*models.SocialLink)
	if !ok {
		return nil
	}
	q := db.Collection(models.SocialLinksCollection).Where("platform", db.OpEqual, link.Platform)
	docs, err := s.writer.List(ctx, q)
	if err != nil {
		return err
	}
	for _, d := range docs {
		if d.ID != selfID {
			return fmt.Errorf("%w: %s", ErrDuplicatePlatform, link.Platform)
		}
	}
	return nil
}

func decodeAll(kind models.Kind, docs []db.Document) ([]models.Record, error) {
	out := make([]models.Record, 0, len(docs))
	for _, d := range docs {
		rec, err := models.Decode(kind, d.ID, d.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

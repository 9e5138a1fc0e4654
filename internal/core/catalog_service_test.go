package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"clinic-backend-go/internal/diag"
	"clinic-backend-go/internal/models"
)

func TestCatalogDuplicateSlugsAreAllowed(t *testing.T) {
	f := newFixture(t)
	svc := NewCatalogService(f.writer, zap.NewNop())
	ctx := asAdmin()

	first, err := svc.Create(ctx, models.ConditionsCollection, &models.Condition{Name: "Back pain", Slug: "back-pain", Description: "Lower back"})
	require.NoError(t, err)
	second, err := svc.Create(ctx, models.ConditionsCollection, &models.Condition{Name: "Back pain (chronic)", Slug: "back-pain", Description: "Long term"})
	require.NoError(t, err)
	assert.NotEqual(t, first.(*models.Condition).ID, second.(*models.Condition).ID)

	list, err := svc.List(anonymous(), models.ConditionsCollection)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Back pain", list[0].(*models.Condition).Name)

	found, err := svc.FindBySlug(anonymous(), models.ConditionsCollection, "back-pain")
	require.NoError(t, err)
	assert.Equal(t, "back-pain", found.(*models.Condition).Slug)

	_, err = svc.FindBySlug(anonymous(), models.ConditionsCollection, "missing")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestCatalogSocialLinkPlatformIsUnique(t *testing.T) {
	f := newFixture(t)
	svc := NewCatalogService(f.writer, zap.NewNop())
	ctx := asAdmin()

	link, err := svc.Create(ctx, models.SocialLinksCollection, &models.SocialLink{Platform: models.PlatformInstagram, URL: "https://instagram.com/clinic"})
	require.NoError(t, err)
	id := link.(*models.SocialLink).ID

	_, err = svc.Create(ctx, models.SocialLinksCollection, &models.SocialLink{Platform: models.PlatformInstagram, URL: "https://instagram.com/other"})
	assert.ErrorIs(t, err, ErrDuplicatePlatform)

	updated, err := svc.Replace(ctx, models.SocialLinksCollection, id, &models.SocialLink{Platform: models.PlatformInstagram, URL: "https://instagram.com/new"})
	require.NoError(t, err)
	assert.Equal(t, "https://instagram.com/new", updated.(*models.SocialLink).URL)

	other, err := svc.Create(ctx, models.SocialLinksCollection, &models.SocialLink{Platform: models.PlatformTwitter, URL: "https://twitter.com/clinic"})
	require.NoError(t, err)
	_, err = svc.Patch(ctx, models.SocialLinksCollection, other.(*models.SocialLink).ID, []byte(`{"platform":"instagram"}`))
	assert.ErrorIs(t, err, ErrDuplicatePlatform)
}

func TestCatalogPatchMergesFields(t *testing.T) {
	f := newFixture(t)
	svc := NewCatalogService(f.writer, zap.NewNop())
	ctx := asAdmin()

	created, err := svc.Create(ctx, models.ProductsCollection, &models.Product{Name: "Foam roller", Description: "Firm", Price: 25})
	require.NoError(t, err)
	id := created.(*models.Product).ID

	patched, err := svc.Patch(ctx, models.ProductsCollection, id, []byte(`{"price": 30}`))
	require.NoError(t, err)
	p := patched.(*models.Product)
	assert.Equal(t, 30.0, p.Price)
	assert.Equal(t, "Firm", p.Description)

	_, err = svc.Patch(ctx, models.ProductsCollection, id, []byte(`{"price": -1}`))
	var verr *models.ValidationError
	assert.True(t, errors.As(err, &verr))

	_, err = svc.Patch(ctx, models.ProductsCollection, id, []byte(`not json`))
	assert.ErrorIs(t, err, ErrInvalidPatch)

	_, err = svc.Patch(ctx, models.ProductsCollection, "missing", []byte(`{}`))
	assert.ErrorIs(t, err, ErrRecordNotFound)

	got, err := svc.Get(anonymous(), models.ProductsCollection, id)
	require.NoError(t, err)
	assert.Equal(t, 30.0, got.(*models.Product).Price)
}

func TestCatalogPatchClearsOptionalFields(t *testing.T) {
	f := newFixture(t)
	svc := NewCatalogService(f.writer, zap.NewNop())
	ctx := asAdmin()

	created, err := svc.Create(ctx, models.TreatmentGuidesCollection, &models.TreatmentGuide{
		Title:       "Hamstring stretch",
		Slug:        "hamstring-stretch",
		Description: "Gentle stretch",
		ImageURL:    "https://img.example/h.png",
		VideoURL:    "https://v.example/x",
	})
	require.NoError(t, err)
	id := created.(*models.TreatmentGuide).ID
	path := models.TreatmentGuidesCollection + "/" + id

	patched, err := svc.Patch(ctx, models.TreatmentGuidesCollection, id, []byte(`{"videoUrl": ""}`))
	require.NoError(t, err)
	assert.Empty(t, patched.(*models.TreatmentGuide).VideoURL)

	doc, err := f.store.Get(ctx, path)
	require.NoError(t, err)
	assert.NotContains(t, doc.Data, "videoUrl")
	assert.Equal(t, "https://img.example/h.png", doc.Data["imageUrl"])
	assert.Equal(t, "Gentle stretch", doc.Data["description"])

	patched, err = svc.Patch(ctx, models.TreatmentGuidesCollection, id, []byte(`{"imageUrl": null}`))
	require.NoError(t, err)
	assert.Empty(t, patched.(*models.TreatmentGuide).ImageURL)

	doc, err = f.store.Get(ctx, path)
	require.NoError(t, err)
	assert.NotContains(t, doc.Data, "imageUrl")
	assert.Equal(t, "hamstring-stretch", doc.Data["slug"])
}

func TestCatalogRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	svc := NewCatalogService(f.writer, zap.NewNop())
	ctx := asAdmin()

	_, err := svc.List(ctx, "secrets")
	assert.ErrorIs(t, err, ErrUnknownCollection)

	_, err = svc.Create(ctx, models.ProductsCollection, &models.Therapist{Name: "Ana", Title: "PT"})
	assert.ErrorIs(t, err, ErrKindMismatch)

	assert.ErrorIs(t, svc.Delete(ctx, "secrets", "x"), ErrUnknownCollection)
}

func TestCatalogWritesRequireAdmin(t *testing.T) {
	f := newFixture(t)
	svc := NewCatalogService(f.writer, zap.NewNop())

	_, err := svc.Create(asUser("patient"), models.TherapistsCollection, &models.Therapist{Name: "Ana", Title: "PT"})
	var perr *diag.PermissionError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, diag.OpCreate, perr.Operation)
	assert.Len(t, f.events.all(), 1)
}

func TestCatalogDelete(t *testing.T) {
	f := newFixture(t)
	svc := NewCatalogService(f.writer, zap.NewNop())
	ctx := asAdmin()

	created, err := svc.Create(ctx, models.TherapistsCollection, &models.Therapist{Name: "Ana", Title: "PT"})
	require.NoError(t, err)
	id := created.(*models.Therapist).ID

	require.NoError(t, svc.Delete(ctx, models.TherapistsCollection, id))
	_, err = svc.Get(ctx, models.TherapistsCollection, id)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestContactInformation(t *testing.T) {
	f := newFixture(t)
	svc := NewCatalogService(f.writer, zap.NewNop())

	info, err := svc.GetContactInformation(anonymous())
	require.NoError(t, err)
	assert.Equal(t, &models.ContactInformation{}, info)

	require.NoError(t, svc.SetContactInformation(asAdmin(), &models.ContactInformation{Address: "1 Main St", Phone: "555-0100", Email: "hello@clinic.example"}))
	info, err = svc.GetContactInformation(anonymous())
	require.NoError(t, err)
	assert.Equal(t, "1 Main St", info.Address)

	err = svc.SetContactInformation(asUser("patient"), &models.ContactInformation{Address: "elsewhere"})
	assert.Error(t, err)

	require.NoError(t, svc.SetContactInformation(asAdmin(), &models.ContactInformation{Address: "1 Main St", OpeningHours: "Mon-Fri 9-17"}))
	require.NoError(t, svc.SetContactInformation(asAdmin(), &models.ContactInformation{Address: "2 High St"}))
	doc, err := f.store.Get(asAdmin(), models.ContactInformationDoc)
	require.NoError(t, err)
	assert.NotContains(t, doc.Data, "openingHours")
	assert.Equal(t, "2 High St", doc.Data["address"])
}

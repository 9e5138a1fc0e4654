package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"clinic-backend-go/internal/ai"
	"clinic-backend-go/internal/authz"
	"clinic-backend-go/internal/core"
	"clinic-backend-go/internal/db"
	"clinic-backend-go/internal/diag"
	"clinic-backend-go/internal/watch"
)

const (
	adminToken = "Bearer admin-token"
	userToken  = "Bearer user-token"
	adminUID   = "admin-uid"
)

type fakeVerifier struct{}

func (fakeVerifier) VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error) {
	switch idToken {
	case "admin-token":
		return &auth.Token{UID: adminUID, Claims: map[string]interface{}{"email": "admin@clinic.example", "name": "Dr Admin"}}, nil
	case "user-token":
		return &auth.Token{UID: "u1", Claims: map[string]interface{}{"email": "pat@example.com", "name": "Pat"}}, nil
	}
	return nil, errors.New("invalid token")
}

type fakeGenerator struct {
	reply string
	err   error
}

func (g *fakeGenerator) GenerateField(ctx context.Context, prompt string, field ai.OutputField) (string, error) {
	return g.reply, g.err
}

type eventLog struct {
	mu     sync.Mutex
	events []*diag.PermissionError
}

func (l *eventLog) handle(ctx context.Context, e diag.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e.(*diag.PermissionError))
	return nil
}

func (l *eventLog) all() []*diag.PermissionError {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*diag.PermissionError(nil), l.events...)
}

type testApp struct {
	router *gin.Engine
	store  *db.MemoryStore
	bus    *diag.Bus
	events *eventLog
	gen    *fakeGenerator
}

type appOption func(*Services)

func newTestApp(t *testing.T, opts ...appOption) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	store := db.NewMemoryStore()
	policy := authz.NewPolicy(store, adminUID)
	bus := diag.NewBus(logger)
	events := &eventLog{}
	bus.Subscribe(diag.TopicPermissionError, events.handle)
	writer := core.NewWriter(store, policy, bus, logger)
	gen := &fakeGenerator{}

	svc := Services{
		Catalog:       core.NewCatalogService(writer, logger),
		Admins:        core.NewAdminService(writer, policy, logger),
		Booking:       core.NewBookingService(writer, time.UTC, logger),
		Subscriptions: core.NewSubscriptionService(writer, logger),
		Contact:       core.NewContactService(writer, nil, logger),
		Users:         core.NewUserService(writer),
		Flows:         ai.NewFlows(gen, logger),
		Watch:         watch.Deps{Store: store, Guard: policy, Bus: bus, Logger: logger},
	}
	for _, opt := range opts {
		opt(&svc)
	}

	router := gin.New()
	SetupRoutes(router, logger, fakeVerifier{}, svc)
	return &testApp{router: router, store: store, bus: bus, events: events, gen: gen}
}

func (a *testApp) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testApp) seed(t *testing.T, path string, data map[string]interface{}) {
	t.Helper()
	require.NoError(t, a.store.Set(context.Background(), path, data, false))
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

func sciatica() map[string]interface{} {
	return map[string]interface{}{"name": "Sciatica", "slug": "sciatica", "description": "Nerve pain along the leg."}
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)
	w := app.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"UP"`)
}

func TestCatalogAdminCRUD(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/api/v1/conditions", adminToken, sciatica())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Message string                 `json:"message"`
		Data    map[string]interface{} `json:"data"`
	}
	decode(t, w, &created)
	assert.Equal(t, "Saved successfully.", created.Message)
	id, _ := created.Data["id"].(string)
	require.NotEmpty(t, id)

	w = app.do(t, http.MethodPost, "/api/v1/conditions", adminToken, sciatica())
	require.Equal(t, http.StatusCreated, w.Code, "duplicate slugs are allowed")

	w = app.do(t, http.MethodGet, "/api/v1/conditions", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]interface{}
	decode(t, w, &list)
	assert.Len(t, list, 2)

	w = app.do(t, http.MethodGet, "/api/v1/conditions?slug=sciatica", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = app.do(t, http.MethodPatch, "/api/v1/conditions/"+id, adminToken, `{"description":"Updated."}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = app.do(t, http.MethodGet, "/api/v1/conditions/"+id, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got map[string]interface{}
	decode(t, w, &got)
	assert.Equal(t, "Updated.", got["description"])
	assert.Equal(t, "Sciatica", got["name"])

	w = app.do(t, http.MethodDelete, "/api/v1/conditions/"+id, adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = app.do(t, http.MethodGet, "/api/v1/conditions/"+id, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Empty(t, app.events.all())
}

func TestCatalogWriteDeniedPublishesDiagnostic(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/api/v1/conditions", "", sciatica())
	require.Equal(t, http.StatusForbidden, w.Code)
	var resp ErrorResponse
	decode(t, w, &resp)
	assert.Equal(t, msgPermission, resp.Error)
	assert.Empty(t, resp.Details)

	events := app.events.all()
	require.Len(t, events, 1)
	assert.Equal(t, diag.OpCreate, events[0].Operation)
	assert.Equal(t, "conditions", events[0].Path)
	assert.Equal(t, "sciatica", events[0].RequestResourceData["slug"])

	w = app.do(t, http.MethodPost, "/api/v1/conditions", userToken, sciatica())
	assert.Equal(t, http.StatusForbidden, w.Code)
	events = app.events.all()
	require.Len(t, events, 2)
	assert.Equal(t, "u1", events[1].Actor)
}

func TestCatalogRequestErrors(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/api/v1/conditions", adminToken, map[string]interface{}{"name": "No slug"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Validation failed")

	w = app.do(t, http.MethodPost, "/api/v1/conditions", adminToken, `{"name":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(t, http.MethodPatch, "/api/v1/conditions/missing", adminToken, `{"name":"x"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	link := map[string]interface{}{"platform": "twitter", "url": "https://twitter.com/clinic"}
	require.Equal(t, http.StatusCreated, app.do(t, http.MethodPost, "/api/v1/socialLinks", adminToken, link).Code)
	w = app.do(t, http.MethodPost, "/api/v1/socialLinks", adminToken, link)
	assert.Equal(t, http.StatusConflict, w.Code)

	assert.Empty(t, app.events.all(), "validation and conflicts are not permission diagnostics")
}

func TestContactInformation(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodGet, "/api/v1/contact-information", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	info := map[string]interface{}{"address": "1 Main St", "phone": "555-0100", "email": "hello@clinic.example"}
	w = app.do(t, http.MethodPut, "/api/v1/contact-information", adminToken, info)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = app.do(t, http.MethodGet, "/api/v1/contact-information", "", nil)
	assert.Contains(t, w.Body.String(), "1 Main St")

	w = app.do(t, http.MethodPut, "/api/v1/contact-information", userToken, info)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestContactAndFeedback(t *testing.T) {
	app := newTestApp(t)

	msg := map[string]interface{}{"name": "Jo", "email": "jo@example.com", "message": "Do you treat tennis elbow?"}
	w := app.do(t, http.MethodPost, "/api/v1/contact", "", msg)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = app.do(t, http.MethodGet, "/api/v1/contact", "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.do(t, http.MethodGet, "/api/v1/contact", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var subs []map[string]interface{}
	decode(t, w, &subs)
	require.Len(t, subs, 1)

	w = app.do(t, http.MethodDelete, "/api/v1/contact/"+subs[0]["id"].(string), adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = app.do(t, http.MethodPost, "/api/v1/feedback", "", map[string]interface{}{"message": "Great care", "rating": 5})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.do(t, http.MethodPost, "/api/v1/feedback", userToken, map[string]interface{}{"message": "Great care", "rating": 5})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = app.do(t, http.MethodGet, "/api/v1/feedback?limit=5", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var fb []map[string]interface{}
	decode(t, w, &fb)
	require.Len(t, fb, 1)
	assert.Equal(t, "Pat", fb[0]["userName"])

	w = app.do(t, http.MethodGet, "/api/v1/feedback?limit=-1", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBookingFlow(t *testing.T) {
	app := newTestApp(t)
	app.seed(t, "therapists/t1", map[string]interface{}{"name": "Ana", "title": "Physiotherapist"})

	req := map[string]interface{}{"date": "2024-06-01", "time": "09:00"}
	w := app.do(t, http.MethodPost, "/api/v1/therapists/t1/appointments", "", req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = app.do(t, http.MethodPost, "/api/v1/therapists/t1/appointments", userToken, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		Data map[string]interface{} `json:"data"`
	}
	decode(t, w, &resp)
	assert.Equal(t, "2024-06-01T09:00:00.000Z", resp.Data["appointmentDateTime"])
	assert.Equal(t, "pending", resp.Data["status"])
	assert.Equal(t, "Pat", resp.Data["patientName"])
	assert.Equal(t, "pat@example.com", resp.Data["patientEmail"])

	w = app.do(t, http.MethodPost, "/api/v1/therapists/nobody/appointments", userToken, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = app.do(t, http.MethodPost, "/api/v1/therapists/t1/appointments", userToken, map[string]interface{}{"date": "2024-13-01", "time": "09:00"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(t, http.MethodGet, "/api/v1/therapists/t1/appointments", userToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.do(t, http.MethodGet, "/api/v1/therapists/t1/appointments", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var appts []map[string]interface{}
	decode(t, w, &appts)
	require.Len(t, appts, 1)

	path := "/api/v1/therapists/t1/appointments/" + appts[0]["id"].(string)
	w = app.do(t, http.MethodPatch, path, adminToken, map[string]interface{}{"status": "confirmed"})
	assert.Equal(t, http.StatusOK, w.Code)
	w = app.do(t, http.MethodPatch, path, adminToken, map[string]interface{}{"status": "done"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAvailability(t *testing.T) {
	app := newTestApp(t)
	app.seed(t, "therapists/t1", map[string]interface{}{"name": "Ana", "title": "Physiotherapist"})

	w := app.do(t, http.MethodGet, "/api/v1/therapists/t1/availability/2024-06-01", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"date":"2024-06-01","slots":[],"published":false}`, w.Body.String())

	w = app.do(t, http.MethodPut, "/api/v1/therapists/t1/availability/2024-06-01", adminToken, map[string]interface{}{"slots": []string{"10:00", "11:00"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = app.do(t, http.MethodGet, "/api/v1/therapists/t1/availability/2024-06-01", "", nil)
	assert.JSONEq(t, `{"date":"2024-06-01","slots":["10:00","11:00"],"published":true}`, w.Body.String())

	w = app.do(t, http.MethodPost, "/api/v1/therapists/t1/appointments", userToken, map[string]interface{}{"date": "2024-06-01", "time": "09:00"})
	assert.Equal(t, http.StatusConflict, w.Code)
	w = app.do(t, http.MethodPost, "/api/v1/therapists/t1/appointments", userToken, map[string]interface{}{"date": "2024-06-01", "time": "10:00"})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestSubscriptions(t *testing.T) {
	app := newTestApp(t)
	app.seed(t, "subscriptionPlans/p1", map[string]interface{}{"name": "Monthly", "price": 49.0, "durationInDays": int64(30)})

	w := app.do(t, http.MethodPost, "/api/v1/me/subscriptions", userToken, map[string]interface{}{"planId": "p1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Message string                 `json:"message"`
		Data    map[string]interface{} `json:"data"`
	}
	decode(t, w, &created)
	assert.Equal(t, "Subscribed to Monthly.", created.Message)
	assert.Equal(t, "active", created.Data["derivedStatus"])
	subID := created.Data["id"].(string)

	w = app.do(t, http.MethodPost, "/api/v1/me/subscriptions", userToken, map[string]interface{}{"planId": "gone"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = app.do(t, http.MethodGet, "/api/v1/admin/subscriptions", userToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.do(t, http.MethodPatch, "/api/v1/admin/users/u1/subscriptions/"+subID, adminToken, map[string]interface{}{"status": "cancelled"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = app.do(t, http.MethodGet, "/api/v1/admin/subscriptions", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var all []map[string]interface{}
	decode(t, w, &all)
	require.Len(t, all, 1)
	assert.Equal(t, "cancelled", all[0]["derivedStatus"])

	w = app.do(t, http.MethodPost, "/api/v1/admin/users/u2/subscriptions", adminToken, map[string]interface{}{"planId": "p1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"endDateLabel":"Never"`)

	w = app.do(t, http.MethodGet, "/api/v1/me/subscriptions", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var mine []map[string]interface{}
	decode(t, w, &mine)
	assert.Len(t, mine, 1)

	w = app.do(t, http.MethodPost, "/api/v1/me/subscriptions/"+subID+"/cancel", userToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = app.do(t, http.MethodPost, "/api/v1/me/subscriptions/missing/cancel", userToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUsers(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodGet, "/api/v1/users/me", userToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = app.do(t, http.MethodPost, "/api/v1/users/initialize", userToken, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = app.do(t, http.MethodPost, "/api/v1/users/initialize", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = app.do(t, http.MethodGet, "/api/v1/users/me", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pat@example.com")

	w = app.do(t, http.MethodGet, "/api/v1/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdmins(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodGet, "/api/v1/admin/me", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"uid":"u1","isAdmin":false}`, w.Body.String())

	w = app.do(t, http.MethodPost, "/api/v1/admin/admins", userToken, map[string]interface{}{"uid": "u1"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.do(t, http.MethodPost, "/api/v1/admin/admins", adminToken, map[string]interface{}{"uid": "u1", "email": "pat@example.com"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = app.do(t, http.MethodGet, "/api/v1/admin/me", userToken, nil)
	assert.JSONEq(t, `{"uid":"u1","isAdmin":true}`, w.Body.String())

	w = app.do(t, http.MethodGet, "/api/v1/admin/admins", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = app.do(t, http.MethodDelete, "/api/v1/admin/admins/u1", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = app.do(t, http.MethodGet, "/api/v1/admin/admins", userToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAIEndpoints(t *testing.T) {
	app := newTestApp(t)
	app.gen.reply = "Sciatica is nerve pain."

	w := app.do(t, http.MethodPost, "/api/v1/ai/summarize-condition", "", map[string]interface{}{"conditionName": "Sciatica"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"summary":"Sciatica is nerve pain."}`, w.Body.String())

	w = app.do(t, http.MethodPost, "/api/v1/ai/suggest-exercise", "", map[string]interface{}{"painDescription": "sore"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	app.gen.err = errors.New("quota exceeded")
	w = app.do(t, http.MethodPost, "/api/v1/ai/suggest-exercise", "", map[string]interface{}{"painDescription": "stiff neck in the mornings"})
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp ErrorResponse
	decode(t, w, &resp)
	assert.Equal(t, ai.UnavailableMessage, resp.Error)
}

func TestDescribeAuthErrorEndpoint(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodGet, "/api/v1/auth/errors/auth/popup-blocked", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp AuthErrorResponse
	decode(t, w, &resp)
	assert.Equal(t, "auth/popup-blocked", resp.Code)
	assert.True(t, resp.Known)

	w = app.do(t, http.MethodGet, "/api/v1/auth/errors/auth/something-new", "", nil)
	decode(t, w, &resp)
	assert.False(t, resp.Known)
	assert.Contains(t, resp.Message, "auth/something-new")
}

func TestRecentDiagnostics(t *testing.T) {
	app := newTestApp(t)
	w := app.do(t, http.MethodGet, "/api/v1/admin/diagnostics", adminToken, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	mr := miniredis.RunT(t)
	client, err := diag.NewRedisClient(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	sink := diag.NewRedisSink(client, "diagnostics:test", 100)

	app = newTestApp(t, func(s *Services) { s.Diagnostics = sink })
	app.bus.Subscribe(diag.TopicPermissionError, sink.Handle)

	require.Equal(t, http.StatusForbidden, app.do(t, http.MethodPost, "/api/v1/conditions", "", sciatica()).Code)

	w = app.do(t, http.MethodGet, "/api/v1/admin/diagnostics?limit=10", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var records []diag.Record
	decode(t, w, &records)
	require.Len(t, records, 1)
	assert.Equal(t, "conditions", records[0].Path)
	assert.Equal(t, diag.OpCreate, records[0].Operation)
	assert.Equal(t, "Sciatica", records[0].RequestResourceData["name"])

	w = app.do(t, http.MethodGet, "/api/v1/admin/diagnostics?limit=0", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = app.do(t, http.MethodGet, "/api/v1/admin/diagnostics", userToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

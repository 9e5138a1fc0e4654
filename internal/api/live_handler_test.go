package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-backend-go/internal/db"
	"clinic-backend-go/internal/diag"
)

type sseEvent struct {
	Name string
	Data string
}

type sseStream struct {
	t      *testing.T
	resp   *http.Response
	reader *bufio.Reader
}

func openStream(t *testing.T, srv *httptest.Server, path, token string) *sseStream {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return &sseStream{t: t, resp: resp, reader: bufio.NewReader(resp.Body)}
}

// next reads one event. ok is false once the server has closed the stream.
func (s *sseStream) next() (ev sseEvent, ok bool) {
	s.t.Helper()
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return ev, false
		}
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if ev.Name != "" || ev.Data != "" {
				return ev, true
			}
		case strings.HasPrefix(line, "event:"):
			ev.Name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			ev.Data += strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
}

func (s *sseStream) nextState() (LiveState, bool) {
	s.t.Helper()
	ev, ok := s.next()
	if !ok {
		return LiveState{}, false
	}
	require.Equal(s.t, liveStateEvent, ev.Name)
	var st LiveState
	require.NoError(s.t, json.Unmarshal([]byte(ev.Data), &st))
	return st, true
}

// waitState reads states until pred holds.
func (s *sseStream) waitState(pred func(LiveState) bool) LiveState {
	s.t.Helper()
	for {
		st, ok := s.nextState()
		require.True(s.t, ok, "stream closed before the expected state")
		if pred(st) {
			return st
		}
	}
}

func items(st LiveState) []map[string]interface{} {
	list, _ := st.Data.([]interface{})
	out := make([]map[string]interface{}, 0, len(list))
	for _, v := range list {
		if m, ok := v.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

func settledWith(n int) func(LiveState) bool {
	return func(st LiveState) bool { return !st.Loading && len(items(st)) == n }
}

func TestLiveCollectionStreamsWrites(t *testing.T) {
	app := newTestApp(t)
	srv := httptest.NewServer(app.router)
	t.Cleanup(srv.Close)

	stream := openStream(t, srv, "/api/v1/live/collections/conditions?orderBy=name", "")
	require.Equal(t, http.StatusOK, stream.resp.StatusCode)
	assert.Equal(t, "text/event-stream", stream.resp.Header.Get("Content-Type"))

	stream.waitState(settledWith(0))

	require.Equal(t, http.StatusCreated, app.do(t, http.MethodPost, "/api/v1/conditions", adminToken, sciatica()).Code)

	st := stream.waitState(settledWith(1))
	got := items(st)[0]
	assert.Equal(t, "Sciatica", got["name"])
	assert.NotEmpty(t, got["id"])
	assert.Empty(t, st.Error)
}

func TestLiveCollectionSendsEachStateOnce(t *testing.T) {
	app := newTestApp(t)
	srv := httptest.NewServer(app.router)
	t.Cleanup(srv.Close)

	stream := openStream(t, srv, "/api/v1/live/collections/conditions", "")
	loading := 0
	for {
		st, ok := stream.nextState()
		require.True(t, ok)
		if st.Loading {
			loading++
			continue
		}
		require.True(t, settledWith(0)(st))
		break
	}
	assert.LessOrEqual(t, loading, 1)

	require.Equal(t, http.StatusCreated, app.do(t, http.MethodPost, "/api/v1/conditions", adminToken, sciatica()).Code)
	st, ok := stream.nextState()
	require.True(t, ok)
	assert.True(t, settledWith(1)(st), "the state after the write carries the new document")
}

func TestLiveCollectionDeniedEndsStream(t *testing.T) {
	app := newTestApp(t)
	srv := httptest.NewServer(app.router)
	t.Cleanup(srv.Close)

	stream := openStream(t, srv, "/api/v1/live/collections/contactFormSubmissions", userToken)
	st := stream.waitState(func(s LiveState) bool { return s.Error != "" })
	assert.Equal(t, msgPermission, st.Error)
	assert.False(t, st.Loading)

	_, ok := stream.next()
	assert.False(t, ok, "stream closes after a failed state")

	events := app.events.all()
	require.Len(t, events, 1)
	assert.Equal(t, diag.OpList, events[0].Operation)
	assert.Equal(t, "contactFormSubmissions", events[0].Path)
	assert.Equal(t, "u1", events[0].Actor)
}

func TestLiveSubscriptionGroupCarriesDerivedStatus(t *testing.T) {
	app := newTestApp(t)
	future := time.Now().Add(30 * 24 * time.Hour).UTC()
	app.seed(t, "users/u1/subscriptions/s1", map[string]interface{}{
		"userId": "u1", "planId": "p1", "planName": "Monthly", "price": 49.0,
		"status": "active", "startDate": time.Now().UTC(), "endDate": future,
	})
	srv := httptest.NewServer(app.router)
	t.Cleanup(srv.Close)

	stream := openStream(t, srv, "/api/v1/live/collections/subscriptions?group=true", adminToken)
	st := stream.waitState(settledWith(1))
	assert.Equal(t, "active", items(st)[0]["derivedStatus"])

	w := app.do(t, http.MethodPatch, "/api/v1/admin/users/u1/subscriptions/s1", adminToken, map[string]interface{}{"status": "cancelled"})
	require.Equal(t, http.StatusOK, w.Code)

	st = stream.waitState(func(s LiveState) bool {
		list := items(s)
		return len(list) == 1 && list[0]["status"] == "cancelled"
	})
	assert.Equal(t, "cancelled", items(st)[0]["derivedStatus"])
}

func TestLiveDocument(t *testing.T) {
	app := newTestApp(t)
	srv := httptest.NewServer(app.router)
	t.Cleanup(srv.Close)

	stream := openStream(t, srv, "/api/v1/live/documents/contactInformation/main", "")
	st := stream.waitState(func(s LiveState) bool { return !s.Loading })
	assert.Nil(t, st.Data, "missing document has no data")

	info := map[string]interface{}{"address": "1 Main St", "phone": "555-0100", "email": "hello@clinic.example"}
	require.Equal(t, http.StatusOK, app.do(t, http.MethodPut, "/api/v1/contact-information", adminToken, info).Code)

	st = stream.waitState(func(s LiveState) bool { return s.Data != nil })
	data := st.Data.(map[string]interface{})
	assert.Equal(t, "1 Main St", data["address"])
	assert.Equal(t, "main", data["id"])
}

func TestLiveRejectsBadDescriptors(t *testing.T) {
	app := newTestApp(t)

	tests := []string{
		"/api/v1/live/collections/conditions/c1",
		"/api/v1/live/collections/conditions?where=name",
		"/api/v1/live/collections/conditions?where=name,like,x",
		"/api/v1/live/collections/conditions?limit=-2",
		"/api/v1/live/collections/users/u1?group=true",
		"/api/v1/live/documents/conditions",
	}
	for _, path := range tests {
		t.Run(path, func(t *testing.T) {
			w := app.do(t, http.MethodGet, path, "", nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestParseLiveQuery(t *testing.T) {
	params := url.Values{
		"where":   {"price,>=,10", "isFeatured,==,true", `name,==,"42"`, "platform,in,twitter|facebook"},
		"orderBy": {"price"},
		"desc":    {"true"},
		"limit":   {"5"},
	}
	q, err := parseLiveQuery("subscriptionPlans", params)
	require.NoError(t, err)

	want := db.Collection("subscriptionPlans").
		Where("price", db.OpGreaterEqual, int64(10)).
		Where("isFeatured", db.OpEqual, true).
		Where("name", db.OpEqual, "42").
		Where("platform", db.OpIn, []interface{}{"twitter", "facebook"}).
		OrderBy("price", true).
		LimitTo(5)
	assert.True(t, want.Equal(q), "got %s", q)

	assert.Equal(t, 2.5, parseValue("2.5"))
	assert.Equal(t, "t", parseValue("t"))
}

func TestDiagnosticsStream(t *testing.T) {
	app := newTestApp(t)
	srv := httptest.NewServer(app.router)
	t.Cleanup(srv.Close)

	denied := openStream(t, srv, "/api/v1/admin/diagnostics/stream", userToken)
	assert.Equal(t, http.StatusForbidden, denied.resp.StatusCode)

	stream := openStream(t, srv, "/api/v1/admin/diagnostics/stream", adminToken)
	require.Equal(t, http.StatusOK, stream.resp.StatusCode)
	require.Eventually(t, func() bool {
		return app.bus.SubscriberCount(diag.TopicPermissionError) == 2
	}, time.Second, 10*time.Millisecond)

	require.Equal(t, http.StatusForbidden, app.do(t, http.MethodPost, "/api/v1/conditions", "", sciatica()).Code)

	ev, ok := stream.next()
	require.True(t, ok)
	assert.Equal(t, "permission-error", ev.Name)
	var rec diag.Record
	require.NoError(t, json.Unmarshal([]byte(ev.Data), &rec))
	assert.Equal(t, "conditions", rec.Path)
	assert.Equal(t, diag.OpCreate, rec.Operation)
	assert.Contains(t, rec.Cause, "insufficient permissions")
}

package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"clinic-backend-go/internal/core"
	"clinic-backend-go/internal/db"
	"clinic-backend-go/internal/models"
	"clinic-backend-go/internal/watch"
)

const liveStateEvent = "state"

// LiveState is one snapshot sent over a live stream. Failures carry only a
// generic message; the structured diagnostic goes to the bus.
type LiveState struct {
	Data    interface{} `json:"data"`
	Loading bool        `json:"loading"`
	Error   string      `json:"error,omitempty"`
}

// LiveHandler streams collection and document watches as server-sent events.
type LiveHandler struct {
	deps   watch.Deps
	logger *zap.Logger
	now    func() time.Time
}

// NewLiveHandler creates a new LiveHandler.
func NewLiveHandler(deps watch.Deps, logger *zap.Logger) *LiveHandler {
	return &LiveHandler{deps: deps, logger: logger, now: time.Now}
}

// Collection handles GET /live/collections/*path.
//
// Query parameters: group=true watches every collection with that id,
// where=field,op,value (repeatable), orderBy=field, desc=true, limit=n.
// The stream ends after a failed state.
func (h *LiveHandler) Collection(c *gin.Context) {
	q, err := parseLiveQuery(strings.Trim(c.Param("path"), "/"), c.Request.URL.Query())
	if err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	w := watch.NewCollection(ctx, h.deps)
	defer w.Close()
	w.SetQuery(&q)

	decorate := func(items []map[string]interface{}) interface{} { return items }
	if isSubscriptions(q) {
		decorate = func(items []map[string]interface{}) interface{} {
			now := h.now()
			out := make([]map[string]interface{}, 0, len(items))
			for _, item := range items {
				out = append(out, core.WithDerivedStatus(item, now))
			}
			return out
		}
	}
	toLive := func(s watch.CollectionState) LiveState {
		var data interface{}
		if s.Data != nil {
			data = decorate(s.Data)
		}
		return liveState(data, s.Loading, s.Err != nil)
	}

	// The watch has already queued its current state on Updates.
	startStream(c)
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-w.Updates():
			if !ok || !send(c, toLive(s)) {
				return
			}
		}
	}
}

// Document handles GET /live/documents/*path.
func (h *LiveHandler) Document(c *gin.Context) {
	path := strings.Trim(c.Param("path"), "/")
	if !db.IsDocumentPath(path) {
		badRequest(c, fmt.Errorf("%w: %q is not a document path", db.ErrInvalidPath, path))
		return
	}

	ctx := c.Request.Context()
	w := watch.NewDocument(ctx, h.deps)
	defer w.Close()
	w.SetPath(path)

	parent, _, _ := db.ParentCollection(path)
	derive := lastSegment(parent) == models.SubscriptionsSubcollection
	toLive := func(s watch.DocumentState) LiveState {
		var data interface{}
		if s.Data != nil {
			if derive {
				data = core.WithDerivedStatus(s.Data, h.now())
			} else {
				data = s.Data
			}
		}
		return liveState(data, s.Loading, s.Err != nil)
	}

	// The watch has already queued its current state on Updates.
	startStream(c)
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-w.Updates():
			if !ok || !send(c, toLive(s)) {
				return
			}
		}
	}
}

func liveState(data interface{}, loading, failed bool) LiveState {
	s := LiveState{Data: data, Loading: loading}
	if failed {
		s.Error = msgPermission
	}
	return s
}

// send writes one state event and reports whether the stream should stay open.
func send(c *gin.Context, s LiveState) bool {
	c.SSEvent(liveStateEvent, s)
	c.Writer.Flush()
	return s.Error == ""
}

func startStream(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()
}

func isSubscriptions(q db.Query) bool {
	return lastSegment(q.Path) == models.SubscriptionsSubcollection
}

func lastSegment(path string) string {
	segs := db.SplitPath(path)
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1]
}

// parseLiveQuery builds a query descriptor from URL parameters.
func parseLiveQuery(path string, params url.Values) (db.Query, error) {
	var q db.Query
	if params.Get("group") == "true" {
		q = db.CollectionGroup(path)
	} else {
		q = db.Collection(path)
	}

	for _, raw := range params["where"] {
		parts := strings.SplitN(raw, ",", 3)
		if len(parts) != 3 {
			return db.Query{}, fmt.Errorf("where must be field,op,value: %q", raw)
		}
		field, op := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		if op == db.OpIn {
			var values []interface{}
			for _, v := range strings.Split(parts[2], "|") {
				values = append(values, parseValue(v))
			}
			q = q.Where(field, op, values)
			continue
		}
		q = q.Where(field, op, parseValue(parts[2]))
	}

	if field := params.Get("orderBy"); field != "" {
		q = q.OrderBy(field, params.Get("desc") == "true")
	}
	if raw := params.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return db.Query{}, fmt.Errorf("limit must be a non-negative integer: %q", raw)
		}
		q = q.LimitTo(n)
	}
	return q, q.Validate()
}

// parseValue reads a filter value. Quoted values are always strings; otherwise
// integers, floats and booleans are recognised.
func parseValue(raw string) interface{} {
	if len(raw) >= 2 && strings.HasPrefix(raw, `"`) && strings.HasSuffix(raw, `"`) {
		return raw[1 : len(raw)-1]
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	return raw
}

package diag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestBusPublishInSubscriptionOrder(t *testing.T) {
	bus := NewBus(nil)
	var got []string
	bus.Subscribe(TopicPermissionError, func(ctx context.Context, e Event) error {
		got = append(got, "first")
		return nil
	})
	bus.Subscribe(TopicPermissionError, func(ctx context.Context, e Event) error {
		got = append(got, "second")
		return nil
	})
	bus.Subscribe("other", func(ctx context.Context, e Event) error {
		got = append(got, "other")
		return nil
	})

	bus.Publish(context.Background(), NewPermissionError(OpCreate, "admins", "", nil, nil))

	assert.Equal(t, []string{"first", "second"}, got)
	assert.Equal(t, 2, bus.SubscriberCount(TopicPermissionError))
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus(nil)
	calls := 0
	unsubscribe := bus.Subscribe(TopicPermissionError, func(ctx context.Context, e Event) error {
		calls++
		return nil
	})

	bus.Publish(context.Background(), NewPermissionError(OpGet, "admins/u1", "", nil, nil))
	unsubscribe()
	unsubscribe()
	bus.Publish(context.Background(), NewPermissionError(OpGet, "admins/u1", "", nil, nil))

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, bus.SubscriberCount(TopicPermissionError))
}

func TestBusHandlerFailuresAreContained(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	bus := NewBus(zap.New(core))

	reached := false
	bus.Subscribe(TopicPermissionError, func(ctx context.Context, e Event) error {
		panic("sink exploded")
	})
	bus.Subscribe(TopicPermissionError, func(ctx context.Context, e Event) error {
		return errors.New("sink unavailable")
	})
	bus.Subscribe(TopicPermissionError, func(ctx context.Context, e Event) error {
		reached = true
		return nil
	})

	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), NewPermissionError(OpDelete, "products/p1", "u1", nil, nil))
	})
	assert.True(t, reached)
	assert.Equal(t, 1, logs.FilterMessage("diagnostics handler panicked").Len())
	assert.Equal(t, 1, logs.FilterMessage("diagnostics handler failed").Len())
}

func TestPermissionErrorFormatting(t *testing.T) {
	cause := errors.New("rules rejected")
	perr := NewPermissionError(OpCreate, "admins", "", map[string]interface{}{"email": "x@example.com"}, cause)

	assert.Equal(t, TopicPermissionError, perr.Topic())
	assert.Contains(t, perr.Error(), "create on admins by anonymous")
	assert.ErrorIs(t, perr, cause)
	assert.Equal(t, "rules rejected", perr.CauseText())
	require.False(t, perr.OccurredAt.IsZero())
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	sink := LogSink(zap.New(core))

	require.NoError(t, sink(context.Background(), NewPermissionError(OpUpdate, "products/p1", "u1", map[string]interface{}{"price": 3}, nil)))

	entries := logs.FilterMessage("Store permission error").All()
	require.Len(t, entries, 1)
	ctxMap := entries[0].ContextMap()
	assert.Equal(t, "products/p1", ctxMap["path"])
	assert.Equal(t, "update", ctxMap["operation"])
	assert.Equal(t, "u1", ctxMap["actor"])
}

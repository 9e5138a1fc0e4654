package diag

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Record is a PermissionError as persisted in the diagnostics stream.
type Record struct {
	ID                  string                 `json:"id"`
	Path                string                 `json:"path"`
	Operation           Operation              `json:"operation"`
	Actor               string                 `json:"actor,omitempty"`
	RequestResourceData map[string]interface{} `json:"requestResourceData,omitempty"`
	Cause               string                 `json:"cause,omitempty"`
	OccurredAt          time.Time              `json:"occurredAt"`
}

// RedisSink appends PermissionErrors to a capped Redis stream so the admin
// back-office can show recent diagnostics.
type RedisSink struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisClient parses a redis:// URL and verifies the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

// NewRedisSink creates a sink writing to stream, trimmed to maxLen entries.
func NewRedisSink(client *redis.Client, stream string, maxLen int64) *RedisSink {
	return &RedisSink{client: client, stream: stream, maxLen: maxLen}
}

// Handle is a Bus handler appending PermissionErrors to the stream.
func (s *RedisSink) Handle(ctx context.Context, event Event) error {
	perr, ok := event.(*PermissionError)
	if !ok {
		return nil
	}
	payload := ""
	if perr.RequestResourceData != nil {
		raw, err := json.Marshal(perr.RequestResourceData)
		if err != nil {
			return fmt.Errorf("marshal request data: %w", err)
		}
		payload = string(raw)
	}

	// The write must not be cut short by the request that caused the failure.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Values: map[string]interface{}{
			"path":       perr.Path,
			"operation":  string(perr.Operation),
			"actor":      perr.Actor,
			"data":       payload,
			"cause":      perr.CauseText(),
			"occurredAt": perr.OccurredAt.Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return nil
}

// Recent returns up to n diagnostics, newest first.
func (s *RedisSink) Recent(ctx context.Context, n int64) ([]Record, error) {
	msgs, err := s.client.XRevRangeN(ctx, s.stream, "+", "-", n).Result()
	if err != nil {
		return nil, fmt.Errorf("xrevrange %s: %w", s.stream, err)
	}
	out := make([]Record, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, recordFromMessage(msg))
	}
	return out, nil
}

func recordFromMessage(msg redis.XMessage) Record {
	str := func(key string) string {
		if v, ok := msg.Values[key].(string); ok {
			return v
		}
		return ""
	}
	rec := Record{
		ID:        msg.ID,
		Path:      str("path"),
		Operation: Operation(str("operation")),
		Actor:     str("actor"),
		Cause:     str("cause"),
	}
	if ts, err := time.Parse(time.RFC3339Nano, str("occurredAt")); err == nil {
		rec.OccurredAt = ts
	}
	if data := str("data"); data != "" {
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(data), &m); err == nil {
			rec.RequestResourceData = m
		}
	}
	return rec
}

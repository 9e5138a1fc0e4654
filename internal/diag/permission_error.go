// Package diag carries structured store diagnostics from the point of failure
// to the developer-facing sinks over an injectable event bus.
package diag

import (
	"fmt"
	"time"
)

// Operation is the kind of store access that failed.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
	OpGet    Operation = "get"
	OpList   Operation = "list"
)

// TopicPermissionError is the bus topic every PermissionError is published on.
const TopicPermissionError = "permission-error"

// Event is anything that can travel over the Bus.
type Event interface {
	Topic() string
}

// PermissionError describes a denied or failed store operation.
// RequestResourceData is only set for writes.
type PermissionError struct {
	Path                string                 `json:"path"`
	Operation           Operation              `json:"operation"`
	RequestResourceData map[string]interface{} `json:"requestResourceData,omitempty"`
	Actor               string                 `json:"actor,omitempty"`
	Cause               error                  `json:"-"`
	OccurredAt          time.Time              `json:"occurredAt"`
}

// NewPermissionError builds the diagnostic for a failed operation.
func NewPermissionError(op Operation, path, actor string, data map[string]interface{}, cause error) *PermissionError {
	return &PermissionError{
		Path:                path,
		Operation:           op,
		RequestResourceData: data,
		Actor:               actor,
		Cause:               cause,
		OccurredAt:          time.Now().UTC(),
	}
}

func (e *PermissionError) Topic() string { return TopicPermissionError }

func (e *PermissionError) Error() string {
	actor := e.Actor
	if actor == "" {
		actor = "anonymous"
	}
	msg := fmt.Sprintf("missing or insufficient permissions: %s on %s by %s", e.Operation, e.Path, actor)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *PermissionError) Unwrap() error { return e.Cause }

// CauseText is the cause rendered for sinks that cannot carry an error value.
func (e *PermissionError) CauseText() string {
	if e.Cause == nil {
		return ""
	}
	return e.Cause.Error()
}

// Record converts e to the form sinks persist and stream. ID is left empty.
func (e *PermissionError) Record() Record {
	return Record{
		Path:                e.Path,
		Operation:           e.Operation,
		Actor:               e.Actor,
		RequestResourceData: e.RequestResourceData,
		Cause:               e.CauseText(),
		OccurredAt:          e.OccurredAt,
	}
}

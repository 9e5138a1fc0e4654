package diag

import (
	"context"

	"go.uber.org/zap"
)

// LogSink writes every PermissionError to the structured log.
func LogSink(logger *zap.Logger) Handler {
	return func(ctx context.Context, event Event) error {
		perr, ok := event.(*PermissionError)
		if !ok {
			return nil
		}
		fields := []zap.Field{
			zap.String("path", perr.Path),
			zap.String("operation", string(perr.Operation)),
			zap.String("actor", perr.Actor),
		}
		if perr.RequestResourceData != nil {
			fields = append(fields, zap.Any("requestResourceData", perr.RequestResourceData))
		}
		if perr.Cause != nil {
			fields = append(fields, zap.NamedError("cause", perr.Cause))
		}
		logger.Warn("Store permission error", fields...)
		return nil
	}
}

package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldRequestID is the structured log field key for the request or message id.
	FieldRequestID = "request_id"
	// FieldSource is the structured log field key for the transport that
	// delivered the request (http, amqp, cli).
	FieldSource = "source"
	// FieldUserID is the structured log field key for the caller supplied user id.
	FieldUserID = "user_id"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields safely attaches the provided fields to the logger, defaulting to
// a no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// RequestFields describes where a request came from. Empty values are dropped.
func RequestFields(requestID, source, userID string) []zap.Field {
	return StringFields(
		StringField{Key: FieldRequestID, Value: requestID},
		StringField{Key: FieldSource, Value: source},
		StringField{Key: FieldUserID, Value: userID},
	)
}

// WithRequestFields attaches RequestFields to the logger.
func WithRequestFields(logger *zap.Logger, requestID, source, userID string) *zap.Logger {
	return WithFields(logger, RequestFields(requestID, source, userID)...)
}

package core

import (
	"context"
	"sort"
	"strings"
	"time"
)

func (r *Relay) observeEvent(
	ctx context.Context,
	startedAt time.Time,
	result Result,
	err error,
	fields map[string]any,
) {
	if r == nil {
		return
	}
	tags := eventMetricTags(result)
	kind := tags["event_kind"]
	operation := eventMetricPrefix(result.Kind)
	duration := r.now().Sub(startedAt)

	contextFields := cloneFields(fields)
	contextFields["event_kind"] = kind
	contextFields["state"] = string(result.State)
	contextFields["stage"] = string(result.Stage)
	contextFields["duration_ms"] = duration.Milliseconds()
	if result.UserID != "" {
		contextFields["user_id"] = result.UserID
	}
	if result.DeliveryID != "" {
		contextFields["delivery_id"] = result.DeliveryID
	}
	if result.Outcome.Status != "" {
		contextFields["outcome"] = string(result.Outcome.Status)
	}
	if result.Outcome.StatusCode != 0 {
		contextFields["status_code"] = result.Outcome.StatusCode
	}
	if err != nil {
		contextFields["error"] = err.Error()
		if code := TextCodeOf(err); code != "" {
			contextFields["error_text_code"] = code
		}
	}

	r.recordCounter(ctx, EventCounterName(result.Kind), 1, tags)
	r.recordHistogram(ctx, EventDurationName(result.Kind), float64(duration.Milliseconds()), tags)

	if err != nil {
		r.logError(ctx, operation+" failed", contextFields)
		return
	}
	r.logInfo(ctx, operation+" succeeded", contextFields)
}

func (r *Relay) logInfo(ctx context.Context, message string, fields map[string]any) {
	r.logWithLevel(ctx, "info", message, fields)
}

func (r *Relay) logError(ctx context.Context, message string, fields map[string]any) {
	r.logWithLevel(ctx, "error", message, fields)
}

func (r *Relay) logWithLevel(ctx context.Context, level string, message string, fields map[string]any) {
	if r == nil || r.logger == nil {
		return
	}
	fields = RedactSensitiveMap(fields)
	logger := r.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	var args []any
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(fields))
	} else {
		args = flattenFields(fields)
	}
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		logger.Error(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func cloneFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	copied := make(map[string]any, len(fields))
	for key, value := range fields {
		copied[key] = value
	}
	return copied
}

func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}

func joinFields(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return strings.Join(values, ",")
}

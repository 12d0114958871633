package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	MetricCommitTotal         = "wallets.commit.total"
	MetricReconnectTotal      = "wallets.reconnect.total"
	MetricStaleTotal          = "wallets.stale.total"
	MetricPersistFailureTotal = "wallets.persist.failure.total"
)

func (s *Service) observeOperation(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	err error,
	fields map[string]any,
) {
	if s == nil {
		return
	}
	operation = normalizeOperation(operation)
	if operation == "" {
		operation = "unknown"
	}
	status := "success"
	if err != nil {
		status = "failure"
	}

	contextFields := cloneFields(fields)
	contextFields["event_type"] = operation
	contextFields["status"] = status
	contextFields["duration_ms"] = time.Since(startedAt).Milliseconds()
	if err != nil {
		contextFields["error"] = err.Error()
	}

	tags := map[string]string{
		"operation": operation,
		"status":    status,
	}
	if value := strings.TrimSpace(fmt.Sprint(contextFields["source"])); value != "" && value != "<nil>" {
		tags["source"] = value
	}

	recordCounter(ctx, s.metricsRecorder, "wallets."+operation+".total", 1, tags)
	recordHistogram(ctx, s.metricsRecorder, "wallets."+operation+".duration_ms", float64(time.Since(startedAt).Milliseconds()), tags)

	if err != nil {
		logWithLevel(ctx, s.logger, "error", operation+" failed", contextFields)
		return
	}
	logWithLevel(ctx, s.logger, "debug", operation+" succeeded", contextFields)
}

func logWithLevel(ctx context.Context, logger Logger, level string, message string, fields map[string]any) {
	if logger == nil {
		return
	}
	// Logging runs inside the store lock; a failing sink must not take the
	// store down with it.
	defer func() { _ = recover() }()
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(fields))
	}
	args := flattenFields(fields)
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		logger.Error(message, args...)
	case "warn":
		logger.Warn(message, args...)
	case "debug":
		logger.Debug(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func recordCounter(ctx context.Context, recorder MetricsRecorder, name string, value int64, tags map[string]string) {
	if recorder == nil {
		return
	}
	defer func() { _ = recover() }()
	recorder.IncCounter(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

func recordHistogram(ctx context.Context, recorder MetricsRecorder, name string, value float64, tags map[string]string) {
	if recorder == nil {
		return
	}
	defer func() { _ = recover() }()
	recorder.ObserveHistogram(ctx, strings.TrimSpace(name), value, cloneTags(tags))
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

func normalizeOperation(operation string) string {
	operation = strings.TrimSpace(strings.ToLower(operation))
	operation = strings.ReplaceAll(operation, " ", "_")
	operation = strings.ReplaceAll(operation, "-", "_")
	return operation
}

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func cloneTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return map[string]string{}
	}
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}

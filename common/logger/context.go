package logger

import (
	"context"
	"log/slog"
)

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// Handlers and services enrich the context once; every slog call made with that
// context then carries issue_id, evaluation_result_id, etc.
type LogFields struct {
	IssueID            *int64  // Issue being mutated or merged
	WorkspaceID        *int64  // Tenant
	EvaluationResultID *int64  // Evaluation result being (un)assigned
	DocumentUUID       *string // Prompt document scoping the issue
	MessageID          *string // Redis stream message ID
	TaskType           *string // Queue task type (e.g., "result_transition")
	Component          string  // Component name (OTel semantic convention style, e.g., "triage.issues.merge")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
// Context timeouts and cancellation are preserved.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	merged := mergeFields(GetLogFields(ctx), fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func (f LogFields) attrs() []slog.Attr {
	var attrs []slog.Attr
	if f.IssueID != nil {
		attrs = append(attrs, slog.Int64("issue_id", *f.IssueID))
	}
	if f.WorkspaceID != nil {
		attrs = append(attrs, slog.Int64("workspace_id", *f.WorkspaceID))
	}
	if f.EvaluationResultID != nil {
		attrs = append(attrs, slog.Int64("evaluation_result_id", *f.EvaluationResultID))
	}
	if f.DocumentUUID != nil {
		attrs = append(attrs, slog.String("document_uuid", *f.DocumentUUID))
	}
	if f.MessageID != nil {
		attrs = append(attrs, slog.String("message_id", *f.MessageID))
	}
	if f.TaskType != nil {
		attrs = append(attrs, slog.String("task_type", *f.TaskType))
	}
	if f.Component != "" {
		attrs = append(attrs, slog.String("component", f.Component))
	}
	return attrs
}

// mergeFields merges two LogFields, preferring non-nil/non-empty values from 'next'.
func mergeFields(existing, next LogFields) LogFields {
	result := existing

	if next.IssueID != nil {
		result.IssueID = next.IssueID
	}
	if next.WorkspaceID != nil {
		result.WorkspaceID = next.WorkspaceID
	}
	if next.EvaluationResultID != nil {
		result.EvaluationResultID = next.EvaluationResultID
	}
	if next.DocumentUUID != nil {
		result.DocumentUUID = next.DocumentUUID
	}
	if next.MessageID != nil {
		result.MessageID = next.MessageID
	}
	if next.TaskType != nil {
		result.TaskType = next.TaskType
	}
	if next.Component != "" {
		result.Component = next.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{IssueID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen characters, appending "..." if truncated.
// Useful for logging potentially long strings like failure reasons.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

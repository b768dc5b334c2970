package observability

import (
	"context"
	"time"
)

// NoopErrorReporter is a no-op implementation of ErrorReporter.
// It provides zero-cost operation when error reporting is disabled.
type NoopErrorReporter struct{}

// NewNoopErrorReporter creates a new no-op error reporter.
func NewNoopErrorReporter() *NoopErrorReporter {
	return &NoopErrorReporter{}
}

// CaptureError is a no-op that always succeeds.
func (n *NoopErrorReporter) CaptureError(_ context.Context, _ error, _ *ErrorContext) error {
	return nil
}

// CaptureMessage is a no-op that always succeeds.
func (n *NoopErrorReporter) CaptureMessage(_ context.Context, _ string, _ Severity, _ *ErrorContext) error {
	return nil
}

// AddBreadcrumb is a no-op.
func (n *NoopErrorReporter) AddBreadcrumb(_, _ string, _ map[string]interface{}) {}

// SetTag is a no-op.
func (n *NoopErrorReporter) SetTag(_, _ string) {}

// Flush is a no-op that always returns true.
func (n *NoopErrorReporter) Flush(_ time.Duration) bool {
	return true
}

// Close is a no-op that always succeeds.
func (n *NoopErrorReporter) Close() error {
	return nil
}

// Compile-time interface compliance check
var _ ErrorReporter = (*NoopErrorReporter)(nil)

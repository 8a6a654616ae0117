// Package tracing wraps OpenTelemetry so that process lifecycle operations
// can be traced with StartSpan and EndSpan. Without Init spans are no-ops.
package tracing

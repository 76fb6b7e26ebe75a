// Package telemetry records engine activity: prometheus metrics for
// batches, issues and stitching operations, and a slog handler that keeps
// error records in Parquet files.
package telemetry

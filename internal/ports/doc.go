// Package ports defines the interfaces that connect the pipeline to
// infrastructure adapters.
//
// # Port Interfaces
//
//   - [EventSource]: reads events from the upstream stage
//   - [EventSink]: writes annotated batches downstream
//   - [StatusRepository]: persists pipeline progress
//
// The application layer (internal/app) depends only on these interfaces.
// Adapters under internal/adapters implement them (JSON lines, status file).
package ports

// Package domain contains the core entities shared by every stamper layer.
//
// It has no dependencies on the file system or logging.
//
// # Entities
//
//   - [Event]: an opaque payload plus a mutable header set
//   - [Status]: progress snapshot persisted by the pipeline
package domain

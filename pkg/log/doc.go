// Package log provides the logging abstraction used by stamper components.
//
// Components never reach for a global logger: a Logger is passed in at
// construction time. A zerolog adapter and a no-op logger are provided.
//
//	logger := log.NewZerologAdapterWithLogger(zerolog.New(os.Stderr))
//	a := annotator.New(annotator.DefaultConfig(), logger)
//
// Implement Logger to route records into an existing logging facility.
package log

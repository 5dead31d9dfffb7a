// Package stamper annotates pipeline events with provenance headers.
//
// Every event gets a "source" and an "env" header. With PreserveExisting
// set, values stamped by an upstream stage are kept; otherwise they are
// overwritten.
//
// Example usage:
//
//	a := stamper.New(stamper.Config{Source: "kafka", Env: "prod", PreserveExisting: true},
//	    stamper.WithLogger(log.NewZerologAdapterWithLogger(zl)))
//	a.Initialize()
//	defer a.Close()
//	events = a.AnnotateBatch(events)
package stamper

import (
	"github.com/bft-labs/stamper/internal/annotator"
	"github.com/bft-labs/stamper/internal/domain"
	"github.com/bft-labs/stamper/pkg/log"
)

// Config holds the annotator settings.
// Use DefaultConfig() for source "file", env "dev", preserve enabled.
type Config = annotator.Config

// Annotator stamps source and env headers onto events.
type Annotator = annotator.Annotator

// Event is a payload plus a mutable header set.
type Event = domain.Event

// Policy selects overwrite or preserve behavior.
type Policy = annotator.Policy

// Header keys written by the annotator.
const (
	HeaderSource = domain.HeaderSource
	HeaderEnv    = domain.HeaderEnv
)

// Header policies.
const (
	PolicyPreserve  = annotator.PolicyPreserve
	PolicyOverwrite = annotator.PolicyOverwrite
)

// Option configures optional behavior of New.
type Option func(*options)

type options struct {
	logger log.Logger
}

// WithLogger sets the logger that receives the construction record.
// If not provided, nothing is logged.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New creates an annotator. It never fails for a well-formed Config.
func New(cfg Config, opts ...Option) *Annotator {
	o := options{logger: log.NewNoopLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	return annotator.New(cfg, o.logger)
}

// DefaultConfig returns a Config with the default values.
func DefaultConfig() Config {
	return annotator.DefaultConfig()
}

// NewEvent creates an event with an empty header set.
func NewEvent(body []byte) *Event {
	return domain.NewEvent(body)
}

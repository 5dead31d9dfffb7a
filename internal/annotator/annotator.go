// Package annotator stamps provenance headers (source and env) onto events.
//
// An Annotator is configured once and is immutable afterwards. It is safe to
// call from multiple goroutines as long as each call works on a different
// event.
package annotator

import (
	"github.com/bft-labs/stamper/internal/domain"
	"github.com/bft-labs/stamper/pkg/log"
)

// Default configuration values.
const (
	DefaultSource   = "file"
	DefaultEnv      = "dev"
	DefaultPreserve = true
)

// Config is the annotator configuration triple.
type Config struct {
	// Source is stamped into the "source" header.
	Source string

	// Env is stamped into the "env" header.
	Env string

	// PreserveExisting keeps header values already set upstream.
	PreserveExisting bool
}

// DefaultConfig returns source "file", env "dev" and preserve enabled.
func DefaultConfig() Config {
	return Config{
		Source:           DefaultSource,
		Env:              DefaultEnv,
		PreserveExisting: DefaultPreserve,
	}
}

// Policy returns the header policy selected by PreserveExisting.
func (c Config) Policy() Policy {
	if c.PreserveExisting {
		return PolicyPreserve
	}
	return PolicyOverwrite
}

// Annotator stamps source and env headers according to its policy.
type Annotator struct {
	cfg   Config
	stamp stampFunc
}

// New creates an Annotator and logs the resolved configuration once.
// A nil logger is replaced with a no-op logger.
func New(cfg Config, logger log.Logger) *Annotator {
	log.OrNoop(logger).Info("annotator created",
		log.String("source", cfg.Source),
		log.String("env", cfg.Env),
		log.Bool("preserve", cfg.PreserveExisting),
	)
	return &Annotator{
		cfg:   cfg,
		stamp: cfg.Policy().stampFunc(),
	}
}

// Config returns the configuration the annotator was built with.
func (a *Annotator) Config() Config {
	return a.cfg
}

// Initialize is reserved for resource acquisition. It never fails.
func (a *Annotator) Initialize() {}

// Close is reserved for resource release. It never fails.
func (a *Annotator) Close() {}

// Annotate stamps the headers of e in place and returns e.
func (a *Annotator) Annotate(e *domain.Event) *domain.Event {
	if e == nil {
		return nil
	}
	a.stamp(e, domain.HeaderSource, a.cfg.Source)
	a.stamp(e, domain.HeaderEnv, a.cfg.Env)
	return e
}

// AnnotateBatch annotates every event in order. The returned slice has the
// same length and holds the same pointers as events.
func (a *Annotator) AnnotateBatch(events []*domain.Event) []*domain.Event {
	out := make([]*domain.Event, 0, len(events))
	for _, e := range events {
		out = append(out, a.Annotate(e))
	}
	return out
}

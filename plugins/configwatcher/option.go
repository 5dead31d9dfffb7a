package configwatcher

import (
	"github.com/bft-labs/stamper/internal/annotator"
	"github.com/bft-labs/stamper/pkg/log"
)

// Swapper is implemented by pipelines that can replace their annotator.
type Swapper interface {
	Annotator() *annotator.Annotator
	SwapAnnotator(a *annotator.Annotator)
}

// ForPipeline returns a plugin that rebuilds the annotator of s whenever the
// watched file resolves to a new configuration.
//
// Usage:
//
//	w := configwatcher.ForPipeline(configwatcher.DefaultConfig(path), pipeline, load, logger)
//	if err := w.Initialize(ctx); err != nil { ... }
//	defer w.Shutdown(ctx)
func ForPipeline(cfg Config, s Swapper, load LoadFunc, logger log.Logger) *Plugin {
	return New(cfg, s.Annotator().Config(), load, func(c annotator.Config) {
		s.SwapAnnotator(annotator.New(c, logger))
	}, logger)
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bft-labs/stamper/internal/adapters/fs"
	"github.com/bft-labs/stamper/internal/adapters/jsonl"
	"github.com/bft-labs/stamper/internal/annotator"
	"github.com/bft-labs/stamper/internal/app"
	"github.com/bft-labs/stamper/internal/cliconfig"
	"github.com/bft-labs/stamper/internal/ports"
	"github.com/bft-labs/stamper/pkg/log"
	"github.com/bft-labs/stamper/plugins/configwatcher"
)

// writerOnly hides Close so that stdout is never closed by the sink.
type writerOnly struct{ io.Writer }

func run(
	ctx context.Context,
	cfg cliconfig.Config,
	cfgFile string,
	load configwatcher.LoadFunc,
	logger log.Logger,
	stdin io.Reader,
	stdout io.Writer,
) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	in, err := openInput(cfg.Input, stdin)
	if err != nil {
		return err
	}
	source := jsonl.NewReader(in, cfg.MaxLineBytes)
	defer source.Close()

	out, err := openOutput(cfg.Output, stdout)
	if err != nil {
		return err
	}
	sink := jsonl.NewWriter(out)
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Error("close output", log.Err(err))
		}
	}()

	var statusRepo ports.StatusRepository
	if cfg.StatusDir != "" {
		statusRepo = fs.NewStatusFileRepository(cfg.StatusDir)
	}

	pipeline := app.NewPipeline(
		app.PipelineConfig{
			BatchSize:     cfg.BatchSize,
			MaxBatchBytes: cfg.MaxBatchBytes,
			FlushInterval: cfg.FlushInterval,
			DrainTimeout:  cfg.DrainTimeout,
			SkipInvalid:   cfg.SkipInvalid,
		},
		annotator.New(cfg.AnnotatorConfig(), logger),
		source,
		sink,
		statusRepo,
		logger.With(log.String("component", "pipeline")),
		nil,
	)

	if cfg.Watch {
		if cfgFile == "" || !cliconfig.FileExists(cfgFile) {
			logger.Warn("watch requested but no config file found, reload disabled", log.String("path", cfgFile))
		} else {
			watcher := configwatcher.ForPipeline(configwatcher.DefaultConfig(cfgFile), pipeline, load, logger)
			if err := watcher.Initialize(ctx); err != nil {
				return err
			}
			defer watcher.Shutdown(context.Background())
		}
	}

	return pipeline.Run(ctx)
}

func openInput(path string, stdin io.Reader) (io.Reader, error) {
	if path == cliconfig.StdStream {
		return stdin, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	return f, nil
}

func openOutput(path string, stdout io.Writer) (io.Writer, error) {
	if path == cliconfig.StdStream {
		return writerOnly{stdout}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}
	return f, nil
}

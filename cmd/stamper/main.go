package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/stamper/internal/annotator"
	"github.com/bft-labs/stamper/internal/cliconfig"
	"github.com/bft-labs/stamper/pkg/log"
)

const helpDescription = `
Stamp provenance headers onto a stream of events.

Reads newline-delimited JSON events ({"headers":{...},"body":"<base64>"}), sets the
"source" and "env" headers on each one and writes them back out in order.

Highlights:
  - preserve mode keeps values stamped by upstream stages; overwrite mode replaces them.
  - configure via file, env (STAMPER_*), or flags; flags win.
  - --watch reloads source/env/preserve when the config file changes.
`

var exampleUsage = strings.TrimSpace(`
  tail -F app.jsonl | stamper --source kafka --env prod
  stamper --config /etc/stamper/config.toml --input in.jsonl --output out.jsonl --preserve=false
  stamper --config $HOME/.stamper/config.toml --watch --status-dir /var/lib/stamper
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	bootLog, _ := cliconfig.NewLogger(os.Stderr, "info", cliconfig.LogFormatConsole)

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		bootLog.Error().Err(err).Msg("stamper")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:           "stamper",
		Short:         "Stamp source and env headers onto pipeline events",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			} else if !cliconfig.FileExists(cfgFile) {
				return fmt.Errorf("config file %s does not exist", cfgFile)
			}

			// cfg holds defaults plus flag values; every resolution starts from it.
			flagCfg := cfg
			resolved, err := resolveConfig(flagCfg, cfgFile, changed)
			if err != nil {
				return err
			}

			zl, err := cliconfig.NewLogger(cmd.ErrOrStderr(), resolved.LogLevel, resolved.LogFormat)
			if err != nil {
				return err
			}
			logger := log.NewZerologAdapterWithLogger(zl)
			logger.Info("configuration", log.Any("config", resolved))

			load := func() (annotator.Config, error) {
				c, err := resolveConfig(flagCfg, cfgFile, changed)
				if err != nil {
					return annotator.Config{}, err
				}
				return c.AnnotatorConfig(), nil
			}

			return run(cmd.Context(), resolved, cfgFile, load, logger, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.stamper/config.toml)")

	root.Flags().StringVar(&cfg.Source, "source", cfg.Source, "value stamped into the source header")
	root.Flags().StringVar(&cfg.Env, "env", cfg.Env, "value stamped into the env header")
	root.Flags().BoolVar(&cfg.Preserve, "preserve", cfg.Preserve, "keep source/env values already present on an event")

	root.Flags().StringVar(&cfg.Input, "input", cfg.Input, "input file of JSON-lines events (- for stdin)")
	root.Flags().StringVar(&cfg.Output, "output", cfg.Output, "output file for annotated events (- for stdout)")

	root.Flags().IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "maximum events per batch")
	root.Flags().IntVar(&cfg.MaxBatchBytes, "max-batch-bytes", cfg.MaxBatchBytes, "flush once pending bodies reach this many bytes (0 disables)")
	root.Flags().DurationVar(&cfg.FlushInterval, "flush-interval", cfg.FlushInterval, "flush a partial batch after this long")
	root.Flags().DurationVar(&cfg.DrainTimeout, "drain-timeout", cfg.DrainTimeout, "on shutdown, how long to wait for the input to stop")
	root.Flags().IntVar(&cfg.MaxLineBytes, "max-line-bytes", cfg.MaxLineBytes, "longest accepted input line")
	root.Flags().BoolVar(&cfg.SkipInvalid, "skip-invalid", cfg.SkipInvalid, "log and drop malformed input lines instead of failing")

	root.Flags().StringVar(&cfg.StatusDir, "status-dir", cfg.StatusDir, "directory for status.json progress counters (optional)")
	root.Flags().BoolVar(&cfg.Watch, "watch", cfg.Watch, "reload source/env/preserve when the config file changes")

	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	root.Flags().StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (console, json)")

	return root
}

// resolveConfig layers the config file and STAMPER_* variables over base,
// skipping options whose flags were set explicitly.
func resolveConfig(base cliconfig.Config, cfgFile string, changed map[string]bool) (cliconfig.Config, error) {
	cfg := base

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
			return cfg, err
		}
	}

	if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

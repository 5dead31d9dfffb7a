package cliconfig

import "os"

// EnvPrefix prefixes every environment variable read by ApplyEnvConfig.
const EnvPrefix = "STAMPER_"

// ApplyEnvConfig applies configuration from environment variables (STAMPER_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("source", os.Getenv(EnvPrefix+"SOURCE"), &cfg.Source)
	s.setString("env", os.Getenv(EnvPrefix+"ENV"), &cfg.Env)
	s.setString("input", os.Getenv(EnvPrefix+"INPUT"), &cfg.Input)
	s.setString("output", os.Getenv(EnvPrefix+"OUTPUT"), &cfg.Output)
	s.setString("status-dir", os.Getenv(EnvPrefix+"STATUS_DIR"), &cfg.StatusDir)
	s.setString("log-level", os.Getenv(EnvPrefix+"LOG_LEVEL"), &cfg.LogLevel)
	s.setString("log-format", os.Getenv(EnvPrefix+"LOG_FORMAT"), &cfg.LogFormat)

	if err := s.setDuration("flush-interval", os.Getenv(EnvPrefix+"FLUSH_INTERVAL"), &cfg.FlushInterval); err != nil {
		return err
	}
	if err := s.setDuration("drain-timeout", os.Getenv(EnvPrefix+"DRAIN_TIMEOUT"), &cfg.DrainTimeout); err != nil {
		return err
	}

	if err := s.setIntFromString("batch-size", os.Getenv(EnvPrefix+"BATCH_SIZE"), &cfg.BatchSize); err != nil {
		return err
	}
	if err := s.setNonNegativeIntFromString("max-batch-bytes", os.Getenv(EnvPrefix+"MAX_BATCH_BYTES"), &cfg.MaxBatchBytes); err != nil {
		return err
	}
	if err := s.setIntFromString("max-line-bytes", os.Getenv(EnvPrefix+"MAX_LINE_BYTES"), &cfg.MaxLineBytes); err != nil {
		return err
	}

	if err := s.setBoolFromString("preserve", os.Getenv(EnvPrefix+"PRESERVE"), &cfg.Preserve); err != nil {
		return err
	}
	if err := s.setBoolFromString("skip-invalid", os.Getenv(EnvPrefix+"SKIP_INVALID"), &cfg.SkipInvalid); err != nil {
		return err
	}
	if err := s.setBoolFromString("watch", os.Getenv(EnvPrefix+"WATCH"), &cfg.Watch); err != nil {
		return err
	}

	return nil
}

package cliconfig

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bft-labs/stamper/internal/adapters/jsonl"
	"github.com/bft-labs/stamper/internal/annotator"
	"github.com/bft-labs/stamper/internal/domain"
)

// StdStream selects stdin for input and stdout for output.
const StdStream = "-"

// Config holds CLI configuration for stamper.
type Config struct {
	Source   string
	Env      string
	Preserve bool

	Input  string
	Output string

	BatchSize     int
	MaxBatchBytes int
	FlushInterval time.Duration
	DrainTimeout  time.Duration
	MaxLineBytes  int
	SkipInvalid   bool

	StatusDir string
	Watch     bool

	LogLevel  string
	LogFormat string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Source:        annotator.DefaultSource,
		Env:           annotator.DefaultEnv,
		Preserve:      annotator.DefaultPreserve,
		Input:         StdStream,
		Output:        StdStream,
		BatchSize:     100,
		MaxBatchBytes: 1 << 20, // 1MB
		FlushInterval: time.Second,
		DrainTimeout:  5 * time.Second,
		MaxLineBytes:  jsonl.DefaultMaxLineBytes,
		LogLevel:      "info",
		LogFormat:     LogFormatConsole,
	}
}

// Validate checks the configuration. Errors wrap domain.ErrInvalidConfig.
func (c *Config) Validate() error {
	if c.Source == "" {
		return invalid("source must not be empty")
	}
	if c.Env == "" {
		return invalid("env must not be empty")
	}
	if c.Input == "" {
		c.Input = StdStream
	}
	if c.Output == "" {
		c.Output = StdStream
	}
	if c.BatchSize <= 0 {
		return invalid("batch size must be positive")
	}
	if c.MaxBatchBytes < 0 {
		return invalid("max batch bytes must not be negative")
	}
	if c.FlushInterval <= 0 {
		return invalid("flush interval must be positive")
	}
	if c.DrainTimeout <= 0 {
		return invalid("drain timeout must be positive")
	}
	if c.MaxLineBytes <= 0 {
		return invalid("max line bytes must be positive")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	if c.LogFormat != LogFormatConsole && c.LogFormat != LogFormatJSON {
		return invalid(fmt.Sprintf("unknown log format %q", c.LogFormat))
	}
	return nil
}

// AnnotatorConfig returns the annotator triple.
func (c Config) AnnotatorConfig() annotator.Config {
	return annotator.Config{
		Source:           c.Source,
		Env:              c.Env,
		PreserveExisting: c.Preserve,
	}
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidConfig, msg)
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setIntPtr sets an int value from a pointer if not nil and flag not changed.
// Zero is applied, so an explicit 0 in the file is distinguishable from unset.
func (s *configSetter) setIntPtr(flag string, value *int, dst *int) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
// A pointer keeps an explicit false in the file distinguishable from unset.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if positive.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setNonNegativeIntFromString is setIntFromString for options where 0 is
// meaningful. Negative values are left for Validate to reject.
func (s *configSetter) setNonNegativeIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = i
	return nil
}

// setBoolFromString parses a boolean as strconv.ParseBool does
// ("1", "t", "true", "0", "f", "false", ...).
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = b
	return nil
}

package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Source        string `toml:"source"`
	Env           string `toml:"env"`
	Preserve      *bool  `toml:"preserve"`
	Input         string `toml:"input"`
	Output        string `toml:"output"`
	BatchSize     int    `toml:"batch_size"`
	MaxBatchBytes *int   `toml:"max_batch_bytes"`
	FlushInterval string `toml:"flush_interval"`
	DrainTimeout  string `toml:"drain_timeout"`
	MaxLineBytes  int    `toml:"max_line_bytes"`
	SkipInvalid   *bool  `toml:"skip_invalid"`
	StatusDir     string `toml:"status_dir"`
	Watch         *bool  `toml:"watch"`
	LogLevel      string `toml:"log_level"`
	LogFormat     string `toml:"log_format"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
// Unknown keys are rejected so that typos do not silently fall back to defaults.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	f, err := os.Open(path)
	if err != nil {
		return fc, err
	}
	defer f.Close()

	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.stamper/config.toml, or "" if the home
// directory is unknown.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".stamper", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("source", fc.Source, &cfg.Source)
	s.setString("env", fc.Env, &cfg.Env)
	s.setString("input", fc.Input, &cfg.Input)
	s.setString("output", fc.Output, &cfg.Output)
	s.setString("status-dir", fc.StatusDir, &cfg.StatusDir)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("log-format", fc.LogFormat, &cfg.LogFormat)

	if err := s.setDuration("flush-interval", fc.FlushInterval, &cfg.FlushInterval); err != nil {
		return err
	}
	if err := s.setDuration("drain-timeout", fc.DrainTimeout, &cfg.DrainTimeout); err != nil {
		return err
	}

	s.setInt("batch-size", fc.BatchSize, &cfg.BatchSize)
	s.setIntPtr("max-batch-bytes", fc.MaxBatchBytes, &cfg.MaxBatchBytes)
	s.setInt("max-line-bytes", fc.MaxLineBytes, &cfg.MaxLineBytes)

	s.setBool("preserve", fc.Preserve, &cfg.Preserve)
	s.setBool("skip-invalid", fc.SkipInvalid, &cfg.SkipInvalid)
	s.setBool("watch", fc.Watch, &cfg.Watch)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

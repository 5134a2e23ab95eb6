// Package config loads voxscribe settings from an optional YAML file
// and environment overrides. Precedence, lowest to highest: defaults,
// config file, environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/voxscribe/voxscribe/internal/platform"
)

// Config holds everything the CLI and server need at startup.
type Config struct {
	Model    string `yaml:"model"`
	ModelDir string `yaml:"model_dir"`
	Language string `yaml:"language"`

	// Pro unlocks batch transcription, diarization, high-accuracy mode
	// and non-txt export formats.
	Pro bool `yaml:"pro"`

	Retry RetryConfig `yaml:"retry"`
	Serve ServeConfig `yaml:"serve"`
}

// RetryConfig shapes the background engine-load retry loop.
// MaxAttempts 0 means retry until the load succeeds.
type RetryConfig struct {
	Delay       time.Duration `yaml:"delay"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// UnmarshalYAML accepts the delay as a Go duration string ("5s",
// "1m30s") rather than raw nanoseconds.
func (r *RetryConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Delay       string `yaml:"delay"`
		MaxAttempts int    `yaml:"max_attempts"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Delay != "" {
		delay, err := time.ParseDuration(raw.Delay)
		if err != nil {
			return fmt.Errorf("parse retry delay %q: %w", raw.Delay, err)
		}
		r.Delay = delay
	}
	if raw.MaxAttempts != 0 {
		r.MaxAttempts = raw.MaxAttempts
	}
	return nil
}

type ServeConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Model:    "tiny",
		Language: "en",
		Retry: RetryConfig{
			Delay:       5 * time.Second,
			MaxAttempts: 0,
		},
		Serve: ServeConfig{
			Addr: "127.0.0.1:8787",
		},
	}
}

// DefaultPath returns the standard config file location. The file is
// optional; a missing file is not an error.
func DefaultPath() (string, error) {
	dir, err := platform.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load builds the effective configuration. An empty path means "use
// the default location if a file exists there".
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		defaultPath, err := DefaultPath()
		if err == nil {
			path = defaultPath
		}
	}

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			if explicit || !os.IsNotExist(err) {
				return Config{}, err
			}
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("VOXSCRIBE_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("VOXSCRIBE_MODEL_DIR"); v != "" {
		cfg.ModelDir = v
	}
	if v := os.Getenv("VOXSCRIBE_LANGUAGE"); v != "" {
		cfg.Language = v
	}
	if v := os.Getenv("VOXSCRIBE_PRO"); v != "" {
		pro, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse VOXSCRIBE_PRO=%q: %w", v, err)
		}
		cfg.Pro = pro
	}
	if v := os.Getenv("VOXSCRIBE_RETRY_DELAY"); v != "" {
		delay, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse VOXSCRIBE_RETRY_DELAY=%q: %w", v, err)
		}
		cfg.Retry.Delay = delay
	}
	if v := os.Getenv("VOXSCRIBE_SERVE_ADDR"); v != "" {
		cfg.Serve.Addr = v
	}
	return nil
}

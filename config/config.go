// Package config - Loads the runtime configuration from YAML and the environment.
package config

import (
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/nvr-ai/go-infer/inference"
	"github.com/nvr-ai/go-infer/models/model"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Environment overrides, applied after the YAML file.
const (
	EnvEngine  = "INFER_ENGINE"
	EnvORTLib  = "INFER_ORT_LIB"
	EnvDebug   = "INFER_DEBUG"
	EnvWorkers = "INFER_WORKERS"
)

// Config is the full runtime configuration of a prediction run.
type Config struct {
	// Model selects the artifact and the engine that runs it.
	Model inference.Criteria `json:"model" yaml:"model"`
	// Translator configures input and output processing.
	Translator model.Options `json:"translator" yaml:"translator"`
	// LogLevel is one of debug, info, warn or error.
	LogLevel string `json:"log_level" yaml:"log_level"`
	// Workers bounds concurrent predictions in a batch.
	Workers int `json:"workers" yaml:"workers"`
	// Iterations is how many times the input is predicted.
	Iterations int `json:"iterations" yaml:"iterations"`
	// LogDir receives rendered output images. Empty disables rendering.
	LogDir string `json:"log_dir,omitempty" yaml:"log_dir,omitempty"`
}

// Default returns an SSD configuration on onnxruntime.
func Default() Config {
	return Config{
		Model: inference.Criteria{
			ModelDir:  "models",
			ModelName: "ssd_512_resnet50_v1_voc",
			Engine:    inference.EngineConfig{Type: inference.EngineONNX},
		},
		Translator: model.DefaultOptions(model.ModelNameSSD),
		LogLevel:   "info",
		Workers:    runtime.NumCPU(),
		Iterations: 1,
	}
}

// Load reads path over Default and applies the environment. An empty path
// skips the file.
//
// Arguments:
//   - path: The YAML file, or "".
//
// Returns:
//   - Config: The merged configuration.
//   - error: An error if the file cannot be read or parsed, or the result is invalid.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return c, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(data, &c); err != nil {
			return c, errors.Wrapf(err, "parse %s", path)
		}
	}
	if err := c.ApplyEnv(); err != nil {
		return c, err
	}
	return c, c.Validate()
}

// ApplyEnv overrides fields from INFER_* variables.
func (c *Config) ApplyEnv() error {
	if s := Var(EnvEngine); s != "" {
		t, err := inference.ParseEngineType(s)
		if err != nil {
			return errors.Wrap(err, EnvEngine)
		}
		c.Model.Engine.Type = t
	}
	if s := Var(EnvORTLib); s != "" {
		if c.Model.Engine.Options == nil {
			c.Model.Engine.Options = map[string]string{}
		}
		c.Model.Engine.Options["library"] = s
	}
	if s := Var(EnvDebug); s != "" {
		c.LogLevel = levelName(debugLevel(s))
	}
	if s := Var(EnvWorkers); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return errors.Errorf("%s must be a positive integer, got %q", EnvWorkers, s)
		}
		c.Workers = n
	}
	return nil
}

// Validate checks the merged configuration.
func (c Config) Validate() error {
	if c.Model.ModelName == "" {
		return errors.New("model name is required")
	}
	if _, err := inference.ParseEngineType(string(c.Model.Engine.Type)); err != nil {
		return err
	}
	if err := c.Translator.Validate(); err != nil {
		return errors.Wrap(err, "translator")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Workers < 0 {
		return errors.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.Iterations < 1 {
		return errors.Errorf("iterations must be at least 1, got %d", c.Iterations)
	}
	return nil
}

// Level returns the configured slog level, defaulting to info.
func (c Config) Level() slog.Level {
	l, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

// ParseLevel parses debug, info, warn or error. Empty is info.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, errors.Errorf("unknown log level %q", s)
	}
	return l, nil
}

// debugLevel reads INFER_DEBUG: a true bool means debug and an integer n
// lowers the level by n steps below info.
func debugLevel(s string) slog.Level {
	if b, err := strconv.ParseBool(s); err == nil {
		if b {
			return slog.LevelDebug
		}
		return slog.LevelInfo
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return slog.Level(i * -4)
	}
	return slog.LevelInfo
}

func levelName(l slog.Level) string {
	return strings.ToLower(l.String())
}

// Var returns the variable with surrounding spaces and quotes removed.
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}

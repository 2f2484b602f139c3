// Package config loads wastesortd settings from a yaml, json or toml file
// and overlays WASTESORT_* environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultAddr         = ":8080"
	DefaultInputSize    = 224
	DefaultMaxBodyBytes = 10 << 20
	DefaultLogLevel     = "info"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by ApplyDefaults.
type Config struct {
	Addr             string   `json:"addr" yaml:"addr" toml:"addr"`
	ModelDirs        []string `json:"model_dirs" yaml:"model_dirs" toml:"model_dirs"`
	DefaultLabels    []string `json:"default_labels" yaml:"default_labels" toml:"default_labels"`
	DefaultInputSize int      `json:"default_input_size" yaml:"default_input_size" toml:"default_input_size"`
	ONNXLibraryPath  string   `json:"onnx_library_path" yaml:"onnx_library_path" toml:"onnx_library_path"`
	Preload          bool     `json:"preload" yaml:"preload" toml:"preload"`
	LogLevel         string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	MaxBodyBytes     int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	CORSOrigins      []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Env variable names read by ApplyEnv.
const (
	EnvAddr         = "WASTESORT_ADDR"
	EnvModelDirs    = "WASTESORT_MODEL_DIRS"
	EnvLabels       = "WASTESORT_DEFAULT_LABELS"
	EnvInputSize    = "WASTESORT_INPUT_SIZE"
	EnvONNXLib      = "WASTESORT_ONNX_LIBRARY"
	EnvPreload      = "WASTESORT_PRELOAD"
	EnvLogLevel     = "WASTESORT_LOG_LEVEL"
	EnvMaxBodyBytes = "WASTESORT_MAX_BODY_BYTES"
	EnvCORSOrigins  = "WASTESORT_CORS_ORIGINS"
)

// ApplyEnv overlays set environment variables onto cfg. getenv is usually
// os.Getenv. Malformed numbers and booleans are reported, not ignored.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvAddr); v != "" {
		c.Addr = v
	}
	if v := SplitCSV(getenv(EnvModelDirs)); len(v) > 0 {
		c.ModelDirs = v
	}
	if v := SplitCSV(getenv(EnvLabels)); len(v) > 0 {
		c.DefaultLabels = v
	}
	if v := getenv(EnvInputSize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvInputSize, err)
		}
		c.DefaultInputSize = n
	}
	if v := getenv(EnvONNXLib); v != "" {
		c.ONNXLibraryPath = v
	}
	if v := getenv(EnvPreload); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPreload, err)
		}
		c.Preload = b
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := getenv(EnvMaxBodyBytes); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxBodyBytes, err)
		}
		c.MaxBodyBytes = n
	}
	if v := SplitCSV(getenv(EnvCORSOrigins)); len(v) > 0 {
		c.CORSOrigins = v
	}
	return nil
}

// ApplyDefaults fills unspecified fields.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.DefaultInputSize <= 0 {
		c.DefaultInputSize = DefaultInputSize
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// SplitCSV splits a comma-separated list, trimming blanks.
func SplitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

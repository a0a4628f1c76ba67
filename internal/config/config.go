// Package config loads qcsv settings from defaults, a YAML file and the environment.
//
// Precedence, lowest first: Default, the YAML file, the .env file, the process
// environment. Command-line flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/nao1215/qcsv"
	"github.com/nao1215/qcsv/domain/model"
	"github.com/nao1215/qcsv/internal/logger"
	"github.com/nao1215/qcsv/internal/render"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig indicates a configuration file or value that cannot be used.
var ErrInvalidConfig = errors.New("qcsv: invalid configuration")

const (
	// DefaultFile is read from the working directory when no config path is given
	DefaultFile = ".qcsv.yaml"
	// DefaultEnvFile is read from the working directory when no env file is given
	DefaultEnvFile = ".env"
	// DefaultMaxRows caps the rows printed for a custom query
	DefaultMaxRows = 50
	// DefaultNullText is printed for NULL values in table output
	DefaultNullText = "NULL"
)

// Environment variable names
const (
	EnvPreviewRows = "QCSV_PREVIEW_ROWS"
	EnvMaxRows     = "QCSV_MAX_ROWS"
	EnvSampleRows  = "QCSV_SAMPLE_ROWS"
	EnvFormat      = "QCSV_FORMAT"
	EnvNullText    = "QCSV_NULL_TEXT"
	EnvLogLevel    = "LOG_LEVEL"
)

// Config holds the settings of one invocation.
type Config struct {
	// PreviewRows is the number of rows printed without a mode flag.
	PreviewRows int `yaml:"preview_rows"`
	// MaxRows caps the rows printed for a custom query. 0 prints every row.
	MaxRows int `yaml:"max_rows"`
	// SampleRows is the number of rows used for column type inference.
	SampleRows int `yaml:"sample_rows"`
	// Format is the output format name.
	Format string `yaml:"format"`
	// NullText is printed for NULL values in table and markdown output.
	NullText string `yaml:"null_text"`
	// LogLevel is the zap level name.
	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		PreviewRows: qcsv.DefaultPreviewRows,
		MaxRows:     DefaultMaxRows,
		SampleRows:  model.DefaultSampleRows,
		Format:      render.FormatTable.String(),
		NullText:    DefaultNullText,
		LogLevel:    logger.DefaultLevel,
	}
}

// Load returns Default overlaid with the YAML file at path. An empty path
// reads DefaultFile when it exists. Keys missing from the file keep their
// defaults and unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	f, err := os.Open(path) //nolint:gosec // User-provided path is necessary for file operations
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("%w: failed to read config file: %w", ErrInvalidConfig, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("%w: failed to parse config file %s: %w", ErrInvalidConfig, path, err)
	}
	return cfg, nil
}

// Env looks up environment variables, preferring the process environment
// over values read from an env file.
type Env struct {
	file   map[string]string
	lookup func(string) (string, bool)
}

// NewEnv combines the values of an env file with a process environment
// lookup such as os.LookupEnv. Either may be nil.
func NewEnv(file map[string]string, lookup func(string) (string, bool)) Env {
	return Env{file: file, lookup: lookup}
}

// Lookup returns the value of key.
func (e Env) Lookup(key string) (string, bool) {
	if e.lookup != nil {
		if v, ok := e.lookup(key); ok {
			return v, true
		}
	}
	v, ok := e.file[key]
	return v, ok
}

// ReadEnvFile reads KEY=VALUE pairs with godotenv without touching the
// process environment. A missing file is an error only when required is true.
func ReadEnvFile(path string, required bool) (map[string]string, error) {
	if path == "" {
		path = DefaultEnvFile
	}
	if _, err := os.Stat(path); err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: failed to read env file: %w", ErrInvalidConfig, err)
	}

	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse env file %s: %w", ErrInvalidConfig, path, err)
	}
	return values, nil
}

// ApplyEnv overrides the settings present in env.
func (c *Config) ApplyEnv(env Env) error {
	ints := []struct {
		key string
		dst *int
	}{
		{key: EnvPreviewRows, dst: &c.PreviewRows},
		{key: EnvMaxRows, dst: &c.MaxRows},
		{key: EnvSampleRows, dst: &c.SampleRows},
	}
	for _, v := range ints {
		s, ok := env.Lookup(v.key)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, v.key, s)
		}
		*v.dst = n
	}

	if s, ok := env.Lookup(EnvFormat); ok && s != "" {
		c.Format = s
	}
	if s, ok := env.Lookup(EnvNullText); ok {
		c.NullText = s
	}
	if s, ok := env.Lookup(EnvLogLevel); ok && s != "" {
		c.LogLevel = s
	}
	return nil
}

// Validate rejects negative counts, unknown formats and unknown log levels.
// SampleRows may be -1 to sample every row.
func (c Config) Validate() error {
	if c.PreviewRows < 0 {
		return fmt.Errorf("%w: preview_rows must not be negative, got %d", ErrInvalidConfig, c.PreviewRows)
	}
	if c.MaxRows < 0 {
		return fmt.Errorf("%w: max_rows must not be negative, got %d", ErrInvalidConfig, c.MaxRows)
	}
	if c.SampleRows < -1 {
		return fmt.Errorf("%w: sample_rows must be -1 or more, got %d", ErrInvalidConfig, c.SampleRows)
	}
	if _, err := render.ParseFormat(c.Format); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Package config loads the tunable parts of a merge: similarity constants,
// alignment parameters and the shell's logging, tracing and storage
// settings.
//
// Configuration is layered. Built-in defaults are overlaid by an optional
// YAML file, which is checked against an embedded CUE schema first, and then
// by TICKMERGE_* environment variables.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"

	"github.com/roach88/tickmerge/internal/align"
	"github.com/roach88/tickmerge/internal/merge"
	"github.com/roach88/tickmerge/internal/observe"
	"github.com/roach88/tickmerge/internal/similarity"
)

//go:embed schema.cue
var schemaSource string

// Config is the complete configuration.
type Config struct {
	Similarity similarity.Constants `yaml:"similarity" json:"similarity"`
	Align      align.Params         `yaml:"align" json:"align"`
	Log        Log                  `yaml:"log" json:"log"`
	Tracing    Tracing              `yaml:"tracing" json:"tracing"`
	Store      Store                `yaml:"store" json:"store"`
}

// Log configures the shell's slog handler.
type Log struct {
	Level string `yaml:"level" json:"level" env:"TICKMERGE_LOG_LEVEL"`
}

// SlogLevel parses Level. "trace" is observe.LevelTrace.
func (l Log) SlogLevel() (slog.Level, error) {
	if strings.EqualFold(l.Level, "trace") {
		return observe.LevelTrace, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", l.Level, err)
	}
	return level, nil
}

// Tracing configures OpenTelemetry export of merge phases.
type Tracing struct {
	Enabled     bool   `yaml:"enabled" json:"enabled" env:"TICKMERGE_TRACING_ENABLED"`
	Endpoint    string `yaml:"endpoint" json:"endpoint" env:"TICKMERGE_OTLP_ENDPOINT"`
	ServiceName string `yaml:"service_name" json:"service_name" env:"TICKMERGE_SERVICE_NAME"`
}

// Store configures the audit database.
type Store struct {
	Path string `yaml:"path" json:"path" env:"TICKMERGE_DB"`
}

// Settings is the part of the configuration that changes merge output. It
// is stored with every merge run so the run can be replayed.
type Settings struct {
	Similarity similarity.Constants `yaml:"similarity" json:"similarity"`
	Align      align.Params         `yaml:"align" json:"align"`
}

// Settings returns the merge settings of c.
func (c Config) Settings() Settings {
	return Settings{Similarity: c.Similarity, Align: c.Align}
}

// MergeOptions converts the settings into merger options.
func (s Settings) MergeOptions() []merge.Option {
	return []merge.Option{merge.WithConstants(s.Similarity), merge.WithAlignParams(s.Align)}
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Similarity: similarity.DefaultConstants(),
		Align:      align.DefaultParams(),
		Log:        Log{Level: "info"},
		Tracing:    Tracing{ServiceName: "tickmerge"},
	}
}

// Error is a configuration file that could not be loaded.
type Error struct {
	Path string

	// Op is the step that failed: read, validate or decode.
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("config %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsValidationError reports whether err is a file that violates the schema.
func IsValidationError(err error) bool {
	var cfgErr *Error
	return errors.As(err, &cfgErr) && cfgErr.Op == "validate"
}

// Load returns the defaults overlaid by the YAML file at path and then by
// the environment. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, &Error{Path: path, Op: "read", Err: err}
		}
		if err := Parse(path, data, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse validates YAML data against the schema and overlays it onto cfg.
// Keys absent from data leave cfg unchanged. name is used in errors.
func Parse(name string, data []byte, cfg *Config) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := validate(name, data); err != nil {
		return &Error{Path: name, Op: "validate", Err: err}
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return &Error{Path: name, Op: "decode", Err: err}
	}
	return nil
}

func validate(name string, data []byte) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	file, err := cueyaml.Extract(name, data)
	if err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	value := ctx.BuildFile(file)
	if err := value.Err(); err != nil {
		return fmt.Errorf("build value: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(value)
	return unified.Validate(cue.Concrete(true))
}

// Package config loads run settings from an optional YAML file.
//
// The file is decoded with yaml.v3 and then unified with an embedded CUE
// definition, which rejects unknown keys, range-checks numbers, and fills in
// defaults. An empty or missing path yields the defaults.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Config holds every run setting.
type Config struct {
	LogFile            string
	CheckpointFile     string
	RestoreFile        string
	CheckpointInterval time.Duration
	StatusInterval     time.Duration
	Workers            int // 0 means GOMAXPROCS
	ChunksPerWorker    int
	GroupLimbs         int
	Compress           bool
	Ledger             string
	Label              string
	LogLevel           string
	EventLog           string
}

// fileConfig mirrors #Config field for field.
type fileConfig struct {
	LogFile            string `json:"log_file"`
	CheckpointFile     string `json:"checkpoint_file"`
	RestoreFile        string `json:"restore_file"`
	CheckpointInterval string `json:"checkpoint_interval"`
	StatusInterval     string `json:"status_interval"`
	Workers            int    `json:"workers"`
	ChunksPerWorker    int    `json:"chunks_per_worker"`
	GroupLimbs         int    `json:"group_limbs"`
	Compress           bool   `json:"compress"`
	Ledger             string `json:"ledger"`
	Label              string `json:"label"`
	LogLevel           string `json:"log_level"`
	EventLog           string `json:"event_log"`
}

// Issue is one schema violation.
type Issue struct {
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// SchemaError reports every violation found while validating a file.
type SchemaError struct {
	err error
}

func (e *SchemaError) Error() string { return "invalid config: " + e.err.Error() }

func (e *SchemaError) Unwrap() error { return e.err }

// Issues lists the individual violations.
func (e *SchemaError) Issues() []Issue {
	var issues []Issue
	for _, ce := range cueerrors.Errors(e.err) {
		format, args := ce.Msg()
		issues = append(issues, Issue{
			Path:    strings.TrimPrefix(strings.Join(ce.Path(), "."), "#Config."),
			Message: fmt.Sprintf(format, args...),
		})
	}
	return issues
}

// Default returns the settings used when no file is given.
func Default() *Config {
	cfg, err := Parse(nil)
	if err != nil {
		panic(fmt.Sprintf("config: embedded schema: %v", err))
	}
	return cfg
}

// Load reads and validates the YAML file at path.
// An empty path returns Default().
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse validates YAML data against the schema and applies defaults.
func Parse(data []byte) (*Config, error) {
	raw := map[string]any{}
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(raw))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, &SchemaError{err: err}
	}

	var fc fileConfig
	if err := v.Decode(&fc); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return fc.resolve()
}

func (fc fileConfig) resolve() (*Config, error) {
	ckpt, err := time.ParseDuration(fc.CheckpointInterval)
	if err != nil {
		return nil, fmt.Errorf("checkpoint_interval: %w", err)
	}
	stat, err := time.ParseDuration(fc.StatusInterval)
	if err != nil {
		return nil, fmt.Errorf("status_interval: %w", err)
	}
	return &Config{
		LogFile:            fc.LogFile,
		CheckpointFile:     fc.CheckpointFile,
		RestoreFile:        fc.RestoreFile,
		CheckpointInterval: ckpt,
		StatusInterval:     stat,
		Workers:            fc.Workers,
		ChunksPerWorker:    fc.ChunksPerWorker,
		GroupLimbs:         fc.GroupLimbs,
		Compress:           fc.Compress,
		Ledger:             fc.Ledger,
		Label:              fc.Label,
		LogLevel:           fc.LogLevel,
		EventLog:           fc.EventLog,
	}, nil
}

// Level maps LogLevel to a slog level.
func (c *Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

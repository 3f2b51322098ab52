package config

import (
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"toylang/internal/runtime"
)

// FileName is the configuration file looked up in the working directory.
const FileName = "toy.yml"

// Config is the validated contents of toy.yml.
type Config struct {
	Path    string        `yaml:"-"`
	Output  OutputConfig  `yaml:"output"`
	Limits  LimitsConfig  `yaml:"limits"`
	Log     LogConfig     `yaml:"log"`
	Journal JournalConfig `yaml:"journal"`
	Server  ServerConfig  `yaml:"server"`
	Test    TestConfig    `yaml:"test"`
	REPL    REPLConfig    `yaml:"repl"`
}

type OutputConfig struct {
	BoolFormat string `yaml:"bool_format"` // numeric | words
}

type LimitsConfig struct {
	MaxSteps    int64         `yaml:"max_steps"`
	MaxArrayLen int           `yaml:"max_array_len"`
	Timeout     time.Duration `yaml:"timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
}

// JournalConfig selects the run journal database; an empty DSN disables it.
type JournalConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	MaxSteps       int64         `yaml:"max_steps"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxSourceBytes int64         `yaml:"max_source_bytes"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

type TestConfig struct {
	Parallelism int           `yaml:"parallelism"`
	Timeout     time.Duration `yaml:"timeout"`
	Format      string        `yaml:"format"` // text | json
}

type REPLConfig struct {
	HistoryFile string `yaml:"history_file"`
	Prompt      string `yaml:"prompt"`
}

// Default returns the configuration used when no toy.yml exists.
func Default() *Config {
	return &Config{
		Output: OutputConfig{BoolFormat: "numeric"},
		Log:    LogConfig{Level: "warn", Format: "text"},
		Journal: JournalConfig{
			MaxOpenConns: 4,
		},
		Server: ServerConfig{
			Addr:           "127.0.0.1:8080",
			MaxSteps:       1_000_000,
			Timeout:        2 * time.Second,
			MaxSourceBytes: 64 << 10,
		},
		Test: TestConfig{
			Parallelism: 4,
			Timeout:     10 * time.Second,
			Format:      "text",
		},
		REPL: REPLConfig{
			HistoryFile: ".toy_history",
			Prompt:      "toy> ",
		},
	}
}

// ValidationError aggregates configuration problems.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "config: invalid configuration"
	}
	var b strings.Builder
	b.WriteString("config validation failed:")
	for _, issue := range e.Issues {
		b.WriteString("\n- ")
		b.WriteString(issue)
	}
	return b.String()
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, stderrors.New("config: empty path")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: open %s", path)
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "config: %s", path)
	}
	cfg.Path = path
	return cfg, nil
}

// Decode parses YAML from r over the defaults. Unknown keys are rejected.
// An empty document yields the defaults.
func Decode(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !stderrors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "parse")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Find loads toy.yml from dir when present and returns the defaults
// otherwise.
func Find(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, errors.Wrapf(err, "config: stat %s", path)
	}
	return Load(path)
}

func (c *Config) validate() error {
	var errs ValidationError
	switch c.Output.BoolFormat {
	case "numeric", "words":
	default:
		errs.Issues = append(errs.Issues, fmt.Sprintf("output.bool_format must be numeric or words, got %q", c.Output.BoolFormat))
	}
	if c.Limits.MaxSteps < 0 {
		errs.Issues = append(errs.Issues, "limits.max_steps must not be negative")
	}
	if c.Limits.MaxArrayLen < 0 {
		errs.Issues = append(errs.Issues, "limits.max_array_len must not be negative")
	}
	if c.Limits.Timeout < 0 {
		errs.Issues = append(errs.Issues, "limits.timeout must not be negative")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs.Issues = append(errs.Issues, err.Error())
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs.Issues = append(errs.Issues, fmt.Sprintf("log.format must be text or json, got %q", c.Log.Format))
	}
	if c.Journal.DSN != "" && !strings.Contains(c.Journal.DSN, "://") {
		errs.Issues = append(errs.Issues, "journal.dsn must have the form scheme://...")
	}
	if c.Server.Addr == "" {
		errs.Issues = append(errs.Issues, "server.addr must be provided")
	}
	if c.Server.MaxSteps <= 0 {
		errs.Issues = append(errs.Issues, "server.max_steps must be positive")
	}
	if c.Server.Timeout <= 0 {
		errs.Issues = append(errs.Issues, "server.timeout must be positive")
	}
	if c.Test.Parallelism < 1 {
		errs.Issues = append(errs.Issues, "test.parallelism must be at least 1")
	}
	switch c.Test.Format {
	case "text", "json":
	default:
		errs.Issues = append(errs.Issues, fmt.Sprintf("test.format must be text or json, got %q", c.Test.Format))
	}
	if len(errs.Issues) > 0 {
		return &errs
	}
	return nil
}

// BoolFormat maps output.bool_format to the runtime setting.
func (c *Config) BoolFormat() runtime.BoolFormat {
	if c.Output.BoolFormat == "words" {
		return runtime.BoolWords
	}
	return runtime.BoolNumeric
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level %q is not one of debug, info, warn, error", s)
	}
	return lvl, nil
}

// Logger builds the slog logger described by the log section.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	lvl, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: lvl}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toylang/internal/runtime"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, runtime.BoolNumeric, cfg.BoolFormat())
}

func TestDecodeOverridesDefaults(t *testing.T) {
	src := `
output:
  bool_format: words
limits:
  max_steps: 5000
  timeout: 1500ms
log:
  level: debug
  format: json
journal:
  dsn: sqlite:///tmp/toy.db
server:
  addr: ":9000"
test:
  parallelism: 2
`
	cfg, err := Decode(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, runtime.BoolWords, cfg.BoolFormat())
	assert.Equal(t, int64(5000), cfg.Limits.MaxSteps)
	assert.Equal(t, 1500*time.Millisecond, cfg.Limits.Timeout)
	assert.Equal(t, "sqlite:///tmp/toy.db", cfg.Journal.DSN)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 2, cfg.Test.Parallelism)
	// untouched sections keep their defaults
	assert.Equal(t, Default().Server.Timeout, cfg.Server.Timeout)
	assert.Equal(t, "toy> ", cfg.REPL.Prompt)
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	_, err := Decode(strings.NewReader("outptu:\n  bool_format: words\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outptu")
}

func TestValidation(t *testing.T) {
	src := `
output: {bool_format: yes_no}
limits: {max_steps: -1}
log: {level: loud, format: xml}
journal: {dsn: toy.db}
test: {parallelism: 0}
`
	_, err := Decode(strings.NewReader(src))
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Issues, 6)
	assert.Contains(t, err.Error(), "output.bool_format must be numeric or words")
	assert.Contains(t, err.Error(), `log.level "loud"`)
	assert.Contains(t, err.Error(), "journal.dsn must have the form")
}

func TestFindAndLoad(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Find(dir)
	require.NoError(t, err)
	assert.Empty(t, cfg.Path)

	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte("limits:\n  max_array_len: 64\n"), 0o644))
	cfg, err = Find(dir)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, 64, cfg.Limits.MaxArrayLen)

	_, err = Load(filepath.Join(dir, "missing.yml"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(errors.Cause(err)))
}

func TestLogger(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"

	var buf bytes.Buffer
	logger := cfg.Logger(&buf)
	logger.Debug("hidden")
	logger.Info("shown", slog.String("k", "v"))
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"k":"v"`)
}

package testing

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toylang/internal/errors"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func goldenDir(t *testing.T) string {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"sum.toy":          "int a[3]; a[0]=1; a[1]=2; print(a[0]+a[1]);",
		"sum.out":          "3\n",
		"bounds.toy":       "int a[2]; print(1); a[5]=1;",
		"bounds.out":       "1\n",
		"bounds.err":       "EvaluationError\nindex out of bounds\n",
		"nested/wrong.toy": "print(1); print(2);",
		"nested/wrong.out": "1\n3\n",
		"nested/dup.toy":   "boolean b; int b;",
		"nested/dup.err":   "ParseError",
		"orphan.toy":       "print(0);",
		"notes.txt":        "ignored",
		"nested/kind.toy":  "print(1 / 0);",
		"nested/kind.err":  "ParseError",
	})
	return dir
}

func TestLoadSuite(t *testing.T) {
	suite, err := LoadSuite(goldenDir(t))
	require.NoError(t, err)

	var names []string
	for _, tc := range suite.Tests {
		names = append(names, tc.Name)
	}
	assert.Equal(t, []string{"bounds", "nested/dup", "nested/kind", "nested/wrong", "orphan", "sum"}, names)

	bounds := suite.Tests[0]
	assert.True(t, bounds.HasOutput)
	assert.Equal(t, errors.EvaluationError, bounds.WantError)
	assert.Equal(t, "index out of bounds", bounds.WantMessage)
}

func TestLoadSuiteRejectsUnknownKind(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"x.toy": "print(1);", "x.err": "RuntimeError"})
	_, err := LoadSuite(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown error kind "RuntimeError"`)
}

func TestRunnerResults(t *testing.T) {
	suite, err := LoadSuite(goldenDir(t))
	require.NoError(t, err)

	var out bytes.Buffer
	runner := NewTestRunner(&TestConfig{Parallelism: 3, Output: &out, Verbose: true})
	runner.AddSuite(suite)
	stats := runner.Run(context.Background())

	assert.Equal(t, 6, stats.TotalTests)
	assert.Equal(t, 3, stats.PassedTests)
	assert.Equal(t, 2, stats.FailedTests)
	assert.Equal(t, 1, stats.SkippedTests)

	byName := map[string]TestResult{}
	for _, r := range suite.Results {
		byName[r.Name] = r
	}
	assert.True(t, byName["sum"].Passed)
	assert.True(t, byName["bounds"].Passed)
	assert.True(t, byName["nested/dup"].Passed)
	assert.True(t, byName["orphan"].Skipped)
	assert.Contains(t, byName["nested/kind"].Message, "expected ParseError, got EvaluationError")
	assert.Contains(t, byName["nested/wrong"].Message, "- 3\n+ 2\n")

	report := out.String()
	assert.Contains(t, report, "PASS sum")
	assert.Contains(t, report, "FAIL nested/wrong")
	assert.Contains(t, report, "3 passed, 2 failed, 1 skipped")
}

func TestRunnerFilter(t *testing.T) {
	suite, err := LoadSuite(goldenDir(t))
	require.NoError(t, err)

	runner := NewTestRunner(&TestConfig{Filter: "sum", Output: &bytes.Buffer{}})
	runner.AddSuite(suite)
	stats := runner.Run(context.Background())
	assert.Equal(t, 1, stats.PassedTests)
	assert.Equal(t, 5, stats.SkippedTests)
}

func TestRunnerTimeout(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"spin.toy": "while (true) { }",
		"spin.err": "EvaluationError\nrun interrupted",
	})
	suite, err := LoadSuite(dir)
	require.NoError(t, err)

	runner := NewTestRunner(&TestConfig{Timeout: 20 * time.Millisecond, Output: &bytes.Buffer{}})
	runner.AddSuite(suite)
	stats := runner.Run(context.Background())
	assert.Equal(t, 1, stats.PassedTests, "%+v", suite.Results)
}

func TestJSONReporter(t *testing.T) {
	suite, err := LoadSuite(goldenDir(t))
	require.NoError(t, err)

	var out bytes.Buffer
	runner := NewTestRunner(&TestConfig{OutputFormat: "json", Output: &out})
	runner.AddSuite(suite)
	runner.Run(context.Background())

	var summary JSONSummary
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary))
	assert.Equal(t, 6, summary.TotalTests)
	require.Len(t, summary.Results, 6)
	assert.Equal(t, suite.Name, summary.Results[0].Suite)
	assert.Equal(t, "bounds", summary.Results[0].Test)
}

func TestJUnitReporter(t *testing.T) {
	suite, err := LoadSuite(goldenDir(t))
	require.NoError(t, err)

	var out bytes.Buffer
	runner := NewTestRunner(&TestConfig{OutputFormat: "junit", Output: &out})
	runner.AddSuite(suite)
	runner.Run(context.Background())

	xml := out.String()
	assert.True(t, strings.HasPrefix(xml, "<?xml"))
	assert.Contains(t, xml, `failures="2"`)
	assert.Contains(t, xml, `<testcase name="sum"`)
}

func TestLineDiff(t *testing.T) {
	assert.Equal(t, "  1\n- 2\n+ 3\n  4\n", LineDiff("1\n2\n4\n", "1\n3\n4\n"))
	assert.Equal(t, "  same\n", LineDiff("same\n", "same\n"))
}

// internal/testing/framework.go
package testing

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
	"golang.org/x/sync/errgroup"

	"toylang/internal/errors"
	"toylang/internal/interpreter"
	"toylang/internal/runtime"
)

// File extensions of a golden test: the program, its expected output and
// its expected error.
const (
	SourceExt = ".toy"
	OutputExt = ".out"
	ErrorExt  = ".err"
)

// TestResult represents the result of a single test
type TestResult struct {
	Name     string
	File     string
	Passed   bool
	Failed   bool
	Skipped  bool
	Duration time.Duration
	Error    error
	Message  string
}

// TestCase is one program plus its expectations. A .err file holds the
// error kind on its first line and, optionally, text the message must
// contain on the next.
type TestCase struct {
	Name        string
	File        string
	Source      string
	WantOutput  string
	HasOutput   bool
	WantError   errors.ErrorType
	WantMessage string
}

// TestSuite is every golden test found under one directory.
type TestSuite struct {
	Name      string
	Dir       string
	Tests     []TestCase
	Results   []TestResult
	StartTime time.Time
	EndTime   time.Time
}

// TestRunner manages test execution
type TestRunner struct {
	suites   []*TestSuite
	config   *TestConfig
	reporter TestReporter
	stats    *TestStats
	log      *slog.Logger
}

// TestConfig holds configuration for test execution
type TestConfig struct {
	Verbose      bool
	Parallelism  int
	Filter       string
	Timeout      time.Duration // per program
	FailFast     bool
	OutputFormat string // "text", "json", "junit"
	Output       io.Writer
	BoolFormat   runtime.BoolFormat
	MaxSteps     int64
	Logger       *slog.Logger
}

// TestStats tracks overall test statistics
type TestStats struct {
	TotalTests   int
	PassedTests  int
	FailedTests  int
	SkippedTests int
	TotalTime    time.Duration
	Suites       int
}

// TestReporter interface for different output formats
type TestReporter interface {
	StartSuite(suite *TestSuite)
	EndSuite(suite *TestSuite)
	TestPassed(result TestResult)
	TestFailed(result TestResult)
	TestSkipped(result TestResult)
	Summary(stats *TestStats)
}

var errFailFast = stderrors.New("stopping after first failure")

// NewTestRunner creates a new test runner
func NewTestRunner(config *TestConfig) *TestRunner {
	if config == nil {
		config = &TestConfig{}
	}
	if config.Parallelism < 1 {
		config.Parallelism = 1
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Output == nil {
		config.Output = os.Stdout
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var reporter TestReporter
	switch config.OutputFormat {
	case "json":
		reporter = NewJSONReporter(config.Output)
	case "junit":
		reporter = NewJUnitReporter(config.Output)
	default:
		reporter = NewTextReporter(config.Output, config.Verbose)
	}

	return &TestRunner{
		config:   config,
		reporter: reporter,
		stats:    &TestStats{},
		log:      logger,
	}
}

// LoadSuite collects every program under dir, sorted by path.
func LoadSuite(dir string) (*TestSuite, error) {
	suite := &TestSuite{Name: filepath.Base(dir), Dir: dir}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != SourceExt {
			return nil
		}
		tc, err := loadCase(dir, path)
		if err != nil {
			return err
		}
		suite.Tests = append(suite.Tests, tc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load suite %s: %w", dir, err)
	}
	sort.Slice(suite.Tests, func(i, j int) bool { return suite.Tests[i].File < suite.Tests[j].File })
	return suite, nil
}

func loadCase(root, path string) (TestCase, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return TestCase{}, err
	}
	name, _ := filepath.Rel(root, path)
	tc := TestCase{
		Name:   strings.TrimSuffix(filepath.ToSlash(name), SourceExt),
		File:   path,
		Source: string(src),
	}
	stem := strings.TrimSuffix(path, SourceExt)

	if out, err := os.ReadFile(stem + OutputExt); err == nil {
		tc.WantOutput = string(out)
		tc.HasOutput = true
	} else if !os.IsNotExist(err) {
		return TestCase{}, err
	}

	if want, err := os.ReadFile(stem + ErrorExt); err == nil {
		lines := strings.SplitN(strings.TrimSpace(string(want)), "\n", 2)
		tc.WantError = errors.ErrorType(strings.TrimSpace(lines[0]))
		if len(lines) == 2 {
			tc.WantMessage = strings.TrimSpace(lines[1])
		}
		switch tc.WantError {
		case errors.LexicalError, errors.ParseError, errors.EvaluationError:
		default:
			return TestCase{}, fmt.Errorf("%s: unknown error kind %q", stem+ErrorExt, tc.WantError)
		}
	} else if !os.IsNotExist(err) {
		return TestCase{}, err
	}
	return tc, nil
}

// AddSuite adds a test suite to the runner
func (r *TestRunner) AddSuite(suite *TestSuite) {
	r.suites = append(r.suites, suite)
}

// Run executes all test suites
func (r *TestRunner) Run(ctx context.Context) *TestStats {
	startTime := time.Now()

	for _, suite := range r.suites {
		r.runSuite(ctx, suite)
		if r.config.FailFast && r.hasFailures(suite) {
			break
		}
	}

	r.stats.TotalTime = time.Since(startTime)
	r.reporter.Summary(r.stats)

	return r.stats
}

// runSuite runs the programs of a suite concurrently, bounded by
// Parallelism, and reports them in file order.
func (r *TestRunner) runSuite(ctx context.Context, suite *TestSuite) {
	suite.StartTime = time.Now()
	r.reporter.StartSuite(suite)

	results := make([]TestResult, len(suite.Tests))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.Parallelism)
	for i := range suite.Tests {
		tc := suite.Tests[i]
		if !r.shouldRunTest(tc) {
			results[i] = TestResult{Name: tc.Name, File: tc.File, Skipped: true, Message: "filtered out"}
			continue
		}
		g.Go(func() error {
			results[i] = r.runTest(gctx, tc)
			if r.config.FailFast && results[i].Failed {
				return errFailFast
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, result := range results {
		switch {
		case result.Passed:
			r.reporter.TestPassed(result)
		case result.Failed:
			r.reporter.TestFailed(result)
		default:
			r.reporter.TestSkipped(result)
		}
	}
	suite.Results = results
	suite.EndTime = time.Now()
	r.reporter.EndSuite(suite)
	r.updateStats(suite)
}

// runTest executes a single program and checks its expectations
func (r *TestRunner) runTest(ctx context.Context, tc TestCase) TestResult {
	result := TestResult{Name: tc.Name, File: tc.File}
	if ctx.Err() != nil {
		result.Skipped = true
		result.Message = "not run: " + ctx.Err().Error()
		return result
	}
	if !tc.HasOutput && tc.WantError == "" {
		result.Skipped = true
		result.Message = "no " + OutputExt + " or " + ErrorExt + " file"
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	var out bytes.Buffer
	start := time.Now()
	_, err := interpreter.Exec(ctx, tc.Source, interpreter.Options{
		Output:     &out,
		BoolFormat: r.config.BoolFormat,
		MaxSteps:   r.config.MaxSteps,
		File:       tc.File,
	})
	result.Duration = time.Since(start)
	r.log.Debug("golden program finished", "name", tc.Name, "duration", result.Duration, "error", err)

	var problems []string
	switch {
	case err != nil && tc.WantError == "":
		result.Error = err
		problems = append(problems, "unexpected error")
	case err == nil && tc.WantError != "":
		problems = append(problems, fmt.Sprintf("expected %s, program succeeded", tc.WantError))
	case err != nil:
		if got := errors.TypeOf(err); got != tc.WantError {
			result.Error = err
			problems = append(problems, fmt.Sprintf("expected %s, got %s", tc.WantError, got))
		} else if tc.WantMessage != "" && !strings.Contains(err.Error(), tc.WantMessage) {
			result.Error = err
			problems = append(problems, fmt.Sprintf("error does not mention %q", tc.WantMessage))
		}
	}
	if tc.HasOutput && out.String() != tc.WantOutput {
		problems = append(problems, "output mismatch (-want +got):\n"+LineDiff(tc.WantOutput, out.String()))
	}

	if len(problems) > 0 {
		result.Failed = true
		result.Message = strings.Join(problems, "\n")
	} else {
		result.Passed = true
	}
	return result
}

// LineDiff renders a line-oriented diff of want against got.
func LineDiff(want, got string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(want, got)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	for _, d := range diffs {
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			sb.WriteString(prefix)
			sb.WriteString(strings.TrimSuffix(line, "\n"))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func (r *TestRunner) shouldRunTest(tc TestCase) bool {
	return r.config.Filter == "" || strings.Contains(tc.Name, r.config.Filter)
}

func (r *TestRunner) hasFailures(suite *TestSuite) bool {
	for _, result := range suite.Results {
		if result.Failed {
			return true
		}
	}
	return false
}

func (r *TestRunner) updateStats(suite *TestSuite) {
	r.stats.Suites++
	for _, result := range suite.Results {
		r.stats.TotalTests++
		switch {
		case result.Passed:
			r.stats.PassedTests++
		case result.Failed:
			r.stats.FailedTests++
		default:
			r.stats.SkippedTests++
		}
	}
}

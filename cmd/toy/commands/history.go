package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"toylang/internal/database"
)

// HistoryCommand lists journaled runs, or shows one with `toy history <id>`.
func HistoryCommand(ctx context.Context, e *Env, args []string) error {
	var g globals
	fs := newFlags("history", &g)
	limit := fs.IntP("limit", "n", 20, "number of runs to list")
	asJSON := fs.Bool("json", false, "print runs as JSON")
	if err := e.parse(fs, &g, args); err != nil {
		return err
	}
	if fs.NArg() > 1 {
		return usagef("history", "expected at most one run id")
	}
	if e.Config.Journal.DSN == "" {
		return usagef("history", "no journal configured (set journal.dsn in %s)", "toy.yml")
	}

	j, err := database.Open(ctx, e.Config.Journal.DSN, database.Options{
		MaxOpenConns: e.Config.Journal.MaxOpenConns,
		Logger:       e.Log,
	})
	if err != nil {
		return err
	}
	defer j.Close()

	if fs.NArg() == 1 {
		run, err := j.Get(ctx, fs.Arg(0))
		if err != nil {
			return err
		}
		if *asJSON {
			return writeRuns(e, []database.Run{run})
		}
		showRun(e, run)
		return nil
	}

	runs, err := j.Recent(ctx, *limit)
	if err != nil {
		return err
	}
	if *asJSON {
		return writeRuns(e, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(e.Stdout, "no runs recorded")
		return nil
	}
	tw := tabwriter.NewWriter(e.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tSTEPS\tDURATION\tNAME")
	for _, r := range runs {
		status := r.Status
		if r.ErrorKind != "" {
			status += " (" + r.ErrorKind + ")"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%v\t%s\n",
			shortID(r.ID), humanize.Time(r.StartedAt), status,
			humanize.Comma(r.Steps), r.Duration.Round(time.Microsecond), r.Name)
	}
	return tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func showRun(e *Env, r database.Run) {
	fmt.Fprintf(e.Stdout, "id:       %s\n", r.ID)
	fmt.Fprintf(e.Stdout, "name:     %s\n", r.Name)
	fmt.Fprintf(e.Stdout, "started:  %s (%s)\n", r.StartedAt.Format(time.RFC3339), humanize.Time(r.StartedAt))
	fmt.Fprintf(e.Stdout, "duration: %v\n", r.Duration)
	fmt.Fprintf(e.Stdout, "status:   %s\n", r.Status)
	fmt.Fprintf(e.Stdout, "steps:    %s\n", humanize.Comma(r.Steps))
	fmt.Fprintf(e.Stdout, "digest:   %s\n", r.Digest)
	if r.Message != "" {
		fmt.Fprintf(e.Stdout, "error:\n%s\n", indent(r.Message))
	}
	if r.Output != "" {
		fmt.Fprintf(e.Stdout, "output (%s):\n%s", humanize.Bytes(uint64(len(r.Output))), indent(r.Output))
	}
}

func indent(s string) string {
	lines := strings.SplitAfter(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = "    " + l
		}
	}
	return strings.Join(lines, "")
}

type runJSON struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	DurationNS int64     `json:"duration_ns"`
	Name       string    `json:"name"`
	Digest     string    `json:"digest"`
	Status     string    `json:"status"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	Message    string    `json:"message,omitempty"`
	Output     string    `json:"output"`
	Steps      int64     `json:"steps"`
}

func writeRuns(e *Env, runs []database.Run) error {
	out := make([]runJSON, len(runs))
	for i, r := range runs {
		out[i] = runJSON{
			ID:         r.ID,
			StartedAt:  r.StartedAt.UTC(),
			DurationNS: int64(r.Duration),
			Name:       r.Name,
			Digest:     r.Digest,
			Status:     r.Status,
			ErrorKind:  r.ErrorKind,
			Message:    r.Message,
			Output:     r.Output,
			Steps:      r.Steps,
		}
	}
	enc := json.NewEncoder(e.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

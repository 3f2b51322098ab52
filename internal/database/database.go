// Package database keeps a journal of program runs in a SQL database.
package database

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Run statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// ErrNotFound is returned by Get for an unknown run id.
var ErrNotFound = stderrors.New("run not found")

// Run is one journal entry.
type Run struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration
	Name      string // file name, "<repl>" or the server endpoint
	Digest    string // sha256 of the source text
	Status    string
	ErrorKind string
	Message   string
	Output    string
	Steps     int64
}

// Digest returns the hex sha256 of src as stored in Run.Digest.
func Digest(src string) string {
	sum := sha256.Sum256([]byte(src))
	return hex.EncodeToString(sum[:])
}

// Options tunes the connection pool.
type Options struct {
	MaxOpenConns int
	Logger       *slog.Logger
}

// Journal records runs into the database named by its DSN. It is safe for
// concurrent use.
type Journal struct {
	db      *sql.DB
	dialect dialect
	log     *slog.Logger
}

const columns = "id, started_at, duration_ns, name, digest, status, error_kind, message, output, steps"

// Open connects to dsn, whose scheme picks the driver (sqlite://,
// postgres://, mysql://, sqlserver://), and creates the schema if needed.
func Open(ctx context.Context, dsn string, opts Options) (*Journal, error) {
	d, conn, err := parseDSN(dsn)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	db, err := sql.Open(d.driver, conn)
	if err != nil {
		return nil, errors.Wrapf(err, "journal: open %s", d.name)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "journal: ping %s", redact(dsn))
	}

	// Configure connection pool
	switch {
	case d.singleConn:
		db.SetMaxOpenConns(1)
	case opts.MaxOpenConns > 0:
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	for _, stmt := range d.schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, errors.Wrap(err, "journal: create schema")
		}
	}
	logger.Debug("journal opened", "dialect", d.name, "dsn", redact(dsn))
	return &Journal{db: db, dialect: d, log: logger}, nil
}

func (j *Journal) placeholders(n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = j.dialect.placeholder(i + 1)
	}
	return strings.Join(ph, ", ")
}

// Record stores r, assigning an id and start time when they are unset, and
// returns the id.
func (j *Journal) Record(ctx context.Context, r Run) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, columns, j.placeholders(10))
	_, err := j.db.ExecContext(ctx, query,
		r.ID, r.StartedAt.UnixNano(), int64(r.Duration), r.Name, r.Digest,
		r.Status, r.ErrorKind, r.Message, r.Output, r.Steps)
	if err != nil {
		return "", errors.Wrapf(err, "journal: record run %s", r.ID)
	}
	j.log.Debug("run recorded", "id", r.ID, "status", r.Status)
	return r.ID, nil
}

// Recent returns up to limit runs, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx, j.dialect.recent(columns, table, j.dialect.placeholder), limit)
	if err != nil {
		return nil, errors.Wrap(err, "journal: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, errors.Wrap(rows.Err(), "journal: list runs")
}

// Get returns the run with the given id, or ErrNotFound.
func (j *Journal) Get(ctx context.Context, id string) (Run, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = %s", columns, table, j.dialect.placeholder(1))
	r, err := scanRun(j.db.QueryRowContext(ctx, query, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		r        Run
		started  int64
		duration int64
	)
	err := s.Scan(&r.ID, &started, &duration, &r.Name, &r.Digest,
		&r.Status, &r.ErrorKind, &r.Message, &r.Output, &r.Steps)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, errors.Wrap(err, "journal: scan run")
	}
	r.StartedAt = time.Unix(0, started)
	r.Duration = time.Duration(duration)
	return r, nil
}

// Dialect names the database flavour in use.
func (j *Journal) Dialect() string { return j.dialect.name }

// Close releases the connection pool.
func (j *Journal) Close() error {
	return j.db.Close()
}

package network

import (
	"context"
	"log/slog"
	"time"

	"toylang/internal/database"
	"toylang/internal/runtime"
)

// Frame types streamed over the websocket.
const (
	FrameOutput = "output"
	FrameError  = "error"
	FrameDone   = "done"
)

// Frame is one websocket message sent to the client.
type Frame struct {
	Type     string `json:"type"`
	Line     string `json:"line,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Message  string `json:"message,omitempty"`
	Status   string `json:"status,omitempty"`
	Steps    int64  `json:"steps,omitempty"`
	Duration string `json:"duration,omitempty"`
	RunID    string `json:"run_id,omitempty"`
}

// RunRequest is the body of POST /run and may also be sent as a websocket
// message; a websocket message that is not JSON is taken as source text.
type RunRequest struct {
	Source string `json:"source"`
}

// RunResponse is the body returned by POST /run.
type RunResponse struct {
	Output   []string   `json:"output"`
	Error    *ErrorInfo `json:"error,omitempty"`
	Status   string     `json:"status"`
	Steps    int64      `json:"steps"`
	Duration string     `json:"duration"`
	RunID    string     `json:"run_id,omitempty"`
}

// ErrorInfo describes a failed run.
type ErrorInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// Recorder receives a journal entry for every finished run.
type Recorder interface {
	Record(ctx context.Context, r database.Run) (string, error)
}

// Config configures a playground Server.
type Config struct {
	Addr           string
	MaxSteps       int64
	MaxArrayLen    int
	Timeout        time.Duration
	MaxSourceBytes int64
	AllowedOrigins []string
	BoolFormat     runtime.BoolFormat
	Journal        Recorder
	Logger         *slog.Logger
}

package network

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toylang/internal/database"
)

type fakeJournal struct {
	mu   sync.Mutex
	runs []database.Run
}

func (f *fakeJournal) Record(_ context.Context, r database.Run) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, r)
	return "run-" + string(rune('0'+len(f.runs))), nil
}

func (f *fakeJournal) recorded() []database.Run {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]database.Run(nil), f.runs...)
}

func postRun(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, RunResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var resp RunResponse
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestHealth(t *testing.T) {
	s := NewServer(Config{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestRunEndpoint(t *testing.T) {
	journal := &fakeJournal{}
	s := NewServer(Config{Journal: journal})

	src := `{"source": "int i; i = 0; while (i < 3) { print(i); i = i + 1; }"}`
	rec, resp := postRun(t, s.Handler(), src)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"0", "1", "2"}, resp.Output)
	assert.Equal(t, database.StatusOK, resp.Status)
	assert.Nil(t, resp.Error)
	assert.Positive(t, resp.Steps)
	assert.Equal(t, "run-1", resp.RunID)

	runs := journal.recorded()
	require.Len(t, runs, 1)
	assert.Equal(t, "POST /run", runs[0].Name)
	assert.Equal(t, "0\n1\n2\n", runs[0].Output)
	assert.Equal(t, database.Digest("int i; i = 0; while (i < 3) { print(i); i = i + 1; }"), runs[0].Digest)
}

func TestRunEndpointErrors(t *testing.T) {
	s := NewServer(Config{})

	_, resp := postRun(t, s.Handler(), `{"source": "int a; print(a / 0);"}`)
	assert.Equal(t, database.StatusError, resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "EvaluationError", resp.Error.Kind)
	assert.Equal(t, 1, resp.Error.Line)

	_, resp = postRun(t, s.Handler(), `{"source": "int a"}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "ParseError", resp.Error.Kind)

	rec, _ := postRun(t, s.Handler(), `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunEndpointLimits(t *testing.T) {
	s := NewServer(Config{MaxSteps: 100, MaxSourceBytes: 64})

	_, resp := postRun(t, s.Handler(), `{"source": "while (true) { }"}`)
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Message, "step limit")

	big := `{"source": "` + strings.Repeat("print(1);", 20) + `"}`
	rec, _ := postRun(t, s.Handler(), big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func dial(t *testing.T, srv *httptest.Server, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	return websocket.DefaultDialer.Dial(url, header)
}

func readUntilDone(t *testing.T, conn *websocket.Conn) []Frame {
	t.Helper()
	var frames []Frame
	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var f Frame
		require.NoError(t, conn.ReadJSON(&f))
		frames = append(frames, f)
		if f.Type == FrameDone {
			return frames
		}
	}
}

func TestWebSocketStreamsFrames(t *testing.T) {
	s := NewServer(Config{})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn, _, err := dial(t, srv, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("print(1); print(2);")))
	frames := readUntilDone(t, conn)
	require.Len(t, frames, 3)
	assert.Equal(t, Frame{Type: FrameOutput, Line: "1"}, frames[0])
	assert.Equal(t, Frame{Type: FrameOutput, Line: "2"}, frames[1])
	assert.Equal(t, database.StatusOK, frames[2].Status)

	// each message runs in a fresh interpreter
	var msg bytes.Buffer
	require.NoError(t, json.NewEncoder(&msg).Encode(RunRequest{Source: "int x; x = 1; print(x + true);"}))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, msg.Bytes()))
	frames = readUntilDone(t, conn)
	require.Len(t, frames, 2)
	assert.Equal(t, FrameError, frames[0].Type)
	assert.Equal(t, "EvaluationError", frames[0].Kind)
	assert.Equal(t, database.StatusError, frames[1].Status)
}

func TestWebSocketOrigins(t *testing.T) {
	s := NewServer(Config{AllowedOrigins: []string{"https://play.example"}})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn, _, err := dial(t, srv, http.Header{"Origin": {"https://play.example"}})
	require.NoError(t, err)
	conn.Close()

	_, resp, err := dial(t, srv, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestServeShutsDown(t *testing.T) {
	s := NewServer(Config{Addr: "127.0.0.1:0"})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

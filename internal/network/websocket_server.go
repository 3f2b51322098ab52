// Package network serves the interpreter over HTTP and websockets.
package network

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// wsClient is one connected websocket peer.
type wsClient struct {
	id     string
	conn   *websocket.Conn
	mu     sync.Mutex
	closed bool
}

func (c *wsClient) send(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(f)
}

func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = c.conn.Close()
	}
}

// frameWriter turns program output into one output frame per line.
type frameWriter struct {
	client *wsClient
	buf    bytes.Buffer
	err    error
}

func (w *frameWriter) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// incomplete line: keep it for the next write
			w.buf.Reset()
			w.buf.WriteString(line)
			return len(p), nil
		}
		if w.err = w.client.send(Frame{Type: FrameOutput, Line: strings.TrimSuffix(line, "\n")}); w.err != nil {
			return 0, w.err
		}
	}
}

func (w *frameWriter) flush() {
	if w.buf.Len() > 0 && w.err == nil {
		w.err = w.client.send(Frame{Type: FrameOutput, Line: w.buf.String()})
		w.buf.Reset()
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(s.cfg.MaxSourceBytes)

	client := &wsClient{id: uuid.NewString(), conn: conn}
	s.mu.Lock()
	s.clients[client.id] = client
	s.mu.Unlock()
	s.log.Debug("websocket client connected", "client", client.id)

	defer func() {
		s.mu.Lock()
		delete(s.clients, client.id)
		s.mu.Unlock()
		client.close()
		s.log.Debug("websocket client disconnected", "client", client.id)
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		src := string(data)
		var req RunRequest
		if json.Unmarshal(data, &req) == nil && req.Source != "" {
			src = req.Source
		}

		out := &frameWriter{client: client}
		res := s.execute(r.Context(), "ws", src, out)
		out.flush()
		if out.err != nil {
			return
		}
		if info := res.errorInfo(); info != nil {
			if client.send(Frame{Type: FrameError, Kind: info.Kind, Message: info.Message}) != nil {
				return
			}
		}
		done := Frame{
			Type:     FrameDone,
			Status:   res.status(),
			Steps:    res.stats.Steps,
			Duration: res.duration.String(),
			RunID:    res.runID,
		}
		if client.send(done) != nil {
			return
		}
	}
}

func (s *Server) closeClients() {
	s.mu.RLock()
	clients := make([]*wsClient, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()
	for _, c := range clients {
		c.close()
	}
}

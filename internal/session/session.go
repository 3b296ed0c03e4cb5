// Package session implements the live transport: one websocket connection
// per mounted component, streaming DOM patches out and client events back in.
package session

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/structive/structive-go/internal/engine"
)

// Config tunes one live connection.
type Config struct {
	// KeepAlive is the ping interval for idle connections.
	KeepAlive time.Duration
	// WriteTimeout bounds a single frame write.
	WriteTimeout time.Duration
	// MaxMessageBytes bounds inbound client frames.
	MaxMessageBytes int64
}

// Frame is one outbound message.
type Frame struct {
	// Type is "init", "patches" or "error".
	Type string `json:"type"`
	// HTML carries the full serialized tree for "init" frames.
	HTML string `json:"html,omitempty"`
	// Patches carries the mutation batch for "patches" frames.
	Patches []engine.Patch `json:"patches,omitempty"`
	// Message carries the error text for "error" frames.
	Message string `json:"message,omitempty"`
}

// InboundEvent is one client-originated DOM event, addressed by the
// childNodes index path of its target.
type InboundEvent struct {
	NodePath []int  `json:"nodePath"`
	Event    string `json:"event"`
	Value    any    `json:"value"`
}

// Session owns one websocket connection. It implements the engine's patch
// sink: Emit buffers without blocking (the renderer calls it under the
// engine lock) and a writer goroutine flushes buffered patches as frames.
type Session struct {
	id   string
	conn *websocket.Conn
	cfg  Config

	mu      sync.Mutex
	pending []engine.Patch

	flush  chan struct{}
	closed chan struct{}
	once   sync.Once
}

// New wraps an upgraded connection and starts the writer.
func New(id string, conn *websocket.Conn, cfg Config) *Session {
	s := &Session{
		id:     id,
		conn:   conn,
		cfg:    cfg,
		flush:  make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
	go s.writeLoop()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Emit implements engine.PatchSink. It never blocks.
func (s *Session) Emit(p engine.Patch) {
	s.mu.Lock()
	s.pending = append(s.pending, p)
	s.mu.Unlock()
	select {
	case s.flush <- struct{}{}:
	default:
	}
}

// SendInit streams the full serialized tree, sent once after connect.
func (s *Session) SendInit(html string) error {
	return s.writeFrame(Frame{Type: "init", HTML: html})
}

// SendError reports a handler failure to the client without closing.
func (s *Session) SendError(msg string) error {
	return s.writeFrame(Frame{Type: "error", Message: msg})
}

// Close tears the connection down. Safe to call more than once.
func (s *Session) Close() {
	s.once.Do(func() {
		close(s.closed)
		s.conn.Close()
	})
}

// Done is closed when the session has shut down.
func (s *Session) Done() <-chan struct{} { return s.closed }

// ReadLoop consumes inbound events until the connection drops, invoking
// handle per event. Handler errors are reported to the client and do not end
// the loop; read errors do.
func (s *Session) ReadLoop(handle func(ev InboundEvent) error) {
	defer s.Close()
	s.conn.SetReadLimit(s.cfg.MaxMessageBytes)
	deadline := 2 * s.cfg.KeepAlive
	s.conn.SetReadDeadline(time.Now().Add(deadline))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(deadline))
	})
	for {
		var ev InboundEvent
		if err := s.conn.ReadJSON(&ev); err != nil {
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(deadline))
		if err := handle(ev); err != nil {
			s.SendError(err.Error())
		}
	}
}

// writeLoop flushes buffered patches and keeps the connection alive.
func (s *Session) writeLoop() {
	ping := time.NewTicker(s.cfg.KeepAlive)
	defer ping.Stop()
	for {
		select {
		case <-s.closed:
			return
		case <-s.flush:
			s.mu.Lock()
			batch := s.pending
			s.pending = nil
			s.mu.Unlock()
			if len(batch) == 0 {
				continue
			}
			if err := s.writeFrame(Frame{Type: "patches", Patches: batch}); err != nil {
				s.Close()
				return
			}
		case <-ping.C:
			deadline := time.Now().Add(s.cfg.WriteTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.Close()
				return
			}
		}
	}
}

func (s *Session) writeFrame(f Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	return s.conn.WriteJSON(f)
}

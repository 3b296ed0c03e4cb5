package structive

import (
	"fmt"
	"html"
	"log"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/structive/structive-go/internal/session"
)

// MountHandler serves one component definition over HTTP: plain requests get
// the rendered page, websocket upgrades get a live session streaming DOM
// patches and accepting client events.
type MountHandler struct {
	def      ComponentDef
	cfg      Config
	opts     []ComponentOption
	sessions *session.Manager
	upgrader websocket.Upgrader
}

// Mount builds the handler for a component definition. The given options are
// applied to every instance the handler creates.
func Mount(def ComponentDef, cfg Config, opts ...ComponentOption) *MountHandler {
	return &MountHandler{
		def:      def,
		cfg:      cfg,
		opts:     opts,
		sessions: session.NewManager(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins; put auth in front when it matters
			},
		},
	}
}

// Sessions exposes the live session manager, mainly for shutdown.
func (h *MountHandler) Sessions() *session.Manager { return h.sessions }

// ServeHTTP implements http.Handler.
func (h *MountHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		h.serveLive(w, r)
		return
	}
	h.servePage(w, r)
}

// servePage renders a throwaway instance to full HTML. The page carries the
// component markup only; the surrounding document shell stays with the
// application.
func (h *MountHandler) servePage(w http.ResponseWriter, r *http.Request) {
	c, err := h.instance(nil)
	if err != nil {
		log.Printf("mount %s: build failed: %v", h.def.Name, err)
		http.Error(w, "component build failed", http.StatusInternalServerError)
		return
	}
	if err := c.Connect(nil, r.URL.Query().Get("state")); err != nil {
		log.Printf("mount %s: connect failed: %v", h.def.Name, err)
		http.Error(w, "component mount failed", http.StatusInternalServerError)
		return
	}
	defer c.Disconnect()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, pageShell, html.EscapeString(h.def.Name), c.HTML())
}

// serveLive upgrades the connection, mounts a per-session instance wired to
// the session's patch sink and pumps client events into it.
func (h *MountHandler) serveLive(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("mount %s: upgrade failed: %v", h.def.Name, err)
		return
	}
	sess := h.sessions.Create(conn, session.Config{
		KeepAlive:       h.cfg.Session.KeepAlive,
		WriteTimeout:    h.cfg.Session.WriteTimeout,
		MaxMessageBytes: h.cfg.Session.MaxMessageBytes,
	})
	defer h.sessions.Remove(sess.ID())
	defer sess.Close()

	// The initial render is covered by the init frame; the gate keeps its
	// patches from racing ahead of it.
	gate := &gatedSink{sink: sess}
	c, err := h.instance(gate)
	if err != nil {
		log.Printf("session %s: build failed: %v", sess.ID(), err)
		sess.SendError("component build failed")
		return
	}
	if err := c.Connect(nil, r.URL.Query().Get("state")); err != nil {
		log.Printf("session %s: connect failed: %v", sess.ID(), err)
		sess.SendError("component mount failed")
		return
	}
	defer c.Disconnect()

	if err := sess.SendInit(c.HTML()); err != nil {
		return
	}
	gate.open.Store(true)

	// Blocks until the peer drops or the read side fails. Handler errors go
	// back to the client as error frames without ending the session.
	sess.ReadLoop(func(ev session.InboundEvent) error {
		return c.DispatchAt(ev.NodePath, ev.Event, ev.Value)
	})
}

// instance builds one component instance, attaching the sink when live.
func (h *MountHandler) instance(sink PatchSink) (*Component, error) {
	opts := append([]ComponentOption{WithComponentConfig(h.cfg)}, h.opts...)
	if sink != nil {
		opts = append(opts, WithSink(sink))
	}
	return NewComponent(h.def, opts...)
}

// gatedSink drops patches until the init frame has been sent.
type gatedSink struct {
	sink PatchSink
	open atomic.Bool
}

func (g *gatedSink) Emit(p Patch) {
	if g.open.Load() {
		g.sink.Emit(p)
	}
}

const pageShell = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>%s</title></head>
<body>%s</body>
</html>
`

package structive

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/structive/structive-go/internal/session"
)

func counterDef() ComponentDef {
	return ComponentDef{
		Name:     "counter",
		Template: `<p>Count: {{count}}</p><button data-bind="onclick:increment">+1</button>`,
		Init: map[string]any{
			"count": 0,
			"increment": EventHandler(func(api *StateAPI, ev *Event, _ ...int) error {
				v, err := api.Get("count")
				if err != nil {
					return err
				}
				return api.Set("count", v.(int)+1)
			}),
		},
	}
}

func TestMountServesPage(t *testing.T) {
	srv := httptest.NewServer(Mount(counterDef(), DefaultConfig()))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	page := string(body)
	if !strings.Contains(page, "Count: 0") {
		t.Errorf("page missing rendered component: %q", page)
	}
	if !strings.Contains(page, "<title>counter</title>") {
		t.Errorf("page missing shell: %q", page)
	}
}

func TestMountSeedsStateFromQuery(t *testing.T) {
	srv := httptest.NewServer(Mount(counterDef(), DefaultConfig()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + `/?state={"count":7}`)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "Count: 7") {
		t.Errorf("seeded state not rendered: %q", body)
	}
}

func TestMountLiveSession(t *testing.T) {
	handler := Mount(counterDef(), DefaultConfig())
	srv := httptest.NewServer(handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var init session.Frame
	if err := conn.ReadJSON(&init); err != nil {
		t.Fatalf("read init: %v", err)
	}
	if init.Type != "init" || !strings.Contains(init.HTML, "Count: 0") {
		t.Fatalf("init frame = %+v", init)
	}
	if handler.Sessions().Count() != 1 {
		t.Errorf("session count = %d, want 1", handler.Sessions().Count())
	}

	// The button is the second child of the mount root; clicking it bumps
	// the counter and streams the text patch back.
	err = conn.WriteJSON(session.InboundEvent{NodePath: []int{1}, Event: "click"})
	if err != nil {
		t.Fatalf("write event: %v", err)
	}
	var update session.Frame
	if err := conn.ReadJSON(&update); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if update.Type != "patches" || len(update.Patches) == 0 {
		t.Fatalf("update frame = %+v", update)
	}
	found := false
	for _, p := range update.Patches {
		if p.Op == "text" && p.Value == "1" {
			found = true
		}
	}
	if !found {
		t.Errorf("no text patch with value 1 in %+v", update.Patches)
	}
}

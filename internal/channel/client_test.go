package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"notespace/client/internal/content"
)

// testServer accepts channel connections and lets the test push frames and
// inspect what clients sent.
type testServer struct {
	t        *testing.T
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    []*websocket.Conn
	received []map[string]any
	paths    []string
	accepted chan *websocket.Conn
	got      chan map[string]any
}

func newTestServer(t *testing.T) *testServer {
	ts := &testServer{
		t:        t,
		accepted: make(chan *websocket.Conn, 8),
		got:      make(chan map[string]any, 64),
	}
	ts.srv = httptest.NewServer(http.HandlerFunc(ts.handle))
	t.Cleanup(func() {
		ts.mu.Lock()
		for _, c := range ts.conns {
			c.Close()
		}
		ts.mu.Unlock()
		ts.srv.Close()
	})
	return ts
}

func (ts *testServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := ts.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	ts.mu.Lock()
	ts.conns = append(ts.conns, conn)
	ts.paths = append(ts.paths, r.URL.RequestURI())
	ts.mu.Unlock()
	ts.accepted <- conn

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg map[string]any
		if json.Unmarshal(data, &msg) == nil {
			ts.got <- msg
		}
	}
}

func (ts *testServer) baseURL() string {
	return "ws" + strings.TrimPrefix(ts.srv.URL, "http")
}

func (ts *testServer) next(t *testing.T) map[string]any {
	t.Helper()
	select {
	case msg := <-ts.got:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a client message")
		return nil
	}
}

func (ts *testServer) conn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case c := <-ts.accepted:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a connection")
		return nil
	}
}

func newClient(ts *testServer) *Client {
	return New(Config{BaseURL: ts.baseURL(), ReconnectDelay: 20 * time.Millisecond}, Identity{UserID: "7", Username: "ana"})
}

func TestConnectAnnouncesCursor(t *testing.T) {
	ts := newTestServer(t)
	c := newClient(ts)
	defer c.Close()

	if err := c.Connect(context.Background(), "42", "tok en"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	ts.conn(t)

	msg := ts.next(t)
	if msg["type"] != "cursor_connect" || msg["cursor_id"] != c.SessionID() || msg["username"] != "ana" {
		t.Fatalf("unexpected announce %v", msg)
	}
	if msg["user_id"] != float64(7) {
		t.Fatalf("user_id = %v", msg["user_id"])
	}

	ts.mu.Lock()
	path := ts.paths[0]
	ts.mu.Unlock()
	if path != "/documents/42/?token=tok+en" {
		t.Fatalf("path = %s", path)
	}
	if c.State() != StateConnected {
		t.Fatalf("state = %s", c.State())
	}
}

func TestSendStampsSessionID(t *testing.T) {
	ts := newTestServer(t)
	c := newClient(ts)
	defer c.Close()
	if err := c.Connect(context.Background(), "1", ""); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	ts.next(t)

	snapshot := content.Content{Version: content.EditorVersion, Blocks: []content.Block{content.Paragraph("hi")}}
	if err := c.Send(Message{Type: TypeDocumentUpdate, Content: &snapshot}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	msg := ts.next(t)
	if msg["sender_id"] != c.SessionID() {
		t.Fatalf("sender_id = %v", msg["sender_id"])
	}
	if _, ok := msg["content"].(map[string]any)["blocks"]; !ok {
		t.Fatalf("content missing blocks: %v", msg)
	}

	if err := c.Send(Message{Type: TypeCursorUpdate}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	msg = ts.next(t)
	if pos, ok := msg["position"]; !ok || pos != nil {
		t.Fatalf("cursor hide should carry position null, got %v", msg)
	}
}

func TestSendWhenOffline(t *testing.T) {
	c := New(Config{BaseURL: "ws://127.0.0.1:1"}, Identity{})
	if err := c.Send(Message{Type: TypeDocumentUpdate}); err != ErrNotConnected {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
}

func TestInboundFilteringAndAliases(t *testing.T) {
	ts := newTestServer(t)
	c := newClient(ts)
	defer c.Close()

	got := make(chan Message, 8)
	c.OnMessage(func(m Message) { got <- m })

	if err := c.Connect(context.Background(), "1", ""); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	server := ts.conn(t)
	ts.next(t)

	frames := []string{
		`{"type":"connection_established","message":"hi"}`,
		`{"type":"document_update","sender_id":"` + c.SessionID() + `","content":{"blocks":[]}}`,
		`{"type":"cursor_position_update","cursor_id":"` + c.SessionID() + `","position":{"x":1,"y":2}}`,
		`{"type":"cursor_position_update","cursor_id":"other","user_id":3,"position":{"x":1,"y":2}}`,
		`{"type":"cursor_active","cursor_id":"third","position":null}`,
		`{"type":"document_update","sender_id":"other","content":{"time":5,"blocks":[{"type":"paragraph","data":{"text":"remote"}}]}}`,
	}
	for _, f := range frames {
		if err := server.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	want := []Type{TypeCursorUpdate, TypeCursorUpdate, TypeDocumentUpdate}
	for i, typ := range want {
		select {
		case m := <-got:
			if m.Type != typ {
				t.Fatalf("message %d type = %s, want %s", i, m.Type, typ)
			}
			switch i {
			case 0:
				if m.CursorID != "other" || m.Position == nil || m.Position.X != 1 || m.UserID != "3" {
					t.Fatalf("unexpected cursor message %+v", m)
				}
			case 1:
				if m.Position != nil {
					t.Fatal("null position should decode to nil")
				}
			case 2:
				if m.Content == nil || len(m.Content.Blocks) != 1 {
					t.Fatalf("unexpected content %+v", m.Content)
				}
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for message %d", i)
		}
	}
	select {
	case m := <-got:
		t.Fatalf("unexpected extra message %+v", m)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestReconnectAfterAbnormalClose(t *testing.T) {
	ts := newTestServer(t)
	c := newClient(ts)
	defer c.Close()

	if err := c.Connect(context.Background(), "1", ""); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	first := ts.conn(t)
	ts.next(t)

	// drop the TCP connection without a close frame
	first.UnderlyingConn().Close()

	ts.conn(t)
	if msg := ts.next(t); msg["type"] != "cursor_connect" {
		t.Fatalf("expected re-announce, got %v", msg)
	}
}

func TestNoReconnectAfterNormalClose(t *testing.T) {
	ts := newTestServer(t)
	c := newClient(ts)
	defer c.Close()

	states := make(chan State, 16)
	c.OnStateChange(func(s State) { states <- s })

	if err := c.Connect(context.Background(), "1", ""); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	server := ts.conn(t)
	ts.next(t)

	_ = server.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-states:
			if s == StateDisconnected {
				select {
				case <-ts.accepted:
					t.Fatal("client reconnected after a normal closure")
				case <-time.After(100 * time.Millisecond):
				}
				return
			}
		case <-deadline:
			t.Fatal("never reached disconnected")
		}
	}
}

func TestFailedFirstDialKeepsRetrying(t *testing.T) {
	c := New(Config{BaseURL: "ws://127.0.0.1:1", ReconnectDelay: 10 * time.Millisecond}, Identity{})
	if err := c.Connect(context.Background(), "1", ""); err == nil {
		t.Fatal("expected dial error")
	}
	if s := c.State(); s != StateError && s != StateConnecting {
		t.Fatalf("state = %s", s)
	}
	c.Close()
	if c.State() != StateDisconnected {
		t.Fatalf("state after Close = %s", c.State())
	}
}

func TestCursorThrottle(t *testing.T) {
	ts := newTestServer(t)
	c := New(Config{BaseURL: ts.baseURL(), CursorRate: 0.001}, Identity{})
	defer c.Close()
	if err := c.Connect(context.Background(), "1", ""); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	ts.next(t)

	for i := 0; i < 5; i++ {
		_ = c.Send(Message{Type: TypeCursorUpdate, Position: &Position{X: float64(i)}})
	}
	_ = c.Send(Message{Type: TypeDocumentUpdate})

	first := ts.next(t)
	if first["type"] != "cursor_update" {
		t.Fatalf("first = %v", first)
	}
	if second := ts.next(t); second["type"] != "document_update" {
		t.Fatalf("throttled cursor updates leaked through: %v", second)
	}
}

func TestDocumentURL(t *testing.T) {
	got, err := DocumentURL("https://sync.example.com/", "5", "abc")
	if err != nil {
		t.Fatalf("DocumentURL: %v", err)
	}
	if got != "wss://sync.example.com/documents/5/?token=abc" {
		t.Fatalf("got %s", got)
	}
}

package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"quiz-duel-service/internal/app"
	"quiz-duel-service/internal/auth"
	"quiz-duel-service/internal/content"
	"quiz-duel-service/internal/domain"
	"quiz-duel-service/internal/infra/memory"
)

type discardSink struct{}

func (discardSink) Enqueue(domain.MatchSummary) bool { return true }

// newTestServer serves /ws with zero lead time and no debounce so a client
// can answer as soon as questions arrive.
func newTestServer(t *testing.T, verifier *auth.Verifier) *httptest.Server {
	t.Helper()
	server, _ := newServerWithSink(t, verifier, discardSink{})
	return server
}

type chanSink chan domain.MatchSummary

func (c chanSink) Enqueue(s domain.MatchSummary) bool {
	select {
	case c <- s:
		return true
	default:
		return false
	}
}

func newServerWithSink(t *testing.T, verifier *auth.Verifier, sink app.OutcomeSink) (*httptest.Server, *Hub) {
	t.Helper()
	timings := app.DefaultTimings()
	timings.LeadTime = 0
	timings.Debounce = 0

	hub := NewHub(64, nil)
	pools := memory.NewPoolRepository(memory.NewStaticPoolLoader(content.Bank()), time.Minute)
	service := app.NewMatchService(memory.NewRoomStore(), pools, hub, sink, app.WithTimings(timings))
	wsHandler := NewWSHandler(service, hub, verifier, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, hub
}

func dial(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	if query != "" {
		u += "?" + query
	}
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func readNext(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	var msg envelope
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	return msg
}

// readUntil skips messages until one of type typ arrives and decodes its payload into dst.
func readUntil(t *testing.T, conn *websocket.Conn, typ string, dst any) {
	t.Helper()
	for i := 0; i < 200; i++ {
		msg := readNext(t, conn)
		if msg.Type != typ {
			continue
		}
		if dst != nil {
			if err := json.Unmarshal(msg.Payload, dst); err != nil {
				t.Fatalf("decode %s: %v", typ, err)
			}
		}
		return
	}
	t.Fatalf("no %s message received", typ)
}

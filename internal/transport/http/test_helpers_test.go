package http

import (
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/alexismendozaa/chat/internal/auth"
	"github.com/alexismendozaa/chat/internal/config"
	"github.com/alexismendozaa/chat/internal/core"
	"github.com/alexismendozaa/chat/internal/proto"
	"github.com/alexismendozaa/chat/internal/store"
	"github.com/alexismendozaa/chat/internal/store/sqlite"
)

const testSecret = "testsecret"

type testEnv struct {
	ts      *httptest.Server
	gateway *core.Gateway
	store   store.MessageStore
	jwt     *auth.JWTConfig
}

// createTestStore creates an in-memory SQLite store.
func createTestStore(t *testing.T) store.MessageStore {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func startTestServer(t *testing.T, st store.MessageStore) *testEnv {
	t.Helper()

	if st == nil {
		st = createTestStore(t)
	}

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.JWTSecret = testSecret
	jwtCfg := &auth.JWTConfig{Secret: []byte(testSecret), TTL: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	logger := zerolog.Nop()
	gateway := core.NewGateway(st, &logger, core.Options{HistoryLimit: cfg.HistoryLimit, QueueSize: cfg.ClientQueueSize})
	server := NewServer(ctx, gateway, st, auth.NewJWTValidator(jwtCfg), &cfg, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(func() {
		cancel()
		ts.Close()
		gateway.Wait()
	})

	return &testEnv{ts: ts, gateway: gateway, store: st, jwt: jwtCfg}
}

func (e *testEnv) token(t *testing.T, subject, name string) string {
	t.Helper()
	tok, err := auth.GenerateToken(e.jwt, subject, name)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return tok
}

func (e *testEnv) wsURL() string {
	return strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
}

func (e *testEnv) dial(t *testing.T, ctx context.Context, token string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, e.wsURL(), &websocket.DialOptions{
		HTTPHeader: stdhttp.Header{"Authorization": []string{"Bearer " + token}},
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func (e *testEnv) getHistory(t *testing.T, path, token string) *stdhttp.Response {
	t.Helper()
	req, err := stdhttp.NewRequest(stdhttp.MethodGet, e.ts.URL+path, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("history request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// rawOutbound keeps data undecoded so tests can pick the payload type.
type rawOutbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string, data any) {
	t.Helper()
	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s: %v", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		t.Fatalf("send %s: %v", typ, err)
	}
}

func readOutbound(t *testing.T, ctx context.Context, conn *websocket.Conn) rawOutbound {
	t.Helper()
	var out rawOutbound
	if err := wsjson.Read(ctx, conn, &out); err != nil {
		t.Fatalf("read outbound: %v", err)
	}
	return out
}

func mustEvent(t *testing.T, ctx context.Context, conn *websocket.Conn, event string) rawOutbound {
	t.Helper()
	for {
		out := readOutbound(t, ctx, conn)
		if out.Type == proto.OutboundTypeEvent && out.Event == event {
			return out
		}
	}
}

func mustError(t *testing.T, ctx context.Context, conn *websocket.Conn) *proto.Error {
	t.Helper()
	for {
		out := readOutbound(t, ctx, conn)
		if out.Type == proto.OutboundTypeError {
			if out.Error == nil {
				t.Fatalf("error frame without error body")
			}
			return out.Error
		}
	}
}

func joinRoom(t *testing.T, ctx context.Context, conn *websocket.Conn, room string) proto.EventHistoryData {
	t.Helper()
	send(t, ctx, conn, proto.InboundTypeJoin, proto.JoinData{RoomID: room})

	joined := readOutbound(t, ctx, conn)
	if joined.Event != proto.EventNameJoined {
		t.Fatalf("expected joined, got %+v", joined)
	}
	history := readOutbound(t, ctx, conn)
	if history.Event != proto.EventNameHistory {
		t.Fatalf("expected history, got %+v", history)
	}
	var data proto.EventHistoryData
	if err := json.Unmarshal(history.Data, &data); err != nil {
		t.Fatalf("unmarshal history: %v", err)
	}
	return data
}

func decodeMessage(t *testing.T, out rawOutbound) proto.EventMessage {
	t.Helper()
	var msg proto.EventMessage
	if err := json.Unmarshal(out.Data, &msg); err != nil {
		t.Fatalf("unmarshal message: %v", err)
	}
	return msg
}

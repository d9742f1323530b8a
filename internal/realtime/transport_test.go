package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/handoffdesk/chat-handoff/internal/config"
	"github.com/handoffdesk/chat-handoff/internal/domain"
)

func transportConfig(origins ...string) config.RealtimeConfig {
	return config.RealtimeConfig{
		AllowedOrigins: origins,
		PongWait:       5 * time.Second,
		PingPeriod:     4 * time.Second,
		WriteWait:      time.Second,
		MaxMessageSize: 64 * 1024,
		SendBuffer:     16,
	}
}

func newTransportServer(t *testing.T, h *harness, cfg config.RealtimeConfig) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	router := NewRouter(NewHandler(ctx, h.coord, cfg, nil), h.coord.Hub(), prometheus.NewRegistry(), cfg.AllowedOrigins, nil)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func readUntil(t *testing.T, conn *websocket.Conn, event string) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var env Envelope
		require.NoError(t, conn.ReadJSON(&env))
		if env.Event == event {
			return env
		}
	}
}

func TestWebsocketCustomerRoundTrip(t *testing.T) {
	h := newHarness(t, nil)
	srv := newTransportServer(t, h, transportConfig("*"))

	session, err := h.sessions.CreateSession(context.Background(), nil)
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{
		"event": EventCustomerJoin,
		"data":  map[string]string{"sessionId": session.ID},
	}))
	var joined JoinedPayload
	require.NoError(t, json.Unmarshal(readUntil(t, conn, EventJoined).Data, &joined))
	require.Equal(t, session.ID, joined.SessionID)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"event": EventSendMessage,
		"data":  map[string]string{"sessionId": session.ID, "message": "where is my order?"},
	}))
	var first, second NewMessagePayload
	require.NoError(t, json.Unmarshal(readUntil(t, conn, EventNewMessage).Data, &first))
	require.Equal(t, domain.RoleCustomer, first.Message.Role)
	require.NoError(t, json.Unmarshal(readUntil(t, conn, EventNewMessage).Data, &second))
	require.Equal(t, "ai answer", second.Message.Content)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"bogus","data":{}}`)))
	errEnv := readUntil(t, conn, EventError)
	require.Contains(t, string(errEnv.Data), "VALIDATION_FAILED")
}

func TestWebsocketRejectsUnknownOrigin(t *testing.T) {
	h := newHarness(t, nil)
	srv := newTransportServer(t, h, transportConfig("https://app.example.com"))

	header := http.Header{}
	header.Set("Origin", "https://evil.example.com")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHealthReportsConnectionCounts(t *testing.T) {
	h := newHarness(t, nil)
	srv := newTransportServer(t, h, transportConfig("*"))

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "ok", body["status"])
	require.EqualValues(t, 0, body["staff"])
}

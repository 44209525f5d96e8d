package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/sports-bet-settlement/pkg/contracts/events"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// subscribe só retorna depois do pong, garantindo que o subscribe já foi processado
func subscribe(t *testing.T, conn *websocket.Conn, userID string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(ClientMsg{Type: "subscribe", UserID: userID}))
	require.NoError(t, conn.WriteJSON(ClientMsg{Type: "ping"}))
	var pong map[string]string
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&pong))
	require.Equal(t, "pong", pong["type"])
}

func TestHub_RoutesSettlementsByUser(t *testing.T) {
	hub := NewHub(nil, func(*http.Request) bool { return true })
	srv := httptest.NewServer(hub)
	defer srv.Close()

	alice := dial(t, srv)
	bob := dial(t, srv)
	subscribe(t, alice, "alice")
	subscribe(t, bob, "bob")
	assert.Equal(t, 1, hub.Subscribers("alice"))

	hub.Broadcast(events.BetSettled{WagerID: "w1", UserID: "alice", Result: "won", PnL: 100})

	var upd SettlementUpdate
	require.NoError(t, alice.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, alice.ReadJSON(&upd))
	assert.Equal(t, "bet_settled", upd.Type)
	assert.Equal(t, "w1", upd.Payload.WagerID)

	// bob não recebe nada da alice
	require.NoError(t, bob.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := bob.ReadMessage()
	assert.Error(t, err)
}

func TestHub_UnsubscribeAndDisconnect(t *testing.T) {
	hub := NewHub(nil, func(*http.Request) bool { return true })
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	subscribe(t, conn, "alice")

	require.NoError(t, conn.WriteJSON(ClientMsg{Type: "unsubscribe", UserID: "alice"}))
	require.Eventually(t, func() bool { return hub.Subscribers("alice") == 0 }, time.Second, 10*time.Millisecond)

	subscribe(t, conn, "alice")
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Subscribers("alice") == 0 }, time.Second, 10*time.Millisecond)
}

func TestDecode(t *testing.T) {
	ev, err := decode(`{"wagerId":"w1","userId":"alice","result":"push"}`)
	require.NoError(t, err)
	assert.Equal(t, "alice", ev.UserID)

	_, err = decode("not json")
	assert.Error(t, err)
}

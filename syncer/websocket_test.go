package syncer

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWebSocketServer(t *testing.T) (*WebSocketManager, *httptest.Server) {
	t.Helper()
	wsm := NewWebSocketManager()
	go wsm.Run()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wsm.HandleWebSocket(w, r, 0)
	}))
	t.Cleanup(server.Close)
	return wsm, server
}

func TestHandleWebSocketUserIDQueryFallback(t *testing.T) {
	wsm, server := newWebSocketServer(t)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/?user_id=7"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return wsm.ConnectedUsers() == 1
	}, time.Second, 10*time.Millisecond)

	wsm.NotifySyncStart(7, "conn-1")

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MsgTypeSyncStart, msg.Type)
	assert.Equal(t, 7, msg.UserID)
}

func TestHandleWebSocketRejectsMissingUser(t *testing.T) {
	_, server := newWebSocketServer(t)

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

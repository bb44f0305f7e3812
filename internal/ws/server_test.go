package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presencehub/internal/fanout"
	"presencehub/internal/presence"
)

func newTestServer(t *testing.T, opts Options) (*httptest.Server, *Hub, *presence.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h, reg := newTestHub()
	srv := NewWsServer(h, opts)
	engine := gin.New()
	engine.GET("/ws", srv.Handle)

	ts := httptest.NewServer(engine)
	t.Cleanup(func() {
		h.Shutdown()
		ts.Close()
	})
	return ts, h, reg
}

func dial(t *testing.T, ts *httptest.Server, header http.Header) (*websocket.Conn, presence.ConnID) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	var hello struct {
		Event string        `json:"event"`
		Data  ConnectedBody `json:"data"`
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&hello))
	require.Equal(t, EventConnected, hello.Event)
	require.NotEmpty(t, hello.Data.ID)
	return conn, hello.Data.ID
}

// readUntil skips frames until one named event arrives.
func readUntil(t *testing.T, conn *websocket.Conn, event string) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var f frame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Event == event {
			return f
		}
	}
}

func TestWsServer_EndToEnd(t *testing.T) {
	ts, h, reg := newTestServer(t, Options{})

	alice, aliceID := dial(t, ts, nil)
	bob, bobID := dial(t, ts, nil)
	assert.NotEqual(t, aliceID, bobID)

	require.NoError(t, alice.WriteJSON(map[string]any{"event": "join", "data": map[string]string{"displayName": "alice"}}))
	readUntil(t, alice, fanout.EventUserJoined)
	require.NoError(t, bob.WriteJSON(map[string]any{"event": "join", "data": map[string]string{"displayName": "bob"}}))
	readUntil(t, bob, fanout.EventUserJoined)

	require.NoError(t, alice.WriteJSON(map[string]any{"event": "createGroup", "data": map[string]string{"groupId": "g1", "name": "Team"}}))
	readUntil(t, bob, fanout.EventGroupCreated)

	require.NoError(t, bob.WriteJSON(map[string]any{"event": "joinGroup", "data": map[string]string{"groupId": "g1"}}))
	joined := readUntil(t, alice, fanout.EventMemberJoined)
	assert.Contains(t, string(joined.Data), `"displayName":"bob"`)
	readUntil(t, bob, fanout.EventJoinedGroup)

	require.NoError(t, bob.WriteJSON(map[string]any{"event": "groupMessage", "data": map[string]string{"groupId": "g1", "text": "hello team"}}))
	msg := readUntil(t, alice, fanout.EventGroupMessage)
	assert.Contains(t, string(msg.Data), `"text":"hello team"`)
	readUntil(t, bob, fanout.EventGroupMessageSent)

	require.NoError(t, alice.WriteJSON(map[string]any{"event": "privateMessage", "data": map[string]string{"to": string(bobID), "text": "psst"}}))
	pm := readUntil(t, bob, fanout.EventPrivateMessage)
	assert.Contains(t, string(pm.Data), `"text":"psst"`)

	require.NoError(t, bob.WriteMessage(websocket.TextMessage, []byte("not json")))
	bad := readUntil(t, bob, fanout.EventError)
	assert.Contains(t, string(bad.Data), "Malformed payload")

	require.NoError(t, alice.Close())
	left := readUntil(t, bob, fanout.EventMemberLeft)
	assert.Contains(t, string(left.Data), `"groupId":"g1"`)

	require.Eventually(t, func() bool { return h.ConnectionCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []presence.Identity{{ID: bobID, DisplayName: "bob"}}, reg.AllIdentities())
}

func TestWsServer_RejectsDisallowedOrigin(t *testing.T) {
	ts, _, _ := newTestServer(t, Options{AllowedOrigins: []string{"https://chat.example.com"}})

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://evil.example.com"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _ := dial(t, ts, http.Header{"Origin": []string{"https://chat.example.com"}})
	assert.NotNil(t, conn)
}

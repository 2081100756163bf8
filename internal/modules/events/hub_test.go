package events

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servicehub/internal/domain"
	"servicehub/internal/pkg/jwt"
)

func startServer(t *testing.T) (*Hub, *jwt.Service, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub()
	jwtService := jwt.New("ws-secret", time.Hour)
	router := gin.New()
	NewWSHandler(hub, jwtService, nil, t.Logf).RegisterRoutes(router)

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, jwtService, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, base, token string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(base+"/ws/requests?token="+token, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func waitOnline(t *testing.T, hub *Hub, userID string) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.IsOnline(userID) }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_PublishReachesRecipients(t *testing.T) {
	hub, jwtService, base := startServer(t)
	clientToken, _ := jwtService.GenerateToken("client-1", "client")
	providerToken, _ := jwtService.GenerateToken("prov-user-1", "provider")

	clientWS := dial(t, base, clientToken)
	providerWS := dial(t, base, providerToken)
	waitOnline(t, hub, "client-1")
	waitOnline(t, hub, "prov-user-1")

	hub.Publish(context.Background(), domain.RequestEvent{
		Type:       domain.EventRequestAccepted,
		RequestID:  "req-1",
		Status:     domain.RequestAccepted,
		Recipients: []string{"client-1", "prov-user-1", "client-1", "offline-user"},
	})

	for _, ws := range []*websocket.Conn{clientWS, providerWS} {
		_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg struct {
			Type string              `json:"type"`
			Data domain.RequestEvent `json:"data"`
		}
		require.NoError(t, ws.ReadJSON(&msg))
		assert.Equal(t, TypeStatusChanged, msg.Type)
		assert.Equal(t, "req-1", msg.Data.RequestID)
		assert.Equal(t, domain.RequestAccepted, msg.Data.Status)
	}
}

func TestHub_RejectsMissingOrBadToken(t *testing.T) {
	_, _, base := startServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(base+"/ws/requests", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 401, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(base+"/ws/requests?token=garbage", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestHub_NewConnectionReplacesOld(t *testing.T) {
	hub, jwtService, base := startServer(t)
	token, _ := jwtService.GenerateToken("client-1", "client")

	first := dial(t, base, token)
	waitOnline(t, hub, "client-1")
	second := dial(t, base, token)

	_ = first.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := first.ReadMessage()
	require.Error(t, err, "the replaced connection is closed by the server")

	assert.Equal(t, 1, hub.OnlineCount())
	assert.True(t, hub.SendToUser("client-1", Message{Type: "ping"}))

	_ = second.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	require.NoError(t, second.ReadJSON(&msg))
	assert.Equal(t, "ping", msg.Type)
}

type countingSink struct {
	mu sync.Mutex
	n  int
}

func (c *countingSink) Publish(context.Context, domain.RequestEvent) {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func TestFanout_SkipsNilSinks(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	f := NewFanout(a, nil, b)

	f.Publish(context.Background(), domain.RequestEvent{RequestID: "r"})

	assert.Len(t, f, 2)
	assert.Equal(t, 1, a.n)
	assert.Equal(t, 1, b.n)
}

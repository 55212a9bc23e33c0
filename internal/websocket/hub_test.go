package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"requisiciones/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("hub-secret")

func signToken(t *testing.T, role string) string {
	t.Helper()
	claims := middleware.Claims{
		Role: role,
		Name: "Tesorería",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return token
}

func newServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { hub.ServeWs(c, testSecret) })
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestPublishNeverBlocks(t *testing.T) {
	hub := NewHub(nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			hub.Publish("requisicion.estado", map[string]int{"i": i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked without a running hub")
	}
}

func TestServeWsRejectsMissingOrInvalidToken(t *testing.T) {
	hub := NewHub(nil)
	srv := newServer(t, hub)

	for _, q := range []string{"", "?token=garbage"} {
		resp, err := http.Get(srv.URL + "/ws" + q)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
}

func TestPublishReachesConnectedClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil)
	go hub.Run(ctx)
	srv := newServer(t, hub)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + signToken(t, "tesoreria")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Registration is asynchronous; publish until the client sees a message.
	received := make(chan Message, 1)
	go func() {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg Message
		if json.Unmarshal(data, &msg) == nil {
			received <- msg
		}
	}()

	deadline := time.After(3 * time.Second)
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case msg := <-received:
			assert.Equal(t, "requisicion.estado", msg.Topic)
			return
		case <-tick.C:
			hub.Publish("requisicion.estado", map[string]string{"to": "PAGADO"})
		case <-deadline:
			t.Fatal("no notification received")
		}
	}
}

func TestStoppedHubDoesNotBlockClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil)
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	served := make(chan struct{}, 4)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		hub.ServeWs(c, testSecret)
		served <- struct{}{}
	})
	srv := httptest.NewServer(r)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + signToken(t, "almacen")

	// A client connected before shutdown sees its connection closed.
	before, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer before.Close()
	<-served

	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	_ = before.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = before.ReadMessage()
	assert.Error(t, err)

	// A client arriving after shutdown is turned away instead of hanging.
	after, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer after.Close()

	select {
	case <-served:
	case <-time.After(2 * time.Second):
		t.Fatal("ServeWs blocked on a stopped hub")
	}
	_ = after.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = after.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))
}

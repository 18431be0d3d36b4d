package progress

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjun-x/arjun-go/internal/model"
)

func TestEmitWithoutClientIsNoop(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	assert.NotPanics(t, func() {
		hub.RoundStart("http://example.com", 1, 4)
	})
}

func TestBroadcastReachesAttachedClient(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	time.Sleep(20 * time.Millisecond) // let registration land before emitting

	hub.Candidate("http://example.com", model.Candidate{Name: "debug", Score: 50, Risk: model.RiskHigh})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), "\"debug\"")
	assert.Contains(t, string(msg), "candidate")
}

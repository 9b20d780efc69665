package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rl1809/marketplace/internal/core/domain"
)

func dialWS(t *testing.T, env *testEnv, actor domain.Actor) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/ws"
	header := http.Header{}
	header.Set(HeaderUserID, actor.ID)
	header.Set(HeaderUserRole, string(actor.Role))
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) domain.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var e domain.Event
	require.NoError(t, json.Unmarshal(data, &e))
	return e
}

func TestHub_DeliversOnlyAddressedEvents(t *testing.T) {
	env := newTestEnv(t, 1, HTTPConfig{})
	own := dialWS(t, env, buyer)
	adminConn := dialWS(t, env, admin)
	require.Eventually(t, func() bool { return env.hub.ClientCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	ctx := context.Background()
	env.hub.Publish(ctx, domain.Event{Type: domain.EventOrderUpdated, BuyerID: buyer2.ID, EntityID: "other"})
	env.hub.Publish(ctx, domain.Event{Type: domain.EventOrderUpdated, BuyerID: buyer.ID, EntityID: "mine"})

	got := readEvent(t, own)
	assert.Equal(t, "mine", got.EntityID)

	first := readEvent(t, adminConn)
	second := readEvent(t, adminConn)
	assert.Equal(t, "other", first.EntityID)
	assert.Equal(t, "mine", second.EntityID)
}

func TestHub_CheckoutPublishesToBuyerAndSeller(t *testing.T) {
	env := newTestEnv(t, 2, HTTPConfig{})
	sellerConn := dialWS(t, env, seller)
	require.Eventually(t, func() bool { return env.hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	var placed CheckoutHTTPResponse
	require.Equal(t, http.StatusAccepted, env.do(t, buyer, http.MethodPost, "/api/orders",
		CheckoutHTTPRequest{RequestID: "ws-1", ProductID: "product-1", Quantity: 1}, &placed))

	e := readEvent(t, sellerConn)
	assert.Equal(t, domain.EventOrderPlaced, e.Type)
	assert.Equal(t, placed.Order.ID, e.EntityID)
}

func TestHub_RejectsAnonymous(t *testing.T) {
	env := newTestEnv(t, 1, HTTPConfig{})
	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHub_RunDisconnectsClients(t *testing.T) {
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()
	cancel()
	require.NoError(t, <-done)

	assert.False(t, hub.register(&client{hub: hub, send: make(chan []byte, 1)}))
	assert.Equal(t, 0, hub.ClientCount())
}

package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shibacoder/shibacoder-backend/internal/hub"
	"github.com/shibacoder/shibacoder-backend/internal/protocol"
)

func dialTestServer(t *testing.T) (*websocket.Conn, context.Context) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	h := hub.NewHub(ctx, hub.Config{TickInterval: time.Millisecond})
	srv := httptest.NewServer(Handler(h, zap.NewNop()))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn, ctx
}

func roundTrip(t *testing.T, conn *websocket.Conn, ctx context.Context, event string, payload any) protocol.Envelope {
	t.Helper()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, protocol.Marshal(event, payload)))

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var env protocol.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func TestHandlerRoundTrip(t *testing.T) {
	conn, ctx := dialTestServer(t)

	env := roundTrip(t, conn, ctx, protocol.EvGetLobbyList, protocol.GetLobbyListRequest{Page: 1})
	require.Equal(t, protocol.EvLobbyList, env.Event)

	var list protocol.LobbyListPayload
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Empty(t, list.Lobbies)
	assert.Equal(t, 1, list.Pagination.CurrentPage)
}

func TestHandlerReportsErrors(t *testing.T) {
	conn, ctx := dialTestServer(t)

	env := roundTrip(t, conn, ctx, "no_such_event", nil)
	require.Equal(t, protocol.EvError, env.Event)

	var payload protocol.ErrorPayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, "Unknown event: no_such_event", payload.Message)
}

// Package ws bridges websocket connections to the hub: one reader loop
// and one writer goroutine per connection, with the hub doing all the
// thinking.
package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/shibacoder/shibacoder-backend/internal/hub"
)

const (
	// outboxSize bounds per-connection backlog; a client that falls this
	// far behind is dropped by the hub rather than retried.
	outboxSize   = 32
	writeTimeout = 3 * time.Second
)

func Handler(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// The HTTP layer already runs permissive CORS; mirror it here.
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			log.Warn("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan []byte, outboxSize)
		reply := make(chan string, 1)
		h.Inbox() <- hub.Register{Outbox: out, Reply: reply}
		clientID := <-reply
		defer func() { h.Inbox() <- hub.Unregister{ClientID: clientID} }()

		// Writer goroutine: drains the outbox until the hub closes it.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for frame := range out {
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				err := conn.Write(ctx, websocket.MessageText, frame)
				cancel()
				if err != nil {
					// Reader will notice the dead connection; just drain.
					continue
				}
			}
		}()

		// Reader loop: every frame goes to the hub's event router.
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("websocket read ended", zap.String("client", clientID), zap.Error(err))
				}
				return
			}
			h.Inbox() <- hub.Inbound{ClientID: clientID, Data: data}
		}
	}
}

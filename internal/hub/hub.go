// Package hub owns every piece of mutable duel state: the connection
// registry, the lobby directory and the broadcast fan-out. A single
// goroutine drains the inbox, so handlers never race; slow sequences
// (countdown, judging) run outside the loop and re-enter as messages
// that re-validate state before mutating.
package hub

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shibacoder/shibacoder-backend/internal/game"
	"github.com/shibacoder/shibacoder-backend/internal/judge"
	"github.com/shibacoder/shibacoder-backend/internal/protocol"
)

type Msg interface{ isHubMsg() }

// Register adds a connection and replies with its generated id.
type Register struct {
	Outbox chan []byte
	Reply  chan string
}

// Unregister drops a connection, running the same cleanup as a failed
// send. Safe to deliver more than once.
type Unregister struct{ ClientID string }

// Inbound is one raw client frame for the event router.
type Inbound struct {
	ClientID string
	Data     []byte
}

// GetState reflects internal counters without data races. Test-only.
type GetState struct{ Reply chan View }

type Shutdown struct{}

// countdownTick and gameBegin re-enter the loop from the countdown
// goroutine; judgeVerdict re-enters from a judging goroutine. Each
// carries enough context to re-validate against the live state.
type countdownTick struct {
	lobbyID string
	seq     uint64
	n       int
}

type gameBegin struct {
	lobbyID string
	seq     uint64
}

type judgeVerdict struct {
	clientID string
	lobbyID  string
	outcome  judge.Outcome
}

func (Register) isHubMsg()      {}
func (Unregister) isHubMsg()    {}
func (Inbound) isHubMsg()       {}
func (GetState) isHubMsg()      {}
func (Shutdown) isHubMsg()      {}
func (countdownTick) isHubMsg() {}
func (gameBegin) isHubMsg()     {}
func (judgeVerdict) isHubMsg()  {}

type View struct {
	NumClients int
	NumLobbies int
}

type Config struct {
	Grader judge.Runner
	// TickInterval is the countdown inter-tick delay; production keeps
	// the default of one second, tests shrink it.
	TickInterval time.Duration
	Logger       *zap.Logger
}

type Hub struct {
	inbox   chan Msg
	clients map[string]chan []byte
	dir     *game.Directory
	grader  judge.Runner
	tick    time.Duration
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewHub(parent context.Context, cfg Config) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Grader == nil {
		cfg.Grader = judge.NewHeuristic()
	}

	h := &Hub{
		inbox:   make(chan Msg, 64),
		clients: make(map[string]chan []byte),
		dir:     game.NewDirectory(),
		grader:  cfg.Grader,
		tick:    cfg.TickInterval,
		log:     cfg.Logger,
		ctx:     ctx,
		cancel:  cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- Msg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Register:
				id := uuid.NewString()
				h.clients[id] = msg.Outbox
				h.dir.Connect(id)
				h.log.Info("client connected", zap.String("client", id))
				msg.Reply <- id

			case Unregister:
				h.disconnect(msg.ClientID)

			case Inbound:
				h.route(msg.ClientID, msg.Data)

			case countdownTick:
				if lb, ok := h.dir.CountdownCurrent(msg.lobbyID, msg.seq); ok {
					h.toLobby(lb, protocol.EvCountdownUpdate, protocol.CountdownPayload{Countdown: msg.n})
				}

			case gameBegin:
				h.beginGame(msg.lobbyID, msg.seq)

			case judgeVerdict:
				h.applyVerdict(msg)

			case GetState:
				msg.Reply <- View{NumClients: len(h.clients), NumLobbies: h.dir.LobbyCount()}

			case Shutdown:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for id, out := range h.clients {
		close(out)
		delete(h.clients, id)
	}
	h.cancel()
}

// disconnect reaps a connection: close its outbox, forget it, and remove
// the player from any lobby. Idempotent; a send failure and an explicit
// unregister both land here.
func (h *Hub) disconnect(clientID string) {
	if out, ok := h.clients[clientID]; ok {
		delete(h.clients, clientID)
		close(out)
	}

	dep := h.dir.DropConnection(clientID)
	if dep == nil {
		return
	}
	h.log.Info("client left lobby on disconnect",
		zap.String("client", clientID),
		zap.String("lobby", dep.LobbyID),
		zap.Bool("lobbyDeleted", dep.LobbyDeleted))

	if dep.LobbyDeleted {
		h.broadcastLobbyList()
		return
	}
	h.toLobby(dep.Lobby, protocol.EvPlayerLeft, protocol.PlayerLeftPayload{
		PlayerName:  dep.PlayerName,
		PlayerCount: len(dep.Lobby.Players),
		Players:     protocol.Roster(dep.Lobby),
	})
}

// toOne delivers to a single connection. A full or closed outbox drops
// the connection; there is no retry.
func (h *Hub) toOne(clientID, event string, payload any) bool {
	out, ok := h.clients[clientID]
	if !ok {
		return false
	}
	select {
	case out <- protocol.Marshal(event, payload):
		return true
	default:
		h.disconnect(clientID)
		return false
	}
}

// toLobby delivers to every player currently in the lobby. Failed
// recipients are reaped after the sweep so one bad connection cannot
// abort delivery to the rest.
func (h *Hub) toLobby(lb *game.Lobby, event string, payload any) {
	frame := protocol.Marshal(event, payload)
	var failed []string
	for _, p := range lb.Players {
		out, ok := h.clients[p.ID]
		if !ok {
			continue
		}
		select {
		case out <- frame:
		default:
			failed = append(failed, p.ID)
		}
	}
	for _, id := range failed {
		h.disconnect(id)
	}
}

// toAll delivers to every registered connection.
func (h *Hub) toAll(event string, payload any) {
	frame := protocol.Marshal(event, payload)
	var failed []string
	for id, out := range h.clients {
		select {
		case out <- frame:
		default:
			failed = append(failed, id)
		}
	}
	for _, id := range failed {
		h.disconnect(id)
	}
}

// broadcastLobbyList pushes the default first page of the public list to
// everyone, fired on any change to lobby visibility or membership.
func (h *Hub) broadcastLobbyList() {
	res := h.dir.ListPublic("", 1, 4)
	h.toAll(protocol.EvLobbyListUpdate, protocol.LobbyListOf(res, ""))
}

func (h *Hub) sendError(clientID, message string) {
	h.toOne(clientID, protocol.EvError, protocol.ErrorPayload{Message: message})
}

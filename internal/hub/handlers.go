package hub

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/shibacoder/shibacoder-backend/internal/game"
	"github.com/shibacoder/shibacoder-backend/internal/problem"
	"github.com/shibacoder/shibacoder-backend/internal/protocol"
)

// route is the event router: it demultiplexes one inbound frame to the
// matching handler. Any fault, including a handler panic, is converted to
// an "error" event for the sender only; the loop never dies for one bad
// message.
func (h *Hub) route(clientID string, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("handler panic", zap.String("client", clientID), zap.Any("panic", r))
			h.sendError(clientID, "Internal server error")
		}
	}()

	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		h.sendError(clientID, "Invalid message format")
		return
	}

	switch env.Event {
	case protocol.EvGetLobbyList:
		h.handleGetLobbyList(clientID, env.Data)
	case protocol.EvCreateLobby:
		h.handleCreateLobby(clientID, env.Data)
	case protocol.EvJoinLobby:
		h.handleJoinLobby(clientID, env.Data)
	case protocol.EvLeaveLobby:
		h.handleLeaveLobby(clientID)
	case protocol.EvPlayerReady:
		h.handlePlayerReady(clientID)
	case protocol.EvSubmitCode:
		h.handleSubmitCode(clientID, env.Data)
	case protocol.EvSendAttack:
		h.handleSendAttack(clientID, env.Data)
	default:
		h.sendError(clientID, "Unknown event: "+env.Event)
	}
}

func (h *Hub) handleGetLobbyList(clientID string, data json.RawMessage) {
	req := protocol.GetLobbyListRequest{Page: 1}
	_ = json.Unmarshal(data, &req)
	if req.Page < 1 {
		req.Page = 1
	}

	res := h.dir.ListPublic(req.Search, req.Page, 4)
	h.toOne(clientID, protocol.EvLobbyList, protocol.LobbyListOf(res, req.Search))
}

func (h *Hub) handleCreateLobby(clientID string, data json.RawMessage) {
	var req protocol.CreateLobbyRequest
	_ = json.Unmarshal(data, &req)

	lb, err := h.dir.CreateLobby(clientID, req.Name, game.Visibility(req.Type), req.Pin, req.PlayerName)
	if err != nil {
		h.fail(clientID, "create_lobby", err)
		return
	}
	h.log.Info("lobby created",
		zap.String("lobby", lb.ID),
		zap.String("name", lb.Name),
		zap.String("visibility", string(lb.Visibility)))

	h.toOne(clientID, protocol.EvLobbyCreated, protocol.LobbyCreatedPayload{
		LobbyID:   lb.ID,
		LobbyData: protocol.LobbyStateOf(lb),
	})
	h.broadcastLobbyList()
}

func (h *Hub) handleJoinLobby(clientID string, data json.RawMessage) {
	var req protocol.JoinLobbyRequest
	_ = json.Unmarshal(data, &req)

	lb, p, err := h.dir.JoinLobby(clientID, req.LobbyID, req.Pin, req.PlayerName)
	if err != nil {
		h.fail(clientID, "join_lobby", err)
		return
	}
	h.log.Info("player joined lobby", zap.String("lobby", lb.ID), zap.String("player", p.Name))

	h.toOne(clientID, protocol.EvLobbyJoined, protocol.LobbyJoinedPayload{
		LobbyID:     lb.ID,
		LobbyData:   protocol.LobbyStateOf(lb),
		PlayerCount: len(lb.Players),
	})
	h.toLobby(lb, protocol.EvPlayerJoined, protocol.PlayerJoinedPayload{
		PlayerName:  p.Name,
		PlayerCount: len(lb.Players),
		MaxPlayers:  lb.MaxPlayers,
		Players:     protocol.Roster(lb),
	})
	h.broadcastLobbyList()
}

func (h *Hub) handleLeaveLobby(clientID string) {
	dep, err := h.dir.LeaveLobby(clientID)
	if err != nil {
		h.fail(clientID, "leave_lobby", err)
		return
	}

	h.toOne(clientID, protocol.EvLobbyLeft, protocol.LobbyLeftPayload{Message: "Left lobby successfully"})
	if dep == nil {
		// Stale lobby reference cleaned up; nothing to announce.
		return
	}
	h.log.Info("player left lobby",
		zap.String("lobby", dep.LobbyID),
		zap.String("player", dep.PlayerName),
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

func (h *Hub) handlePlayerReady(clientID string) {
	lb, p, err := h.dir.SetReady(clientID)
	if err != nil {
		h.fail(clientID, "player_ready", err)
		return
	}

	h.toLobby(lb, protocol.EvPlayerReadyUpdate, protocol.PlayerReadyUpdatePayload{
		PlayerName: p.Name,
		Players:    protocol.Roster(lb),
	})

	if !lb.ReadyToStart() {
		return
	}
	seq, ok := h.dir.ArmCountdown(lb.ID)
	if !ok {
		return
	}
	h.log.Info("all players ready, starting countdown", zap.String("lobby", lb.ID))
	h.toLobby(lb, protocol.EvCountdownStart, protocol.CountdownPayload{Countdown: 3})

	// The ticks and the final transition re-enter through the inbox and
	// are dropped if seq has moved on (someone left mid-countdown).
	go func(lobbyID string, seq uint64) {
		for i := 3; i >= 1; i-- {
			select {
			case h.inbox <- countdownTick{lobbyID: lobbyID, seq: seq, n: i}:
			case <-h.ctx.Done():
				return
			}
			select {
			case <-time.After(h.tick):
			case <-h.ctx.Done():
				return
			}
		}
		select {
		case h.inbox <- gameBegin{lobbyID: lobbyID, seq: seq}:
		case <-h.ctx.Done():
		}
	}(lb.ID, seq)
}

// beginGame runs after the countdown suspension, so the trigger condition
// is re-checked from scratch before the waiting -> playing transition.
func (h *Hub) beginGame(lobbyID string, seq uint64) {
	lb, ok := h.dir.StartGame(lobbyID, seq, problem.TwoSum())
	if !ok {
		h.log.Info("countdown aborted", zap.String("lobby", lobbyID))
		return
	}
	h.log.Info("game started", zap.String("lobby", lb.ID))

	players := make([]protocol.GamePlayer, 0, len(lb.Players))
	for _, p := range lb.Players {
		players = append(players, protocol.GamePlayer{ID: p.ID, Name: p.Name})
	}
	h.toLobby(lb, protocol.EvGameStart, protocol.GameStartPayload{
		Problem:   lb.Problem,
		Players:   players,
		TimeLimit: lb.Problem.TimeLimit,
	})

	// The lobby just vanished from the waiting list.
	h.broadcastLobbyList()
}

func (h *Hub) handleSubmitCode(clientID string, data json.RawMessage) {
	var req protocol.SubmitCodeRequest
	_ = json.Unmarshal(data, &req)

	lb, p, err := h.dir.RecordSubmission(clientID, req.Code)
	if err != nil {
		h.fail(clientID, "submit_code", err)
		return
	}
	h.log.Info("code submitted",
		zap.String("lobby", lb.ID),
		zap.String("player", p.Name),
		zap.String("language", req.Language))

	// Judging suspends for up to the full poll budget; run it off-loop
	// and re-enter with the verdict.
	tests := problem.TestCasesFor(lb.Problem.ID)
	go func(code, clientID, lobbyID string) {
		outcome := h.grader.Run(h.ctx, code, tests)
		select {
		case h.inbox <- judgeVerdict{clientID: clientID, lobbyID: lobbyID, outcome: outcome}:
		case <-h.ctx.Done():
		}
	}(p.Code, clientID, lb.ID)
}

// applyVerdict lands a judging outcome back in the loop. Membership may
// have changed during the judge wait, so everything is re-validated; the
// finished transition fires at most once per lobby.
func (h *Hub) applyVerdict(v judgeVerdict) {
	lb, p, ok := h.dir.ApplyVerdict(v.clientID, v.lobbyID, v.outcome.Passed, v.outcome.Total, v.outcome.Completed)
	if !ok {
		h.log.Info("dropping stale judge verdict",
			zap.String("client", v.clientID), zap.String("lobby", v.lobbyID))
		return
	}

	h.toOne(v.clientID, protocol.EvTestResults, protocol.TestResultsPayload{
		Passed:    v.outcome.Passed,
		Total:     v.outcome.Total,
		Completed: v.outcome.Completed,
		Runtime:   v.outcome.Runtime,
		Errors:    v.outcome.Errors,
	})
	h.toLobby(lb, protocol.EvProgressUpdate, protocol.ProgressOf(lb))

	if !v.outcome.Completed || !h.dir.FinishGame(lb, p) {
		return
	}
	h.log.Info("game finished", zap.String("lobby", lb.ID), zap.String("winner", p.Name))

	h.toLobby(lb, protocol.EvGameFinished, protocol.GameFinishedPayload{
		Winner:       lb.WinnerName,
		WinnerID:     lb.WinnerID,
		FinalScores:  protocol.FinalScoresOf(lb.FinalScores()),
		GameDuration: lb.EndedAt.Sub(lb.StartedAt).Seconds(),
	})
}

func (h *Hub) handleSendAttack(clientID string, data json.RawMessage) {
	req := protocol.SendAttackRequest{AttackType: "flashbang"}
	_ = json.Unmarshal(data, &req)
	if req.AttackType == "" {
		req.AttackType = "flashbang"
	}

	lb, err := h.dir.ActiveLobby(clientID)
	if err != nil {
		h.fail(clientID, "send_attack", err)
		return
	}

	attacker := lb.PlayerByID(clientID)
	opponent := lb.Opponent(clientID)
	if attacker == nil || opponent == nil {
		return
	}
	h.toOne(opponent.ID, protocol.EvAttackReceived, protocol.AttackReceivedPayload{
		AttackType: req.AttackType,
		Attacker:   attacker.Name,
	})
}

// fail reports a domain error back to the offending client only.
func (h *Hub) fail(clientID, op string, err error) {
	h.log.Debug("request rejected",
		zap.String("client", clientID),
		zap.String("op", op),
		zap.String("kind", string(game.KindOf(err))),
		zap.Error(err))
	h.sendError(clientID, err.Error())
}

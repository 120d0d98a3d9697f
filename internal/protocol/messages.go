// Package protocol defines the websocket wire contract: every message in
// either direction is an Envelope {"event": ..., "data": {...}}.
package protocol

import (
	"encoding/json"
	"time"

	"github.com/shibacoder/shibacoder-backend/internal/game"
	"github.com/shibacoder/shibacoder-backend/internal/problem"
)

type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Inbound events.
const (
	EvGetLobbyList = "get_lobby_list"
	EvCreateLobby  = "create_lobby"
	EvJoinLobby    = "join_lobby"
	EvLeaveLobby   = "leave_lobby"
	EvPlayerReady  = "player_ready"
	EvSubmitCode   = "submit_code"
	EvSendAttack   = "send_attack"
)

// Outbound events.
const (
	EvLobbyList         = "lobby_list"
	EvLobbyListUpdate   = "lobby_list_update"
	EvLobbyCreated      = "lobby_created"
	EvLobbyJoined       = "lobby_joined"
	EvPlayerJoined      = "player_joined"
	EvPlayerLeft        = "player_left"
	EvLobbyLeft         = "lobby_left"
	EvPlayerReadyUpdate = "player_ready_update"
	EvCountdownStart    = "countdown_start"
	EvCountdownUpdate   = "countdown_update"
	EvGameStart         = "game_start"
	EvTestResults       = "test_results"
	EvProgressUpdate    = "progress_update"
	EvGameFinished      = "game_finished"
	EvAttackReceived    = "attack_received"
	EvError             = "error"
)

// Marshal wraps a payload in the envelope. A payload that fails to
// marshal is a programming error; the raw bytes are best-effort.
func Marshal(event string, payload any) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("{}")
	}
	raw, _ := json.Marshal(Envelope{Event: event, Data: data})
	return raw
}

// --- inbound payloads ---

type GetLobbyListRequest struct {
	Page   int    `json:"page"`
	Search string `json:"search"`
}

type CreateLobbyRequest struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Pin        string `json:"pin"`
	PlayerName string `json:"playerName"`
}

type JoinLobbyRequest struct {
	LobbyID    string `json:"lobbyId"`
	Pin        string `json:"pin"`
	PlayerName string `json:"playerName"`
}

type SubmitCodeRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

type SendAttackRequest struct {
	AttackType string `json:"attackType"`
}

// --- outbound payloads ---

type ErrorPayload struct {
	Message string `json:"message"`
}

type LobbySummary struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	PlayerCount int     `json:"playerCount"`
	MaxPlayers  int     `json:"maxPlayers"`
	Status      string  `json:"status"`
	CreatedAt   float64 `json:"createdAt"`
}

type Pagination struct {
	CurrentPage  int `json:"currentPage"`
	TotalPages   int `json:"totalPages"`
	TotalLobbies int `json:"totalLobbies"`
	PerPage      int `json:"perPage"`
}

type LobbyListPayload struct {
	Lobbies    []LobbySummary `json:"lobbies"`
	Pagination Pagination     `json:"pagination"`
	Search     string         `json:"search"`
}

// PlayerState is the roster entry shipped inside lobby payloads.
type PlayerState struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Ready bool   `json:"ready"`
}

// LobbyState is the full lobby view (lobby_created / lobby_joined). The
// pin never leaves the server.
type LobbyState struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Type       string        `json:"type"`
	Status     string        `json:"status"`
	Players    []PlayerState `json:"players"`
	MaxPlayers int           `json:"maxPlayers"`
	CreatedAt  float64       `json:"createdAt"`
}

type LobbyCreatedPayload struct {
	LobbyID   string     `json:"lobbyId"`
	LobbyData LobbyState `json:"lobbyData"`
}

type LobbyJoinedPayload struct {
	LobbyID     string     `json:"lobbyId"`
	LobbyData   LobbyState `json:"lobbyData"`
	PlayerCount int        `json:"playerCount"`
}

type PlayerJoinedPayload struct {
	PlayerName  string        `json:"playerName"`
	PlayerCount int           `json:"playerCount"`
	MaxPlayers  int           `json:"maxPlayers"`
	Players     []PlayerState `json:"players"`
}

type PlayerLeftPayload struct {
	PlayerName  string        `json:"playerName"`
	PlayerCount int           `json:"playerCount"`
	Players     []PlayerState `json:"players"`
}

type LobbyLeftPayload struct {
	Message string `json:"message"`
}

type PlayerReadyUpdatePayload struct {
	PlayerName string        `json:"playerName"`
	Players    []PlayerState `json:"players"`
}

type CountdownPayload struct {
	Countdown int `json:"countdown"`
}

type GameStartPayload struct {
	Problem   *problem.Problem `json:"problem"`
	Players   []GamePlayer     `json:"players"`
	TimeLimit int              `json:"timeLimit"`
}

type GamePlayer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type TestResultsPayload struct {
	Passed    int      `json:"passed"`
	Total     int      `json:"total"`
	Completed bool     `json:"completed"`
	Runtime   int      `json:"runtime"`
	Errors    []string `json:"errors"`
}

type ProgressPlayer struct {
	Name        string `json:"name"`
	TestsPassed int    `json:"tests_passed"`
	TotalTests  int    `json:"total_tests"`
	Completed   bool   `json:"completed"`
}

type ProgressUpdatePayload struct {
	Players []ProgressPlayer `json:"players"`
}

type FinalScore struct {
	Name           string   `json:"name"`
	TestsPassed    int      `json:"tests_passed"`
	TotalTests     int      `json:"total_tests"`
	Completed      bool     `json:"completed"`
	CompletionTime *float64 `json:"completion_time"`
}

type GameFinishedPayload struct {
	Winner       string       `json:"winner"`
	WinnerID     string       `json:"winner_id"`
	FinalScores  []FinalScore `json:"final_scores"`
	GameDuration float64      `json:"game_duration"`
}

type AttackReceivedPayload struct {
	AttackType string `json:"attackType"`
	Attacker   string `json:"attacker"`
}

// --- converters from the game domain ---

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func Roster(lb *game.Lobby) []PlayerState {
	out := make([]PlayerState, 0, len(lb.Players))
	for _, p := range lb.Players {
		out = append(out, PlayerState{ID: p.ID, Name: p.Name, Ready: p.Ready})
	}
	return out
}

func LobbyStateOf(lb *game.Lobby) LobbyState {
	return LobbyState{
		ID:         lb.ID,
		Name:       lb.Name,
		Type:       string(lb.Visibility),
		Status:     string(lb.Status),
		Players:    Roster(lb),
		MaxPlayers: lb.MaxPlayers,
		CreatedAt:  unixSeconds(lb.CreatedAt),
	}
}

func LobbyListOf(res game.ListResult, search string) LobbyListPayload {
	summaries := make([]LobbySummary, 0, len(res.Lobbies))
	for _, lb := range res.Lobbies {
		summaries = append(summaries, LobbySummary{
			ID:          lb.ID,
			Name:        lb.Name,
			PlayerCount: len(lb.Players),
			MaxPlayers:  lb.MaxPlayers,
			Status:      string(lb.Status),
			CreatedAt:   unixSeconds(lb.CreatedAt),
		})
	}
	return LobbyListPayload{
		Lobbies: summaries,
		Pagination: Pagination{
			CurrentPage:  res.CurrentPage,
			TotalPages:   res.TotalPages,
			TotalLobbies: res.TotalLobbies,
			PerPage:      res.PerPage,
		},
		Search: search,
	}
}

func ProgressOf(lb *game.Lobby) ProgressUpdatePayload {
	players := make([]ProgressPlayer, 0, len(lb.Players))
	for _, p := range lb.Players {
		total := p.TotalTests
		if total == 0 {
			total = 5
		}
		players = append(players, ProgressPlayer{
			Name:        p.Name,
			TestsPassed: p.TestsPassed,
			TotalTests:  total,
			Completed:   p.Completed,
		})
	}
	return ProgressUpdatePayload{Players: players}
}

func FinalScoresOf(scores []game.Score) []FinalScore {
	out := make([]FinalScore, 0, len(scores))
	for _, s := range scores {
		total := s.TotalTests
		if total == 0 {
			total = 5
		}
		out = append(out, FinalScore{
			Name:           s.Name,
			TestsPassed:    s.TestsPassed,
			TotalTests:     total,
			Completed:      s.Completed,
			CompletionTime: s.CompletionTime,
		})
	}
	return out
}

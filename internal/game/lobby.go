package game

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/shibacoder/shibacoder-backend/internal/problem"
)

type Visibility string

const (
	Public  Visibility = "public"
	Private Visibility = "private"
)

// Status only ever advances: waiting -> playing -> finished. The countdown
// is a broadcast sequence, not a stored status.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

const MaxPlayers = 2

// Player is the per-connection game record. It lives inside exactly one
// lobby's player list; LobbyID on the session is the back-reference.
type Player struct {
	ID             string
	Name           string
	Ready          bool
	Code           string
	LastSubmission time.Time
	TestsPassed    int
	TotalTests     int
	Completed      bool
}

type Lobby struct {
	ID         string
	Name       string
	Visibility Visibility
	Pin        string // set iff private
	Status     Status
	Players    []*Player
	MaxPlayers int
	Problem    *problem.Problem
	CreatedAt  time.Time
	StartedAt  time.Time
	EndedAt    time.Time
	WinnerName string
	WinnerID   string

	// CountdownSeq guards the suspended countdown sequence: every roster
	// change while waiting bumps it, so ticks armed under an older value
	// are dropped when they re-enter the hub loop.
	CountdownSeq uint64
}

func (l *Lobby) Full() bool { return len(l.Players) >= l.MaxPlayers }

func (l *Lobby) AllReady() bool {
	for _, p := range l.Players {
		if !p.Ready {
			return false
		}
	}
	return true
}

// ReadyToStart is the countdown trigger: a full lobby with every player
// ready. A lone ready player never triggers.
func (l *Lobby) ReadyToStart() bool {
	return l.Status == StatusWaiting && l.Full() && l.AllReady()
}

func (l *Lobby) PlayerByID(id string) *Player {
	for _, p := range l.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Opponent returns the other player of a two-player lobby, nil if alone.
func (l *Lobby) Opponent(id string) *Player {
	for _, p := range l.Players {
		if p.ID != id {
			return p
		}
	}
	return nil
}

// session tracks what the directory knows about a live connection: the
// display name it last used and the lobby it currently occupies.
type session struct {
	id      string
	name    string
	lobbyID string
}

// Departure describes the result of a player leaving, for the caller to
// turn into player_left / lobby_list_update broadcasts.
type Departure struct {
	LobbyID      string
	Lobby        *Lobby // nil once the lobby was deleted
	PlayerName   string
	LobbyDeleted bool
}

// Directory is the sole owner of all lobby, player and session records.
// It is not safe for concurrent use; the hub's single goroutine is the
// only caller.
type Directory struct {
	lobbies  map[string]*Lobby
	sessions map[string]*session

	now        func() time.Time
	newLobbyID func() string
}

func NewDirectory() *Directory {
	return &Directory{
		lobbies:    make(map[string]*Lobby),
		sessions:   make(map[string]*session),
		now:        time.Now,
		newLobbyID: randomLobbyID,
	}
}

func randomLobbyID() string {
	return fmt.Sprintf("lobby_%06d", 100000+rand.Intn(900000))
}

// Connect registers a session for a new connection.
func (d *Directory) Connect(id string) {
	d.sessions[id] = &session{id: id}
}

// Lobby looks up a lobby by id.
func (d *Directory) Lobby(id string) (*Lobby, bool) {
	lb, ok := d.lobbies[id]
	return lb, ok
}

// LobbyCount reports the number of live lobbies of any visibility.
func (d *Directory) LobbyCount() int { return len(d.lobbies) }

// ActiveLobby resolves the requester's lobby for in-play operations
// (attacks), requiring a running game.
func (d *Directory) ActiveLobby(requesterID string) (*Lobby, error) {
	lb, err := d.lobbyOf(requesterID)
	if err != nil {
		return nil, err
	}
	if lb.Status != StatusPlaying {
		return nil, ErrNotPlaying
	}
	return lb, nil
}

func validPin(pin string) bool {
	if len(pin) != 4 {
		return false
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return false
		}
	}
	return true
}

func (d *Directory) displayName(s *session, requested string) string {
	if name := strings.TrimSpace(requested); name != "" {
		return name
	}
	if s.name != "" {
		return s.name
	}
	compact := strings.ReplaceAll(s.id, "-", "")
	if len(compact) > 8 {
		compact = compact[len(compact)-8:]
	}
	return "Player" + compact
}

// CreateLobby validates input, generates an id unique among live lobbies
// and seats the requester as the sole, un-ready player.
func (d *Directory) CreateLobby(requesterID, name string, vis Visibility, pin, playerName string) (*Lobby, error) {
	s, ok := d.sessions[requesterID]
	if !ok {
		return nil, ErrNotInLobby
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if vis != Public && vis != Private {
		return nil, ErrBadVisibility
	}
	if vis == Private {
		if pin == "" {
			return nil, ErrPinRequired
		}
		if !validPin(pin) {
			return nil, ErrPinFormat
		}
	} else {
		pin = ""
	}
	if s.lobbyID != "" {
		return nil, ErrAlreadyInLobby
	}

	id := d.newLobbyID()
	for _, taken := d.lobbies[id]; taken; _, taken = d.lobbies[id] {
		id = d.newLobbyID()
	}

	display := d.displayName(s, playerName)
	lb := &Lobby{
		ID:         id,
		Name:       name,
		Visibility: vis,
		Pin:        pin,
		Status:     StatusWaiting,
		Players:    []*Player{{ID: requesterID, Name: display}},
		MaxPlayers: MaxPlayers,
		CreatedAt:  d.now(),
	}
	d.lobbies[id] = lb

	s.name = display
	s.lobbyID = id
	return lb, nil
}

// JoinLobby seats the requester in an existing waiting lobby.
func (d *Directory) JoinLobby(requesterID, lobbyID, pin, playerName string) (*Lobby, *Player, error) {
	s, ok := d.sessions[requesterID]
	if !ok {
		return nil, nil, ErrNotInLobby
	}

	lobbyID = strings.TrimSpace(lobbyID)
	if lobbyID == "" {
		return nil, nil, ErrLobbyIDRequired
	}
	lb, ok := d.lobbies[lobbyID]
	if !ok {
		return nil, nil, ErrLobbyNotFound
	}
	if lb.Full() {
		return nil, nil, ErrLobbyFull
	}
	if lb.Status != StatusWaiting {
		return nil, nil, ErrGameInProgress
	}
	if s.lobbyID != "" {
		return nil, nil, ErrAlreadyInLobby
	}
	if lb.Visibility == Private {
		pin = strings.TrimSpace(pin)
		if pin == "" {
			return nil, nil, ErrPinRequired
		}
		if pin != lb.Pin {
			return nil, nil, ErrPinMismatch
		}
	}

	display := d.displayName(s, playerName)
	p := &Player{ID: requesterID, Name: display}
	lb.Players = append(lb.Players, p)

	s.name = display
	s.lobbyID = lobbyID
	return lb, p, nil
}

// LeaveLobby removes the requester from their lobby, deleting the lobby
// when it empties.
func (d *Directory) LeaveLobby(requesterID string) (*Departure, error) {
	s, ok := d.sessions[requesterID]
	if !ok || s.lobbyID == "" {
		return nil, ErrNotInLobby
	}

	lb, ok := d.lobbies[s.lobbyID]
	if !ok {
		// Stale back-reference to a vanished lobby; just clear it.
		s.lobbyID = ""
		return nil, nil
	}
	return d.removePlayer(lb, s), nil
}

// DropConnection is the disconnect path: equivalent to LeaveLobby but
// idempotent and silent, then forgets the session entirely.
func (d *Directory) DropConnection(id string) *Departure {
	s, ok := d.sessions[id]
	if !ok {
		return nil
	}
	delete(d.sessions, id)

	if s.lobbyID == "" {
		return nil
	}
	lb, ok := d.lobbies[s.lobbyID]
	if !ok {
		return nil
	}
	return d.removePlayer(lb, s)
}

func (d *Directory) removePlayer(lb *Lobby, s *session) *Departure {
	kept := lb.Players[:0]
	for _, p := range lb.Players {
		if p.ID != s.id {
			kept = append(kept, p)
		}
	}
	lb.Players = kept
	s.lobbyID = ""

	// Any armed countdown is now stale.
	if lb.Status == StatusWaiting {
		lb.CountdownSeq++
	}

	dep := &Departure{LobbyID: lb.ID, PlayerName: s.name}
	if len(lb.Players) == 0 {
		delete(d.lobbies, lb.ID)
		dep.LobbyDeleted = true
	} else {
		dep.Lobby = lb
	}
	return dep
}

// lobbyOf resolves the requester's current lobby for in-game operations.
func (d *Directory) lobbyOf(requesterID string) (*Lobby, error) {
	s, ok := d.sessions[requesterID]
	if !ok || s.lobbyID == "" {
		return nil, ErrNotInLobby
	}
	lb, ok := d.lobbies[s.lobbyID]
	if !ok {
		return nil, ErrLobbyNotFound
	}
	return lb, nil
}

// SetReady marks the requester ready. There is no un-ready operation.
func (d *Directory) SetReady(requesterID string) (*Lobby, *Player, error) {
	lb, err := d.lobbyOf(requesterID)
	if err != nil {
		return nil, nil, err
	}
	p := lb.PlayerByID(requesterID)
	if p == nil {
		return nil, nil, ErrPlayerNotFound
	}
	p.Ready = true
	return lb, p, nil
}

// ArmCountdown stamps a fresh sequence number for a countdown about to be
// scheduled and returns it.
func (d *Directory) ArmCountdown(lobbyID string) (uint64, bool) {
	lb, ok := d.lobbies[lobbyID]
	if !ok || lb.Status != StatusWaiting {
		return 0, false
	}
	lb.CountdownSeq++
	return lb.CountdownSeq, true
}

// CountdownCurrent reports whether a suspended countdown step armed under
// seq is still the live one. Called after every tick suspension.
func (d *Directory) CountdownCurrent(lobbyID string, seq uint64) (*Lobby, bool) {
	lb, ok := d.lobbies[lobbyID]
	if !ok || lb.Status != StatusWaiting || lb.CountdownSeq != seq {
		return nil, false
	}
	return lb, true
}

// StartGame transitions waiting -> playing once the countdown armed under
// seq runs out, re-validating the trigger condition after the suspension.
func (d *Directory) StartGame(lobbyID string, seq uint64, prob *problem.Problem) (*Lobby, bool) {
	lb, ok := d.CountdownCurrent(lobbyID, seq)
	if !ok || !lb.ReadyToStart() {
		return nil, false
	}
	lb.Status = StatusPlaying
	lb.StartedAt = d.now()
	lb.Problem = prob
	return lb, true
}

// RecordSubmission validates an in-game code submission and stamps the
// player's code and submission time before judging begins.
func (d *Directory) RecordSubmission(requesterID, code string) (*Lobby, *Player, error) {
	lb, err := d.lobbyOf(requesterID)
	if err != nil {
		return nil, nil, err
	}
	if lb.Status != StatusPlaying {
		return nil, nil, ErrNotPlaying
	}
	if strings.TrimSpace(code) == "" {
		return nil, nil, ErrEmptyCode
	}
	p := lb.PlayerByID(requesterID)
	if p == nil {
		return nil, nil, ErrPlayerNotFound
	}
	p.Code = strings.TrimSpace(code)
	p.LastSubmission = d.now()
	return lb, p, nil
}

// ApplyVerdict records a judging outcome on the submitter. The judge call
// is a suspension point, so membership is re-validated here: a verdict for
// a player who has since left the lobby (or whose lobby is gone) is stale.
func (d *Directory) ApplyVerdict(playerID, lobbyID string, passed, total int, completed bool) (*Lobby, *Player, bool) {
	s, ok := d.sessions[playerID]
	if !ok || s.lobbyID != lobbyID {
		return nil, nil, false
	}
	lb, ok := d.lobbies[lobbyID]
	if !ok {
		return nil, nil, false
	}
	p := lb.PlayerByID(playerID)
	if p == nil {
		return nil, nil, false
	}
	p.TestsPassed = passed
	p.TotalTests = total
	p.Completed = completed
	return lb, p, true
}

// FinishGame transitions playing -> finished exactly once, recording the
// winner. Returns false when the lobby already finished (the opponent won
// during this submission's judge wait).
func (d *Directory) FinishGame(lb *Lobby, winner *Player) bool {
	if lb.Status != StatusPlaying {
		return false
	}
	lb.Status = StatusFinished
	lb.EndedAt = d.now()
	lb.WinnerName = winner.Name
	lb.WinnerID = winner.ID
	return true
}

// Score is a per-player final result line for game_finished.
type Score struct {
	Name           string
	TestsPassed    int
	TotalTests     int
	Completed      bool
	CompletionTime *float64 // seconds from game start, nil if not completed
}

// FinalScores computes each player's completion latency against StartedAt.
func (l *Lobby) FinalScores() []Score {
	scores := make([]Score, 0, len(l.Players))
	for _, p := range l.Players {
		s := Score{
			Name:        p.Name,
			TestsPassed: p.TestsPassed,
			TotalTests:  p.TotalTests,
			Completed:   p.Completed,
		}
		if p.Completed {
			secs := p.LastSubmission.Sub(l.StartedAt).Seconds()
			s.CompletionTime = &secs
		}
		scores = append(scores, s)
	}
	return scores
}

// ListResult is one page of the public lobby listing.
type ListResult struct {
	Lobbies      []*Lobby
	CurrentPage  int
	TotalPages   int
	TotalLobbies int
	PerPage      int
}

// ListPublic returns public lobbies still waiting for players, filtered by
// a case-insensitive substring match on the name, newest first, with page
// clamped into [1, totalPages].
func (d *Directory) ListPublic(search string, page, perPage int) ListResult {
	if perPage <= 0 {
		perPage = 4
	}

	needle := strings.ToLower(search)
	matches := make([]*Lobby, 0, len(d.lobbies))
	for _, lb := range d.lobbies {
		if lb.Visibility != Public || lb.Status != StatusWaiting {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(lb.Name), needle) {
			continue
		}
		matches = append(matches, lb)
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].ID > matches[j].ID
		}
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})

	total := len(matches)
	totalPages := (total + perPage - 1) / perPage
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * perPage
	end := start + perPage
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return ListResult{
		Lobbies:      matches[start:end],
		CurrentPage:  page,
		TotalPages:   totalPages,
		TotalLobbies: total,
		PerPage:      perPage,
	}
}

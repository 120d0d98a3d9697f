package game

import "errors"

// Error text doubles as the message of the "error" event sent back to the
// offending client, so these strings are part of the wire contract.
var (
	ErrNameRequired    = errors.New("Lobby name is required")
	ErrBadVisibility   = errors.New("Lobby type must be 'public' or 'private'")
	ErrPinRequired     = errors.New("Pin is required for private lobbies")
	ErrPinFormat       = errors.New("Pin must be exactly 4 digits")
	ErrLobbyIDRequired = errors.New("Lobby ID is required")
	ErrLobbyNotFound   = errors.New("Lobby not found")
	ErrLobbyFull       = errors.New("Lobby is full")
	ErrGameInProgress  = errors.New("Game already in progress")
	ErrAlreadyInLobby  = errors.New("You are already in a lobby")
	ErrPinMismatch     = errors.New("Incorrect pin")
	ErrNotInLobby      = errors.New("You are not in a lobby")
	ErrPlayerNotFound  = errors.New("Player not found in lobby")
	ErrNotPlaying      = errors.New("Game is not in progress")
	ErrEmptyCode       = errors.New("Code cannot be empty")
)

// Kind buckets errors into the taxonomy used by logs and tests. Every
// kind is delivered to the client the same way, as an "error" event.
type Kind string

const (
	KindValidation Kind = "validation"
	KindState      Kind = "state"
	KindNotFound   Kind = "not_found"
	KindAuthz      Kind = "authz"
	KindInternal   Kind = "internal"
)

func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrNameRequired),
		errors.Is(err, ErrBadVisibility),
		errors.Is(err, ErrPinRequired),
		errors.Is(err, ErrPinFormat),
		errors.Is(err, ErrLobbyIDRequired),
		errors.Is(err, ErrEmptyCode):
		return KindValidation
	case errors.Is(err, ErrLobbyFull),
		errors.Is(err, ErrGameInProgress),
		errors.Is(err, ErrAlreadyInLobby),
		errors.Is(err, ErrNotInLobby),
		errors.Is(err, ErrPlayerNotFound),
		errors.Is(err, ErrNotPlaying):
		return KindState
	case errors.Is(err, ErrLobbyNotFound):
		return KindNotFound
	case errors.Is(err, ErrPinMismatch):
		return KindAuthz
	default:
		return KindInternal
	}
}

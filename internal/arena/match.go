package arena

import (
	"github.com/playduel/backend/internal/game"
	"github.com/playduel/backend/internal/models"
)

// liveMatch is one entry of the in-memory match registry. The registry
// exclusively owns this state; everything here is guarded by the hub lock.
// On finalization the record is flushed to the store and the entry evicted.
type liveMatch struct {
	id     int64
	record *models.Match
	p1, p2 *Session

	// Morpion
	board *game.Board
	next  string // symbol expected to move, X first

	// Mastermind; sides are indexed 0 (player1) and 1 (player2)
	codes       [2][]string
	guesses     [2][][]string
	feedback    [2][]game.Feedback
	codeLength  int
	maxAttempts int
}

// sideOf returns 0 for player1, 1 for player2, -1 for a non-participant.
func (m *liveMatch) sideOf(pseudo string) int {
	switch pseudo {
	case m.p1.pseudo:
		return 0
	case m.p2.pseudo:
		return 1
	default:
		return -1
	}
}

func (m *liveMatch) opponentOf(side int) *Session {
	if side == 0 {
		return m.p2
	}
	return m.p1
}

// symbolOf maps a side to its Morpion symbol: player1 is X and moves first.
func symbolOf(side int) string {
	if side == 0 {
		return game.SymbolX
	}
	return game.SymbolO
}

package models

import (
	"database/sql"
	"time"
)

// Game types stored in matches.game_type.
const (
	GameMorpion    = "morpion"
	GameMastermind = "mastermind"
)

// Match results besides a winner's pseudo.
const (
	ResultDraw        = "draw"
	ResultInterrupted = "interrupted"
)

// Player is the persisted identity of a participant.
type Player struct {
	Pseudo   string    `db:"pseudo" json:"pseudo"`
	IP       string    `db:"ip" json:"ip"`
	Port     int       `db:"port" json:"port"`
	JoinDate time.Time `db:"join_date" json:"join_date"`
}

// Match is the common row for both game kinds. Result is NULL while the
// match is active.
type Match struct {
	ID         int64          `db:"id" json:"id"`
	Player1    string         `db:"player1" json:"player1"`
	Player2    string         `db:"player2" json:"player2"`
	Board      string         `db:"board" json:"board"`
	IsFinished bool           `db:"is_finished" json:"is_finished"`
	Result     sql.NullString `db:"result" json:"result,omitempty"`
	GameType   string         `db:"game_type" json:"game_type"`
}

// MastermindMatch carries the Mastermind-specific columns. Codes, guesses
// and feedback are JSON-encoded arrays.
type MastermindMatch struct {
	MatchID         int64  `db:"match_id" json:"match_id"`
	Player1Code     string `db:"player1_code" json:"player1_code"`
	Player2Code     string `db:"player2_code" json:"player2_code"`
	Player1Guesses  string `db:"player1_guesses" json:"player1_guesses"`
	Player2Guesses  string `db:"player2_guesses" json:"player2_guesses"`
	Player1Feedback string `db:"player1_feedback" json:"player1_feedback"`
	Player2Feedback string `db:"player2_feedback" json:"player2_feedback"`
	MaxAttempts     int    `db:"max_attempts" json:"max_attempts"`
}

// Turn is an append-only journal entry. Move is the position for Morpion or
// the JSON-encoded guess for Mastermind; Feedback is set for Mastermind only.
type Turn struct {
	ID       int64          `db:"id" json:"id"`
	MatchID  int64          `db:"match_id" json:"match_id"`
	Player   string         `db:"player" json:"player"`
	Move     string         `db:"move" json:"move"`
	Feedback sql.NullString `db:"feedback" json:"feedback,omitempty"`
}

// Ranking is the per-pseudo ELO record.
type Ranking struct {
	Pseudo       string       `db:"pseudo" json:"pseudo"`
	EloRating    int          `db:"elo_rating" json:"elo_rating"`
	GamesPlayed  int          `db:"games_played" json:"games_played"`
	Wins         int          `db:"wins" json:"wins"`
	Losses       int          `db:"losses" json:"losses"`
	Draws        int          `db:"draws" json:"draws"`
	LastGameDate sql.NullTime `db:"last_game_date" json:"last_game_date,omitempty"`
}

// TopPlayer is a leaderboard row with the derived win rate.
type TopPlayer struct {
	Pseudo      string  `db:"pseudo" json:"pseudo"`
	EloRating   int     `db:"elo_rating" json:"elo_rating"`
	GamesPlayed int     `db:"games_played" json:"games_played"`
	Wins        int     `db:"wins" json:"wins"`
	Losses      int     `db:"losses" json:"losses"`
	Draws       int     `db:"draws" json:"draws"`
	WinRate     float64 `db:"-" json:"win_rate"`
}

// HistoryEntry is a rating-history row joined with its match, reported from
// the requesting player's point of view.
type HistoryEntry struct {
	MatchID      int64     `db:"match_id" json:"match_id"`
	OldRating    int       `db:"old_rating" json:"old_rating"`
	NewRating    int       `db:"new_rating" json:"new_rating"`
	RatingChange int       `db:"rating_change" json:"rating_change"`
	MatchDate    time.Time `db:"match_date" json:"match_date"`
	Player1      string    `db:"player1" json:"-"`
	Player2      string    `db:"player2" json:"-"`
	MatchResult  string    `db:"result" json:"-"`
	Opponent     string    `db:"-" json:"opponent"`
	Result       string    `db:"-" json:"result"`
}

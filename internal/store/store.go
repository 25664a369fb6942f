// Package store is the durable side of the arena: players, matches, turns,
// rankings and rating history, all in PostgreSQL. Every exported method is
// one logical operation committed on its own; the store is safe to share
// across sessions.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/playduel/backend/internal/elo"
	"github.com/playduel/backend/internal/models"
)

type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// UpsertPlayer registers or refreshes a player row, keyed by pseudo.
func (s *Store) UpsertPlayer(pseudo, ip string, port int, joinDate time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO players (pseudo, ip, port, join_date)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (pseudo) DO UPDATE
		SET ip = EXCLUDED.ip, port = EXCLUDED.port, join_date = EXCLUDED.join_date
	`, pseudo, ip, port, joinDate)
	if err != nil {
		return fmt.Errorf("upsert player %s: %w", pseudo, err)
	}
	return nil
}

// InsertMatch creates the common match row and, for Mastermind, the
// specific-fields row. Returns the assigned match id.
func (s *Store) InsertMatch(m *models.Match, mm *models.MastermindMatch) (int64, error) {
	var id int64
	err := s.db.QueryRow(`
		INSERT INTO matches (player1, player2, board, is_finished, result, game_type)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, m.Player1, m.Player2, m.Board, m.IsFinished, m.Result, m.GameType).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert match: %w", err)
	}

	if mm != nil {
		_, err = s.db.Exec(`
			INSERT INTO mastermind_matches
				(match_id, player1_code, player2_code, player1_guesses, player2_guesses,
				 player1_feedback, player2_feedback, max_attempts)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, id, mm.Player1Code, mm.Player2Code, mm.Player1Guesses, mm.Player2Guesses,
			mm.Player1Feedback, mm.Player2Feedback, mm.MaxAttempts)
		if err != nil {
			return 0, fmt.Errorf("insert mastermind match %d: %w", id, err)
		}
	}

	return id, nil
}

// UpdateMatch rewrites the mutable common fields of a match.
func (s *Store) UpdateMatch(m *models.Match) error {
	_, err := s.db.Exec(`
		UPDATE matches
		SET board = $1, is_finished = $2, result = $3
		WHERE id = $4
	`, m.Board, m.IsFinished, m.Result, m.ID)
	if err != nil {
		return fmt.Errorf("update match %d: %w", m.ID, err)
	}
	return nil
}

// UpdateMastermindMatch rewrites the guess and feedback sequences.
func (s *Store) UpdateMastermindMatch(mm *models.MastermindMatch) error {
	_, err := s.db.Exec(`
		UPDATE mastermind_matches
		SET player1_guesses = $1, player2_guesses = $2,
		    player1_feedback = $3, player2_feedback = $4
		WHERE match_id = $5
	`, mm.Player1Guesses, mm.Player2Guesses, mm.Player1Feedback, mm.Player2Feedback, mm.MatchID)
	if err != nil {
		return fmt.Errorf("update mastermind match %d: %w", mm.MatchID, err)
	}
	return nil
}

// InsertTurn appends one journal entry.
func (s *Store) InsertTurn(matchID int64, player, move string, feedback sql.NullString) error {
	_, err := s.db.Exec(`
		INSERT INTO turns (match_id, player, move, feedback)
		VALUES ($1, $2, $3, $4)
	`, matchID, player, move, feedback)
	if err != nil {
		return fmt.Errorf("insert turn for match %d: %w", matchID, err)
	}
	return nil
}

// GetRanking returns a player's ranking, creating the default row (rating
// 1200, zero games) when the player has none yet.
func (s *Store) GetRanking(pseudo string) (*models.Ranking, error) {
	var r models.Ranking
	err := s.db.Get(&r, `
		SELECT pseudo, elo_rating, games_played, wins, losses, draws, last_game_date
		FROM player_rankings
		WHERE pseudo = $1
	`, pseudo)
	if err == nil {
		return &r, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("get ranking for %s: %w", pseudo, err)
	}

	// Pseudos the arena has never registered have no players row; the
	// conditional insert keeps the foreign key satisfied, and the default
	// record is returned either way.
	if _, err := s.db.Exec(`
		INSERT INTO player_rankings (pseudo, elo_rating, games_played, wins, losses, draws)
		SELECT $1, $2, 0, 0, 0, 0
		WHERE EXISTS (SELECT 1 FROM players WHERE pseudo = $1)
		ON CONFLICT (pseudo) DO NOTHING
	`, pseudo, elo.DefaultRating); err != nil {
		return nil, fmt.Errorf("initialize ranking for %s: %w", pseudo, err)
	}

	return &models.Ranking{Pseudo: pseudo, EloRating: elo.DefaultRating}, nil
}

// UpdateRankingsAfterMatch applies one ranked result atomically: both
// ratings, win/loss/draw counters, and two history rows, in a single
// transaction. Returns the new winner and loser ratings.
func (s *Store) UpdateRankingsAfterMatch(matchID int64, winner, loser string, isDraw bool) (int, int, error) {
	// Rows must exist before the locking read.
	if _, err := s.GetRanking(winner); err != nil {
		return 0, 0, err
	}
	if _, err := s.GetRanking(loser); err != nil {
		return 0, 0, err
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return 0, 0, fmt.Errorf("begin ranking update: %w", err)
	}
	defer tx.Rollback()

	lockRanking := func(pseudo string) (*models.Ranking, error) {
		var r models.Ranking
		err := tx.Get(&r, `
			SELECT pseudo, elo_rating, games_played, wins, losses, draws, last_game_date
			FROM player_rankings
			WHERE pseudo = $1
			FOR UPDATE
		`, pseudo)
		if err != nil {
			return nil, fmt.Errorf("lock ranking for %s: %w", pseudo, err)
		}
		return &r, nil
	}

	// Lock in a stable order to avoid deadlocks between concurrent
	// finalizations.
	first, second := winner, loser
	if second < first {
		first, second = second, first
	}
	locked := map[string]*models.Ranking{}
	for _, pseudo := range []string{first, second} {
		r, err := lockRanking(pseudo)
		if err != nil {
			return 0, 0, err
		}
		locked[pseudo] = r
	}
	winnerRank, loserRank := locked[winner], locked[loser]

	newWinner, newLoser := elo.RatingChange(
		winnerRank.EloRating, loserRank.EloRating,
		winnerRank.GamesPlayed, loserRank.GamesPlayed, isDraw)

	now := time.Now()

	winnerWins, winnerDraws := winnerRank.Wins+1, winnerRank.Draws
	loserLosses, loserDraws := loserRank.Losses+1, loserRank.Draws
	if isDraw {
		winnerWins, winnerDraws = winnerRank.Wins, winnerRank.Draws+1
		loserLosses, loserDraws = loserRank.Losses, loserRank.Draws+1
	}

	if _, err := tx.Exec(`
		UPDATE player_rankings
		SET elo_rating = $1, games_played = games_played + 1, wins = $2, draws = $3, last_game_date = $4
		WHERE pseudo = $5
	`, newWinner, winnerWins, winnerDraws, now, winner); err != nil {
		return 0, 0, fmt.Errorf("update winner ranking: %w", err)
	}

	if _, err := tx.Exec(`
		UPDATE player_rankings
		SET elo_rating = $1, games_played = games_played + 1, losses = $2, draws = $3, last_game_date = $4
		WHERE pseudo = $5
	`, newLoser, loserLosses, loserDraws, now, loser); err != nil {
		return 0, 0, fmt.Errorf("update loser ranking: %w", err)
	}

	insertHistory := func(pseudo string, oldRating, newRating int) error {
		_, err := tx.Exec(`
			INSERT INTO ranking_history (match_id, player_pseudo, old_rating, new_rating, rating_change, match_date)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, matchID, pseudo, oldRating, newRating, newRating-oldRating, now)
		return err
	}
	if err := insertHistory(winner, winnerRank.EloRating, newWinner); err != nil {
		return 0, 0, fmt.Errorf("insert winner history: %w", err)
	}
	if err := insertHistory(loser, loserRank.EloRating, newLoser); err != nil {
		return 0, 0, fmt.Errorf("insert loser history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit ranking update: %w", err)
	}

	log.Printf("[STORE] Rankings updated for match %d: %s %d->%d, %s %d->%d",
		matchID, winner, winnerRank.EloRating, newWinner, loser, loserRank.EloRating, newLoser)

	return newWinner, newLoser, nil
}

// TopPlayers returns the highest-rated players that have completed at
// least one ranked match, with their win rate.
func (s *Store) TopPlayers(limit int) ([]models.TopPlayer, error) {
	var players []models.TopPlayer
	err := s.db.Select(&players, `
		SELECT pseudo, elo_rating, games_played, wins, losses, draws
		FROM player_rankings
		WHERE games_played > 0
		ORDER BY elo_rating DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("top players: %w", err)
	}

	for i := range players {
		if players[i].GamesPlayed > 0 {
			rate := float64(players[i].Wins) / float64(players[i].GamesPlayed) * 100
			players[i].WinRate = float64(int(rate*10+0.5)) / 10
		}
	}

	return players, nil
}

// RankOf returns a player's 1-based rank among players with at least one
// ranked game: 1 + the number of strictly higher ratings.
func (s *Store) RankOf(pseudo string) (int, error) {
	var rank int
	err := s.db.Get(&rank, `
		SELECT COUNT(*) + 1
		FROM player_rankings
		WHERE elo_rating > (SELECT elo_rating FROM player_rankings WHERE pseudo = $1)
		  AND games_played > 0
	`, pseudo)
	if err != nil {
		return 0, fmt.Errorf("rank of %s: %w", pseudo, err)
	}
	return rank, nil
}

// HistoryOf returns a player's recent rating changes for ranked matches,
// newest first, with the opponent and a result label resolved from the
// joined match row.
func (s *Store) HistoryOf(pseudo string, limit int) ([]models.HistoryEntry, error) {
	var entries []models.HistoryEntry
	err := s.db.Select(&entries, `
		SELECT rh.match_id, rh.old_rating, rh.new_rating, rh.rating_change, rh.match_date,
		       m.player1, m.player2, COALESCE(m.result, '') AS result
		FROM ranking_history rh
		JOIN matches m ON rh.match_id = m.id
		WHERE rh.player_pseudo = $1 AND m.game_type = 'mastermind'
		ORDER BY rh.match_date DESC
		LIMIT $2
	`, pseudo, limit)
	if err != nil {
		return nil, fmt.Errorf("history of %s: %w", pseudo, err)
	}

	for i := range entries {
		e := &entries[i]
		e.Opponent = e.Player1
		if e.Player1 == pseudo {
			e.Opponent = e.Player2
		}
		switch e.MatchResult {
		case pseudo:
			e.Result = "win"
		case models.ResultDraw:
			e.Result = "draw"
		default:
			e.Result = "loss"
		}
	}

	return entries, nil
}

// EncodeJSON renders a sequence field for a JSON text column.
func EncodeJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(data)
}

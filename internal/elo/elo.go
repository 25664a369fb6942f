// Package elo implements the rating math used after ranked Mastermind
// matches. Ratings start at 1200 and move by K * (actual - expected).
package elo

import "math"

// DefaultRating is the rating assigned to players before their first
// ranked match.
const DefaultRating = 1200

// ExpectedScore returns the probability-like expected score of a player
// against an opponent given their current ratings.
func ExpectedScore(playerRating, opponentRating int) float64 {
	return 1 / (1 + math.Pow(10, float64(opponentRating-playerRating)/400))
}

// KFactor picks the K factor from the player's own state: provisional
// players (<10 games) move fast, established players slower, elite players
// slowest.
func KFactor(rating, gamesPlayed int) int {
	switch {
	case gamesPlayed < 10:
		return 40
	case rating < 2000:
		return 32
	default:
		return 24
	}
}

// NewRating applies one match result to a rating. actualScore is 1 for a
// win, 0.5 for a draw, 0 for a loss.
func NewRating(rating int, expected, actualScore float64, kFactor int) int {
	return int(math.Round(float64(rating) + float64(kFactor)*(actualScore-expected)))
}

// RatingChange computes both players' new ratings for one match, each with
// their own K factor.
func RatingChange(winnerRating, loserRating, winnerGames, loserGames int, isDraw bool) (int, int) {
	winnerExpected := ExpectedScore(winnerRating, loserRating)
	loserExpected := ExpectedScore(loserRating, winnerRating)

	winnerK := KFactor(winnerRating, winnerGames)
	loserK := KFactor(loserRating, loserGames)

	winnerActual, loserActual := 1.0, 0.0
	if isDraw {
		winnerActual, loserActual = 0.5, 0.5
	}

	newWinner := NewRating(winnerRating, winnerExpected, winnerActual, winnerK)
	newLoser := NewRating(loserRating, loserExpected, loserActual, loserK)
	return newWinner, newLoser
}

// Package rating implements the Elo adjustment applied once per finished game.
package rating

import (
	"math"

	"github.com/rocketscienceinc/tictactoe-ladder/internal/entity"
)

const DefaultKFactor = 32

// ExpectedScore is A's probabilistic score against B.
func ExpectedScore(ratingA, ratingB int) float64 {
	return 1 / (1 + math.Pow(10, float64(ratingB-ratingA)/400))
}

// Compute returns the new ratings of A and B. Scores are not validated; they are expected to sum to 1.
// New ratings are rounded to the nearest integer with ties away from zero.
func Compute(ratingA, ratingB int, scoreA, scoreB, kFactor float64) (int, int) {
	expectedA := ExpectedScore(ratingA, ratingB)
	expectedB := ExpectedScore(ratingB, ratingA)

	newA := math.Round(float64(ratingA) + kFactor*(scoreA-expectedA))
	newB := math.Round(float64(ratingB) + kFactor*(scoreB-expectedB))

	return int(newA), int(newB)
}

// Scores maps a result onto the actual scores of the X and O players.
func Scores(result entity.Result) (float64, float64) {
	switch result {
	case entity.ResultXWin:
		return 1, 0
	case entity.ResultOWin:
		return 0, 1
	default:
		return 0.5, 0.5
	}
}

// Apply writes the outcome of one game onto both players: new ratings, games played and
// exactly one of wins/losses per player, or a draw for both.
func Apply(x, o *entity.Member, result entity.Result, kFactor float64) {
	scoreX, scoreO := Scores(result)
	x.Rating, o.Rating = Compute(x.Rating, o.Rating, scoreX, scoreO, kFactor)

	x.GamesPlayed++
	o.GamesPlayed++

	switch result {
	case entity.ResultXWin:
		x.Wins++
		o.Losses++
	case entity.ResultOWin:
		o.Wins++
		x.Losses++
	default:
		x.Draws++
		o.Draws++
	}
}

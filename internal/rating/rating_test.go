package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-ladder/internal/entity"
)

func TestCompute(t *testing.T) {
	t.Run("Equal ratings and a draw leave ratings unchanged", func(t *testing.T) {
		for _, r := range []int{0, 800, 1200, 2400} {
			a, b := Compute(r, r, 0.5, 0.5, DefaultKFactor)

			assert.Equal(t, r, a)
			assert.Equal(t, r, b)
		}
	})

	t.Run("Equal ratings and a win move by half the K-factor", func(t *testing.T) {
		// Given: two players rated 1200
		// When: A beats B with K=32
		a, b := Compute(1200, 1200, 1, 0, DefaultKFactor)

		// Then: A gains 16 and B loses 16
		assert.Equal(t, 1216, a)
		assert.Equal(t, 1184, b)
	})

	t.Run("Favourite gains less than the underdog would", func(t *testing.T) {
		favouriteWins, _ := Compute(1400, 1200, 1, 0, DefaultKFactor)
		_, underdogWins := Compute(1400, 1200, 0, 1, DefaultKFactor)

		assert.Equal(t, 1408, favouriteWins)
		assert.Equal(t, 1224, underdogWins)
	})

	t.Run("Unequal ratings and a draw move ratings toward each other", func(t *testing.T) {
		a, b := Compute(1400, 1200, 0.5, 0.5, DefaultKFactor)

		assert.Equal(t, 1392, a)
		assert.Equal(t, 1208, b)
	})

	t.Run("Exact half deltas round away from zero", func(t *testing.T) {
		// Given: equal ratings so the expected score is exactly 0.5
		// When: K=33 makes the delta exactly 16.5
		a, b := Compute(1200, 1200, 1, 0, 33)

		// Then: 1216.5 rounds up and 1183.5 rounds up
		assert.Equal(t, 1217, a)
		assert.Equal(t, 1184, b)
	})

	t.Run("Negative half rounds away from zero", func(t *testing.T) {
		// Given: ratings of zero and K=1, so deltas are +-0.5
		a, b := Compute(0, 0, 0, 1, 1)

		// Then: -0.5 rounds to -1 and 0.5 rounds to 1
		assert.Equal(t, -1, a)
		assert.Equal(t, 1, b)
	})
}

func TestScores(t *testing.T) {
	x, o := Scores(entity.ResultXWin)
	assert.InDelta(t, 1.0, x, 0)
	assert.InDelta(t, 0.0, o, 0)

	x, o = Scores(entity.ResultOWin)
	assert.InDelta(t, 0.0, x, 0)
	assert.InDelta(t, 1.0, o, 0)

	x, o = Scores(entity.ResultDraw)
	assert.InDelta(t, 0.5, x, 0)
	assert.InDelta(t, 0.5, o, 0)
}

func TestApply(t *testing.T) {
	newMembers := func() (*entity.Member, *entity.Member) {
		return &entity.Member{ID: "x", Rating: 1200}, &entity.Member{ID: "o", Rating: 1200}
	}

	t.Run("X win", func(t *testing.T) {
		x, o := newMembers()

		Apply(x, o, entity.ResultXWin, DefaultKFactor)

		assert.Equal(t, 1216, x.Rating)
		assert.Equal(t, 1184, o.Rating)
		assert.Equal(t, entity.Stats{GamesPlayed: 1, Wins: 1}, x.Stats)
		assert.Equal(t, entity.Stats{GamesPlayed: 1, Losses: 1}, o.Stats)
	})

	t.Run("O win", func(t *testing.T) {
		x, o := newMembers()

		Apply(x, o, entity.ResultOWin, DefaultKFactor)

		assert.Equal(t, 1184, x.Rating)
		assert.Equal(t, 1216, o.Rating)
		assert.Equal(t, entity.Stats{GamesPlayed: 1, Losses: 1}, x.Stats)
		assert.Equal(t, entity.Stats{GamesPlayed: 1, Wins: 1}, o.Stats)
	})

	t.Run("Draw", func(t *testing.T) {
		x, o := newMembers()

		Apply(x, o, entity.ResultDraw, DefaultKFactor)

		assert.Equal(t, 1200, x.Rating)
		assert.Equal(t, 1200, o.Rating)
		assert.Equal(t, entity.Stats{GamesPlayed: 1, Draws: 1}, x.Stats)
		assert.Equal(t, entity.Stats{GamesPlayed: 1, Draws: 1}, o.Stats)
	})

	t.Run("Stats stay consistent across many games", func(t *testing.T) {
		x, o := newMembers()
		results := []entity.Result{entity.ResultXWin, entity.ResultDraw, entity.ResultOWin, entity.ResultXWin}

		for _, result := range results {
			Apply(x, o, result, DefaultKFactor)
		}

		require.True(t, x.Stats.Consistent())
		require.True(t, o.Stats.Consistent())
		assert.Equal(t, len(results), x.GamesPlayed)
		assert.Equal(t, x.Wins, o.Losses)
		assert.Equal(t, x.Losses, o.Wins)
	})
}

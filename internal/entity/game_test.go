package entity

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGameStatusMethods(t *testing.T) {
	t.Run("Nil state reads as open", func(t *testing.T) {
		game := &Game{}

		assert.True(t, game.IsOpen())
		assert.Equal(t, StatusOpen, game.Status())
	})

	t.Run("Next turn is only defined while in progress", func(t *testing.T) {
		// Given: a game in progress with O to move
		game := &Game{State: InProgress{NextTurn: SymbolO}}

		// When: asking for the next turn
		turn, ok := game.NextTurn()

		// Then: O is returned and there is no result yet
		require.True(t, ok)
		assert.Equal(t, SymbolO, turn)
		_, hasResult := game.Result()
		assert.False(t, hasResult)
	})

	t.Run("Result is only defined while finished", func(t *testing.T) {
		game := &Game{State: Finished{Result: ResultDraw}}

		result, ok := game.Result()
		require.True(t, ok)
		assert.Equal(t, ResultDraw, result)

		_, hasTurn := game.NextTurn()
		assert.False(t, hasTurn)
	})

	t.Run("Closed game keeps its prior result as final result only", func(t *testing.T) {
		game := &Game{State: Closed{PriorResult: ResultXWin}}

		_, hasResult := game.Result()
		assert.False(t, hasResult)

		final, ok := game.FinalResult()
		require.True(t, ok)
		assert.Equal(t, ResultXWin, final)
	})
}

func TestGame_SymbolOf(t *testing.T) {
	game := &Game{XPlayerID: "alice", OPlayerID: "bob"}

	symbol, ok := game.SymbolOf("alice")
	require.True(t, ok)
	assert.Equal(t, SymbolX, symbol)

	symbol, ok = game.SymbolOf("bob")
	require.True(t, ok)
	assert.Equal(t, SymbolO, symbol)

	_, ok = game.SymbolOf("carol")
	assert.False(t, ok)

	_, ok = game.SymbolOf("")
	assert.False(t, ok)
	assert.False(t, game.IsParticipant(""))
}

func TestGame_Clone(t *testing.T) {
	t.Run("Empty move log stays empty", func(t *testing.T) {
		// Given: a freshly opened game with an empty, non-nil move log
		game := &Game{ID: "g1", State: Open{}, Moves: []Move{}, CreatorID: "alice"}

		// When: cloning it
		clone := game.Clone()

		// Then: the clone is deeply equal to the source
		assert.True(t, reflect.DeepEqual(game, clone))
		assert.NotNil(t, clone.Moves)
	})

	t.Run("Nil move log stays nil", func(t *testing.T) {
		game := &Game{ID: "g2"}

		assert.Nil(t, game.Clone().Moves)
	})

	t.Run("Clone does not share mutable parts", func(t *testing.T) {
		startedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		game := &Game{
			ID:        "g3",
			State:     InProgress{NextTurn: SymbolO},
			Moves:     []Move{{Position: 4, Symbol: SymbolX, MemberID: "alice"}},
			StartedAt: &startedAt,
		}
		game.Board[4] = SymbolX

		clone := game.Clone()
		clone.Board[0] = SymbolO
		clone.Moves[0].Position = 0
		*clone.StartedAt = startedAt.Add(time.Hour)

		assert.Equal(t, EmptyCell, game.Board[0])
		assert.Equal(t, 4, game.Moves[0].Position)
		assert.True(t, startedAt.Equal(*game.StartedAt))
	})
}

func TestOutcomeFor(t *testing.T) {
	t.Run("Win and loss from each side", func(t *testing.T) {
		// Given: a game won by O
		game := &Game{XPlayerID: "alice", OPlayerID: "bob", State: Finished{Result: ResultOWin}}

		// Then: the outcome depends on the viewer
		assert.Equal(t, OutcomeLoss, OutcomeFor(game, "alice"))
		assert.Equal(t, OutcomeWin, OutcomeFor(game, "bob"))
		assert.Equal(t, OutcomeNone, OutcomeFor(game, "carol"))
	})

	t.Run("Draw for both", func(t *testing.T) {
		game := &Game{XPlayerID: "alice", OPlayerID: "bob", State: Finished{Result: ResultDraw}}

		assert.Equal(t, OutcomeDraw, OutcomeFor(game, "alice"))
		assert.Equal(t, OutcomeDraw, OutcomeFor(game, "bob"))
	})

	t.Run("Closed after finishing still projects the result", func(t *testing.T) {
		game := &Game{XPlayerID: "alice", OPlayerID: "bob", State: Closed{PriorResult: ResultXWin}}

		assert.Equal(t, OutcomeWin, OutcomeFor(game, "alice"))
	})

	t.Run("No outcome while in progress", func(t *testing.T) {
		game := &Game{XPlayerID: "alice", OPlayerID: "bob", State: InProgress{NextTurn: SymbolX}}

		assert.Equal(t, OutcomeNone, OutcomeFor(game, "alice"))
	})
}

func TestGame_JSON(t *testing.T) {
	t.Run("Flat form carries only the fields legal in the state", func(t *testing.T) {
		// Given: a game in progress
		game := Game{ID: "g1", State: InProgress{NextTurn: SymbolX}, CreatorID: "alice"}

		// When: encoding it
		data, err := json.Marshal(game)
		require.NoError(t, err)

		var raw map[string]any
		require.NoError(t, json.Unmarshal(data, &raw))

		// Then: next_turn is present and result is not
		assert.Equal(t, "in_progress", raw["status"])
		assert.Equal(t, "X", raw["next_turn"])
		assert.NotContains(t, raw, "result")
		assert.Equal(t, []any{}, raw["moves"])
	})

	t.Run("Closed game survives a round trip with its prior result", func(t *testing.T) {
		finishedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		game := Game{
			ID:              "g2",
			State:           Closed{PriorResult: ResultDraw},
			Board:           Board{SymbolX, SymbolO, SymbolX, SymbolX, SymbolO, SymbolO, SymbolO, SymbolX, SymbolX},
			RatingProcessed: true,
			FinishedAt:      &finishedAt,
		}

		data, err := json.Marshal(game)
		require.NoError(t, err)

		var decoded Game
		require.NoError(t, json.Unmarshal(data, &decoded))

		assert.Equal(t, Closed{PriorResult: ResultDraw}, decoded.State)
		assert.Equal(t, game.Board, decoded.Board)
		assert.True(t, decoded.RatingProcessed)
		assert.True(t, finishedAt.Equal(*decoded.FinishedAt))
	})

	t.Run("Rejects an unknown status", func(t *testing.T) {
		var decoded Game
		err := json.Unmarshal([]byte(`{"id":"g3","status":"paused"}`), &decoded)

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownGameStatus)
	})
}

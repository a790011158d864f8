package tictactoe

import (
	"time"

	"github.com/rocketscienceinc/tictactoe-ladder/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-ladder/internal/entity"
)

// NewGame opens a game; the creator always plays X.
func NewGame(id, creatorID string, now time.Time) *entity.Game {
	return &entity.Game{
		ID:        id,
		State:     entity.Open{},
		Moves:     []entity.Move{},
		CreatorID: creatorID,
		XPlayerID: creatorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Join seats the opponent as O and starts the game.
func Join(game *entity.Game, memberID string, now time.Time) error {
	if !game.IsOpen() {
		return apperror.ErrGameIsNotOpen
	}

	if memberID == game.CreatorID {
		return apperror.ErrCannotJoinOwnGame
	}

	if game.OpponentID != "" {
		return apperror.ErrOpponentTaken
	}

	game.OpponentID = memberID
	game.OPlayerID = memberID
	game.State = entity.InProgress{NextTurn: entity.SymbolX}
	game.StartedAt = &now
	game.UpdatedAt = now

	return nil
}

// MakeTurn applies a move and reports whether it finished the game.
// The game is left untouched when an error is returned.
func MakeTurn(game *entity.Game, memberID string, cell int, now time.Time) (bool, error) {
	if err := validateMove(game, memberID, cell); err != nil {
		return false, err
	}

	symbol, _ := game.SymbolOf(memberID)

	game.Board[cell] = symbol
	game.Moves = append(game.Moves, entity.Move{
		Position: cell,
		Symbol:   symbol,
		MemberID: memberID,
		PlayedAt: now,
	})
	game.UpdatedAt = now

	return updateGameStatus(game, symbol, now), nil
}

// validateMove - checks if the move is valid. A repeated submission of the same move reports
// the occupied cell rather than the turn.
func validateMove(game *entity.Game, memberID string, cell int) error {
	nextTurn, ok := game.NextTurn()
	if !ok {
		return apperror.ErrGameIsNotStarted
	}

	symbol, ok := game.SymbolOf(memberID)
	if !ok {
		return apperror.ErrNotParticipant
	}

	if cell < 0 || cell >= len(game.Board) {
		return apperror.ErrInvalidCell
	}

	if game.Board[cell] != entity.EmptyCell {
		return apperror.ErrCellOccupied
	}

	if symbol != nextTurn {
		return apperror.ErrNotYourTurn
	}

	return nil
}

// updateGameStatus - checks the game status after a move. A completed line wins over a full board.
func updateGameStatus(game *entity.Game, player entity.Symbol, now time.Time) bool {
	if winner, ok := game.Board.EvaluateWinner(); ok {
		finish(game, entity.ResultForWinner(winner), now)
		return true
	}

	if game.Board.IsFull() {
		finish(game, entity.ResultDraw, now)
		return true
	}

	game.State = entity.InProgress{NextTurn: player.Other()}

	return false
}

func finish(game *entity.Game, result entity.Result, now time.Time) {
	game.State = entity.Finished{Result: result}
	game.FinishedAt = &now
}

// Close ends an open or finished game on the creator's request. A finished game keeps its result.
func Close(game *entity.Game, memberID string, now time.Time) error {
	if memberID != game.CreatorID {
		return apperror.ErrNotCreator
	}

	switch state := game.State.(type) {
	case entity.Open:
		game.State = entity.Closed{}
	case entity.Finished:
		game.State = entity.Closed{PriorResult: state.Result}
	default:
		return apperror.ErrGameCannotBeClosed
	}

	game.UpdatedAt = now

	return nil
}

// Rematch starts a new game between the same pair with the symbols swapped.
func Rematch(game *entity.Game, requesterID, newID string, now time.Time) (*entity.Game, error) {
	if !game.IsFinished() {
		return nil, apperror.ErrGameNotFinished
	}

	if !game.IsParticipant(requesterID) {
		return nil, apperror.ErrNotParticipant
	}

	if game.CreatorID == "" || game.OpponentID == "" || game.XPlayerID == "" || game.OPlayerID == "" {
		return nil, apperror.ErrIncompleteRoles
	}

	return &entity.Game{
		ID:         newID,
		State:      entity.InProgress{NextTurn: entity.SymbolX},
		Moves:      []entity.Move{},
		CreatorID:  game.CreatorID,
		OpponentID: game.OpponentID,
		XPlayerID:  game.OPlayerID,
		OPlayerID:  game.XPlayerID,
		CreatedAt:  now,
		UpdatedAt:  now,
		StartedAt:  &now,
	}, nil
}

package entity

import (
	"errors"
	"fmt"
)

type Symbol string

const (
	SymbolX Symbol = "X"
	SymbolO Symbol = "O"

	EmptyCell Symbol = ""
)

var ErrInvalidReplay = errors.New("move log does not replay onto an empty board")

var WinCombos = [8][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// Other returns the opposing symbol.
func (that Symbol) Other() Symbol {
	if that == SymbolX {
		return SymbolO
	}
	return SymbolX
}

func (that Symbol) Valid() bool {
	return that == SymbolX || that == SymbolO
}

// Board is a 3x3 grid addressed 0..8 row by row.
type Board [9]Symbol

// EvaluateWinner returns the symbol that occupies a complete line, if any.
func (that Board) EvaluateWinner() (Symbol, bool) {
	for _, combo := range WinCombos {
		a, b, c := that[combo[0]], that[combo[1]], that[combo[2]]
		if a != EmptyCell && a == b && b == c {
			return a, true
		}
	}

	return EmptyCell, false
}

func (that Board) IsFull() bool {
	for _, cell := range that {
		if cell == EmptyCell {
			return false
		}
	}

	return true
}

// Filled counts non-empty cells.
func (that Board) Filled() int {
	filled := 0
	for _, cell := range that {
		if cell != EmptyCell {
			filled++
		}
	}

	return filled
}

// ReplayMoves rebuilds a board from a move log.
func ReplayMoves(moves []Move) (Board, error) {
	var board Board

	for i, move := range moves {
		if move.Position < 0 || move.Position >= len(board) {
			return Board{}, fmt.Errorf("%w: move %d has position %d", ErrInvalidReplay, i, move.Position)
		}

		if board[move.Position] != EmptyCell {
			return Board{}, fmt.Errorf("%w: move %d targets occupied cell %d", ErrInvalidReplay, i, move.Position)
		}

		board[move.Position] = move.Symbol
	}

	return board, nil
}

package entity

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"
)

type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusFinished   Status = "finished"
	StatusClosed     Status = "closed"
)

type Result string

const (
	ResultXWin Result = "x_win"
	ResultOWin Result = "o_win"
	ResultDraw Result = "draw"
)

var ErrUnknownGameStatus = errors.New("unknown game status")

// ResultForWinner maps a winning symbol onto a result.
func ResultForWinner(symbol Symbol) Result {
	if symbol == SymbolX {
		return ResultXWin
	}
	return ResultOWin
}

// State is the lifecycle state of a game. Each variant carries only the data legal in it.
type State interface {
	Status() Status
	isState()
}

type Open struct{}

type InProgress struct {
	NextTurn Symbol
}

type Finished struct {
	Result Result
}

// Closed keeps the result of a game closed after finishing; PriorResult is empty for games closed while open.
type Closed struct {
	PriorResult Result
}

func (Open) Status() Status       { return StatusOpen }
func (InProgress) Status() Status { return StatusInProgress }
func (Finished) Status() Status   { return StatusFinished }
func (Closed) Status() Status     { return StatusClosed }

func (Open) isState()       {}
func (InProgress) isState() {}
func (Finished) isState()   {}
func (Closed) isState()     {}

// Move is one entry of the append-only move log.
type Move struct {
	Position int       `json:"position"`
	Symbol   Symbol    `json:"symbol"`
	MemberID string    `json:"member_id"`
	PlayedAt time.Time `json:"played_at"`
}

type Game struct {
	ID    string
	State State
	Board Board
	Moves []Move

	CreatorID  string
	OpponentID string
	XPlayerID  string
	OPlayerID  string

	RatingProcessed bool

	CreatedAt  time.Time
	UpdatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

func (that *Game) Status() Status {
	if that.State == nil {
		return StatusOpen
	}
	return that.State.Status()
}

// NextTurn reports whose move is expected; defined only while in progress.
func (that *Game) NextTurn() (Symbol, bool) {
	state, ok := that.State.(InProgress)
	if !ok {
		return EmptyCell, false
	}
	return state.NextTurn, true
}

// Result is defined only while finished.
func (that *Game) Result() (Result, bool) {
	state, ok := that.State.(Finished)
	if !ok {
		return "", false
	}
	return state.Result, true
}

// FinalResult is the result of a finished game or of a game closed after finishing.
func (that *Game) FinalResult() (Result, bool) {
	switch state := that.State.(type) {
	case Finished:
		return state.Result, true
	case Closed:
		return state.PriorResult, state.PriorResult != ""
	default:
		return "", false
	}
}

func (that *Game) IsOpen() bool {
	return that.Status() == StatusOpen
}

func (that *Game) IsInProgress() bool {
	return that.Status() == StatusInProgress
}

func (that *Game) IsFinished() bool {
	return that.Status() == StatusFinished
}

func (that *Game) IsParticipant(memberID string) bool {
	if memberID == "" {
		return false
	}
	return memberID == that.XPlayerID || memberID == that.OPlayerID
}

// SymbolOf returns the symbol assigned to a member in this game.
func (that *Game) SymbolOf(memberID string) (Symbol, bool) {
	switch {
	case memberID == "":
		return EmptyCell, false
	case memberID == that.XPlayerID:
		return SymbolX, true
	case memberID == that.OPlayerID:
		return SymbolO, true
	default:
		return EmptyCell, false
	}
}

// PlayerFor returns the member id holding a symbol.
func (that *Game) PlayerFor(symbol Symbol) string {
	if symbol == SymbolX {
		return that.XPlayerID
	}
	return that.OPlayerID
}

func (that *Game) Clone() *Game {
	clone := *that
	clone.Moves = slices.Clone(that.Moves)

	if that.StartedAt != nil {
		startedAt := *that.StartedAt
		clone.StartedAt = &startedAt
	}

	if that.FinishedAt != nil {
		finishedAt := *that.FinishedAt
		clone.FinishedAt = &finishedAt
	}

	return &clone
}

type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
	OutcomeDraw Outcome = "draw"
	OutcomeNone Outcome = ""
)

// OutcomeFor projects a game's result onto a viewer. Non-participants and unfinished games get OutcomeNone.
func OutcomeFor(game *Game, viewerID string) Outcome {
	symbol, ok := game.SymbolOf(viewerID)
	if !ok {
		return OutcomeNone
	}

	result, ok := game.FinalResult()
	if !ok {
		return OutcomeNone
	}

	switch {
	case result == ResultDraw:
		return OutcomeDraw
	case result == ResultForWinner(symbol):
		return OutcomeWin
	default:
		return OutcomeLoss
	}
}

// gameJSON is the flat wire and storage form of a game.
type gameJSON struct {
	ID              string     `json:"id"`
	Status          Status     `json:"status"`
	Board           Board      `json:"board"`
	NextTurn        Symbol     `json:"next_turn,omitempty"`
	Result          Result     `json:"result,omitempty"`
	PriorResult     Result     `json:"prior_result,omitempty"`
	Moves           []Move     `json:"moves"`
	CreatorID       string     `json:"creator_id"`
	OpponentID      string     `json:"opponent_id,omitempty"`
	XPlayerID       string     `json:"x_player_id,omitempty"`
	OPlayerID       string     `json:"o_player_id,omitempty"`
	RatingProcessed bool       `json:"rating_processed"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}

// StateFields flattens the state into status, next turn, result and prior result.
func StateFields(state State) (Status, Symbol, Result, Result) {
	switch s := state.(type) {
	case InProgress:
		return StatusInProgress, s.NextTurn, "", ""
	case Finished:
		return StatusFinished, EmptyCell, s.Result, ""
	case Closed:
		return StatusClosed, EmptyCell, "", s.PriorResult
	default:
		return StatusOpen, EmptyCell, "", ""
	}
}

// StateFromFields is the inverse of StateFields.
func StateFromFields(status Status, nextTurn Symbol, result, priorResult Result) (State, error) {
	switch status {
	case StatusOpen:
		return Open{}, nil
	case StatusInProgress:
		if !nextTurn.Valid() {
			return nil, fmt.Errorf("in progress game has invalid next turn %q", nextTurn)
		}
		return InProgress{NextTurn: nextTurn}, nil
	case StatusFinished:
		if result == "" {
			return nil, errors.New("finished game has no result")
		}
		return Finished{Result: result}, nil
	case StatusClosed:
		return Closed{PriorResult: priorResult}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownGameStatus, status)
	}
}

func (that Game) MarshalJSON() ([]byte, error) {
	status, nextTurn, result, priorResult := StateFields(that.State)

	moves := that.Moves
	if moves == nil {
		moves = []Move{}
	}

	return json.Marshal(gameJSON{
		ID:              that.ID,
		Status:          status,
		Board:           that.Board,
		NextTurn:        nextTurn,
		Result:          result,
		PriorResult:     priorResult,
		Moves:           moves,
		CreatorID:       that.CreatorID,
		OpponentID:      that.OpponentID,
		XPlayerID:       that.XPlayerID,
		OPlayerID:       that.OPlayerID,
		RatingProcessed: that.RatingProcessed,
		CreatedAt:       that.CreatedAt,
		UpdatedAt:       that.UpdatedAt,
		StartedAt:       that.StartedAt,
		FinishedAt:      that.FinishedAt,
	})
}

func (that *Game) UnmarshalJSON(data []byte) error {
	var raw gameJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	state, err := StateFromFields(raw.Status, raw.NextTurn, raw.Result, raw.PriorResult)
	if err != nil {
		return fmt.Errorf("game %s: %w", raw.ID, err)
	}

	*that = Game{
		ID:              raw.ID,
		State:           state,
		Board:           raw.Board,
		Moves:           raw.Moves,
		CreatorID:       raw.CreatorID,
		OpponentID:      raw.OpponentID,
		XPlayerID:       raw.XPlayerID,
		OPlayerID:       raw.OPlayerID,
		RatingProcessed: raw.RatingProcessed,
		CreatedAt:       raw.CreatedAt,
		UpdatedAt:       raw.UpdatedAt,
		StartedAt:       raw.StartedAt,
		FinishedAt:      raw.FinishedAt,
	}

	return nil
}

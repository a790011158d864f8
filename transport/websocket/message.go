package websocket

import (
	"encoding/json"

	"github.com/rocketscienceinc/tictactoe-ladder/internal/entity"
)

const (
	actionGameGet     = "game:get"
	actionGameNew     = "game:new"
	actionGameJoin    = "game:join"
	actionGameTurn    = "game:turn"
	actionGameClose   = "game:close"
	actionGameRematch = "game:rematch"
	actionGameUpdate  = "game:update"
	actionError       = "error"
)

// Message represents a WebSocket message with an action type and a payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Request is the payload of client actions.
type Request struct {
	GameID   string `json:"game_id"`
	Position *int   `json:"position,omitempty"`
}

// Response is the payload of replies and pushes.
type Response struct {
	Game  *entity.Game `json:"game,omitempty"`
	Error string       `json:"error,omitempty"`
	Code  string       `json:"code,omitempty"`
}

func encode(action string, payload Response) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return json.Marshal(Message{Action: action, Payload: body})
}

package websocket

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rocketscienceinc/tictactoe-ladder/internal/entity"
)

// Hub tracks live connections per member and pushes game updates to the participants.
type Hub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:  logger.With("component", "hub"),
		clients: make(map[string]map[*client]struct{}),
	}
}

func (that *Hub) register(c *client) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.clients[c.memberID]; !ok {
		that.clients[c.memberID] = make(map[*client]struct{})
	}

	that.clients[c.memberID][c] = struct{}{}
}

func (that *Hub) unregister(c *client) {
	that.mu.Lock()
	defer that.mu.Unlock()

	conns, ok := that.clients[c.memberID]
	if !ok {
		return
	}

	if _, ok = conns[c]; !ok {
		return
	}

	delete(conns, c)
	c.close()

	if len(conns) == 0 {
		delete(that.clients, c.memberID)
	}
}

// Connections is the number of open connections of a member.
func (that *Hub) Connections(memberID string) int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.clients[memberID])
}

// GameUpdated pushes the committed game to every connection of its participants.
// A slow connection misses the push rather than blocking the caller.
func (that *Hub) GameUpdated(_ context.Context, game *entity.Game) {
	log := that.logger.With("method", "GameUpdated", "gameID", game.ID)

	msg, err := encode(actionGameUpdate, Response{Game: game})
	if err != nil {
		log.Error("failed to encode game update", "error", err)
		return
	}

	that.mu.RLock()
	defer that.mu.RUnlock()

	for _, memberID := range recipients(game) {
		for c := range that.clients[memberID] {
			if !c.trySend(msg) {
				log.Warn("dropped game update for slow connection", "memberID", memberID)
			}
		}
	}
}

func recipients(game *entity.Game) []string {
	seen := make(map[string]struct{}, 4)
	ids := make([]string, 0, 4)

	for _, id := range []string{game.CreatorID, game.OpponentID, game.XPlayerID, game.OPlayerID} {
		if id == "" {
			continue
		}

		if _, ok := seen[id]; ok {
			continue
		}

		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	return ids
}

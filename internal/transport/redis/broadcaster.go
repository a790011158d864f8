// Package redis fans committed game updates out to every instance through Redis pub/sub.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/tictactoe-ladder/internal/entity"
)

const DefaultChannel = "games:updates"

var ErrSubscriptionClosed = errors.New("game updates subscription closed")

type notifier interface {
	GameUpdated(ctx context.Context, game *entity.Game)
}

// Broadcaster publishes game updates and relays the ones it receives to a local notifier.
type Broadcaster struct {
	logger  *slog.Logger
	client  *redis.Client
	channel string
}

func New(logger *slog.Logger, client *redis.Client, channel string) *Broadcaster {
	if channel == "" {
		channel = DefaultChannel
	}

	return &Broadcaster{
		logger:  logger.With("component", "broadcaster"),
		client:  client,
		channel: channel,
	}
}

// GameUpdated publishes the game. A failed publish is logged, the commit it reports has already happened.
func (that *Broadcaster) GameUpdated(ctx context.Context, game *entity.Game) {
	log := that.logger.With("method", "GameUpdated", "gameID", game.ID)

	payload, err := json.Marshal(game)
	if err != nil {
		log.Error("failed to marshal game", "error", err)
		return
	}

	if err = that.client.Publish(ctx, that.channel, payload).Err(); err != nil {
		log.Error("failed to publish game update", "error", err)
	}
}

// Relay forwards published games to local until ctx is done.
// ready, when not nil, is closed once the subscription is confirmed.
func (that *Broadcaster) Relay(ctx context.Context, local notifier, ready chan<- struct{}) error {
	log := that.logger.With("method", "Relay")

	sub := that.client.Subscribe(ctx, that.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}

		return fmt.Errorf("failed to subscribe to %s: %w", that.channel, err)
	}

	if ready != nil {
		close(ready)
	}

	messages := sub.Channel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return ErrSubscriptionClosed
			}

			var game entity.Game
			if err := json.Unmarshal([]byte(msg.Payload), &game); err != nil {
				log.Warn("skipping malformed game update", "error", err)
				continue
			}

			local.GameUpdated(ctx, &game)
		}
	}
}

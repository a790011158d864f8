package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/tictactoe-ladder/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-ladder/internal/entity"
)

func (that *RedisStore) CreateGame(ctx context.Context, game *entity.Game) error {
	_, err := that.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return writeGame(ctx, pipe, game)
	})

	return unavailable(err, "failed to create game")
}

func (that *RedisStore) GetGame(ctx context.Context, id string) (*entity.Game, error) {
	return readGame(ctx, that.client, id)
}

func (that *RedisStore) ListOpenGames(ctx context.Context) ([]*entity.Game, error) {
	ids, err := that.client.ZRevRange(ctx, openGamesKey, 0, -1).Result()
	if err != nil {
		return nil, unavailable(err, "failed to list open games")
	}

	games, err := that.loadGames(ctx, ids)
	if err != nil {
		return nil, err
	}

	open := make([]*entity.Game, 0, len(games))
	for _, game := range games {
		if isOpenListing(game) {
			open = append(open, game)
		}
	}

	return open, nil
}

func (that *RedisStore) ListMemberGames(ctx context.Context, memberID string, limit, offset int) ([]*entity.Game, error) {
	if offset < 0 {
		offset = 0
	}

	stop := int64(-1)
	if limit > 0 {
		stop = int64(offset + limit - 1)
	}

	ids, err := that.client.ZRevRange(ctx, memberGamesKey(memberID), int64(offset), stop).Result()
	if err != nil {
		return nil, unavailable(err, "failed to list member games")
	}

	return that.loadGames(ctx, ids)
}

// loadGames fetches games by id keeping the order of ids; ids whose record vanished are skipped.
func (that *RedisStore) loadGames(ctx context.Context, ids []string) ([]*entity.Game, error) {
	games := make([]*entity.Game, 0, len(ids))
	if len(ids) == 0 {
		return games, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, gameKey(id))
	}

	values, err := that.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, unavailable(err, "failed to load games")
	}

	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}

		var game entity.Game
		if err = json.Unmarshal([]byte(raw), &game); err != nil {
			return nil, unavailable(err, "failed to unmarshal game")
		}
		games = append(games, &game)
	}

	return games, nil
}

func readGame(ctx context.Context, client redis.Cmdable, id string) (*entity.Game, error) {
	response, err := client.Get(ctx, gameKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, apperror.ErrGameNotFound
	}

	if err != nil {
		return nil, unavailable(err, "failed to get game by id")
	}

	var game entity.Game
	if err = json.Unmarshal([]byte(response), &game); err != nil {
		return nil, unavailable(err, "failed to unmarshal game")
	}

	return &game, nil
}

// writeGame queues the record and keeps the open listing and per-member history in step with it.
func writeGame(ctx context.Context, pipe redis.Pipeliner, game *entity.Game) error {
	gameJSON, err := json.Marshal(game)
	if err != nil {
		return fmt.Errorf("could not marshal game: %w", err)
	}

	pipe.Set(ctx, gameKey(game.ID), gameJSON, 0)

	score := float64(game.CreatedAt.UnixMilli())

	if isOpenListing(game) {
		pipe.ZAdd(ctx, openGamesKey, redis.Z{Score: score, Member: game.ID})
	} else {
		pipe.ZRem(ctx, openGamesKey, game.ID)
	}

	for _, memberID := range []string{game.CreatorID, game.OpponentID} {
		if memberID != "" {
			pipe.ZAdd(ctx, memberGamesKey(memberID), redis.Z{Score: score, Member: game.ID})
		}
	}

	return nil
}

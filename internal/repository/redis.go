package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/tictactoe-ladder/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-ladder/internal/entity"
)

const (
	openGamesKey   = "games:open"
	leaderboardKey = "members:rating"
)

func gameKey(id string) string {
	return "game:" + id
}

func memberKey(id string) string {
	return "member:" + id
}

func memberGamesKey(id string) string {
	return "member:" + id + ":games"
}

func usernameKey(username string) string {
	return "username:" + normalizeUsername(username)
}

func revokedTokenKey(id string) string {
	return "token:revoked:" + id
}

// leaderboardEntry sorts members of equal rating by username; the id follows the last NUL byte.
func leaderboardEntry(member *entity.Member) string {
	return normalizeUsername(member.Username) + "\x00" + member.ID
}

func memberIDFromEntry(entry string) string {
	return entry[strings.LastIndexByte(entry, 0)+1:]
}

// RedisStore keeps games and members as JSON records. Atomic units use WATCH/MULTI/EXEC on the
// game key and every member key read inside the unit.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
	}
}

func (that *RedisStore) Atomic(ctx context.Context, gameID string, fn TxFunc) error {
	var fnErr error

	txf := func(rtx *redis.Tx) error {
		tx := &redisTx{rtx: rtx}

		if fnErr = fn(ctx, tx); fnErr != nil {
			return fnErr
		}

		if len(tx.games) == 0 && len(tx.members) == 0 {
			return nil
		}

		_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, game := range tx.games {
				if err := writeGame(ctx, pipe, game); err != nil {
					return err
				}
			}

			for _, member := range tx.members {
				if err := writeMember(ctx, pipe, member); err != nil {
					return err
				}
			}

			return nil
		})

		return err
	}

	err := that.client.Watch(ctx, txf, gameKey(gameID))
	switch {
	case err == nil:
		return nil
	case fnErr != nil:
		return fnErr
	case errors.Is(err, redis.TxFailedErr):
		return apperror.ErrConcurrentUpdate
	default:
		return unavailable(err, "atomic unit failed")
	}
}

func (that *RedisStore) Close() error {
	return that.client.Close()
}

// redisTx reads through the watched connection and buffers writes for the MULTI block.
type redisTx struct {
	rtx *redis.Tx

	games   []*entity.Game
	members []*entity.Member
}

func (that *redisTx) GetGame(ctx context.Context, id string) (*entity.Game, error) {
	for i := len(that.games) - 1; i >= 0; i-- {
		if that.games[i].ID == id {
			return that.games[i].Clone(), nil
		}
	}

	if err := that.rtx.Watch(ctx, gameKey(id)).Err(); err != nil {
		return nil, unavailable(err, "failed to watch game")
	}

	return readGame(ctx, that.rtx, id)
}

func (that *redisTx) GetMembers(ctx context.Context, ids ...string) ([]*entity.Member, error) {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, memberKey(id))
	}

	if err := that.rtx.Watch(ctx, keys...).Err(); err != nil {
		return nil, unavailable(err, "failed to watch members")
	}

	members := make([]*entity.Member, 0, len(ids))
	for _, id := range ids {
		member, err := readMember(ctx, that.rtx, id)
		if err != nil {
			return nil, err
		}
		members = append(members, member)
	}

	return members, nil
}

func (that *redisTx) SaveGame(_ context.Context, game *entity.Game) error {
	that.games = append(that.games, game.Clone())
	return nil
}

func (that *redisTx) SaveMembers(_ context.Context, members ...*entity.Member) error {
	for _, member := range members {
		that.members = append(that.members, member.Clone())
	}
	return nil
}

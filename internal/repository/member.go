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

// memberRecord is the stored form of a member; unlike the API form it carries the password hash.
type memberRecord struct {
	entity.Member
	PasswordHash string `json:"password_hash"`
}

func (that *RedisStore) CreateMember(ctx context.Context, member *entity.Member) error {
	claimed, err := that.client.SetNX(ctx, usernameKey(member.Username), member.ID, 0).Result()
	if err != nil {
		return unavailable(err, "failed to claim username")
	}

	if !claimed {
		return apperror.ErrUsernameTaken
	}

	_, err = that.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return writeMember(ctx, pipe, member)
	})
	if err != nil {
		that.client.Del(context.WithoutCancel(ctx), usernameKey(member.Username))
		return unavailable(err, "failed to create member")
	}

	return nil
}

func (that *RedisStore) GetMember(ctx context.Context, id string) (*entity.Member, error) {
	return readMember(ctx, that.client, id)
}

func (that *RedisStore) GetMemberByUsername(ctx context.Context, username string) (*entity.Member, error) {
	id, err := that.client.Get(ctx, usernameKey(username)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, apperror.ErrMemberNotFound
	}

	if err != nil {
		return nil, unavailable(err, "failed to get member by username")
	}

	return readMember(ctx, that.client, id)
}

func (that *RedisStore) UpdateMember(ctx context.Context, id string, fn MemberUpdate) (*entity.Member, error) {
	var (
		updated *entity.Member
		fnErr   error
	)

	txf := func(rtx *redis.Tx) error {
		member, err := readMember(ctx, rtx, id)
		if err != nil {
			return err
		}

		if fnErr = fn(member); fnErr != nil {
			return fnErr
		}

		_, err = rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return writeMember(ctx, pipe, member)
		})
		if err != nil {
			return err
		}

		updated = member

		return nil
	}

	err := that.client.Watch(ctx, txf, memberKey(id))
	switch {
	case err == nil:
		return updated, nil
	case fnErr != nil:
		return nil, fnErr
	case errors.Is(err, redis.TxFailedErr):
		return nil, apperror.ErrConcurrentUpdate
	default:
		return nil, unavailable(err, "failed to update member")
	}
}

// ListMembers reads the leaderboard sorted set. Scores are negated ratings so that ascending
// order is rating descending with ties broken by username.
func (that *RedisStore) ListMembers(ctx context.Context, limit int) ([]*entity.Member, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	entries, err := that.client.ZRange(ctx, leaderboardKey, 0, stop).Result()
	if err != nil {
		return nil, unavailable(err, "failed to list members")
	}

	members := make([]*entity.Member, 0, len(entries))
	if len(entries) == 0 {
		return members, nil
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		keys = append(keys, memberKey(memberIDFromEntry(entry)))
	}

	values, err := that.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, unavailable(err, "failed to load members")
	}

	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}

		member, err := decodeMember(raw)
		if err != nil {
			return nil, err
		}
		members = append(members, member)
	}

	return members, nil
}

func readMember(ctx context.Context, client redis.Cmdable, id string) (*entity.Member, error) {
	response, err := client.Get(ctx, memberKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, apperror.ErrMemberNotFound
	}

	if err != nil {
		return nil, unavailable(err, "failed to get member by id")
	}

	return decodeMember(response)
}

func decodeMember(raw string) (*entity.Member, error) {
	var record memberRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, unavailable(err, "failed to unmarshal member")
	}

	member := record.Member
	member.PasswordHash = record.PasswordHash

	return &member, nil
}

func writeMember(ctx context.Context, pipe redis.Pipeliner, member *entity.Member) error {
	memberJSON, err := json.Marshal(memberRecord{Member: *member, PasswordHash: member.PasswordHash})
	if err != nil {
		return fmt.Errorf("failed to marshal member: %w", err)
	}

	pipe.Set(ctx, memberKey(member.ID), memberJSON, 0)
	pipe.ZAdd(ctx, leaderboardKey, redis.Z{Score: -float64(member.Rating), Member: leaderboardEntry(member)})

	return nil
}

package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rocketscienceinc/tictactoe-ladder/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-ladder/internal/entity"
)

// Tx is one atomic unit of work scoped to a game. Reads see the last committed state;
// writes become visible together when the unit commits, or not at all.
type Tx interface {
	GetGame(ctx context.Context, id string) (*entity.Game, error)
	// GetMembers returns the members in the requested order.
	GetMembers(ctx context.Context, ids ...string) ([]*entity.Member, error)

	SaveGame(ctx context.Context, game *entity.Game) error
	SaveMembers(ctx context.Context, members ...*entity.Member) error
}

// TxFunc is run inside Store.Atomic. Returning an error discards every write made through tx.
type TxFunc func(ctx context.Context, tx Tx) error

// MemberUpdate mutates a loaded member; returning an error aborts the update.
type MemberUpdate func(member *entity.Member) error

// Store is the match repository. Implementations report lost optimistic races as
// apperror.ErrConcurrentUpdate and driver failures as apperror.ErrUnavailable.
type Store interface {
	Atomic(ctx context.Context, gameID string, fn TxFunc) error

	CreateGame(ctx context.Context, game *entity.Game) error
	GetGame(ctx context.Context, id string) (*entity.Game, error)
	ListOpenGames(ctx context.Context) ([]*entity.Game, error)
	ListMemberGames(ctx context.Context, memberID string, limit, offset int) ([]*entity.Game, error)

	CreateMember(ctx context.Context, member *entity.Member) error
	GetMember(ctx context.Context, id string) (*entity.Member, error)
	GetMemberByUsername(ctx context.Context, username string) (*entity.Member, error)
	UpdateMember(ctx context.Context, id string, fn MemberUpdate) (*entity.Member, error)
	ListMembers(ctx context.Context, limit int) ([]*entity.Member, error)

	// RevokeToken remembers a token id until expiresAt; revoking an expired token is a no-op.
	RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)

	Close() error
}

// unavailable tags a driver failure. Errors that already carry a kind pass through untouched.
func unavailable(err error, msg string) error {
	if err == nil {
		return nil
	}

	if apperror.KindOf(err) != nil {
		return err
	}

	return fmt.Errorf("%w: %s: %w", apperror.ErrUnavailable, msg, err)
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// sortLeaderboard orders by rating descending, then username.
func sortLeaderboard(members []*entity.Member) {
	sort.SliceStable(members, func(i, j int) bool {
		if members[i].Rating != members[j].Rating {
			return members[i].Rating > members[j].Rating
		}
		return normalizeUsername(members[i].Username) < normalizeUsername(members[j].Username)
	})
}

// sortNewestFirst orders games by creation time descending, then id.
func sortNewestFirst(games []*entity.Game) {
	sort.SliceStable(games, func(i, j int) bool {
		if !games[i].CreatedAt.Equal(games[j].CreatedAt) {
			return games[i].CreatedAt.After(games[j].CreatedAt)
		}
		return games[i].ID > games[j].ID
	})
}

// page applies limit and offset to an already ordered slice. A non-positive limit means no limit.
func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}

	if offset >= len(items) {
		return []T{}
	}

	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}

	return items
}

func isOpenListing(game *entity.Game) bool {
	return game.IsOpen() && game.OpponentID == ""
}

package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rocketscienceinc/tictactoe-ladder/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-ladder/internal/entity"
	"github.com/rocketscienceinc/tictactoe-ladder/internal/pkg"
	"github.com/rocketscienceinc/tictactoe-ladder/internal/rating"
	"github.com/rocketscienceinc/tictactoe-ladder/internal/repository"
	"github.com/rocketscienceinc/tictactoe-ladder/internal/tictactoe"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type GameUseCase interface {
	CreateGame(ctx context.Context, creatorID string) (*entity.Game, error)
	ListOpenGames(ctx context.Context) ([]*entity.Game, error)
	GetGame(ctx context.Context, gameID, requesterID string) (*entity.Game, error)
	ListMemberGames(ctx context.Context, memberID string, limit, offset int) ([]*entity.Game, error)

	JoinGame(ctx context.Context, gameID, requesterID string) (*entity.Game, error)
	ApplyMove(ctx context.Context, gameID, requesterID string, position int) (*entity.Game, error)
	CloseGame(ctx context.Context, gameID, requesterID string) (*entity.Game, error)
	RequestRematch(ctx context.Context, gameID, requesterID string) (*entity.Game, error)
}

type gameStore interface {
	Atomic(ctx context.Context, gameID string, fn repository.TxFunc) error

	CreateGame(ctx context.Context, game *entity.Game) error
	GetGame(ctx context.Context, id string) (*entity.Game, error)
	ListOpenGames(ctx context.Context) ([]*entity.Game, error)
	ListMemberGames(ctx context.Context, memberID string, limit, offset int) ([]*entity.Game, error)
}

// Notifier is told about every committed change of a game.
type Notifier interface {
	GameUpdated(ctx context.Context, game *entity.Game)
}

type nopNotifier struct{}

func (nopNotifier) GameUpdated(context.Context, *entity.Game) {}

type GameConfig struct {
	KFactor           float64
	MaxCommitAttempts int
}

// transition mutates a freshly loaded game inside an atomic unit and returns the game to report.
type transition func(ctx context.Context, tx repository.Tx, game *entity.Game, now time.Time) (*entity.Game, error)

type gameUseCase struct {
	logger   *slog.Logger
	store    gameStore
	locks    *pkg.KeyLock
	notifier Notifier

	kFactor     float64
	maxAttempts int

	now   func() time.Time
	newID func() string
}

func NewGameUseCase(logger *slog.Logger, store gameStore, locks *pkg.KeyLock, notifier Notifier, conf GameConfig) GameUseCase {
	if notifier == nil {
		notifier = nopNotifier{}
	}

	if conf.KFactor <= 0 {
		conf.KFactor = rating.DefaultKFactor
	}

	if conf.MaxCommitAttempts <= 0 {
		conf.MaxCommitAttempts = defaultMaxCommitAttempts
	}

	return &gameUseCase{
		logger:      logger.With("component", "game_usecase"),
		store:       store,
		locks:       locks,
		notifier:    notifier,
		kFactor:     conf.KFactor,
		maxAttempts: conf.MaxCommitAttempts,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       pkg.NewID,
	}
}

func (that *gameUseCase) CreateGame(ctx context.Context, creatorID string) (*entity.Game, error) {
	game := tictactoe.NewGame(that.newID(), creatorID, that.now())

	if err := that.store.CreateGame(ctx, game); err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}

	that.logger.Info("game created", "game_id", game.ID, "creator_id", creatorID)

	return game, nil
}

func (that *gameUseCase) ListOpenGames(ctx context.Context) ([]*entity.Game, error) {
	games, err := that.store.ListOpenGames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list open games: %w", err)
	}

	return games, nil
}

// GetGame returns an open game to anyone and any other game to its participants only.
func (that *gameUseCase) GetGame(ctx context.Context, gameID, requesterID string) (*entity.Game, error) {
	game, err := that.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get game by id: %w", err)
	}

	if !game.IsOpen() && !game.IsParticipant(requesterID) {
		return nil, apperror.ErrNotParticipant
	}

	return game, nil
}

func (that *gameUseCase) ListMemberGames(ctx context.Context, memberID string, limit, offset int) ([]*entity.Game, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	limit = min(limit, maxHistoryLimit)
	offset = max(offset, 0)

	games, err := that.store.ListMemberGames(ctx, memberID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list member games: %w", err)
	}

	return games, nil
}

func (that *gameUseCase) JoinGame(ctx context.Context, gameID, requesterID string) (*entity.Game, error) {
	game, err := that.mutate(ctx, gameID, func(ctx context.Context, tx repository.Tx, game *entity.Game, now time.Time) (*entity.Game, error) {
		if err := tictactoe.Join(game, requesterID, now); err != nil {
			return nil, err
		}

		return game, tx.SaveGame(ctx, game)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to join game: %w", err)
	}

	that.logger.Info("game joined", "game_id", gameID, "member_id", requesterID)
	that.notifier.GameUpdated(context.WithoutCancel(ctx), game)

	return game, nil
}

// ApplyMove plays one cell. The move that finishes the game also settles both players'
// ratings in the same atomic unit.
func (that *gameUseCase) ApplyMove(ctx context.Context, gameID, requesterID string, position int) (*entity.Game, error) {
	game, err := that.mutate(ctx, gameID, func(ctx context.Context, tx repository.Tx, game *entity.Game, now time.Time) (*entity.Game, error) {
		finished, err := tictactoe.MakeTurn(game, requesterID, position, now)
		if err != nil {
			return nil, err
		}

		if finished {
			if err = that.settleRating(ctx, tx, game, now); err != nil {
				return nil, err
			}
		}

		return game, tx.SaveGame(ctx, game)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to make turn: %w", err)
	}

	that.logger.Debug("move applied", "game_id", gameID, "member_id", requesterID, "position", position)
	that.notifier.GameUpdated(context.WithoutCancel(ctx), game)

	return game, nil
}

func (that *gameUseCase) CloseGame(ctx context.Context, gameID, requesterID string) (*entity.Game, error) {
	game, err := that.mutate(ctx, gameID, func(ctx context.Context, tx repository.Tx, game *entity.Game, now time.Time) (*entity.Game, error) {
		if err := tictactoe.Close(game, requesterID, now); err != nil {
			return nil, err
		}

		return game, tx.SaveGame(ctx, game)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to close game: %w", err)
	}

	that.logger.Info("game closed", "game_id", gameID)
	that.notifier.GameUpdated(context.WithoutCancel(ctx), game)

	return game, nil
}

// RequestRematch starts a new game between the same pair with swapped symbols. The source game is not modified.
func (that *gameUseCase) RequestRematch(ctx context.Context, gameID, requesterID string) (*entity.Game, error) {
	rematch, err := that.mutate(ctx, gameID, func(ctx context.Context, tx repository.Tx, game *entity.Game, now time.Time) (*entity.Game, error) {
		rematch, err := tictactoe.Rematch(game, requesterID, that.newID(), now)
		if err != nil {
			return nil, err
		}

		return rematch, tx.SaveGame(ctx, rematch)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start rematch: %w", err)
	}

	that.logger.Info("rematch started", "game_id", rematch.ID, "source_game_id", gameID)
	that.notifier.GameUpdated(context.WithoutCancel(ctx), rematch)

	return rematch, nil
}

// mutate runs fn on the current state of a game while holding the game's lock, inside one
// storage atomic unit. Once the lock is held the work is no longer cancelled with ctx.
func (that *gameUseCase) mutate(ctx context.Context, gameID string, fn transition) (*entity.Game, error) {
	unlock, err := that.locks.Lock(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for game %s: %w", gameID, err)
	}
	defer unlock()

	ctx = context.WithoutCancel(ctx)

	var result *entity.Game

	err = retryConcurrent(that.logger.With("game_id", gameID), that.maxAttempts, func() error {
		return that.store.Atomic(ctx, gameID, func(ctx context.Context, tx repository.Tx) error {
			game, err := tx.GetGame(ctx, gameID)
			if err != nil {
				return err
			}

			result, err = fn(ctx, tx, game, that.now())
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// settleRating applies the Elo update and the stats bookkeeping for a finished game, once.
func (that *gameUseCase) settleRating(ctx context.Context, tx repository.Tx, game *entity.Game, now time.Time) error {
	if game.RatingProcessed {
		return nil
	}

	result, ok := game.Result()
	if !ok {
		return nil
	}

	members, err := tx.GetMembers(ctx, game.XPlayerID, game.OPlayerID)
	if err != nil {
		return fmt.Errorf("failed to load players: %w", err)
	}

	x, o := members[0], members[1]
	oldX, oldO := x.Rating, o.Rating

	rating.Apply(x, o, result, that.kFactor)
	x.UpdatedAt = now
	o.UpdatedAt = now
	game.RatingProcessed = true

	if err = tx.SaveMembers(ctx, x, o); err != nil {
		return fmt.Errorf("failed to save ratings: %w", err)
	}

	that.logger.Info("settling rating",
		"game_id", game.ID,
		"result", result,
		"x_player_id", x.ID, "x_rating_before", oldX, "x_rating_after", x.Rating,
		"o_player_id", o.ID, "o_rating_before", oldO, "o_rating_after", o.Rating,
	)

	return nil
}

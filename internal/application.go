package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/rocketscienceinc/tictactoe-ladder/internal/config"
	"github.com/rocketscienceinc/tictactoe-ladder/internal/pkg"
	"github.com/rocketscienceinc/tictactoe-ladder/internal/repository"
	"github.com/rocketscienceinc/tictactoe-ladder/internal/repository/storage"
	"github.com/rocketscienceinc/tictactoe-ladder/internal/service"
	redisfanout "github.com/rocketscienceinc/tictactoe-ladder/internal/transport/redis"
	"github.com/rocketscienceinc/tictactoe-ladder/internal/usecase"
	"github.com/rocketscienceinc/tictactoe-ladder/transport/rest"
	"github.com/rocketscienceinc/tictactoe-ladder/transport/websocket"
)

const shutdownTimeout = 15 * time.Second

var ErrAddrNotFound = errors.New("redis address string is empty")

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, redisClient, err := openStore(ctx, log, conf)
	if err != nil {
		return err
	}

	defer func() {
		if err = store.Close(); err != nil {
			log.Error("could not close storage", "error", err)
		}
	}()

	auth := service.NewAuthService(conf.Auth.JWTSecretKey, conf.Auth.TokenTTL)
	hub := websocket.NewHub(logger)

	// with shared redis storage every instance pushes through pub/sub so clients on other instances hear about moves
	var notifier usecase.Notifier = hub
	var broadcaster *redisfanout.Broadcaster

	if redisClient != nil {
		broadcaster = redisfanout.New(logger, redisClient, redisfanout.DefaultChannel)
		notifier = broadcaster
	}

	gameUseCase := usecase.NewGameUseCase(logger, store, pkg.NewKeyLock(), notifier, usecase.GameConfig{
		KFactor:           conf.Rating.KFactor,
		MaxCommitAttempts: conf.Game.MaxCommitAttempts,
	})
	memberUseCase := usecase.NewMemberUseCase(logger, store, auth, usecase.MemberConfig{
		InitialRating:     conf.Rating.InitialRating,
		MaxCommitAttempts: conf.Game.MaxCommitAttempts,
	})

	wsServer := websocket.New(logger, gameUseCase, memberUseCase, hub, conf.CORS.AllowedOrigins)
	router := rest.NewRouter(logger, gameUseCase, memberUseCase, wsServer, conf.CORS.AllowedOrigins)
	httpServer := rest.NewServer(logger, conf.HTTPPort, router)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if httpErr := httpServer.Start(); httpErr != nil {
			return fmt.Errorf("HTTP server error: %w", httpErr)
		}

		return nil
	})

	if broadcaster != nil {
		group.Go(func() error {
			if relayErr := broadcaster.Relay(groupCtx, hub, nil); relayErr != nil {
				return fmt.Errorf("game updates relay error: %w", relayErr)
			}

			return nil
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("Application context canceled, shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return httpServer.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

// openStore connects the configured storage driver. The redis client is only returned for the redis driver.
func openStore(ctx context.Context, log *slog.Logger, conf *config.Config) (repository.Store, *goredis.Client, error) {
	switch conf.Storage.Driver {
	case config.StoragePostgres:
		pgStorage, err := storage.NewPostgresStorage(ctx, conf.Postgres.DSN, conf.Postgres.MaxOpenConns)
		if err != nil {
			return nil, nil, fmt.Errorf("could not connect to postgres storage: %w", err)
		}

		if err = pgStorage.Init(ctx); err != nil {
			_ = pgStorage.Connection.Close()
			return nil, nil, fmt.Errorf("could not init postgres storage: %w", err)
		}

		log.Info("using postgres storage")

		return repository.NewPostgresStore(pgStorage.Connection), nil, nil
	case config.StorageMemory:
		log.Warn("using in-memory storage, data is lost on restart")

		return repository.NewMemoryStore(), nil, nil
	default:
		redisAddrString := conf.Redis.GetRedisAddr()
		if redisAddrString == "" {
			return nil, nil, ErrAddrNotFound
		}

		redisStorage, err := storage.NewRedisStorage(ctx, redisAddrString, conf.Redis.DB)
		if err != nil {
			return nil, nil, fmt.Errorf("could not connect to redis storage: %w", err)
		}

		log.Info("using redis storage", "addr", redisAddrString)

		return repository.NewRedisStore(redisStorage.Connection), redisStorage.Connection, nil
	}
}

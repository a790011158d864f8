package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter mounts the REST API and, when given, the websocket endpoint under /ws.
func NewRouter(logger *slog.Logger, games gameUseCase, members memberUseCase, ws http.Handler, allowedOrigins []string) http.Handler {
	h := &handlers{
		logger:  logger.With("component", "rest"),
		games:   games,
		members: members,
	}

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	router := chi.NewRouter()

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	router.Get("/ping", h.ping)

	if ws != nil {
		router.Handle("/ws", ws)
	}

	router.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", h.register)
		r.Post("/auth/login", h.login)

		r.Group(func(r chi.Router) {
			r.Use(Authenticate(h.logger, members))

			r.Post("/auth/logout", h.logout)

			r.Get("/me", h.me)
			r.Patch("/me", h.updateMe)
			r.Get("/my/games", h.myGames)
			r.Get("/leaderboard", h.leaderboard)

			r.Post("/games", h.createGame)
			r.Get("/games/open", h.openGames)
			r.Get("/games/{id}", h.getGame)
			r.Post("/games/{id}/join", h.joinGame)
			r.Post("/games/{id}/move", h.move)
			r.Post("/games/{id}/close", h.closeGame)
			r.Post("/games/{id}/rematch", h.rematch)
		})
	})

	return router
}

type Server struct {
	logger *slog.Logger
	srv    *http.Server
}

func NewServer(logger *slog.Logger, port string, handler http.Handler) *Server {
	return &Server{
		logger: logger.With("component", "http"),
		srv: &http.Server{
			Addr:         ":" + port,
			Handler:      handler,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  30 * time.Second,
			ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
		},
	}
}

// Start blocks until the server stops. A graceful shutdown is not an error.
func (that *Server) Start() error {
	that.logger.Info("starting HTTP server", "addr", that.srv.Addr)

	if err := that.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func (that *Server) Shutdown(ctx context.Context) error {
	if err := that.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}

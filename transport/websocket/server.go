package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/tictactoe-ladder/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-ladder/internal/entity"
)

type gameUseCase interface {
	CreateGame(ctx context.Context, creatorID string) (*entity.Game, error)
	GetGame(ctx context.Context, gameID, requesterID string) (*entity.Game, error)
	JoinGame(ctx context.Context, gameID, requesterID string) (*entity.Game, error)
	ApplyMove(ctx context.Context, gameID, requesterID string, position int) (*entity.Game, error)
	CloseGame(ctx context.Context, gameID, requesterID string) (*entity.Game, error)
	RequestRematch(ctx context.Context, gameID, requesterID string) (*entity.Game, error)
}

type callerResolver interface {
	ResolveCaller(ctx context.Context, token string) (string, error)
}

type handlerFunc func(ctx context.Context, memberID string, req Request) (*entity.Game, error)

var (
	errMalformedMessage = apperror.New(apperror.ErrInvalidArgument, "malformed message")
	errUnknownAction    = apperror.New(apperror.ErrInvalidArgument, "unknown action")
	errMissingPosition  = apperror.New(apperror.ErrInvalidArgument, "position is required")
)

type Server struct {
	logger   *slog.Logger
	games    gameUseCase
	resolver callerResolver
	hub      *Hub
	upgrader websocket.Upgrader

	handlers map[string]handlerFunc
}

// New builds the websocket endpoint. An empty allowedOrigins list accepts any origin.
func New(logger *slog.Logger, games gameUseCase, resolver callerResolver, hub *Hub, allowedOrigins []string) *Server {
	server := &Server{
		logger:   logger.With("component", "websocket"),
		games:    games,
		resolver: resolver,
		hub:      hub,

		handlers: make(map[string]handlerFunc),
	}

	server.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, origin) || slices.Contains(allowedOrigins, "*")
		},
	}

	server.handlers[actionGameGet] = server.handleGetGame
	server.handlers[actionGameNew] = server.handleNewGame
	server.handlers[actionGameJoin] = server.handleJoinGame
	server.handlers[actionGameTurn] = server.handleGameTurn
	server.handlers[actionGameClose] = server.handleCloseGame
	server.handlers[actionGameRematch] = server.handleRematch

	return server
}

// ServeHTTP authenticates the caller and upgrades the connection.
func (that *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "ServeHTTP")

	memberID, err := that.resolver.ResolveCaller(r.Context(), tokenFrom(r))
	if err != nil {
		http.Error(w, apperror.Message(err), http.StatusUnauthorized)
		return
	}

	conn, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug("failed to upgrade connection", "error", err)
		return
	}

	c := newClient(that.hub, conn, memberID, that.logger)
	that.hub.register(c)

	log.Info("websocket connection established", "memberID", memberID)

	go c.writePump()

	// The request context ends when the handler returns, so the pump gets its own.
	c.readPump(context.WithoutCancel(r.Context()), that.dispatch)
}

func tokenFrom(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if found && (strings.EqualFold(scheme, "Bearer") || strings.EqualFold(scheme, "Token")) {
		return strings.TrimSpace(token)
	}

	return ""
}

// dispatch runs one client action and replies on the same action name.
func (that *Server) dispatch(ctx context.Context, c *client, raw []byte) {
	log := that.logger.With("method", "dispatch", "memberID", c.memberID)

	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		that.reply(c, actionError, nil, errMalformedMessage)
		return
	}

	handler, ok := that.handlers[msg.Action]
	if !ok {
		that.reply(c, msg.Action, nil, errUnknownAction)
		return
	}

	var req Request
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			that.reply(c, msg.Action, nil, errMalformedMessage)
			return
		}
	}

	game, err := handler(ctx, c.memberID, req)
	if err != nil && apperror.KindOf(err) == nil {
		log.Error("failed to process message", "action", msg.Action, "error", err)
	}

	that.reply(c, msg.Action, game, err)
}

func (that *Server) reply(c *client, action string, game *entity.Game, err error) {
	payload := Response{Game: game}
	if err != nil {
		payload = Response{Error: apperror.Message(err), Code: apperror.Code(err)}
	}

	msg, encErr := encode(action, payload)
	if encErr != nil {
		that.logger.Error("failed to encode reply", "action", action, "error", encErr)
		return
	}

	if !c.trySend(msg) {
		that.logger.Warn("dropped reply for slow connection", "action", action, "memberID", c.memberID)
	}
}

func (that *Server) handleGetGame(ctx context.Context, memberID string, req Request) (*entity.Game, error) {
	return that.games.GetGame(ctx, req.GameID, memberID)
}

func (that *Server) handleNewGame(ctx context.Context, memberID string, _ Request) (*entity.Game, error) {
	return that.games.CreateGame(ctx, memberID)
}

func (that *Server) handleJoinGame(ctx context.Context, memberID string, req Request) (*entity.Game, error) {
	return that.games.JoinGame(ctx, req.GameID, memberID)
}

func (that *Server) handleGameTurn(ctx context.Context, memberID string, req Request) (*entity.Game, error) {
	if req.Position == nil {
		return nil, errMissingPosition
	}

	return that.games.ApplyMove(ctx, req.GameID, memberID, *req.Position)
}

func (that *Server) handleCloseGame(ctx context.Context, memberID string, req Request) (*entity.Game, error) {
	return that.games.CloseGame(ctx, req.GameID, memberID)
}

func (that *Server) handleRematch(ctx context.Context, memberID string, req Request) (*entity.Game, error) {
	return that.games.RequestRematch(ctx, req.GameID, memberID)
}

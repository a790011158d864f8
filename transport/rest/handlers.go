package rest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rocketscienceinc/tictactoe-ladder/internal/entity"
)

type gameUseCase interface {
	CreateGame(ctx context.Context, creatorID string) (*entity.Game, error)
	ListOpenGames(ctx context.Context) ([]*entity.Game, error)
	GetGame(ctx context.Context, gameID, requesterID string) (*entity.Game, error)
	ListMemberGames(ctx context.Context, memberID string, limit, offset int) ([]*entity.Game, error)

	JoinGame(ctx context.Context, gameID, requesterID string) (*entity.Game, error)
	ApplyMove(ctx context.Context, gameID, requesterID string, position int) (*entity.Game, error)
	CloseGame(ctx context.Context, gameID, requesterID string) (*entity.Game, error)
	RequestRematch(ctx context.Context, gameID, requesterID string) (*entity.Game, error)
}

type memberUseCase interface {
	Register(ctx context.Context, username, password, displayName string) (*entity.Member, string, error)
	Login(ctx context.Context, username, password string) (*entity.Member, string, error)
	ResolveCaller(ctx context.Context, token string) (string, error)
	Logout(ctx context.Context, token string) error

	Me(ctx context.Context, memberID string) (*entity.Member, error)
	UpdateProfile(ctx context.Context, memberID, displayName string) (*entity.Member, error)
	Leaderboard(ctx context.Context, limit int) ([]*entity.Member, error)
}

type handlers struct {
	logger  *slog.Logger
	games   gameUseCase
	members memberUseCase
}

type credentialsRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

type authResponse struct {
	Token  string         `json:"token"`
	Member *entity.Member `json:"member"`
}

type profileRequest struct {
	DisplayName string `json:"display_name"`
}

type moveRequest struct {
	Position *int `json:"position"`
}

// historyItem is a game as seen by one of its participants.
type historyItem struct {
	*entity.Game
	Outcome entity.Outcome `json:"outcome"`
}

// MarshalJSON keeps the flat game form and adds the outcome next to it.
func (that historyItem) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(that.Game)
	if err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err = json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}

	outcome, err := json.Marshal(that.Outcome)
	if err != nil {
		return nil, err
	}

	fields["outcome"] = outcome

	return json.Marshal(fields)
}

type gamesResponse struct {
	Games []*entity.Game `json:"games"`
}

type historyResponse struct {
	Games []historyItem `json:"games"`
}

type leaderboardResponse struct {
	Members []*entity.Member `json:"members"`
}

func (that *handlers) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := readJSON(w, r, &req); err != nil {
		errorResponse(that.logger, w, r, err)
		return
	}

	member, token, err := that.members.Register(r.Context(), req.Username, req.Password, req.DisplayName)
	if err != nil {
		errorResponse(that.logger, w, r, err)
		return
	}

	that.respond(w, r, http.StatusCreated, authResponse{Token: token, Member: member})
}

func (that *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := readJSON(w, r, &req); err != nil {
		errorResponse(that.logger, w, r, err)
		return
	}

	member, token, err := that.members.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		errorResponse(that.logger, w, r, err)
		return
	}

	that.respond(w, r, http.StatusOK, authResponse{Token: token, Member: member})
}

func (that *handlers) logout(w http.ResponseWriter, r *http.Request) {
	token, _ := authToken(r)

	if err := that.members.Logout(r.Context(), token); err != nil {
		errorResponse(that.logger, w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (that *handlers) me(w http.ResponseWriter, r *http.Request) {
	member, err := that.members.Me(r.Context(), MemberIDFromContext(r.Context()))
	if err != nil {
		errorResponse(that.logger, w, r, err)
		return
	}

	that.respond(w, r, http.StatusOK, member)
}

func (that *handlers) updateMe(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := readJSON(w, r, &req); err != nil {
		errorResponse(that.logger, w, r, err)
		return
	}

	member, err := that.members.UpdateProfile(r.Context(), MemberIDFromContext(r.Context()), req.DisplayName)
	if err != nil {
		errorResponse(that.logger, w, r, err)
		return
	}

	that.respond(w, r, http.StatusOK, member)
}

func (that *handlers) myGames(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		errorResponse(that.logger, w, r, err)
		return
	}

	offset, err := queryInt(r, "offset")
	if err != nil {
		errorResponse(that.logger, w, r, err)
		return
	}

	memberID := MemberIDFromContext(r.Context())

	games, err := that.games.ListMemberGames(r.Context(), memberID, limit, offset)
	if err != nil {
		errorResponse(that.logger, w, r, err)
		return
	}

	items := make([]historyItem, 0, len(games))
	for _, game := range games {
		items = append(items, historyItem{Game: game, Outcome: entity.OutcomeFor(game, memberID)})
	}

	that.respond(w, r, http.StatusOK, historyResponse{Games: items})
}

func (that *handlers) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		errorResponse(that.logger, w, r, err)
		return
	}

	members, err := that.members.Leaderboard(r.Context(), limit)
	if err != nil {
		errorResponse(that.logger, w, r, err)
		return
	}

	that.respond(w, r, http.StatusOK, leaderboardResponse{Members: members})
}

func (that *handlers) createGame(w http.ResponseWriter, r *http.Request) {
	game, err := that.games.CreateGame(r.Context(), MemberIDFromContext(r.Context()))
	if err != nil {
		errorResponse(that.logger, w, r, err)
		return
	}

	that.respond(w, r, http.StatusCreated, game)
}

func (that *handlers) openGames(w http.ResponseWriter, r *http.Request) {
	games, err := that.games.ListOpenGames(r.Context())
	if err != nil {
		errorResponse(that.logger, w, r, err)
		return
	}

	that.respond(w, r, http.StatusOK, gamesResponse{Games: games})
}

func (that *handlers) getGame(w http.ResponseWriter, r *http.Request) {
	game, err := that.games.GetGame(r.Context(), chi.URLParam(r, "id"), MemberIDFromContext(r.Context()))
	if err != nil {
		errorResponse(that.logger, w, r, err)
		return
	}

	that.respond(w, r, http.StatusOK, game)
}

func (that *handlers) joinGame(w http.ResponseWriter, r *http.Request) {
	game, err := that.games.JoinGame(r.Context(), chi.URLParam(r, "id"), MemberIDFromContext(r.Context()))
	if err != nil {
		errorResponse(that.logger, w, r, err)
		return
	}

	that.respond(w, r, http.StatusOK, game)
}

func (that *handlers) move(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := readJSON(w, r, &req); err != nil {
		errorResponse(that.logger, w, r, err)
		return
	}

	if req.Position == nil {
		errorResponse(that.logger, w, r, errMissingPosition)
		return
	}

	game, err := that.games.ApplyMove(r.Context(), chi.URLParam(r, "id"), MemberIDFromContext(r.Context()), *req.Position)
	if err != nil {
		errorResponse(that.logger, w, r, err)
		return
	}

	that.respond(w, r, http.StatusOK, game)
}

func (that *handlers) closeGame(w http.ResponseWriter, r *http.Request) {
	game, err := that.games.CloseGame(r.Context(), chi.URLParam(r, "id"), MemberIDFromContext(r.Context()))
	if err != nil {
		errorResponse(that.logger, w, r, err)
		return
	}

	that.respond(w, r, http.StatusOK, game)
}

func (that *handlers) rematch(w http.ResponseWriter, r *http.Request) {
	game, err := that.games.RequestRematch(r.Context(), chi.URLParam(r, "id"), MemberIDFromContext(r.Context()))
	if err != nil {
		errorResponse(that.logger, w, r, err)
		return
	}

	that.respond(w, r, http.StatusCreated, game)
}

func (that *handlers) respond(w http.ResponseWriter, r *http.Request, status int, data any) {
	if err := writeJSON(w, status, data); err != nil {
		that.logger.Error("failed to write response", "method", r.Method, "path", r.URL.Path, "error", err)
	}
}

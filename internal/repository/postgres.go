package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/rocketscienceinc/tictactoe-ladder/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-ladder/internal/entity"
)

const (
	gameColumns = `id, status, board, next_turn, result, prior_result, moves, creator_id, opponent_id,
		x_player_id, o_player_id, rating_processed, created_at, updated_at, started_at, finished_at`

	memberColumns = `id, username, display_name, password_hash, rating, games_played, wins, losses, draws,
		created_at, updated_at`
)

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// PostgresStore keeps games and members in tables. Atomic units lock the game row and then the
// member rows in id order with SELECT ... FOR UPDATE.
type PostgresStore struct {
	conn *sql.DB
}

func NewPostgresStore(conn *sql.DB) *PostgresStore {
	return &PostgresStore{
		conn: conn,
	}
}

func (that *PostgresStore) Atomic(ctx context.Context, _ string, fn TxFunc) error {
	return that.inTx(ctx, func(tx *sql.Tx) error {
		return fn(ctx, &postgresTx{tx: tx})
	})
}

func (that *PostgresStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := that.conn.BeginTx(ctx, nil)
	if err != nil {
		return unavailable(err, "failed to begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return pgError(err, "failed to commit transaction")
	}

	return nil
}

func (that *PostgresStore) CreateGame(ctx context.Context, game *entity.Game) error {
	return pgError(upsertGame(ctx, that.conn, game), "failed to create game")
}

func (that *PostgresStore) GetGame(ctx context.Context, id string) (*entity.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE id = $1`

	return getGame(ctx, that.conn, query, id)
}

func (that *PostgresStore) ListOpenGames(ctx context.Context) ([]*entity.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games
		WHERE status = $1 AND opponent_id = ''
		ORDER BY created_at DESC, id DESC`

	return queryGames(ctx, that.conn, query, entity.StatusOpen)
}

func (that *PostgresStore) ListMemberGames(ctx context.Context, memberID string, limit, offset int) ([]*entity.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games
		WHERE creator_id = $1 OR opponent_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	var pgLimit any
	if limit > 0 {
		pgLimit = limit
	}

	return queryGames(ctx, that.conn, query, memberID, pgLimit, max(offset, 0))
}

func (that *PostgresStore) CreateMember(ctx context.Context, member *entity.Member) error {
	query := `INSERT INTO members (` + memberColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := that.conn.ExecContext(ctx, query,
		member.ID, member.Username, member.DisplayName, member.PasswordHash, member.Rating,
		member.GamesPlayed, member.Wins, member.Losses, member.Draws, member.CreatedAt, member.UpdatedAt,
	)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
		return apperror.ErrUsernameTaken
	}

	return pgError(err, "failed to create member")
}

func (that *PostgresStore) GetMember(ctx context.Context, id string) (*entity.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE id = $1`

	return getMember(ctx, that.conn, query, id)
}

func (that *PostgresStore) GetMemberByUsername(ctx context.Context, username string) (*entity.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE LOWER(username) = $1`

	return getMember(ctx, that.conn, query, normalizeUsername(username))
}

func (that *PostgresStore) UpdateMember(ctx context.Context, id string, fn MemberUpdate) (*entity.Member, error) {
	var updated *entity.Member

	err := that.inTx(ctx, func(tx *sql.Tx) error {
		query := `SELECT ` + memberColumns + ` FROM members WHERE id = $1 FOR UPDATE`

		member, err := getMember(ctx, tx, query, id)
		if err != nil {
			return err
		}

		if err = fn(member); err != nil {
			return err
		}

		if err = updateMember(ctx, tx, member); err != nil {
			return err
		}

		updated = member

		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (that *PostgresStore) ListMembers(ctx context.Context, limit int) ([]*entity.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members ORDER BY rating DESC, LOWER(username) ASC LIMIT $1`

	var pgLimit any
	if limit > 0 {
		pgLimit = limit
	}

	rows, err := that.conn.QueryContext(ctx, query, pgLimit)
	if err != nil {
		return nil, pgError(err, "failed to list members")
	}
	defer rows.Close()

	members := make([]*entity.Member, 0)
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, pgError(err, "failed to scan member")
		}
		members = append(members, member)
	}

	if err = rows.Err(); err != nil {
		return nil, pgError(err, "failed to iterate members")
	}

	return members, nil
}

func (that *PostgresStore) RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if !expiresAt.After(time.Now()) {
		return nil
	}

	// expired rows are swept on every revocation; lookups ignore them anyway
	if _, err := that.conn.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= NOW()`); err != nil {
		return pgError(err, "failed to sweep revoked tokens")
	}

	query := `INSERT INTO revoked_tokens (id, expires_at) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`

	if _, err := that.conn.ExecContext(ctx, query, tokenID, expiresAt); err != nil {
		return pgError(err, "failed to revoke token")
	}

	return nil
}

func (that *PostgresStore) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE id = $1 AND expires_at > NOW())`

	var revoked bool
	if err := that.conn.QueryRowContext(ctx, query, tokenID).Scan(&revoked); err != nil {
		return false, pgError(err, "failed to check revoked token")
	}

	return revoked, nil
}

func (that *PostgresStore) Close() error {
	return that.conn.Close()
}

type postgresTx struct {
	tx *sql.Tx
}

func (that *postgresTx) GetGame(ctx context.Context, id string) (*entity.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE id = $1 FOR UPDATE`

	return getGame(ctx, that.tx, query, id)
}

func (that *postgresTx) GetMembers(ctx context.Context, ids ...string) ([]*entity.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE id = ANY($1) ORDER BY id FOR UPDATE`

	rows, err := that.tx.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, pgError(err, "failed to lock members")
	}
	defer rows.Close()

	byID := make(map[string]*entity.Member, len(ids))
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, pgError(err, "failed to scan member")
		}
		byID[member.ID] = member
	}

	if err = rows.Err(); err != nil {
		return nil, pgError(err, "failed to iterate members")
	}

	members := make([]*entity.Member, 0, len(ids))
	for _, id := range ids {
		member, ok := byID[id]
		if !ok {
			return nil, apperror.ErrMemberNotFound
		}
		members = append(members, member.Clone())
	}

	return members, nil
}

func (that *postgresTx) SaveGame(ctx context.Context, game *entity.Game) error {
	return pgError(upsertGame(ctx, that.tx, game), "failed to save game")
}

func (that *postgresTx) SaveMembers(ctx context.Context, members ...*entity.Member) error {
	for _, member := range members {
		if err := updateMember(ctx, that.tx, member); err != nil {
			return err
		}
	}

	return nil
}

func upsertGame(ctx context.Context, q querier, game *entity.Game) error {
	board, err := json.Marshal(game.Board)
	if err != nil {
		return fmt.Errorf("could not marshal board: %w", err)
	}

	moves := game.Moves
	if moves == nil {
		moves = []entity.Move{}
	}

	movesJSON, err := json.Marshal(moves)
	if err != nil {
		return fmt.Errorf("could not marshal moves: %w", err)
	}

	status, nextTurn, result, priorResult := entity.StateFields(game.State)

	query := `INSERT INTO games (` + gameColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			board = EXCLUDED.board,
			next_turn = EXCLUDED.next_turn,
			result = EXCLUDED.result,
			prior_result = EXCLUDED.prior_result,
			moves = EXCLUDED.moves,
			opponent_id = EXCLUDED.opponent_id,
			x_player_id = EXCLUDED.x_player_id,
			o_player_id = EXCLUDED.o_player_id,
			rating_processed = EXCLUDED.rating_processed,
			updated_at = EXCLUDED.updated_at,
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at`

	_, err = q.ExecContext(ctx, query,
		game.ID, status, string(board), nextTurn, result, priorResult, string(movesJSON),
		game.CreatorID, game.OpponentID, game.XPlayerID, game.OPlayerID, game.RatingProcessed,
		game.CreatedAt, game.UpdatedAt, game.StartedAt, game.FinishedAt,
	)

	return err
}

func updateMember(ctx context.Context, q querier, member *entity.Member) error {
	query := `UPDATE members SET display_name = $2, rating = $3, games_played = $4, wins = $5, losses = $6,
		draws = $7, updated_at = $8 WHERE id = $1`

	res, err := q.ExecContext(ctx, query,
		member.ID, member.DisplayName, member.Rating,
		member.GamesPlayed, member.Wins, member.Losses, member.Draws, member.UpdatedAt,
	)
	if err != nil {
		return pgError(err, "failed to update member")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return pgError(err, "failed to update member")
	}

	if affected == 0 {
		return apperror.ErrMemberNotFound
	}

	return nil
}

func getGame(ctx context.Context, q querier, query string, id string) (*entity.Game, error) {
	game, err := scanGame(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrGameNotFound
	}

	if err != nil {
		return nil, pgError(err, "failed to get game by id")
	}

	return game, nil
}

func queryGames(ctx context.Context, q querier, query string, args ...any) ([]*entity.Game, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, pgError(err, "failed to list games")
	}
	defer rows.Close()

	games := make([]*entity.Game, 0)
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, pgError(err, "failed to scan game")
		}
		games = append(games, game)
	}

	if err = rows.Err(); err != nil {
		return nil, pgError(err, "failed to iterate games")
	}

	return games, nil
}

func scanGame(row rowScanner) (*entity.Game, error) {
	var (
		game                                  entity.Game
		status, nextTurn, result, priorResult string
		board, moves                          []byte
		startedAt, finishedAt                 sql.NullTime
	)

	err := row.Scan(
		&game.ID, &status, &board, &nextTurn, &result, &priorResult, &moves,
		&game.CreatorID, &game.OpponentID, &game.XPlayerID, &game.OPlayerID, &game.RatingProcessed,
		&game.CreatedAt, &game.UpdatedAt, &startedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}

	if err = json.Unmarshal(board, &game.Board); err != nil {
		return nil, fmt.Errorf("failed to unmarshal board: %w", err)
	}

	if err = json.Unmarshal(moves, &game.Moves); err != nil {
		return nil, fmt.Errorf("failed to unmarshal moves: %w", err)
	}

	game.State, err = entity.StateFromFields(entity.Status(status), entity.Symbol(nextTurn), entity.Result(result), entity.Result(priorResult))
	if err != nil {
		return nil, fmt.Errorf("game %s: %w", game.ID, err)
	}

	if startedAt.Valid {
		game.StartedAt = &startedAt.Time
	}

	if finishedAt.Valid {
		game.FinishedAt = &finishedAt.Time
	}

	return &game, nil
}

func getMember(ctx context.Context, q querier, query string, arg string) (*entity.Member, error) {
	member, err := scanMember(q.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrMemberNotFound
	}

	if err != nil {
		return nil, pgError(err, "failed to get member")
	}

	return member, nil
}

func scanMember(row rowScanner) (*entity.Member, error) {
	var member entity.Member

	err := row.Scan(
		&member.ID, &member.Username, &member.DisplayName, &member.PasswordHash, &member.Rating,
		&member.GamesPlayed, &member.Wins, &member.Losses, &member.Draws, &member.CreatedAt, &member.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &member, nil
}

// pgError maps lost lock races onto a concurrent update and everything else onto unavailable.
func pgError(err error, msg string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && (pqErr.Code == pgDeadlockDetected || pqErr.Code == pgSerializationFailure) {
		return apperror.ErrConcurrentUpdate
	}

	return unavailable(err, msg)
}

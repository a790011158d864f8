package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rocketscienceinc/tictactoe-ladder/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-ladder/internal/entity"
	"github.com/rocketscienceinc/tictactoe-ladder/internal/pkg"
	"github.com/rocketscienceinc/tictactoe-ladder/internal/repository"
	"github.com/rocketscienceinc/tictactoe-ladder/internal/service"
)

const (
	maxUsernameLength    = 150
	maxDisplayNameLength = 150
	minPasswordLength    = 8
	// bcrypt ignores input beyond 72 bytes.
	maxPasswordBytes = 72

	defaultLeaderboardLimit = 50
	maxLeaderboardLimit     = 100
)

type MemberUseCase interface {
	Register(ctx context.Context, username, password, displayName string) (*entity.Member, string, error)
	Login(ctx context.Context, username, password string) (*entity.Member, string, error)
	ResolveCaller(ctx context.Context, token string) (string, error)
	Logout(ctx context.Context, token string) error

	Me(ctx context.Context, memberID string) (*entity.Member, error)
	UpdateProfile(ctx context.Context, memberID, displayName string) (*entity.Member, error)
	Leaderboard(ctx context.Context, limit int) ([]*entity.Member, error)
}

type memberStore interface {
	CreateMember(ctx context.Context, member *entity.Member) error
	GetMember(ctx context.Context, id string) (*entity.Member, error)
	GetMemberByUsername(ctx context.Context, username string) (*entity.Member, error)
	UpdateMember(ctx context.Context, id string, fn repository.MemberUpdate) (*entity.Member, error)
	ListMembers(ctx context.Context, limit int) ([]*entity.Member, error)

	RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)
}

type authService interface {
	HashPassword(password string) (string, error)
	CheckPassword(hash, password string) bool
	GenerateToken(memberID string) (string, error)
	ParseClaims(token string) (service.TokenClaims, error)
}

type MemberConfig struct {
	InitialRating     int
	MaxCommitAttempts int
}

type memberUseCase struct {
	logger *slog.Logger
	store  memberStore
	auth   authService

	initialRating int
	maxAttempts   int

	now   func() time.Time
	newID func() string
}

func NewMemberUseCase(logger *slog.Logger, store memberStore, auth authService, conf MemberConfig) MemberUseCase {
	if conf.InitialRating == 0 {
		conf.InitialRating = entity.DefaultRating
	}

	if conf.MaxCommitAttempts <= 0 {
		conf.MaxCommitAttempts = defaultMaxCommitAttempts
	}

	return &memberUseCase{
		logger:        logger.With("component", "member_usecase"),
		store:         store,
		auth:          auth,
		initialRating: conf.InitialRating,
		maxAttempts:   conf.MaxCommitAttempts,
		now:           func() time.Time { return time.Now().UTC() },
		newID:         pkg.NewID,
	}
}

func (that *memberUseCase) Register(ctx context.Context, username, password, displayName string) (*entity.Member, string, error) {
	username = strings.TrimSpace(username)
	displayName = strings.TrimSpace(displayName)

	if err := validateUsername(username); err != nil {
		return nil, "", err
	}

	if utf8.RuneCountInString(password) < minPasswordLength || len(password) > maxPasswordBytes {
		return nil, "", apperror.ErrInvalidPassword
	}

	if err := validateDisplayName(displayName); err != nil {
		return nil, "", err
	}

	if displayName == "" {
		displayName = username
	}

	hash, err := that.auth.HashPassword(password)
	if err != nil {
		return nil, "", fmt.Errorf("failed to register member: %w", err)
	}

	member := entity.NewMember(that.newID(), username, displayName, hash, that.initialRating, that.now())

	if err = that.store.CreateMember(ctx, member); err != nil {
		return nil, "", fmt.Errorf("failed to register member: %w", err)
	}

	token, err := that.auth.GenerateToken(member.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}

	that.logger.Info("member registered", "member_id", member.ID, "username", member.Username)

	return member, token, nil
}

func (that *memberUseCase) Login(ctx context.Context, username, password string) (*entity.Member, string, error) {
	member, err := that.store.GetMemberByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, apperror.ErrMemberNotFound) {
		return nil, "", apperror.ErrInvalidCredentials
	}

	if err != nil {
		return nil, "", fmt.Errorf("failed to get member by username: %w", err)
	}

	if !that.auth.CheckPassword(member.PasswordHash, password) {
		return nil, "", apperror.ErrInvalidCredentials
	}

	token, err := that.auth.GenerateToken(member.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}

	return member, token, nil
}

// ResolveCaller maps a bearer token onto the id of an existing member.
func (that *memberUseCase) ResolveCaller(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", apperror.ErrInvalidToken
	}

	claims, err := that.auth.ParseClaims(token)
	if err != nil {
		return "", err
	}

	revoked, err := that.store.IsTokenRevoked(ctx, claims.TokenID)
	if err != nil {
		return "", fmt.Errorf("failed to check token revocation: %w", err)
	}

	if revoked {
		return "", apperror.ErrInvalidToken
	}

	memberID := claims.MemberID
	if _, err = that.store.GetMember(ctx, memberID); err != nil {
		if errors.Is(err, apperror.ErrMemberNotFound) {
			return "", apperror.ErrInvalidToken
		}
		return "", fmt.Errorf("failed to get member by id: %w", err)
	}

	return memberID, nil
}

// Logout revokes the token until it would have expired on its own.
func (that *memberUseCase) Logout(ctx context.Context, token string) error {
	claims, err := that.auth.ParseClaims(token)
	if err != nil {
		return err
	}

	if err = that.store.RevokeToken(ctx, claims.TokenID, claims.ExpiresAt); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	that.logger.Info("member logged out", "member_id", claims.MemberID)

	return nil
}

func (that *memberUseCase) Me(ctx context.Context, memberID string) (*entity.Member, error) {
	member, err := that.store.GetMember(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to get member by id: %w", err)
	}

	return member, nil
}

func (that *memberUseCase) UpdateProfile(ctx context.Context, memberID, displayName string) (*entity.Member, error) {
	displayName = strings.TrimSpace(displayName)
	if err := validateDisplayName(displayName); err != nil {
		return nil, err
	}

	var member *entity.Member

	err := retryConcurrent(that.logger.With("member_id", memberID), that.maxAttempts, func() error {
		var err error
		member, err = that.store.UpdateMember(ctx, memberID, func(member *entity.Member) error {
			member.DisplayName = displayName
			member.UpdatedAt = that.now()
			return nil
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	return member, nil
}

func (that *memberUseCase) Leaderboard(ctx context.Context, limit int) ([]*entity.Member, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}

	members, err := that.store.ListMembers(ctx, min(limit, maxLeaderboardLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	return members, nil
}

func validateUsername(username string) error {
	if length := utf8.RuneCountInString(username); length < 1 || length > maxUsernameLength {
		return apperror.ErrInvalidUsername
	}

	return nil
}

func validateDisplayName(displayName string) error {
	if utf8.RuneCountInString(displayName) > maxDisplayNameLength {
		return apperror.ErrInvalidDisplayName
	}

	return nil
}

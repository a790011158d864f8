package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-ladder/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-ladder/internal/entity"
	"github.com/rocketscienceinc/tictactoe-ladder/internal/repository"
	"github.com/rocketscienceinc/tictactoe-ladder/internal/service"
)

const password = "s3cret-pass"

func newMemberUseCase() (MemberUseCase, *repository.MemoryStore, service.AuthService) {
	store := repository.NewMemoryStore()
	auth := service.NewAuthService("test-secret", time.Hour)

	return NewMemberUseCase(discardLogger(), store, auth, MemberConfig{}), store, auth
}

func TestMemberUseCase_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("Register", func(t *testing.T) {
		useCase, store, auth := newMemberUseCase()

		// When: alice registers without a display name
		member, token, err := useCase.Register(ctx, " alice ", password, "")

		// Then: she starts at the default rating with a usable token
		require.NoError(t, err)
		assert.Equal(t, "alice", member.Username)
		assert.Equal(t, "alice", member.DisplayName)
		assert.Equal(t, entity.DefaultRating, member.Rating)
		assert.Equal(t, entity.Stats{}, member.Stats)
		assert.NotEqual(t, password, member.PasswordHash)

		memberID, err := auth.ParseToken(token)
		require.NoError(t, err)
		assert.Equal(t, member.ID, memberID)

		stored, err := store.GetMember(ctx, member.ID)
		require.NoError(t, err)
		assert.Equal(t, member.ID, stored.ID)
	})

	t.Run("Duplicate username", func(t *testing.T) {
		useCase, _, _ := newMemberUseCase()

		_, _, err := useCase.Register(ctx, "alice", password, "")
		require.NoError(t, err)

		_, _, err = useCase.Register(ctx, "Alice", password, "")

		require.ErrorIs(t, err, apperror.ErrUsernameTaken)
		assert.ErrorIs(t, err, apperror.ErrConflict)
	})

	invalid := []struct {
		name        string
		username    string
		password    string
		displayName string
		target      error
	}{
		{name: "Empty username", username: "  ", password: password, target: apperror.ErrInvalidUsername},
		{name: "Long username", username: strings.Repeat("a", 151), password: password, target: apperror.ErrInvalidUsername},
		{name: "Short password", username: "alice", password: "short", target: apperror.ErrInvalidPassword},
		{name: "Long password", username: "alice", password: strings.Repeat("p", 129), target: apperror.ErrInvalidPassword},
		{name: "Password over 72 bytes", username: "alice", password: strings.Repeat("p", 100), target: apperror.ErrInvalidPassword},
		{name: "Multibyte password over 72 bytes", username: "alice", password: strings.Repeat("пароль", 7), target: apperror.ErrInvalidPassword},
		{name: "Long display name", username: "alice", password: password, displayName: strings.Repeat("d", 151), target: apperror.ErrInvalidDisplayName},
	}

	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			useCase, _, _ := newMemberUseCase()

			_, _, err := useCase.Register(ctx, tc.username, tc.password, tc.displayName)

			require.ErrorIs(t, err, tc.target)
			assert.ErrorIs(t, err, apperror.ErrInvalidArgument)
		})
	}
}

func TestMemberUseCase_Login(t *testing.T) {
	ctx := context.Background()
	useCase, _, _ := newMemberUseCase()

	registered, _, err := useCase.Register(ctx, "alice", password, "Alice")
	require.NoError(t, err)

	t.Run("Correct credentials", func(t *testing.T) {
		member, token, err := useCase.Login(ctx, "ALICE", password)

		require.NoError(t, err)
		assert.Equal(t, registered.ID, member.ID)

		memberID, err := useCase.ResolveCaller(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, registered.ID, memberID)
	})

	t.Run("Wrong password", func(t *testing.T) {
		_, _, err := useCase.Login(ctx, "alice", "wrong-password")

		require.ErrorIs(t, err, apperror.ErrInvalidCredentials)
		assert.ErrorIs(t, err, apperror.ErrUnauthenticated)
	})

	t.Run("Unknown username", func(t *testing.T) {
		_, _, err := useCase.Login(ctx, "bob", password)

		assert.ErrorIs(t, err, apperror.ErrInvalidCredentials)
	})
}

func TestMemberUseCase_ResolveCaller(t *testing.T) {
	ctx := context.Background()
	useCase, _, auth := newMemberUseCase()

	t.Run("Missing token", func(t *testing.T) {
		_, err := useCase.ResolveCaller(ctx, "")

		assert.ErrorIs(t, err, apperror.ErrUnauthenticated)
	})

	t.Run("Garbage token", func(t *testing.T) {
		_, err := useCase.ResolveCaller(ctx, "garbage")

		assert.ErrorIs(t, err, apperror.ErrUnauthenticated)
	})

	t.Run("Token of an unknown member", func(t *testing.T) {
		token, err := auth.GenerateToken("ghost")
		require.NoError(t, err)

		_, err = useCase.ResolveCaller(ctx, token)

		assert.ErrorIs(t, err, apperror.ErrUnauthenticated)
	})
}

func TestMemberUseCase_Logout(t *testing.T) {
	ctx := context.Background()

	t.Run("Revoked token no longer resolves", func(t *testing.T) {
		useCase, _, _ := newMemberUseCase()

		// Given: alice holds two tokens
		member, first, err := useCase.Register(ctx, "alice", password, "")
		require.NoError(t, err)
		_, second, err := useCase.Login(ctx, "alice", password)
		require.NoError(t, err)

		// When: she logs out with the first one
		require.NoError(t, useCase.Logout(ctx, first))

		// Then: only the first token is rejected
		_, err = useCase.ResolveCaller(ctx, first)
		assert.ErrorIs(t, err, apperror.ErrInvalidToken)

		memberID, err := useCase.ResolveCaller(ctx, second)
		require.NoError(t, err)
		assert.Equal(t, member.ID, memberID)
	})

	t.Run("Logout twice", func(t *testing.T) {
		useCase, _, _ := newMemberUseCase()

		_, token, err := useCase.Register(ctx, "alice", password, "")
		require.NoError(t, err)

		require.NoError(t, useCase.Logout(ctx, token))
		assert.NoError(t, useCase.Logout(ctx, token))
	})

	t.Run("Invalid token", func(t *testing.T) {
		useCase, _, _ := newMemberUseCase()

		err := useCase.Logout(ctx, "garbage")

		assert.ErrorIs(t, err, apperror.ErrUnauthenticated)
	})
}

func TestMemberUseCase_Profile(t *testing.T) {
	ctx := context.Background()
	useCase, _, _ := newMemberUseCase()

	member, _, err := useCase.Register(ctx, "alice", password, "Alice")
	require.NoError(t, err)

	t.Run("UpdateProfile", func(t *testing.T) {
		updated, err := useCase.UpdateProfile(ctx, member.ID, "  Queen of Tic  ")
		require.NoError(t, err)
		assert.Equal(t, "Queen of Tic", updated.DisplayName)

		me, err := useCase.Me(ctx, member.ID)
		require.NoError(t, err)
		assert.Equal(t, "Queen of Tic", me.DisplayName)
		assert.Equal(t, member.Rating, me.Rating)
	})

	t.Run("Display name too long", func(t *testing.T) {
		_, err := useCase.UpdateProfile(ctx, member.ID, strings.Repeat("d", 151))

		assert.ErrorIs(t, err, apperror.ErrInvalidArgument)
	})

	t.Run("Unknown member", func(t *testing.T) {
		_, err := useCase.Me(ctx, "ghost")

		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})
}

func TestMemberUseCase_Leaderboard(t *testing.T) {
	ctx := context.Background()
	useCase, store, _ := newMemberUseCase()

	now := time.Now()
	for _, member := range []*entity.Member{
		entity.NewMember("1", "carol", "", "", 1200, now),
		entity.NewMember("2", "alice", "", "", 1200, now),
		entity.NewMember("3", "bob", "", "", 1300, now),
	} {
		require.NoError(t, store.CreateMember(ctx, member))
	}

	board, err := useCase.Leaderboard(ctx, 0)
	require.NoError(t, err)
	require.Len(t, board, 3)
	assert.Equal(t, []string{"bob", "alice", "carol"}, []string{board[0].Username, board[1].Username, board[2].Username})

	top, err := useCase.Leaderboard(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "bob", top[0].Username)
}

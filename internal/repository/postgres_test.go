package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-ladder/internal/repository/storage"
	"github.com/rocketscienceinc/tictactoe-ladder/testing/suite"
)

func TestPostgresStore(t *testing.T) {
	testStore(t, func(t *testing.T) (context.Context, Store) {
		ctx, st := suite.NewPostgres(t)

		pg := &storage.PostgresStorage{Connection: st.DB}
		require.NoError(t, pg.Init(ctx))

		return ctx, NewPostgresStore(st.DB)
	})
}

package apperror

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	t.Run("Specific errors unwrap to their kind through wrapping", func(t *testing.T) {
		err := fmt.Errorf("failed to make turn: %w", ErrNotYourTurn)

		assert.Equal(t, ErrForbidden, KindOf(err))
		assert.ErrorIs(t, err, ErrNotYourTurn)
		assert.Equal(t, "forbidden", Code(err))
		assert.Equal(t, ErrNotYourTurn.Error(), Message(err))
	})

	t.Run("Bare kind keeps its own text", func(t *testing.T) {
		err := fmt.Errorf("%w: game %s", ErrNotFound, "g1")

		assert.Equal(t, ErrNotFound, KindOf(err))
		assert.Equal(t, "not found", Message(err))
	})

	t.Run("Infrastructure details stay hidden", func(t *testing.T) {
		err := fmt.Errorf("%w: failed to load game: %w", ErrUnavailable, errors.New("dial tcp: i/o timeout"))

		assert.Equal(t, "unavailable", Code(err))
		assert.NotContains(t, Message(err), "dial tcp")
	})

	t.Run("Errors outside the taxonomy", func(t *testing.T) {
		err := errors.New("boom")

		assert.Nil(t, KindOf(err))
		assert.Equal(t, "internal", Code(err))
		assert.NotContains(t, Message(err), "boom")
	})

	t.Run("Context errors keep their own codes", func(t *testing.T) {
		deadline := fmt.Errorf("failed to wait for game g1: %w", context.DeadlineExceeded)
		canceled := fmt.Errorf("failed to wait for game g1: %w", context.Canceled)

		assert.Nil(t, KindOf(deadline))
		assert.Equal(t, "timeout", Code(deadline))
		assert.Equal(t, "canceled", Code(canceled))
		assert.NotEqual(t, Message(errors.New("boom")), Message(deadline))
	})

	t.Run("Driver errors stay unavailable even when the driver timed out", func(t *testing.T) {
		err := fmt.Errorf("%w: failed to load game: %w", ErrUnavailable, context.DeadlineExceeded)

		assert.Equal(t, "unavailable", Code(err))
	})
}

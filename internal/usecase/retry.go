package usecase

import (
	"errors"
	"log/slog"

	"github.com/rocketscienceinc/tictactoe-ladder/internal/apperror"
)

const defaultMaxCommitAttempts = 3

// retryConcurrent re-runs fn while storage reports a lost optimistic race, at most attempts times.
// The last ErrConcurrentUpdate is returned once the attempts are used up.
func retryConcurrent(logger *slog.Logger, attempts int, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if !errors.Is(err, apperror.ErrConcurrentUpdate) {
			return err
		}

		logger.Debug("concurrent update, retrying", "attempt", attempt)
	}

	return err
}

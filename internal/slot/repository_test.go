package slot

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/apperror"
)

func TestStorageError(t *testing.T) {
	t.Run("unreachable store is 503", func(t *testing.T) {
		err := storageError("get slot", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"))
		assert.ErrorIs(t, err, ErrStorageUnavailable)
		assert.Equal(t, http.StatusServiceUnavailable, apperror.StatusCode(err))
	})

	t.Run("timeout is 503", func(t *testing.T) {
		err := storageError("list slots", context.DeadlineExceeded)
		assert.ErrorIs(t, err, ErrStorageUnavailable)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("sql error keeps its cause", func(t *testing.T) {
		pgErr := &pgconn.PgError{Code: pgerrcode.InvalidTextRepresentation}
		err := storageError("get slot", pgErr)
		assert.False(t, errors.Is(err, ErrStorageUnavailable))

		var got *pgconn.PgError
		assert.True(t, errors.As(err, &got))
	})
}

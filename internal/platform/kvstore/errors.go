package kvstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var ErrRetryable = errors.New("kvstore: retryable")

// MapError normalizes driver errors: missing rows become ErrNotFound and
// transient Postgres failures are tagged with ErrRetryable.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrRetryable):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "40001", "40P01", "55P03", "23505":
			// serialization, deadlock, lock_not_available, and a unique
			// violation from two concurrent first inserts of the same key
			return fmt.Errorf("%s: %w: %w", op, ErrRetryable, err)
		}
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "connection reset") {
		return fmt.Errorf("%s: %w: %w", op, ErrRetryable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

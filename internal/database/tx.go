package database

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/lib/pq"
)

// ErrRetriesExhausted is returned when a serializable transaction keeps
// colliding with concurrent writers past the retry budget.
var ErrRetriesExhausted = errors.New("transaction retries exhausted")

// IsSerializationFailure reports whether err is a Postgres write-write
// conflict that is safe to retry: serialization_failure (40001) or
// deadlock_detected (40P01).
func IsSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}

// RunSerializable executes fn inside a serializable transaction, retrying
// on conflict up to maxRetries with a linear backoff. Errors raised by fn
// that are not serialization failures abort immediately; the transaction
// is rolled back unless fn completes without error.
func RunSerializable(ctx context.Context, db *sql.DB, maxRetries int, backoff time.Duration, fn func(tx *sql.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * backoff):
			}
		}

		tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
		if err != nil {
			return err
		}

		if err := fn(tx); err != nil {
			tx.Rollback()
			if IsSerializationFailure(err) {
				log.Printf("[TX] Serialization conflict (attempt %d/%d), retrying", attempt+1, maxRetries+1)
				lastErr = err
				continue
			}
			return err
		}

		if err := tx.Commit(); err != nil {
			if IsSerializationFailure(err) {
				log.Printf("[TX] Commit conflict (attempt %d/%d), retrying", attempt+1, maxRetries+1)
				lastErr = err
				continue
			}
			return err
		}
		return nil
	}
	return errors.Join(ErrRetriesExhausted, lastErr)
}

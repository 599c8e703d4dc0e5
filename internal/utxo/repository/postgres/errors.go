package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrRetriesExceeded is returned when a transaction kept failing with
// serialization errors.
var ErrRetriesExceeded = errors.New("db tx retries exceeded")

// StorageError wraps any failure of a storage operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// SerializationError marks a failure that goes away when the transaction is
// run again.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string { return e.Err.Error() }

func (e *SerializationError) Unwrap() error { return e.Err }

// IsSerializationError reports whether err is worth retrying.
func IsSerializationError(err error) bool {
	var target *SerializationError
	return errors.As(err, &target)
}

// retryableMessages catch serialization failures whose *pgconn.PgError was
// lost by an intermediate wrapper.
var retryableMessages = []string{
	"could not serialize access",
	"deadlock detected",
	"current transaction is aborted",
}

func mapError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.SerializationFailure,
			pgerrcode.DeadlockDetected,
			pgerrcode.InFailedSQLTransaction:
			return &SerializationError{Err: err}
		default:
			return err
		}
	}

	for _, msg := range retryableMessages {
		if strings.Contains(err.Error(), msg) {
			return &SerializationError{Err: err}
		}
	}
	return err
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

package repo

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// Category classifies row-level store failures so the apply loop can decide
// to skip and continue without sniffing driver error text.
type Category string

const (
	CategoryDuplicateKey Category = "duplicate_key"
	CategoryTruncation   Category = "value_truncation"
	CategoryNotNull      Category = "not_null_violation"
	CategoryConnection   Category = "connection"
	CategoryUnknown      Category = "unknown"
)

// StoreError carries the category alongside the table and driver detail.
type StoreError struct {
	Category Category
	Table    string
	Detail   string
	Err      error
}

func (e *StoreError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s on %s (%s): %v", e.Category, e.Table, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s on %s: %v", e.Category, e.Table, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Recoverable reports whether the apply loop may skip this row and continue.
// Connection loss aborts the batch; everything else is a per-row problem.
func (e *StoreError) Recoverable() bool {
	return e.Category != CategoryConnection
}

// classify wraps a driver error with its typed category. SQLSTATE codes come
// from the server via pgconn; network-level failures map to connection.
func classify(table string, err error) *StoreError {
	se := &StoreError{Category: CategoryUnknown, Table: table, Err: err}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		se.Detail = pgErr.ColumnName
		if se.Detail == "" {
			se.Detail = pgErr.ConstraintName
		}
		switch {
		case pgErr.Code == pgerrcode.UniqueViolation:
			se.Category = CategoryDuplicateKey
		case pgErr.Code == pgerrcode.StringDataRightTruncationDataException,
			pgErr.Code == pgerrcode.NumericValueOutOfRange:
			se.Category = CategoryTruncation
		case pgErr.Code == pgerrcode.NotNullViolation:
			se.Category = CategoryNotNull
		case pgerrcode.IsConnectionException(pgErr.Code):
			se.Category = CategoryConnection
		}
		return se
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		se.Category = CategoryConnection
	}
	return se
}

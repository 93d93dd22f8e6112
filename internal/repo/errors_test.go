package repo

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestClassifyKnownSQLStates(t *testing.T) {
	cases := []struct {
		code string
		want Category
	}{
		{"23505", CategoryDuplicateKey},
		{"22001", CategoryTruncation},
		{"22003", CategoryTruncation},
		{"23502", CategoryNotNull},
		{"08006", CategoryConnection},
		{"42601", CategoryUnknown}, // syntax error stays unknown
	}

	for _, tc := range cases {
		err := classify("fire_incident_units", &pgconn.PgError{Code: tc.code, ColumnName: "status"})
		if err.Category != tc.want {
			t.Fatalf("code %s classified %s, want %s", tc.code, err.Category, tc.want)
		}
		if err.Table != "fire_incident_units" {
			t.Fatalf("table lost: %+v", err)
		}
	}
}

func TestClassifyNonDriverError(t *testing.T) {
	err := classify("raw_ems", errors.New("boom"))
	if err.Category != CategoryUnknown {
		t.Fatalf("category = %s, want unknown", err.Category)
	}
	if !err.Recoverable() {
		t.Fatalf("unknown errors are per-row, must be recoverable")
	}
}

func TestConnectionErrorsNotRecoverable(t *testing.T) {
	err := classify("raw_ems", &pgconn.PgError{Code: "08006"})
	if err.Recoverable() {
		t.Fatalf("connection loss must abort the batch")
	}
}

func TestStoreErrorUnwrap(t *testing.T) {
	inner := &pgconn.PgError{Code: "23505"}
	err := classify("ems_incident_units", inner)

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		t.Fatalf("expected to unwrap to the driver error")
	}
}

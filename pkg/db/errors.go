package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Postgres SQLSTATE codes the reconciliation pipeline treats as capability
// signals rather than failures.
const (
	sqlstateUniqueViolation  = "23505"
	sqlstateUndefinedColumn  = "42703"
	sqlstateInvalidColumnRef = "42P10"
	sqlstateUndefinedObject  = "42704"
)

func sqlstate(err error) string {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// IsUniqueViolation reports whether the provided error is a unique constraint
// violation. When constraintName is given, the constraint text must also
// appear in the error message.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if constraintName != "" && !strings.Contains(msg, constraintName) {
		return false
	}
	if sqlstate(err) == sqlstateUniqueViolation {
		return true
	}
	// sqlite (tests) and generic driver strings
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

// IsUndefinedColumn reports whether err signals the schema is missing a
// column. Used to flip optional-column capability flags off.
func IsUndefinedColumn(err error) bool {
	if err == nil {
		return false
	}
	switch sqlstate(err) {
	case sqlstateUndefinedColumn, sqlstateUndefinedObject:
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "no such column") ||
		(strings.Contains(msg, "column") && strings.Contains(msg, "does not exist"))
}

// IsInvalidConflictTarget reports whether err means the ON CONFLICT target has
// no backing unique constraint. Used to fall back to check-then-insert grants.
func IsInvalidConflictTarget(err error) bool {
	if err == nil {
		return false
	}
	if sqlstate(err) == sqlstateInvalidColumnRef {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "ON CONFLICT") &&
		strings.Contains(msg, "no unique or exclusion constraint")
}

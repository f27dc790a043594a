package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// pqDriverName is the database/sql name lib/pq registers itself under.
const pqDriverName = "postgres"

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"

	sqliteUniqueFailed = "UNIQUE constraint failed:"
)

// IsUniqueViolation reports whether the provided error references a Postgres
// unique violation constraint. When constraintName is provided, the constraint
// must match as well. SQLite errors carry no constraint name, only the
// offending table.column, so columns are matched against those instead.
func IsUniqueViolation(err error, constraintName string, columns ...string) bool {
	if err == nil {
		return false
	}
	if code, constraint, ok := pgCode(err); ok {
		if code != pgUniqueViolation {
			return false
		}
		return constraintName == "" || constraint == constraintName
	}
	msg := err.Error()
	if strings.Contains(msg, sqliteUniqueFailed) {
		if len(columns) == 0 {
			return constraintName == "" || strings.Contains(msg, constraintName)
		}
		detail := msg[strings.Index(msg, sqliteUniqueFailed)+len(sqliteUniqueFailed):]
		for _, failed := range strings.Split(detail, ",") {
			fields := strings.Fields(failed)
			if len(fields) == 0 {
				continue
			}
			for _, column := range columns {
				if fields[0] == column {
					return true
				}
			}
		}
		return false
	}
	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	return strings.Contains(msg, "duplicate key value")
}

// IsRetryable reports serialization failures, deadlocks and lock timeouts.
func IsRetryable(err error) bool {
	code, _, ok := pgCode(err)
	if !ok {
		return false
	}
	switch code {
	case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
		return true
	}
	return false
}

func pgCode(err error) (string, string, bool) {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code, pgxErr.ConstraintName, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint, true
	}
	return "", "", false
}

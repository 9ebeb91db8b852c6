package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
	pgFKViolation     = "23503"
)

// IsUniqueViolation reports whether err is a Postgres unique violation. When
// constraintName is set only that constraint matches.
func IsUniqueViolation(err error, constraintName string) bool {
	return matchesPgCode(err, pgUniqueViolation, constraintName, "duplicate key value", "UNIQUE constraint failed")
}

// IsCheckViolation reports whether err is a CHECK constraint failure.
func IsCheckViolation(err error, constraintName string) bool {
	return matchesPgCode(err, pgCheckViolation, constraintName, "violates check constraint", "CHECK constraint failed")
}

// IsForeignKeyViolation reports whether err is a foreign key failure.
func IsForeignKeyViolation(err error) bool {
	return matchesPgCode(err, pgFKViolation, "", "violates foreign key constraint", "FOREIGN KEY constraint failed")
}

// IsNotFound reports gorm's record-not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func matchesPgCode(err error, code, constraintName string, fallbacks ...string) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != code {
			return false
		}
		return constraintName == "" || pgErr.ConstraintName == constraintName
	}

	// sqlite and wrapped driver errors only expose the message.
	msg := err.Error()
	if constraintName != "" && !strings.Contains(msg, constraintName) {
		return false
	}
	for _, fb := range fallbacks {
		if strings.Contains(msg, fb) {
			return true
		}
	}
	return false
}

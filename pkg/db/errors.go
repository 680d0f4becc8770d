package db

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const (
	sqlStateUniqueViolation      = "23505"
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// IsUniqueViolation reports whether the provided error references a Postgres
// unique violation constraint. When constraintName is provided, the helper looks
// for the constraint text in the error message.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	if code, constraint, ok := pgState(err); ok {
		if code != sqlStateUniqueViolation {
			return false
		}
		return constraintName == "" || constraint == constraintName
	}
	msg := err.Error()
	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
}

// IsConflict reports whether err is a concurrency conflict that a fresh
// transaction attempt may resolve.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	if code, _, ok := pgState(err); ok {
		switch code {
		case sqlStateSerializationFailure, sqlStateDeadlockDetected, sqlStateUniqueViolation:
			return true
		}
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "unique constraint failed")
}

// ClassifyError maps a raw store error onto the typed taxonomy. Typed errors
// pass through untouched, conflicts become CodeTxConflict and everything else
// becomes CodePersistence.
func ClassifyError(err error, message string) error {
	if err == nil {
		return nil
	}
	if typed := pkgerrors.As(err); typed != nil {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, message)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, message)
	}
	if IsConflict(err) {
		return pkgerrors.Wrap(pkgerrors.CodeTxConflict, err, message)
	}
	return pkgerrors.Wrap(pkgerrors.CodePersistence, err, message)
}

func pgState(err error) (code, constraint string, ok bool) {
	pg, ok := pkgerrors.Postgres(err)
	return pg.Code, pg.Constraint, ok
}

package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ConstraintKind classifies an integrity violation raised by storage.
type ConstraintKind int

const (
	NotConstraint ConstraintKind = iota
	UniqueViolation
	ForeignKeyViolation
	OtherConstraint
)

func (k ConstraintKind) String() string {
	switch k {
	case UniqueViolation:
		return "unique"
	case ForeignKeyViolation:
		return "foreign_key"
	case OtherConstraint:
		return "constraint"
	}
	return "none"
}

// ClassifyConstraint inspects driver errors from PostgreSQL and SQLite.
func ClassifyConstraint(err error) ConstraintKind {
	if err == nil {
		return NotConstraint
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return UniqueViolation
		case "23503":
			return ForeignKeyViolation
		}
		// class 23 is integrity_constraint_violation
		if len(pgErr.Code) == 5 && pgErr.Code[:2] == "23" {
			return OtherConstraint
		}
		return NotConstraint
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return UniqueViolation
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return ForeignKeyViolation
		}
		if liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
			return OtherConstraint
		}
	}
	return NotConstraint
}

// IsConstraint reports whether err is any integrity violation.
func IsConstraint(err error) bool {
	return ClassifyConstraint(err) != NotConstraint
}

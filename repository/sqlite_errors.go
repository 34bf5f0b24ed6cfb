package repository

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

func sqliteExtended(err error) (sqlite3.ErrNoExtended, bool) {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return 0, false
	}
	return se.ExtendedCode, true
}

func isUniqueViolation(err error) bool {
	code, ok := sqliteExtended(err)
	return ok && (code == sqlite3.ErrConstraintUnique || code == sqlite3.ErrConstraintPrimaryKey)
}

// isForeignKeyViolation also matches ON DELETE RESTRICT, which SQLite reports
// as SQLITE_CONSTRAINT_TRIGGER.
func isForeignKeyViolation(err error) bool {
	code, ok := sqliteExtended(err)
	return ok && (code == sqlite3.ErrConstraintForeignKey || code == sqlite3.ErrConstraintTrigger)
}

func isCheckViolation(err error) bool {
	code, ok := sqliteExtended(err)
	return ok && code == sqlite3.ErrConstraintCheck
}

package database

import (
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// driver error codes
const (
	mysqlDuplicateEntry   = 1062
	mysqlRowIsReferenced  = 1451
	mysqlNoReferencedRow  = 1452
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// IsUniqueViolation reports whether `err` was caused by a UNIQUE constraint.
func IsUniqueViolation(err error) bool {
	switch e := errors.Cause(err).(type) {
	case *mysql.MySQLError:
		return e.Number == mysqlDuplicateEntry
	case *pq.Error:
		return string(e.Code) == pgUniqueViolation
	}
	return false
}

// IsForeignKeyViolation reports whether `err` was caused by a FOREIGN KEY constraint, either a
// missing referenced row or a delete of a still referenced one.
func IsForeignKeyViolation(err error) bool {
	switch e := errors.Cause(err).(type) {
	case *mysql.MySQLError:
		return e.Number == mysqlRowIsReferenced || e.Number == mysqlNoReferencedRow
	case *pq.Error:
		return string(e.Code) == pgForeignKeyViolation
	}
	return false
}

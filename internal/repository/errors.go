// Package repository holds the MySQL data access layer.  Repositories
// return the sentinel errors below so that services and handlers can tell
// failure scenarios apart without inspecting driver errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the addressed row does not exist (or is not
// in the state the caller asked for).
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when an insert or update would duplicate a
// user's email address.
var ErrEmailExists = errors.New("email already exists")

// ErrNotDraft is returned when publishing an item that is already published.
var ErrNotDraft = errors.New("item is not a draft")

const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

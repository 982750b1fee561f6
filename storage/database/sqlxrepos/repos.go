// Package sqlxrepos implements the core repository ports on PostgreSQL
// via sqlx.
package sqlxrepos

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
)

// ext picks the executor for a call: an explicitly passed transaction or
// executor wins over the repo's own handle.
func ext(db *sqlx.DB, exec []core.DBExecutor) sqlx.ExtContext {
	if len(exec) > 0 {
		if e, ok := exec[0].(sqlx.ExtContext); ok {
			return e
		}
	}
	return db
}

// trapNoRowsErr converts sql.ErrNoRows to the given domain sentinel.
func trapNoRowsErr(err, notFound error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return errors.WithStack(err)
}

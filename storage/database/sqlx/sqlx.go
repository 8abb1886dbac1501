// Package sqlxrepos implements the domain repositories on PostgreSQL with sqlx.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/campusmate/core"
)

// trapNoRowsErr maps psql "no rows" err to `notFound`
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// namedGet runs a named query against a struct or map and scans the single resulting row into `dest`.
func namedGet(ctx context.Context, db *sqlx.DB, dest interface{}, query string, arg interface{}) error {
	q, args, err := db.BindNamed(query, arg)
	if err != nil {
		return err
	}
	return db.GetContext(ctx, dest, q, args...)
}

func namedExec(ctx context.Context, db *sqlx.DB, query string, arg interface{}) (sql.Result, error) {
	q, args, err := db.BindNamed(query, arg)
	if err != nil {
		return nil, err
	}
	return db.ExecContext(ctx, q, args...)
}

// inQuery expands "IN (?)" clauses of `query`, then rebinds it for `db`.
func inQuery(db *sqlx.DB, query string, args ...interface{}) (string, []interface{}, error) {
	q, args, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, err
	}
	return db.Rebind(q), args, nil
}

func rowsAffected(res sql.Result) (int, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// whereBuilder joins "?" conditions with AND.
type whereBuilder struct {
	conds []string
	args  []interface{}
}

func (wb *whereBuilder) add(cond string, args ...interface{}) {
	wb.conds = append(wb.conds, cond)
	wb.args = append(wb.args, args...)
}

func (wb *whereBuilder) String() string {
	if len(wb.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(wb.conds, " AND ")
}

// orderByClause keeps the orderings on `allowed` columns (API field -> column) and falls back to `def`.
func orderByClause(ordering []core.DBOrdering, allowed map[string]string, def string) string {
	cols := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		col, ok := allowed[strings.ToLower(ord.Field)]
		if !ok {
			continue
		}
		cols = append(cols, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
	}
	if len(cols) == 0 {
		return " ORDER BY " + def
	}
	return " ORDER BY " + strings.Join(cols, ", ")
}

// trapForeignKeyErr maps psql foreign key violations to `notFound`
func trapForeignKeyErr(err error, notFound error, msg string) error {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == "23503" {
		return notFound
	}
	return errors.Wrap(err, msg)
}

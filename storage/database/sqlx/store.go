// Package sqlxrepos implements the domain repositories on MySQL or PostgreSQL, using sqlx and squirrel.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/storage/database"
)

var errReferenced = core.NewConflictError("the record references, or is referenced by, another record")

// store holds what every repository shares: the DB handle and a statement builder using the
// placeholders of the driver.
type store struct {
	db *sqlx.DB
	sb sq.StatementBuilderType
}

func newStore(db *sqlx.DB) store {
	sb := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	if db.DriverName() == database.EnginePostgres {
		sb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return store{db: db, sb: sb}
}

func (s store) isPostgres() bool { return s.db.DriverName() == database.EnginePostgres }

// withTx runs `fn` inside a transaction, committed when `fn` succeeds.
func (s store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

func (s store) get(ctx context.Context, exec sqlx.QueryerContext, dest interface{}, q sq.Sqlizer) error {
	query, args, err := q.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return sqlx.GetContext(ctx, exec, dest, query, args...)
}

func (s store) sel(ctx context.Context, exec sqlx.QueryerContext, dest interface{}, q sq.Sqlizer) error {
	query, args, err := q.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return sqlx.SelectContext(ctx, exec, dest, query, args...)
}

func (s store) exec(ctx context.Context, exec sqlx.ExecerContext, q sq.Sqlizer) (sql.Result, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	return exec.ExecContext(ctx, query, args...)
}

// insert runs `q` and returns the ID of the inserted row.
func (s store) insert(ctx context.Context, exec sqlx.ExtContext, q sq.InsertBuilder) (int64, error) {
	if s.isPostgres() {
		var id int64
		err := s.get(ctx, exec, &id, q.Suffix("RETURNING id"))
		return id, err
	}
	res, err := s.exec(ctx, exec, q)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// deleteByID deletes the row `id` of `table`, returning `notFound` when there is none.
func (s store) deleteByID(ctx context.Context, exec sqlx.ExecerContext, table string, id int64, notFound error) error {
	res, err := s.exec(ctx, exec, s.sb.Delete(table).Where(sq.Eq{"id": id}))
	if err != nil {
		return trapConstraint(err, errReferenced, "deleting from "+table)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound
	}
	return nil
}

// updateByID sets `values` on the row `id` of `table`, returning `notFound` when there is none and
// `conflict` on unique violations.
func (s store) updateByID(
	ctx context.Context,
	exec sqlx.ExecerContext,
	table string,
	id int64,
	values map[string]interface{},
	notFound, conflict error,
) error {
	res, err := s.exec(ctx, exec, s.sb.Update(table).SetMap(values).Where(sq.Eq{"id": id}))
	if err != nil {
		return trapConstraint(err, conflict, "updating "+table)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound
	}
	return nil
}

// changes holds the columns written by a partial update.
type changes map[string]interface{}

func newChanges(updatedAt time.Time) changes { return changes{"updated_at": updatedAt} }

// setIf records `column` when the caller provided `v`.
func setIf[T any](c changes, column string, v *T) {
	if v != nil {
		c[column] = *v
	}
}

func (s store) count(ctx context.Context, q sq.SelectBuilder) (int, error) {
	var n int
	err := s.get(ctx, s.db, &n, q)
	return n, err
}

func (s store) countWhere(ctx context.Context, table string, pred interface{}) (int, error) {
	return s.count(ctx, s.sb.Select("COUNT(*)").From(table).Where(pred))
}

// existsWhere reports whether a row of `table` matches `pred`, ignoring the row `excludeID`.
func (s store) existsWhere(ctx context.Context, table string, pred interface{}, excludeID int64) (bool, error) {
	q := s.sb.Select("COUNT(*)").From(table).Where(pred)
	if excludeID > 0 {
		q = q.Where(sq.NotEq{"id": excludeID})
	}
	n, err := s.count(ctx, q)
	return n > 0, err
}

// page applies the ordering and the limit/offset of `pq` to `q`.
func page(q sq.SelectBuilder, pq core.PageQuery, ord core.DBOrdering) sq.SelectBuilder {
	return q.OrderBy(ord.String()).Limit(uint64(pq.Limit)).Offset(uint64(pq.Offset()))
}

// search matches `term` case-insensitively against any of `cols`.
func search(term string, cols ...string) sq.Sqlizer {
	val := "%" + strings.ToLower(term) + "%"
	or := make(sq.Or, 0, len(cols))
	for _, col := range cols {
		or = append(or, sq.Expr("LOWER("+col+") LIKE ?", val))
	}
	return or
}

// trapNoRows maps sql.ErrNoRows to `notFound`.
func trapNoRows(err error, notFound error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// trapConstraint maps unique violations to `conflict` and foreign key violations to errReferenced.
func trapConstraint(err error, conflict error, msg string) error {
	switch {
	case database.IsUniqueViolation(err):
		return conflict
	case database.IsForeignKeyViolation(err):
		return errReferenced
	}
	return errors.Wrap(err, msg)
}

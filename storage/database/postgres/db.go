// Package pgrepos implements the repositories on PostgreSQL with sqlx and squirrel.
package pgrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/theepangnani/emai-dev-03-sub000/core"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type txKey struct{}

// Transactor carries a *sqlx.Tx in the context. Repositories pick it up through executor.
type Transactor struct {
	db        *sqlx.DB
	savepoint uint64
}

var _ core.Transactor = (*Transactor)(nil)

func NewTransactor(db *sqlx.DB) *Transactor {
	return &Transactor{db: db}
}

func txFrom(ctx context.Context) (*sqlx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sqlx.Tx)
	return tx, ok
}

func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := txFrom(ctx); ok {
		return fn(ctx)
	}

	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = errors.Wrap(tx.Commit(), "committing transaction")
	}()
	return fn(context.WithValue(ctx, txKey{}, tx))
}

func (t *Transactor) WithinSavepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, ok := txFrom(ctx)
	if !ok {
		return t.WithinTx(ctx, fn)
	}

	name := fmt.Sprintf("sp_%d", atomic.AddUint64(&t.savepoint, 1))
	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return errors.Wrap(err, "creating savepoint")
	}
	if err := fn(ctx); err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return errors.Wrap(rbErr, "rolling back to savepoint")
		}
		return err
	}
	_, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
	return errors.Wrap(err, "releasing savepoint")
}

// executor returns the transaction carried by ctx, if any, or db.
func executor(ctx context.Context, db *sqlx.DB) sqlx.ExtContext {
	if tx, ok := txFrom(ctx); ok {
		return tx
	}
	return db
}

// trapNoRowsErr maps "no rows" errors to notFound.
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func isUniqueViolation(err error) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && pqErr.Code == "23505"
}

func ilike(search string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(search) + "%"
}

// orderBy applies the orderings on `allowed` fields, or def when none remains.
func orderBy(b sq.SelectBuilder, ordering []core.DBOrdering, def string, allowed ...string) sq.SelectBuilder {
	ordering = core.CleanOrderings(ordering, allowed...)
	if len(ordering) == 0 {
		return b.OrderBy(def)
	}
	for _, ord := range ordering {
		b = b.OrderBy(ord.String())
	}
	return b
}

func selectAll(ctx context.Context, exec sqlx.ExtContext, dest interface{}, b sq.SelectBuilder) error {
	q, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return sqlx.SelectContext(ctx, exec, dest, q, args...)
}

func selectOne(ctx context.Context, exec sqlx.ExtContext, dest interface{}, b sq.SelectBuilder) error {
	q, args, err := b.Limit(1).ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return sqlx.GetContext(ctx, exec, dest, q, args...)
}

func execute(ctx context.Context, exec sqlx.ExtContext, b sq.Sqlizer) (int64, error) {
	q, args, err := b.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := exec.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func exists(ctx context.Context, exec sqlx.ExtContext, b sq.SelectBuilder) (bool, error) {
	q, args, err := b.Prefix("SELECT EXISTS (").Suffix(")").ToSql()
	if err != nil {
		return false, errors.Wrap(err, "building query")
	}
	var found bool
	err = sqlx.GetContext(ctx, exec, &found, q, args...)
	return found, err
}

// nonNil turns a nil slice into an empty one so that sq.Eq matches nothing instead of NULL.
func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

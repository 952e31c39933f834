package core

import (
	"context"
	"database/sql"
	"regexp"
)

type (
	DBExecutor interface {
		ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
		QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
		QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	}

	// Transactor scopes work to a single database transaction carried by the context.
	Transactor interface {
		// WithinTx runs fn inside a transaction. Nested calls join the outer transaction.
		WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
		// WithinSavepoint runs fn inside a savepoint of the current transaction.
		// A failing fn only rolls back to the savepoint; the outer transaction stays usable.
		WithinSavepoint(ctx context.Context, fn func(ctx context.Context) error) error
	}
)

var orderingFieldRegex = regexp.MustCompile(`^[a-z_]+$`)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// CleanOrderings drops orderings on fields not in `allowed`.
func CleanOrderings(ordering []DBOrdering, allowed ...string) []DBOrdering {
	cleaned := make([]DBOrdering, 0, len(ordering))
	for _, ord := range ordering {
		if orderingFieldRegex.MatchString(ord.Field) && ContainsString(allowed, ord.Field) {
			cleaned = append(cleaned, ord)
		}
	}
	return cleaned
}

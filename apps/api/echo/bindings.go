package echoapi

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/theepangnani/emai-dev-03-sub000/core"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// validatable is implemented by the request payloads cleaning themselves before validation.
type validatable interface {
	Validate(validate *validator.Validate) error
}

// bindAndValidate binds the request into data and validates it.
func bindAndValidate(ctx echo.Context, validate *validator.Validate, data validatable) error {
	if err := ctx.Bind(data); err != nil {
		return err
	}
	return data.Validate(validate)
}

// handlerCtx returns the request context and the authenticated user.
func handlerCtx(ctx echo.Context) (context.Context, user.User, error) {
	usr, err := getContextUser(ctx)
	if err != nil {
		return nil, user.User{}, errors.Wrap(err, "getting context user")
	}
	return ctx.Request().Context(), usr, nil
}

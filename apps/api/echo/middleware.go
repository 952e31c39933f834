package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/theepangnani/emai-dev-03-sub000/core/audit"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
)

// userMiddleware loads the token's user into the context. Deleted or deactivated users are rejected.
// The request context carries the client IP for audit entries.
func userMiddleware(svc user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.Audience != tokenAudience {
				return errUnauthorized
			}
			req := ctx.Request()
			usr, err := svc.GetByID(req.Context(), claims.Subject)
			if err != nil {
				if errors.Cause(err) == user.ErrNotFound {
					return errUnauthorized
				}
				return errors.Wrap(err, "finding user by ID")
			}
			if !usr.IsActive {
				return errAccountDeactivated
			}
			ctx.Set(contextUserKey, usr)
			ctx.SetRequest(req.WithContext(audit.WithIP(req.Context(), ctx.RealIP())))
			return next(ctx)
		}
	}
}

// roleMiddleware only lets through users whose active role is one of roles.
func roleMiddleware(roles ...user.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			for _, r := range roles {
				if usr.ActingAs(r) {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

func adminMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(user.RoleAdmin)
}

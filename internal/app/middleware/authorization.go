package middleware

import (
	"context"
	"errors"

	"autoparc/internal/app/commands"
	"autoparc/internal/app/queries"
)

var ErrForbidden = errors.New("middleware: forbidden for this role")

type Authorizer interface {
	Authorize(ctx context.Context, message any) error
}

// RoleRestricted is implemented by messages limited to a single role.
type RoleRestricted interface {
	RequiredRole() string
	ActorRole() string
}

// RoleAuthorizer enforces RoleRestricted messages.
type RoleAuthorizer struct{}

func (RoleAuthorizer) Authorize(_ context.Context, message any) error {
	r, ok := message.(RoleRestricted)
	if !ok || r.RequiredRole() == "" {
		return nil
	}
	if r.ActorRole() != r.RequiredRole() {
		return ErrForbidden
	}
	return nil
}

func Authorization(a Authorizer) CommandMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := a.Authorize(ctx, cmd); err != nil {
				return nil, err
			}
			return nextFn(ctx, cmd)
		})
	}
}

func QueryAuthorization(a Authorizer) QueryMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := a.Authorize(ctx, q); err != nil {
				return nil, err
			}
			return nextFn(ctx, q)
		})
	}
}

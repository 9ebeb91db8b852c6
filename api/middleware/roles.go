package middleware

import (
	"context"
	"net/http"

	"github.com/angelmondragon/partsmarket-backend/api/responses"
	"github.com/angelmondragon/partsmarket-backend/internal/rbac"
	"github.com/angelmondragon/partsmarket-backend/pkg/db/models"
	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/partsmarket-backend/pkg/errors"
	"github.com/angelmondragon/partsmarket-backend/pkg/logger"
)

// Authorizer evaluates an RBAC requirement for a user.
type Authorizer interface {
	Authorize(ctx context.Context, user *models.User, req rbac.Requirement) error
}

// RequireGlobal admits users holding every listed global role after implication.
func RequireGlobal(authz Authorizer, logg *logger.Logger, roles ...enums.GlobalRole) func(http.Handler) http.Handler {
	return gate(authz, logg, func(*http.Request) (rbac.Requirement, error) {
		return rbac.RequireGlobal(roles...), nil
	})
}

func gate(authz Authorizer, logg *logger.Logger, build func(*http.Request) (rbac.Requirement, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if authz == nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "authorizer unavailable"))
				return
			}
			user := UserFromContext(ctx)
			if user == nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
				return
			}
			req, err := build(r)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if err := authz.Authorize(ctx, user, req); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if info := accessLogFrom(ctx); info != nil && req.OrgID != nil {
				info.orgID = req.OrgID.String()
			}
			next.ServeHTTP(w, r)
		})
	}
}

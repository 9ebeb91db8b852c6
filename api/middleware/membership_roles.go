package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/partsmarket-backend/internal/rbac"
	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/partsmarket-backend/pkg/errors"
	"github.com/angelmondragon/partsmarket-backend/pkg/logger"
)

// RequireOrg admits members of the organization named by orgParam (a chi URL
// param, falling back to the query string) holding every listed tenant role.
func RequireOrg(authz Authorizer, orgParam string, logg *logger.Logger, roles ...enums.OrgRole) func(http.Handler) http.Handler {
	return gate(authz, logg, func(r *http.Request) (rbac.Requirement, error) {
		raw := strings.TrimSpace(chi.URLParam(r, orgParam))
		if raw == "" {
			raw = strings.TrimSpace(r.URL.Query().Get(orgParam))
		}
		if raw == "" {
			return rbac.RequireOrg(nil, roles...), nil
		}
		orgID, err := uuid.Parse(raw)
		if err != nil {
			return rbac.Requirement{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid organization id").
				WithDetails(map[string]any{"field": orgParam})
		}
		return rbac.RequireOrg(&orgID, roles...), nil
	})
}

// OrgIDParam returns the organization id already validated by RequireOrg.
func OrgIDParam(r *http.Request, orgParam string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, orgParam))
	if raw == "" {
		raw = strings.TrimSpace(r.URL.Query().Get(orgParam))
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid organization id")
	}
	return id, nil
}

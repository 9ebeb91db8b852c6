package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/partsmarket-backend/api/responses"
	"github.com/angelmondragon/partsmarket-backend/api/validators"
	"github.com/angelmondragon/partsmarket-backend/internal/users"
	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
	"github.com/angelmondragon/partsmarket-backend/pkg/logger"
	"github.com/angelmondragon/partsmarket-backend/pkg/pagination"
)

const userIDParam = "user_id"

// AdminUserService is the subset of the users service the admin routes need.
type AdminUserService interface {
	List(ctx context.Context, query users.ListQuery) (*users.UserList, error)
	BumpAuthVersion(ctx context.Context, id uuid.UUID) (int, error)
	SetGlobalRoles(ctx context.Context, id uuid.UUID, roles []enums.GlobalRole) (int, error)
	SetBanned(ctx context.Context, id uuid.UUID, banned bool) (int, error)
}

type authVersionResponse struct {
	UserID      uuid.UUID `json:"user_id"`
	AuthVersion int       `json:"auth_version"`
}

type setRolesRequest struct {
	Roles []enums.GlobalRole `json:"roles" validate:"required,min=1,dive,required"`
}

type setBannedRequest struct {
	Banned *bool `json:"banned" validate:"required"`
}

// AdminListUsers pages through accounts, optionally filtered by ban state and
// a username or email fragment.
func AdminListUsers(svc AdminUserService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "user service")
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		query := users.ListQuery{
			ListFilter: users.ListFilter{Search: validators.SanitizeString(r.URL.Query().Get("search"), maxSearchLength)},
			Params:     pagination.Params{Limit: limit, Cursor: strings.TrimSpace(r.URL.Query().Get("cursor"))},
		}
		if strings.TrimSpace(r.URL.Query().Get("banned")) != "" {
			banned, err := validators.ParseQueryBool(r, "banned", false)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			query.Banned = &banned
		}

		list, err := svc.List(r.Context(), query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// AdminRevokeSessions invalidates every token issued to the user.
func AdminRevokeSessions(svc AdminUserService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "user service")
			return
		}
		userID, err := validators.ParseUUIDParam(r, userIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		version, err := svc.BumpAuthVersion(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, authVersionResponse{UserID: userID, AuthVersion: version})
	}
}

// AdminSetUserRoles replaces the user's global roles; existing tokens are revoked.
func AdminSetUserRoles(svc AdminUserService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "user service")
			return
		}
		userID, err := validators.ParseUUIDParam(r, userIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body setRolesRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		version, err := svc.SetGlobalRoles(r.Context(), userID, body.Roles)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, authVersionResponse{UserID: userID, AuthVersion: version})
	}
}

func AdminSetUserBanned(svc AdminUserService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "user service")
			return
		}
		userID, err := validators.ParseUUIDParam(r, userIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body setBannedRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		version, err := svc.SetBanned(r.Context(), userID, *body.Banned)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, authVersionResponse{UserID: userID, AuthVersion: version})
	}
}

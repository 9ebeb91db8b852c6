package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/partsmarket-backend/api/middleware"
	"github.com/angelmondragon/partsmarket-backend/api/responses"
	pkgerrors "github.com/angelmondragon/partsmarket-backend/pkg/errors"
	"github.com/angelmondragon/partsmarket-backend/pkg/logger"
)

// requireUserID writes a 401 and returns false when the request is anonymous.
func requireUserID(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (uuid.UUID, bool) {
	userID, ok := middleware.AuthenticatedUserID(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
		return uuid.Nil, false
	}
	return userID, true
}

func serviceUnavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger, name string) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, name+" unavailable"))
}

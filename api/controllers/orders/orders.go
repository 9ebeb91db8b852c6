package orders

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/partsmarket-backend/api/middleware"
	"github.com/angelmondragon/partsmarket-backend/api/responses"
	"github.com/angelmondragon/partsmarket-backend/api/validators"
	internalorders "github.com/angelmondragon/partsmarket-backend/internal/orders"
	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/partsmarket-backend/pkg/errors"
	"github.com/angelmondragon/partsmarket-backend/pkg/logger"
	"github.com/angelmondragon/partsmarket-backend/pkg/pagination"
)

const maxSearchLength = 120

// List returns the caller's orders filtered by payment status and search term.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		userID, ok := middleware.AuthenticatedUserID(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		query, err := buildListQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListUserOrders(r.Context(), userID, query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// Detail returns one order owned by the caller.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		userID, ok := middleware.AuthenticatedUserID(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "order_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetOrder(r.Context(), userID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func buildListQuery(r *http.Request) (internalorders.ListQuery, error) {
	var query internalorders.ListQuery

	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return query, err
	}
	query.Limit = limit
	query.Cursor = strings.TrimSpace(r.URL.Query().Get("cursor"))
	query.Search = validators.SanitizeString(r.URL.Query().Get("search"), maxSearchLength)

	for _, raw := range validators.ParseQueryList(r, "statuses") {
		status, err := enums.ParsePaymentStatus(raw)
		if err != nil {
			return query, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter").WithDetails(map[string]any{"value": raw})
		}
		query.Statuses = append(query.Statuses, status)
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("order_by")); raw != "" {
		orderBy := internalorders.OrderBy(strings.ToLower(raw))
		if !orderBy.IsValid() {
			return query, pkgerrors.New(pkgerrors.CodeValidation, "invalid order_by").WithDetails(map[string]any{"value": raw})
		}
		query.OrderBy = orderBy
	}
	return query, nil
}

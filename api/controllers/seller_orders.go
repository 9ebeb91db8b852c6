package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/partsmarket-backend/api/responses"
	"github.com/angelmondragon/partsmarket-backend/api/validators"
	"github.com/angelmondragon/partsmarket-backend/internal/fulfillment"
	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
	"github.com/angelmondragon/partsmarket-backend/pkg/logger"
	"github.com/angelmondragon/partsmarket-backend/pkg/pagination"
)

const orderItemIDParam = "order_item_id"

// SellerOrdersList pages the order items sold by the caller's organizations.
func SellerOrdersList(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "fulfillment service")
			return
		}
		userID, ok := requireUserID(w, r, logg)
		if !ok {
			return
		}
		query, err := sellerListQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListItems(r.Context(), userID, query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func sellerListQuery(r *http.Request) (fulfillment.ListQuery, error) {
	var query fulfillment.ListQuery
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return query, err
	}
	statuses, err := parseEnumList(validators.ParseQueryList(r, "statuses"), enums.ParseOrderItemStatus, "statuses")
	if err != nil {
		return query, err
	}
	orgID, err := validators.ParseOptionalUUIDQuery(r, "org_id")
	if err != nil {
		return query, err
	}
	query.Limit = limit
	query.Statuses = statuses
	query.OrgID = orgID
	query.Search = validators.SanitizeString(r.URL.Query().Get("search"), maxSearchLength)
	query.Cursor = strings.TrimSpace(r.URL.Query().Get("cursor"))
	return query, nil
}

func SellerOrderDetail(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "fulfillment service")
			return
		}
		userID, ok := requireUserID(w, r, logg)
		if !ok {
			return
		}
		itemID, err := validators.ParseUUIDParam(r, orderItemIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.GetItem(r.Context(), userID, itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func SellerOrderAccept(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "fulfillment service")
			return
		}
		userID, ok := requireUserID(w, r, logg)
		if !ok {
			return
		}
		itemID, err := validators.ParseUUIDParam(r, orderItemIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.AcceptItem(r.Context(), userID, itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// SellerOrderReject accepts an empty body; the reason is optional.
func SellerOrderReject(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "fulfillment service")
			return
		}
		userID, ok := requireUserID(w, r, logg)
		if !ok {
			return
		}
		itemID, err := validators.ParseUUIDParam(r, orderItemIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body fulfillment.RejectInput
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		view, err := svc.RejectItem(r.Context(), userID, itemID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func SellerOrderShip(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "fulfillment service")
			return
		}
		userID, ok := requireUserID(w, r, logg)
		if !ok {
			return
		}
		itemID, err := validators.ParseUUIDParam(r, orderItemIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body fulfillment.ShipInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.ShipItem(r.Context(), userID, itemID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func SellerOrderDeliver(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "fulfillment service")
			return
		}
		userID, ok := requireUserID(w, r, logg)
		if !ok {
			return
		}
		itemID, err := validators.ParseUUIDParam(r, orderItemIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body fulfillment.DeliverInput
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		view, err := svc.DeliverItem(r.Context(), userID, itemID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/partsmarket-backend/api/middleware"
	"github.com/angelmondragon/partsmarket-backend/api/responses"
	"github.com/angelmondragon/partsmarket-backend/api/validators"
	product "github.com/angelmondragon/partsmarket-backend/internal/products"
	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/partsmarket-backend/pkg/errors"
	"github.com/angelmondragon/partsmarket-backend/pkg/logger"
	"github.com/angelmondragon/partsmarket-backend/pkg/pagination"
)

const (
	orgIDParam           = "org_id"
	productIDParam       = "product_id"
	idempotencyKeyHeader = "Idempotency-Key"
)

type adjustStockRequest struct {
	Delta int `json:"delta" validate:"required"`
}

// ProductCatalog lists published listings for buyers.
func ProductCatalog(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "product service")
			return
		}
		query, err := parseCatalogQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListPublished(r.Context(), query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func parseCatalogQuery(r *http.Request) (product.CatalogQuery, error) {
	var q product.CatalogQuery
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return q, err
	}
	q.Limit = limit
	q.Cursor = strings.TrimSpace(r.URL.Query().Get("cursor"))
	q.Search = validators.SanitizeString(r.URL.Query().Get("search"), maxSearchLength)
	q.Make = validators.SanitizeString(r.URL.Query().Get("make"), maxSearchLength)
	if q.MakeID, err = validators.ParseOptionalUUIDQuery(r, "make_id"); err != nil {
		return q, err
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("condition")); raw != "" {
		condition, err := enums.ParseProductCondition(raw)
		if err != nil {
			return q, pkgerrors.New(pkgerrors.CodeValidation, "invalid condition").WithDetails(map[string]any{"field": "condition"})
		}
		q.Condition = condition
	}
	if q.PriceMin, err = validators.ParseQueryDecimal(r, "price_min"); err != nil {
		return q, err
	}
	if q.PriceMax, err = validators.ParseQueryDecimal(r, "price_max"); err != nil {
		return q, err
	}
	return q, nil
}

// ProductGet returns a published listing by id.
func ProductGet(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "product service")
			return
		}
		productID, err := validators.ParseUUIDParam(r, productIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.GetPublished(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

// OrgGetProduct returns a listing of any status owned by the organization.
func OrgGetProduct(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "product service")
			return
		}
		orgID, productID, err := orgProductIDs(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.GetForOrg(r.Context(), orgID, productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

// OrgCreateProduct creates a listing owned by the organization in the path.
func OrgCreateProduct(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "product service")
			return
		}
		userID, ok := requireUserID(w, r, logg)
		if !ok {
			return
		}
		orgID, err := middleware.OrgIDParam(r, orgIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body product.CreateProductInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		key := strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))
		dto, err := svc.Create(r.Context(), userID, orgID, body, key)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto)
	}
}

func OrgListProducts(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "product service")
			return
		}
		orgID, err := middleware.OrgIDParam(r, orgIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListForOrg(r.Context(), orgID, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func OrgPatchProduct(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "product service")
			return
		}
		orgID, productID, err := orgProductIDs(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body product.ProductPatch
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := svc.Patch(r.Context(), orgID, productID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

// OrgAdjustStock applies a signed stock delta.
func OrgAdjustStock(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "product service")
			return
		}
		orgID, productID, err := orgProductIDs(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body adjustStockRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := svc.AdjustStock(r.Context(), orgID, productID, body.Delta)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

func OrgPublishProduct(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return setProductVisibility(svc, true, logg)
}

func OrgUnpublishProduct(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return setProductVisibility(svc, false, logg)
}

func setProductVisibility(svc product.Service, publish bool, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "product service")
			return
		}
		orgID, productID, err := orgProductIDs(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var dto *product.ProductDTO
		if publish {
			dto, err = svc.Publish(r.Context(), orgID, productID)
		} else {
			dto, err = svc.Unpublish(r.Context(), orgID, productID)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

func orgProductIDs(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	orgID, err := middleware.OrgIDParam(r, orgIDParam)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	productID, err := validators.ParseUUIDParam(r, productIDParam)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return orgID, productID, nil
}

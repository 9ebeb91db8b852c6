package controllers

import (
	"net/http"

	"github.com/angelmondragon/partsmarket-backend/api/responses"
	"github.com/angelmondragon/partsmarket-backend/api/validators"
	checkoutsvc "github.com/angelmondragon/partsmarket-backend/internal/checkout"
	"github.com/angelmondragon/partsmarket-backend/internal/orders"
	"github.com/angelmondragon/partsmarket-backend/pkg/logger"
)

// CheckoutPrepare creates a pending order from the cart and opens an
// embedded payment session for it.
func CheckoutPrepare(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return prepareCheckout(svc, checkoutsvc.ModeEmbedded, logg)
}

// CheckoutPrepareHosted is CheckoutPrepare with a hosted payment page.
func CheckoutPrepareHosted(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return prepareCheckout(svc, checkoutsvc.ModeHosted, logg)
}

func prepareCheckout(svc checkoutsvc.Service, mode checkoutsvc.Mode, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "checkout service")
			return
		}
		userID, ok := requireUserID(w, r, logg)
		if !ok {
			return
		}
		var body orders.CreateOrderInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var (
			result *checkoutsvc.Result
			err    error
		)
		if mode == checkoutsvc.ModeHosted {
			result, err = svc.PrepareHostedCheckout(r.Context(), userID, body)
		} else {
			result, err = svc.PrepareCheckout(r.Context(), userID, body)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// OrderPay opens a fresh embedded session for a pending order.
func OrderPay(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return payOrder(svc, checkoutsvc.ModeEmbedded, logg)
}

func OrderPayHosted(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return payOrder(svc, checkoutsvc.ModeHosted, logg)
}

func payOrder(svc checkoutsvc.Service, mode checkoutsvc.Mode, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "checkout service")
			return
		}
		userID, ok := requireUserID(w, r, logg)
		if !ok {
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "order_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.PayExistingOrder(r.Context(), userID, orderID, mode)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

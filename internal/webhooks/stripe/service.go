package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelmondragon/partsmarket-backend/internal/cart"
	"github.com/angelmondragon/partsmarket-backend/internal/orders"
	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/partsmarket-backend/pkg/errors"
	"github.com/angelmondragon/partsmarket-backend/pkg/logger"
	"github.com/angelmondragon/partsmarket-backend/pkg/metrics"
	stripepkg "github.com/angelmondragon/partsmarket-backend/pkg/stripe"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockReserver interface {
	ReserveStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, quantity int) (bool, error)
}

type webhookMetrics interface {
	WebhookEvent(endpoint, eventType, outcome string)
	StockOversold()
}

type ServiceParams struct {
	Carts      cart.Service
	Orders     orders.Service
	OrdersRepo orders.Repository
	Stock      stockReserver
	TX         txRunner
	Metrics    webhookMetrics
	Logger     *logger.Logger
}

// Service applies Stripe checkout events to orders, carts and stock.
type Service struct {
	carts      cart.Service
	orders     orders.Service
	ordersRepo orders.Repository
	stock      stockReserver
	tx         txRunner
	metrics    webhookMetrics
	logg       *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Carts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart service required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders service required")
	}
	if params.OrdersRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository required")
	}
	if params.Stock == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stock reserver required")
	}
	if params.TX == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	m := params.Metrics
	if m == nil {
		m = (*metrics.MarketplaceMetrics)(nil)
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		carts:      params.Carts,
		orders:     params.Orders,
		ordersRepo: params.OrdersRepo,
		stock:      params.Stock,
		tx:         params.TX,
		metrics:    m,
		logg:       logg,
	}, nil
}

// HandleEvent dispatches a verified event received on endpoint.
func (s *Service) HandleEvent(ctx context.Context, endpoint stripepkg.Endpoint, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	eventType := string(event.Type)
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"stripe_event_id":   event.ID,
		"stripe_event_type": eventType,
		"stripe_endpoint":   string(endpoint),
	})

	if endpoint != stripepkg.EndpointMain {
		s.logg.Info(logCtx, "stripe event received on auxiliary endpoint")
		s.metrics.WebhookEvent(string(endpoint), eventType, metrics.OutcomeIgnored)
		return nil
	}

	var err error
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		err = s.withSession(logCtx, event, s.completeCheckout)
	case stripe.EventTypeCheckoutSessionExpired:
		err = s.withSession(logCtx, event, s.markStatus(enums.PaymentStatusExpired))
	case stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		err = s.withSession(logCtx, event, s.markStatus(enums.PaymentStatusFailed))
	default:
		s.logg.Debug(logCtx, "stripe event ignored")
		s.metrics.WebhookEvent(string(endpoint), eventType, metrics.OutcomeIgnored)
		return nil
	}
	if err != nil {
		s.metrics.WebhookEvent(string(endpoint), eventType, metrics.OutcomeFailure)
		s.logg.Error(logCtx, "stripe event failed", err)
		return err
	}
	s.metrics.WebhookEvent(string(endpoint), eventType, metrics.OutcomeSuccess)
	return nil
}

type sessionRef struct {
	orderID   uuid.UUID
	buyerID   uuid.UUID
	sessionID string
}

func (s *Service) withSession(ctx context.Context, event *stripe.Event, fn func(context.Context, sessionRef) error) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
	}
	ref, ok := parseSessionRef(&session)
	if !ok {
		s.logg.Warn(ctx, "checkout session without order metadata")
		return nil
	}
	ctx = s.logg.WithOrderID(ctx, ref.orderID.String())
	ctx = s.logg.WithUserID(ctx, ref.buyerID.String())
	return fn(ctx, ref)
}

func parseSessionRef(session *stripe.CheckoutSession) (sessionRef, bool) {
	if session == nil || session.Metadata == nil {
		return sessionRef{}, false
	}
	orderID, err := uuid.Parse(session.Metadata["order_id"])
	if err != nil {
		return sessionRef{}, false
	}
	buyerID, err := uuid.Parse(session.Metadata["buyer_id"])
	if err != nil {
		return sessionRef{}, false
	}
	return sessionRef{orderID: orderID, buyerID: buyerID, sessionID: session.ID}, true
}

// completeCheckout locks and purchases the order's cart items, decrements
// stock and marks the order paid in one transaction. A paid order is left
// untouched so redeliveries change nothing.
func (s *Service) completeCheckout(ctx context.Context, ref sessionRef) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.ordersRepo.WithTx(tx).FindOrder(ctx, ref.orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				s.logg.Warn(ctx, "checkout completed for unknown order")
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load order")
		}
		if order.BuyerID != ref.buyerID {
			s.logg.Warn(ctx, "checkout session buyer does not match order")
			return nil
		}
		if order.PaymentStatus == enums.PaymentStatusPaid {
			s.logg.Info(ctx, "order already paid")
			return nil
		}

		sourceIDs := make([]uuid.UUID, 0, len(order.SourceCartItemIDs))
		for _, raw := range order.SourceCartItemIDs {
			if id, err := uuid.Parse(raw); err == nil {
				sourceIDs = append(sourceIDs, id)
			}
		}

		carts := s.carts.WithTx(tx)
		if len(sourceIDs) > 0 {
			if _, err := carts.LockItems(ctx, order.ID, order.BuyerID, sourceIDs...); err != nil {
				return err
			}
			if _, err := carts.PurchaseItems(ctx, order.ID, order.BuyerID); err != nil {
				return err
			}
		}

		for _, item := range order.Items {
			if item.ProductID == nil {
				continue
			}
			reserved, err := s.stock.ReserveStock(ctx, tx, *item.ProductID, item.Quantity)
			if err != nil {
				return err
			}
			if !reserved {
				s.metrics.StockOversold()
				warnCtx := s.logg.WithFields(ctx, map[string]any{
					"order_item_id": item.ID.String(),
					"product_id":    item.ProductID.String(),
					"quantity":      item.Quantity,
				})
				s.logg.Warn(warnCtx, "paid order item exceeds stock on hand")
			}
		}

		if _, err := s.orders.WithTx(tx).PayOrder(ctx, order.ID); err != nil {
			return err
		}
		return nil
	})
}

func (s *Service) markStatus(status enums.PaymentStatus) func(context.Context, sessionRef) error {
	return func(ctx context.Context, ref sessionRef) error {
		changed, err := s.orders.MarkPaymentStatus(ctx, ref.orderID, status)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				s.logg.Warn(ctx, "payment status event for unknown order")
				return nil
			}
			return err
		}
		if !changed {
			s.logg.Info(s.logg.WithField(ctx, "payment_status", string(status)), "payment status unchanged")
		}
		return nil
	}
}

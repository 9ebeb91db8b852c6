package checkout

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/partsmarket-backend/internal/orders"
	"github.com/angelmondragon/partsmarket-backend/pkg/db/models"
	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/partsmarket-backend/pkg/errors"
	"github.com/angelmondragon/partsmarket-backend/pkg/logger"
	"github.com/angelmondragon/partsmarket-backend/pkg/metrics"
)

type orderService interface {
	CreateOrder(ctx context.Context, buyerID uuid.UUID, input orders.CreateOrderInput) (*models.Order, error)
	GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*orders.OrderDTO, error)
	AttachCheckoutSession(ctx context.Context, orderID uuid.UUID, sessionID string, paymentIntentID *string) error
}

type sessionMetrics interface {
	CheckoutSession(mode, outcome string)
}

// Result is returned to the buyer after a payment session is opened. Embedded
// sessions carry ClientSecret, hosted sessions carry URL.
type Result struct {
	OrderID      uuid.UUID `json:"order_id"`
	ClientSecret string    `json:"client_secret,omitempty"`
	URL          string    `json:"url,omitempty"`
}

// Service turns a cart selection into a pending order plus a payment session.
type Service interface {
	PrepareCheckout(ctx context.Context, buyerID uuid.UUID, input orders.CreateOrderInput) (*Result, error)
	PrepareHostedCheckout(ctx context.Context, buyerID uuid.UUID, input orders.CreateOrderInput) (*Result, error)
	PayExistingOrder(ctx context.Context, buyerID, orderID uuid.UUID, mode Mode) (*Result, error)
}

type ServiceParams struct {
	Orders   orderService
	Gateway  PaymentGateway
	Currency string
	Metrics  sessionMetrics
	Logger   *logger.Logger
}

type service struct {
	orders   orderService
	gateway  PaymentGateway
	currency string
	metrics  sessionMetrics
	logg     *logger.Logger
}

// NewService builds the checkout orchestrator.
func NewService(params ServiceParams) (Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders service required")
	}
	if params.Gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment gateway required")
	}
	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "usd"
	}
	m := params.Metrics
	if m == nil {
		m = (*metrics.MarketplaceMetrics)(nil)
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		orders:   params.Orders,
		gateway:  params.Gateway,
		currency: currency,
		metrics:  m,
		logg:     logg,
	}, nil
}

func (s *service) PrepareCheckout(ctx context.Context, buyerID uuid.UUID, input orders.CreateOrderInput) (*Result, error) {
	return s.prepare(ctx, buyerID, input, ModeEmbedded)
}

func (s *service) PrepareHostedCheckout(ctx context.Context, buyerID uuid.UUID, input orders.CreateOrderInput) (*Result, error) {
	return s.prepare(ctx, buyerID, input, ModeHosted)
}

func (s *service) prepare(ctx context.Context, buyerID uuid.UUID, input orders.CreateOrderInput, mode Mode) (*Result, error) {
	order, err := s.orders.CreateOrder(ctx, buyerID, input)
	if err != nil {
		return nil, err
	}
	items := make([]orders.OrderItemDTO, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orders.ItemFromModel(item))
	}
	return s.openSession(ctx, buyerID, order.ID, items, mode)
}

// PayExistingOrder opens a fresh session for a pending order the buyer owns.
func (s *service) PayExistingOrder(ctx context.Context, buyerID, orderID uuid.UUID, mode Mode) (*Result, error) {
	order, err := s.orders.GetOrder(ctx, buyerID, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus != enums.PaymentStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order is not awaiting payment").
			WithDetails(map[string]any{"payment_status": order.PaymentStatus})
	}
	return s.openSession(ctx, buyerID, order.ID, order.Items, mode)
}

func (s *service) openSession(ctx context.Context, buyerID, orderID uuid.UUID, items []orders.OrderItemDTO, mode Mode) (*Result, error) {
	req := SessionRequest{
		Mode:      mode,
		OrderID:   orderID,
		BuyerID:   buyerID,
		Currency:  s.currency,
		LineItems: make([]LineItem, 0, len(items)),
	}
	for _, item := range items {
		req.LineItems = append(req.LineItems, LineItem{
			Name:      lineItemName(item),
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		})
	}

	logCtx := s.logg.WithOrderID(ctx, orderID.String())
	logCtx = s.logg.WithField(logCtx, "checkout_mode", string(mode))

	session, err := s.gateway.CreateCheckoutSession(ctx, req)
	if err != nil {
		s.metrics.CheckoutSession(string(mode), metrics.OutcomeFailure)
		s.logg.Error(logCtx, "payment session creation failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeExternal, err, "payment provider unavailable")
	}
	if err := s.orders.AttachCheckoutSession(ctx, orderID, session.ID, session.PaymentIntentID); err != nil {
		s.metrics.CheckoutSession(string(mode), metrics.OutcomeFailure)
		return nil, err
	}
	s.metrics.CheckoutSession(string(mode), metrics.OutcomeSuccess)
	s.logg.Info(s.logg.WithField(logCtx, "checkout_session_id", session.ID), "payment session opened")

	out := &Result{OrderID: orderID}
	switch mode {
	case ModeHosted:
		out.URL = session.URL
	default:
		out.ClientSecret = session.ClientSecret
	}
	return out, nil
}

func lineItemName(item orders.OrderItemDTO) string {
	if item.ProductPartNumber == "" {
		return item.ProductTitle
	}
	return item.ProductTitle + " (" + item.ProductPartNumber + ")"
}

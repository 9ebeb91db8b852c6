package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/partsmarket-backend/pkg/db/models"
	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/partsmarket-backend/pkg/errors"
	"github.com/angelmondragon/partsmarket-backend/pkg/logger"
	"github.com/angelmondragon/partsmarket-backend/pkg/outbox"
	"github.com/angelmondragon/partsmarket-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/partsmarket-backend/pkg/pagination"
	"github.com/angelmondragon/partsmarket-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service owns the buyer-side order aggregate.
type Service interface {
	WithTx(tx *gorm.DB) Service
	CreateOrder(ctx context.Context, buyerID uuid.UUID, input CreateOrderInput) (*models.Order, error)
	PayOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	MarkPaymentStatus(ctx context.Context, orderID uuid.UUID, status enums.PaymentStatus) (bool, error)
	AttachCheckoutSession(ctx context.Context, orderID uuid.UUID, sessionID string, paymentIntentID *string) error
	GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error)
	ListUserOrders(ctx context.Context, userID uuid.UUID, query ListQuery) (*OrderList, error)
}

type ServiceParams struct {
	Repo   Repository
	TX     txRunner
	Outbox outbox.Emitter
	Logger *logger.Logger
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outbox.Emitter
	logg   *logger.Logger
	// bound is set when the service runs inside a caller transaction.
	bound *gorm.DB
}

// NewService wires the order aggregate.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository required")
	}
	if params.TX == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: params.Repo, tx: params.TX, outbox: params.Outbox, logg: logg}, nil
}

// WithTx returns a service whose writes join tx instead of opening their own.
func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	clone := *s
	clone.repo = s.repo.WithTx(tx)
	clone.bound = tx
	return &clone
}

func (s *service) inTx(ctx context.Context, fn func(tx *gorm.DB, repo Repository) error) error {
	if s.bound != nil {
		return fn(s.bound, s.repo)
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return fn(tx, s.repo.WithTx(tx))
	})
}

// CreateOrder snapshots the selected ACTIVE cart items into a pending order.
func (s *service) CreateOrder(ctx context.Context, buyerID uuid.UUID, input CreateOrderInput) (*models.Order, error) {
	address := input.ShippingAddress.Normalize()
	if _, err := address.Value(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping address")
	}

	var order *models.Order
	err := s.inTx(ctx, func(tx *gorm.DB, repo Repository) error {
		active, err := repo.ListActiveCartItems(ctx, buyerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load cart items")
		}
		selected, err := selectCartItems(active, input.CartItemIDs)
		if err != nil {
			return err
		}

		productIDs := make([]uuid.UUID, 0, len(selected))
		for _, item := range selected {
			productIDs = append(productIDs, item.ProductID)
		}
		products, err := repo.FindProducts(ctx, productIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load products")
		}

		order, err = buildOrder(buyerID, selected, products, address, input.Notes)
		if err != nil {
			return err
		}
		if err := repo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert order")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: buyerID, Role: "buyer"},
			Data:          orderCreatedPayload(order),
			OccurredAt:    order.CreatedAt,
		})
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	logCtx = s.logg.WithUserID(logCtx, buyerID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"total_amount": order.TotalAmount.String(),
		"unique_items": order.UniqueItems,
	})
	s.logg.Info(logCtx, "order created")
	return order, nil
}

func selectCartItems(active []models.CartItem, ids []uuid.UUID) ([]models.CartItem, error) {
	if len(active) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "cart is empty")
	}
	if len(ids) == 0 {
		return active, nil
	}

	byID := make(map[uuid.UUID]models.CartItem, len(active))
	for _, item := range active {
		byID[item.ID] = item
	}
	selected := make([]models.CartItem, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	var unknown []string
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		item, ok := byID[id]
		if !ok {
			unknown = append(unknown, id.String())
			continue
		}
		selected = append(selected, item)
	}
	if len(unknown) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "some cart items are not in the cart").
			WithDetails(map[string]any{"cart_item_ids": unknown})
	}
	return selected, nil
}

func buildOrder(buyerID uuid.UUID, selected []models.CartItem, products map[uuid.UUID]models.Product, address types.ShippingAddress, notes *string) (*models.Order, error) {
	order := &models.Order{
		ID:              uuid.New(),
		BuyerID:         buyerID,
		PaymentStatus:   enums.PaymentStatusPending,
		TotalAmount:     decimal.Zero,
		Notes:           trimmed(notes),
		ShippingAddress: &address,
		CreatedAt:       time.Now().UTC(),
	}

	sourceIDs := make(pq.StringArray, 0, len(selected))
	for _, item := range selected {
		product, ok := products[item.ProductID]
		if !ok {
			return nil, itemConflict("product no longer exists", item)
		}
		if product.Status != enums.ProductStatusPublished {
			return nil, itemConflict("product must be published", item)
		}
		if !product.AllowCart {
			return nil, itemConflict("product must allow cart", item)
		}
		if item.Quantity > product.QuantityOnHand {
			return nil, itemConflict("quantity exceeds stock on hand", item).
				WithDetails(map[string]any{
					"cart_item_id": item.ID.String(),
					"product_id":   product.ID.String(),
					"available":    product.QuantityOnHand,
					"requested":    item.Quantity,
				})
		}

		productID := product.ID
		cartItemID := item.ID
		lineTotal := product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		order.Items = append(order.Items, models.OrderItem{
			ID:                 uuid.New(),
			OrderID:            order.ID,
			SellerOrgID:        product.OrgID,
			ProductID:          &productID,
			CartItemID:         &cartItemID,
			MakeID:             product.MakeID,
			MakeName:           product.MakeName,
			ProductTitle:       product.Title,
			ProductDescription: product.Description,
			ProductPartNumber:  product.PartNumber,
			ProductCondition:   product.Condition,
			UnitPrice:          product.Price,
			Quantity:           item.Quantity,
			TotalPrice:         lineTotal,
			Status:             enums.OrderItemStatusPending,
			CreatedAt:          order.CreatedAt,
		})
		order.TotalAmount = order.TotalAmount.Add(lineTotal)
		order.TotalItems += item.Quantity
		sourceIDs = append(sourceIDs, item.ID.String())
	}
	order.UniqueItems = len(order.Items)
	order.SourceCartItemIDs = sourceIDs
	return order, nil
}

func itemConflict(msg string, item models.CartItem) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeConflict, msg).
		WithDetails(map[string]any{
			"cart_item_id": item.ID.String(),
			"product_id":   item.ProductID.String(),
		})
}

// PayOrder marks the order paid. Paying an already paid order is a no-op and
// order.paid is queued at most once.
func (s *service) PayOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order *models.Order
	err := s.inTx(ctx, func(tx *gorm.DB, repo Repository) error {
		current, err := repo.FindOrder(ctx, orderID)
		if err != nil {
			return mapOrderLoadError(err)
		}
		if current.PaymentStatus == enums.PaymentStatusPaid {
			order = current
			return nil
		}

		paidAt := time.Now().UTC()
		if _, err := repo.MarkPaid(ctx, orderID, paidAt); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: mark order paid")
		}
		current.PaymentStatus = enums.PaymentStatusPaid
		current.PaidAt = &paidAt
		order = current

		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data: payloads.OrderPaidEvent{
				OrderID:           orderID,
				BuyerID:           current.BuyerID,
				TotalAmount:       current.TotalAmount,
				CheckoutSessionID: current.StripeCheckoutSessionID,
				PaymentIntentID:   current.StripePaymentIntentID,
				PaidAt:            paidAt,
			},
			OccurredAt: paidAt,
		})
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "pay order")
	}

	s.logg.Info(s.logg.WithOrderID(ctx, orderID.String()), "order paid")
	return order, nil
}

// MarkPaymentStatus moves a pending order to a terminal non-paid status. It
// reports whether the order changed; paid orders are never downgraded.
func (s *service) MarkPaymentStatus(ctx context.Context, orderID uuid.UUID, status enums.PaymentStatus) (bool, error) {
	switch status {
	case enums.PaymentStatusExpired, enums.PaymentStatusFailed, enums.PaymentStatusCancelled:
	default:
		return false, pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment status").
			WithDetails(map[string]any{"status": status})
	}

	changed := false
	err := s.inTx(ctx, func(tx *gorm.DB, repo Repository) error {
		current, err := repo.FindOrder(ctx, orderID)
		if err != nil {
			return mapOrderLoadError(err)
		}
		if current.PaymentStatus != enums.PaymentStatusPending {
			return nil
		}
		rows, err := repo.UpdatePaymentStatus(ctx, orderID, enums.PaymentStatusPending, status)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update payment status")
		}
		if rows == 0 {
			return nil
		}
		changed = true

		now := time.Now().UTC()
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaymentStatusChange,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data: payloads.OrderPaymentStatusChangedEvent{
				OrderID:        orderID,
				BuyerID:        current.BuyerID,
				PreviousStatus: enums.PaymentStatusPending,
				Status:         status,
				TotalAmount:    current.TotalAmount,
				ChangedAt:      now,
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return false, typed
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment status")
	}

	if changed {
		logCtx := s.logg.WithOrderID(ctx, orderID.String())
		logCtx = s.logg.WithField(logCtx, "payment_status", status)
		s.logg.Info(logCtx, "order payment status changed")
	}
	return changed, nil
}

func (s *service) AttachCheckoutSession(ctx context.Context, orderID uuid.UUID, sessionID string, paymentIntentID *string) error {
	if sessionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout session id required")
	}
	if err := s.repo.SetCheckoutSession(ctx, orderID, sessionID, paymentIntentID); err != nil {
		return mapOrderLoadError(err)
	}
	return nil
}

// GetOrder loads an order visible to userID.
func (s *service) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, mapOrderLoadError(err)
	}
	if order.BuyerID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not authorized to view this order")
	}
	dto := FromModel(order)
	return &dto, nil
}

func (s *service) ListUserOrders(ctx context.Context, userID uuid.UUID, query ListQuery) (*OrderList, error) {
	orderBy := query.OrderBy
	if orderBy == "" {
		orderBy = OrderByCreatedAtDesc
	}
	if !orderBy.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order_by").
			WithDetails(map[string]any{"order_by": orderBy})
	}
	for _, status := range query.Statuses {
		if !status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status").
				WithDetails(map[string]any{"status": status})
		}
	}
	if query.Limit < 0 || query.Limit > pagination.MaxLimit {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "limit must be between 1 and 100")
	}

	limit := pagination.NormalizeLimit(query.Limit)
	filter := listFilter{
		statuses: query.Statuses,
		search:   query.Search,
		orderBy:  orderBy,
		limit:    limit + 1,
	}
	var err error
	if orderBy.byAmount() {
		filter.amountCursor, err = pagination.ParseAmountCursor(query.Cursor)
	} else {
		filter.cursor, err = pagination.ParseCursor(query.Cursor)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.ListBuyerOrders(ctx, userID, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list orders")
	}

	out := &OrderList{Orders: make([]OrderDTO, 0, limit)}
	if len(rows) > limit {
		last := rows[limit-1]
		if orderBy.byAmount() {
			out.NextCursor = pagination.EncodeAmountCursor(pagination.AmountCursor{Amount: last.TotalAmount, ID: last.ID})
		} else {
			out.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		}
		rows = rows[:limit]
	}
	for i := range rows {
		out.Orders = append(out.Orders, FromModel(&rows[i]))
	}
	return out, nil
}

func mapOrderLoadError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load order")
}

func orderCreatedPayload(order *models.Order) payloads.OrderCreatedEvent {
	event := payloads.OrderCreatedEvent{
		OrderID:     order.ID,
		BuyerID:     order.BuyerID,
		TotalAmount: order.TotalAmount,
		TotalItems:  order.TotalItems,
		UniqueItems: order.UniqueItems,
		Items:       make([]payloads.OrderCreatedItem, 0, len(order.Items)),
		CreatedAt:   order.CreatedAt,
	}
	sellers := map[uuid.UUID]struct{}{}
	for _, item := range order.Items {
		event.Items = append(event.Items, payloads.OrderCreatedItem{
			OrderItemID: item.ID,
			SellerOrgID: item.SellerOrgID,
			ProductID:   item.ProductID,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			TotalPrice:  item.TotalPrice,
		})
		if _, ok := sellers[item.SellerOrgID]; !ok {
			sellers[item.SellerOrgID] = struct{}{}
			event.SellerOrgIDs = append(event.SellerOrgIDs, item.SellerOrgID)
		}
	}
	return event
}

package stripewebhook

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelmondragon/partsmarket-backend/internal/cart"
	"github.com/angelmondragon/partsmarket-backend/internal/orders"
	product "github.com/angelmondragon/partsmarket-backend/internal/products"
	"github.com/angelmondragon/partsmarket-backend/pkg/db/dbtest"
	"github.com/angelmondragon/partsmarket-backend/pkg/db/models"
	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
	"github.com/angelmondragon/partsmarket-backend/pkg/logger"
	"github.com/angelmondragon/partsmarket-backend/pkg/outbox"
	stripepkg "github.com/angelmondragon/partsmarket-backend/pkg/stripe"
	"github.com/angelmondragon/partsmarket-backend/pkg/types"
)

type fixture struct {
	conn   *gorm.DB
	carts  cart.Service
	orders orders.Service
	svc    *Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn, client := dbtest.Client(t)
	emitter := outbox.NewService(outbox.NewRepository(conn), logger.Nop())
	ordersRepo := orders.NewRepository(conn)
	orderSvc, err := orders.NewService(orders.ServiceParams{Repo: ordersRepo, TX: client, Outbox: emitter})
	require.NoError(t, err)
	carts, err := cart.NewService(cart.ServiceParams{
		Repo:     cart.NewRepository(conn),
		Products: product.NewRepository(conn),
		TX:       client,
	})
	require.NoError(t, err)
	products, err := product.NewService(product.ServiceParams{
		Repo:   product.NewRepository(conn),
		TX:     client,
		Outbox: emitter,
	})
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Carts:      carts,
		Orders:     orderSvc,
		OrdersRepo: ordersRepo,
		Stock:      products,
		TX:         client,
	})
	require.NoError(t, err)
	return fixture{conn: conn, carts: carts, orders: orderSvc, svc: svc}
}

func (f fixture) pendingOrder(t *testing.T, buyer uuid.UUID, onHand, qty int) (*models.Order, *models.Product) {
	t.Helper()
	ctx := context.Background()
	p := &models.Product{
		ID:               uuid.New(),
		OrgID:            uuid.New(),
		Title:            "Fuel pump",
		Condition:        enums.ProductConditionNew,
		Price:            decimal.RequireFromString("64.00"),
		StockType:        enums.StockTypeStock,
		QuantityOriginal: onHand,
		QuantityOnHand:   onHand,
		AllowCart:        true,
		AllowChat:        true,
		Status:           enums.ProductStatusPublished,
	}
	require.NoError(t, product.NewRepository(f.conn).Create(ctx, p))
	_, err := f.carts.AddItem(ctx, buyer, p.ID, qty)
	require.NoError(t, err)
	order, err := f.orders.CreateOrder(ctx, buyer, orders.CreateOrderInput{ShippingAddress: types.ShippingAddress{
		FullName: "Pat", Line1: "9 Elm", City: "Boise", State: "ID", PostalCode: "83702",
	}})
	require.NoError(t, err)
	return order, p
}

func sessionEvent(t *testing.T, eventType stripe.EventType, orderID, buyerID uuid.UUID) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"id":     "cs_test_" + orderID.String()[:8],
		"object": "checkout.session",
		"metadata": map[string]string{
			"order_id": orderID.String(),
			"buyer_id": buyerID.String(),
		},
	})
	require.NoError(t, err)
	return &stripe.Event{ID: "evt_" + uuid.NewString(), Type: eventType, Data: &stripe.EventData{Raw: raw}}
}

func cartStatuses(t *testing.T, conn *gorm.DB, orderID uuid.UUID) []enums.CartItemStatus {
	t.Helper()
	var items []models.CartItem
	require.NoError(t, conn.Where("order_id = ?", orderID).Find(&items).Error)
	out := make([]enums.CartItemStatus, 0, len(items))
	for _, item := range items {
		out = append(out, item.Status)
	}
	return out
}

func TestCheckoutCompletedPaysOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := uuid.New()
	order, p := f.pendingOrder(t, buyer, 5, 2)

	require.NoError(t, f.svc.HandleEvent(ctx, stripepkg.EndpointMain,
		sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, order.ID, buyer)))

	dto, err := f.orders.GetOrder(ctx, buyer, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPaid, dto.PaymentStatus)
	require.Equal(t, []enums.CartItemStatus{enums.CartItemStatusPurchased}, cartStatuses(t, f.conn, order.ID))

	var reloaded models.Product
	require.NoError(t, f.conn.First(&reloaded, "id = ?", p.ID).Error)
	require.Equal(t, 3, reloaded.QuantityOnHand)
}

func TestDuplicateCheckoutCompletedChangesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := uuid.New()
	order, p := f.pendingOrder(t, buyer, 5, 2)
	event := sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, order.ID, buyer)

	require.NoError(t, f.svc.HandleEvent(ctx, stripepkg.EndpointMain, event))
	require.NoError(t, f.svc.HandleEvent(ctx, stripepkg.EndpointMain, event))

	var reloaded models.Product
	require.NoError(t, f.conn.First(&reloaded, "id = ?", p.ID).Error)
	require.Equal(t, 3, reloaded.QuantityOnHand)

	rows, err := f.carts.LockItems(ctx, order.ID, buyer)
	require.NoError(t, err)
	require.Zero(t, rows)
	rows, err = f.carts.PurchaseItems(ctx, order.ID, buyer)
	require.NoError(t, err)
	require.Zero(t, rows)

	var paid int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).
		Where("event_type = ? AND aggregate_id = ?", enums.EventOrderPaid, order.ID).
		Count(&paid).Error)
	require.EqualValues(t, 1, paid)
}

func TestCheckoutCompletedWithStockShortfallStillPays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := uuid.New()
	order, p := f.pendingOrder(t, buyer, 3, 3)
	require.NoError(t, product.NewRepository(f.conn).SetStock(ctx, p.ID, 3, 1))

	require.NoError(t, f.svc.HandleEvent(ctx, stripepkg.EndpointMain,
		sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, order.ID, buyer)))

	dto, err := f.orders.GetOrder(ctx, buyer, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPaid, dto.PaymentStatus)

	var reloaded models.Product
	require.NoError(t, f.conn.First(&reloaded, "id = ?", p.ID).Error)
	require.Equal(t, 1, reloaded.QuantityOnHand)
}

func TestCheckoutCompletedIgnoresMismatchedBuyer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := uuid.New()
	order, _ := f.pendingOrder(t, buyer, 5, 1)

	require.NoError(t, f.svc.HandleEvent(ctx, stripepkg.EndpointMain,
		sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, order.ID, uuid.New())))

	dto, err := f.orders.GetOrder(ctx, buyer, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPending, dto.PaymentStatus)
}

func TestSessionExpiredMarksPendingOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := uuid.New()
	order, _ := f.pendingOrder(t, buyer, 5, 1)

	require.NoError(t, f.svc.HandleEvent(ctx, stripepkg.EndpointMain,
		sessionEvent(t, stripe.EventTypeCheckoutSessionExpired, order.ID, buyer)))
	dto, err := f.orders.GetOrder(ctx, buyer, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusExpired, dto.PaymentStatus)

	require.Equal(t, []enums.CartItemStatus{}, cartStatuses(t, f.conn, order.ID))
}

func TestAsyncPaymentFailedDoesNotDowngradePaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := uuid.New()
	order, _ := f.pendingOrder(t, buyer, 5, 1)
	require.NoError(t, f.svc.HandleEvent(ctx, stripepkg.EndpointMain,
		sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, order.ID, buyer)))

	require.NoError(t, f.svc.HandleEvent(ctx, stripepkg.EndpointMain,
		sessionEvent(t, stripe.EventTypeCheckoutSessionAsyncPaymentFailed, order.ID, buyer)))
	dto, err := f.orders.GetOrder(ctx, buyer, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPaid, dto.PaymentStatus)
}

func TestIgnoredEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	raw := json.RawMessage(`{"id":"cs_1","object":"checkout.session"}`)
	require.NoError(t, f.svc.HandleEvent(ctx, stripepkg.EndpointMain,
		&stripe.Event{ID: "evt_1", Type: stripe.EventTypeCheckoutSessionCompleted, Data: &stripe.EventData{Raw: raw}}))
	require.NoError(t, f.svc.HandleEvent(ctx, stripepkg.EndpointMain,
		&stripe.Event{ID: "evt_2", Type: "invoice.paid", Data: &stripe.EventData{Raw: raw}}))
	require.NoError(t, f.svc.HandleEvent(ctx, stripepkg.EndpointConnect,
		sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, uuid.New(), uuid.New())))
	require.Error(t, f.svc.HandleEvent(ctx, stripepkg.EndpointMain, &stripe.Event{ID: "evt_3"}))
}

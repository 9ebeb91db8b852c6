package orders

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/partsmarket-backend/internal/cart"
	product "github.com/angelmondragon/partsmarket-backend/internal/products"
	"github.com/angelmondragon/partsmarket-backend/pkg/db/dbtest"
	"github.com/angelmondragon/partsmarket-backend/pkg/db/models"
	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/partsmarket-backend/pkg/errors"
	"github.com/angelmondragon/partsmarket-backend/pkg/logger"
	"github.com/angelmondragon/partsmarket-backend/pkg/outbox"
	"github.com/angelmondragon/partsmarket-backend/pkg/types"
)

type fixture struct {
	conn  *gorm.DB
	svc   Service
	carts cart.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn, client := dbtest.Client(t)
	emitter := outbox.NewService(outbox.NewRepository(conn), logger.Nop())

	svc, err := NewService(ServiceParams{
		Repo:   NewRepository(conn),
		TX:     client,
		Outbox: emitter,
	})
	require.NoError(t, err)

	carts, err := cart.NewService(cart.ServiceParams{
		Repo:     cart.NewRepository(conn),
		Products: product.NewRepository(conn),
		TX:       client,
	})
	require.NoError(t, err)
	return fixture{conn: conn, svc: svc, carts: carts}
}

func (f fixture) seedProduct(t *testing.T, price string, onHand int) *models.Product {
	t.Helper()
	p := &models.Product{
		ID:               uuid.New(),
		OrgID:            uuid.New(),
		Title:            "Brake caliper",
		Description:      "Front left caliper",
		PartNumber:       "BC-204",
		Condition:        enums.ProductConditionNew,
		Price:            decimal.RequireFromString(price),
		StockType:        enums.StockTypeStock,
		QuantityOriginal: onHand,
		QuantityOnHand:   onHand,
		AllowCart:        true,
		AllowChat:        true,
		Status:           enums.ProductStatusPublished,
	}
	require.NoError(t, product.NewRepository(f.conn).Create(context.Background(), p))
	return p
}

func (f fixture) addToCart(t *testing.T, userID, productID uuid.UUID, qty int) uuid.UUID {
	t.Helper()
	view, err := f.carts.AddItem(context.Background(), userID, productID, qty)
	require.NoError(t, err)
	for _, item := range view.Items {
		if item.ProductID == productID {
			return item.ID
		}
	}
	t.Fatalf("cart item for product %s not found", productID)
	return uuid.Nil
}

func (f fixture) countEvents(t *testing.T, eventType enums.OutboxEventType, aggregateID uuid.UUID) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).
		Where("event_type = ? AND aggregate_id = ?", eventType, aggregateID).
		Count(&count).Error)
	return count
}

func address() types.ShippingAddress {
	return types.ShippingAddress{
		FullName:   "Dana Ruiz",
		Line1:      "100 Main St",
		City:       "Austin",
		State:      "TX",
		PostalCode: "78701",
	}
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, code, typed.Code())
}

func TestCreateOrderSnapshotsCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := uuid.New()
	caliper := f.seedProduct(t, "45.50", 10)
	rotor := f.seedProduct(t, "30.00", 5)
	f.addToCart(t, buyer, caliper.ID, 2)
	f.addToCart(t, buyer, rotor.ID, 1)

	order, err := f.svc.CreateOrder(ctx, buyer, CreateOrderInput{ShippingAddress: address()})
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPending, order.PaymentStatus)
	require.True(t, decimal.RequireFromString("121.00").Equal(order.TotalAmount))
	require.Equal(t, 3, order.TotalItems)
	require.Equal(t, 2, order.UniqueItems)
	require.Len(t, order.SourceCartItemIDs, 2)

	dto, err := f.svc.GetOrder(ctx, buyer, order.ID)
	require.NoError(t, err)
	require.Len(t, dto.Items, 2)
	require.Equal(t, "US", dto.ShippingAddress.Country)
	for _, item := range dto.Items {
		require.Equal(t, enums.OrderItemStatusPending, item.Status)
		require.Equal(t, "Brake caliper", item.ProductTitle)
		require.True(t, item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Equal(item.TotalPrice))
	}
	require.EqualValues(t, 1, f.countEvents(t, enums.EventOrderCreated, order.ID))

	var reloaded models.Product
	require.NoError(t, f.conn.First(&reloaded, "id = ?", caliper.ID).Error)
	require.Equal(t, 10, reloaded.QuantityOnHand)
}

func TestCreateOrderSubsetOfCart(t *testing.T) {
	f := newFixture(t)
	buyer := uuid.New()
	first := f.addToCart(t, buyer, f.seedProduct(t, "10.00", 3).ID, 1)
	f.addToCart(t, buyer, f.seedProduct(t, "20.00", 3).ID, 1)

	order, err := f.svc.CreateOrder(context.Background(), buyer, CreateOrderInput{
		CartItemIDs:     []uuid.UUID{first},
		ShippingAddress: address(),
	})
	require.NoError(t, err)
	require.Equal(t, 1, order.UniqueItems)
	require.Equal(t, []string{first.String()}, []string(order.SourceCartItemIDs))
}

func TestCreateOrderRejectsEmptyOrUnknown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := uuid.New()

	_, err := f.svc.CreateOrder(ctx, buyer, CreateOrderInput{ShippingAddress: address()})
	requireCode(t, err, pkgerrors.CodeConflict)

	f.addToCart(t, buyer, f.seedProduct(t, "10.00", 3).ID, 1)
	_, err = f.svc.CreateOrder(ctx, buyer, CreateOrderInput{
		CartItemIDs:     []uuid.UUID{uuid.New()},
		ShippingAddress: address(),
	})
	requireCode(t, err, pkgerrors.CodeConflict)

	_, err = f.svc.CreateOrder(ctx, buyer, CreateOrderInput{ShippingAddress: types.ShippingAddress{FullName: "x"}})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestCreateOrderRejectsStockShortfall(t *testing.T) {
	f := newFixture(t)
	buyer := uuid.New()
	p := f.seedProduct(t, "10.00", 4)
	f.addToCart(t, buyer, p.ID, 4)
	require.NoError(t, product.NewRepository(f.conn).SetStock(context.Background(), p.ID, 4, 2))

	_, err := f.svc.CreateOrder(context.Background(), buyer, CreateOrderInput{ShippingAddress: address()})
	requireCode(t, err, pkgerrors.CodeConflict)

	var count int64
	require.NoError(t, f.conn.Model(&models.Order{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestPayOrderIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := uuid.New()
	f.addToCart(t, buyer, f.seedProduct(t, "10.00", 3).ID, 1)
	order, err := f.svc.CreateOrder(ctx, buyer, CreateOrderInput{ShippingAddress: address()})
	require.NoError(t, err)

	paid, err := f.svc.PayOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPaid, paid.PaymentStatus)
	require.NotNil(t, paid.PaidAt)

	again, err := f.svc.PayOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPaid, again.PaymentStatus)
	require.EqualValues(t, 1, f.countEvents(t, enums.EventOrderPaid, order.ID))

	_, err = f.svc.PayOrder(ctx, uuid.New())
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestMarkPaymentStatusNeverDowngradesPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := uuid.New()
	f.addToCart(t, buyer, f.seedProduct(t, "10.00", 3).ID, 1)
	order, err := f.svc.CreateOrder(ctx, buyer, CreateOrderInput{ShippingAddress: address()})
	require.NoError(t, err)
	_, err = f.svc.PayOrder(ctx, order.ID)
	require.NoError(t, err)

	changed, err := f.svc.MarkPaymentStatus(ctx, order.ID, enums.PaymentStatusExpired)
	require.NoError(t, err)
	require.False(t, changed)

	dto, err := f.svc.GetOrder(ctx, buyer, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPaid, dto.PaymentStatus)

	_, err = f.svc.MarkPaymentStatus(ctx, order.ID, enums.PaymentStatusPaid)
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestMarkPaymentStatusExpiresPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := uuid.New()
	f.addToCart(t, buyer, f.seedProduct(t, "10.00", 3).ID, 1)
	order, err := f.svc.CreateOrder(ctx, buyer, CreateOrderInput{ShippingAddress: address()})
	require.NoError(t, err)

	changed, err := f.svc.MarkPaymentStatus(ctx, order.ID, enums.PaymentStatusExpired)
	require.NoError(t, err)
	require.True(t, changed)
	require.EqualValues(t, 1, f.countEvents(t, enums.EventOrderPaymentStatusChange, order.ID))

	changed, err = f.svc.MarkPaymentStatus(ctx, order.ID, enums.PaymentStatusFailed)
	require.NoError(t, err)
	require.False(t, changed)
}

func TestAttachCheckoutSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := uuid.New()
	f.addToCart(t, buyer, f.seedProduct(t, "10.00", 3).ID, 1)
	order, err := f.svc.CreateOrder(ctx, buyer, CreateOrderInput{ShippingAddress: address()})
	require.NoError(t, err)

	require.NoError(t, f.svc.AttachCheckoutSession(ctx, order.ID, "cs_test_1", nil))
	dto, err := f.svc.GetOrder(ctx, buyer, order.ID)
	require.NoError(t, err)
	require.Equal(t, "cs_test_1", *dto.StripeCheckoutSessionID)

	requireCode(t, f.svc.AttachCheckoutSession(ctx, uuid.New(), "cs_test_2", nil), pkgerrors.CodeNotFound)
	requireCode(t, f.svc.AttachCheckoutSession(ctx, order.ID, "", nil), pkgerrors.CodeValidation)
}

func TestGetOrderVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := uuid.New()
	f.addToCart(t, buyer, f.seedProduct(t, "10.00", 3).ID, 1)
	order, err := f.svc.CreateOrder(ctx, buyer, CreateOrderInput{ShippingAddress: address()})
	require.NoError(t, err)

	_, err = f.svc.GetOrder(ctx, uuid.New(), order.ID)
	requireCode(t, err, pkgerrors.CodeForbidden)
	_, err = f.svc.GetOrder(ctx, buyer, uuid.New())
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func seedOrders(t *testing.T, conn *gorm.DB, buyer uuid.UUID, amounts ...string) []models.Order {
	t.Helper()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	out := make([]models.Order, 0, len(amounts))
	for i, amount := range amounts {
		addr := address()
		order := models.Order{
			ID:              uuid.New(),
			BuyerID:         buyer,
			PaymentStatus:   enums.PaymentStatusPending,
			TotalAmount:     decimal.RequireFromString(amount),
			TotalItems:      1,
			UniqueItems:     1,
			ShippingAddress: &addr,
			CreatedAt:       base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, conn.Create(&order).Error)
		out = append(out, order)
	}
	return out
}

func collect(t *testing.T, svc Service, buyer uuid.UUID, query ListQuery) []uuid.UUID {
	t.Helper()
	var ids []uuid.UUID
	for page := 0; page < 10; page++ {
		list, err := svc.ListUserOrders(context.Background(), buyer, query)
		require.NoError(t, err)
		for _, o := range list.Orders {
			ids = append(ids, o.ID)
		}
		if list.NextCursor == "" {
			return ids
		}
		query.Cursor = list.NextCursor
	}
	t.Fatal("pagination did not terminate")
	return nil
}

func TestListUserOrdersPaginatesByCreatedAt(t *testing.T) {
	f := newFixture(t)
	buyer := uuid.New()
	seeded := seedOrders(t, f.conn, buyer, "10", "20", "30", "40", "50")
	seedOrders(t, f.conn, uuid.New(), "99")

	ids := collect(t, f.svc, buyer, ListQuery{Limit: 2})
	require.Len(t, ids, 5)
	for i, id := range ids {
		require.Equal(t, seeded[len(seeded)-1-i].ID, id)
	}

	asc := collect(t, f.svc, buyer, ListQuery{Limit: 2, OrderBy: OrderByCreatedAtAsc})
	for i, id := range asc {
		require.Equal(t, seeded[i].ID, id)
	}
}

func TestListUserOrdersPaginatesByAmount(t *testing.T) {
	f := newFixture(t)
	buyer := uuid.New()
	seeded := seedOrders(t, f.conn, buyer, "30", "10", "50", "20", "40")

	ids := collect(t, f.svc, buyer, ListQuery{Limit: 2, OrderBy: OrderByTotalAmountDesc})
	want := []uuid.UUID{seeded[2].ID, seeded[4].ID, seeded[0].ID, seeded[3].ID, seeded[1].ID}
	require.Equal(t, want, ids)

	ids = collect(t, f.svc, buyer, ListQuery{Limit: 3, OrderBy: OrderByTotalAmountAsc})
	require.Equal(t, []uuid.UUID{seeded[1].ID, seeded[3].ID, seeded[0].ID, seeded[4].ID, seeded[2].ID}, ids)
}

func TestListUserOrdersBreaksTiesByID(t *testing.T) {
	f := newFixture(t)
	buyer := uuid.New()
	early := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)

	var seeded []models.Order
	for i, amount := range []string{"25.00", "25.00", "40.00", "25.00", "40.00", "40.00", "25.00"} {
		addr := address()
		createdAt := early
		if i%2 == 1 {
			createdAt = late
		}
		order := models.Order{
			ID:              uuid.New(),
			BuyerID:         buyer,
			PaymentStatus:   enums.PaymentStatusPending,
			TotalAmount:     decimal.RequireFromString(amount),
			TotalItems:      1,
			UniqueItems:     1,
			ShippingAddress: &addr,
			CreatedAt:       createdAt,
		}
		require.NoError(t, f.conn.Create(&order).Error)
		seeded = append(seeded, order)
	}

	expected := func(orderBy OrderBy) []uuid.UUID {
		rows := append([]models.Order(nil), seeded...)
		sort.Slice(rows, func(i, j int) bool {
			a, b := rows[i], rows[j]
			var cmp int
			if orderBy.byAmount() {
				cmp = a.TotalAmount.Cmp(b.TotalAmount)
			} else {
				cmp = a.CreatedAt.Compare(b.CreatedAt)
			}
			if cmp == 0 {
				cmp = strings.Compare(a.ID.String(), b.ID.String())
			}
			if orderBy.descending() {
				return cmp > 0
			}
			return cmp < 0
		})
		ids := make([]uuid.UUID, len(rows))
		for i := range rows {
			ids[i] = rows[i].ID
		}
		return ids
	}

	for _, orderBy := range []OrderBy{OrderByCreatedAtDesc, OrderByCreatedAtAsc, OrderByTotalAmountDesc, OrderByTotalAmountAsc} {
		for _, limit := range []int{1, 2, 3} {
			ids := collect(t, f.svc, buyer, ListQuery{Limit: limit, OrderBy: orderBy})
			require.Equal(t, expected(orderBy), ids, "order_by=%s limit=%d", orderBy, limit)
		}
	}
}

func TestListUserOrdersFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := uuid.New()
	f.addToCart(t, buyer, f.seedProduct(t, "10.00", 3).ID, 1)
	order, err := f.svc.CreateOrder(ctx, buyer, CreateOrderInput{ShippingAddress: address()})
	require.NoError(t, err)
	seedOrders(t, f.conn, buyer, "15")
	_, err = f.svc.PayOrder(ctx, order.ID)
	require.NoError(t, err)

	list, err := f.svc.ListUserOrders(ctx, buyer, ListQuery{Search: "bc-204"})
	require.NoError(t, err)
	require.Len(t, list.Orders, 1)
	require.Equal(t, order.ID, list.Orders[0].ID)

	list, err = f.svc.ListUserOrders(ctx, buyer, ListQuery{Statuses: []enums.PaymentStatus{enums.PaymentStatusPending}})
	require.NoError(t, err)
	require.Len(t, list.Orders, 1)
	require.NotEqual(t, order.ID, list.Orders[0].ID)

	list, err = f.svc.ListUserOrders(ctx, buyer, ListQuery{Search: "100%"})
	require.NoError(t, err)
	require.Empty(t, list.Orders)
}

func TestListUserOrdersRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := uuid.New()

	_, err := f.svc.ListUserOrders(ctx, buyer, ListQuery{Cursor: "not-a-cursor"})
	requireCode(t, err, pkgerrors.CodeValidation)
	_, err = f.svc.ListUserOrders(ctx, buyer, ListQuery{OrderBy: "price"})
	requireCode(t, err, pkgerrors.CodeValidation)
	_, err = f.svc.ListUserOrders(ctx, buyer, ListQuery{Limit: 101})
	requireCode(t, err, pkgerrors.CodeValidation)
	_, err = f.svc.ListUserOrders(ctx, buyer, ListQuery{Statuses: []enums.PaymentStatus{"settled"}})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestFromModelCounters(t *testing.T) {
	dto := FromModel(&models.Order{Items: []models.OrderItem{
		{Status: enums.OrderItemStatusShipped},
		{Status: enums.OrderItemStatusDelivered},
		{Status: enums.OrderItemStatusPending},
	}})
	require.Equal(t, 2, dto.ShippedItems)
	require.Equal(t, 1, dto.DeliveredItems)
}

func TestPendingReaderFindsStaleOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seeded := seedOrders(t, f.conn, uuid.New(), "10.00", "20.00", "30.00")
	require.NoError(t, f.conn.Model(&models.Order{}).Where("id = ?", seeded[0].ID).
		Update("payment_status", enums.PaymentStatusPaid).Error)

	reader := NewPendingReader(f.conn)
	cutoff := seeded[2].CreatedAt
	rows, err := reader.FindPendingBefore(ctx, cutoff, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, seeded[1].ID, rows[0].ID)

	rows, err = reader.FindPendingBefore(ctx, cutoff.Add(time.Hour), 1)
	require.NoError(t, err)
	require.Len(t, rows, 1, "limit caps the batch")
	require.Equal(t, seeded[1].ID, rows[0].ID)
}

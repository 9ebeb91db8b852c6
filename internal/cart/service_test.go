package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	product "github.com/angelmondragon/partsmarket-backend/internal/products"
	"github.com/angelmondragon/partsmarket-backend/pkg/db/dbtest"
	"github.com/angelmondragon/partsmarket-backend/pkg/db/models"
	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/partsmarket-backend/pkg/errors"
)

type fixture struct {
	conn *gorm.DB
	svc  Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn, client := dbtest.Client(t)
	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(conn),
		Products: product.NewRepository(conn),
		TX:       client,
	})
	require.NoError(t, err)
	return fixture{conn: conn, svc: svc}
}

func (f fixture) seedProduct(t *testing.T, onHand int, mutate ...func(*models.Product)) *models.Product {
	t.Helper()
	p := &models.Product{
		ID:               uuid.New(),
		OrgID:            uuid.New(),
		Title:            "Alternator",
		Description:      "12V rebuilt alternator",
		PartNumber:       "ALT-12",
		Condition:        enums.ProductConditionRefurbished,
		Price:            decimal.RequireFromString("120.00"),
		StockType:        enums.StockTypeStock,
		QuantityOriginal: onHand,
		QuantityOnHand:   onHand,
		AllowCart:        true,
		AllowChat:        true,
		Status:           enums.ProductStatusPublished,
	}
	for _, fn := range mutate {
		fn(p)
	}
	require.NoError(t, product.NewRepository(f.conn).Create(context.Background(), p))
	return p
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, code, typed.Code())
}

func TestGetOrCreateCartIsIdempotent(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()

	first, err := f.svc.GetOrCreateCart(context.Background(), userID, false)
	require.NoError(t, err)
	second, err := f.svc.GetOrCreateCart(context.Background(), userID, false)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, f.conn.Model(&models.Cart{}).Where("user_id = ?", userID).Count(&count).Error)
	require.EqualValues(t, 1, count)
	require.True(t, second.TotalAmount.IsZero())
}

func TestAddItemSnapshotsProduct(t *testing.T) {
	f := newFixture(t)
	p := f.seedProduct(t, 5)
	userID := uuid.New()

	view, err := f.svc.AddItem(context.Background(), userID, p.ID, 2)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	item := view.Items[0]
	require.Equal(t, p.Title, item.ProductTitle)
	require.Equal(t, p.PartNumber, item.ProductPartNumber)
	require.Equal(t, p.OrgID, item.SellerOrgID)
	require.True(t, item.UnitPrice.Equal(p.Price))
	require.Equal(t, 1, view.UniqueItems)
	require.Equal(t, 2, view.TotalQuantity)
	require.True(t, view.TotalAmount.Equal(decimal.RequireFromString("240")))
}

func TestAddItemMergesAndRejectsOverStock(t *testing.T) {
	f := newFixture(t)
	p := f.seedProduct(t, 5)
	userID := uuid.New()

	_, err := f.svc.AddItem(context.Background(), userID, p.ID, 3)
	require.NoError(t, err)

	_, err = f.svc.AddItem(context.Background(), userID, p.ID, 4)
	requireCode(t, err, pkgerrors.CodeConflict)

	view, err := f.svc.AddItem(context.Background(), userID, p.ID, 2)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	require.Equal(t, 5, view.Items[0].Quantity)
}

func TestAddItemRejections(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()

	_, err := f.svc.AddItem(context.Background(), userID, uuid.New(), 0)
	requireCode(t, err, pkgerrors.CodeValidation)
	_, err = f.svc.AddItem(context.Background(), userID, uuid.New(), 100)
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = f.svc.AddItem(context.Background(), userID, uuid.New(), 1)
	requireCode(t, err, pkgerrors.CodeNotFound)

	draft := f.seedProduct(t, 3, func(p *models.Product) { p.Status = enums.ProductStatusDraft })
	_, err = f.svc.AddItem(context.Background(), userID, draft.ID, 1)
	requireCode(t, err, pkgerrors.CodeConflict)

	unique := f.seedProduct(t, 1, func(p *models.Product) {
		p.StockType = enums.StockTypeUnique
		p.AllowCart = false
		p.QuantityOriginal = 1
	})
	_, err = f.svc.AddItem(context.Background(), userID, unique.ID, 1)
	requireCode(t, err, pkgerrors.CodeConflict)

	chatOnly := f.seedProduct(t, 3, func(p *models.Product) { p.AllowCart = false })
	_, err = f.svc.AddItem(context.Background(), userID, chatOnly.ID, 1)
	requireCode(t, err, pkgerrors.CodeConflict)

	scarce := f.seedProduct(t, 1)
	_, err = f.svc.AddItem(context.Background(), userID, scarce.ID, 2)
	requireCode(t, err, pkgerrors.CodeConflict)
}

func TestUpdateQuantityOwnership(t *testing.T) {
	f := newFixture(t)
	p := f.seedProduct(t, 10)
	owner := uuid.New()

	view, err := f.svc.AddItem(context.Background(), owner, p.ID, 1)
	require.NoError(t, err)
	itemID := view.Items[0].ID

	_, err = f.svc.UpdateQuantity(context.Background(), uuid.New(), itemID, 2)
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = f.svc.UpdateQuantity(context.Background(), owner, uuid.New(), 2)
	requireCode(t, err, pkgerrors.CodeNotFound)

	_, err = f.svc.UpdateQuantity(context.Background(), owner, itemID, 11)
	requireCode(t, err, pkgerrors.CodeConflict)

	view, err = f.svc.UpdateQuantity(context.Background(), owner, itemID, 7)
	require.NoError(t, err)
	require.Equal(t, 7, view.Items[0].Quantity)
}

func TestLockAndPurchaseLifecycle(t *testing.T) {
	f := newFixture(t)
	p1 := f.seedProduct(t, 10)
	p2 := f.seedProduct(t, 10)
	userID := uuid.New()
	orderID := uuid.New()

	_, err := f.svc.AddItem(context.Background(), userID, p1.ID, 1)
	require.NoError(t, err)
	view, err := f.svc.AddItem(context.Background(), userID, p2.ID, 2)
	require.NoError(t, err)
	require.Len(t, view.Items, 2)

	rows, err := f.svc.LockItems(context.Background(), orderID, userID)
	require.NoError(t, err)
	require.EqualValues(t, 2, rows)

	var locked []models.CartItem
	require.NoError(t, f.conn.Where("status = ?", enums.CartItemStatusLocked).Find(&locked).Error)
	require.Len(t, locked, 2)
	for _, item := range locked {
		require.NotNil(t, item.OrderID)
		require.Equal(t, orderID, *item.OrderID)
		require.NotNil(t, item.LockedAt)
	}

	active, err := f.svc.GetOrCreateCart(context.Background(), userID, false)
	require.NoError(t, err)
	require.Empty(t, active.Items)
	require.True(t, active.TotalAmount.IsZero())

	withLocked, err := f.svc.GetOrCreateCart(context.Background(), userID, true)
	require.NoError(t, err)
	require.Len(t, withLocked.Items, 2)
	require.Zero(t, withLocked.TotalQuantity, "locked lines do not count toward totals")

	_, err = f.svc.RemoveItem(context.Background(), userID, locked[0].ID)
	requireCode(t, err, pkgerrors.CodeConflict)

	rows, err = f.svc.PurchaseItems(context.Background(), orderID, userID)
	require.NoError(t, err)
	require.EqualValues(t, 2, rows)

	rows, err = f.svc.PurchaseItems(context.Background(), orderID, userID)
	require.NoError(t, err)
	require.Zero(t, rows)

	rows, err = f.svc.LockItems(context.Background(), orderID, userID)
	require.NoError(t, err)
	require.Zero(t, rows)

	withLocked, err = f.svc.GetOrCreateCart(context.Background(), userID, true)
	require.NoError(t, err)
	require.Empty(t, withLocked.Items, "purchased lines are never returned")
}

func TestLockItemsSubset(t *testing.T) {
	f := newFixture(t)
	p1 := f.seedProduct(t, 10)
	p2 := f.seedProduct(t, 10)
	userID := uuid.New()

	_, err := f.svc.AddItem(context.Background(), userID, p1.ID, 1)
	require.NoError(t, err)
	view, err := f.svc.AddItem(context.Background(), userID, p2.ID, 1)
	require.NoError(t, err)

	var target uuid.UUID
	for _, item := range view.Items {
		if item.ProductID == p2.ID {
			target = item.ID
		}
	}

	rows, err := f.svc.LockItems(context.Background(), uuid.New(), userID, target)
	require.NoError(t, err)
	require.EqualValues(t, 1, rows)

	remaining, err := f.svc.GetOrCreateCart(context.Background(), userID, false)
	require.NoError(t, err)
	require.Len(t, remaining.Items, 1)
	require.Equal(t, p1.ID, remaining.Items[0].ProductID)
}

func TestLockItemsIgnoresOtherUsers(t *testing.T) {
	f := newFixture(t)
	p := f.seedProduct(t, 10)
	buyer := uuid.New()

	_, err := f.svc.AddItem(context.Background(), buyer, p.ID, 1)
	require.NoError(t, err)

	rows, err := f.svc.LockItems(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)
	require.Zero(t, rows)
}

func TestRemoveAndClear(t *testing.T) {
	f := newFixture(t)
	p1 := f.seedProduct(t, 10)
	p2 := f.seedProduct(t, 10)
	userID := uuid.New()

	view, err := f.svc.AddItem(context.Background(), userID, p1.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.AddItem(context.Background(), userID, p2.ID, 1)
	require.NoError(t, err)

	_, err = f.svc.RemoveItem(context.Background(), uuid.New(), view.Items[0].ID)
	requireCode(t, err, pkgerrors.CodeForbidden)

	view, err = f.svc.RemoveItem(context.Background(), userID, view.Items[0].ID)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)

	rows, err := f.svc.ClearCart(context.Background(), userID)
	require.NoError(t, err)
	require.EqualValues(t, 1, rows)
}

func TestBuildViewCountsActiveOnly(t *testing.T) {
	orderID := uuid.New()
	cart := &models.Cart{ID: uuid.New(), UserID: uuid.New()}
	items := []models.CartItem{
		{ID: uuid.New(), UnitPrice: decimal.RequireFromString("10.50"), Quantity: 2, Status: enums.CartItemStatusActive},
		{ID: uuid.New(), UnitPrice: decimal.RequireFromString("99.00"), Quantity: 1, Status: enums.CartItemStatusLocked, OrderID: &orderID},
	}
	view := buildView(cart, items)
	require.Len(t, view.Items, 2)
	require.Equal(t, 1, view.UniqueItems)
	require.Equal(t, 2, view.TotalQuantity)
	require.True(t, view.TotalAmount.Equal(decimal.RequireFromString("21")))
}

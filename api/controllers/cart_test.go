package controllers

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	cartsvc "github.com/angelmondragon/partsmarket-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/partsmarket-backend/pkg/errors"
)

type stubCartService struct {
	view          *cartsvc.CartView
	err           error
	includeLocked bool
	added         []int
	updatedItem   uuid.UUID
	removedItem   uuid.UUID
}

func (s *stubCartService) WithTx(*gorm.DB) cartsvc.Service { return s }

func (s *stubCartService) GetOrCreateCart(_ context.Context, userID uuid.UUID, includeLocked bool) (*cartsvc.CartView, error) {
	s.includeLocked = includeLocked
	return s.result(userID)
}

func (s *stubCartService) AddItem(_ context.Context, userID, _ uuid.UUID, quantity int) (*cartsvc.CartView, error) {
	s.added = append(s.added, quantity)
	return s.result(userID)
}

func (s *stubCartService) UpdateQuantity(_ context.Context, userID, itemID uuid.UUID, _ int) (*cartsvc.CartView, error) {
	s.updatedItem = itemID
	return s.result(userID)
}

func (s *stubCartService) RemoveItem(_ context.Context, userID, itemID uuid.UUID) (*cartsvc.CartView, error) {
	s.removedItem = itemID
	return s.result(userID)
}

func (s *stubCartService) ClearCart(context.Context, uuid.UUID) (int64, error) { return 3, s.err }

func (s *stubCartService) LockItems(context.Context, uuid.UUID, uuid.UUID, ...uuid.UUID) (int64, error) {
	return 0, nil
}

func (s *stubCartService) PurchaseItems(context.Context, uuid.UUID, uuid.UUID) (int64, error) {
	return 0, nil
}

func (s *stubCartService) result(userID uuid.UUID) (*cartsvc.CartView, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.view != nil {
		return s.view, nil
	}
	return &cartsvc.CartView{ID: uuid.New(), UserID: userID, Items: []cartsvc.CartItemDTO{}}, nil
}

func TestCartGetRequiresAuthentication(t *testing.T) {
	req := newRequest(t, http.MethodGet, "/v1/cart", nil, uuid.Nil, nil)
	if rec := serve(CartGet(&stubCartService{}, testLogger()), req); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCartGetIncludeLocked(t *testing.T) {
	svc := &stubCartService{}
	req := newRequest(t, http.MethodGet, "/v1/cart?include_locked=true", nil, uuid.New(), nil)

	rec := serve(CartGet(svc, testLogger()), req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !svc.includeLocked {
		t.Fatal("include_locked not forwarded")
	}

	req = newRequest(t, http.MethodGet, "/v1/cart?include_locked=maybe", nil, uuid.New(), nil)
	if rec := serve(CartGet(svc, testLogger()), req); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed flag, got %d", rec.Code)
	}
}

func TestCartAddItemValidatesQuantity(t *testing.T) {
	svc := &stubCartService{}
	user := uuid.New()

	req := newRequest(t, http.MethodPost, "/v1/cart/items", map[string]any{"product_id": uuid.New(), "quantity": 0}, user, nil)
	if rec := serve(CartAddItem(svc, testLogger()), req); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero quantity, got %d", rec.Code)
	}

	req = newRequest(t, http.MethodPost, "/v1/cart/items", map[string]any{"product_id": uuid.New(), "quantity": 2}, user, nil)
	if rec := serve(CartAddItem(svc, testLogger()), req); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if len(svc.added) != 1 || svc.added[0] != 2 {
		t.Fatalf("unexpected add calls %v", svc.added)
	}
}

func TestCartAddItemSurfacesStockConflict(t *testing.T) {
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock")}
	req := newRequest(t, http.MethodPost, "/v1/cart/items", map[string]any{"product_id": uuid.New(), "quantity": 5}, uuid.New(), nil)

	rec := serve(CartAddItem(svc, testLogger()), req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestCartItemRoutesParseItemID(t *testing.T) {
	svc := &stubCartService{}
	user := uuid.New()
	itemID := uuid.New()

	req := newRequest(t, http.MethodPatch, "/v1/cart/items/x", map[string]int{"quantity": 4}, user, map[string]string{"item_id": itemID.String()})
	if rec := serve(CartUpdateItem(svc, testLogger()), req); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.updatedItem != itemID {
		t.Fatalf("update routed to %s", svc.updatedItem)
	}

	req = newRequest(t, http.MethodDelete, "/v1/cart/items/x", nil, user, map[string]string{"item_id": "nope"})
	if rec := serve(CartRemoveItem(svc, testLogger()), req); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", rec.Code)
	}
	if svc.removedItem != uuid.Nil {
		t.Fatal("remove must not run for malformed id")
	}
}

func TestCartClearReportsRemoved(t *testing.T) {
	req := newRequest(t, http.MethodDelete, "/v1/cart", nil, uuid.New(), nil)
	rec := serve(CartClear(&stubCartService{}, testLogger()), req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if env := decodeEnvelope(t, rec); string(env.Data) != `{"removed":3}` {
		t.Fatalf("unexpected body %s", env.Data)
	}
}

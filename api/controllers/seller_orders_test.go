package controllers

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/partsmarket-backend/internal/fulfillment"
	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/partsmarket-backend/pkg/errors"
)

type stubFulfillmentService struct {
	query  fulfillment.ListQuery
	action string
	ship   fulfillment.ShipInput
	reject fulfillment.RejectInput
	err    error
}

func (s *stubFulfillmentService) ListItems(_ context.Context, _ uuid.UUID, query fulfillment.ListQuery) (*fulfillment.ItemList, error) {
	s.query = query
	return &fulfillment.ItemList{Items: []fulfillment.SellerOrderItemView{}}, s.err
}

func (s *stubFulfillmentService) GetItem(context.Context, uuid.UUID, uuid.UUID) (*fulfillment.SellerOrderItemView, error) {
	return s.view("get")
}

func (s *stubFulfillmentService) AcceptItem(context.Context, uuid.UUID, uuid.UUID) (*fulfillment.SellerOrderItemView, error) {
	return s.view("accept")
}

func (s *stubFulfillmentService) RejectItem(_ context.Context, _, _ uuid.UUID, in fulfillment.RejectInput) (*fulfillment.SellerOrderItemView, error) {
	s.reject = in
	return s.view("reject")
}

func (s *stubFulfillmentService) ShipItem(_ context.Context, _, _ uuid.UUID, in fulfillment.ShipInput) (*fulfillment.SellerOrderItemView, error) {
	s.ship = in
	return s.view("ship")
}

func (s *stubFulfillmentService) DeliverItem(context.Context, uuid.UUID, uuid.UUID, fulfillment.DeliverInput) (*fulfillment.SellerOrderItemView, error) {
	return s.view("deliver")
}

func (s *stubFulfillmentService) view(action string) (*fulfillment.SellerOrderItemView, error) {
	s.action = action
	if s.err != nil {
		return nil, s.err
	}
	return &fulfillment.SellerOrderItemView{}, nil
}

func TestSellerOrdersListFilters(t *testing.T) {
	svc := &stubFulfillmentService{}
	orgID := uuid.New()
	req := newRequest(t, http.MethodGet, "/v1/seller/orders?statuses=pending,confirmed&org_id="+orgID.String()+"&search=+brake+&limit=10", nil, uuid.New(), nil)

	if rec := serve(SellerOrdersList(svc, testLogger()), req); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	q := svc.query
	if len(q.Statuses) != 2 || q.Statuses[0] != enums.OrderItemStatusPending || q.Statuses[1] != enums.OrderItemStatusConfirmed {
		t.Fatalf("unexpected statuses %v", q.Statuses)
	}
	if q.OrgID == nil || *q.OrgID != orgID || q.Search != "brake" || q.Limit != 10 {
		t.Fatalf("unexpected query %+v", q)
	}
}

func TestSellerOrdersListRejectsUnknownStatus(t *testing.T) {
	req := newRequest(t, http.MethodGet, "/v1/seller/orders?statuses=lost", nil, uuid.New(), nil)
	if rec := serve(SellerOrdersList(&stubFulfillmentService{}, testLogger()), req); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSellerOrderRejectWithoutBody(t *testing.T) {
	svc := &stubFulfillmentService{}
	req := newRequest(t, http.MethodPost, "/v1/seller/orders/x/reject", nil, uuid.New(), map[string]string{"order_item_id": uuid.NewString()})

	if rec := serve(SellerOrderReject(svc, testLogger()), req); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.action != "reject" || svc.reject.Reason != nil {
		t.Fatalf("unexpected reject call %+v", svc)
	}
}

func TestSellerOrderShipRequiresTracking(t *testing.T) {
	svc := &stubFulfillmentService{}
	params := map[string]string{"order_item_id": uuid.NewString()}

	req := newRequest(t, http.MethodPost, "/v1/seller/orders/x/ship", map[string]string{"carrier_code": "ups"}, uuid.New(), params)
	if rec := serve(SellerOrderShip(svc, testLogger()), req); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without tracking number, got %d", rec.Code)
	}

	req = newRequest(t, http.MethodPost, "/v1/seller/orders/x/ship", map[string]string{"carrier_code": "ups", "tracking_number": "1Z999"}, uuid.New(), params)
	if rec := serve(SellerOrderShip(svc, testLogger()), req); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.ship.TrackingNumber != "1Z999" {
		t.Fatalf("tracking number not forwarded: %+v", svc.ship)
	}
}

func TestSellerOrderTransitionErrors(t *testing.T) {
	params := map[string]string{"order_item_id": uuid.NewString()}
	cases := []struct {
		name    string
		err     error
		handler func(fulfillment.Service) http.HandlerFunc
		status  int
	}{
		{"accept out of state", pkgerrors.New(pkgerrors.CodeStateConflict, "item is not pending"), func(s fulfillment.Service) http.HandlerFunc { return SellerOrderAccept(s, testLogger()) }, http.StatusConflict},
		{"deliver other org", pkgerrors.New(pkgerrors.CodeForbidden, "item belongs to another organization"), func(s fulfillment.Service) http.HandlerFunc { return SellerOrderDeliver(s, testLogger()) }, http.StatusForbidden},
		{"detail missing", pkgerrors.New(pkgerrors.CodeNotFound, "order item not found"), func(s fulfillment.Service) http.HandlerFunc { return SellerOrderDetail(s, testLogger()) }, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubFulfillmentService{err: tc.err}
			req := newRequest(t, http.MethodPost, "/v1/seller/orders/x", nil, uuid.New(), params)
			if rec := serve(tc.handler(svc), req); rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
		})
	}
}

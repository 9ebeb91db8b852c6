package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
)

// OrderCreatedItem summarizes one order item inside OrderCreatedEvent.
type OrderCreatedItem struct {
	OrderItemID uuid.UUID       `json:"order_item_id"`
	SellerOrgID uuid.UUID       `json:"seller_org_id"`
	ProductID   *uuid.UUID      `json:"product_id,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

// OrderCreatedEvent is emitted when checkout snapshots a cart into a pending order.
type OrderCreatedEvent struct {
	OrderID      uuid.UUID          `json:"order_id"`
	BuyerID      uuid.UUID          `json:"buyer_id"`
	TotalAmount  decimal.Decimal    `json:"total_amount"`
	TotalItems   int                `json:"total_items"`
	UniqueItems  int                `json:"unique_items"`
	SellerOrgIDs []uuid.UUID        `json:"seller_org_ids"`
	Items        []OrderCreatedItem `json:"items"`
	CreatedAt    time.Time          `json:"created_at"`
}

// OrderPaidEvent is emitted once when the payment provider confirms the order.
type OrderPaidEvent struct {
	OrderID           uuid.UUID       `json:"order_id"`
	BuyerID           uuid.UUID       `json:"buyer_id"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	CheckoutSessionID *string         `json:"checkout_session_id,omitempty"`
	PaymentIntentID   *string         `json:"payment_intent_id,omitempty"`
	PaidAt            time.Time       `json:"paid_at"`
}

// OrderPaymentStatusChangedEvent covers non-success outcomes (expired, failed).
type OrderPaymentStatusChangedEvent struct {
	OrderID        uuid.UUID           `json:"order_id"`
	BuyerID        uuid.UUID           `json:"buyer_id"`
	PreviousStatus enums.PaymentStatus `json:"previous_status"`
	Status         enums.PaymentStatus `json:"status"`
	TotalAmount    decimal.Decimal     `json:"total_amount"`
	ChangedAt      time.Time           `json:"changed_at"`
}

// OrderItemStatusChangedEvent is emitted for every seller fulfillment transition.
type OrderItemStatusChangedEvent struct {
	OrderItemID     uuid.UUID               `json:"order_item_id"`
	OrderID         uuid.UUID               `json:"order_id"`
	SellerOrgID     uuid.UUID               `json:"seller_org_id"`
	Action          enums.FulfillmentAction `json:"action"`
	FromStatus      enums.OrderItemStatus   `json:"from_status"`
	ToStatus        enums.OrderItemStatus   `json:"to_status"`
	TotalPrice      decimal.Decimal         `json:"total_price"`
	CarrierCode     *string                 `json:"carrier_code,omitempty"`
	TrackingNumber  *string                 `json:"tracking_number,omitempty"`
	RejectionReason *string                 `json:"rejection_reason,omitempty"`
	ChangedAt       time.Time               `json:"changed_at"`
}

// ProductStockAdjustedEvent records a manual stock correction by a seller.
type ProductStockAdjustedEvent struct {
	ProductID      uuid.UUID `json:"product_id"`
	OrgID          uuid.UUID `json:"org_id"`
	Delta          int       `json:"delta"`
	QuantityOnHand int       `json:"quantity_on_hand"`
	AdjustedAt     time.Time `json:"adjusted_at"`
}

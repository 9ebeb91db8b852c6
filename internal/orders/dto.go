package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/partsmarket-backend/pkg/db/models"
	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
	"github.com/angelmondragon/partsmarket-backend/pkg/types"
)

// OrderBy names the supported list orderings.
type OrderBy string

const (
	OrderByCreatedAtDesc   OrderBy = "created_at_desc"
	OrderByCreatedAtAsc    OrderBy = "created_at_asc"
	OrderByTotalAmountDesc OrderBy = "total_amount_desc"
	OrderByTotalAmountAsc  OrderBy = "total_amount_asc"
)

// IsValid reports whether the ordering is supported.
func (o OrderBy) IsValid() bool {
	switch o {
	case OrderByCreatedAtDesc, OrderByCreatedAtAsc, OrderByTotalAmountDesc, OrderByTotalAmountAsc:
		return true
	}
	return false
}

func (o OrderBy) byAmount() bool {
	return o == OrderByTotalAmountDesc || o == OrderByTotalAmountAsc
}

func (o OrderBy) descending() bool {
	return o == OrderByCreatedAtDesc || o == OrderByTotalAmountDesc
}

// CreateOrderInput is the checkout payload. An empty CartItemIDs selects every ACTIVE item.
type CreateOrderInput struct {
	CartItemIDs     []uuid.UUID           `json:"cart_item_ids,omitempty"`
	ShippingAddress types.ShippingAddress `json:"shipping_address"`
	Notes           *string               `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// ListQuery filters and pages the buyer's orders.
type ListQuery struct {
	Statuses []enums.PaymentStatus
	Search   string
	OrderBy  OrderBy
	Cursor   string
	Limit    int
}

// OrderItemDTO is one seller line of an order.
type OrderItemDTO struct {
	ID                 uuid.UUID              `json:"id"`
	SellerOrgID        uuid.UUID              `json:"seller_org_id"`
	ProductID          *uuid.UUID             `json:"product_id,omitempty"`
	MakeID             *uuid.UUID             `json:"make_id,omitempty"`
	MakeName           *string                `json:"make_name,omitempty"`
	ProductTitle       string                 `json:"product_title"`
	ProductDescription string                 `json:"product_description"`
	ProductPartNumber  string                 `json:"product_part_number"`
	ProductCondition   enums.ProductCondition `json:"product_condition"`
	UnitPrice          decimal.Decimal        `json:"unit_price"`
	Quantity           int                    `json:"quantity"`
	TotalPrice         decimal.Decimal        `json:"total_price"`
	Status             enums.OrderItemStatus  `json:"status"`
	CarrierCode        *string                `json:"carrier_code,omitempty"`
	TrackingNumber     *string                `json:"tracking_number,omitempty"`
	TrackingURL        *string                `json:"tracking_url,omitempty"`
	ShippedAt          *time.Time             `json:"shipped_at,omitempty"`
	DeliveredAt        *time.Time             `json:"delivered_at,omitempty"`
	CancelledAt        *time.Time             `json:"cancelled_at,omitempty"`
	RejectionReason    *string                `json:"rejection_reason,omitempty"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`
}

// OrderDTO is the buyer view of an order with its items and progress counters.
type OrderDTO struct {
	ID                      uuid.UUID              `json:"id"`
	BuyerID                 uuid.UUID              `json:"buyer_id"`
	PaymentStatus           enums.PaymentStatus    `json:"payment_status"`
	TotalAmount             decimal.Decimal        `json:"total_amount"`
	TotalItems              int                    `json:"total_items"`
	UniqueItems             int                    `json:"unique_items"`
	Notes                   *string                `json:"notes,omitempty"`
	ShippingAddress         *types.ShippingAddress `json:"shipping_address,omitempty"`
	StripeCheckoutSessionID *string                `json:"stripe_checkout_session_id,omitempty"`
	PaidAt                  *time.Time             `json:"paid_at,omitempty"`
	Items                   []OrderItemDTO         `json:"items"`
	ShippedItems            int                    `json:"shipped_items"`
	DeliveredItems          int                    `json:"delivered_items"`
	CreatedAt               time.Time              `json:"created_at"`
	UpdatedAt               time.Time              `json:"updated_at"`
}

// OrderList is a cursor page of orders.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// ItemFromModel maps a persisted order item.
func ItemFromModel(item models.OrderItem) OrderItemDTO {
	return OrderItemDTO{
		ID:                 item.ID,
		SellerOrgID:        item.SellerOrgID,
		ProductID:          item.ProductID,
		MakeID:             item.MakeID,
		MakeName:           item.MakeName,
		ProductTitle:       item.ProductTitle,
		ProductDescription: item.ProductDescription,
		ProductPartNumber:  item.ProductPartNumber,
		ProductCondition:   item.ProductCondition,
		UnitPrice:          item.UnitPrice,
		Quantity:           item.Quantity,
		TotalPrice:         item.TotalPrice,
		Status:             item.Status,
		CarrierCode:        item.CarrierCode,
		TrackingNumber:     item.TrackingNumber,
		TrackingURL:        item.TrackingURL,
		ShippedAt:          item.ShippedAt,
		DeliveredAt:        item.DeliveredAt,
		CancelledAt:        item.CancelledAt,
		RejectionReason:    item.RejectionReason,
		CreatedAt:          item.CreatedAt,
		UpdatedAt:          item.UpdatedAt,
	}
}

// FromModel maps an order and derives the shipped/delivered counters.
func FromModel(o *models.Order) OrderDTO {
	dto := OrderDTO{
		ID:                      o.ID,
		BuyerID:                 o.BuyerID,
		PaymentStatus:           o.PaymentStatus,
		TotalAmount:             o.TotalAmount,
		TotalItems:              o.TotalItems,
		UniqueItems:             o.UniqueItems,
		Notes:                   o.Notes,
		ShippingAddress:         o.ShippingAddress,
		StripeCheckoutSessionID: o.StripeCheckoutSessionID,
		PaidAt:                  o.PaidAt,
		Items:                   make([]OrderItemDTO, 0, len(o.Items)),
		CreatedAt:               o.CreatedAt,
		UpdatedAt:               o.UpdatedAt,
	}
	for _, item := range o.Items {
		dto.Items = append(dto.Items, ItemFromModel(item))
		switch item.Status {
		case enums.OrderItemStatusShipped:
			dto.ShippedItems++
		case enums.OrderItemStatusDelivered:
			dto.ShippedItems++
			dto.DeliveredItems++
		}
	}
	return dto
}

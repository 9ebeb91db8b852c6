package fulfillment

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/partsmarket-backend/internal/orders"
	"github.com/angelmondragon/partsmarket-backend/pkg/db/models"
	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
	"github.com/angelmondragon/partsmarket-backend/pkg/types"
)

// ListQuery filters the seller's order items.
type ListQuery struct {
	Statuses []enums.OrderItemStatus
	Search   string
	OrgID    *uuid.UUID
	Cursor   string
	Limit    int
}

// ShipInput carries the tracking data required to ship an item.
type ShipInput struct {
	CarrierCode    string     `json:"carrier_code" validate:"required,max=64"`
	TrackingNumber string     `json:"tracking_number" validate:"required,max=128"`
	TrackingURL    *string    `json:"tracking_url,omitempty" validate:"omitempty,url,max=2048"`
	ShippedAt      *time.Time `json:"shipped_at,omitempty"`
}

type DeliverInput struct {
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

type RejectInput struct {
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=1000"`
}

// BuyerPreview is the minimal buyer identity a seller sees.
type BuyerPreview struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	Username string    `json:"username"`
}

// SellerOrderItemView is one order item as its seller sees it.
type SellerOrderItemView struct {
	orders.OrderItemDTO
	OrderID         uuid.UUID              `json:"order_id"`
	OrderReference  string                 `json:"order_reference"`
	OrderCreatedAt  time.Time              `json:"order_created_at"`
	PaymentStatus   enums.PaymentStatus    `json:"payment_status"`
	ShippingAddress *types.ShippingAddress `json:"shipping_address,omitempty"`
	Notes           *string                `json:"notes,omitempty"`
	Buyer           BuyerPreview           `json:"buyer"`
}

type ItemList struct {
	Items      []SellerOrderItemView `json:"items"`
	NextCursor string                `json:"next_cursor,omitempty"`
}

// sellerItemRow is the joined order_items + orders + users projection.
type sellerItemRow struct {
	models.OrderItem `gorm:"embedded"`
	OrderCreatedAt   time.Time              `gorm:"column:order_created_at"`
	PaymentStatus    enums.PaymentStatus    `gorm:"column:payment_status"`
	ShippingAddress  *types.ShippingAddress `gorm:"column:shipping_address"`
	Notes            *string                `gorm:"column:notes"`
	BuyerID          uuid.UUID              `gorm:"column:buyer_id"`
	BuyerEmail       string                 `gorm:"column:buyer_email"`
	BuyerUsername    string                 `gorm:"column:buyer_username"`
}

// OrderReference is the short human code for an order: the first eight hex
// digits of its id, upper-cased.
func OrderReference(orderID uuid.UUID) string {
	return strings.ToUpper(strings.ReplaceAll(orderID.String(), "-", "")[:8])
}

func (r sellerItemRow) view() SellerOrderItemView {
	return SellerOrderItemView{
		OrderItemDTO:    orders.ItemFromModel(r.OrderItem),
		OrderID:         r.OrderID,
		OrderReference:  OrderReference(r.OrderID),
		OrderCreatedAt:  r.OrderCreatedAt,
		PaymentStatus:   r.PaymentStatus,
		ShippingAddress: r.ShippingAddress,
		Notes:           r.Notes,
		Buyer: BuyerPreview{
			ID:       r.BuyerID,
			Email:    r.BuyerEmail,
			Username: r.BuyerUsername,
		},
	}
}

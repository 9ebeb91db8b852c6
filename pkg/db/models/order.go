package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
	"github.com/angelmondragon/partsmarket-backend/pkg/types"
)

// Order is the buyer-side aggregate created at checkout.
type Order struct {
	ID                      uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID                 uuid.UUID              `gorm:"column:buyer_id;type:uuid;not null"`
	PaymentStatus           enums.PaymentStatus    `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	TotalAmount             decimal.Decimal        `gorm:"column:total_amount;type:numeric(12,2);not null"`
	TotalItems              int                    `gorm:"column:total_items;not null"`
	UniqueItems             int                    `gorm:"column:unique_items;not null"`
	Notes                   *string                `gorm:"column:notes"`
	ShippingAddress         *types.ShippingAddress `gorm:"column:shipping_address;type:jsonb"`
	SourceCartItemIDs       pq.StringArray         `gorm:"column:source_cart_item_ids;type:text[];not null;default:'{}'"`
	StripeCheckoutSessionID *string                `gorm:"column:stripe_checkout_session_id"`
	StripePaymentIntentID   *string                `gorm:"column:stripe_payment_intent_id"`
	PaidAt                  *time.Time             `gorm:"column:paid_at"`
	Items                   []OrderItem            `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt               time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem is a per-seller line with a full product snapshot and its own
// fulfillment state.
type OrderItem struct {
	ID                 uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID            uuid.UUID              `gorm:"column:order_id;type:uuid;not null"`
	SellerOrgID        uuid.UUID              `gorm:"column:seller_org_id;type:uuid;not null"`
	ProductID          *uuid.UUID             `gorm:"column:product_id;type:uuid"`
	CartItemID         *uuid.UUID             `gorm:"column:cart_item_id;type:uuid"`
	MakeID             *uuid.UUID             `gorm:"column:make_id;type:uuid"`
	MakeName           *string                `gorm:"column:make_name"`
	ProductTitle       string                 `gorm:"column:product_title;not null"`
	ProductDescription string                 `gorm:"column:product_description;not null;default:''"`
	ProductPartNumber  string                 `gorm:"column:product_part_number;not null;default:''"`
	ProductCondition   enums.ProductCondition `gorm:"column:product_condition;type:text;not null"`
	UnitPrice          decimal.Decimal        `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Quantity           int                    `gorm:"column:quantity;not null"`
	TotalPrice         decimal.Decimal        `gorm:"column:total_price;type:numeric(12,2);not null"`
	Status             enums.OrderItemStatus  `gorm:"column:status;type:text;not null;default:'pending'"`
	CarrierCode        *string                `gorm:"column:carrier_code"`
	TrackingNumber     *string                `gorm:"column:tracking_number"`
	TrackingURL        *string                `gorm:"column:tracking_url"`
	ShippedAt          *time.Time             `gorm:"column:shipped_at"`
	DeliveredAt        *time.Time             `gorm:"column:delivered_at"`
	CancelledAt        *time.Time             `gorm:"column:cancelled_at"`
	RejectionReason    *string                `gorm:"column:rejection_reason"`
	CreatedAt          time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

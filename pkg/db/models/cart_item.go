package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
)

// CartItem snapshots a product line and tracks its reservation status.
type CartItem struct {
	ID                 uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID             uuid.UUID            `gorm:"column:cart_id;type:uuid;not null"`
	ProductID          uuid.UUID            `gorm:"column:product_id;type:uuid;not null"`
	SellerOrgID        uuid.UUID            `gorm:"column:seller_org_id;type:uuid;not null"`
	ProductTitle       string               `gorm:"column:product_title;not null"`
	ProductDescription string               `gorm:"column:product_description;not null;default:''"`
	ProductPartNumber  string               `gorm:"column:product_part_number;not null;default:''"`
	UnitPrice          decimal.Decimal      `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Quantity           int                  `gorm:"column:quantity;not null"`
	Status             enums.CartItemStatus `gorm:"column:status;type:text;not null;default:'active'"`
	OrderID            *uuid.UUID           `gorm:"column:order_id;type:uuid"`
	LockedAt           *time.Time           `gorm:"column:locked_at"`
	CreatedAt          time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// LineTotal is unit price times quantity.
func (c CartItem) LineTotal() decimal.Decimal {
	return c.UnitPrice.Mul(decimal.NewFromInt(int64(c.Quantity)))
}

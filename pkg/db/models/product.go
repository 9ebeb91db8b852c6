package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
)

// Product is a seller listing and its stock ledger.
type Product struct {
	ID               uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrgID            uuid.UUID              `gorm:"column:org_id;type:uuid;not null"`
	MakeID           *uuid.UUID             `gorm:"column:make_id;type:uuid"`
	MakeName         *string                `gorm:"column:make_name"`
	Title            string                 `gorm:"column:title;not null"`
	Description      string                 `gorm:"column:description;not null;default:''"`
	PartNumber       string                 `gorm:"column:part_number;not null;default:''"`
	Condition        enums.ProductCondition `gorm:"column:condition;type:text;not null"`
	Price            decimal.Decimal        `gorm:"column:price;type:numeric(12,2);not null"`
	StockType        enums.StockType        `gorm:"column:stock_type;type:text;not null"`
	QuantityOriginal int                    `gorm:"column:quantity_original;not null"`
	QuantityOnHand   int                    `gorm:"column:quantity_on_hand;not null"`
	AllowCart        bool                   `gorm:"column:allow_cart;not null"`
	AllowChat        bool                   `gorm:"column:allow_chat;not null"`
	Status           enums.ProductStatus    `gorm:"column:status;type:text;not null;default:'draft'"`
	FitmentTags      pq.StringArray         `gorm:"column:fitment_tags;type:text[];not null;default:'{}'"`
	CreatedAt        time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/partsmarket-backend/pkg/db/models"
	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
)

// CartItemDTO is one cart line as returned to the buyer.
type CartItemDTO struct {
	ID                 uuid.UUID            `json:"id"`
	ProductID          uuid.UUID            `json:"product_id"`
	SellerOrgID        uuid.UUID            `json:"seller_org_id"`
	ProductTitle       string               `json:"product_title"`
	ProductDescription string               `json:"product_description"`
	ProductPartNumber  string               `json:"product_part_number"`
	UnitPrice          decimal.Decimal      `json:"unit_price"`
	Quantity           int                  `json:"quantity"`
	LineTotal          decimal.Decimal      `json:"line_total"`
	Status             enums.CartItemStatus `json:"status"`
	OrderID            *uuid.UUID           `json:"order_id,omitempty"`
	LockedAt           *time.Time           `json:"locked_at,omitempty"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

// CartView is the cart with totals derived from ACTIVE items only.
type CartView struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	Items         []CartItemDTO   `json:"items"`
	UniqueItems   int             `json:"unique_items"`
	TotalQuantity int             `json:"total_quantity"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func itemFromModel(item models.CartItem) CartItemDTO {
	return CartItemDTO{
		ID:                 item.ID,
		ProductID:          item.ProductID,
		SellerOrgID:        item.SellerOrgID,
		ProductTitle:       item.ProductTitle,
		ProductDescription: item.ProductDescription,
		ProductPartNumber:  item.ProductPartNumber,
		UnitPrice:          item.UnitPrice,
		Quantity:           item.Quantity,
		LineTotal:          item.LineTotal(),
		Status:             item.Status,
		OrderID:            item.OrderID,
		LockedAt:           item.LockedAt,
		CreatedAt:          item.CreatedAt,
		UpdatedAt:          item.UpdatedAt,
	}
}

// buildView maps the cart and computes the derived totals.
func buildView(cart *models.Cart, items []models.CartItem) *CartView {
	view := &CartView{
		ID:          cart.ID,
		UserID:      cart.UserID,
		Items:       make([]CartItemDTO, 0, len(items)),
		TotalAmount: decimal.Zero,
		CreatedAt:   cart.CreatedAt,
		UpdatedAt:   cart.UpdatedAt,
	}
	for _, item := range items {
		view.Items = append(view.Items, itemFromModel(item))
		if item.Status != enums.CartItemStatusActive {
			continue
		}
		view.UniqueItems++
		view.TotalQuantity += item.Quantity
		view.TotalAmount = view.TotalAmount.Add(item.LineTotal())
	}
	return view
}

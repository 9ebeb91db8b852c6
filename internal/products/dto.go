package product

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/partsmarket-backend/pkg/db/models"
	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
	"github.com/angelmondragon/partsmarket-backend/pkg/pagination"
)

// CreateProductInput is the seller payload for a new listing.
type CreateProductInput struct {
	MakeID      *uuid.UUID             `json:"make_id,omitempty"`
	MakeName    *string                `json:"make_name,omitempty" validate:"omitempty,max=120"`
	Title       string                 `json:"title" validate:"required,max=200"`
	Description string                 `json:"description" validate:"max=5000"`
	PartNumber  string                 `json:"part_number" validate:"max=120"`
	Condition   enums.ProductCondition `json:"condition" validate:"required"`
	Price       decimal.Decimal        `json:"price"`
	StockType   enums.StockType        `json:"stock_type" validate:"required"`
	Quantity    int                    `json:"quantity" validate:"gte=0"`
	AllowCart   *bool                  `json:"allow_cart,omitempty"`
	AllowChat   *bool                  `json:"allow_chat,omitempty"`
	FitmentTags []string               `json:"fitment_tags,omitempty" validate:"omitempty,max=50,dive,max=80"`
	Publish     bool                   `json:"publish,omitempty"`
}

// ProductPatch carries the optional fields of a partial update. Nil means unchanged.
type ProductPatch struct {
	MakeID      *uuid.UUID              `json:"make_id,omitempty"`
	MakeName    *string                 `json:"make_name,omitempty" validate:"omitempty,max=120"`
	Title       *string                 `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string                 `json:"description,omitempty" validate:"omitempty,max=5000"`
	PartNumber  *string                 `json:"part_number,omitempty" validate:"omitempty,max=120"`
	Condition   *enums.ProductCondition `json:"condition,omitempty"`
	Price       *decimal.Decimal        `json:"price,omitempty"`
	StockType   *enums.StockType        `json:"stock_type,omitempty"`
	AllowCart   *bool                   `json:"allow_cart,omitempty"`
	AllowChat   *bool                   `json:"allow_chat,omitempty"`
	FitmentTags *[]string               `json:"fitment_tags,omitempty" validate:"omitempty,max=50,dive,max=80"`
}

// ProductDTO is the API representation of a listing.
type ProductDTO struct {
	ID               uuid.UUID              `json:"id"`
	OrgID            uuid.UUID              `json:"org_id"`
	MakeID           *uuid.UUID             `json:"make_id,omitempty"`
	MakeName         *string                `json:"make_name,omitempty"`
	Title            string                 `json:"title"`
	Description      string                 `json:"description"`
	PartNumber       string                 `json:"part_number"`
	Condition        enums.ProductCondition `json:"condition"`
	Price            decimal.Decimal        `json:"price"`
	StockType        enums.StockType        `json:"stock_type"`
	QuantityOriginal int                    `json:"quantity_original"`
	QuantityOnHand   int                    `json:"quantity_on_hand"`
	AllowCart        bool                   `json:"allow_cart"`
	AllowChat        bool                   `json:"allow_chat"`
	Status           enums.ProductStatus    `json:"status"`
	FitmentTags      []string               `json:"fitment_tags"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

// ProductList is a cursor page of listings.
type ProductList struct {
	Items      []ProductDTO `json:"items"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// CatalogQuery filters and pages the published catalog.
type CatalogQuery struct {
	CatalogFilter
	pagination.Params
}

func (q CatalogQuery) validate() error {
	if q.Condition != "" && !q.Condition.IsValid() {
		return invalid("invalid condition", "condition")
	}
	if q.PriceMin != nil && q.PriceMin.IsNegative() {
		return invalid("price_min must not be negative", "price_min")
	}
	if q.PriceMin != nil && q.PriceMax != nil && q.PriceMin.GreaterThan(*q.PriceMax) {
		return invalid("price_min must not exceed price_max", "price_min")
	}
	return nil
}

// FromModel maps the persistence model to the API shape.
func FromModel(p *models.Product) ProductDTO {
	tags := []string(p.FitmentTags)
	if tags == nil {
		tags = []string{}
	}
	return ProductDTO{
		ID:               p.ID,
		OrgID:            p.OrgID,
		MakeID:           p.MakeID,
		MakeName:         p.MakeName,
		Title:            p.Title,
		Description:      p.Description,
		PartNumber:       p.PartNumber,
		Condition:        p.Condition,
		Price:            p.Price,
		StockType:        p.StockType,
		QuantityOriginal: p.QuantityOriginal,
		QuantityOnHand:   p.QuantityOnHand,
		AllowCart:        p.AllowCart,
		AllowChat:        p.AllowChat,
		Status:           p.Status,
		FitmentTags:      tags,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func (in CreateProductInput) toModel(orgID uuid.UUID) *models.Product {
	p := &models.Product{
		ID:          uuid.New(),
		OrgID:       orgID,
		MakeID:      in.MakeID,
		MakeName:    trimPtr(in.MakeName),
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		PartNumber:  strings.TrimSpace(in.PartNumber),
		Condition:   in.Condition,
		Price:       in.Price,
		StockType:   in.StockType,
		AllowChat:   true,
		Status:      enums.ProductStatusDraft,
		FitmentTags: normalizeTags(in.FitmentTags),
	}

	switch in.StockType {
	case enums.StockTypeUnique:
		p.AllowCart = false
		p.QuantityOriginal = 1
		p.QuantityOnHand = 1
	default:
		p.AllowCart = true
		p.QuantityOriginal = in.Quantity
		p.QuantityOnHand = in.Quantity
	}
	if in.AllowCart != nil {
		p.AllowCart = *in.AllowCart
	}
	if in.AllowChat != nil {
		p.AllowChat = *in.AllowChat
	}
	if in.Publish {
		p.Status = enums.ProductStatusPublished
	}
	return p
}

// apply merges the non-nil patch fields into p.
func (patch ProductPatch) apply(p *models.Product) {
	if patch.MakeID != nil {
		p.MakeID = patch.MakeID
	}
	if patch.MakeName != nil {
		p.MakeName = trimPtr(patch.MakeName)
	}
	if patch.Title != nil {
		p.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		p.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.PartNumber != nil {
		p.PartNumber = strings.TrimSpace(*patch.PartNumber)
	}
	if patch.Condition != nil {
		p.Condition = *patch.Condition
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.StockType != nil && *patch.StockType != p.StockType {
		p.StockType = *patch.StockType
		if p.StockType == enums.StockTypeUnique {
			p.AllowCart = false
			p.QuantityOriginal = 1
			if p.QuantityOnHand > 1 {
				p.QuantityOnHand = 1
			}
		}
	}
	if patch.AllowCart != nil {
		p.AllowCart = *patch.AllowCart
	}
	if patch.AllowChat != nil {
		p.AllowChat = *patch.AllowChat
	}
	if patch.FitmentTags != nil {
		p.FitmentTags = normalizeTags(*patch.FitmentTags)
	}
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func trimPtr(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

package product

import (
	"github.com/angelmondragon/partsmarket-backend/pkg/db/models"
	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/partsmarket-backend/pkg/errors"
)

// validateListing checks the invariants the products table also enforces with CHECK constraints.
func validateListing(p *models.Product) error {
	switch {
	case p.Title == "":
		return invalid("title is required", "title")
	case !p.Condition.IsValid():
		return invalid("invalid condition", "condition")
	case !p.StockType.IsValid():
		return invalid("invalid stock_type", "stock_type")
	case !p.Status.IsValid():
		return invalid("invalid status", "status")
	case p.Price.IsNegative():
		return invalid("price must not be negative", "price")
	case p.QuantityOnHand < 0:
		return invalid("quantity_on_hand must not be negative", "quantity_on_hand")
	case !p.AllowCart && !p.AllowChat:
		return invalid("at least one of allow_cart or allow_chat must be enabled", "allow_cart")
	}

	if p.StockType == enums.StockTypeUnique {
		if p.AllowCart {
			return invalid("unique parts cannot be added to carts", "allow_cart")
		}
		if p.QuantityOriginal != 1 {
			return invalid("unique parts have a quantity of exactly one", "quantity_original")
		}
		if p.QuantityOnHand > 1 {
			return invalid("unique parts hold at most one unit", "quantity_on_hand")
		}
	}
	return nil
}

func invalid(msg, field string) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(map[string]any{"field": field})
}

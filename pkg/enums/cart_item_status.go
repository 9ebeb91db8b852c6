package enums

import "fmt"

// CartItemStatus tracks a cart line through reservation and purchase.
type CartItemStatus string

const (
	CartItemStatusActive    CartItemStatus = "active"
	CartItemStatusLocked    CartItemStatus = "locked"
	CartItemStatusPurchased CartItemStatus = "purchased"
	CartItemStatusRemoved   CartItemStatus = "removed"
)

var validCartItemStatuses = []CartItemStatus{
	CartItemStatusActive,
	CartItemStatusLocked,
	CartItemStatusPurchased,
	CartItemStatusRemoved,
}

// String implements fmt.Stringer.
func (c CartItemStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is known.
func (c CartItemStatus) IsValid() bool {
	for _, candidate := range validCartItemStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCartItemStatus converts raw input into a CartItemStatus.
func ParseCartItemStatus(value string) (CartItemStatus, error) {
	for _, candidate := range validCartItemStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cart item status %q", value)
}

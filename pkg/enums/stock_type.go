package enums

import "fmt"

// StockType distinguishes one-off parts from countable inventory.
type StockType string

const (
	StockTypeUnique StockType = "unique"
	StockTypeStock  StockType = "stock"
)

var validStockTypes = []StockType{
	StockTypeUnique,
	StockTypeStock,
}

// String implements fmt.Stringer.
func (s StockType) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s StockType) IsValid() bool {
	for _, candidate := range validStockTypes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStockType converts raw input into a StockType.
func ParseStockType(value string) (StockType, error) {
	for _, candidate := range validStockTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock type %q", value)
}

package enums

import "fmt"

// ProductCondition describes the physical state of a part.
type ProductCondition string

const (
	ProductConditionNew         ProductCondition = "new"
	ProductConditionUsed        ProductCondition = "used"
	ProductConditionRefurbished ProductCondition = "refurbished"
)

var validProductConditions = []ProductCondition{
	ProductConditionNew,
	ProductConditionUsed,
	ProductConditionRefurbished,
}

// String implements fmt.Stringer.
func (p ProductCondition) String() string {
	return string(p)
}

// IsValid reports whether the value is known.
func (p ProductCondition) IsValid() bool {
	for _, candidate := range validProductConditions {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseProductCondition converts raw input into a ProductCondition.
func ParseProductCondition(value string) (ProductCondition, error) {
	for _, candidate := range validProductConditions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product condition %q", value)
}

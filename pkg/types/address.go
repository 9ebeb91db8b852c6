package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// ShippingAddress is the buyer supplied destination stored as jsonb on orders.
type ShippingAddress struct {
	FullName   string  `json:"full_name" validate:"required,max=200"`
	Line1      string  `json:"line1" validate:"required,max=200"`
	Line2      *string `json:"line2,omitempty" validate:"omitempty,max=200"`
	City       string  `json:"city" validate:"required,max=120"`
	State      string  `json:"state" validate:"required,max=120"`
	PostalCode string  `json:"postal_code" validate:"required,max=20"`
	Country    string  `json:"country" validate:"omitempty,len=2"`
	Phone      *string `json:"phone,omitempty" validate:"omitempty,max=40"`
}

// Normalize trims every field and defaults the country to US.
func (a ShippingAddress) Normalize() ShippingAddress {
	a.FullName = strings.TrimSpace(a.FullName)
	a.Line1 = strings.TrimSpace(a.Line1)
	a.Line2 = trimNullable(a.Line2)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.Country = strings.ToUpper(strings.TrimSpace(a.Country))
	if a.Country == "" {
		a.Country = "US"
	}
	a.Phone = trimNullable(a.Phone)
	return a
}

// Value marshals the address as JSON for the jsonb column.
func (a ShippingAddress) Value() (driver.Value, error) {
	if strings.TrimSpace(a.Line1) == "" {
		return nil, fmt.Errorf("shipping address: missing line1")
	}
	if strings.TrimSpace(a.City) == "" {
		return nil, fmt.Errorf("shipping address: missing city")
	}
	if strings.TrimSpace(a.PostalCode) == "" {
		return nil, fmt.Errorf("shipping address: missing postal_code")
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("shipping address: %w", err)
	}
	return string(raw), nil
}

// Scan decodes the jsonb column.
func (a *ShippingAddress) Scan(value interface{}) error {
	if value == nil {
		*a = ShippingAddress{}
		return nil
	}

	raw, ok := toString(value)
	if !ok {
		return fmt.Errorf("shipping address: unsupported scan type %T", value)
	}
	if strings.TrimSpace(raw) == "" {
		*a = ShippingAddress{}
		return nil
	}
	return json.Unmarshal([]byte(raw), a)
}

func toString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return "", false
	}
}

func trimNullable(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

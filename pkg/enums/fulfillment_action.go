package enums

import "fmt"

// FulfillmentAction names a seller action on an order item.
type FulfillmentAction string

const (
	FulfillmentActionAccept  FulfillmentAction = "accept"
	FulfillmentActionReject  FulfillmentAction = "reject"
	FulfillmentActionShip    FulfillmentAction = "ship"
	FulfillmentActionDeliver FulfillmentAction = "deliver"
)

var validFulfillmentActions = []FulfillmentAction{
	FulfillmentActionAccept,
	FulfillmentActionReject,
	FulfillmentActionShip,
	FulfillmentActionDeliver,
}

// String implements fmt.Stringer.
func (f FulfillmentAction) String() string {
	return string(f)
}

// IsValid reports whether the value is known.
func (f FulfillmentAction) IsValid() bool {
	for _, candidate := range validFulfillmentActions {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParseFulfillmentAction converts raw input into a FulfillmentAction.
func ParseFulfillmentAction(value string) (FulfillmentAction, error) {
	for _, candidate := range validFulfillmentActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid fulfillment action %q", value)
}

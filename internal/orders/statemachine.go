package orders

import (
	"strings"
	"time"

	"github.com/angelmondragon/partsmarket-backend/pkg/db/models"
	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/partsmarket-backend/pkg/errors"
)

type transitionRule struct {
	from []enums.OrderItemStatus
	to   enums.OrderItemStatus
}

var transitions = map[enums.FulfillmentAction]transitionRule{
	enums.FulfillmentActionAccept: {
		from: []enums.OrderItemStatus{enums.OrderItemStatusPending},
		to:   enums.OrderItemStatusConfirmed,
	},
	enums.FulfillmentActionReject: {
		from: []enums.OrderItemStatus{enums.OrderItemStatusPending, enums.OrderItemStatusConfirmed},
		to:   enums.OrderItemStatusCancelled,
	},
	enums.FulfillmentActionShip: {
		from: []enums.OrderItemStatus{enums.OrderItemStatusConfirmed, enums.OrderItemStatusProcessing},
		to:   enums.OrderItemStatusShipped,
	},
	enums.FulfillmentActionDeliver: {
		from: []enums.OrderItemStatus{enums.OrderItemStatusShipped},
		to:   enums.OrderItemStatusDelivered,
	},
}

// Transition returns the status action leads to from current, or a
// STATE_CONFLICT error when the action is not allowed there.
func Transition(current enums.OrderItemStatus, action enums.FulfillmentAction) (enums.OrderItemStatus, error) {
	rule, ok := transitions[action]
	if !ok {
		return current, pkgerrors.New(pkgerrors.CodeValidation, "unknown fulfillment action").
			WithDetails(map[string]any{"action": action})
	}
	for _, from := range rule.from {
		if from == current {
			return rule.to, nil
		}
	}
	return current, pkgerrors.New(pkgerrors.CodeStateConflict, "order item cannot "+string(action)+" from "+string(current)).
		WithDetails(map[string]any{
			"action":         action,
			"current_status": current,
			"allowed_from":   rule.from,
		})
}

// TransitionInput carries the optional data some actions record.
type TransitionInput struct {
	CarrierCode     string
	TrackingNumber  string
	TrackingURL     *string
	ShippedAt       *time.Time
	DeliveredAt     *time.Time
	RejectionReason *string
	Now             time.Time
}

// ApplyTransition moves item through action and stamps the action's fields.
// The item is left untouched when an error is returned.
func ApplyTransition(item *models.OrderItem, action enums.FulfillmentAction, in TransitionInput) (enums.OrderItemStatus, error) {
	from := item.Status
	to, err := Transition(from, action)
	if err != nil {
		return from, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	switch action {
	case enums.FulfillmentActionShip:
		carrier := strings.TrimSpace(in.CarrierCode)
		tracking := strings.TrimSpace(in.TrackingNumber)
		if carrier == "" || tracking == "" {
			return from, pkgerrors.New(pkgerrors.CodeValidation, "carrier_code and tracking_number are required")
		}
		shippedAt := now
		if in.ShippedAt != nil {
			shippedAt = in.ShippedAt.UTC()
		}
		item.CarrierCode = &carrier
		item.TrackingNumber = &tracking
		item.TrackingURL = trimmed(in.TrackingURL)
		item.ShippedAt = &shippedAt
	case enums.FulfillmentActionDeliver:
		deliveredAt := now
		if in.DeliveredAt != nil {
			deliveredAt = in.DeliveredAt.UTC()
		}
		item.DeliveredAt = &deliveredAt
	case enums.FulfillmentActionReject:
		item.CancelledAt = &now
		item.RejectionReason = trimmed(in.RejectionReason)
	}

	item.Status = to
	return from, nil
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return &s
}

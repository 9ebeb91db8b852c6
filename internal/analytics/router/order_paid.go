package router

import (
	"fmt"

	"github.com/angelmondragon/partsmarket-backend/internal/analytics/types"
	analyticswriter "github.com/angelmondragon/partsmarket-backend/internal/analytics/writer"
	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
	"github.com/angelmondragon/partsmarket-backend/pkg/outbox/payloads"
)

func buildOrderPaidRows(envelope types.Envelope, payload any) ([]types.MarketplaceEventRow, error) {
	event, ok := payload.(*payloads.OrderPaidEvent)
	if !ok {
		return nil, fmt.Errorf("invalid payload for %s", enums.EventOrderPaid)
	}
	payloadJSON, err := analyticswriter.EncodeJSON(event)
	if err != nil {
		return nil, fmt.Errorf("encode payload json: %w", err)
	}

	paid := string(enums.PaymentStatusPaid)
	row := baseRow(envelope)
	if !event.PaidAt.IsZero() {
		row.OccurredAt = event.PaidAt.UTC()
	}
	row.OrderID = uuidPtr(event.OrderID)
	row.BuyerID = uuidPtr(event.BuyerID)
	row.PaymentStatus = &paid
	row.AmountCents = centsPtr(event.TotalAmount)
	row.Payload = payloadJSON
	return []types.MarketplaceEventRow{row}, nil
}

func buildPaymentStatusRows(envelope types.Envelope, payload any) ([]types.MarketplaceEventRow, error) {
	event, ok := payload.(*payloads.OrderPaymentStatusChangedEvent)
	if !ok {
		return nil, fmt.Errorf("invalid payload for %s", enums.EventOrderPaymentStatusChange)
	}
	payloadJSON, err := analyticswriter.EncodeJSON(event)
	if err != nil {
		return nil, fmt.Errorf("encode payload json: %w", err)
	}

	row := baseRow(envelope)
	row.OrderID = uuidPtr(event.OrderID)
	row.BuyerID = uuidPtr(event.BuyerID)
	row.PaymentStatus = stringPtr(string(event.Status))
	row.AmountCents = centsPtr(event.TotalAmount)
	row.Payload = payloadJSON
	return []types.MarketplaceEventRow{row}, nil
}

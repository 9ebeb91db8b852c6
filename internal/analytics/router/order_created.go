package router

import (
	"fmt"

	"github.com/angelmondragon/partsmarket-backend/internal/analytics/types"
	analyticswriter "github.com/angelmondragon/partsmarket-backend/internal/analytics/writer"
	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
	"github.com/angelmondragon/partsmarket-backend/pkg/outbox/payloads"
)

// buildOrderCreatedRows emits one row per order item so GMV can be grouped
// by seller organization.
func buildOrderCreatedRows(envelope types.Envelope, payload any) ([]types.MarketplaceEventRow, error) {
	event, ok := payload.(*payloads.OrderCreatedEvent)
	if !ok {
		return nil, fmt.Errorf("invalid payload for %s", enums.EventOrderCreated)
	}

	rows := make([]types.MarketplaceEventRow, 0, len(event.Items))
	pending := string(enums.PaymentStatusPending)
	for _, item := range event.Items {
		itemJSON, err := analyticswriter.EncodeJSON(item)
		if err != nil {
			return nil, fmt.Errorf("encode item json: %w", err)
		}
		row := baseRow(envelope)
		row.OrderID = uuidPtr(event.OrderID)
		row.OrderItemID = uuidPtr(item.OrderItemID)
		row.ProductID = optionalUUIDPtr(item.ProductID)
		row.BuyerID = uuidPtr(event.BuyerID)
		row.SellerOrgID = uuidPtr(item.SellerOrgID)
		row.PaymentStatus = &pending
		row.Quantity = int64Ptr(int64(item.Quantity))
		row.AmountCents = centsPtr(item.TotalPrice)
		row.Payload = itemJSON
		rows = append(rows, row)
	}
	return rows, nil
}

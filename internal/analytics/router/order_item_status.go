package router

import (
	"fmt"

	"github.com/angelmondragon/partsmarket-backend/internal/analytics/types"
	analyticswriter "github.com/angelmondragon/partsmarket-backend/internal/analytics/writer"
	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
	"github.com/angelmondragon/partsmarket-backend/pkg/outbox/payloads"
)

func buildItemStatusRows(envelope types.Envelope, payload any) ([]types.MarketplaceEventRow, error) {
	event, ok := payload.(*payloads.OrderItemStatusChangedEvent)
	if !ok {
		return nil, fmt.Errorf("invalid payload for %s", enums.EventOrderItemStatusChanged)
	}
	payloadJSON, err := analyticswriter.EncodeJSON(event)
	if err != nil {
		return nil, fmt.Errorf("encode payload json: %w", err)
	}

	row := baseRow(envelope)
	row.OrderID = uuidPtr(event.OrderID)
	row.OrderItemID = uuidPtr(event.OrderItemID)
	row.SellerOrgID = uuidPtr(event.SellerOrgID)
	row.ItemStatus = stringPtr(string(event.ToStatus))
	row.AmountCents = centsPtr(event.TotalPrice)
	row.Payload = payloadJSON
	return []types.MarketplaceEventRow{row}, nil
}

func buildStockAdjustedRows(envelope types.Envelope, payload any) ([]types.MarketplaceEventRow, error) {
	event, ok := payload.(*payloads.ProductStockAdjustedEvent)
	if !ok {
		return nil, fmt.Errorf("invalid payload for %s", enums.EventProductStockAdjusted)
	}
	payloadJSON, err := analyticswriter.EncodeJSON(event)
	if err != nil {
		return nil, fmt.Errorf("encode payload json: %w", err)
	}

	row := baseRow(envelope)
	row.ProductID = uuidPtr(event.ProductID)
	row.SellerOrgID = uuidPtr(event.OrgID)
	row.Quantity = int64Ptr(int64(event.Delta))
	row.Payload = payloadJSON
	return []types.MarketplaceEventRow{row}, nil
}

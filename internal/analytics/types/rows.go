package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// MarketplaceEventRow mirrors the marketplace_events BigQuery schema. One
// event can fan out to several rows, e.g. one per order item so seller
// organizations can be aggregated without unnesting.
type MarketplaceEventRow struct {
	EventID       string             `bigquery:"event_id"`
	EventType     string             `bigquery:"event_type"`
	OccurredAt    time.Time          `bigquery:"occurred_at"`
	OrderID       *string            `bigquery:"order_id"`
	OrderItemID   *string            `bigquery:"order_item_id"`
	ProductID     *string            `bigquery:"product_id"`
	BuyerID       *string            `bigquery:"buyer_id"`
	SellerOrgID   *string            `bigquery:"seller_org_id"`
	ActorUserID   *string            `bigquery:"actor_user_id"`
	PaymentStatus *string            `bigquery:"payment_status"`
	ItemStatus    *string            `bigquery:"item_status"`
	Quantity      *int64             `bigquery:"quantity"`
	AmountCents   *int64             `bigquery:"amount_cents"`
	Payload       cbigquery.NullJSON `bigquery:"payload"`
}

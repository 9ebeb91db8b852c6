package checkout

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Mode selects how the buyer completes payment.
type Mode string

const (
	ModeEmbedded Mode = "embedded"
	ModeHosted   Mode = "hosted"
)

// LineItem is one priced row shown on the payment page.
type LineItem struct {
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

// SessionRequest describes the payment session to open for an order.
type SessionRequest struct {
	Mode      Mode
	OrderID   uuid.UUID
	BuyerID   uuid.UUID
	Currency  string
	LineItems []LineItem
}

// Session is what the payment provider hands back.
type Session struct {
	ID              string
	ClientSecret    string
	URL             string
	PaymentIntentID *string
}

// PaymentGateway opens payment sessions with the external provider.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error)
}

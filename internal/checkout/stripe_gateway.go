package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"

	"github.com/angelmondragon/partsmarket-backend/pkg/config"
	stripepkg "github.com/angelmondragon/partsmarket-backend/pkg/stripe"
)

type sessionCreator func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)

// StripeGateway opens Stripe Checkout sessions in embedded or hosted mode.
type StripeGateway struct {
	cfg    config.CheckoutConfig
	create sessionCreator
}

// NewStripeGateway expects the Stripe client to be initialized, which sets the
// package level API key used by the session resource.
func NewStripeGateway(client *stripepkg.Client, cfg config.CheckoutConfig) (*StripeGateway, error) {
	if client == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	return &StripeGateway{cfg: cfg, create: session.New}, nil
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error) {
	params, err := g.buildParams(ctx, req)
	if err != nil {
		return nil, err
	}
	created, err := g.create(params)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session: %w", err)
	}

	out := &Session{
		ID:           created.ID,
		ClientSecret: created.ClientSecret,
		URL:          created.URL,
	}
	if created.PaymentIntent != nil && created.PaymentIntent.ID != "" {
		id := created.PaymentIntent.ID
		out.PaymentIntentID = &id
	}
	return out, nil
}

func (g *StripeGateway) buildParams(ctx context.Context, req SessionRequest) (*stripe.CheckoutSessionParams, error) {
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = strings.ToLower(g.cfg.Currency)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(req.OrderID.String()),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{
				"order_id": req.OrderID.String(),
				"buyer_id": req.BuyerID.String(),
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("order_id", req.OrderID.String())
	params.AddMetadata("buyer_id", req.BuyerID.String())

	switch req.Mode {
	case ModeEmbedded:
		params.UIMode = stripe.String(string(stripe.CheckoutSessionUIModeEmbedded))
		params.ReturnURL = stripe.String(g.cfg.ReturnURL)
	case ModeHosted:
		params.SuccessURL = stripe.String(g.cfg.SuccessURL)
		params.CancelURL = stripe.String(g.cfg.CancelURL)
	default:
		return nil, fmt.Errorf("unsupported checkout mode %q", req.Mode)
	}

	for _, item := range req.LineItems {
		cents, err := stripepkg.ToMinorUnits(item.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("line item %q: %w", item.Name, err)
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(int64(item.Quantity)),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(cents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
			},
		})
	}
	return params, nil
}

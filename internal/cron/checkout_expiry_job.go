package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/partsmarket-backend/pkg/db/models"
	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
	"github.com/angelmondragon/partsmarket-backend/pkg/logger"
)

const (
	defaultCheckoutTTL = 24 * time.Hour
	defaultBatchSize   = 200
)

type pendingOrderReader interface {
	FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

type paymentStatusMarker interface {
	MarkPaymentStatus(ctx context.Context, orderID uuid.UUID, status enums.PaymentStatus) (bool, error)
}

// CheckoutExpiryJobParams configure the checkout expiry sweep.
type CheckoutExpiryJobParams struct {
	Logger    *logger.Logger
	Reader    pendingOrderReader
	Orders    paymentStatusMarker
	TTL       time.Duration
	BatchSize int
}

// NewCheckoutExpiryJob builds the sweep that expires orders left unpaid past
// the checkout TTL. Webhooks normally do this; the sweep covers lost events.
func NewCheckoutExpiryJob(params CheckoutExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reader == nil {
		return nil, fmt.Errorf("pending order reader required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultCheckoutTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &checkoutExpiryJob{
		logg:   params.Logger,
		reader: params.Reader,
		orders: params.Orders,
		ttl:    ttl,
		batch:  batch,
		now:    time.Now,
	}, nil
}

type checkoutExpiryJob struct {
	logg   *logger.Logger
	reader pendingOrderReader
	orders paymentStatusMarker
	ttl    time.Duration
	batch  int
	now    func() time.Time
}

func (j *checkoutExpiryJob) Name() string { return "checkout-expiry" }

func (j *checkoutExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	expired := 0
	for {
		rows, err := j.reader.FindPendingBefore(ctx, cutoff, j.batch)
		if err != nil {
			return fmt.Errorf("query stale pending orders: %w", err)
		}

		var errs error
		for _, order := range rows {
			changed, err := j.orders.MarkPaymentStatus(ctx, order.ID, enums.PaymentStatusExpired)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", order.ID, err))
				continue
			}
			if changed {
				expired++
			}
		}
		// Failed rows stay pending and would be fetched again.
		if errs != nil {
			return errs
		}
		if len(rows) < j.batch {
			break
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{"cutoff": cutoff, "expired": expired})
	j.logg.Info(logCtx, "checkout expiry sweep complete")
	return nil
}

package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/angelmondragon/partsmarket-backend/internal/analytics/types"
	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
	"github.com/angelmondragon/partsmarket-backend/pkg/logger"
)

var ErrUnsupportedEventType = errors.New("unsupported analytics event type")

// Writer delivers BigQuery rows produced by analytics handlers.
type Writer interface {
	InsertMarketplace(ctx context.Context, rows ...types.MarketplaceEventRow) error
}

// PayloadDecoder turns a versioned event payload into its typed struct.
type PayloadDecoder interface {
	Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error)
}

// Handler receives an envelope plus a decoded event payload.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope, payload any) error
}

// RowBuilder maps one decoded event to the rows it contributes.
type RowBuilder func(envelope types.Envelope, payload any) ([]types.MarketplaceEventRow, error)

// Router dispatches analytics envelopes to the configured handler per event type.
type Router struct {
	decoder  PayloadDecoder
	handlers map[enums.OutboxEventType]Handler
	logg     *logger.Logger
}

// NewRouter wires the default handlers and allows overrides for specific events.
func NewRouter(writer Writer, decoder PayloadDecoder, logg *logger.Logger, overrides map[enums.OutboxEventType]Handler) (*Router, error) {
	if writer == nil {
		return nil, errors.New("writer is required")
	}
	if decoder == nil {
		return nil, errors.New("payload decoder is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}

	handlers := map[enums.OutboxEventType]Handler{
		enums.EventOrderCreated:             newRowHandler(writer, logg, buildOrderCreatedRows),
		enums.EventOrderPaid:                newRowHandler(writer, logg, buildOrderPaidRows),
		enums.EventOrderPaymentStatusChange: newRowHandler(writer, logg, buildPaymentStatusRows),
		enums.EventOrderItemStatusChanged:   newRowHandler(writer, logg, buildItemStatusRows),
		enums.EventProductStockAdjusted:     newRowHandler(writer, logg, buildStockAdjustedRows),
	}
	for event, custom := range overrides {
		if _, ok := handlers[event]; !ok || custom == nil {
			continue
		}
		handlers[event] = custom
	}

	return &Router{decoder: decoder, handlers: handlers, logg: logg}, nil
}

// Handle decodes the payload for the envelope's version and dispatches it.
func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	handler, ok := r.handlers[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	if len(envelope.Payload) == 0 {
		return fmt.Errorf("empty payload for %s", envelope.EventType)
	}
	version := envelope.Version
	if version <= 0 {
		version = 1
	}
	payload, err := r.decoder.Decode(envelope.EventType, version, envelope.Payload)
	if err != nil {
		return fmt.Errorf("decode %s payload: %w", envelope.EventType, err)
	}
	return handler.Handle(ctx, envelope, payload)
}

type rowHandler struct {
	writer Writer
	logg   *logger.Logger
	build  RowBuilder
}

func newRowHandler(writer Writer, logg *logger.Logger, build RowBuilder) Handler {
	return &rowHandler{writer: writer, logg: logg, build: build}
}

func (h *rowHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type":   envelope.EventType,
		"aggregate_id": envelope.AggregateID,
	})

	rows, err := h.build(envelope, payload)
	if err != nil {
		h.logg.Error(logCtx, "failed to build marketplace rows", err)
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	if err := h.writer.InsertMarketplace(logCtx, rows...); err != nil {
		h.logg.Error(logCtx, "failed to insert marketplace rows", err)
		return err
	}
	h.logg.Info(h.logg.WithField(logCtx, "rows", len(rows)), "marketplace rows inserted")
	return nil
}

// baseRow fills the columns every event shares.
func baseRow(envelope types.Envelope) types.MarketplaceEventRow {
	row := types.MarketplaceEventRow{
		EventID:    envelope.EventID,
		EventType:  string(envelope.EventType),
		OccurredAt: envelope.OccurredAt.UTC(),
	}
	if envelope.Actor != nil {
		row.ActorUserID = uuidPtr(envelope.Actor.UserID)
	}
	return row
}

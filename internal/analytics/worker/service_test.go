package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/partsmarket-backend/internal/analytics/router"
	"github.com/angelmondragon/partsmarket-backend/internal/analytics/types"
	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
	"github.com/angelmondragon/partsmarket-backend/pkg/logger"
	"github.com/angelmondragon/partsmarket-backend/pkg/outbox"
)

func TestBuildEnvelope(t *testing.T) {
	svc := newTestService(t)
	eventID := uuid.NewString()
	actor := uuid.New()
	orderID := uuid.NewString()
	payload := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Actor:      &outbox.ActorRef{UserID: actor, Role: "buyer"},
		Data:       json.RawMessage(`{"order_id":"` + orderID + `"}`),
	}
	msg := buildMessage(payload, map[string]string{
		"event_type":     "order.created",
		"aggregate_type": "order",
		"aggregate_id":   orderID,
	})

	env, err := svc.buildEnvelope(msg)
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	if env.EventType != enums.EventOrderCreated {
		t.Fatalf("unexpected event type %v", env.EventType)
	}
	if env.AggregateType != enums.AggregateOrder {
		t.Fatalf("unexpected aggregate type %v", env.AggregateType)
	}
	if env.AggregateID != orderID {
		t.Fatalf("unexpected aggregate id %s", env.AggregateID)
	}
	if env.EventID != eventID || env.Version != 1 {
		t.Fatalf("unexpected event id %s or version %d", env.EventID, env.Version)
	}
	if !env.OccurredAt.Equal(payload.OccurredAt) {
		t.Fatalf("unexpected occurred at %v", env.OccurredAt)
	}
	if env.Actor == nil || env.Actor.UserID != actor {
		t.Fatalf("actor not carried over")
	}
}

func TestBuildEnvelopeFallsBackToAttributes(t *testing.T) {
	svc := newTestService(t)
	eventID := uuid.NewString()
	msg := buildMessage(outbox.PayloadEnvelope{Data: json.RawMessage(`{}`)}, map[string]string{
		"event_id":       eventID,
		"event_type":     "order.paid",
		"aggregate_type": "order",
		"aggregate_id":   "abc",
		"created_at":     "2025-03-01T09:00:00Z",
	})

	env, err := svc.buildEnvelope(msg)
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	if env.EventID != eventID {
		t.Fatalf("expected attribute event id, got %s", env.EventID)
	}
	if env.OccurredAt != time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) {
		t.Fatalf("expected created_at fallback, got %v", env.OccurredAt)
	}
}

func TestProcessAlreadyProcessed(t *testing.T) {
	manager := &stubManager{checkResult: true}
	handler := &stubHandler{}
	svc := newTestServiceWithDeps(t, handler, manager)

	res := svc.process(context.Background(), buildAnalyticsMessage(t))
	if res.nack {
		t.Fatalf("expected ack, got nack")
	}
	if handler.called {
		t.Fatal("handler should not be invoked when already processed")
	}
	if len(manager.checked) != 1 {
		t.Fatalf("expected check once, got %d", len(manager.checked))
	}
}

func TestProcessHandlerErrorRetries(t *testing.T) {
	manager := &stubManager{}
	handler := &stubHandler{err: errors.New("boom")}
	svc := newTestServiceWithDeps(t, handler, manager)

	res := svc.process(context.Background(), buildAnalyticsMessage(t))
	if !res.nack {
		t.Fatalf("expected nack on handler error")
	}
	if !handler.called {
		t.Fatal("handler should be invoked")
	}
	if len(manager.deleted) != 1 || manager.deleted[0] != manager.checked[0] {
		t.Fatalf("expected idempotency delete for the checked event")
	}
}

func TestProcessIdempotencyFailureNacks(t *testing.T) {
	manager := &stubManager{checkErr: errors.New("redis down")}
	handler := &stubHandler{}
	svc := newTestServiceWithDeps(t, handler, manager)

	res := svc.process(context.Background(), buildAnalyticsMessage(t))
	if !res.nack {
		t.Fatalf("expected nack when redis is unavailable")
	}
	if handler.called {
		t.Fatal("handler should not run without an idempotency mark")
	}
}

func TestProcessInvalidEnvelope(t *testing.T) {
	manager := &stubManager{}
	handler := &stubHandler{}
	svc := newTestServiceWithDeps(t, handler, manager)

	res := svc.process(context.Background(), &gcppubsub.Message{Data: []byte("invalid json")})
	if res.nack {
		t.Fatalf("invalid envelope should ack")
	}
	if handler.called {
		t.Fatal("handler should not be invoked")
	}
	if len(manager.checked) != 0 {
		t.Fatalf("idempotency manager should not be touched")
	}
}

func TestProcessUnknownEventTypeAcks(t *testing.T) {
	manager := &stubManager{}
	svc := newTestServiceWithDeps(t, &stubHandler{}, manager)
	msg := buildMessage(outbox.PayloadEnvelope{EventID: uuid.NewString(), Data: json.RawMessage(`{}`)}, map[string]string{
		"event_type":     "vendor_order.created",
		"aggregate_type": "order",
		"aggregate_id":   "abc",
	})
	if res := svc.process(context.Background(), msg); res.nack {
		t.Fatalf("unknown event type should ack")
	}
	if len(manager.checked) != 0 {
		t.Fatalf("idempotency manager should not be touched")
	}
}

func TestProcessUnsupportedEvent(t *testing.T) {
	manager := &stubManager{}
	handler := &stubHandler{err: fmt.Errorf("%w: x", router.ErrUnsupportedEventType)}
	svc := newTestServiceWithDeps(t, handler, manager)

	res := svc.process(context.Background(), buildAnalyticsMessage(t))
	if res.nack {
		t.Fatalf("unsupported event should ack")
	}
	if len(manager.deleted) != 0 {
		t.Fatalf("idempotency delete should not run")
	}
}

func TestObserveRecordsOutcome(t *testing.T) {
	metrics := &stubMetrics{}
	svc := newTestService(t)
	svc.metrics = metrics
	svc.observe(processResult{}, time.Millisecond)
	svc.observe(processResult{nack: true}, time.Millisecond)
	if metrics.success != 1 || metrics.failure != 1 || metrics.observed != 2 {
		t.Fatalf("unexpected metrics %+v", metrics)
	}
}

func buildAnalyticsMessage(t *testing.T) *gcppubsub.Message {
	t.Helper()
	payload := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(`{"foo":"bar"}`),
	}
	return buildMessage(payload, map[string]string{
		"event_type":     "order_item.status_changed",
		"aggregate_type": "order_item",
		"aggregate_id":   uuid.NewString(),
	})
}

func buildMessage(payload outbox.PayloadEnvelope, attrs map[string]string) *gcppubsub.Message {
	data, _ := json.Marshal(payload)
	return &gcppubsub.Message{
		ID:         "msg-1",
		Data:       data,
		Attributes: attrs,
	}
}

func newTestService(t *testing.T) *Service {
	return newTestServiceWithDeps(t, &stubHandler{}, &stubManager{})
}

func newTestServiceWithDeps(t *testing.T, handler Handler, manager *stubManager) *Service {
	t.Helper()
	return &Service{
		handler: handler,
		manager: manager,
		logg:    logger.New(logger.Options{ServiceName: "analytics-test", Output: io.Discard}),
	}
}

type stubHandler struct {
	called   bool
	envelope types.Envelope
	err      error
}

func (h *stubHandler) Handle(_ context.Context, envelope types.Envelope) error {
	h.called = true
	h.envelope = envelope
	return h.err
}

type stubManager struct {
	checkResult bool
	checkErr    error
	deleteErr   error
	checked     []string
	deleted     []string
}

func (s *stubManager) CheckAndMarkProcessed(_ context.Context, _ string, eventID string) (bool, error) {
	s.checked = append(s.checked, eventID)
	return s.checkResult, s.checkErr
}

func (s *stubManager) Delete(_ context.Context, _ string, eventID string) error {
	s.deleted = append(s.deleted, eventID)
	return s.deleteErr
}

type stubMetrics struct {
	observed int
	success  int
	failure  int
}

func (s *stubMetrics) ObserveDuration(string, time.Duration) { s.observed++ }
func (s *stubMetrics) IncSuccess(string)                     { s.success++ }
func (s *stubMetrics) IncFailure(string)                     { s.failure++ }

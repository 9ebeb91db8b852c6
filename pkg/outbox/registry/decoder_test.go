package registry

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
	"github.com/angelmondragon/partsmarket-backend/pkg/outbox/payloads"
)

func TestDecoderRegistry(t *testing.T) {
	reg := NewDecoderRegistry()
	reg.Register(enums.EventOrderItemStatusChanged, 1, func(payload json.RawMessage) (any, error) {
		var decoded map[string]string
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return nil, err
		}
		return decoded, nil
	})

	output, err := reg.Decode(enums.EventOrderItemStatusChanged, 1, json.RawMessage(`{"to_status":"shipped"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outMap, ok := output.(map[string]string); !ok || outMap["to_status"] != "shipped" {
		t.Fatalf("unexpected output %+v", output)
	}

	if _, err := reg.Decode(enums.EventOrderItemStatusChanged, 2, json.RawMessage(`{}`)); err == nil {
		t.Fatal("expected error for unregistered version")
	}
}

func TestMarketplaceDecoders(t *testing.T) {
	reg := NewMarketplaceDecoders()
	orderID := uuid.New()

	out, err := reg.Decode(enums.EventOrderPaid, 1, json.RawMessage(`{"order_id":"`+orderID.String()+`","total_amount":"42.50"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	paid, ok := out.(*payloads.OrderPaidEvent)
	if !ok {
		t.Fatalf("unexpected type %T", out)
	}
	if paid.OrderID != orderID || paid.TotalAmount.String() != "42.5" {
		t.Fatalf("unexpected payload %+v", paid)
	}
}

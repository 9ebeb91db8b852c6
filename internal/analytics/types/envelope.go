package types

import (
	"encoding/json"
	"time"

	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
	"github.com/angelmondragon/partsmarket-backend/pkg/outbox"
)

// Envelope is a marketplace event as received from Pub/Sub: the stored outbox
// envelope plus the routing attributes the publisher attached.
type Envelope struct {
	EventID       string
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   string
	Version       int
	OccurredAt    time.Time
	Actor         *outbox.ActorRef
	Payload       json.RawMessage
}

package outbox

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Message is the unit stored in an outbox table.
type Message struct {
	Topic   string
	EventID uuid.UUID
	// Business key of the aggregate the event is about (for example a folio).
	AggregateKey string
	Payload      json.RawMessage
}

// Meta is the stable dispatch metadata handed to dispatchers.
type Meta struct {
	Table        pgx.Identifier
	Topic        string
	EventID      uuid.UUID
	AggregateKey string
	Sequence     int64
	Attempts     int
}

// DispatchedMessage is the unit delivered by Relay to Dispatcher.
type DispatchedMessage struct {
	Meta    Meta
	Payload json.RawMessage
}

func TableLabel(table pgx.Identifier) string {
	return joinIdentifier(table)
}

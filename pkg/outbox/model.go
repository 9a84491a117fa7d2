package outbox

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

// Event is one pending change record, written in the same transaction as the
// order mutation it describes and relayed to the broker at least once.
type Event struct {
	ID            int64
	AggregateType string
	AggregateID   string
	Type          string
	Payload       []byte
	Headers       map[string]string
	Traceparent   string
	CreatedAt     time.Time
	Status        Status
	RelayID       string
	RetryCount    int
	LastError     *string
}

// PartitionKey scopes an event to its property so the broker preserves
// per-property ordering; cross-property order is not guaranteed.
func (e Event) PartitionKey() string {
	if p, ok := e.Headers["property_id"]; ok && p != "" {
		return p
	}
	return e.AggregateID
}

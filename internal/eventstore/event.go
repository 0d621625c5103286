package eventstore

import "time"

// Event types stored besides the buildsystem event kinds.
const (
	EventQueryStarted = "query_started"
)

// Event is one stored row of the query history.
type Event struct {
	ID        int64
	QueryID   string
	Type      string
	Timestamp time.Time
	Payload   []byte
	Metadata  map[string]string
}
